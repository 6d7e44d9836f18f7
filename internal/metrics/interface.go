// Package metrics provides interfaces for metrics collection and monitoring.
package metrics

import "time"

// Recorder defines the metrics the scan engine reports.
// This interface allows for easy mocking and testing of metrics functionality.
type Recorder interface {
	// ObservePort records the outcome and duration of a single port probe.
	ObservePort(state string, duration time.Duration)

	// ObserveBanner records whether a banner was captured from an open port.
	ObserveBanner(captured bool)

	// WorkerStarted and WorkerStopped track the number of running workers.
	WorkerStarted()
	WorkerStopped()

	// ObserveScan records a finished (or aborted) scan.
	ObserveScan(status string, duration time.Duration)
}

// Ensure that PrometheusMetrics and Noop implement Recorder.
var (
	_ Recorder = (*PrometheusMetrics)(nil)
	_ Recorder = Noop{}
)

// Noop discards all metrics.
type Noop struct{}

func (Noop) ObservePort(string, time.Duration) {}
func (Noop) ObserveBanner(bool)                {}
func (Noop) WorkerStarted()                    {}
func (Noop) WorkerStopped()                    {}
func (Noop) ObserveScan(string, time.Duration) {}
