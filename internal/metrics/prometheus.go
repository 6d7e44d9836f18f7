// Package metrics provides Prometheus-based metrics collection for scanprobe.
// Metrics are kept in a private registry per process and can be exported to
// a node-exporter textfile once a scan has finished.
package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all scanprobe metrics
	namespace = "scanprobe"

	// Subsystems
	subsystemScan   = "scan"
	subsystemProbe  = "probe"
	subsystemSystem = "system"
)

// Port probe states used as label values.
const (
	StateOpen    = "open"
	StateClosed  = "closed"
	StateErrored = "error"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal    *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	portsScanned  *prometheus.CounterVec
	bannersTotal  *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	workersActive prometheus.Gauge

	// System metrics
	goroutines prometheus.Gauge
	uptime     prometheus.Gauge

	startTime time.Time
	mu        sync.Mutex
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initScanMetrics()
	pm.initSystemMetrics()
	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

// initScanMetrics initializes scan-related metrics
func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans performed by status",
		},
		[]string{"status"},
	)

	pm.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of scan operations in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
	)

	pm.portsScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "ports_total",
			Help:      "Total number of ports probed by outcome",
		},
		[]string{"state"},
	)

	pm.bannersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "banners_total",
			Help:      "Banner capture attempts on open ports by result",
		},
		[]string{"result"},
	)

	pm.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Duration of single port probes in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"state"},
	)

	pm.workersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "workers_active",
			Help:      "Number of currently running scan workers",
		},
	)
}

// initSystemMetrics initializes system-related metrics
func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	pm.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(pm.scansTotal)
	pm.registry.MustRegister(pm.scanDuration)
	pm.registry.MustRegister(pm.portsScanned)
	pm.registry.MustRegister(pm.bannersTotal)
	pm.registry.MustRegister(pm.probeDuration)
	pm.registry.MustRegister(pm.workersActive)

	pm.registry.MustRegister(pm.goroutines)
	pm.registry.MustRegister(pm.uptime)
}

// ObservePort increments the port counter and records the probe duration
func (pm *PrometheusMetrics) ObservePort(state string, duration time.Duration) {
	pm.portsScanned.WithLabelValues(state).Inc()
	pm.probeDuration.WithLabelValues(state).Observe(duration.Seconds())
}

// ObserveBanner records a banner capture attempt
func (pm *PrometheusMetrics) ObserveBanner(captured bool) {
	result := "captured"
	if !captured {
		result = "none"
	}
	pm.bannersTotal.WithLabelValues(result).Inc()
}

// WorkerStarted increments the active worker gauge
func (pm *PrometheusMetrics) WorkerStarted() {
	pm.workersActive.Inc()
}

// WorkerStopped decrements the active worker gauge
func (pm *PrometheusMetrics) WorkerStopped() {
	pm.workersActive.Dec()
}

// ObserveScan records a scan's status and duration
func (pm *PrometheusMetrics) ObserveScan(status string, duration time.Duration) {
	pm.scansTotal.WithLabelValues(status).Inc()
	pm.scanDuration.Observe(duration.Seconds())
}

// UpdateSystemMetrics updates all system metrics with current values
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.goroutines.Set(float64(runtime.NumGoroutine()))
	pm.uptime.Set(time.Since(pm.startTime).Seconds())
}

// WriteTextfile refreshes system metrics and writes the registry to path in
// the Prometheus text exposition format.
func (pm *PrometheusMetrics) WriteTextfile(path string) error {
	pm.UpdateSystemMetrics()
	return prometheus.WriteToTextfile(path, pm.registry)
}
