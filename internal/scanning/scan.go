package scanning

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/anstrom/scanprobe/internal/errors"
	"github.com/anstrom/scanprobe/internal/logging"
	"github.com/anstrom/scanprobe/internal/metrics"
	"github.com/anstrom/scanprobe/internal/workers"
)

// Scan status labels reported to the metrics recorder.
const (
	statusCompleted   = "completed"
	statusInvalid     = "invalid"
	statusUnreachable = "unreachable"
)

// ResultStore persists finished scans. Storage failures never fail a scan.
type ResultStore interface {
	SaveScan(ctx context.Context, result *ScanResult) error
}

// Options configures a Scanner.
type Options struct {
	// Workers is the fixed worker pool size, independent of the range size
	Workers int
	// ReachabilityPort and ReachabilityTimeout drive the pre-scan gate
	ReachabilityPort    uint16
	ReachabilityTimeout time.Duration
	// Banner controls banner capture on open ports
	Banner      BannerConfig
	GrabBanners bool
	// Output receives the header, live results and verbose lines
	Output io.Writer
	// Recorder receives scan metrics; nil disables them
	Recorder metrics.Recorder
	// Store persists results when set
	Store ResultStore
}

// DefaultOptions returns the settings of a plain scan: 100 workers,
// reachability checked on port 80 within one second, banners on.
func DefaultOptions() Options {
	return Options{
		Workers:             workers.DefaultSize,
		ReachabilityPort:    80,
		ReachabilityTimeout: time.Second,
		Banner:              DefaultBannerConfig(),
		GrabBanners:         true,
		Output:              os.Stdout,
	}
}

// Scanner coordinates a scan: it gates on reachability, fills the work
// queue and runs the worker pool until every port has been probed.
type Scanner struct {
	opts     Options
	prober   Prober
	recorder metrics.Recorder
	logger   *logging.Logger
}

// NewScanner creates a scanner using a TCPProber built from opts.
func NewScanner(opts Options) *Scanner {
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Workers <= 0 {
		opts.Workers = workers.DefaultSize
	}
	if opts.ReachabilityPort == 0 {
		opts.ReachabilityPort = 80
	}
	if opts.ReachabilityTimeout <= 0 {
		opts.ReachabilityTimeout = time.Second
	}

	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	return &Scanner{
		opts:     opts,
		prober:   NewTCPProber(opts.Banner, opts.GrabBanners),
		recorder: recorder,
		logger:   logging.Default().WithComponent("scanner"),
	}
}

// WithProber replaces the prober used for every port.
func (s *Scanner) WithProber(p Prober) *Scanner {
	s.prober = p
	return s
}

// IsHostReachable makes one bounded connection attempt to the reachability
// port. Any failure, including name resolution, counts as unreachable.
func (s *Scanner) IsHostReachable(ctx context.Context, host string) bool {
	dialer := net.Dialer{Timeout: s.opts.ReachabilityTimeout}
	addr := net.JoinHostPort(host, strconv.Itoa(int(s.opts.ReachabilityPort)))

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		s.logger.Debug("Reachability check failed", "target", host, "address", addr, "error", err)
		return false
	}
	_ = conn.Close()
	return true
}

// Run executes job and returns once every port in its range was probed.
// Validation and reachability failures are returned before any worker starts.
func (s *Scanner) Run(ctx context.Context, job *ScanJob) (*ScanResult, error) {
	scanStart := time.Now()

	if err := job.Validate(); err != nil {
		s.recorder.ObserveScan(statusInvalid, time.Since(scanStart))
		return nil, err
	}

	logger := s.logger.WithScanID(job.ID.String()).WithTarget(job.Host)
	logger.Info("Starting scan operation",
		"start_port", job.StartPort,
		"end_port", job.EndPort,
		"timeout", job.Timeout,
		"workers", s.opts.Workers)

	if !s.IsHostReachable(ctx, job.Host) {
		s.recorder.ObserveScan(statusUnreachable, time.Since(scanStart))
		logger.Warn("Host unreachable, scan aborted", "reachability_port", s.opts.ReachabilityPort)
		return nil, errors.ErrHostUnreachable(job.Host)
	}

	fmt.Fprintf(s.opts.Output, "Scanning %s from port %d to %d...\n", job.Host, job.StartPort, job.EndPort)

	results := NewResults(s.opts.Output)
	queue := workers.NewQueue(job.PortCount())
	for port := job.StartPort; port <= job.EndPort; port++ {
		queue.Push(uint16(port))
	}

	var probed, closed, errored atomic.Int64
	handler := func(ctx context.Context, _ int, port uint16) {
		outcome := s.prober.Probe(ctx, job.Host, port, job.Timeout)
		outcome.Port = port
		probed.Add(1)
		s.recorder.ObservePort(string(outcome.State), outcome.Duration)

		switch outcome.State {
		case StateOpen:
			s.recorder.ObserveBanner(outcome.Banner.OK)
			results.Add(outcome.Result())
		case StateClosed:
			closed.Add(1)
			if job.Verbose {
				results.Printf("Port %d is closed\n", port)
			}
		default:
			errored.Add(1)
			if job.Verbose {
				results.Printf("Error scanning port %d: %v\n", port, outcome.Err)
			}
		}
	}

	pool := workers.New(workers.Config{Size: s.opts.Workers}, queue, handler, s.recorder)
	pool.Start(ctx)
	queue.Wait()
	pool.Wait()

	result := NewScanResult(job)
	result.StartTime = scanStart
	result.Ports = results.Sorted()
	result.Probed = int(probed.Load())
	result.Closed = int(closed.Load())
	result.Errored = int(errored.Load())
	result.Complete()

	s.recorder.ObserveScan(statusCompleted, result.Duration)
	logger.Info("Scan operation completed",
		"duration", result.Duration,
		"probed", result.Probed,
		"open", result.Open(),
		"closed", result.Closed,
		"errored", result.Errored)

	if s.opts.Store != nil {
		if err := s.opts.Store.SaveScan(ctx, result); err != nil {
			s.logger.ErrorScan("Failed to store scan results", job.Host, err,
				"scan_id", job.ID.String(),
				"open_ports", result.Open())
		}
	}

	return result, nil
}
