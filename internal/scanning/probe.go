package scanning

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/anstrom/scanprobe/internal/catalog"
	"github.com/anstrom/scanprobe/internal/logging"
)

//go:generate mockgen -destination=mocks/mock_prober.go -package=mocks github.com/anstrom/scanprobe/internal/scanning Prober

// Prober performs a single connection attempt against one port.
// Implementations must never panic or block past timeout plus banner timeout.
type Prober interface {
	Probe(ctx context.Context, host string, port uint16, timeout time.Duration) Outcome
}

// TCPProber is the full-connect Prober.
type TCPProber struct {
	Banner      BannerConfig
	GrabBanners bool
	logger      *logging.Logger
}

// NewTCPProber creates a prober that captures banners using cfg.
func NewTCPProber(cfg BannerConfig, grabBanners bool) *TCPProber {
	return &TCPProber{
		Banner:      cfg,
		GrabBanners: grabBanners,
		logger:      logging.Default().WithComponent("prober"),
	}
}

// Probe dials host:port and classifies the result.
func (p *TCPProber) Probe(ctx context.Context, host string, port uint16, timeout time.Duration) Outcome {
	start := time.Now()
	outcome := Outcome{Port: port}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		if isClosed(err) {
			outcome.State = StateClosed
		} else {
			outcome.State = StateErrored
			outcome.Err = err
		}
		outcome.Duration = time.Since(start)
		p.logger.DebugPort("Probe failed", port, "state", outcome.State, "error", err)
		return outcome
	}
	defer func() { _ = conn.Close() }()

	outcome.State = StateOpen
	outcome.Service = catalog.Lookup(port)
	if p.GrabBanners {
		outcome.Banner = GrabBanner(conn, p.Banner)
		if outcome.Banner.Err != nil {
			p.logger.DebugPort("No banner captured", port, "error", outcome.Banner.Err)
		}
	}
	outcome.Duration = time.Since(start)
	return outcome
}

// isClosed reports whether a dial error means the port is simply not
// accepting connections: refused or timed out.
func isClosed(err error) bool {
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	if stderrors.Is(err, os.ErrDeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
