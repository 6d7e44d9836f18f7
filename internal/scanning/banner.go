package scanning

import (
	"errors"
	"net"
	"strings"
	"time"
	"unicode/utf8"
)

// NoBanner is reported for open ports that yielded no usable banner.
const NoBanner = "No banner"

// bannerProbe is a minimal HTTP request; many services answer anything with
// their greeting, and HTTP servers need a request before they respond.
var bannerProbe = []byte("GET / HTTP/1.1\r\n\r\n")

var (
	errEmptyBanner   = errors.New("empty banner")
	errInvalidBanner = errors.New("banner is not valid UTF-8")
)

// BannerConfig controls banner capture.
type BannerConfig struct {
	// Timeout bounds the write and the read, independent of the connect timeout
	Timeout time.Duration
	// MaxBytes caps the number of bytes read
	MaxBytes int
}

// DefaultBannerConfig returns the default banner settings.
func DefaultBannerConfig() BannerConfig {
	return BannerConfig{
		Timeout:  2 * time.Second,
		MaxBytes: 1024,
	}
}

// BannerResult is the outcome of a banner capture. When OK is false, Err
// holds the reason and Text reports NoBanner.
type BannerResult struct {
	OK     bool
	Banner string
	Err    error
}

// Text returns the captured banner or NoBanner.
func (b BannerResult) Text() string {
	if !b.OK {
		return NoBanner
	}
	return b.Banner
}

// GrabBanner sends a probe on conn and reads the peer's reply. It never
// fails: any error is reported in the result. The caller owns conn.
func GrabBanner(conn net.Conn, cfg BannerConfig) BannerResult {
	if cfg.Timeout <= 0 || cfg.MaxBytes <= 0 {
		def := DefaultBannerConfig()
		if cfg.Timeout <= 0 {
			cfg.Timeout = def.Timeout
		}
		if cfg.MaxBytes <= 0 {
			cfg.MaxBytes = def.MaxBytes
		}
	}

	if err := conn.SetDeadline(time.Now().Add(cfg.Timeout)); err != nil {
		return BannerResult{Err: err}
	}
	if _, err := conn.Write(bannerProbe); err != nil {
		return BannerResult{Err: err}
	}

	buf := make([]byte, cfg.MaxBytes)
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil {
			err = errEmptyBanner
		}
		return BannerResult{Err: err}
	}

	// A short read followed by an error still carries usable bytes.
	data := buf[:n]
	if !utf8.Valid(data) {
		return BannerResult{Err: errInvalidBanner}
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return BannerResult{Err: errEmptyBanner}
	}
	return BannerResult{OK: true, Banner: text}
}
