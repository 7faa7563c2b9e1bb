package daemon

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SaturationPolicy decides what a call does when every permit is taken.
type SaturationPolicy string

const (
	// SaturationWait blocks for a permit. The wait counts against the
	// request timeout, so queued callers are bounded in time.
	SaturationWait SaturationPolicy = "wait"
	// SaturationReject fails immediately with ErrSaturated.
	SaturationReject SaturationPolicy = "reject"
)

// Config is loaded once at startup and shared read-only by every call.
type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	MaxConcurrency int
	HealthPath     string
	VoicesPath     string
	TTSPath        string
	Saturation     SaturationPolicy
}

// DefaultConfig mirrors the daemon's documented defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://127.0.0.1:9000",
		ConnectTimeout: 500 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
		MaxConcurrency: 32,
		HealthPath:     "/health",
		VoicesPath:     "/voices",
		TTSPath:        "/tts",
		Saturation:     SaturationWait,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("daemon base url %q must be an absolute http(s) url", c.BaseURL))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("daemon connect timeout must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("daemon request timeout must be positive"))
	}
	if c.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("daemon max concurrency must be greater than 0"))
	}
	switch c.Saturation {
	case SaturationWait, SaturationReject:
	default:
		errs = append(errs, fmt.Errorf("unknown saturation policy %q", c.Saturation))
	}
	return errors.Join(errs...)
}

// NormalizePath ensures a leading slash.
func NormalizePath(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
