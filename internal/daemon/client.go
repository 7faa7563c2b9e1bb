// Package daemon is the HTTP client for the co-located gwent synthesis daemon.
//
// Synthesis and voice listing share a fixed pool of permits sized by
// Config.MaxConcurrency. Every call makes exactly one attempt; retries are
// left to the caller.
package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const maxErrorBody = 4 << 10

// PermitObserver is notified on every permit acquisition and release.
type PermitObserver interface {
	PermitAcquired(wait time.Duration)
	PermitReleased()
}

// Stats is a snapshot of the permit pool counters.
type Stats struct {
	Acquired    int64
	Released    int64
	InFlight    int64
	MaxInFlight int64
	Rejected    int64
}

// Request is the synthesis body posted to the daemon.
type Request struct {
	Text         string  `json:"text"`
	Voice        string  `json:"voice"`
	SpeakingRate float64 `json:"speaking_rate"`
	Format       string  `json:"format"`
	MaxLength    *int    `json:"max_length,omitempty"`
}

// Audio is a synthesis answer. ContentType is empty when the daemon did not
// send one.
type Audio struct {
	Data        []byte
	ContentType string
}

// Client talks to the gwent daemon over HTTP. Every call holds one permit
// from a pool sized by MaxConcurrency; dialing is bounded by ConnectTimeout
// and each whole call by RequestTimeout.
type Client struct {
	cfg      Config
	base     *url.URL
	http     *http.Client
	permits  *semaphore.Weighted
	observer PermitObserver

	acquired    atomic.Int64
	released    atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	rejected    atomic.Int64
}

// Option customises a Client.
type Option func(*Client)

// WithPermitObserver installs an observer for permit traffic.
func WithPermitObserver(o PermitObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient validates cfg and builds a client with independent connect and
// request timeouts.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.HealthPath = NormalizePath(cfg.HealthPath)
	cfg.VoicesPath = NormalizePath(cfg.VoicesPath)
	cfg.TTSPath = NormalizePath(cfg.TTSPath)
	if cfg.Saturation == "" {
		cfg.Saturation = SaturationWait
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse daemon url: %w", err)
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxConcurrency,
		MaxIdleConnsPerHost: cfg.MaxConcurrency,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		cfg:  cfg,
		base: base,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		permits: semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Stats returns the current permit counters.
func (c *Client) Stats() Stats {
	return Stats{
		Acquired:    c.acquired.Load(),
		Released:    c.released.Load(),
		InFlight:    c.inFlight.Load(),
		MaxInFlight: c.maxInFlight.Load(),
		Rejected:    c.rejected.Load(),
	}
}

// acquire takes one permit. The returned release func is idempotent and
// must be deferred by the caller.
func (c *Client) acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	if c.cfg.Saturation == SaturationReject {
		if !c.permits.TryAcquire(1) {
			c.rejected.Add(1)
			return nil, ErrSaturated
		}
	} else if err := c.permits.Acquire(ctx, 1); err != nil {
		return nil, c.classify(ctx, fmt.Errorf("waiting for permit: %w", err))
	}

	c.acquired.Add(1)
	n := c.inFlight.Add(1)
	for {
		peak := c.maxInFlight.Load()
		if n <= peak || c.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if c.observer != nil {
		c.observer.PermitAcquired(time.Since(start))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.inFlight.Add(-1)
			c.released.Add(1)
			c.permits.Release(1)
			if c.observer != nil {
				c.observer.PermitReleased()
			}
		})
	}, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = path
	u.RawQuery = ""
	return u.String()
}

// classify separates timeouts from other transport failures.
func (c *Client) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, c.cfg.RequestTimeout, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// Health probes the health path. A nil error means healthy; any failure,
// including a timeout, is reported as ErrUnavailable.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.cfg.HealthPath), nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, c.classify(ctx, err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health check returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Voices fetches and normalizes the daemon voice list.
func (c *Client) Voices(ctx context.Context) (*VoiceSet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.cfg.VoicesPath), nil)
	if err != nil {
		return nil, fmt.Errorf("build voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, _, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	voices, err := ParseVoices(body)
	if err != nil {
		return nil, err
	}
	return &VoiceSet{Voices: voices, Raw: json.RawMessage(body)}, nil
}

// Synthesize posts req and returns the raw audio.
func (c *Client) Synthesize(ctx context.Context, r Request) (*Audio, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.cfg.TTSPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, header, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Audio{Data: body, ContentType: header.Get("Content-Type")}, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, http.Header, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, c.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, c.classify(ctx, fmt.Errorf("read body: %w", err))
	}
	return body, resp.Header, nil
}

// CheckStartup logs the daemon's health and voice count, and warns about each
// expected voice the daemon does not list. It returns the missing voices and
// never fails startup.
func (c *Client) CheckStartup(ctx context.Context, expected ...string) []string {
	if err := c.Health(ctx); err != nil {
		slog.Warn("gwent daemon healthcheck failed", "url", c.cfg.BaseURL, "error", err)
		return nil
	}
	slog.Info("gwent daemon healthcheck passed", "url", c.cfg.BaseURL)

	set, err := c.Voices(ctx)
	if err != nil {
		slog.Warn("failed to fetch gwent daemon voices", "error", err)
		return nil
	}
	if len(set.Voices) == 0 {
		slog.Warn("gwent daemon reported no voices")
	} else {
		slog.Info("gwent daemon voices loaded", "count", len(set.Voices))
	}

	var missing []string
	for _, v := range expected {
		if v != "" && !slices.ContainsFunc(set.Voices, func(have Voice) bool { return have.ID == v }) {
			slog.Warn("configured gwent voice not offered by daemon", "voice", v)
			missing = append(missing, v)
		}
	}
	return missing
}
