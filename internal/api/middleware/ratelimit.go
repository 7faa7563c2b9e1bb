package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nikhilbhutani/speechgate/internal/tts"
)

// WindowCounter is a shared fixed-window counter, backed by redis in
// production.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client address. With a WindowCounter the
// limit is shared across replicas; if the counter fails, the in-process
// token bucket decides.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int

	counter  WindowCounter
	onReject func()
	stop     chan struct{}
	once     sync.Once
}

// RateLimiterOption customises a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithWindowCounter shares the limit through counter.
func WithWindowCounter(counter WindowCounter) RateLimiterOption {
	return func(rl *RateLimiter) { rl.counter = counter }
}

// WithRejectHook is called for every rejected request.
func WithRejectHook(fn func()) RateLimiterOption {
	return func(rl *RateLimiter) { rl.onReject = fn }
}

func NewRateLimiter(rps float64, burst int, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.Context(), clientKey(r)) {
			if rl.onReject != nil {
				rl.onReject()
			}
			w.Header().Set("Retry-After", "1")
			writeAPIError(w, tts.Normalize(tts.Classify(tts.ErrRateLimited, nil, "rate limit exceeded")))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) bool {
	if rl.counter != nil {
		limit := int64(math.Max(math.Ceil(float64(rl.rate)), float64(rl.burst)))
		n, err := rl.counter.IncrWindow(ctx, "ratelimit:"+key, time.Second)
		if err == nil {
			return n <= limit
		}
		slog.Debug("shared rate limit unavailable, using local limiter", "error", err)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// Close stops the background cleanup.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		for key, v := range rl.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
