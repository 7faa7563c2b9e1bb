package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/speechgate/internal/api/handlers"
	"github.com/nikhilbhutani/speechgate/internal/api/middleware"
	"github.com/nikhilbhutani/speechgate/internal/cache"
	"github.com/nikhilbhutani/speechgate/internal/config"
	"github.com/nikhilbhutani/speechgate/internal/metrics"
	"github.com/nikhilbhutani/speechgate/internal/tts"
)

// Router owns the chi mux and the dependencies the handlers share.
type Router struct {
	mux      *chi.Mux
	cfg      *config.Config
	registry *tts.Registry
	metrics  *metrics.Metrics
	cache    *cache.Cache
	checks   map[string]handlers.Check
}

// NewRouter wires the HTTP surface. c may be nil when redis is not
// configured.
func NewRouter(cfg *config.Config, registry *tts.Registry, m *metrics.Metrics, c *cache.Cache, checks map[string]handlers.Check) *Router {
	if checks == nil {
		checks = map[string]handlers.Check{}
	}
	if c != nil {
		checks["redis"] = c.Ping
	}
	return &Router{
		mux:      chi.NewRouter(),
		cfg:      cfg,
		registry: registry,
		metrics:  m,
		cache:    c,
		checks:   checks,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	// Health and metrics endpoints (no auth)
	health := handlers.NewHealthHandler(rt.checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler())
	}

	var observer tts.Observer
	if rt.metrics != nil {
		observer = rt.metrics
	}
	ttsH := handlers.NewTTSHandler(tts.NewDispatcher(rt.registry, observer))

	r.Group(func(r chi.Router) {
		// Auth runs before anything that could reveal which modes exist.
		r.Use(middleware.SharedSecret(rt.cfg.Auth.Secret))

		if rt.cfg.RateLimit.RPS > 0 {
			var opts []middleware.RateLimiterOption
			if rt.cache != nil {
				opts = append(opts, middleware.WithWindowCounter(rt.cache))
			}
			if rt.metrics != nil {
				opts = append(opts, middleware.WithRejectHook(rt.metrics.RateLimited))
			}
			rl := middleware.NewRateLimiter(rt.cfg.RateLimit.RPS, rt.cfg.RateLimit.Burst, opts...)
			r.Use(rl.Limit)
		}

		r.Get("/tts", ttsH.Speak)
		r.Get("/voices", ttsH.Voices)
		r.Get("/modes", ttsH.Modes)
	})

	return r
}
