package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	defaultRateLimitRPS   = 25
	defaultRateLimitBurst = 50
)

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) RouterOption {
	return func(cfg *routerConfig) {
		cfg.accessLog = enabled
	}
}

// WithRateLimit configures per-client token buckets. A zero rate or burst
// disables rate limiting.
func WithRateLimit(ratePerSecond float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		if ratePerSecond <= 0 || burst <= 0 {
			cfg.limiter = nil
			return
		}
		cfg.limiter = newClientLimiter(ratePerSecond, burst)
	}
}

// WithRateLimiter overrides the request rate limiter.
func WithRateLimiter(limiter rateLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.limiter = limiter
	}
}

// WithMetrics registers request counters with reg.
func WithMetrics(reg prometheus.Registerer) RouterOption {
	return func(cfg *routerConfig) {
		cfg.registerer = reg
	}
}

type routerConfig struct {
	accessLog  bool
	limiter    rateLimiter
	registerer prometheus.Registerer
}

// NewRouter serves the read-only introspection API under /api/.
func NewRouter(handler *Handler, logger *zap.Logger, opts ...RouterOption) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := routerConfig{
		accessLog: true,
		limiter:   newClientLimiter(defaultRateLimitRPS, defaultRateLimitBurst),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handler.handleHealth)
	mux.HandleFunc("GET /api/environment", handler.handleEnvironment)
	mux.HandleFunc("GET /api/settings", handler.handleSettings)
	mux.HandleFunc("GET /api/settings/{key}", handler.handleSetting)

	var access, metrics middleware
	if cfg.accessLog {
		access = accessLogMiddleware(logger)
	}
	if cfg.registerer != nil {
		metrics = newRequestMetrics(cfg.registerer).middleware
	}

	return chain(mux,
		requestIDMiddleware,
		rateLimitMiddleware(cfg.limiter),
		access,
		metrics,
		recoveryMiddleware(logger),
		corsMiddleware,
	)
}
