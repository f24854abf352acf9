package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/secretorange/awsboot/internal/api"
	"github.com/secretorange/awsboot/internal/awsenv"
	"github.com/secretorange/awsboot/internal/boot"
	"github.com/secretorange/awsboot/internal/config"
	"github.com/secretorange/awsboot/internal/settings"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	bundle   boot.Bundle
	settings *settings.Store
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// NewResolver wires the boot resolver against the AWS session. The returned
// probe is shared with the resolver so the instance id is looked up only once.
func NewResolver(cfg config.AWSConfig, session *awsenv.Session, metrics *awsenv.Metrics, logger *zap.Logger) (*boot.Resolver, *boot.IdentityProbe) {
	probe := boot.NewIdentityProbe(awsenv.NewMetadataClient(session.IMDS(), cfg.MetadataTimeout, logger, metrics))
	tags := boot.NewTagStore(probe, awsenv.NewInstanceDescriber(session.EC2(), metrics))

	limit := rate.Inf
	if cfg.ParameterRPS > 0 {
		limit = rate.Limit(cfg.ParameterRPS)
	}
	fetcher := boot.NewParameterFetcher(
		awsenv.NewParameterStore(session.SSM(), cfg.ParameterPageSize, metrics),
		boot.WithPageLimiter(rate.NewLimiter(limit, 1)),
	)

	return boot.NewResolver(probe, tags, fetcher, boot.WithLogger(logger)), probe
}

// New builds the layered settings for bundle and the HTTP server that exposes them.
func New(ctx context.Context, cfg config.Config, bundle boot.Bundle, identity boot.Identity, registry *prometheus.Registry, logger *zap.Logger) (*App, error) {
	dir := resolveSettingsDir(cfg.SettingsDir)
	if dir == "" {
		logger.Warn("settings directory not found, using parameters only", zap.String("settings_dir", cfg.SettingsDir))
	}

	store, err := settings.Load(dir, bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	logger.Info("settings loaded",
		zap.String("environment", store.Environment()),
		zap.String("settings_dir", dir),
		zap.Int("keys", store.Len()),
	)

	env := api.Environment{
		Name:           bundle.Environment,
		LoggingEnabled: bundle.LoggingEnabled,
		ParameterCount: len(bundle.Parameters),
	}
	if identity != nil {
		env.Managed = identity.IsManagedInstance(ctx)
		env.InstanceID = identity.InstanceID(ctx)
	}

	routerOpts := []api.RouterOption{
		api.WithLogging(cfg.EnableRequestLogging && bundle.LoggingEnabled),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	var metricsHandler http.Handler
	if registry != nil {
		routerOpts = append(routerOpts, api.WithMetrics(registry))
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorHandling: promhttp.ContinueOnError,
		})
	}

	handler := api.NewHandler(env, store)
	apiRouter := api.NewRouter(handler, logger, routerOpts...)

	return &App{
		bundle:   bundle,
		settings: store,
		handler:  handler,
		router:   apiRouter,
		logger:   logger,
		server:   NewServer(cfg, BuildRootHandler(apiRouter, metricsHandler)),
	}, nil
}

// BuildRootHandler mounts the API under /api/ and, when provided, the metrics
// handler at /metrics.
func BuildRootHandler(apiHandler, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/api/environment", http.StatusFound)
	}))
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening",
			zap.String("addr", a.server.Addr),
			zap.String("environment", a.bundle.Environment),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Settings returns the merged settings.
func (a *App) Settings() *settings.Store {
	return a.settings
}

// resolveSettingsDir returns dir when it is absolute and exists. Relative
// directories are searched for upwards from the working directory. An empty
// result means no settings files are available.
func resolveSettingsDir(dir string) string {
	if dir == "" {
		return ""
	}
	if filepath.IsAbs(dir) {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		return ""
	}
	path, err := resolveProjectPath(dir)
	if err != nil {
		return ""
	}
	return path
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
