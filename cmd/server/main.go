package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/secretorange/awsboot/internal/application"
	"github.com/secretorange/awsboot/internal/awsenv"
	"github.com/secretorange/awsboot/internal/config"
	"github.com/secretorange/awsboot/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("awsboot", "Resolves instance environment and parameters from AWS, then serves the merged settings")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	settingsDir := kingpinApp.Flag("settings-dir", "Directory holding appsettings YAML files").String()
	region := kingpinApp.Flag("region", "AWS region (resolved from instance metadata when empty)").String()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *settingsDir != "" {
		overrides.SettingsDir = settingsDir
	}

	if *region != "" {
		overrides.Region = region
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(logging.Options{Enabled: true})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := awsenv.NewMetrics(registry)
	session := awsenv.NewSession(cfg.AWS.Region, nil)

	ctx := context.Background()
	resolver, identity := application.NewResolver(cfg.AWS, session, metrics, logger)
	bundle, err := resolver.Resolve(ctx)
	if err != nil {
		logger.Fatal("failed to resolve boot configuration", zap.Error(err))
	}

	_ = logger.Sync()
	logger, err = logging.New(logging.Options{
		Enabled:     bundle.LoggingEnabled,
		Environment: bundle.Environment,
		InstanceID:  identity.InstanceID(ctx),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(ctx, cfg, bundle, identity, registry, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
