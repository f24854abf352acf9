package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Enabled mirrors the boot bundle's logging flag. A disabled logger still
	// emits errors.
	Enabled bool
	// Environment and InstanceID are attached to every entry when set.
	Environment string
	InstanceID  string
}

// New creates a production JSON logger on stderr.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if !opts.Enabled {
		level = zapcore.ErrorLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.InitialFields = initialFields(opts)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func initialFields(opts Options) map[string]any {
	fields := make(map[string]any, 2)
	if opts.Environment != "" {
		fields["environment"] = opts.Environment
	}
	if opts.InstanceID != "" {
		fields["instance_id"] = opts.InstanceID
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
