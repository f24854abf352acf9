package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New(Options{Enabled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected logger instance")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info level to be enabled")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be suppressed")
	}
	_ = logger.Sync()
}

func TestNewDisabledKeepsErrors(t *testing.T) {
	logger, err := New(Options{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info level to be suppressed")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("expected error level to stay enabled")
	}
	_ = logger.Sync()
}

func TestInitialFields(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want map[string]any
	}{
		{name: "none", opts: Options{Enabled: true}, want: nil},
		{name: "environment only", opts: Options{Environment: "Staging"}, want: map[string]any{"environment": "Staging"}},
		{
			name: "environment and instance",
			opts: Options{Environment: "Staging", InstanceID: "i-0abc"},
			want: map[string]any{"environment": "Staging", "instance_id": "i-0abc"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := initialFields(tc.opts)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Fatalf("expected %s=%v, got %v", k, v, got[k])
				}
			}
		})
	}
}
