package awsenv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	serviceIMDS = "imds"
	serviceEC2  = "ec2"
	serviceSSM  = "ssm"

	resultSuccess = "success"
	resultError   = "error"
)

// Metrics records remote calls issued while resolving the boot configuration.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "awsboot_remote_calls_total",
				Help: "Total number of remote calls issued during boot resolution",
			},
			[]string{"service", "operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "awsboot_remote_call_duration_seconds",
				Help:    "Latency of remote calls issued during boot resolution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.duration)
	}
	return m
}

func (m *Metrics) observe(service, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	m.calls.WithLabelValues(service, operation, result).Inc()
	m.duration.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
}
