// Package telemetry counts external metric invocations in Prometheus
// collectors on a private registry.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Invocations     *prometheus.CounterVec
	InvokeDuration  prometheus.Histogram
	ExchangeBytes   prometheus.Counter
	Evaluations     *prometheus.CounterVec
	CompressionRate prometheus.Histogram

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		Invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extmetrics_invocations_total",
				Help: "External metric invocations by published error code",
			},
			[]string{"error_code"},
		),
		InvokeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "extmetrics_invoke_duration_seconds",
			Help:    "Wall time from spawn to reap of the external metrics program",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
		}),
		ExchangeBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "extmetrics_exchange_bytes_total",
			Help: "Bytes of buffer data staged into exchange files",
		}),
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extmetrics_evaluations_total",
				Help: "Evaluation cycles by outcome",
			},
			[]string{"outcome"},
		),
		CompressionRate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "extmetrics_compression_ratio",
			Help:    "Uncompressed over compressed size per evaluation",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.Invocations, m.InvokeDuration, m.ExchangeBytes, m.Evaluations, m.CompressionRate)
	return m
}

// ObserveInvocation is safe to call on a nil receiver.
func (m *Metrics) ObserveInvocation(errorCode int32, d time.Duration) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(fmt.Sprint(errorCode)).Inc()
	m.InvokeDuration.Observe(d.Seconds())
}

func (m *Metrics) AddExchangeBytes(n int) {
	if m == nil {
		return
	}
	m.ExchangeBytes.Add(float64(n))
}

func (m *Metrics) ObserveEvaluation(outcome string, ratio float64) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(outcome).Inc()
	if ratio > 0 {
		m.CompressionRate.Observe(ratio)
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile dumps every collector in the exposition format, for node
// exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
