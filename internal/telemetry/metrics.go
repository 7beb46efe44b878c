// Package telemetry exposes Prometheus counters for composite runs.
package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pixelsComposited *prometheus.CounterVec
	yearsProcessed   *prometheus.CounterVec
	yearDuration     *prometheus.HistogramVec
	schemaDrifts     *prometheus.CounterVec
	outputsWritten   *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		pixelsComposited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pixels_composited_total",
				Help:      "Pixels reduced to an annual feature vector",
			},
			[]string{"collection", "region"},
		),
		yearsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "years_processed_total",
				Help:      "Annual composites built, by rolling metrics state",
			},
			[]string{"collection", "state"},
		),
		yearDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "year_duration_seconds",
				Help:      "Time to build one annual composite of one region",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"collection"},
		),
		schemaDrifts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_drifts_total",
				Help:      "Composites rejected for a band set differing from the collection schema",
			},
			[]string{"collection"},
		),
		outputsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outputs_written_total",
				Help:      "Packed composites written, or skipped because already exported",
			},
			[]string{"collection", "result"},
		),
	}
	registry.MustRegister(m.pixelsComposited, m.yearsProcessed, m.yearDuration, m.schemaDrifts, m.outputsWritten)
	return m
}

func (m *Metrics) PixelsComposited(collection, region string, n int) {
	if m == nil {
		return
	}
	m.pixelsComposited.WithLabelValues(collection, region).Add(float64(n))
}

func (m *Metrics) YearProcessed(collection, state string, took time.Duration) {
	if m == nil {
		return
	}
	m.yearsProcessed.WithLabelValues(collection, state).Inc()
	m.yearDuration.WithLabelValues(collection).Observe(took.Seconds())
}

func (m *Metrics) SchemaDrift(collection string) {
	if m == nil {
		return
	}
	m.schemaDrifts.WithLabelValues(collection).Inc()
}

func (m *Metrics) OutputWritten(collection string, skipped bool) {
	if m == nil {
		return
	}
	result := "written"
	if skipped {
		result = "skipped"
	}
	m.outputsWritten.WithLabelValues(collection, result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Serve exposes /metrics on addr until the server fails.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
