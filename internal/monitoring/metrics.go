package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Cook outcomes used as metric labels
const (
	OutcomeSuccess      = "success"
	OutcomeInsufficient = "insufficient_stock"
	OutcomeInvalid      = "invalid_request"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
)

// MetricsCollector owns the Prometheus registry exported on the ops port.
type MetricsCollector struct {
	registry *prometheus.Registry
	metrics  map[string]prometheus.Collector
}

// NewMetricsCollector creates a collector with the service metrics and the Go
// runtime collectors registered.
func NewMetricsCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()

	cookRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplytrack_cook_requests_total",
			Help: "Cook requests by outcome",
		},
		[]string{"outcome"},
	)

	cookDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supplytrack_cook_duration_seconds",
			Help:    "Time taken to plan and commit a cook",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	cookRetries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supplytrack_cook_retries_total",
			Help: "Cook attempts repeated after a concurrent stock change",
		},
	)

	batchesTouched := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supplytrack_cook_batches_touched",
			Help:    "Ingredient batches decremented by one cook",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)

	transitEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplytrack_transit_events_total",
			Help: "Transit dispatches and arrivals",
		},
		[]string{"event"},
	)

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplytrack_http_requests_total",
			Help: "API requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	metrics := map[string]prometheus.Collector{
		"cook_requests":   cookRequests,
		"cook_duration":   cookDuration,
		"cook_retries":    cookRetries,
		"batches_touched": batchesTouched,
		"transit_events":  transitEvents,
		"http_requests":   httpRequests,
	}

	for _, metric := range metrics {
		registry.MustRegister(metric)
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsCollector{
		registry: registry,
		metrics:  metrics,
	}
}

// Registry exposes the underlying registry for the metrics handler.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// RecordCook records the outcome and latency of one cook request.
func (mc *MetricsCollector) RecordCook(outcome string, duration time.Duration) {
	if counter, ok := mc.metrics["cook_requests"].(*prometheus.CounterVec); ok {
		counter.WithLabelValues(outcome).Inc()
	}
	if histogram, ok := mc.metrics["cook_duration"].(*prometheus.HistogramVec); ok {
		histogram.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// RecordCookRetry counts one repeated cook attempt.
func (mc *MetricsCollector) RecordCookRetry() {
	if counter, ok := mc.metrics["cook_retries"].(prometheus.Counter); ok {
		counter.Inc()
	}
}

// RecordBatchesTouched records how many batches a successful cook decremented.
func (mc *MetricsCollector) RecordBatchesTouched(n int) {
	if histogram, ok := mc.metrics["batches_touched"].(prometheus.Histogram); ok {
		histogram.Observe(float64(n))
	}
}

// RecordTransit counts a transit event such as "dispatched" or "arrived".
func (mc *MetricsCollector) RecordTransit(event string) {
	if counter, ok := mc.metrics["transit_events"].(*prometheus.CounterVec); ok {
		counter.WithLabelValues(event).Inc()
	}
}

// RecordHTTPRequest counts a served API request.
func (mc *MetricsCollector) RecordHTTPRequest(method, route string, status int) {
	if counter, ok := mc.metrics["http_requests"].(*prometheus.CounterVec); ok {
		counter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
}
