package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_GetMetrics(t *testing.T) {
	m := NewMonitor()
	m.RecordMetric("test_metric", 42)

	metrics := m.GetMetrics()

	value, exists := metrics["test_metric"]
	require.True(t, exists)
	assert.Equal(t, 42, value)

	_, exists = metrics["uptime_seconds"]
	assert.True(t, exists)
}

func TestMonitor_Increment(t *testing.T) {
	m := NewMonitor()
	m.Increment("transits_dispatched", 1)
	m.Increment("transits_dispatched", 2)

	value, ok := m.GetMetric("transits_dispatched")
	require.True(t, ok)
	assert.Equal(t, int64(3), value)
}

func TestMonitor_RecordCookResult(t *testing.T) {
	m := NewMonitor()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m.RecordCookResult("n1", OutcomeSuccess, at)
	m.RecordCookResult("n1", OutcomeSuccess, at)
	m.RecordCookResult("n2", OutcomeInsufficient, at)

	metrics := m.GetMetrics()
	assert.Equal(t, int64(2), metrics["cooks_success"])
	assert.Equal(t, int64(1), metrics["cooks_insufficient_stock"])
	assert.Equal(t, int64(2), metrics["node_n1_cooks_success"])
	assert.Equal(t, "2024-03-01T12:00:00Z", metrics["node_n1_last_cook"])
}

func TestMonitor_Reset(t *testing.T) {
	m := NewMonitor()
	m.RecordMetric("test_metric", 42)

	m.Reset()

	metrics := m.GetMetrics()
	_, exists := metrics["test_metric"]
	assert.False(t, exists)

	// uptime is added on every read
	_, exists = metrics["uptime_seconds"]
	assert.True(t, exists)
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()

	mc.RecordCook(OutcomeSuccess, 20*time.Millisecond)
	mc.RecordCook(OutcomeSuccess, 30*time.Millisecond)
	mc.RecordCook(OutcomeInsufficient, time.Millisecond)
	mc.RecordCookRetry()
	mc.RecordBatchesTouched(3)
	mc.RecordTransit("dispatched")
	mc.RecordHTTPRequest("POST", "/api/v1/cook", 200)

	cooks := mc.metrics["cook_requests"]
	assert.Equal(t, 2, testutil.CollectAndCount(cooks))

	families, err := mc.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["supplytrack_cook_requests_total"])
	assert.True(t, names["supplytrack_cook_retries_total"])
	assert.True(t, names["supplytrack_transit_events_total"])
	assert.True(t, names["go_goroutines"])
}
