package monitoring

import (
	"sync"
	"time"
)

// Monitor keeps a live snapshot of service activity for the stats endpoint.
type Monitor struct {
	metrics      map[string]interface{}
	metricsMutex sync.RWMutex
	startTime    time.Time
}

// NewMonitor creates a new monitoring instance
func NewMonitor() *Monitor {
	return &Monitor{
		metrics:   make(map[string]interface{}),
		startTime: time.Now(),
	}
}

// RecordMetric records a metric value
func (m *Monitor) RecordMetric(name string, value interface{}) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.metrics[name] = value
}

// Increment adds delta to an integer counter, starting it at zero.
func (m *Monitor) Increment(name string, delta int64) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	current, _ := m.metrics[name].(int64)
	m.metrics[name] = current + delta
}

// GetMetric returns a specific metric value
func (m *Monitor) GetMetric(name string) (interface{}, bool) {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()
	value, exists := m.metrics[name]
	return value, exists
}

// GetMetrics returns all current metrics
func (m *Monitor) GetMetrics() map[string]interface{} {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()

	// Create a copy to avoid concurrent map access
	metrics := make(map[string]interface{}, len(m.metrics))
	for k, v := range m.metrics {
		metrics[k] = v
	}

	metrics["uptime_seconds"] = time.Since(m.startTime).Seconds()

	return metrics
}

// Reset clears all metrics
func (m *Monitor) Reset() {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.metrics = make(map[string]interface{})
}

// RecordCookResult updates the per-node cook counters and remembers the last
// cook seen at that node.
func (m *Monitor) RecordCookResult(nodeID, outcome string, at time.Time) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()

	key := "cooks_" + outcome
	total, _ := m.metrics[key].(int64)
	m.metrics[key] = total + 1

	prefix := "node_" + nodeID + "_"
	perNode, _ := m.metrics[prefix+key].(int64)
	m.metrics[prefix+key] = perNode + 1
	m.metrics[prefix+"last_cook"] = at.Format(time.RFC3339)
}
