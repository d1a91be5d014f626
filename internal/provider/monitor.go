package provider

import (
	"sync"
	"time"
)

// Monitor tracks per-provider latency and error rate over a sliding window
// of recent calls. Every adapter embeds one and feeds it from its
// GenerateImage path; Status snapshots come straight out of it.
type Monitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	successCount  int
	failureCount  int
	requestCount  int
	lastSuccessAt time.Time
	lastFailureAt time.Time

	unavailableThreshold float64
}

// NewMonitor creates a monitor with default settings.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:      make([]time.Duration, 0, 100),
		maxLatencyWindow:     100,
		unavailableThreshold: 0.5, // 50% error rate
	}
}

// RecordSuccess records a successful call with its latency.
func (m *Monitor) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.successCount++
	m.requestCount++
	m.lastSuccessAt = time.Now()

	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
}

// RecordFailure records a failed call.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failureCount++
	m.requestCount++
	m.lastFailureAt = time.Now()
}

// ErrorRate returns the failure ratio over all recorded calls.
func (m *Monitor) ErrorRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.requestCount == 0 {
		return 0
	}
	return float64(m.failureCount) / float64(m.requestCount)
}

// AverageLatency returns the average latency of recent successful calls.
func (m *Monitor) AverageLatency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.recentLatencies) == 0 {
		return 0
	}

	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// Snapshot returns the current health status.
func (m *Monitor) Snapshot() Status {
	avg := m.AverageLatency()
	rate := m.ErrorRate()

	m.mu.RLock()
	defer m.mu.RUnlock()

	return Status{
		Available:     m.requestCount == 0 || rate < m.unavailableThreshold,
		ResponseTime:  avg,
		ErrorRate:     rate,
		LastSuccessAt: m.lastSuccessAt,
		LastFailureAt: m.lastFailureAt,
	}
}
