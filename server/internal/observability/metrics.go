package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics aggregates counters for chat operations, sliced by provider.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64
	streamChunks  atomic.Int64

	providerMetrics map[string]*ProviderMetrics

	durations    []time.Duration
	maxDurations int
}

// ProviderMetrics represents counters for a single provider.
type ProviderMetrics struct {
	requestCount  atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	errorCount    atomic.Int64
}

// NewMetrics creates a metrics collector keeping at most maxDurations
// samples for latency aggregation.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		providerMetrics: make(map[string]*ProviderMetrics),
		durations:       make([]time.Duration, 0, maxDurations),
		maxDurations:    maxDurations,
	}
}

// RecordRequest records a chat request against a provider.
func (m *Metrics) RecordRequest(provider string) {
	m.requestTotal.Add(1)
	m.forProvider(provider).requestCount.Add(1)
}

// RecordFailure records a failed chat request.
func (m *Metrics) RecordFailure(provider string) {
	m.requestFailed.Add(1)
	m.forProvider(provider).errorCount.Add(1)
}

// RecordDuration records a completed request's latency.
func (m *Metrics) RecordDuration(provider string, d time.Duration) {
	m.forProvider(provider).totalDuration.Add(d.Milliseconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, d)
}

// RecordChunks adds to the streamed chunk counter.
func (m *Metrics) RecordChunks(n int) {
	m.streamChunks.Add(int64(n))
}

// Snapshot is a point-in-time view of the collected metrics.
type Snapshot struct {
	RequestTotal  int64                       `json:"request_total"`
	RequestFailed int64                       `json:"request_failed"`
	StreamChunks  int64                       `json:"stream_chunks"`
	AvgLatencyMs  int64                       `json:"avg_latency_ms"`
	Providers     map[string]ProviderSummary `json:"providers"`
}

// ProviderSummary summarizes one provider's counters.
type ProviderSummary struct {
	Requests     int64 `json:"requests"`
	Errors       int64 `json:"errors"`
	AvgLatencyMs int64 `json:"avg_latency_ms"`
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	var total time.Duration
	for _, d := range m.durations {
		total += d
	}
	var avg int64
	if len(m.durations) > 0 {
		avg = (total / time.Duration(len(m.durations))).Milliseconds()
	}
	providers := make(map[string]ProviderSummary, len(m.providerMetrics))
	for tag, pm := range m.providerMetrics {
		summary := ProviderSummary{
			Requests: pm.requestCount.Load(),
			Errors:   pm.errorCount.Load(),
		}
		if summary.Requests > 0 {
			summary.AvgLatencyMs = pm.totalDuration.Load() / summary.Requests
		}
		providers[tag] = summary
	}
	m.mu.Unlock()

	return Snapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		StreamChunks:  m.streamChunks.Load(),
		AvgLatencyMs:  avg,
		Providers:     providers,
	}
}

func (m *Metrics) forProvider(tag string) *ProviderMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.providerMetrics[tag]
	if !ok {
		pm = &ProviderMetrics{}
		m.providerMetrics[tag] = pm
	}
	return pm
}
