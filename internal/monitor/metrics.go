package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks request and transaction lifecycle performance.
type SystemMetrics struct {
	mu sync.RWMutex

	// Latency histograms
	APILatency        *LatencyHistogram
	TransitionLatency *LatencyHistogram

	// Counters
	apiRequests          uint64
	apiErrors            uint64
	transactionsCreated  uint64
	transitionsApplied   uint64
	transitionsRejected  uint64
	concurrencyConflicts uint64
	balanceUpdates       uint64
	fundings             uint64

	// Extra component stats, read on every snapshot.
	sources map[string]func() any

	startedAt time.Time
}

// LatencyHistogram tracks latency samples with sliding window.
// Stats are computed lazily and cached until the next Record.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool         // Whether samples have changed since last Stats()
	cachedStats LatencyStats // Cached computed stats
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		APILatency:        NewLatencyHistogram(1000),
		TransitionLatency: NewLatencyHistogram(1000),
		sources:           make(map[string]func() any),
		startedAt:         time.Now(),
	}
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		// Shift window: remove oldest
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// IncrementAPI counts a served request.
func (m *SystemMetrics) IncrementAPI() {
	atomic.AddUint64(&m.apiRequests, 1)
}

// IncrementAPIErrors counts a request answered with status >= 400.
func (m *SystemMetrics) IncrementAPIErrors() {
	atomic.AddUint64(&m.apiErrors, 1)
}

// IncrementCreated counts a submitted transaction.
func (m *SystemMetrics) IncrementCreated() {
	atomic.AddUint64(&m.transactionsCreated, 1)
}

// IncrementTransitions counts a committed status change.
func (m *SystemMetrics) IncrementTransitions() {
	atomic.AddUint64(&m.transitionsApplied, 1)
}

// IncrementRejected counts a refused status change.
func (m *SystemMetrics) IncrementRejected() {
	atomic.AddUint64(&m.transitionsRejected, 1)
}

// IncrementConflicts counts optimistic concurrency failures.
func (m *SystemMetrics) IncrementConflicts() {
	atomic.AddUint64(&m.concurrencyConflicts, 1)
}

// IncrementBalanceUpdates counts committed balance changes.
func (m *SystemMetrics) IncrementBalanceUpdates() {
	atomic.AddUint64(&m.balanceUpdates, 1)
}

// IncrementFundings counts admin fundings.
func (m *SystemMetrics) IncrementFundings() {
	atomic.AddUint64(&m.fundings, 1)
}

// AddSource registers a component whose stats are included in snapshots.
func (m *SystemMetrics) AddSource(name string, fn func() any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[name] = fn
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	APILatency           LatencyStats   `json:"api_latency"`
	TransitionLatency    LatencyStats   `json:"transition_latency"`
	APIRequests          uint64         `json:"api_requests"`
	APIErrors            uint64         `json:"api_errors"`
	TransactionsCreated  uint64         `json:"transactions_created"`
	TransitionsApplied   uint64         `json:"transitions_applied"`
	TransitionsRejected  uint64         `json:"transitions_rejected"`
	ConcurrencyConflicts uint64         `json:"concurrency_conflicts"`
	BalanceUpdates       uint64         `json:"balance_updates"`
	Fundings             uint64         `json:"fundings"`
	Components           map[string]any `json:"components,omitempty"`
	GoroutineCount       int            `json:"goroutine_count"`
	HeapAlloc            uint64         `json:"heap_alloc_bytes"`
	HeapSys              uint64         `json:"heap_sys_bytes"`
	Uptime               string         `json:"uptime"`
	Timestamp            time.Time      `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.RLock()
	components := make(map[string]any, len(m.sources))
	for name, fn := range m.sources {
		components[name] = fn()
	}
	m.mu.RUnlock()

	return MetricsSnapshot{
		APILatency:           m.APILatency.Stats(),
		TransitionLatency:    m.TransitionLatency.Stats(),
		APIRequests:          atomic.LoadUint64(&m.apiRequests),
		APIErrors:            atomic.LoadUint64(&m.apiErrors),
		TransactionsCreated:  atomic.LoadUint64(&m.transactionsCreated),
		TransitionsApplied:   atomic.LoadUint64(&m.transitionsApplied),
		TransitionsRejected:  atomic.LoadUint64(&m.transitionsRejected),
		ConcurrencyConflicts: atomic.LoadUint64(&m.concurrencyConflicts),
		BalanceUpdates:       atomic.LoadUint64(&m.balanceUpdates),
		Fundings:             atomic.LoadUint64(&m.fundings),
		Components:           components,
		GoroutineCount:       runtime.NumGoroutine(),
		HeapAlloc:            memStats.HeapAlloc,
		HeapSys:              memStats.HeapSys,
		Uptime:               time.Since(m.startedAt).Round(time.Second).String(),
		Timestamp:            time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{
		start:     time.Now(),
		histogram: h,
	}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
