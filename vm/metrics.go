package vm

import (
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Histogram keeps the most recent latency samples in a fixed ring
type Histogram struct {
	mu      sync.Mutex
	samples []float64 // Latencies in microseconds
	next    int       // Slot the next sample overwrites once full
}

// NewHistogram creates a histogram retaining at most maxSize samples
func NewHistogram(maxSize int) *Histogram {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Histogram{samples: make([]float64, 0, maxSize)}
}

// Record adds a latency sample (in microseconds). At capacity the oldest
// sample is replaced.
func (h *Histogram) Record(latencyUs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) < cap(h.samples) {
		h.samples = append(h.samples, latencyUs)
		return
	}
	h.samples[h.next] = latencyUs
	h.next = (h.next + 1) % len(h.samples)
}

// percentile interpolates the p-th percentile (0-100) of sorted samples
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// HistogramSnapshot holds percentile statistics at a point in time
type HistogramSnapshot struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
}

// Snapshot computes statistics over a sorted copy of the retained samples
func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.Lock()
	sorted := slices.Clone(h.samples)
	h.mu.Unlock()

	snap := HistogramSnapshot{Count: len(sorted)}
	if snap.Count == 0 {
		return snap
	}
	slices.Sort(sorted)

	snap.P50 = percentile(sorted, 50)
	snap.P95 = percentile(sorted, 95)
	snap.P99 = percentile(sorted, 99)
	snap.Min = sorted[0]
	snap.Max = sorted[len(sorted)-1]

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	snap.Mean = sum / float64(len(sorted))
	return snap
}

// Metrics tracks paging activity. Counters only ever grow during a run.
type Metrics struct {
	faults      atomic.Uint64
	reads       atomic.Uint64
	writes      atomic.Uint64
	evictions   atomic.Uint64
	writeFaults atomic.Uint64
	flushes     atomic.Uint64

	faultLatency *Histogram
	startTime    time.Time
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{
		faultLatency: NewHistogram(10000),
		startTime:    time.Now(),
	}
}

func (m *Metrics) RecordFault() {
	m.faults.Add(1)
}

func (m *Metrics) RecordRead() {
	m.reads.Add(1)
}

func (m *Metrics) RecordWrite() {
	m.writes.Add(1)
}

func (m *Metrics) RecordEviction() {
	m.evictions.Add(1)
}

func (m *Metrics) RecordWriteFault() {
	m.writeFaults.Add(1)
}

func (m *Metrics) RecordFlush() {
	m.flushes.Add(1)
}

// RecordFaultLatency records how long a fault took to resolve
func (m *Metrics) RecordFaultLatency(duration time.Duration) {
	m.faultLatency.Record(float64(duration.Microseconds()))
}

func (m *Metrics) GetFaults() uint64 {
	return m.faults.Load()
}

func (m *Metrics) GetReads() uint64 {
	return m.reads.Load()
}

func (m *Metrics) GetWrites() uint64 {
	return m.writes.Load()
}

func (m *Metrics) GetEvictions() uint64 {
	return m.evictions.Load()
}

func (m *Metrics) GetWriteFaults() uint64 {
	return m.writeFaults.Load()
}

func (m *Metrics) GetFlushes() uint64 {
	return m.flushes.Load()
}

// GetFaultLatency returns snapshot of fault latency distribution
func (m *Metrics) GetFaultLatency() HistogramSnapshot {
	return m.faultLatency.Snapshot()
}

func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.startTime)
}

// Stats is a plain copy of the counters
type Stats struct {
	Faults      uint64
	Reads       uint64
	Writes      uint64
	Evictions   uint64
	WriteFaults uint64
	Flushes     uint64
}

// Snapshot copies the current counter values
func (m *Metrics) Snapshot() Stats {
	return Stats{
		Faults:      m.GetFaults(),
		Reads:       m.GetReads(),
		Writes:      m.GetWrites(),
		Evictions:   m.GetEvictions(),
		WriteFaults: m.GetWriteFaults(),
		Flushes:     m.GetFlushes(),
	}
}

// LogMetrics logs all metrics using structured logging
func (m *Metrics) LogMetrics(logger *slog.Logger) {
	latency := m.GetFaultLatency()

	logger.Info("paging metrics",
		slog.Group("counters",
			slog.Uint64("faults", m.GetFaults()),
			slog.Uint64("reads", m.GetReads()),
			slog.Uint64("writes", m.GetWrites()),
			slog.Uint64("evictions", m.GetEvictions()),
			slog.Uint64("write_faults", m.GetWriteFaults()),
			slog.Uint64("flushes", m.GetFlushes()),
		),
		slog.Group("fault_latency_us",
			slog.Int("count", latency.Count),
			slog.Float64("mean", latency.Mean),
			slog.Float64("p50", latency.P50),
			slog.Float64("p95", latency.P95),
			slog.Float64("p99", latency.P99),
			slog.Float64("max", latency.Max),
		),
		slog.Duration("uptime", m.GetUptime()),
	)
}
