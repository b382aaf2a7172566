// Package perf tracks per-operation timings and rolling statistics by
// operation type.
package perf

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// maxSamplesPerType bounds each per-type series; oldest entries evict first.
	maxSamplesPerType = 1000

	TypeDatabase = "database"
	TypeAPI      = "api"

	SeverityNormal   = "normal"
	SeveritySlow     = "slow"
	SeverityVerySlow = "very_slow"

	verySlowThreshold = 5 * time.Second
)

// slowThresholds are per-type; anything past verySlowThreshold is very slow
// regardless of type.
var slowThresholds = map[string]time.Duration{
	TypeDatabase: time.Second,
	TypeAPI:      2 * time.Second,
}

var (
	opTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "operations_total", Help: "Count of tracked operations"},
		[]string{"type", "status"},
	)
	opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "operation_duration_seconds",
			Help:    "Latency of tracked operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"},
	)
)

func init() { prometheus.MustRegister(opTotal, opDuration) }

type Sample struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Success  bool           `json:"success"`
	Severity string         `json:"severity"`
	Duration time.Duration  `json:"duration"`
	EndedAt  time.Time      `json:"endedAt"`
	Meta     map[string]any `json:"meta,omitempty"`
}

type inflight struct {
	typ     string
	started time.Time
	meta    map[string]any
}

// Monitor is an explicitly constructed instance; share one by reference.
// Start/Stop are safe for concurrent use.
type Monitor struct {
	log *zap.Logger

	mu      sync.Mutex
	running map[string]inflight
	series  map[string][]Sample
	now     func() time.Time // test hook
}

func New(log *zap.Logger) *Monitor {
	return &Monitor{
		log:     log,
		running: make(map[string]inflight),
		series:  make(map[string][]Sample),
		now:     time.Now,
	}
}

// Start registers an in-flight operation.
func (m *Monitor) Start(id, typ string, meta map[string]any) {
	m.mu.Lock()
	m.running[id] = inflight{typ: typ, started: m.now(), meta: meta}
	m.mu.Unlock()
}

// Stop finishes an operation: computes duration, classifies severity,
// appends to the type's bounded series and feeds the prometheus collectors.
// Stopping an unknown id is a no-op that logs a warning.
func (m *Monitor) Stop(id string, success bool, meta map[string]any) (Sample, bool) {
	m.mu.Lock()
	op, ok := m.running[id]
	if !ok {
		m.mu.Unlock()
		m.log.Warn("stop for unknown operation", zap.String("id", id))
		return Sample{}, false
	}
	delete(m.running, id)

	ended := m.now()
	dur := ended.Sub(op.started)

	merged := op.meta
	if len(meta) > 0 {
		merged = make(map[string]any, len(op.meta)+len(meta))
		for k, v := range op.meta {
			merged[k] = v
		}
		for k, v := range meta {
			merged[k] = v
		}
	}

	s := Sample{
		ID:       id,
		Type:     op.typ,
		Success:  success,
		Severity: classify(op.typ, dur),
		Duration: dur,
		EndedAt:  ended,
		Meta:     merged,
	}

	buf := append(m.series[op.typ], s)
	if len(buf) > maxSamplesPerType {
		buf = buf[len(buf)-maxSamplesPerType:]
	}
	m.series[op.typ] = buf
	m.mu.Unlock()

	status := "ok"
	if !success {
		status = "error"
	}
	opTotal.WithLabelValues(op.typ, status).Inc()
	opDuration.WithLabelValues(op.typ).Observe(dur.Seconds())

	if s.Severity != SeverityNormal {
		m.log.Warn("slow operation",
			zap.String("id", id),
			zap.String("type", op.typ),
			zap.String("severity", s.Severity),
			zap.Duration("duration", dur),
		)
	}
	return s, true
}

func classify(typ string, dur time.Duration) string {
	if dur > verySlowThreshold {
		return SeverityVerySlow
	}
	if th, ok := slowThresholds[typ]; ok && dur > th {
		return SeveritySlow
	}
	return SeverityNormal
}

type Stats struct {
	Count          int     `json:"count"`
	SuccessRate    float64 `json:"successRate"` // percent
	MeanMs         float64 `json:"meanMs"`
	MedianMs       float64 `json:"medianMs"`
	P95Ms          float64 `json:"p95Ms"`
	P99Ms          float64 `json:"p99Ms"`
	MinMs          float64 `json:"minMs"`
	MaxMs          float64 `json:"maxMs"`
	SlowOperations int     `json:"slowOperations"`
}

// Statistics summarizes the recorded series. Empty typ aggregates every
// type; a positive window restricts to samples that ended within it.
func (m *Monitor) Statistics(typ string, window time.Duration) Stats {
	m.mu.Lock()
	var samples []Sample
	if typ == "" {
		for _, buf := range m.series {
			samples = append(samples, buf...)
		}
	} else {
		samples = append(samples, m.series[typ]...)
	}
	now := m.now()
	m.mu.Unlock()

	if window > 0 {
		cutoff := now.Add(-window)
		kept := samples[:0]
		for _, s := range samples {
			if !s.EndedAt.Before(cutoff) {
				kept = append(kept, s)
			}
		}
		samples = kept
	}

	st := Stats{Count: len(samples)}
	if st.Count == 0 {
		return st
	}

	durs := make([]float64, 0, len(samples))
	succeeded := 0
	for _, s := range samples {
		durs = append(durs, float64(s.Duration.Milliseconds()))
		if s.Success {
			succeeded++
		}
		if s.Severity != SeverityNormal {
			st.SlowOperations++
		}
	}
	sort.Float64s(durs)

	st.SuccessRate = float64(succeeded) / float64(len(samples)) * 100
	st.MeanMs = mean(durs)
	st.MedianMs = median(durs)
	st.P95Ms = percentile(durs, 95)
	st.P99Ms = percentile(durs, 99)
	st.MinMs = durs[0]
	st.MaxMs = durs[len(durs)-1]
	return st
}

// Types returns the operation types with recorded samples.
func (m *Monitor) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.series))
	for t := range m.series {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Reset clears in-flight and recorded state. Test/teardown hook.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.running = make(map[string]inflight)
	m.series = make(map[string][]Sample)
	m.mu.Unlock()
}

func mean(sorted []float64) float64 {
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile uses nearest-rank on the sorted series.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	rank := int(float64(n)*p/100+0.5) // ceil-ish nearest rank
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}
