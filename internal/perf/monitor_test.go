package perf

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeClock drives the monitor's time without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMonitor() (*Monitor, *fakeClock) {
	m := New(zap.NewNop())
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m.now = clk.now
	return m, clk
}

func record(m *Monitor, clk *fakeClock, id, typ string, d time.Duration, success bool) Sample {
	m.Start(id, typ, nil)
	clk.advance(d)
	s, _ := m.Stop(id, success, nil)
	return s
}

func TestStartStop(t *testing.T) {
	m, clk := newTestMonitor()

	s := record(m, clk, "op-1", TypeDatabase, 120*time.Millisecond, true)
	if s.Duration != 120*time.Millisecond {
		t.Errorf("Duration = %v", s.Duration)
	}
	if s.Severity != SeverityNormal {
		t.Errorf("Severity = %q", s.Severity)
	}
	if !s.Success {
		t.Error("Success lost")
	}
}

func TestStopUnknownID(t *testing.T) {
	m, _ := newTestMonitor()
	if _, ok := m.Stop("never-started", true, nil); ok {
		t.Error("unknown id should be a no-op")
	}
	if st := m.Statistics("", 0); st.Count != 0 {
		t.Errorf("Count = %d after no-op stop", st.Count)
	}
}

func TestStopMergesMeta(t *testing.T) {
	m, clk := newTestMonitor()
	m.Start("op-1", TypeDatabase, map[string]any{"operation": "user.create", "shared": "start"})
	clk.advance(time.Millisecond)
	s, _ := m.Stop("op-1", true, map[string]any{"rows": 3, "shared": "stop"})

	if s.Meta["operation"] != "user.create" || s.Meta["rows"] != 3 {
		t.Errorf("Meta = %v", s.Meta)
	}
	if s.Meta["shared"] != "stop" {
		t.Error("stop-time meta should win on key collision")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		typ  string
		dur  time.Duration
		want string
	}{
		{TypeDatabase, 500 * time.Millisecond, SeverityNormal},
		{TypeDatabase, 1100 * time.Millisecond, SeveritySlow},
		{TypeAPI, 1100 * time.Millisecond, SeverityNormal},
		{TypeAPI, 2500 * time.Millisecond, SeveritySlow},
		{TypeDatabase, 6 * time.Second, SeverityVerySlow},
		{"custom", 3 * time.Second, SeverityNormal},
		{"custom", 6 * time.Second, SeverityVerySlow},
	}
	for _, c := range cases {
		if got := classify(c.typ, c.dur); got != c.want {
			t.Errorf("classify(%s, %v) = %q, want %q", c.typ, c.dur, got, c.want)
		}
	}
}

func TestSeriesBounded(t *testing.T) {
	m, clk := newTestMonitor()

	for i := 0; i < maxSamplesPerType+50; i++ {
		record(m, clk, fmt.Sprintf("op-%d", i), TypeDatabase, time.Millisecond, true)
	}
	if st := m.Statistics(TypeDatabase, 0); st.Count != maxSamplesPerType {
		t.Errorf("Count = %d, want %d", st.Count, maxSamplesPerType)
	}
}

func TestStatistics(t *testing.T) {
	m, clk := newTestMonitor()

	// 100ms is normal for database work, 2s is past its slow threshold.
	record(m, clk, "fast", TypeDatabase, 100*time.Millisecond, true)
	record(m, clk, "slow", TypeDatabase, 2*time.Second, false)

	st := m.Statistics(TypeDatabase, 0)
	if st.Count != 2 {
		t.Fatalf("Count = %d", st.Count)
	}
	if st.SuccessRate != 50 {
		t.Errorf("SuccessRate = %v", st.SuccessRate)
	}
	if st.MeanMs != 1050 {
		t.Errorf("MeanMs = %v", st.MeanMs)
	}
	if st.MedianMs != 1050 {
		t.Errorf("MedianMs = %v", st.MedianMs)
	}
	if st.P95Ms != 2000 || st.P99Ms != 2000 {
		t.Errorf("P95Ms = %v, P99Ms = %v", st.P95Ms, st.P99Ms)
	}
	if st.MinMs != 100 || st.MaxMs != 2000 {
		t.Errorf("MinMs = %v, MaxMs = %v", st.MinMs, st.MaxMs)
	}
	if st.SlowOperations != 1 {
		t.Errorf("SlowOperations = %d", st.SlowOperations)
	}
}

func TestStatisticsAcrossTypes(t *testing.T) {
	m, clk := newTestMonitor()
	record(m, clk, "db", TypeDatabase, 10*time.Millisecond, true)
	record(m, clk, "api", TypeAPI, 20*time.Millisecond, true)

	if st := m.Statistics("", 0); st.Count != 2 {
		t.Errorf("aggregate Count = %d", st.Count)
	}
	if st := m.Statistics(TypeAPI, 0); st.Count != 1 {
		t.Errorf("api Count = %d", st.Count)
	}
	if st := m.Statistics("unknown", 0); st.Count != 0 {
		t.Errorf("unknown type Count = %d", st.Count)
	}
}

func TestStatisticsWindow(t *testing.T) {
	m, clk := newTestMonitor()

	record(m, clk, "old", TypeDatabase, time.Millisecond, true)
	clk.advance(10 * time.Minute)
	record(m, clk, "recent", TypeDatabase, time.Millisecond, true)

	if st := m.Statistics(TypeDatabase, 5*time.Minute); st.Count != 1 {
		t.Errorf("windowed Count = %d, want 1", st.Count)
	}
	if st := m.Statistics(TypeDatabase, 0); st.Count != 2 {
		t.Errorf("unwindowed Count = %d, want 2", st.Count)
	}
}

func TestPercentileEdges(t *testing.T) {
	sorted := []float64{10}
	if p := percentile(sorted, 99); p != 10 {
		t.Errorf("single-sample p99 = %v", p)
	}

	sorted = make([]float64, 100)
	for i := range sorted {
		sorted[i] = float64(i + 1)
	}
	if p := percentile(sorted, 95); p != 95 {
		t.Errorf("p95 of 1..100 = %v", p)
	}
	if p := percentile(sorted, 99); p != 99 {
		t.Errorf("p99 of 1..100 = %v", p)
	}
}

func TestTypesAndReset(t *testing.T) {
	m, clk := newTestMonitor()
	record(m, clk, "a", TypeDatabase, time.Millisecond, true)
	record(m, clk, "b", TypeAPI, time.Millisecond, true)

	types := m.Types()
	if len(types) != 2 || types[0] != TypeAPI || types[1] != TypeDatabase {
		t.Errorf("Types = %v", types)
	}

	m.Reset()
	if len(m.Types()) != 0 {
		t.Error("Reset left recorded types behind")
	}
	if st := m.Statistics("", 0); st.Count != 0 {
		t.Errorf("Count = %d after Reset", st.Count)
	}
}
