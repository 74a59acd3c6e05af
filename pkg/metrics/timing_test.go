package metrics

import (
	"testing"
	"time"
)

func TestTimingMetric_Record(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("test")
	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)

	s := m.Stats()
	if s.Count != 2 {
		t.Fatalf("expected 2 measurements, got %d", s.Count)
	}
	if s.MinMs != 2 || s.MaxMs != 4 || s.AvgMs != 3 {
		t.Errorf("unexpected stats: %+v", s)
	}

	m.Reset()
	if m.Count() != 0 {
		t.Errorf("expected reset count 0, got %d", m.Count())
	}
}

func TestTimingMetric_Disabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("off")
	Timer(m)()
	m.Record(time.Millisecond)
	if m.Count() != 0 {
		t.Errorf("expected no measurements while disabled, got %d", m.Count())
	}
}

func TestAllTimingStats_OnlyWithData(t *testing.T) {
	SetEnabled(true)
	ResetAll()
	defer ResetAll()

	TreeBuild.Record(time.Millisecond)
	RowBuild.Record(3 * time.Millisecond)

	stats := AllTimingStats()
	if len(stats) != 2 {
		t.Fatalf("expected 2 stats, got %d", len(stats))
	}
	if stats[0].Name != "row_build" {
		t.Errorf("expected slowest first, got %s", stats[0].Name)
	}
}
