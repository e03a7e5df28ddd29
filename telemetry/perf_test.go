package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollectorBasicStats(t *testing.T) {
	pc := NewPerfCollector(4)

	for i := 0; i < 4; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseRouting)
		time.Sleep(time.Millisecond)
		pc.StartPhase(PhaseTransport)
		time.Sleep(time.Millisecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Fatalf("expected positive avg tick duration, got %v", stats.AvgTickDuration)
	}
	if stats.TicksPerSecond <= 0 {
		t.Fatalf("expected positive ticks/sec, got %f", stats.TicksPerSecond)
	}
	if _, ok := stats.PhasePct[PhaseRouting]; !ok {
		t.Error("expected routing phase to appear in PhasePct")
	}
	if _, ok := stats.PhasePct[PhaseTransport]; !ok {
		t.Error("expected transport phase to appear in PhasePct")
	}
}

func TestPerfCollectorWindowWraps(t *testing.T) {
	pc := NewPerfCollector(2)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseQueue)
		pc.EndTick()
	}

	stats := pc.Stats()
	// windowSize=2, so only the last 2 samples should count.
	if pc.sampleCount != 2 {
		t.Errorf("expected 2 samples in the window after wraparound, got %d", pc.sampleCount)
	}
	if stats.AvgTickDuration < 0 {
		t.Error("expected non-negative avg tick duration after wraparound")
	}
}

func TestPerfStatsToCSVRoundTrip(t *testing.T) {
	pc := NewPerfCollector(1)
	pc.StartTick()
	pc.StartPhase(PhaseHolding)
	pc.EndTick()

	csv := pc.Stats().ToCSV(42)
	if csv.WindowEnd != 42 {
		t.Errorf("expected window end 42, got %d", csv.WindowEnd)
	}
}
