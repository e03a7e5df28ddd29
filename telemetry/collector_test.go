package telemetry

import (
	"testing"

	"github.com/pthm-cable/pharr-corridor/corridor"
)

func TestCollectorFlushesOnWindow(t *testing.T) {
	c := NewCollector(10)

	if c.Advance(4) {
		t.Fatal("expected no flush before the window elapses")
	}
	if c.Advance(4) {
		t.Fatal("expected no flush before the window elapses")
	}
	if !c.Advance(3) {
		t.Fatal("expected a flush once accrued time reaches the window")
	}
}

func TestCollectorFlushConvertsMetrics(t *testing.T) {
	c := NewCollector(10)
	m := corridor.Metrics{InjectedKg: 100, DrainedKg: 40, TotalKg: 60}

	stats := c.Flush(m, 3600)
	if stats.WindowEndSec != 3600 {
		t.Errorf("expected window end 3600, got %f", stats.WindowEndSec)
	}
	if stats.InjectedKg != 100 || stats.DrainedKg != 40 || stats.TotalKg != 60 {
		t.Errorf("expected metrics fields to pass through unchanged, got %+v", stats)
	}
}
