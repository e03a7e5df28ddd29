package telemetry

import (
	"testing"

	"github.com/pthm-cable/pharr-corridor/components"
)

func TestOverflowDetectorIgnoresUnderCapacityLots(t *testing.T) {
	d := NewOverflowDetector(2, 5)
	lots := []*components.Lot{
		{ID: 0, CapacityKg: 1000, MassKg: 200},
	}

	incidents := d.Check(lots, 2.0, 2.0)
	if len(incidents) != 0 {
		t.Fatalf("expected no incidents for an under-capacity lot, got %d", len(incidents))
	}
}

func TestOverflowDetectorReportsFullLots(t *testing.T) {
	d := NewOverflowDetector(2, 5)
	lots := []*components.Lot{
		{ID: 0, CapacityKg: 1000, MassKg: 1000},
		{ID: 1, CapacityKg: 500, MassKg: 500},
		{ID: 2, CapacityKg: 2000, MassKg: 100},
	}

	incidents := d.Check(lots, 2.0, 2.0)
	if len(incidents) != 2 {
		t.Fatalf("expected 2 full-lot incidents, got %d", len(incidents))
	}
	for _, inc := range incidents {
		if inc.OccupancyPct < 100 {
			t.Errorf("expected reported occupancy >= 100%%, got %f", inc.OccupancyPct)
		}
	}
}

func TestOverflowDetectorRespectsTopN(t *testing.T) {
	d := NewOverflowDetector(1, 2)
	lots := make([]*components.Lot, 5)
	for i := range lots {
		lots[i] = &components.Lot{ID: i, CapacityKg: 100, MassKg: 100}
	}

	incidents := d.Check(lots, 1.0, 1.0)
	if len(incidents) != 2 {
		t.Fatalf("expected top-2 incidents only, got %d", len(incidents))
	}
}

func TestOverflowDetectorWindowing(t *testing.T) {
	d := NewOverflowDetector(4, 5)
	lots := []*components.Lot{
		{ID: 0, CapacityKg: 100, MassKg: 100},
	}

	// Window hasn't elapsed yet after 1 second of a 4-second window.
	if incidents := d.Check(lots, 1.0, 1.0); incidents != nil {
		t.Errorf("expected nil before window elapses, got %v", incidents)
	}
	// After 4 total seconds, the window should flush.
	d.Check(lots, 2.0, 1.0)
	d.Check(lots, 3.0, 1.0)
	incidents := d.Check(lots, 4.0, 1.0)
	if len(incidents) != 1 {
		t.Fatalf("expected 1 incident once window elapses, got %d", len(incidents))
	}
}
