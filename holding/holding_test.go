package holding

import (
	"testing"

	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/grid"
)

func testConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestScheduleSpreadsAcrossWindow(t *testing.T) {
	cfg := testConfig()
	cfg.PreLot.BucketWidthS = 10
	cfg.PreLot.MinS = 20
	cfg.PreLot.MaxS = 40
	cfg.PreLot.BucketCount = 10
	r := NewRing(cfg)

	r.Schedule(5, 100)

	// offsets 2..4 inclusive -> 3 buckets, 100/3 kg each
	want := 100.0 / 3.0
	touched := 0
	for _, b := range r.buckets {
		if kg, ok := b[5]; ok {
			touched++
			if diff := kg - want; diff < -1e-9 || diff > 1e-9 {
				t.Errorf("expected %f per bucket, got %f", want, kg)
			}
		}
	}
	if touched != 3 {
		t.Errorf("expected 3 buckets touched, got %d", touched)
	}
}

func TestAdvanceReleasesMaturedBucket(t *testing.T) {
	cfg := testConfig()
	cfg.PreLot.BucketWidthS = 10
	cfg.PreLot.MinS = 0
	cfg.PreLot.MaxS = 0
	cfg.PreLot.BucketCount = 5
	r := NewRing(cfg)
	g := grid.New(4, 5.0, 0, 0)

	cell := g.Idx(0, 0)
	g.RhoRestrictedPreLot[cell] = 50
	r.Schedule(cell, 50)

	r.Advance(10, g)

	if g.RhoRestricted[cell] != 50 {
		t.Errorf("expected 50kg released to rho_restricted, got %f", g.RhoRestricted[cell])
	}
	if g.RhoRestrictedPreLot[cell] != 0 {
		t.Errorf("expected preLot field drained to 0, got %f", g.RhoRestrictedPreLot[cell])
	}
	if r.LiveTotal() != 0 {
		t.Errorf("expected live total 0 after release, got %f", r.LiveTotal())
	}
}

func TestAdvanceBelowWidthDoesNothing(t *testing.T) {
	cfg := testConfig()
	cfg.PreLot.BucketWidthS = 10
	r := NewRing(cfg)
	g := grid.New(4, 5.0, 0, 0)

	cell := g.Idx(1, 1)
	r.Schedule(cell, 30)
	r.Advance(5, g)

	if g.RhoRestricted[cell] != 0 {
		t.Errorf("expected no release before a full bucket width elapses, got %f", g.RhoRestricted[cell])
	}
	if total := r.LiveTotal(); total < 29.999 || total > 30.001 {
		t.Errorf("expected live total unchanged at ~30, got %f", total)
	}
}

func TestLiveTotalMatchesScheduled(t *testing.T) {
	cfg := testConfig()
	r := NewRing(cfg)
	r.Schedule(1, 40)
	r.Schedule(2, 60)

	if total := r.LiveTotal(); total < 99.999 || total > 100.001 {
		t.Errorf("expected live total ~100, got %f", total)
	}
}
