package transport

import (
	"testing"

	"github.com/pthm-cable/pharr-corridor/components"
	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/grid"
	"github.com/pthm-cable/pharr-corridor/rng"
)

func testConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// buildLineGrid builds an N-long straight road with next hops pointing
// monotonically toward x=N-1, so flow has a deterministic direction without
// needing a full routing.Builder pass.
func buildLineGrid(n int) *grid.Grid {
	g := grid.New(n, 5.0, 0, 0)
	for x := 0; x < n; x++ {
		idx := g.Idx(x, 0)
		g.Kxx[idx] = 1.0
		g.Kyy[idx] = 1.0
		if x < n-1 {
			g.NextHopPharr[idx] = int32(g.Idx(x+1, 0))
			g.NextHopLots[idx] = int32(g.Idx(x+1, 0))
		} else {
			g.NextHopPharr[idx] = -1
			g.NextHopLots[idx] = -1
		}
	}
	g.BuildSparseIndices(0.01)
	return g
}

func TestClearedFlowConservesMass(t *testing.T) {
	cfg := testConfig()
	g := buildLineGrid(5)
	g.RhoCleared[g.Idx(0, 0)] = 100
	s := NewSolver(cfg, rng.New(1))

	before := g.TotalMass()
	s.GraphFlowClass(components.ClassCleared, g, nil, nil)
	after := g.TotalMass()

	if diff := after - before; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("mass not conserved: before=%f after=%f", before, after)
	}
	if g.RhoCleared[g.Idx(1, 0)] <= 0 {
		t.Error("expected mass to have advanced to the second cell")
	}
}

func TestClearedFlowStopsAtDeadEnd(t *testing.T) {
	cfg := testConfig()
	g := buildLineGrid(3)
	last := g.Idx(2, 0)
	g.RhoCleared[last] = 50
	s := NewSolver(cfg, rng.New(1))

	s.GraphFlowClass(components.ClassCleared, g, nil, nil)

	if g.RhoCleared[last] != 50 {
		t.Errorf("expected mass at dead end to remain unmoved, got %f", g.RhoCleared[last])
	}
}

func TestHardCapacityCeilingStopsAdmission(t *testing.T) {
	cfg := testConfig()
	g := buildLineGrid(3)
	lotCell := g.Idx(2, 0)
	g.RegionMap[lotCell] = components.RegionLot
	g.CellToLotIndex[lotCell] = 0
	g.BuildSparseIndices(0.01)

	lot := &components.Lot{ID: 0, Cells: []int{lotCell}, CapacityKg: cfg.Queue.TruckKg, MassKg: cfg.Queue.TruckKg}
	lots := []*components.Lot{lot}

	s := NewSolver(cfg, rng.New(1))
	s.RebuildLotLiveAcceptance(lots)
	if lot.RemainingAcceptance != 0 {
		t.Fatalf("expected a full lot to have zero remaining acceptance, got %f", lot.RemainingAcceptance)
	}

	g.RhoRestricted[g.Idx(1, 0)] = cfg.Queue.TruckKg * 10
	before := lot.MassKg
	s.GraphFlowClass(components.ClassRestricted, g, lots, nil)

	if lot.MassKg != before {
		t.Errorf("expected a saturated lot to admit nothing, mass changed from %f to %f", before, lot.MassKg)
	}
}

func TestSoftAcceptanceShrinksAsLotFills(t *testing.T) {
	cfg := testConfig()
	g := buildLineGrid(3)
	lotCell := g.Idx(2, 0)
	g.RegionMap[lotCell] = components.RegionLot
	g.CellToLotIndex[lotCell] = 0
	g.BuildSparseIndices(0.01)

	emptyLot := &components.Lot{ID: 0, Cells: []int{lotCell}, CapacityKg: 1000, MassKg: 0}
	s := NewSolver(cfg, rng.New(7))
	s.RebuildLotLiveAcceptance([]*components.Lot{emptyLot})
	g.RhoRestricted[g.Idx(1, 0)] = 100
	s.GraphFlowClass(components.ClassRestricted, g, []*components.Lot{emptyLot}, nil)
	gainEmpty := emptyLot.MassKg

	g2 := buildLineGrid(3)
	g2.RegionMap[lotCell] = components.RegionLot
	g2.CellToLotIndex[lotCell] = 0
	g2.BuildSparseIndices(0.01)
	halfLot := &components.Lot{ID: 0, Cells: []int{lotCell}, CapacityKg: 1000, MassKg: 800}
	s2 := NewSolver(cfg, rng.New(7))
	s2.RebuildLotLiveAcceptance([]*components.Lot{halfLot})
	g2.RhoRestricted[g2.Idx(1, 0)] = 100
	before := halfLot.MassKg
	s2.GraphFlowClass(components.ClassRestricted, g2, []*components.Lot{halfLot}, nil)
	gainFull := halfLot.MassKg - before

	if gainFull >= gainEmpty {
		t.Errorf("expected a near-full lot to admit less than an empty one: full-gain=%f empty-gain=%f", gainFull, gainEmpty)
	}
}

func TestPreLotFractionIsScheduled(t *testing.T) {
	cfg := testConfig()
	cfg.Transport.PreLotAlpha = 0.5 // alpha 1.0 (the default) disables the preLot split
	g := buildLineGrid(3)
	lotCell := g.Idx(2, 0)
	g.RegionMap[lotCell] = components.RegionLot
	g.CellToLotIndex[lotCell] = 0
	g.BuildSparseIndices(0.01)

	lot := &components.Lot{ID: 0, Cells: []int{lotCell}, CapacityKg: 1000, MassKg: 0}
	s := NewSolver(cfg, rng.New(3))
	s.RebuildLotLiveAcceptance([]*components.Lot{lot})

	mid := g.Idx(1, 0)
	g.RhoRestricted[mid] = 100

	sched := &fakeScheduler{}
	s.GraphFlowClass(components.ClassRestricted, g, []*components.Lot{lot}, sched)

	if g.RhoRestrictedPreLot[mid] <= 0 {
		t.Error("expected a preLot deposit at the source cell")
	}
	if len(sched.calls) == 0 {
		t.Error("expected the preLot fraction to be scheduled")
	}
}

type fakeScheduler struct {
	calls []float64
}

func (f *fakeScheduler) Schedule(cellIdx int, kg float64) {
	f.calls = append(f.calls, kg)
}

func TestCongestionDampensFlowAtHighDensity(t *testing.T) {
	cfg := testConfig()
	s := NewSolver(cfg, rng.New(1))

	gLow := buildLineGrid(3)
	gLow.RhoCleared[gLow.Idx(0, 0)] = 1
	lowC := s.congestion(gLow, gLow.Idx(0, 0))

	gHigh := buildLineGrid(3)
	gHigh.RhoCleared[gHigh.Idx(0, 0)] = cfg.Transport.RhoCongestion0 * 100
	highC := s.congestion(gHigh, gHigh.Idx(0, 0))

	if highC >= lowC {
		t.Errorf("expected congestion factor to drop as density rises: low=%f high=%f", lowC, highC)
	}
}

func TestCongestionExemptOnLotCells(t *testing.T) {
	cfg := testConfig()
	g := buildLineGrid(3)
	lotCell := g.Idx(2, 0)
	g.RegionMap[lotCell] = components.RegionLot
	g.RhoCleared[lotCell] = cfg.Transport.RhoCongestion0 * 100
	s := NewSolver(cfg, rng.New(1))

	if c := s.congestion(g, lotCell); c != 1 {
		t.Errorf("expected lot cells to be congestion-exempt, got C=%f", c)
	}
}
