package tracer

import (
	"testing"

	"github.com/pthm-cable/pharr-corridor/components"
	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/grid"
	"github.com/pthm-cable/pharr-corridor/queue"
	"github.com/pthm-cable/pharr-corridor/rng"
)

func testConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func buildLineGrid(n int) *grid.Grid {
	g := grid.New(n, 5.0, 0, 0)
	for x := 0; x < n; x++ {
		idx := g.Idx(x, 0)
		g.Kxx[idx] = 1.0
		g.Kyy[idx] = 1.0
		if x < n-1 {
			g.NextHopPharr[idx] = int32(g.Idx(x+1, 0))
			g.NextHopLots[idx] = int32(g.Idx(x+1, 0))
		}
	}
	g.BuildSparseIndices(0.01)
	return g
}

func TestInjectMassEmitsOneParticlePerTruck(t *testing.T) {
	cfg := testConfig()
	g := buildLineGrid(5)
	q := queue.New(cfg)
	tr := New(cfg, g, q, rng.New(1))

	cell := g.Idx(0, 0)
	g.S[cell] = cfg.Queue.TruckKg * 2 // 2 trucks worth per second
	tr.SetSources([]Source{{CellIdx: cell}})

	tr.InjectMass(1.0, nil)

	if n := tr.AliveCount(); n < 1 {
		t.Fatalf("expected at least one particle emitted, got %d", n)
	}
	if n, want := tr.AliveCount(), int(tr.InjectedKg()/cfg.Queue.TruckKg); n != want {
		t.Errorf("expected one particle per injected truck: %d particles for %d trucks", n, want)
	}
}

func TestClearedParticleDestroyedAtSink(t *testing.T) {
	cfg := testConfig()
	g := buildLineGrid(3)
	last := g.Idx(2, 0)
	g.G[last] = 1.0
	g.NextHopPharr[last] = -1
	q := queue.New(cfg)
	tr := New(cfg, g, q, rng.New(1))

	cell := g.Idx(0, 0)
	g.S[cell] = cfg.Queue.TruckKg
	tr.SetSources([]Source{{CellIdx: cell}})
	// Force the draw to cleared by zeroing the restricted fraction.
	cfg.Transport.TransferRequirementFrac = 0
	tr.InjectMass(1.0, nil)

	before := tr.AliveCount()
	if before == 0 {
		t.Fatal("expected a particle to have been emitted")
	}

	// Move the particle onto the sink cell directly and step.
	wx, wy := g.GridToWorld(g.XY(last))
	q2 := tr.filter.Query()
	for q2.Next() {
		pos, _, _ := q2.Get()
		pos.X, pos.Y = wx, wy
	}
	tr.Step(1.0, nil)

	if after := tr.AliveCount(); after != before-1 {
		t.Errorf("expected one particle destroyed at the sink, before=%d after=%d", before, after)
	}
}

func TestReleaseFlipsClassAndRepositions(t *testing.T) {
	cfg := testConfig()
	g := buildLineGrid(3)
	q := queue.New(cfg)
	tr := New(cfg, g, q, rng.New(1))

	src := g.Idx(0, 0)
	tr.SetSources([]Source{{CellIdx: src}})
	cfg.Transport.TransferRequirementFrac = 1 // force restricted
	g.S[src] = cfg.Queue.TruckKg
	tr.InjectMass(1.0, nil)

	var entity components.FIFOToken
	iter := tr.filter.Query()
	for iter.Next() {
		e := iter.Entity()
		_, _, state := iter.Get()
		entity = components.FIFOToken{Particle: e, LotIdx: -1, ParkIdx: -1}
		_ = state
		break
	}

	egress := g.Idx(2, 0)
	tr.Release(entity, egress, 100)

	state := tr.stMap.Get(entity.Particle)
	if state.Class != components.ClassCleared {
		t.Error("expected the released particle's class to flip to cleared")
	}
	pos := tr.posMap.Get(entity.Particle)
	wx, wy := g.GridToWorld(g.XY(egress))
	if pos.X != wx || pos.Y != wy {
		t.Errorf("expected position snapped to egress cell center (%f,%f), got (%f,%f)", wx, wy, pos.X, pos.Y)
	}
}
