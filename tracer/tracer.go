// Package tracer implements the field-authoritative particle population
// (P): a visual population of truck-sized tokens strictly slaved to the
// density fields and routing tables, plus the deterministic pulsed source
// emission that mints them. The ECS wiring (world/mapper/filter, two-pass
// collect-then-remove for destruction) is grounded directly on
// game/game.go and game/lifecycle.go's entityMapper/entityFilter/
// cleanupDead pattern in the teacher repo; the pulse's noise jitter is
// grounded on systems/resource_field.go's opensimplex usage.
package tracer

import (
	"log/slog"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/pharr-corridor/components"
	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/grid"
	"github.com/pthm-cable/pharr-corridor/queue"
	"github.com/pthm-cable/pharr-corridor/rng"
)

// Source describes one emission point: a road cell injecting mass on a
// pulsed schedule, or a park cell whose restricted draws deposit directly
// into that park's wait zone.
type Source struct {
	CellIdx int
	Phase   float64 // per-source phase offset into the pulse, spec.md §4.6
	IsPark  bool
	LotIdx  int // index into the corridor's combined lots slice, if IsPark
}

// Tracer owns the ECS world for the truck population and the per-source
// emission accumulators.
type Tracer struct {
	cfg *config.Config
	g   *grid.Grid
	q   *queue.Queue
	rng *rng.Stream

	noise opensimplex.Noise

	world   *ecs.World
	mapper  *ecs.Map3[components.Position, components.PrevPosition, components.ParticleState]
	filter  *ecs.Filter3[components.Position, components.PrevPosition, components.ParticleState]
	posMap  *ecs.Map1[components.Position]
	prevMap *ecs.Map1[components.PrevPosition]
	stMap   *ecs.Map1[components.ParticleState]

	sources []Source
	accum   []float64

	simTime float64 // mirrors Corridor's clock; set each frame via SetSimTime
	stepDt  float64 // current substep's dt, set by Step for stepMoving's integration

	injectedKg float64 // cumulative kg minted as particles, for corridor.Metrics
}

// InjectedKg returns the cumulative kg ever minted into particles.
func (tr *Tracer) InjectedKg() float64 { return tr.injectedKg }

// New creates an empty particle population bound to grid g and service
// queue q. The opensimplex stream is seeded from the same deterministic
// config seed as the rest of the engine's PRNG, so pulse jitter reproduces
// across runs independent of iteration-order-sensitive draws from stream.
func New(cfg *config.Config, g *grid.Grid, q *queue.Queue, stream *rng.Stream) *Tracer {
	world := ecs.NewWorld()
	return &Tracer{
		cfg:     cfg,
		g:       g,
		q:       q,
		rng:     stream,
		noise:   opensimplex.New(int64(cfg.RNG.Seed)),
		world:   world,
		mapper:  ecs.NewMap3[components.Position, components.PrevPosition, components.ParticleState](world),
		filter:  ecs.NewFilter3[components.Position, components.PrevPosition, components.ParticleState](world),
		posMap:  ecs.NewMap1[components.Position](world),
		prevMap: ecs.NewMap1[components.PrevPosition](world),
		stMap:   ecs.NewMap1[components.ParticleState](world),
	}
}

// SetSources installs the scenario's emission points, replacing any
// previous set and resetting their accumulators.
func (tr *Tracer) SetSources(sources []Source) {
	tr.sources = sources
	tr.accum = make([]float64, len(sources))
}

// SetSimTime mirrors the corridor's sim clock, used for pulse phase and
// FIFO arrival stamps.
func (tr *Tracer) SetSimTime(t float64) { tr.simTime = t }

// AliveCount returns the live particle count, for the I8 density check.
func (tr *Tracer) AliveCount() int {
	n := 0
	q := tr.filter.Query()
	for q.Next() {
		n++
	}
	return n
}

// pulse implements spec.md §4.6's deterministic per-source multiplier.
func (tr *Tracer) pulse(phase float64, sourceID int) float64 {
	sum := 0.0
	for _, p := range tr.cfg.Pulse.Periods {
		periodS := p.PeriodMinutes * 60
		jitter := tr.cfg.Pulse.JitterScale * tr.noise.Eval2(tr.simTime/600, float64(sourceID))
		sum += p.Weight * math.Sin(2*math.Pi*tr.simTime/periodS+phase+jitter)
	}
	v := 1 + sum
	if v < tr.cfg.Pulse.MinFloor {
		v = tr.cfg.Pulse.MinFloor
	}
	return v
}

// InjectMass runs spec.md §4.6's emission step: each source's accumulator
// grows by S*dt*pulse, and every time it crosses TRUCK_KG exactly one
// truck's worth of mass is deposited into a density field AND exactly one
// particle is minted — keeping the density field and the visible
// population in lockstep (I8).
func (tr *Tracer) InjectMass(dtSim float64, lots []*components.Lot) {
	truckKg := tr.cfg.Queue.TruckKg
	if truckKg <= 0 {
		return
	}
	for i := range tr.sources {
		src := &tr.sources[i]
		rate := tr.g.S[src.CellIdx]
		tr.accum[i] += rate * dtSim * tr.pulse(src.Phase, i)

		for tr.accum[i] >= truckKg {
			tr.accum[i] -= truckKg
			tr.injectedKg += truckKg
			class := components.ClassCleared
			if tr.rng.Float64() < tr.cfg.Transport.TransferRequirementFrac {
				class = components.ClassRestricted
			}
			tr.emit(src, class, lots)
		}
	}
}

func (tr *Tracer) emit(src *Source, class components.ParticleClass, lots []*components.Lot) {
	truckKg := tr.cfg.Queue.TruckKg
	wx, wy := tr.cellWorldCenter(src.CellIdx)

	if src.IsPark && class == components.ClassRestricted {
		tr.g.RhoParkWait[src.CellIdx] += truckKg
		entity := tr.mapper.NewEntity(
			&components.Position{X: wx, Y: wy},
			&components.PrevPosition{X: wx, Y: wy},
			&components.ParticleState{
				Class:             components.ClassRestricted,
				SourceCellIdx:     src.CellIdx,
				PreLotKey:         tr.rng.Float64(),
				WaitingInPark:     true,
				ParkIdx:           src.LotIdx,
				LotIdx:            -1,
				LotArrivalSimTime: tr.simTime,
			},
		)
		tr.q.Enqueue(components.FIFOToken{
			Particle:       entity,
			ArrivalSimTime: tr.simTime,
			LotIdx:         -1,
			ParkIdx:        src.LotIdx,
			Waiting:        true,
		})
		if src.LotIdx >= 0 && src.LotIdx < len(lots) {
			lots[src.LotIdx].MassKg += truckKg
		}
		return
	}

	switch class {
	case components.ClassRestricted:
		tr.g.RhoRestricted[src.CellIdx] += truckKg
	case components.ClassCleared:
		tr.g.RhoCleared[src.CellIdx] += truckKg
	}
	tr.mapper.NewEntity(
		&components.Position{X: wx, Y: wy},
		&components.PrevPosition{X: wx, Y: wy},
		&components.ParticleState{
			Class:         class,
			SourceCellIdx: src.CellIdx,
			PreLotKey:     tr.rng.Float64(),
			ParkIdx:       -1,
			LotIdx:        -1,
		},
	)
}

func (tr *Tracer) cellWorldCenter(idx int) (float64, float64) {
	x, y := tr.g.XY(idx)
	return tr.g.GridToWorld(x, y)
}

// Step advances every particle by one physics substep, per spec.md §4.6.
// Destruction (gate exit or out-of-bounds) is collected during the query
// and applied after, following the teacher's cleanupDead two-pass shape.
func (tr *Tracer) Step(dtSimSub float64, lots []*components.Lot) {
	tr.stepDt = dtSimSub
	var toRemove []ecs.Entity

	q := tr.filter.Query()
	for q.Next() {
		entity := q.Entity()
		pos, prev, state := q.Get()
		state.Age += dtSimSub

		x, y := tr.g.WorldToGrid(pos.X, pos.Y)
		if !tr.g.InBounds(x, y) {
			slog.Warn("tracer: particle left the grid, destroying", "x", pos.X, "y", pos.Y)
			toRemove = append(toRemove, entity)
			continue
		}
		idx := tr.g.Idx(x, y)

		if state.Class == components.ClassRestricted && tr.g.RegionMap[idx] == components.RegionLot {
			tr.stepParkedInLot(entity, pos, prev, state, idx, lots)
			continue
		}

		if state.Class == components.ClassCleared && tr.g.G[idx] > 0 && tr.g.NextHopPharr[idx] < 0 {
			toRemove = append(toRemove, entity)
			continue
		}

		if tr.isFrozenInPreLot(state, idx) {
			*prev = *pos
			continue
		}

		tr.stepMoving(pos, prev, state, idx, lots)
	}

	for _, e := range toRemove {
		tr.mapper.Remove(e)
	}
}

// stepParkedInLot implements the restricted-in-lot branch of spec.md
// §4.6's step: velocity is always zero, and first arrival is validated
// against the previous cell's intended destination before marking waiting
// and registering in the FIFO.
func (tr *Tracer) stepParkedInLot(entity ecs.Entity, pos, prev *components.Position, state *components.ParticleState, idx int, lots []*components.Lot) {
	if state.WaitingInLot || state.LotParked {
		return
	}

	px, py := tr.g.WorldToGrid(prev.X, prev.Y)
	prevIdx := tr.g.Idx(px, py)
	intended := tr.g.RegionMap[prevIdx] == components.RegionLot || int(tr.g.NextHopLots[prevIdx]) == idx
	if !intended {
		pos.X, pos.Y = prev.X, prev.Y
		return
	}

	lotIdx := tr.g.CellToLotIndex[idx]
	state.WaitingInLot = true
	state.LotIdx = lotIdx
	state.LotArrivalSimTime = tr.simTime

	tr.q.Enqueue(components.FIFOToken{
		Particle:       entity,
		ArrivalSimTime: tr.simTime,
		LotIdx:         lotIdx,
		ParkIdx:        -1,
		Waiting:        true,
	})

	if lotIdx >= 0 && lotIdx < len(lots) {
		lot := lots[lotIdx]
		if len(lot.Cells) > 0 {
			cell := lot.Cells[tr.rng.Intn(len(lot.Cells))]
			cx, cy := tr.g.XY(cell)
			wx, wy := tr.g.GridToWorld(cx, cy)
			jitter := tr.g.CellSizeM * 0.3
			wx += (tr.rng.Float64()*2 - 1) * jitter
			wy += (tr.rng.Float64()*2 - 1) * jitter
			pos.X, pos.Y = wx, wy
		}
	}
	prev.X, prev.Y = pos.X, pos.Y
}

// isFrozenInPreLot implements spec.md §4.6's preLot stall sample: a stable
// per-particle key compared against the cell's preLot occupancy fraction,
// so the decision doesn't flicker frame to frame.
func (tr *Tracer) isFrozenInPreLot(state *components.ParticleState, idx int) bool {
	if state.Class != components.ClassRestricted || tr.g.RegionMap[idx] == components.RegionLot {
		return false
	}
	denom := tr.g.RhoRestricted[idx] + tr.g.RhoRestrictedPreLot[idx]
	if denom <= 0 {
		return false
	}
	return state.PreLotKey < tr.g.RhoRestrictedPreLot[idx]/denom
}

// stepMoving samples the routing field for the particle's class and
// integrates position, snapping to the next-hop cell center rather than
// overshooting past it.
func (tr *Tracer) stepMoving(pos, prev *components.Position, state *components.ParticleState, idx int, lots []*components.Lot) {
	var nh int32
	if state.Class == components.ClassRestricted {
		nh = tr.g.NextHopLots[idx]
	} else {
		nh = tr.g.NextHopPharr[idx]
	}
	if nh < 0 {
		return // dead end: hold position
	}

	speed := tr.cfg.Particle.TargetVisualSpeedMS * tr.congestion(idx)

	if state.Class == components.ClassRestricted && tr.g.RegionMap[nh] == components.RegionLot {
		lotIdx := tr.g.CellToLotIndex[int(nh)]
		if lotIdx >= 0 && lotIdx < len(lots) && lots[lotIdx].RemainingAcceptance <= 0 {
			speed = 0
		}
	}

	nx, ny := tr.g.XY(int(nh))
	cwx, cwy := tr.g.GridToWorld(nx, ny)
	dx, dy := cwx-pos.X, cwy-pos.Y
	dist := math.Hypot(dx, dy)

	prev.X, prev.Y = pos.X, pos.Y
	if dist <= 1e-9 || speed <= 0 {
		return
	}

	step := speed * tr.stepDt
	if step >= dist {
		pos.X, pos.Y = cwx, cwy
		return
	}
	pos.X += dx / dist * step
	pos.Y += dy / dist * step
}

// congestion mirrors transport.Solver's congestion curve; duplicated here
// (rather than imported) because the particle tracer must remain a pure
// consumer of the grid's committed fields, never of the transport solver
// itself — P depends on G, R, T's *output*, not on T as a package.
func (tr *Tracer) congestion(idx int) float64 {
	if !tr.cfg.Transport.CongestionEnabled || tr.g.RegionMap[idx] == components.RegionLot {
		return 1
	}
	rhoTotal := tr.g.RhoRestricted[idx] + tr.g.RhoCleared[idx]
	if rhoTotal <= 0 {
		return 1
	}
	ratio := rhoTotal / tr.cfg.Transport.RhoCongestion0
	return 1 / (1 + math.Pow(ratio, tr.cfg.Transport.CongestionP))
}

// Release implements queue.Releaser: a serviced token's particle flips to
// cleared and is repositioned onto its lot/park's egress cell, matching
// the mass the service queue just deposited into rho_cleared there.
func (tr *Tracer) Release(tok components.FIFOToken, releaseCellIdx int, simTime float64) {
	state := tr.stMap.Get(tok.Particle)
	if state == nil {
		return
	}
	state.Class = components.ClassCleared
	state.WaitingInLot = false
	state.LotParked = false
	state.WaitingInPark = false
	state.ReleaseCellIdx = releaseCellIdx

	x, y := tr.g.XY(releaseCellIdx)
	wx, wy := tr.g.GridToWorld(x, y)

	pos := tr.posMap.Get(tok.Particle)
	pos.X, pos.Y = wx, wy
	prev := tr.prevMap.Get(tok.Particle)
	prev.X, prev.Y = wx, wy
}
