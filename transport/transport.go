// Package transport implements the class-conditioned graph-flux advection
// solver (T): per-substep movement of a fraction of each road cell's mass
// to its next-hop neighbor, with capacity-aware lot admission, proximity
// capture, and fallback rerouting (spec.md §4.3). It is grounded on the
// teacher's systems/resource_field.go (diffusion-style regen/decay update
// over a dense grid) and systems/particle_resource.go (mass-conserving
// deposit/withdraw bookkeeping between a grid and discrete carriers).
package transport

import (
	"math"

	"github.com/pthm-cable/pharr-corridor/components"
	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/grid"
	"github.com/pthm-cable/pharr-corridor/rng"
)

// PreLotScheduler is the subset of holding.Ring the transport solver needs:
// schedule a just-deposited preLot parcel for deterministic bucketed
// release. Declared here (not imported from package holding) to avoid a
// transport<->holding import cycle — holding depends on nothing from
// transport.
type PreLotScheduler interface {
	Schedule(cellIdx int, kg float64)
}

// Solver advances the restricted and cleared density fields one substep at
// a time.
type Solver struct {
	cfg *config.Config
	rng *rng.Stream

	// Reusable scratch to avoid per-cell allocation, matching the teacher's
	// "reusable data structures" convention in systems/astar.go.
	shuffleBuf [8]int
	bfsQueue   []bfsFrame
	bfsVisited map[int]bool
}

// bfsFrame is one entry in findFallbackLot's BFS queue.
type bfsFrame struct {
	idx, depth int
}

// NewSolver creates a transport solver. The PRNG stream must be the shared,
// seeded stream so proximity-capture shuffles are reproducible across runs.
func NewSolver(cfg *config.Config, stream *rng.Stream) *Solver {
	return &Solver{
		cfg:        cfg,
		rng:        stream,
		bfsQueue:   make([]bfsFrame, 0, 256),
		bfsVisited: make(map[int]bool, 256),
	}
}

// RebuildLotLiveAcceptance reinitializes each lot's live, substep-scoped
// admission budget, per spec.md §4.3's hard capacity ceiling.
func (s *Solver) RebuildLotLiveAcceptance(lots []*components.Lot) {
	threshold := s.cfg.Lot.CapacityThreshold
	for _, lot := range lots {
		cap := lot.CapacityKg * threshold
		rem := cap - lot.MassKg
		if rem < 0 {
			rem = 0
		}
		lot.RemainingAcceptance = rem
	}
}

// GraphFlowClass advances one class's density field by one substep.
func (s *Solver) GraphFlowClass(class components.ParticleClass, g *grid.Grid, lots []*components.Lot, preLot PreLotScheduler) {
	var rho, rhoNext []float64
	var nextHop []int32
	switch class {
	case components.ClassRestricted:
		rho, rhoNext, nextHop = g.RhoRestricted, g.RhoNextRestricted, g.NextHopLots
	case components.ClassCleared:
		rho, rhoNext, nextHop = g.RhoCleared, g.RhoNextCleared, g.NextHopPharr
	}

	copy(rhoNext, rho)

	flowFrac := s.cfg.Transport.FlowFrac
	truckKg := s.cfg.Queue.TruckKg

	for _, i := range g.RoadCellIndices {
		m := rho[i]
		if m <= 0 {
			continue
		}
		nh := int(nextHop[i])

		if class == components.ClassRestricted && g.RegionMap[i] != components.RegionLot {
			if captured, ok := s.proximityCapture(g, i, lots, truckKg); ok {
				nh = captured
			}
		}

		c := s.congestion(g, i)
		out := m * flowFrac * c
		if out <= 0 {
			continue
		}

		destIsLot := nh >= 0 && g.RegionMap[nh] == components.RegionLot

		if class == components.ClassCleared || !destIsLot {
			if nh < 0 {
				continue // dead end: mass stays, no loss
			}
			rhoNext[i] -= out
			rhoNext[nh] += out
			continue
		}

		s.admitRestrictedToLot(g, lots, preLot, i, nh, out, rhoNext, truckKg)
	}

	copy(rho, rhoNext)
}

// admitRestrictedToLot implements spec.md §4.3 step 5's restricted/lot
// branch: split into a preLot fraction and a lot-attempt fraction, admit
// the lot-attempt against the live remaining-acceptance budget, and fall
// back to a nearby lot (or leave the mass in place) if the target lot can't
// take it.
func (s *Solver) admitRestrictedToLot(g *grid.Grid, lots []*components.Lot, preLot PreLotScheduler, i, nh int, out float64, rhoNext []float64, truckKg float64) {
	alpha := s.cfg.Transport.PreLotAlpha
	preLotFrac := (1 - alpha) * out
	lotAttempt := alpha * out

	if preLotFrac > 0 {
		rhoNext[i] -= preLotFrac
		g.RhoRestrictedPreLot[i] += preLotFrac
		if preLot != nil {
			preLot.Schedule(i, preLotFrac)
		}
	}

	if lotAttempt <= 0 {
		return
	}

	lotIdx := g.CellToLotIndex[nh]
	if lotIdx < 0 || lotIdx >= len(lots) {
		return
	}
	lot := lots[lotIdx]

	fill := 0.0
	if lot.CapacityKg > 0 {
		fill = lot.MassKg / lot.CapacityKg
	}
	a := 1 - fill
	if a < 0 {
		a = 0
	}
	desired := a * lotAttempt
	accepted := math.Min(desired, lot.RemainingAcceptance)
	if accepted < 0 {
		accepted = 0
	}
	lot.RemainingAcceptance -= accepted

	if accepted > 0 {
		rhoNext[i] -= accepted
		s.scatterDeposit(g, lot, accepted)
		lot.MassKg += accepted
	}

	rejected := lotAttempt - accepted
	if rejected <= 0 {
		return
	}
	if lot.RemainingAcceptance >= truckKg {
		// The target lot still has headroom; the rejection was just this
		// attempt losing to `a`'s soft throttling, not capacity exhaustion.
		// Leave the rejected portion at i (already not subtracted).
		return
	}

	if dest := s.findFallbackLot(g, lots, i, truckKg); dest != nil {
		moved := math.Min(rejected, dest.RemainingAcceptance)
		if moved > 0 {
			rhoNext[i] -= moved
			dest.RemainingAcceptance -= moved
			s.scatterDeposit(g, dest, moved)
			dest.MassKg += moved
		}
	}
	// Anything still unplaced simply remains at i.
}

// scatterDeposit spreads an accepted deposit across up to
// LOT_SCATTER_MAX_CELLS_PER_DEPOSIT cells of the lot using a round-robin
// cursor, so mass doesn't pile entirely onto one boundary cell.
func (s *Solver) scatterDeposit(g *grid.Grid, lot *components.Lot, kg float64) {
	if len(lot.Cells) == 0 || kg <= 0 {
		return
	}
	n := s.cfg.Transport.LotScatterMaxCellsPerDep
	if n > len(lot.Cells) {
		n = len(lot.Cells)
	}
	if n < 1 {
		n = 1
	}
	share := kg / float64(n)
	for k := 0; k < n; k++ {
		cell := lot.Cells[(lot.ScatterCursor+k)%len(lot.Cells)]
		g.RhoRestrictedLot[cell] += share
	}
	lot.ScatterCursor = (lot.ScatterCursor + n) % len(lot.Cells)
}

// proximityCapture scans the 8-connected neighborhood of a road cell in a
// deterministically shuffled order and returns the first lot-cell neighbor
// with enough remaining acceptance to take a full truck, overriding the
// Dijkstra-derived next hop so load spreads across lots instead of funneling
// through the single globally-closest one.
func (s *Solver) proximityCapture(g *grid.Grid, i int, lots []*components.Lot, truckKg float64) (int, bool) {
	x, y := g.XY(i)
	buf := s.shuffleBuf[:0]
	for _, o := range grid.Offsets8 {
		nx, ny := x+o[0], y+o[1]
		if g.InBounds(nx, ny) {
			buf = append(buf, g.Idx(nx, ny))
		}
	}
	s.rng.Shuffle(len(buf), func(a, b int) { buf[a], buf[b] = buf[b], buf[a] })

	for _, n := range buf {
		if g.RegionMap[n] != components.RegionLot {
			continue
		}
		lotIdx := g.CellToLotIndex[n]
		if lotIdx < 0 || lotIdx >= len(lots) {
			continue
		}
		if lots[lotIdx].IsPark {
			continue
		}
		if lots[lotIdx].RemainingAcceptance >= truckKg {
			return n, true
		}
	}
	return 0, false
}

// findFallbackLot performs an 8-connected BFS up to
// FALLBACK_LOT_SEARCH_RADIUS cells through traversable cells and returns the
// first conversion lot found with remaining acceptance >= truckKg.
func (s *Solver) findFallbackLot(g *grid.Grid, lots []*components.Lot, start int, truckKg float64) *components.Lot {
	radius := s.cfg.Transport.FallbackLotSearchRadius
	kThreshold := s.cfg.Grid.KThreshold

	s.bfsQueue = s.bfsQueue[:0]
	for k := range s.bfsVisited {
		delete(s.bfsVisited, k)
	}

	s.bfsQueue = append(s.bfsQueue, bfsFrame{start, 0})
	s.bfsVisited[start] = true

	for head := 0; head < len(s.bfsQueue); head++ {
		f := s.bfsQueue[head]
		if f.depth > 0 {
			if g.RegionMap[f.idx] == components.RegionLot {
				lotIdx := g.CellToLotIndex[f.idx]
				if lotIdx >= 0 && lotIdx < len(lots) && !lots[lotIdx].IsPark && lots[lotIdx].RemainingAcceptance >= truckKg {
					return lots[lotIdx]
				}
			}
		}
		if f.depth >= radius {
			continue
		}
		x, y := g.XY(f.idx)
		for _, o := range grid.Offsets8 {
			nx, ny := x+o[0], y+o[1]
			if !g.InBounds(nx, ny) {
				continue
			}
			n := g.Idx(nx, ny)
			if s.bfsVisited[n] {
				continue
			}
			if !g.IsTraversable(n, kThreshold) {
				continue
			}
			s.bfsVisited[n] = true
			s.bfsQueue = append(s.bfsQueue, bfsFrame{n, f.depth + 1})
		}
	}
	return nil
}

// congestion returns the per-cell flow-rate dampener C(i) from spec.md
// §4.3 step 3. Lots are exempt (C=1); disabling the feature flag also
// yields C=1 everywhere, per spec.md §9's note that congestion must never
// change routing, only rate.
func (s *Solver) congestion(g *grid.Grid, i int) float64 {
	if !s.cfg.Transport.CongestionEnabled {
		return 1
	}
	if g.RegionMap[i] == components.RegionLot {
		return 1
	}
	rhoTotal := g.RhoRestricted[i] + g.RhoCleared[i]
	if rhoTotal <= 0 {
		return 1
	}
	ratio := rhoTotal / s.cfg.Transport.RhoCongestion0
	return 1 / (1 + math.Pow(ratio, s.cfg.Transport.CongestionP))
}
