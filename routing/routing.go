// Package routing computes the two geodesic potential fields used by
// class-conditioned routing (phi_pharr, phi_lots) and their derived next-hop
// tables, and owns the shadow-buffer/atomic-swap protocol that keeps the
// transport solver's view of routing internally consistent while a rebuild
// is in flight (I10). The background-goroutine/atomic-flag/mutex shape is
// grounded directly on systems/particle_resource.go's
// startAsyncFlowGeneration/updateFlowInterpolation pair in the teacher repo.
package routing

import (
	"container/heap"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/pharr-corridor/components"
	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/grid"
)

// Builder owns the shadow buffers and the coalesced rebuild scheduler for
// the two potential fields.
type Builder struct {
	cfg *config.Config

	mu          sync.Mutex
	rebuilding  atomic.Bool
	shadowReady atomic.Bool

	pendingRebuild        atomic.Bool
	pendingGeometryDriven atomic.Bool
	lastCapacityRebuildAt time.Time

	// Snapshot of lot exclusion/seed-cost state taken at rebuild start, sized
	// to the grid and reused across rebuilds. Immutable for the duration of
	// a background rebuild, so the goroutine can read it without locking
	// against the live lot mutations transport/queue make every substep.
	lotExcluded []bool
	lotSeedCost []float64

	// RebuildCount counts commits, for tests and metrics.
	RebuildCount int
}

// NewBuilder creates a Builder sized for an N×N grid.
func NewBuilder(cfg *config.Config, n int) *Builder {
	size := n * n
	return &Builder{
		cfg:         cfg,
		lotExcluded: make([]bool, size),
		lotSeedCost: make([]float64, size),
	}
}

// RequestRebuild coalesces a rebuild request. Geometry-driven requests
// bypass the debounce window; lot-capacity-driven requests are debounced by
// LOT.RebuildDebounceMS (spec.md §4.2).
func (b *Builder) RequestRebuild(geometryDriven bool) {
	b.pendingRebuild.Store(true)
	if geometryDriven {
		b.pendingGeometryDriven.Store(true)
	}
}

// InProgress reports whether a rebuild is currently executing in the
// background.
func (b *Builder) InProgress() bool { return b.rebuilding.Load() }

// Tick checks for a completed rebuild (committing it), and starts a new one
// if a coalesced request is pending and not currently debounced. It returns
// true if a commit happened this call.
func (b *Builder) Tick(g *grid.Grid, lots []*components.Lot, now time.Time) bool {
	if b.rebuilding.Load() {
		if b.shadowReady.Load() {
			b.commit(g)
			b.shadowReady.Store(false)
			b.rebuilding.Store(false)
			return true
		}
		return false
	}

	if !b.pendingRebuild.Load() {
		return false
	}
	geometryDriven := b.pendingGeometryDriven.Load()
	debounce := time.Duration(b.cfg.Lot.RebuildDebounceMS) * time.Millisecond
	if !geometryDriven && !b.lastCapacityRebuildAt.IsZero() && now.Sub(b.lastCapacityRebuildAt) < debounce {
		return false
	}

	b.pendingRebuild.Store(false)
	b.pendingGeometryDriven.Store(false)
	if !geometryDriven {
		b.lastCapacityRebuildAt = now
	}
	b.startRebuild(g, lots)
	return false
}

// ForceRebuild runs a rebuild synchronously (cooperative, single goroutine,
// blocking) and commits immediately. Used by Corridor.ForceRebuildRouting.
func (b *Builder) ForceRebuild(g *grid.Grid, lots []*components.Lot) {
	b.snapshotLots(g, lots)
	b.computePharr(g, g.ShadowPhiPharr, g.ShadowNextHopPharr)
	b.computeLots(g, g.ShadowPhiLots, g.ShadowNextHopLots)
	b.commit(g)
}

func (b *Builder) startRebuild(g *grid.Grid, lots []*components.Lot) {
	b.snapshotLots(g, lots)
	b.rebuilding.Store(true)

	go func() {
		b.mu.Lock()
		b.computePharr(g, g.ShadowPhiPharr, g.ShadowNextHopPharr)
		b.computeLots(g, g.ShadowPhiLots, g.ShadowNextHopLots)
		b.mu.Unlock()
		b.shadowReady.Store(true)
	}()
}

// commit copies shadow buffers into the live (primary) buffers. This is the
// single publication point I10 requires: T never observes a partial write.
func (b *Builder) commit(g *grid.Grid) {
	b.mu.Lock()
	copy(g.PhiPharr, g.ShadowPhiPharr)
	copy(g.PhiLots, g.ShadowPhiLots)
	copy(g.NextHopPharr, g.ShadowNextHopPharr)
	copy(g.NextHopLots, g.ShadowNextHopLots)
	b.mu.Unlock()
	b.RebuildCount++
	b.checkReachability(g)
}

// snapshotLots captures which lots are excluded (full) and each non-full
// lot cell's soft-capacity seed cost, at rebuild start. See DESIGN.md for
// why the soft-capacity penalty is modeled as a seed cost rather than a
// recurring edge multiplier.
func (b *Builder) snapshotLots(g *grid.Grid, lots []*components.Lot) {
	for i := range b.lotExcluded {
		b.lotExcluded[i] = false
		b.lotSeedCost[i] = 0
	}
	threshold := b.cfg.Lot.CapacityThreshold
	alpha := b.cfg.Transport.SoftCapacityAlpha
	beta := b.cfg.Transport.SoftCapacityBeta
	cellSize := g.CellSizeM
	for _, lot := range lots {
		if lot.IsPark {
			// parks are not Dijkstra sinks for phi_lots; they are sources,
			// so exclude their cells rather than leaving the zeroed default
			// seed cost, which would otherwise read as a free lot.
			for _, c := range lot.Cells {
				b.lotExcluded[c] = true
			}
			continue
		}
		util := 0.0
		if lot.CapacityKg > 0 {
			util = lot.MassKg / lot.CapacityKg
		}
		full := util >= threshold
		lot.IsFull = full
		for _, c := range lot.Cells {
			if full {
				b.lotExcluded[c] = true
				continue
			}
			penalty := 1 + alpha*math.Pow(util, beta)
			b.lotSeedCost[c] = cellSize * penalty
		}
	}
}

// edgeCost returns the Dijkstra edge cost from a popped cell to a candidate
// neighbor, per spec.md §4.2's shared bullet list.
func (b *Builder) edgeCost(g *grid.Grid, toIdx int) float64 {
	mult := 1.0
	if g.RoadTypeMap[toIdx] == components.RoadCity {
		mult *= b.cfg.Transport.CityRoadCostMult
	}
	if g.RegionMap[toIdx] == components.RegionLot {
		mult *= b.cfg.Transport.LotTraversalCostMult
	}
	return g.CellSizeM * mult
}

// computePharr runs Dijkstra from the sink (gate) cells. Lot cells are
// absorbing: once popped, they do not expand, but they still receive a phi
// value via the incoming edge from a road neighbor.
func (b *Builder) computePharr(g *grid.Grid, phiOut []float64, nextHopOut []int32) {
	phiLarge := b.cfg.Grid.PhiLarge
	for i := range phiOut {
		phiOut[i] = phiLarge
	}

	pq := newPQ()
	for _, s := range g.SinkCellIndices {
		phiOut[s] = 0
		heap.Push(pq, &pqItem{cellIdx: s, phi: 0})
	}

	kThreshold := b.cfg.Grid.KThreshold
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		cur := item.cellIdx
		if item.phi > phiOut[cur] {
			continue // stale entry
		}
		if g.RegionMap[cur] == components.RegionLot {
			continue // absorbing: lot cells don't expand for the PHARR run
		}
		x, y := g.XY(cur)
		for _, o := range grid.Offsets4 {
			nx, ny := x+o[0], y+o[1]
			if !g.InBounds(nx, ny) {
				continue
			}
			n := g.Idx(nx, ny)
			if !g.IsTraversable(n, kThreshold) {
				continue
			}
			cand := phiOut[cur] + b.edgeCost(g, n)
			if cand < phiOut[n] {
				phiOut[n] = cand
				heap.Push(pq, &pqItem{cellIdx: n, phi: cand})
			}
		}
	}

	b.deriveNextHop(g, phiOut, nextHopOut, true)
}

// computeLots runs Dijkstra from every non-full lot's cells, seeded with a
// soft-capacity entry penalty instead of zero so near-full lots read as
// farther away without being hard-excluded. Full lots are completely
// excluded as obstacles.
func (b *Builder) computeLots(g *grid.Grid, phiOut []float64, nextHopOut []int32) {
	phiLarge := b.cfg.Grid.PhiLarge
	for i := range phiOut {
		phiOut[i] = phiLarge
	}

	pq := newPQ()
	for _, s := range g.LotCellIndices {
		if b.lotExcluded[s] {
			continue
		}
		seed := b.lotSeedCost[s]
		phiOut[s] = seed
		heap.Push(pq, &pqItem{cellIdx: s, phi: seed})
	}

	kThreshold := b.cfg.Grid.KThreshold
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		cur := item.cellIdx
		if item.phi > phiOut[cur] {
			continue
		}
		x, y := g.XY(cur)
		for _, o := range grid.Offsets4 {
			nx, ny := x+o[0], y+o[1]
			if !g.InBounds(nx, ny) {
				continue
			}
			n := g.Idx(nx, ny)
			if b.lotExcluded[n] {
				continue
			}
			if !g.IsTraversable(n, kThreshold) {
				continue
			}
			cand := phiOut[cur] + b.edgeCost(g, n)
			if cand < phiOut[n] {
				phiOut[n] = cand
				heap.Push(pq, &pqItem{cellIdx: n, phi: cand})
			}
		}
	}

	b.deriveNextHop(g, phiOut, nextHopOut, false)
}

// deriveNextHop scans each traversable cell's 4-connected neighbors and
// records the one with strictly lower phi, or -1 if none exists. When
// forbidRoadToLot is set (the PHARR run), a lot-cell neighbor is never
// chosen as the next hop from a non-lot source cell.
func (b *Builder) deriveNextHop(g *grid.Grid, phi []float64, nextHopOut []int32, forbidRoadToLot bool) {
	kThreshold := b.cfg.Grid.KThreshold
	for idx := 0; idx < g.Size(); idx++ {
		if !g.IsTraversable(idx, kThreshold) {
			nextHopOut[idx] = -1
			continue
		}
		x, y := g.XY(idx)
		sourceIsLot := g.RegionMap[idx] == components.RegionLot
		best := int32(-1)
		bestPhi := phi[idx]
		for _, o := range grid.Offsets4 {
			nx, ny := x+o[0], y+o[1]
			if !g.InBounds(nx, ny) {
				continue
			}
			n := g.Idx(nx, ny)
			if forbidRoadToLot && !sourceIsLot && g.RegionMap[n] == components.RegionLot {
				continue
			}
			if phi[n] < bestPhi {
				bestPhi = phi[n]
				best = int32(n)
			}
		}
		nextHopOut[idx] = best
	}
}

// checkReachability logs a warning (never fatal, per spec.md §7) if more
// than UNREACHABLE_WARN_FRACTION of road cells have no next hop to PHARR,
// excluding sinks.
func (b *Builder) checkReachability(g *grid.Grid) {
	if len(g.RoadCellIndices) == 0 {
		return
	}
	sinkSet := make(map[int]bool, len(g.SinkCellIndices))
	for _, s := range g.SinkCellIndices {
		sinkSet[s] = true
	}
	unreachable := 0
	counted := 0
	for _, idx := range g.RoadCellIndices {
		if sinkSet[idx] {
			continue
		}
		counted++
		if g.NextHopPharr[idx] < 0 {
			unreachable++
		}
	}
	if counted == 0 {
		return
	}
	frac := float64(unreachable) / float64(counted)
	if frac > b.cfg.Routing.UnreachableWarnFraction {
		slog.Warn("routing: high fraction of unreachable road cells",
			"fraction", frac, "unreachable", unreachable, "counted", counted)
	}
}
