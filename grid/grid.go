// Package grid owns the dense per-cell fields of the corridor simulation: the
// leaf dependency every other component reads and writes. It makes no
// algorithmic decisions — it is pure storage plus coordinate transforms and
// the sparse iteration lists precomputed at load, grounded on
// systems/navgrid.go's flat `idx = y*width+x` grid convention in the teacher
// repo.
package grid

import (
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/pharr-corridor/components"
)

// Grid holds every dense per-cell array from spec.md §3 plus the sparse
// iteration lists and lot-membership maps derived from them at load time.
type Grid struct {
	N int // cells per side
	CellSizeM float64
	OriginX, OriginY float64 // world-meter coordinate of cell (0,0)'s corner

	// Mobile density fields (kg per cell)
	RhoRestricted       []float64
	RhoRestrictedPreLot []float64
	RhoRestrictedLot    []float64
	RhoParkWait         []float64
	RhoCleared          []float64

	// Static conductance / classification, set at load time.
	Kxx, Kyy, Kxy []float64
	RegionMap     []components.RegionKind
	RoadTypeMap   []components.RoadType

	// Recomputed hourly from the scenario bundle.
	S []float64 // kg/s source rate

	// Sink falloff, set at load; 0 everywhere except the PHARR gate disk.
	G []float64

	// Potentials and next-hop tables, live (committed) copies.
	PhiPharr []float64
	PhiLots  []float64
	NextHopPharr []int32
	NextHopLots  []int32

	// Shadow copies R writes into during a rebuild; swapped into the live
	// copies above at commit (I10).
	ShadowPhiPharr     []float64
	ShadowPhiLots      []float64
	ShadowNextHopPharr []int32
	ShadowNextHopLots  []int32

	// Transport scratch buffers, double-buffered against the live density.
	RhoNextRestricted []float64
	RhoNextCleared    []float64

	// Sparse iteration lists, precomputed at load.
	RoadCellIndices   []int
	LotCellIndices    []int
	SourceCellIndices []int
	SinkCellIndices   []int

	// Cell-to-lot membership. -1 if the cell is not part of any lot.
	CellToLotIndex []int
}

// New allocates a grid of N×N cells. All large buffers are preallocated, per
// spec.md §5's memory model.
func New(n int, cellSizeM, originX, originY float64) *Grid {
	size := n * n
	g := &Grid{
		N:         n,
		CellSizeM: cellSizeM,
		OriginX:   originX,
		OriginY:   originY,

		RhoRestricted:       make([]float64, size),
		RhoRestrictedPreLot: make([]float64, size),
		RhoRestrictedLot:    make([]float64, size),
		RhoParkWait:         make([]float64, size),
		RhoCleared:          make([]float64, size),

		Kxx: make([]float64, size),
		Kyy: make([]float64, size),
		Kxy: make([]float64, size),

		RegionMap:   make([]components.RegionKind, size),
		RoadTypeMap: make([]components.RoadType, size),

		S: make([]float64, size),
		G: make([]float64, size),

		PhiPharr:     make([]float64, size),
		PhiLots:      make([]float64, size),
		NextHopPharr: make([]int32, size),
		NextHopLots:  make([]int32, size),

		ShadowPhiPharr:     make([]float64, size),
		ShadowPhiLots:      make([]float64, size),
		ShadowNextHopPharr: make([]int32, size),
		ShadowNextHopLots:  make([]int32, size),

		RhoNextRestricted: make([]float64, size),
		RhoNextCleared:    make([]float64, size),

		CellToLotIndex: make([]int, size),
	}
	for i := range g.CellToLotIndex {
		g.CellToLotIndex[i] = -1
	}
	for i := range g.NextHopPharr {
		g.NextHopPharr[i] = -1
		g.NextHopLots[i] = -1
	}
	return g
}

// Size returns the number of cells in the grid (N*N).
func (g *Grid) Size() int { return g.N * g.N }

// Idx converts grid coordinates to a flat cell index.
func (g *Grid) Idx(x, y int) int { return y*g.N + x }

// XY converts a flat cell index back to grid coordinates.
func (g *Grid) XY(idx int) (x, y int) { return idx % g.N, idx / g.N }

// InBounds reports whether grid coordinates fall inside the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.N && y >= 0 && y < g.N
}

// WorldToGrid converts world meters to grid coordinates.
func (g *Grid) WorldToGrid(wx, wy float64) (x, y int) {
	x = int((wx - g.OriginX) / g.CellSizeM)
	y = int((wy - g.OriginY) / g.CellSizeM)
	return
}

// GridToWorld converts a cell's grid coordinates to its world-meter center.
func (g *Grid) GridToWorld(x, y int) (wx, wy float64) {
	wx = g.OriginX + (float64(x)+0.5)*g.CellSizeM
	wy = g.OriginY + (float64(y)+0.5)*g.CellSizeM
	return
}

// IsTraversable reports whether a cell is included in RoadCellIndices: either
// its conductance exceeds K_THRESHOLD, or it belongs to a lot (lot cells are
// always traversable so cleared mass can egress), per spec.md §4.1.
func (g *Grid) IsTraversable(idx int, kThreshold float64) bool {
	if g.RegionMap[idx] == components.RegionLot {
		return true
	}
	return g.Kxx[idx] > kThreshold || g.Kyy[idx] > kThreshold
}

// IsRoad reports the road-membership test used by R's Dijkstra expansion:
// max(Kxx,Kyy) > K_THRESHOLD at the neighbor cell (lots are handled
// separately as sinks/obstacles, not as "road").
func (g *Grid) IsRoad(idx int, kThreshold float64) bool {
	return g.Kxx[idx] > kThreshold || g.Kyy[idx] > kThreshold
}

// BuildSparseIndices recomputes RoadCellIndices/LotCellIndices from the
// current RegionMap/Kxx/Kyy. SourceCellIndices and SinkCellIndices are set
// directly by the attach-time loader (they come from the scenario's source
// and gate geometry, which is out of this engine's scope) and are not
// recomputed here.
func (g *Grid) BuildSparseIndices(kThreshold float64) {
	g.RoadCellIndices = g.RoadCellIndices[:0]
	g.LotCellIndices = g.LotCellIndices[:0]
	for idx := 0; idx < g.Size(); idx++ {
		if g.IsTraversable(idx, kThreshold) {
			g.RoadCellIndices = append(g.RoadCellIndices, idx)
		}
		if g.RegionMap[idx] == components.RegionLot {
			g.LotCellIndices = append(g.LotCellIndices, idx)
		}
	}
}

// EnforceNonNegative clamps every mobile density field to >= 0, per spec.md
// §7's numerical-drift policy. Called once per frame after drain.
func (g *Grid) EnforceNonNegative() {
	clamp := func(a []float64) {
		for i, v := range a {
			if v < 0 {
				a[i] = 0
			}
		}
	}
	clamp(g.RhoRestricted)
	clamp(g.RhoRestrictedPreLot)
	clamp(g.RhoRestrictedLot)
	clamp(g.RhoParkWait)
	clamp(g.RhoCleared)
}

// TotalMass sums every mobile density field, used by P7/P9's conservation
// and token-parity checks. Uses gonum/floats.Sum rather than a hand-rolled
// loop so the reduction gets gonum's accumulation behavior for free.
func (g *Grid) TotalMass() float64 {
	return floats.Sum(g.RhoRestricted) + floats.Sum(g.RhoRestrictedPreLot) +
		floats.Sum(g.RhoRestrictedLot) + floats.Sum(g.RhoParkWait) + floats.Sum(g.RhoCleared)
}
