package main

import (
	"math"

	"github.com/pthm-cable/pharr-corridor/components"
	"github.com/pthm-cable/pharr-corridor/corridor"
)

// syntheticWorld is a hand-laid-out grid standing in for a real rasterized
// border-crossing corridor: uniformly traversable terrain, a handful of
// conversion lots along the southern edge, a single entry gate on the
// northern edge, and a single interior sink. It exists to exercise
// Corridor end to end without the GIS/polygon ingestion this module
// deliberately leaves to a caller (spec.md §6's external-interfaces
// boundary).
type syntheticWorld struct {
	n        int
	cellSize float64

	kxx, kyy, kxy []float64
	regionMap     []components.RegionKind
	roadTypeMap   []components.RoadType
	sinkFalloff   []float64
	sinkCells     []int
	lots          []corridor.LotSpec
	sources       []corridor.SourceSpec
}

// newSyntheticWorld lays out an n×n grid with lotCount square conversion
// lots evenly spaced along the southern edge.
func newSyntheticWorld(n, lotCount int) *syntheticWorld {
	size := n * n
	w := &syntheticWorld{
		n:           n,
		cellSize:    10.0,
		kxx:         make([]float64, size),
		kyy:         make([]float64, size),
		kxy:         make([]float64, size),
		regionMap:   make([]components.RegionKind, size),
		roadTypeMap: make([]components.RoadType, size),
		sinkFalloff: make([]float64, size),
	}
	idx := func(x, y int) int { return y*n + x }

	for i := range w.kxx {
		w.kxx[i] = 1.0
		w.kyy[i] = 1.0
	}

	const lotSize = 3
	spacing := n / (lotCount + 1)
	for i := 0; i < lotCount; i++ {
		lx := spacing * (i + 1)
		ly := n - lotSize - 2
		var cells []int
		for dy := 0; dy < lotSize; dy++ {
			for dx := 0; dx < lotSize; dx++ {
				x, y := lx+dx, ly+dy
				if x < 0 || x >= n || y < 0 || y >= n {
					continue
				}
				c := idx(x, y)
				w.regionMap[c] = components.RegionLot
				cells = append(cells, c)
			}
		}
		if len(cells) > 0 {
			w.lots = append(w.lots, corridor.LotSpec{
				Cells:  cells,
				AreaM2: float64(len(cells)) * w.cellSize * w.cellSize,
			})
		}
	}

	// The gate: the single source cell modeling the bridge's US-bound
	// inspection lanes.
	gate := idx(n/2, 0)
	w.sources = []corridor.SourceSpec{{CellIdx: gate, Phase: 0, InflowShare: 1.0}}

	// The sink: the interior distribution point cleared trucks drain to.
	sink := idx(n/2, n-1)
	w.sinkFalloff[sink] = 1.0
	w.sinkCells = []int{sink}

	return w
}

func (w *syntheticWorld) GridN() int         { return w.n }
func (w *syntheticWorld) CellSizeM() float64 { return w.cellSize }
func (w *syntheticWorld) Origin() (float64, float64) {
	return 0, 0
}
func (w *syntheticWorld) Conductance() ([]float64, []float64, []float64) {
	return w.kxx, w.kyy, w.kxy
}
func (w *syntheticWorld) RegionMap() []components.RegionKind { return w.regionMap }
func (w *syntheticWorld) RoadTypeMap() []components.RoadType { return w.roadTypeMap }
func (w *syntheticWorld) SinkFalloff() []float64             { return w.sinkFalloff }
func (w *syntheticWorld) SinkCellIndices() []int             { return w.sinkCells }
func (w *syntheticWorld) Lots() []corridor.LotSpec           { return w.lots }
func (w *syntheticWorld) Sources() []corridor.SourceSpec     { return w.sources }

// syntheticScenario produces a smooth day/night inflow curve and a fixed
// gate capacity, standing in for a parsed hourly scenario bundle.
type syntheticScenario struct {
	peakInflowKgPerHr float64
	gateCapKgPerHr    float64
}

// PharrInflow returns a single positive half-sine of inflow per 24h day,
// busiest at midday and near zero overnight.
func (s *syntheticScenario) PharrInflow(hour int) float64 {
	hourOfDay := float64(hour % 24)
	shape := math.Sin(hourOfDay / 24 * math.Pi)
	if shape < 0 {
		shape = 0
	}
	return s.peakInflowKgPerHr * shape
}

func (s *syntheticScenario) PharrGateCapacity(hour int) float64 {
	return s.gateCapKgPerHr
}
