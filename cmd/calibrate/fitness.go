package main

import (
	"math"
	"time"

	"github.com/pthm-cable/pharr-corridor/components"
	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/corridor"
)

// calibWorld is a small fixed synthetic grid used purely to evaluate
// candidate parameter sets quickly; it is deliberately smaller than
// cmd/simulate's default so a CMA-ES sweep of hundreds of candidates stays
// fast.
type calibWorld struct {
	n           int
	cellSize    float64
	kxx, kyy, kxy []float64
	regionMap   []components.RegionKind
	roadTypeMap []components.RoadType
	sinkFalloff []float64
	sinkCells   []int
	lots        []corridor.LotSpec
	sources     []corridor.SourceSpec
}

func newCalibWorld(n int) *calibWorld {
	size := n * n
	w := &calibWorld{
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
	lx, ly := n/2-lotSize/2, n-lotSize-2
	var cells []int
	for dy := 0; dy < lotSize; dy++ {
		for dx := 0; dx < lotSize; dx++ {
			c := idx(lx+dx, ly+dy)
			w.regionMap[c] = components.RegionLot
			cells = append(cells, c)
		}
	}
	w.lots = []corridor.LotSpec{{Cells: cells, AreaM2: float64(len(cells)) * w.cellSize * w.cellSize}}

	gate := idx(n/2, 0)
	w.sources = []corridor.SourceSpec{{CellIdx: gate, InflowShare: 1.0}}

	sink := idx(n/2, n-1)
	w.sinkFalloff[sink] = 1.0
	w.sinkCells = []int{sink}

	return w
}

func (w *calibWorld) GridN() int                              { return w.n }
func (w *calibWorld) CellSizeM() float64                      { return w.cellSize }
func (w *calibWorld) Origin() (float64, float64)               { return 0, 0 }
func (w *calibWorld) Conductance() ([]float64, []float64, []float64) {
	return w.kxx, w.kyy, w.kxy
}
func (w *calibWorld) RegionMap() []components.RegionKind { return w.regionMap }
func (w *calibWorld) RoadTypeMap() []components.RoadType { return w.roadTypeMap }
func (w *calibWorld) SinkFalloff() []float64             { return w.sinkFalloff }
func (w *calibWorld) SinkCellIndices() []int             { return w.sinkCells }
func (w *calibWorld) Lots() []corridor.LotSpec           { return w.lots }
func (w *calibWorld) Sources() []corridor.SourceSpec     { return w.sources }

type calibScenario struct {
	inflowKgPerHr, gateCapKgPerHr float64
}

func (s *calibScenario) PharrInflow(hour int) float64       { return s.inflowKgPerHr }
func (s *calibScenario) PharrGateCapacity(hour int) float64 { return s.gateCapKgPerHr }

// FitnessEvaluator runs short headless simulations with a candidate
// parameter set and scores how close the resulting steady-state
// throughput lands to a target, averaged over several RNG seeds.
type FitnessEvaluator struct {
	params           *ParamVector
	baseCfg          *config.Config
	seeds            []uint64
	simHours         float64
	targetThroughput float64
	lastBacklog      float64
}

// NewFitnessEvaluator creates an evaluator that runs simHours of simulated
// time per seed, scoring against targetThroughputKgPerHr.
func NewFitnessEvaluator(params *ParamVector, baseCfg *config.Config, seeds []uint64, simHours, targetThroughputKgPerHr float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:           params,
		baseCfg:          baseCfg,
		seeds:            seeds,
		simHours:         simHours,
		targetThroughput: targetThroughputKgPerHr,
	}
}

// LastBacklog returns the mean backlog-near-gate observed in the most
// recent Evaluate call, for progress reporting.
func (e *FitnessEvaluator) LastBacklog() float64 { return e.lastBacklog }

// Evaluate runs one simulation per seed with the given raw (denormalized)
// parameter values and returns the mean squared relative error between
// observed and target steady-state throughput.
func (e *FitnessEvaluator) Evaluate(raw []float64) float64 {
	cfg := *e.baseCfg
	e.params.ApplyToConfig(&cfg, raw)

	var totalLoss, totalBacklog float64
	for _, seed := range e.seeds {
		runCfg := cfg
		runCfg.RNG.Seed = seed

		c := corridor.New(&runCfg)
		world := newCalibWorld(30)
		scenario := &calibScenario{inflowKgPerHr: e.targetThroughput * 1.3, gateCapKgPerHr: e.targetThroughput * 1.3}
		if err := c.Attach(world, scenario); err != nil {
			totalLoss += 1.0
			continue
		}
		c.SetSimSpeed(3600) // each one-second Step is clamped to max_dt_sim_seconds of sim time

		simHoursTarget := e.simHours
		for c.SimTimeSec() < simHoursTarget*3600 {
			c.Step(time.Second)
		}

		m := c.Metrics()
		rel := (m.ThroughputKgPerHr - e.targetThroughput) / e.targetThroughput
		totalLoss += rel * rel
		totalBacklog += m.BacklogNearPharrKg
		c.Detach()
	}

	e.lastBacklog = totalBacklog / float64(len(e.seeds))
	return totalLoss / float64(len(e.seeds))
}

var _ = math.Abs // retained for future tolerance-based early stopping
