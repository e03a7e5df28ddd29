package corridor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/pharr-corridor/components"
	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/grid"
	"github.com/pthm-cable/pharr-corridor/holding"
	"github.com/pthm-cable/pharr-corridor/queue"
	"github.com/pthm-cable/pharr-corridor/rng"
	"github.com/pthm-cable/pharr-corridor/routing"
	"github.com/pthm-cable/pharr-corridor/tracer"
	"github.com/pthm-cable/pharr-corridor/transport"
)

// Corridor is the per-frame orchestrator: the single entry point a host
// drives once per tick, implementing spec.md §4.7's pseudocode exactly.
type Corridor struct {
	cfg *config.Config

	g        *grid.Grid
	rngs     *rng.Stream
	routingB *routing.Builder
	solver   *transport.Solver
	holdingR *holding.Ring
	svcQueue *queue.Queue
	particle *tracer.Tracer

	lots     []*components.Lot
	lastFull []bool // snapshot of lot.IsFull-equivalent from the previous frame
	sumSinkG float64

	sourceCells   []int
	sourceShares  []float64
	gateCapKgPerS float64

	scenario ScenarioSource
	lastHour int

	simTime float64
	paused  bool
	speed   float64

	drainedTotal  float64
	skippedFrames int64

	// Previous-frame cumulative totals, used to derive the instantaneous
	// kg/hr rates Metrics() reports.
	prevDrainedKg float64
	prevServedKg  float64

	throughputKgPerHr float64
	conversionKgPerHr float64
}

// New creates an unattached Corridor. Call Attach before Step.
func New(cfg *config.Config) *Corridor {
	return &Corridor{
		cfg:      cfg,
		rngs:     rng.New(cfg.RNG.Seed),
		lastHour: -1,
		speed:    1,
	}
}

// Attach wires a world context and scenario source into a fresh simulation
// state, per spec.md §6. It is an error to Attach twice without an
// intervening Detach.
func (c *Corridor) Attach(ctx WorldContext, scenario ScenarioSource) error {
	if c.g != nil {
		return fmt.Errorf("corridor: Attach called while already attached")
	}

	n := ctx.GridN()
	ox, oy := ctx.Origin()
	g := grid.New(n, ctx.CellSizeM(), ox, oy)

	kxx, kyy, kxy := ctx.Conductance()
	copy(g.Kxx, kxx)
	copy(g.Kyy, kyy)
	copy(g.Kxy, kxy)
	copy(g.RegionMap, ctx.RegionMap())
	copy(g.RoadTypeMap, ctx.RoadTypeMap())
	copy(g.G, ctx.SinkFalloff())
	g.SinkCellIndices = append([]int(nil), ctx.SinkCellIndices()...)
	for _, s := range ctx.Sources() {
		g.SourceCellIndices = append(g.SourceCellIndices, s.CellIdx)
	}
	g.BuildSparseIndices(c.cfg.Grid.KThreshold)

	c.sumSinkG = 0
	for _, idx := range g.SinkCellIndices {
		c.sumSinkG += g.G[idx]
	}

	lots, err := buildLots(g, ctx.Lots(), c.cfg)
	if err != nil {
		return err
	}

	c.g = g
	c.lots = lots
	c.lastFull = make([]bool, len(lots))
	c.scenario = scenario
	c.lastHour = -1
	c.simTime = 0
	c.paused = false
	c.drainedTotal = 0
	c.skippedFrames = 0

	c.routingB = routing.NewBuilder(c.cfg, n)
	c.solver = transport.NewSolver(c.cfg, c.rngs)
	c.holdingR = holding.NewRing(c.cfg)
	c.svcQueue = queue.New(c.cfg)
	c.particle = tracer.New(c.cfg, g, c.svcQueue, c.rngs)

	sources := make([]tracer.Source, len(ctx.Sources()))
	for i, s := range ctx.Sources() {
		sources[i] = tracer.Source{CellIdx: s.CellIdx, Phase: s.Phase, IsPark: s.IsPark, LotIdx: s.LotIdx}
	}
	c.particle.SetSources(sources)
	c.sourceShares = make([]float64, len(ctx.Sources()))
	for i, s := range ctx.Sources() {
		c.sourceShares[i] = s.InflowShare
	}
	c.sourceCells = make([]int, len(ctx.Sources()))
	for i, s := range ctx.Sources() {
		c.sourceCells[i] = s.CellIdx
	}

	c.routingB.ForceRebuild(c.g, c.lots)
	return nil
}

// Detach releases the attached simulation state. A Corridor may be
// re-Attached afterward.
func (c *Corridor) Detach() {
	c.g = nil
	c.lots = nil
	c.routingB = nil
	c.solver = nil
	c.holdingR = nil
	c.svcQueue = nil
	c.particle = nil
	c.scenario = nil
}

// SimTimeSec returns the total simulated time elapsed since Attach.
func (c *Corridor) SimTimeSec() float64 { return c.simTime }

// Lots returns the attached simulation's lots, for callers (telemetry,
// inspection tools) that need to read per-lot state directly.
func (c *Corridor) Lots() []*components.Lot { return c.lots }

// Pause stops Step from advancing the sim clock or physics.
func (c *Corridor) Pause() { c.paused = true }

// Resume un-pauses the simulation.
func (c *Corridor) Resume() { c.paused = false }

// TogglePause flips the pause state and returns the new value.
func (c *Corridor) TogglePause() bool {
	c.paused = !c.paused
	return c.paused
}

// SetSimSpeed sets the pure multiplier applied to SIM_TIME_SCALE (spec.md
// §6's speed presets).
func (c *Corridor) SetSimSpeed(multiplier float64) { c.speed = multiplier }

// ForceRebuildRouting runs a synchronous routing rebuild immediately,
// bypassing coalescing and debounce.
func (c *Corridor) ForceRebuildRouting() {
	if c.g == nil {
		return
	}
	c.routingB.ForceRebuild(c.g, c.lots)
}

// SetLotCapacity rescales every lot's capacity to kgPerM2, per spec.md §6:
// capacity is never allowed to drop below a lot's current mass (clamp and
// warn instead). This always triggers a coalesced, non-debounced rebuild,
// since it is a configuration change rather than an occupancy fluctuation.
func (c *Corridor) SetLotCapacity(kgPerM2 float64) {
	if c.g == nil {
		return
	}
	for _, lot := range c.lots {
		newCap := lot.AreaM2 * kgPerM2
		if newCap < lot.MassKg {
			slog.Warn("corridor: clamping lot capacity to current mass",
				"lotID", lot.ID, "requestedCapacityKg", newCap, "currentMassKg", lot.MassKg)
			newCap = lot.MassKg
		}
		lot.CapacityKg = newCap
	}
	c.routingB.RequestRebuild(true)
}

// Step advances the simulation by one frame, implementing spec.md §4.7's
// per-frame orchestration pseudocode.
func (c *Corridor) Step(realDt time.Duration) {
	if c.g == nil {
		return
	}

	c.routingB.Tick(c.g, c.lots, time.Now())
	if c.routingB.InProgress() {
		c.skippedFrames++
		return
	}

	if c.paused {
		return
	}

	dtSim := realDt.Seconds() * c.cfg.Derived.SimTimeScale * c.speed
	if dtSim < 0 {
		dtSim = 0
	}
	if maxDt := c.cfg.Physics.MaxDtSimSeconds; dtSim > maxDt {
		dtSim = maxDt
	}
	c.simTime += dtSim

	hour := int(c.simTime / 3600)
	if hour != c.lastHour {
		c.loadHourlyInputs(hour)
		c.lastHour = hour
	}

	c.holdingR.Advance(dtSim, c.g)
	c.checkLotFullnessChanged()

	substeps := c.cfg.Physics.PhysicsSubsteps
	if substeps < 1 {
		substeps = 1
	}
	subDt := dtSim / float64(substeps)
	for i := 0; i < substeps; i++ {
		c.solver.RebuildLotLiveAcceptance(c.lots)
		c.solver.GraphFlowClass(components.ClassRestricted, c.g, c.lots, c.holdingR)
		c.solver.GraphFlowClass(components.ClassCleared, c.g, c.lots, nil)
		c.particle.SetSimTime(c.simTime)
		c.particle.Step(subDt, c.lots)
	}

	c.particle.InjectMass(dtSim, c.lots)
	c.svcQueue.Service(dtSim, c.simTime, c.lots, c.g, c.particle)
	c.drainSink(dtSim)
	c.g.EnforceNonNegative()

	c.updateRates(dtSim)
}

// updateRates derives the instantaneous kg/hr figures Metrics() reports
// from the cumulative counters' frame-to-frame deltas.
func (c *Corridor) updateRates(dtSim float64) {
	if dtSim <= 0 {
		return
	}
	served := c.svcQueue.TotalServedKg

	c.throughputKgPerHr = (c.drainedTotal - c.prevDrainedKg) / dtSim * 3600
	c.conversionKgPerHr = (served - c.prevServedKg) / dtSim * 3600

	c.prevDrainedKg = c.drainedTotal
	c.prevServedKg = served
}

// loadHourlyInputs pulls the scenario bundle's inflow and gate capacity for
// the given sim-hour and distributes them across sources/sinks, per
// spec.md §6's "scenario bundle" contract.
func (c *Corridor) loadHourlyInputs(hour int) {
	totalKg := c.scenario.PharrInflow(hour)
	ratePerSec := totalKg / 3600
	for i, cell := range c.sourceCells {
		c.g.S[cell] = ratePerSec * c.sourceShares[i]
	}
	c.gateCapKgPerS = c.scenario.PharrGateCapacity(hour) / 3600
}

// checkLotFullnessChanged detects whether any lot crossed the capacity
// threshold since the last frame and, if so, schedules a debounced routing
// rebuild (spec.md §4.7's "lot occupancy fullness set changed" trigger).
func (c *Corridor) checkLotFullnessChanged() {
	threshold := c.cfg.Lot.CapacityThreshold
	changed := false
	for i, lot := range c.lots {
		full := lot.CapacityKg > 0 && lot.MassKg/lot.CapacityKg >= threshold
		if full != c.lastFull[i] {
			changed = true
		}
		c.lastFull[i] = full
	}
	if changed {
		c.routingB.RequestRebuild(false)
	}
}

// drainSink releases cleared mass at sink cells, capped by the scenario's
// current gate capacity, splitting the budget across sink cells in
// proportion to their G falloff weight.
func (c *Corridor) drainSink(dtSim float64) {
	if c.sumSinkG <= 0 || c.gateCapKgPerS <= 0 {
		return
	}
	budget := c.gateCapKgPerS * dtSim
	for _, idx := range c.g.SinkCellIndices {
		share := budget * (c.g.G[idx] / c.sumSinkG)
		drain := share
		if drain > c.g.RhoCleared[idx] {
			drain = c.g.RhoCleared[idx]
		}
		c.g.RhoCleared[idx] -= drain
		c.drainedTotal += drain
	}
}
