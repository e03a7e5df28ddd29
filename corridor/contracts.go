// Package corridor wires the grid, routing, transport, holding, queue, and
// tracer components into the single per-frame orchestrator spec.md §4.7
// describes. It is grounded on game/game.go's Game struct and its
// simulationStep method in the teacher repo: a numbered, phase-by-phase
// Update body driving otherwise-independent subsystems in a fixed order.
package corridor

import "github.com/pthm-cable/pharr-corridor/components"

// LotSpec describes one lot or industrial park at attach time, already
// reduced from polygon geometry to a flat cell list by the caller — this
// core never parses lat/lon or polylines itself (spec.md §1, §6).
type LotSpec struct {
	Cells  []int
	AreaM2 float64
	IsPark bool
}

// SourceSpec describes one emission point at attach time. InflowShare is
// this source's fraction of the scenario bundle's total hourly inflow
// (shares across all sources should sum to 1); Phase is the per-source
// pulse phase offset from spec.md §4.6.
type SourceSpec struct {
	CellIdx     int
	Phase       float64
	IsPark      bool
	LotIdx      int // index into the Lots() slice, meaningful only if IsPark
	InflowShare float64
}

// WorldContext supplies the already-rasterized geometry a host renderer (or
// a headless scenario loader) produces from world bounds, road polylines,
// lot polygons, and the gate position, per spec.md §6's external-interfaces
// contract. Every slice must be sized N*N and indexed y*N+x.
type WorldContext interface {
	GridN() int
	CellSizeM() float64
	Origin() (x, y float64)

	// Conductance returns the static anisotropic tensor fields.
	Conductance() (kxx, kyy, kxy []float64)
	RegionMap() []components.RegionKind
	RoadTypeMap() []components.RoadType

	// SinkFalloff returns G: nonzero at the PHARR gate disk, zero elsewhere.
	SinkFalloff() []float64

	SinkCellIndices() []int
	Lots() []LotSpec
	Sources() []SourceSpec
}

// ScenarioSource supplies the hourly-varying inputs spec.md §6 calls the
// "scenario bundle": total inflow and gate capacity for a given simulated
// hour (hour 0 is the first hour after Attach).
type ScenarioSource interface {
	// PharrInflow returns total kg of inflow for the given sim-hour, summed
	// across whatever HS2 codes the scenario tracks internally — this core
	// only needs the total, distributed across sources by their
	// InflowShare.
	PharrInflow(hour int) float64
	// PharrGateCapacity returns the PHARR gate's drain capacity in kg/hour
	// for the given sim-hour.
	PharrGateCapacity(hour int) float64
}
