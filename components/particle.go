package components

// Position is a particle's current world-meter coordinate. It is an ECS
// component so the tracer can query/iterate the live particle population in
// dense storage, the same way the teacher's organism simulation stores
// Position/Velocity per entity.
type Position struct {
	X, Y float64
}

// PrevPosition is the particle's position at the start of the current step,
// used to detect "intended lot entry" (I-checks in P.step) and to snap a
// particle back when it drifts onto the wrong lot.
type PrevPosition struct {
	X, Y float64
}

// ParticleState carries everything about a truck-token that isn't a raw
// coordinate: class, provenance, and the lot/park/FIFO bookkeeping flags from
// spec.md §3's Particle entity.
type ParticleState struct {
	Age   float64
	Class ParticleClass

	SourceCellIdx int     // provenance only, never used for routing
	PreLotKey     float64 // stable per-particle key in [0,1) for preLot stall sampling

	WaitingInLot   bool
	LotParked      bool
	WaitingInPark  bool
	ParkIdx        int // -1 if not a park particle
	LotIdx         int // -1 if not currently associated with a lot

	ReleaseCellIdx    int     // road cell a cleared/serviced particle is released onto
	LotArrivalSimTime float64 // sim-time the particle physically arrived at its lot/park
}
