package components

import "github.com/mlange-42/ark/ecs"

// Lot is a disjoint set of grid cells with RegionMap[c] = RegionLot. Lots are
// created from polygon data at attach time and mutated every substep by the
// transport solver and service queue; they are plain simulation state, not
// ECS entities (there are only a handful of lots, unlike the truck
// population, so dense-array ECS storage buys nothing here).
type Lot struct {
	ID            int
	Cells         []int   // cell indices belonging to this lot
	AreaM2        float64
	CapacityKg    float64 // AreaM2 * LOT_KG_PER_M2
	MassKg        float64 // current restricted mass held in this lot
	IsFull        bool    // occupancy >= capacity threshold, snapshotted at rebuild start
	ScatterCursor int     // round-robin cursor for deposit scattering
	EgressCellIdx int     // nearest non-lot road cell, precomputed at attach/rebuild

	// RemainingAcceptance is the live, substep-scoped admission budget. It is
	// reinitialized at the start of every substep by rebuildLotLiveAcceptance
	// and decremented atomically (single-threaded, but ledger-style) as
	// transport deposits accepted kg.
	RemainingAcceptance float64

	// IsPark marks an industrial park. Parks are left out of lot routing,
	// proximity capture and fallback lot selection, so transport never
	// admits mass into them; their mass lives in rho_park_wait instead of
	// rho_restricted_lot, and the service queue withdraws it onto the park's
	// EgressCellIdx.
	IsPark bool
}

// PreLotBucket is one ring-bucket of the pre-lot holding scheduler: a sparse
// map from road cell index to pending kg awaiting release back into
// rho_restricted.
type PreLotBucket map[int]float64

// FIFOToken is a reference to a particle waiting in the global service
// queue. Only restricted particles enter the FIFO, exactly when they arrive
// at a lot or park wait zone.
type FIFOToken struct {
	Particle       ecs.Entity
	ArrivalSimTime float64
	LotIdx         int // index into Corridor.lots, or -1 if a park token
	ParkIdx        int // index into the corridor's combined lots slice, or -1 if a lot token
	Waiting        bool
}
