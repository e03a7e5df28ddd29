// Package queue implements the global FIFO service queue (Q): the single
// ordering authority that converts restricted-in-lot mass to cleared-on-road
// mass at a budgeted rate, honoring a minimum dwell and strict arrival
// order across every lot and park in the corridor (spec.md §4.5, I7).
package queue

import (
	"github.com/pthm-cable/pharr-corridor/components"
	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/grid"
)

// Releaser is notified when a token clears service, so the particle
// population (owned by package tracer) can flip the token's class and
// reposition it. Declared here, consumer-side, to avoid a queue<->tracer
// import cycle.
type Releaser interface {
	Release(tok components.FIFOToken, releaseCellIdx int, simTime float64)
}

// Queue is the single global FIFO. Served entries are not removed
// individually; the head cursor advances and the backing slice is
// compacted every CompactEveryN services, mirroring the teacher's
// circular-buffer bookkeeping in telemetry/bookmark.go without needing a
// fixed-size ring (the FIFO's length is unbounded in principle).
type Queue struct {
	cfg *config.Config

	tokens []components.FIFOToken
	head   int
	served int // count since last compaction

	budget float64 // accumulated service budget, kg

	// TotalServedKg accumulates every kg ever withdrawn by Service, for
	// corridor.Metrics' conversion throughput figure.
	TotalServedKg float64
}

// New creates an empty service queue.
func New(cfg *config.Config) *Queue {
	return &Queue{cfg: cfg, tokens: make([]components.FIFOToken, 0, 256)}
}

// Enqueue pushes a newly arrived token onto the tail of the FIFO. Called by
// the particle tracer exactly once, when a restricted particle physically
// arrives at a lot or park wait zone.
func (q *Queue) Enqueue(tok components.FIFOToken) {
	q.tokens = append(q.tokens, tok)
}

// Len reports the number of tokens currently waiting.
func (q *Queue) Len() int { return len(q.tokens) - q.head }

func (q *Queue) peek() components.FIFOToken { return q.tokens[q.head] }

func (q *Queue) pop() {
	q.head++
	q.served++
	if q.served >= q.cfg.Queue.CompactEveryN {
		q.tokens = append([]components.FIFOToken(nil), q.tokens[q.head:]...)
		q.head = 0
		q.served = 0
	}
}

// Service runs one service cycle of spec.md §4.5 (the corridor calls it once
// per frame, after the transport substeps): accrue a kg/s budget
// proportional to the current queue depth, then drain whole-truck
// quantities off the FIFO head in strict arrival order, subject to the
// minimum-dwell eligibility gate (I7/P5/P6).
//
// lots is the corridor's single combined lot/park slice — the same
// CellToLotIndex-addressed slice transport and routing use. A token's
// LotIdx is set for a conversion-lot arrival, ParkIdx for a park arrival;
// exactly one of the two is >= 0 and both index into lots.
func (q *Queue) Service(dtSim, simTime float64, lots []*components.Lot, g *grid.Grid, releaser Releaser) {
	truckKg := q.cfg.Queue.TruckKg
	if truckKg <= 0 {
		return
	}
	queuedTrucks := float64(q.Len())
	r := queuedTrucks * truckKg / q.cfg.Queue.TargetDwellS
	q.budget += r * dtSim

	for q.budget >= truckKg && q.Len() > 0 {
		tok := q.peek()
		if simTime-tok.ArrivalSimTime < q.cfg.Queue.MinClearWaitS {
			break // I7: an older, ineligible token blocks everyone behind it
		}

		var lot *components.Lot
		var field []float64
		if tok.LotIdx >= 0 {
			lot = lots[tok.LotIdx]
			field = g.RhoRestrictedLot
		} else {
			lot = lots[tok.ParkIdx]
			field = g.RhoParkWait
		}

		withdrawGreedy(lot, field, truckKg)
		lot.MassKg -= truckKg
		if lot.MassKg < 0 {
			lot.MassKg = 0
		}
		g.RhoCleared[lot.EgressCellIdx] += truckKg

		q.budget -= truckKg
		q.TotalServedKg += truckKg
		q.pop()

		if releaser != nil {
			releaser.Release(tok, lot.EgressCellIdx, simTime)
		}
	}
}

// withdrawGreedy drains up to kg total from field across lot's cells,
// taking as much as available from each cell in turn before moving on, per
// spec.md §4.5's "distributed across its cells greedily".
func withdrawGreedy(lot *components.Lot, field []float64, kg float64) {
	remaining := kg
	for _, cell := range lot.Cells {
		if remaining <= 0 {
			return
		}
		take := field[cell]
		if take > remaining {
			take = remaining
		}
		field[cell] -= take
		remaining -= take
	}
}

// MinDwellEligible reports whether the head token, if any, would currently
// satisfy the minimum-dwell gate. It is not part of the service path, and
// nothing else in this module calls it.
func (q *Queue) MinDwellEligible(simTime float64) bool {
	if q.Len() == 0 {
		return false
	}
	return simTime-q.peek().ArrivalSimTime >= q.cfg.Queue.MinClearWaitS
}
