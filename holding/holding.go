// Package holding implements the pre-lot holding delay buffer (H): a ring
// of deterministic buckets that releases restricted mass back onto the road
// after a uniform-random duration, without per-parcel timers. The ring
// structure (fixed-size slice, head index, wraparound) is grounded on
// telemetry/bookmark.go's BookmarkDetector circular history buffer in the
// teacher repo.
package holding

import (
	"github.com/pthm-cable/pharr-corridor/components"
	"github.com/pthm-cable/pharr-corridor/config"
	"github.com/pthm-cable/pharr-corridor/grid"
)

// Ring is the pre-lot holding scheduler. It implements
// transport.PreLotScheduler.
type Ring struct {
	cfg *config.Config

	buckets []components.PreLotBucket
	head    int
	accum   float64 // sim-seconds accumulated since the last bucket release
}

// NewRing allocates a ring of PRELOT_BUCKET_COUNT empty buckets.
func NewRing(cfg *config.Config) *Ring {
	n := cfg.PreLot.BucketCount
	r := &Ring{
		cfg:     cfg,
		buckets: make([]components.PreLotBucket, n),
	}
	for i := range r.buckets {
		r.buckets[i] = make(components.PreLotBucket)
	}
	return r
}

// Schedule records a pre-lot deposit of kg at road cell cellIdx, per
// spec.md §4.4: the kg is split evenly across every bucket whose offset
// from the current head falls within [PRELOT_MIN_S/W, PRELOT_MAX_S/W].
func (r *Ring) Schedule(cellIdx int, kg float64) {
	if kg <= 0 {
		return
	}
	w := r.cfg.PreLot.BucketWidthS
	if w <= 0 {
		return
	}
	loOffset := int(r.cfg.PreLot.MinS / w)
	hiOffset := int(r.cfg.PreLot.MaxS / w)
	if hiOffset < loOffset {
		return
	}
	n := hiOffset - loOffset + 1
	share := kg / float64(n)
	count := len(r.buckets)
	for off := loOffset; off <= hiOffset; off++ {
		b := (r.head + off) % count
		r.buckets[b][cellIdx] += share
	}
}

// Advance moves the ring forward by dtSim sim-seconds, releasing matured
// buckets back into the grid's mobile restricted field as their width
// elapses.
func (r *Ring) Advance(dtSim float64, g *grid.Grid) {
	width := r.cfg.PreLot.BucketWidthS
	if width <= 0 {
		return
	}
	r.accum += dtSim
	for r.accum >= width {
		r.accum -= width
		r.release(g)
	}
}

// release drains the bucket at the current head into rho_restricted,
// withdrawing the matching kg from rho_restricted_preLot (clamped to 0),
// then advances the head.
func (r *Ring) release(g *grid.Grid) {
	bucket := r.buckets[r.head]
	for cell, kg := range bucket {
		g.RhoRestricted[cell] += kg
		g.RhoRestrictedPreLot[cell] -= kg
		if g.RhoRestrictedPreLot[cell] < 0 {
			g.RhoRestrictedPreLot[cell] = 0
		}
		delete(bucket, cell)
	}
	r.head = (r.head + 1) % len(r.buckets)
}

// LiveTotal sums the pending kg across every bucket, used by the
// preLot-conservation check (P10) and telemetry.
func (r *Ring) LiveTotal() float64 {
	total := 0.0
	for _, b := range r.buckets {
		for _, kg := range b {
			total += kg
		}
	}
	return total
}
