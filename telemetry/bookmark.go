package telemetry

import (
	"fmt"
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/pharr-corridor/components"
)

// OverflowIncident records a lot that was at or over capacity at the end of
// a reporting window, ranked among the top offenders for that window.
type OverflowIncident struct {
	WindowEndSec     float64 `csv:"window_end_sec"`
	LotID            int     `csv:"lot_id"`
	OccupancyPct     float64 `csv:"occupancy_pct"`
	MeanOccupancyPct float64 `csv:"mean_occupancy_pct"`
	Description      string  `csv:"description"`
}

// LogIncident logs the incident using slog.
func (o OverflowIncident) LogIncident() {
	slog.Warn("lot_overflow",
		"window_end_sec", o.WindowEndSec,
		"lot_id", o.LotID,
		"occupancy_pct", o.OccupancyPct,
		"mean_occupancy_pct", o.MeanOccupancyPct,
		"description", o.Description,
	)
}

// lotHistory is a rolling circular buffer of occupancy-fraction samples for
// one lot, used to compute the mean occupancy over the detection window.
type lotHistory struct {
	samples []float64
	idx     int
	full    bool
}

func (h *lotHistory) record(occ float64) {
	h.samples[h.idx] = occ
	h.idx = (h.idx + 1) % len(h.samples)
	if h.idx == 0 {
		h.full = true
	}
}

func (h *lotHistory) values() []float64 {
	if h.full {
		return h.samples
	}
	return h.samples[:h.idx]
}

// OverflowDetector watches lot occupancy over fixed-duration windows and
// reports the top-N most overcrowded lots per window (spec.md §7's "log the
// top-5 offending lots per 2s window" requirement).
type OverflowDetector struct {
	windowSec   float64
	topN        int
	historySize int
	elapsed     float64
	history     []lotHistory
}

// NewOverflowDetector creates a detector flushing every windowSec of
// simulated time, reporting at most topN lots per window.
func NewOverflowDetector(windowSec float64, topN int) *OverflowDetector {
	if windowSec <= 0 {
		windowSec = 2
	}
	if topN <= 0 {
		topN = 5
	}
	return &OverflowDetector{
		windowSec:   windowSec,
		topN:        topN,
		historySize: 8,
	}
}

// Check accrues dtSim of simulated time and, once the window elapses,
// returns the ranked list of lots at or over capacity. Returns nil on
// windows where the detection interval has not yet elapsed.
func (d *OverflowDetector) Check(lots []*components.Lot, simTimeSec, dtSim float64) []OverflowIncident {
	if len(d.history) != len(lots) {
		d.history = make([]lotHistory, len(lots))
		for i := range d.history {
			d.history[i].samples = make([]float64, d.historySize)
		}
	}

	for i, lot := range lots {
		occ := 0.0
		if lot.CapacityKg > 0 {
			occ = lot.MassKg / lot.CapacityKg
		}
		d.history[i].record(occ)
	}

	d.elapsed += dtSim
	if d.elapsed < d.windowSec {
		return nil
	}
	d.elapsed -= d.windowSec

	type ranked struct {
		lot  *components.Lot
		occ  float64
		mean float64
	}
	var offenders []ranked
	for i, lot := range lots {
		if lot.CapacityKg <= 0 {
			continue
		}
		occ := lot.MassKg / lot.CapacityKg
		if occ < 1.0 {
			continue
		}
		mean, _ := stat.MeanStdDev(d.history[i].values(), nil)
		offenders = append(offenders, ranked{lot: lot, occ: occ, mean: mean})
	}
	sort.Slice(offenders, func(a, b int) bool { return offenders[a].occ > offenders[b].occ })
	if len(offenders) > d.topN {
		offenders = offenders[:d.topN]
	}

	incidents := make([]OverflowIncident, len(offenders))
	for i, r := range offenders {
		incidents[i] = OverflowIncident{
			WindowEndSec:     simTimeSec,
			LotID:            r.lot.ID,
			OccupancyPct:     r.occ * 100,
			MeanOccupancyPct: r.mean * 100,
			Description: fmt.Sprintf("lot %d at %.0f%% capacity (window mean %.0f%%)",
				r.lot.ID, r.occ*100, r.mean*100),
		}
	}
	return incidents
}
