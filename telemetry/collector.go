package telemetry

import "github.com/pthm-cable/pharr-corridor/corridor"

// Collector accumulates simulated time and emits a WindowStats row once a
// reporting window elapses, mirroring corridor.Corridor's own cumulative
// counters rather than re-deriving them.
type Collector struct {
	windowSec float64
	elapsed   float64
}

// NewCollector creates a collector that flushes every windowSec of
// simulated time (e.g. 3600 for one row per simulated hour).
func NewCollector(windowSec float64) *Collector {
	if windowSec <= 0 {
		windowSec = 3600
	}
	return &Collector{windowSec: windowSec}
}

// Advance accrues dtSim of simulated time and reports whether the window
// has elapsed. Callers should call Flush immediately afterward.
func (c *Collector) Advance(dtSim float64) bool {
	c.elapsed += dtSim
	if c.elapsed < c.windowSec {
		return false
	}
	c.elapsed -= c.windowSec
	return true
}

// Flush converts a corridor.Metrics snapshot into a WindowStats row stamped
// with the current simulated time.
func (c *Collector) Flush(m corridor.Metrics, simTimeSec float64) WindowStats {
	return WindowStats{
		WindowEndSec: simTimeSec,

		InjectedKg:  m.InjectedKg,
		DrainedKg:   m.DrainedKg,
		ConvertedKg: m.ConvertedKg,

		RestrictedKg: m.RestrictedKg,
		ClearedKg:    m.ClearedKg,
		TotalKg:      m.TotalKg,

		BacklogNearPharrKg: m.BacklogNearPharrKg,

		ThroughputKgPerHr: m.ThroughputKgPerHr,
		InflowKgPerHr:     m.InflowKgPerHr,
		ConversionKgPerHr: m.ConversionKgPerHr,

		SkippedFrames:   m.SkippedFrames,
		RoutingRebuilds: m.RoutingRebuilds,
		QueueDepth:      m.QueueDepth,
		AliveParticles:  m.AliveParticles,
	}
}
