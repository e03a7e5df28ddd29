package corridor

// Metrics is the snapshot spec.md §6's getMetrics() returns: cumulative
// totals plus a handful of instantaneous/derived rates, read by a host's
// dashboard or by package telemetry's periodic CSV export.
type Metrics struct {
	InjectedKg  float64
	DrainedKg   float64
	ConvertedKg float64

	RestrictedKg float64
	ClearedKg    float64
	TotalKg      float64

	BacklogNearPharrKg float64

	ThroughputKgPerHr float64
	InflowKgPerHr     float64
	ConversionKgPerHr float64

	SkippedFrames   int64
	RoutingRebuilds int
	QueueDepth      int
	AliveParticles  int
}

// Metrics computes a fresh snapshot from the current simulation state. It
// is O(N) in grid size (summing density fields) — cheap relative to a
// frame's physics cost, but callers polling at high frequency should cache.
func (c *Corridor) Metrics() Metrics {
	if c.g == nil {
		return Metrics{}
	}

	var restricted, cleared, backlog, inflowPerSec float64
	for i := 0; i < c.g.Size(); i++ {
		restricted += c.g.RhoRestricted[i] + c.g.RhoRestrictedPreLot[i] + c.g.RhoRestrictedLot[i] + c.g.RhoParkWait[i]
		cleared += c.g.RhoCleared[i]
	}
	for _, cell := range c.sourceCells {
		inflowPerSec += c.g.S[cell]
	}

	radiusM := c.cfg.Telemetry.BacklogRadiusM
	for _, idx := range c.g.RoadCellIndices {
		if c.g.PhiPharr[idx] <= radiusM {
			backlog += c.g.RhoCleared[idx]
		}
	}

	return Metrics{
		InjectedKg:  c.particle.InjectedKg(),
		DrainedKg:   c.drainedTotal,
		ConvertedKg: c.svcQueue.TotalServedKg,

		RestrictedKg: restricted,
		ClearedKg:    cleared,
		TotalKg:      restricted + cleared,

		BacklogNearPharrKg: backlog,

		ThroughputKgPerHr: c.throughputKgPerHr,
		InflowKgPerHr:     inflowPerSec * 3600,
		ConversionKgPerHr: c.conversionKgPerHr,

		SkippedFrames:   c.skippedFrames,
		RoutingRebuilds: c.routingB.RebuildCount,
		QueueDepth:      c.svcQueue.Len(),
		AliveParticles:  c.particle.AliveCount(),
	}
}
