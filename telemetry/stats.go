package telemetry

import "log/slog"

// WindowStats holds one row of aggregated corridor metrics, sampled at the
// end of a reporting window (typically one simulated hour).
type WindowStats struct {
	WindowEndSec float64 `csv:"window_end_sec"`

	InjectedKg  float64 `csv:"injected_kg"`
	DrainedKg   float64 `csv:"drained_kg"`
	ConvertedKg float64 `csv:"converted_kg"`

	RestrictedKg float64 `csv:"restricted_kg"`
	ClearedKg    float64 `csv:"cleared_kg"`
	TotalKg      float64 `csv:"total_kg"`

	BacklogNearPharrKg float64 `csv:"backlog_near_pharr_kg"`

	ThroughputKgPerHr float64 `csv:"throughput_kg_per_hr"`
	InflowKgPerHr     float64 `csv:"inflow_kg_per_hr"`
	ConversionKgPerHr float64 `csv:"conversion_kg_per_hr"`

	SkippedFrames   int64 `csv:"skipped_frames"`
	RoutingRebuilds int   `csv:"routing_rebuilds"`
	QueueDepth      int   `csv:"queue_depth"`
	AliveParticles  int   `csv:"alive_particles"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("window_end_sec", s.WindowEndSec),
		slog.Float64("injected_kg", s.InjectedKg),
		slog.Float64("drained_kg", s.DrainedKg),
		slog.Float64("converted_kg", s.ConvertedKg),
		slog.Float64("restricted_kg", s.RestrictedKg),
		slog.Float64("cleared_kg", s.ClearedKg),
		slog.Float64("total_kg", s.TotalKg),
		slog.Float64("backlog_near_pharr_kg", s.BacklogNearPharrKg),
		slog.Float64("throughput_kg_per_hr", s.ThroughputKgPerHr),
		slog.Float64("inflow_kg_per_hr", s.InflowKgPerHr),
		slog.Float64("conversion_kg_per_hr", s.ConversionKgPerHr),
		slog.Int64("skipped_frames", s.SkippedFrames),
		slog.Int("routing_rebuilds", s.RoutingRebuilds),
		slog.Int("queue_depth", s.QueueDepth),
		slog.Int("alive_particles", s.AliveParticles),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end_sec", s.WindowEndSec,
		"injected_kg", s.InjectedKg,
		"drained_kg", s.DrainedKg,
		"converted_kg", s.ConvertedKg,
		"restricted_kg", s.RestrictedKg,
		"cleared_kg", s.ClearedKg,
		"total_kg", s.TotalKg,
		"backlog_near_pharr_kg", s.BacklogNearPharrKg,
		"throughput_kg_per_hr", s.ThroughputKgPerHr,
		"inflow_kg_per_hr", s.InflowKgPerHr,
		"conversion_kg_per_hr", s.ConversionKgPerHr,
		"skipped_frames", s.SkippedFrames,
		"routing_rebuilds", s.RoutingRebuilds,
		"queue_depth", s.QueueDepth,
		"alive_particles", s.AliveParticles,
	)
}
