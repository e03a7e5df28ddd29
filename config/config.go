// Package config provides configuration loading and access for the corridor engine.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all tunable parameters of the mass-transport engine.
type Config struct {
	Grid      GridConfig      `yaml:"grid"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Transport TransportConfig `yaml:"transport"`
	Lot       LotConfig       `yaml:"lot"`
	PreLot    PreLotConfig    `yaml:"pre_lot"`
	Queue     QueueConfig     `yaml:"queue"`
	Pulse     PulseConfig     `yaml:"pulse"`
	Particle  ParticleConfig  `yaml:"particle"`
	Routing   RoutingConfig   `yaml:"routing"`
	RNG       RNGConfig       `yaml:"rng"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds the dense-grid geometry.
type GridConfig struct {
	N             int     `yaml:"n"`               // cells per side
	CellSizeM     float64 `yaml:"cell_size_m"`     // meters per cell
	KThreshold    float64 `yaml:"k_threshold"`     // conductance floor for "is road"
	PhiLarge      float64 `yaml:"phi_large"`       // Dijkstra sentinel distance
}

// PhysicsConfig holds time-stepping parameters.
type PhysicsConfig struct {
	SimSecondsPerDay  float64 `yaml:"sim_seconds_per_day"`
	DayVideoSeconds   float64 `yaml:"day_video_seconds"`
	PhysicsSubsteps   int     `yaml:"physics_substeps"`
	MaxDtSimSeconds   float64 `yaml:"max_dt_sim_seconds"`
	YieldIntervalPops int     `yaml:"yield_interval_pops"` // R cooperative-yield batch size
}

// TransportConfig holds the graph-flux solver's tunables.
type TransportConfig struct {
	FlowFrac                  float64 `yaml:"flow_frac"`
	RhoCongestion0            float64 `yaml:"rho_congestion_0"`
	CongestionP               float64 `yaml:"congestion_p"`
	CongestionEnabled         bool    `yaml:"congestion_enabled"`
	CityRoadCostMult          float64 `yaml:"city_road_cost_mult"`
	LotTraversalCostMult      float64 `yaml:"lot_traversal_cost_mult"`
	SoftCapacityAlpha         float64 `yaml:"soft_capacity_alpha"`
	SoftCapacityBeta          float64 `yaml:"soft_capacity_beta"`
	PreLotAlpha               float64 `yaml:"pre_lot_alpha"` // fraction sent to lot-attempt, 1-alpha held pre-lot... see glossary
	LotScatterMaxCellsPerDep  int     `yaml:"lot_scatter_max_cells_per_deposit"`
	FallbackLotSearchRadius   int     `yaml:"fallback_lot_search_radius"`
	TransferRequirementFrac   float64 `yaml:"transfer_requirement_fraction"`
}

// LotConfig holds lot capacity/occupancy parameters.
type LotConfig struct {
	KgPerM2            float64 `yaml:"kg_per_m2"`
	CapacityThreshold  float64 `yaml:"capacity_threshold"`
	RebuildDebounceMS  int64   `yaml:"rebuild_debounce_ms"`
}

// PreLotConfig holds pre-lot holding ring-buffer parameters.
type PreLotConfig struct {
	BucketCount  int     `yaml:"bucket_count"`
	BucketWidthS float64 `yaml:"bucket_width_s"`
	MinS         float64 `yaml:"min_s"`
	MaxS         float64 `yaml:"max_s"`
}

// QueueConfig holds the global FIFO service-queue parameters.
type QueueConfig struct {
	TruckKg        float64 `yaml:"truck_kg"`
	TargetDwellS   float64 `yaml:"target_dwell_s"`
	MinClearWaitS  float64 `yaml:"min_clear_wait_s"`
	MaxClearWaitS  float64 `yaml:"max_clear_wait_s"`
	CompactEveryN  int     `yaml:"compact_every_n"`
}

// PulsePeriod describes one incommensurate sine term of the source pulse.
type PulsePeriod struct {
	PeriodMinutes float64 `yaml:"period_minutes"`
	Weight        float64 `yaml:"weight"`
}

// PulseConfig holds source-emission pulse parameters.
type PulseConfig struct {
	Periods     []PulsePeriod `yaml:"periods"`
	MinFloor    float64       `yaml:"min_floor"`
	JitterScale float64       `yaml:"jitter_scale"` // opensimplex jitter amplitude
}

// ParticleConfig holds particle tracer parameters.
type ParticleConfig struct {
	TargetVisualSpeedMS float64 `yaml:"target_visual_speed_ms"`
}

// RoutingConfig holds potential-field routing parameters.
type RoutingConfig struct {
	UnreachableWarnFraction float64 `yaml:"unreachable_warn_fraction"`
}

// RNGConfig seeds the deterministic PRNG stream.
type RNGConfig struct {
	Seed uint64 `yaml:"seed"`
}

// TelemetryConfig holds CSV/metrics export parameters.
type TelemetryConfig struct {
	OverflowWindowS float64 `yaml:"overflow_window_s"`
	OverflowTopN    int     `yaml:"overflow_top_n"`
	BacklogRadiusM  float64 `yaml:"backlog_radius_m"`
}

// DerivedConfig holds values computed once after loading.
type DerivedConfig struct {
	CellAreaM2     float64
	SimTimeScale   float64 // SimSecondsPerDay / DayVideoSeconds
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.CellAreaM2 = c.Grid.CellSizeM * c.Grid.CellSizeM
	c.Derived.SimTimeScale = c.Physics.SimSecondsPerDay / c.Physics.DayVideoSeconds
}

// WriteYAML serializes the configuration to path, for a run's output
// directory to record exactly what parameters produced it.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
