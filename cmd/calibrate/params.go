// Package main provides CMA-ES calibration of transport-solver parameters
// against a target steady-state throughput.
package main

import "github.com/pthm-cable/pharr-corridor/config"

// ParamSpec defines a single calibratable parameter.
type ParamSpec struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
}

// ParamVector holds the set of transport-solver parameters CMA-ES tunes.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector returns the standard set of calibratable transport
// parameters, bounded around config/defaults.yaml's values.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "flow_frac", Min: 0.1, Max: 0.8, Default: 0.35},
			{Name: "rho_congestion_0", Min: 500, Max: 20000, Default: 4000},
			{Name: "congestion_p", Min: 1.0, Max: 4.0, Default: 2.0},
			{Name: "soft_capacity_alpha", Min: 1.0, Max: 10.0, Default: 4.0},
			{Name: "soft_capacity_beta", Min: 0.5, Max: 5.0, Default: 2.0},
			{Name: "pre_lot_alpha", Min: 0.2, Max: 1.0, Default: 1.0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int { return len(pv.Specs) }

// DefaultVector returns the default parameter values.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1].
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	norm := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		norm[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return norm
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(norm []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + norm[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp bounds every value to its [Min, Max] range.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg.Transport.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	cfg.Transport.FlowFrac = c[0]
	cfg.Transport.RhoCongestion0 = c[1]
	cfg.Transport.CongestionP = c[2]
	cfg.Transport.SoftCapacityAlpha = c[3]
	cfg.Transport.SoftCapacityBeta = c[4]
	cfg.Transport.PreLotAlpha = c[5]
}
