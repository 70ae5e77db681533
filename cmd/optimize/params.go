package main

import (
	"github.com/pthm-cable/autoevo/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Pressure strengths
			{Name: "temperature_strength", Path: "pressures.temperature", Min: 0.2, Max: 2.0, Default: 1.0},
			{Name: "sunlight_strength", Path: "pressures.sunlight", Min: 0.2, Max: 2.0, Default: 1.0},
			{Name: "chemicals_strength", Path: "pressures.chemicals", Min: 0.2, Max: 2.0, Default: 1.0},
			{Name: "predation_strength", Path: "pressures.predation", Min: 0.2, Max: 2.0, Default: 0.8},
			// Run steps
			{Name: "migration_fraction", Path: "autoevo.migration_fraction", Min: 0.01, Max: 0.4, Default: 0.1},
			{Name: "mutation_sigma", Path: "autoevo.mutation_sigma", Min: 0.02, Max: 0.5, Default: 0.15},
			{Name: "split_population_share", Path: "autoevo.split_population_share", Min: 0.05, Max: 0.6, Default: 0.25},
			// Energy economy
			{Name: "predation_energy", Path: "energy.predation_energy", Min: 2000, Max: 50000, Default: 15000},
			{Name: "base_individual_cost", Path: "energy.base_individual_cost", Min: 2, Max: 40, Default: 10},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.Pressures.Temperature = clamped[0]
	cfg.Pressures.Sunlight = clamped[1]
	cfg.Pressures.Chemicals = clamped[2]
	cfg.Pressures.Predation = clamped[3]

	cfg.AutoEvo.MigrationFraction = clamped[4]
	cfg.AutoEvo.MutationSigma = clamped[5]
	cfg.AutoEvo.SplitPopulationShare = clamped[6]

	cfg.Energy.PredationEnergy = clamped[7]
	cfg.Energy.BaseIndividualCost = clamped[8]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Pressures.Temperature,
		cfg.Pressures.Sunlight,
		cfg.Pressures.Chemicals,
		cfg.Pressures.Predation,
		cfg.AutoEvo.MigrationFraction,
		cfg.AutoEvo.MutationSigma,
		cfg.AutoEvo.SplitPopulationShare,
		cfg.Energy.PredationEnergy,
		cfg.Energy.BaseIndividualCost,
	}
}
