// Package config provides configuration loading and access for the auto-evo engine.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/autoevo/traits"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine configuration parameters.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	AutoEvo   AutoEvoConfig   `yaml:"autoevo"`
	Energy    EnergyConfig    `yaml:"energy"`
	Pressures PressuresConfig `yaml:"pressures"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Events    EventsConfig    `yaml:"events"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Species   []SpeciesConfig `yaml:"species"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds patch map generation parameters.
type WorldConfig struct {
	Columns           int     `yaml:"columns"`            // Patch grid width
	Rows              int     `yaml:"rows"`               // Patch grid height
	NoiseScale        float64 `yaml:"noise_scale"`        // Base noise frequency per patch step
	Octaves           int     `yaml:"octaves"`            // FBM octaves
	Lacunarity        float64 `yaml:"lacunarity"`         // Frequency multiplier per octave
	Gain              float64 `yaml:"gain"`               // Amplitude multiplier per octave
	TemperatureMin    float64 `yaml:"temperature_min"`    // Coldest patch temperature (C)
	TemperatureMax    float64 `yaml:"temperature_max"`    // Hottest patch temperature (C)
	SunlightMax       float64 `yaml:"sunlight_max"`       // Sunlight at the brightest patch (0..1)
	ChemicalsMax      float64 `yaml:"chemicals_max"`      // Chemicals at the richest patch (0..1)
	InitialPopulation int64   `yaml:"initial_population"` // Founder population per seeded patch
	SeedPatches       int     `yaml:"seed_patches"`       // Patches each founder species starts in
}

// AutoEvoConfig holds run orchestration and step parameters.
type AutoEvoConfig struct {
	Workers                 int     `yaml:"workers"`                    // Concurrent step workers (0 = GOMAXPROCS)
	MigrationFraction       float64 `yaml:"migration_fraction"`         // Share of a patch population that migrates
	MinMigrationPopulation  int64   `yaml:"min_migration_population"`   // Patches below this never send migrants
	MaxMigrationsPerSpecies int     `yaml:"max_migrations_per_species"` // Migrations proposed per species per run
	MinViablePopulation     int64   `yaml:"min_viable_population"`      // Below this a species dies out in a patch
	MutationSigma           float64 `yaml:"mutation_sigma"`             // Relative property perturbation per mutation
	MutationAttempts        int     `yaml:"mutation_attempts"`          // Candidate mutants tried per species
	SplitPopulationShare    float64 `yaml:"split_population_share"`     // Minimum population share the won patches must hold to split
	FillNichePopulation     int64   `yaml:"fill_niche_population"`      // Starting population for niche-filling species
	SkipMutations           bool    `yaml:"skip_mutations"`
	RefundMigrations        bool    `yaml:"refund_migrations"` // Return migrants to their origin when killed en route
	Seed                    int64   `yaml:"seed"`              // RNG seed for mutation steps (0 = per-run seed)
}

// EnergyConfig holds the energy economy of the patches.
type EnergyConfig struct {
	SunlightEnergy     float64 `yaml:"sunlight_energy"`      // Energy units per unit of patch sunlight
	ChemicalEnergy     float64 `yaml:"chemical_energy"`      // Energy units per unit of patch chemicals
	PredationEnergy    float64 `yaml:"predation_energy"`     // Energy available to predators per patch
	BaseIndividualCost float64 `yaml:"base_individual_cost"` // Energy per individual, scaled by body size
	ArmorCostFactor    float64 `yaml:"armor_cost_factor"`    // Extra individual cost multiplier for armored species
}

// PressuresConfig holds selection pressure strengths.
type PressuresConfig struct {
	Temperature float64 `yaml:"temperature"`
	Sunlight    float64 `yaml:"sunlight"`
	Chemicals   float64 `yaml:"chemicals"`
	Predation   float64 `yaml:"predation"`
}

// CacheConfig holds memoization cache parameters.
type CacheConfig struct {
	Size int `yaml:"size"` // Maximum memoized scores per run
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow int `yaml:"perf_window"` // Runs averaged by the perf collector
}

// EventsConfig holds generation event detection thresholds.
type EventsConfig struct {
	HistorySize            int     `yaml:"history_size"`
	MassExtinctionFraction float64 `yaml:"mass_extinction_fraction"` // Fraction of species lost in one generation
	SpeciationBurst        int     `yaml:"speciation_burst"`         // New species in one generation
	CrashDropPercent       float64 `yaml:"crash_drop_percent"`       // Total population drop vs average
	StableGenerations      int     `yaml:"stable_generations"`
	StableCV               float64 `yaml:"stable_cv"`
}

// HistoryConfig holds generation history storage parameters.
type HistoryConfig struct {
	Backend string `yaml:"backend"` // "memory" or "sqlite"
	Path    string `yaml:"path"`    // SQLite database path
}

// MetricsConfig holds the metrics endpoint settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // Listen address for /metrics (empty = disabled)
}

// SpeciesConfig defines a founder species.
type SpeciesConfig struct {
	Name                 string   `yaml:"name"`
	Traits               []string `yaml:"traits"`
	BodySize             float64  `yaml:"body_size"`
	OptimalTemperature   float64  `yaml:"optimal_temperature"`
	TemperatureTolerance float64  `yaml:"temperature_tolerance"`
	Speed                float64  `yaml:"speed"`
	Aggression           float64  `yaml:"aggression"`
	Photosynthesis       float64  `yaml:"photosynthesis"`
	Chemosynthesis       float64  `yaml:"chemosynthesis"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Workers          int            // Resolved worker count
	SpeciesTraits    []traits.Trait // Parsed traits per founder species
	TemperatureRange float64        // TemperatureMax - TemperatureMin
	PatchCount       int            // Columns * Rows
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
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// validate rejects configurations the engine cannot run with.
func (c *Config) validate() error {
	if c.World.Columns <= 0 || c.World.Rows <= 0 {
		return fmt.Errorf("world: columns and rows must be positive (got %dx%d)", c.World.Columns, c.World.Rows)
	}
	if c.World.TemperatureMax < c.World.TemperatureMin {
		return fmt.Errorf("world: temperature_max %.1f below temperature_min %.1f", c.World.TemperatureMax, c.World.TemperatureMin)
	}
	if c.Energy.BaseIndividualCost <= 0 {
		return fmt.Errorf("energy: base_individual_cost must be positive")
	}
	if c.AutoEvo.MigrationFraction < 0 || c.AutoEvo.MigrationFraction > 1 {
		return fmt.Errorf("autoevo: migration_fraction must be within [0, 1]")
	}
	if c.AutoEvo.MinViablePopulation < 0 {
		return fmt.Errorf("autoevo: min_viable_population must not be negative")
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Workers = c.AutoEvo.Workers
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}
	c.Derived.TemperatureRange = c.World.TemperatureMax - c.World.TemperatureMin
	c.Derived.PatchCount = c.World.Columns * c.World.Rows

	if c.Cache.Size <= 0 {
		c.Cache.Size = 4096
	}
	if c.AutoEvo.MutationAttempts <= 0 {
		c.AutoEvo.MutationAttempts = 1
	}

	// Synthesize default founders if none specified
	if len(c.Species) == 0 {
		c.Species = []SpeciesConfig{
			{
				Name:                 "Primum thermophila",
				Traits:               []string{"photosynthetic"},
				BodySize:             1.0,
				OptimalTemperature:   20,
				TemperatureTolerance: 15,
				Speed:                0.2,
				Photosynthesis:       0.8,
			},
			{
				Name:                 "Vorax minor",
				Traits:               []string{"predator", "motile"},
				BodySize:             1.5,
				OptimalTemperature:   15,
				TemperatureTolerance: 20,
				Speed:                0.7,
				Aggression:           0.6,
			},
		}
	}

	c.Derived.SpeciesTraits = make([]traits.Trait, len(c.Species))
	for i := range c.Species {
		sp := &c.Species[i]
		if sp.BodySize <= 0 {
			sp.BodySize = 1.0
		}
		if sp.TemperatureTolerance <= 0 {
			sp.TemperatureTolerance = 10
		}
		c.Derived.SpeciesTraits[i] = traits.Parse(sp.Traits...)
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
