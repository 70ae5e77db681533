package main

import (
	"context"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/pthm-cable/autoevo/config"
	"github.com/pthm-cable/autoevo/game"
	"github.com/pthm-cable/autoevo/telemetry"
)

// FitnessEvaluator runs auto-evo sessions and computes fitness.
type FitnessEvaluator struct {
	params         *ParamVector
	maxGenerations int
	seeds          []int64
	baseConfig     *config.Config

	mu          sync.Mutex
	bestFitness float64
	bestStats   []telemetry.GenerationStats
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxGenerations int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:         params,
		maxGenerations: maxGenerations,
		seeds:          seeds,
		baseConfig:     baseCfg,
		bestFitness:    math.Inf(1),
	}
}

// BestStats returns the generation stats of the best seed of the best evaluation.
func (fe *FitnessEvaluator) BestStats() []telemetry.GenerationStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestStats
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// A session counts as collapsed once fewer species than this survive.
const minSpecies = 2

// runResult holds the results from a single session.
type runResult struct {
	survived int // generations with at least minSpecies living species
	stats    []telemetry.GenerationStats
}

type seedResult struct {
	fitness float64
	quality float64
	stats   []telemetry.GenerationStats
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result := fe.runSession(x, s)
			results[idx] = seedResult{
				fitness: computeFitness(result),
				quality: computeQuality(result.stats),
				stats:   result.stats,
			}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	bestSeedFitness := math.Inf(1)
	var bestSeedStats []telemetry.GenerationStats

	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
		if r.fitness < bestSeedFitness {
			bestSeedFitness = r.fitness
			bestSeedStats = r.stats
		}
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestStats = bestSeedStats
	}
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return avgFitness
}

// runSession runs one world until it collapses or maxGenerations is reached.
func (fe *FitnessEvaluator) runSession(x []float64, seed int64) *runResult {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)
	cfg.AutoEvo.Seed = seed

	result := &runResult{}

	g, err := game.NewGame(context.Background(), cfg, game.Options{
		Seed:   seed,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return result
	}
	defer g.Close()

	for i := 0; i < fe.maxGenerations; i++ {
		res, err := g.AdvanceGeneration(context.Background())
		if err != nil {
			return result
		}
		result.stats = append(result.stats, res.Stats)
		if res.Stats.SpeciesCount < minSpecies {
			return result
		}
		result.survived++
	}
	return result
}

// copyConfig creates a copy of the base config safe to modify per session.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Species = slices.Clone(fe.baseConfig.Species)
	return &cfg
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(survived × (1.0 + 0.2 × quality))
func computeFitness(r *runResult) float64 {
	survival := float64(r.survived)
	return -(survival * (1.0 + 0.2*computeQuality(r.stats)))
}

// Quality component weights.
const (
	qualityWeightDiversity  = 0.50
	qualityWeightStability  = 0.30
	qualityWeightSpeciation = 0.20

	qualityWarmupGenerations = 2 // skip first N generations
)

// computeQuality computes ecosystem quality in [0, 1] from generation stats.
func computeQuality(stats []telemetry.GenerationStats) float64 {
	if len(stats) <= qualityWarmupGenerations {
		return 0
	}
	valid := stats[qualityWarmupGenerations:]

	species := make([]float64, 0, len(valid))
	pops := make([]float64, 0, len(valid))
	var newSpecies float64
	for _, s := range valid {
		species = append(species, float64(s.SpeciesCount))
		pops = append(pops, float64(s.TotalPopulation))
		newSpecies += float64(s.NewSpecies)
	}

	// 1. Diversity saturates around a dozen species
	diversity := 1 - math.Exp(-telemetry.Summarize(species).Mean/5)

	// 2. Stable total population
	cv := telemetry.Summarize(pops).CV()
	stability := math.Exp(-cv * cv)

	// 3. Ongoing speciation
	speciation := 1 - math.Exp(-newSpecies/float64(len(valid)))

	quality := qualityWeightDiversity*diversity +
		qualityWeightStability*stability +
		qualityWeightSpeciation*speciation

	return min(max(quality, 0), 1)
}
