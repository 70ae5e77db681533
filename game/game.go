// Package game drives the auto-evo engine one generation at a time: it owns
// the world, runs the step pipeline, commits the ledger and records history.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pthm-cable/autoevo/autoevo"
	"github.com/pthm-cable/autoevo/config"
	"github.com/pthm-cable/autoevo/history"
	"github.com/pthm-cable/autoevo/ledger"
	"github.com/pthm-cable/autoevo/metrics"
	"github.com/pthm-cable/autoevo/simcache"
	"github.com/pthm-cable/autoevo/steps"
	"github.com/pthm-cable/autoevo/telemetry"
	"github.com/pthm-cable/autoevo/world"
)

// Game holds the complete engine state.
type Game struct {
	cfg    *config.Config
	world  *world.Map
	rng    *rand.Rand
	seed   int64
	logger *slog.Logger

	generation int
	logStats   bool

	history   history.Store
	recorder  *metrics.Recorder
	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	events    *telemetry.EventDetector
	lifetimes *telemetry.LifetimeTracker
	output    *telemetry.OutputManager
}

// GenerationResult is the outcome of one committed generation.
type GenerationResult struct {
	Generation int
	RunID      string
	Stats      telemetry.GenerationStats
	Report     ledger.CommitReport
	Extinct    []world.SpeciesID
	Events     []telemetry.Event
}

// NewGame generates the world and prepares history and telemetry.
func NewGame(ctx context.Context, cfg *config.Config, opts Options) (*Game, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m, err := world.Generate(cfg, seed)
	if err != nil {
		return nil, fmt.Errorf("generating world: %w", err)
	}

	store := opts.History
	if store == nil {
		store = history.NewMemoryStore()
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing history: %w", err)
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		logger.Error("failed to write config", "error", err)
	}

	g := &Game{
		cfg:       cfg,
		world:     m,
		rng:       rand.New(rand.NewSource(seed)),
		seed:      seed,
		logger:    logger,
		logStats:  opts.LogStats,
		history:   store,
		recorder:  opts.Metrics,
		collector: telemetry.NewCollector(),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		events:    telemetry.NewEventDetector(cfg.Events),
		lifetimes: telemetry.NewLifetimeTracker(),
		output:    output,
	}

	g.logger.Info("world_generated",
		"seed", seed,
		"patches", len(m.Patches()),
		"species", len(m.AllSpecies()),
	)
	return g, nil
}

// World returns the world the game commits into.
func (g *Game) World() *world.Map { return g.world }

// Generation returns the number of committed generations.
func (g *Game) Generation() int { return g.generation }

// Seed returns the seed the world was generated from.
func (g *Game) Seed() int64 { return g.seed }

// History returns the generation archive.
func (g *Game) History() history.Store { return g.history }

// Lifetimes returns the per-species lifetime tracker.
func (g *Game) Lifetimes() *telemetry.LifetimeTracker { return g.lifetimes }

// AdvanceGeneration executes one full run on a background worker, commits
// it once and records the outcome. A failed run leaves the world untouched.
func (g *Game) AdvanceGeneration(ctx context.Context) (GenerationResult, error) {
	cache, err := simcache.New(g.cfg.Cache.Size)
	if err != nil {
		return GenerationResult{}, err
	}

	next := g.generation + 1
	env := &steps.Env{
		World:      g.world,
		Config:     g.cfg,
		Cache:      cache,
		Miches:     steps.NewMiches(),
		Rand:       rand.New(rand.NewSource(g.runSeed(next))),
		Generation: next,
		Logger:     g.logger.With("generation", next),
	}

	run := autoevo.NewRun(steps.Default(env), autoevo.Options{
		Workers:  g.cfg.Derived.Workers,
		Logger:   env.Logger,
		Observer: g.observer(),
	})

	if err := run.Start(ctx); err != nil {
		return GenerationResult{}, err
	}
	if err := run.Wait(ctx); err != nil {
		run.Abort()
		<-run.Done()
		return GenerationResult{}, fmt.Errorf("generation %d: %w", next, err)
	}

	results, err := run.Results()
	if err != nil {
		return GenerationResult{}, err
	}
	records := results.Snapshot()

	report, err := run.ApplyResults(g.world, g.cfg.AutoEvo.SkipMutations)
	if err != nil {
		return GenerationResult{}, fmt.Errorf("generation %d: %w", next, err)
	}
	g.generation = next
	extinct := g.world.RemoveExtinct()

	res := GenerationResult{
		Generation: next,
		RunID:      run.ID.String(),
		Report:     report,
		Extinct:    extinct,
	}

	miches := env.Miches.Snapshots()
	if err := g.history.SaveGeneration(ctx, history.Generation{
		Number:      next,
		RunID:       res.RunID,
		CommittedAt: time.Now().UTC(),
		Species:     records,
		Miches:      miches,
		Anomalies:   len(report.Anomalies),
	}); err != nil {
		g.logger.Error("failed to archive generation", "generation", next, "error", err)
	}

	res.Stats = g.collector.Flush(next, res.RunID, records, report)
	g.lifetimes.Observe(next, records)
	res.Events = g.emitTelemetry(res, records, miches)

	if g.recorder != nil {
		g.recorder.ObserveCommit(report)
		g.recorder.ObserveGeneration(next, res.Stats.SpeciesCount, res.Stats.TotalPopulation)
	}

	g.logGeneration(res, cache.Stats())
	return res, nil
}

// Run advances up to n generations, stopping early when every species is
// extinct. n <= 0 runs until ctx is done.
func (g *Game) Run(ctx context.Context, n int) error {
	for i := 0; n <= 0 || i < n; i++ {
		if _, err := g.AdvanceGeneration(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if len(g.world.AllSpecies()) == 0 {
			g.logger.Warn("all_species_extinct", "generation", g.generation)
			return nil
		}
	}
	return nil
}

// Close writes final output and releases the history store.
func (g *Game) Close() error {
	g.logSummary()

	var firstErr error
	if err := g.output.WriteLifetimes(g.lifetimes); err != nil {
		firstErr = err
	}
	if err := g.output.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := g.history.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// runSeed derives the mutation seed of a generation.
func (g *Game) runSeed(generation int) int64 {
	if s := g.cfg.AutoEvo.Seed; s != 0 {
		return s + int64(generation)
	}
	return g.rng.Int63()
}

func (g *Game) observer() autoevo.Observer {
	if g.recorder == nil {
		return g.perf
	}
	return autoevo.Observers(g.perf, g.recorder)
}
