package game

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pthm-cable/autoevo/config"
	"github.com/pthm-cable/autoevo/history"
	"github.com/pthm-cable/autoevo/metrics"
)

func newTestGame(t *testing.T, opts Options) *Game {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.AutoEvo.Seed = 7
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	g, err := NewGame(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return g
}

func TestAdvanceGeneration(t *testing.T) {
	dir := t.TempDir()
	reg := prometheus.NewRegistry()
	g := newTestGame(t, Options{
		OutputDir: dir,
		Metrics:   metrics.NewRecorder(reg),
	})
	ctx := context.Background()

	first, err := g.AdvanceGeneration(ctx)
	if err != nil {
		t.Fatalf("generation 1: %v", err)
	}
	if first.Generation != 1 || g.Generation() != 1 {
		t.Errorf("generation = %d/%d, want 1", first.Generation, g.Generation())
	}
	if first.RunID == "" {
		t.Error("missing run ID")
	}
	if first.Stats.TotalPopulation <= 0 {
		t.Errorf("total population = %d after first generation", first.Stats.TotalPopulation)
	}

	if _, err := g.AdvanceGeneration(ctx); err != nil {
		t.Fatalf("generation 2: %v", err)
	}

	numbers, err := g.History().Generations(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(numbers) != 2 || numbers[0] != 1 || numbers[1] != 2 {
		t.Errorf("archived generations = %v, want [1 2]", numbers)
	}
	gen, ok, err := g.History().GetGeneration(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("get generation 1: ok=%v err=%v", ok, err)
	}
	if gen.RunID != first.RunID || len(gen.Species) == 0 || len(gen.Miches) == 0 {
		t.Errorf("archived generation incomplete: run=%s species=%d miches=%d", gen.RunID, len(gen.Species), len(gen.Miches))
	}

	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "generations.csv"))
	if err != nil {
		t.Fatalf("generations.csv: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 3 {
		t.Errorf("generations.csv has %d lines, want header + 2", len(lines))
	}
	for _, name := range []string{"species.csv", "perf.csv", "config.yaml", "lifetimes.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}

	if n, err := testutil.GatherAndCount(reg, "autoevo_runs_total"); err != nil || n != 1 {
		t.Errorf("autoevo_runs_total series = %d (%v), want 1", n, err)
	}
	if n, err := testutil.GatherAndCount(reg, "autoevo_generation"); err != nil || n != 1 {
		t.Errorf("autoevo_generation series = %d (%v), want 1", n, err)
	}
}

func TestAdvanceGenerationCancelled(t *testing.T) {
	g := newTestGame(t, Options{})
	t.Cleanup(func() { _ = g.Close() })

	before := g.World().MembershipCount()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.AdvanceGeneration(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if g.Generation() != 0 {
		t.Errorf("generation advanced to %d", g.Generation())
	}
	if after := g.World().MembershipCount(); after != before {
		t.Errorf("world changed by failed run: %d -> %d memberships", before, after)
	}
	if numbers, _ := g.History().Generations(context.Background()); len(numbers) != 0 {
		t.Errorf("failed run archived: %v", numbers)
	}
}

func TestRunWithSQLiteHistory(t *testing.T) {
	store := history.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	g := newTestGame(t, Options{History: store})

	if err := g.Run(context.Background(), 3); err != nil {
		t.Fatalf("run: %v", err)
	}
	if g.Generation() < 1 {
		t.Fatalf("no generation committed")
	}

	numbers, err := store.Generations(context.Background())
	if err != nil {
		t.Fatalf("generations: %v", err)
	}
	if len(numbers) != g.Generation() {
		t.Errorf("archived %d generations, committed %d", len(numbers), g.Generation())
	}
	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
