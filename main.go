package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/autoevo/config"
	"github.com/pthm-cable/autoevo/game"
	"github.com/pthm-cable/autoevo/history"
	"github.com/pthm-cable/autoevo/metrics"
	"github.com/pthm-cable/autoevo/steps"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "World seed (0 = time-based)")
	generations := flag.Int("generations", 10, "Generations to run (0 = until interrupted)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	historyKind := flag.String("history", "", "History backend: memory or sqlite (empty = use config)")
	historyPath := flag.String("history-path", "", "SQLite history path (empty = use config)")
	metricsAddr := flag.String("metrics-addr", "", "Listen address for /metrics (empty = use config)")
	logStats := flag.Bool("log-stats", true, "Output per-generation stats via slog")
	listSteps := flag.Bool("list-steps", false, "List the simulation steps and exit")

	flag.Parse()

	if *listSteps {
		for _, info := range steps.NewRegistry().All() {
			fmt.Printf("%-26s %-10s %s\n", info.ID, info.Category, info.Description)
		}
		return
	}

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *historyKind != "" {
		cfg.History.Backend = *historyKind
	}
	if *historyPath != "" {
		cfg.History.Path = *historyPath
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *seed, *generations, *outputDir, *logStats); err != nil {
		slog.Error("autoevo failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, seed int64, generations int, outputDir string, logStats bool) error {
	store, err := history.NewStore(cfg.History.Backend, cfg.History.Path)
	if err != nil {
		return err
	}

	opts := game.Options{
		Seed:      seed,
		OutputDir: outputDir,
		LogStats:  logStats,
		History:   store,
	}

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		opts.Metrics = metrics.NewRecorder(reg)
		srv := serveMetrics(cfg.Metrics.Addr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	g, err := game.NewGame(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := g.Close(); err != nil {
			slog.Error("failed to close game", "error", err)
		}
	}()

	slog.Info("starting auto-evo",
		"seed", g.Seed(),
		"generations", generations,
		"history", cfg.History.Backend,
		"workers", cfg.Derived.Workers,
	)
	return g.Run(ctx, generations)
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("metrics listening", "addr", addr)
	return srv
}
