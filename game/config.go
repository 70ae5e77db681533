package game

import (
	"log/slog"

	"github.com/pthm-cable/autoevo/history"
	"github.com/pthm-cable/autoevo/metrics"
)

// Options holds configuration for game initialization.
type Options struct {
	Seed      int64  // World and mutation seed (0 = time-based)
	OutputDir string // CSV and snapshot output (empty = disabled)
	LogStats  bool   // Log per-generation stats and perf via slog

	History history.Store     // Initialized by NewGame; nil = in-memory
	Metrics *metrics.Recorder // Optional
	Logger  *slog.Logger
}

// DefaultOptions returns the default game options.
func DefaultOptions() Options {
	return Options{LogStats: true}
}
