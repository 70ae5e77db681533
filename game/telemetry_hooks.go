package game

import (
	"github.com/pthm-cable/autoevo/ledger"
	"github.com/pthm-cable/autoevo/miche"
	"github.com/pthm-cable/autoevo/telemetry"
)

// emitTelemetry writes the generation to the output files and checks for
// events. Returns the events that fired.
func (g *Game) emitTelemetry(res GenerationResult, records []ledger.SpeciesRecord, miches []miche.Snapshot) []telemetry.Event {
	stats := res.Stats
	perfStats := g.perf.Stats()

	if g.logStats {
		stats.LogStats(g.logger)
		g.logger.Info("perf", "perf", perfStats)
	}

	if err := g.output.WriteGeneration(stats); err != nil {
		g.logger.Error("failed to write generation", "error", err)
	}
	if err := g.output.WriteSpecies(telemetry.SpeciesRows(res.Generation, records)); err != nil {
		g.logger.Error("failed to write species", "error", err)
	}
	if err := g.output.WritePerf(perfStats, res.Generation); err != nil {
		g.logger.Error("failed to write perf", "error", err)
	}

	events := g.events.Check(stats)
	for _, e := range events {
		if g.logStats {
			e.LogEvent(g.logger)
		}
		if err := g.output.WriteEvent(e); err != nil {
			g.logger.Error("failed to write event", "error", err)
		}

		// Save the niche trees on every event
		snapshot := &telemetry.Snapshot{
			Version:    telemetry.SnapshotVersion,
			Seed:       g.seed,
			Generation: res.Generation,
			RunID:      res.RunID,
			Miches:     miches,
			Event:      &e,
		}
		if path, err := g.output.WriteSnapshot(snapshot); err != nil {
			g.logger.Error("failed to write snapshot", "error", err)
		} else if path != "" {
			g.logger.Info("snapshot_saved", "path", path, "event", string(e.Type))
		}
	}
	return events
}
