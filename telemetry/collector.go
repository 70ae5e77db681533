package telemetry

import (
	"github.com/pthm-cable/autoevo/ledger"
	"github.com/pthm-cable/autoevo/world"
)

// Collector turns committed ledger snapshots into GenerationStats and keeps
// running totals across generations.
type Collector struct {
	generations int

	totalNewSpecies  int
	totalExtinctions int
	peakSpecies      int
}

// NewCollector creates a new stats collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Flush produces the stats for one generation.
// records are the ledger snapshot taken before commit and report is the
// commit outcome.
func (c *Collector) Flush(generation int, runID string, records []ledger.SpeciesRecord, report ledger.CommitReport) GenerationStats {
	stats := GenerationStats{
		Generation: generation,
		RunID:      runID,
		Anomalies:  len(report.Anomalies),
	}

	occupied := make(map[world.PatchID]struct{})
	var pops []float64
	for _, rec := range records {
		switch rec.NewlyCreated {
		case ledger.FillNiche:
			stats.NewSpecies++
			stats.FillNiche++
		case ledger.SplitDueToMutation:
			stats.NewSpecies++
		}
		if rec.SplitOff != 0 {
			stats.Splits++
		}
		if rec.Mutated != nil {
			stats.Mutations++
		}
		stats.Migrations += len(rec.Migrations)

		if rec.Extinct() {
			if rec.OldGlobalPopulation() > 0 {
				stats.Extinctions++
			}
			continue
		}

		stats.SpeciesCount++
		stats.TotalPopulation += rec.GlobalPopulation
		pops = append(pops, float64(rec.GlobalPopulation))
		for patch, pop := range rec.Resolved {
			if pop > 0 {
				occupied[patch] = struct{}{}
			}
		}
	}
	stats.OccupiedPatches = len(occupied)

	d := Summarize(pops)
	stats.PopMean = d.Mean
	stats.PopStd = d.Std
	stats.PopP10 = d.P10
	stats.PopP50 = d.P50
	stats.PopP90 = d.P90

	c.generations++
	c.totalNewSpecies += stats.NewSpecies
	c.totalExtinctions += stats.Extinctions
	c.peakSpecies = max(c.peakSpecies, stats.SpeciesCount)

	return stats
}

// Totals returns the running totals since the collector was created.
func (c *Collector) Totals() (generations, newSpecies, extinctions, peakSpecies int) {
	return c.generations, c.totalNewSpecies, c.totalExtinctions, c.peakSpecies
}
