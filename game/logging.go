package game

import (
	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/autoevo/simcache"
)

// logGeneration logs a human-readable summary of one committed generation.
func (g *Game) logGeneration(res GenerationResult, cache simcache.Stats) {
	s := res.Stats
	g.logger.Info("generation_committed",
		"generation", res.Generation,
		"run", res.RunID,
		"species", s.SpeciesCount,
		"population", humanize.Comma(s.TotalPopulation),
		"new_species", s.NewSpecies,
		"extinct", len(res.Extinct),
		"migrations", s.Migrations,
		"anomalies", s.Anomalies,
		"cache", cache,
	)

	for _, a := range res.Report.Anomalies {
		g.logger.Debug("commit_anomaly_detail", "anomaly", a.String())
	}
}

// logSummary logs the whole session: running totals and the longest-lived species.
func (g *Game) logSummary() {
	gens, newSpecies, extinctions, peak := g.collector.Totals()
	attrs := []any{
		"generations", gens,
		"new_species", newSpecies,
		"extinctions", extinctions,
		"peak_species", peak,
		"living_species", g.lifetimes.Living(),
	}

	var total int64
	for _, sp := range g.world.AllSpecies() {
		total += g.world.GlobalPopulation(sp.ID)
	}
	attrs = append(attrs, "population", humanize.Comma(total))

	if longest := g.lifetimes.Longest(); longest != nil {
		attrs = append(attrs,
			"longest_lived", longest.Name,
			"longest_span", longest.Span(),
			"longest_peak", humanize.Comma(longest.PeakPopulation),
		)
	}
	g.logger.Info("session_summary", attrs...)
}
