package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// GenerationStats holds aggregated statistics for one committed generation.
type GenerationStats struct {
	Generation int    `csv:"generation"`
	RunID      string `csv:"run_id"`

	// Species counts after commit
	SpeciesCount    int   `csv:"species"`
	TotalPopulation int64 `csv:"total_population"`
	OccupiedPatches int   `csv:"occupied_patches"`

	// Events during the run
	NewSpecies  int `csv:"new_species"`
	Splits      int `csv:"splits"`
	FillNiche   int `csv:"fill_niche"`
	Mutations   int `csv:"mutations"`
	Extinctions int `csv:"extinctions"`
	Migrations  int `csv:"migrations"`
	Anomalies   int `csv:"anomalies"`

	// Distribution of global species populations
	PopMean float64 `csv:"pop_mean"`
	PopStd  float64 `csv:"pop_std"`
	PopP10  float64 `csv:"pop_p10"`
	PopP50  float64 `csv:"pop_p50"`
	PopP90  float64 `csv:"pop_p90"`
}

// Distribution summarizes a set of values.
type Distribution struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// Summarize computes mean, sample standard deviation and empirical quantiles.
// Returns zeros for an empty slice; Std is zero with fewer than two values.
func Summarize(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var d Distribution
	if len(sorted) < 2 {
		d.Mean = sorted[0]
	} else {
		d.Mean, d.Std = stat.MeanStdDev(sorted, nil)
	}
	d.P10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	d.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	d.P90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return d
}

// CV returns the coefficient of variation, or zero when the mean is zero.
func (d Distribution) CV() float64 {
	if d.Mean == 0 {
		return 0
	}
	return d.Std / d.Mean
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.String("run_id", s.RunID),
		slog.Int("species", s.SpeciesCount),
		slog.Int64("total_population", s.TotalPopulation),
		slog.Int("occupied_patches", s.OccupiedPatches),
		slog.Int("new_species", s.NewSpecies),
		slog.Int("splits", s.Splits),
		slog.Int("fill_niche", s.FillNiche),
		slog.Int("mutations", s.Mutations),
		slog.Int("extinctions", s.Extinctions),
		slog.Int("migrations", s.Migrations),
		slog.Int("anomalies", s.Anomalies),
		slog.Float64("pop_mean", s.PopMean),
		slog.Float64("pop_std", s.PopStd),
		slog.Float64("pop_p50", s.PopP50),
	)
}

// LogStats logs the generation stats using slog.
func (s GenerationStats) LogStats(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("stats", "gen", s)
}
