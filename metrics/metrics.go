// Package metrics exports auto-evo run, step and commit metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pthm-cable/autoevo/autoevo"
	"github.com/pthm-cable/autoevo/ledger"
)

// Recorder implements autoevo.Observer and records commit outcomes.
type Recorder struct {
	runsTotal       *prometheus.CounterVec
	runsInFlight    prometheus.Gauge
	runDuration     prometheus.Histogram
	stepDuration    *prometheus.HistogramVec
	stepErrors      *prometheus.CounterVec
	commitOps       *prometheus.CounterVec
	commitAnomalies prometheus.Counter
	generation      prometheus.Gauge
	species         prometheus.Gauge
	population      prometheus.Gauge
}

var _ autoevo.Observer = (*Recorder)(nil)

// NewRecorder registers the auto-evo metrics with reg. A nil reg uses the
// default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoevo_runs_total",
			Help: "Total number of auto-evo runs by final state",
		}, []string{"state"}),
		runsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "autoevo_runs_in_flight",
			Help: "Number of auto-evo runs currently executing",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "autoevo_run_duration_seconds",
			Help:    "Wall time of auto-evo runs",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoevo_step_duration_seconds",
			Help:    "Accumulated run time of finished steps",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.25},
		}, []string{"step"}),
		stepErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoevo_step_errors_total",
			Help: "Step invocations that returned an error",
		}, []string{"step"}),
		commitOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoevo_commit_operations_total",
			Help: "World mutations applied by result commits",
		}, []string{"op"}),
		commitAnomalies: f.NewCounter(prometheus.CounterOpts{
			Name: "autoevo_commit_anomalies_total",
			Help: "Commit operations the world rejected",
		}),
		generation: f.NewGauge(prometheus.GaugeOpts{
			Name: "autoevo_generation",
			Help: "Last committed generation",
		}),
		species: f.NewGauge(prometheus.GaugeOpts{
			Name: "autoevo_species",
			Help: "Living species after the last commit",
		}),
		population: f.NewGauge(prometheus.GaugeOpts{
			Name: "autoevo_population",
			Help: "Total population after the last commit",
		}),
	}
}

func (r *Recorder) RunStarted(uuid.UUID, int) {
	r.runsInFlight.Inc()
}

func (r *Recorder) StepFinished(step string, elapsed time.Duration, err error) {
	r.stepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
	if err != nil {
		r.stepErrors.WithLabelValues(step).Inc()
	}
}

func (r *Recorder) RunFinished(_ uuid.UUID, state autoevo.State, elapsed time.Duration) {
	r.runsInFlight.Dec()
	r.runsTotal.WithLabelValues(state.String()).Inc()
	r.runDuration.Observe(elapsed.Seconds())
}

// ObserveCommit records the outcome of ApplyResults.
func (r *Recorder) ObserveCommit(report ledger.CommitReport) {
	r.commitOps.WithLabelValues("registered").Add(float64(report.Registered))
	r.commitOps.WithLabelValues("mutated").Add(float64(report.Mutated))
	r.commitOps.WithLabelValues("population_updates").Add(float64(report.PopulationUpdates))
	r.commitOps.WithLabelValues("migrations").Add(float64(report.Migrations))
	r.commitOps.WithLabelValues("splits").Add(float64(report.Splits))
	r.commitAnomalies.Add(float64(len(report.Anomalies)))
}

// ObserveGeneration sets the world gauges after a generation is committed.
func (r *Recorder) ObserveGeneration(generation, species int, population int64) {
	r.generation.Set(float64(generation))
	r.species.Set(float64(species))
	r.population.Set(float64(population))
}
