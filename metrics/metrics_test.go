package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pthm-cable/autoevo/autoevo"
	"github.com/pthm-cable/autoevo/ledger"
)

func TestRecorderRunLifecycle(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	id := uuid.New()

	r.RunStarted(id, 3)
	if got := testutil.ToFloat64(r.runsInFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}

	r.StepFinished("michePopulation", time.Millisecond, nil)
	r.StepFinished("michePopulation", time.Millisecond, nil)
	r.StepFinished("modifySpecies", time.Millisecond, errors.New("boom"))
	r.RunFinished(id, autoevo.Aborted, 10*time.Millisecond)

	if got := testutil.ToFloat64(r.runsInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.runsTotal.WithLabelValues("aborted")); got != 1 {
		t.Errorf("aborted runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.stepErrors.WithLabelValues("modifySpecies")); got != 1 {
		t.Errorf("step errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.stepDuration); got != 2 {
		t.Errorf("step duration series = %d, want 2", got)
	}
}

func TestRecorderCommit(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.ObserveCommit(ledger.CommitReport{
		Registered:        2,
		PopulationUpdates: 5,
		Splits:            1,
		Anomalies:         []ledger.Anomaly{{Op: "migrate"}, {Op: "split"}},
	})
	r.ObserveGeneration(4, 6, 12345)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"registered", r.commitOps.WithLabelValues("registered"), 2},
		{"population updates", r.commitOps.WithLabelValues("population_updates"), 5},
		{"splits", r.commitOps.WithLabelValues("splits"), 1},
		{"anomalies", r.commitAnomalies, 2},
		{"generation", r.generation, 4},
		{"species", r.species, 6},
		{"population", r.population, 12345},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestRecorderSeparateRegistries(t *testing.T) {
	// Two recorders must not collide when given their own registries
	NewRecorder(prometheus.NewRegistry())
	NewRecorder(prometheus.NewRegistry())
}
