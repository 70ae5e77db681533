// Package autoevo drives the simulation steps of one auto-evo run and hands
// the resulting ledger to the caller for a single commit.
package autoevo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/autoevo/ledger"
)

// Step is one stage of the run pipeline.
type Step interface {
	// Name identifies the step in logs and metrics.
	Name() string

	// TotalSteps returns the units of work left. It may shrink as the step
	// runs and is only used for progress reporting.
	TotalSteps() int

	// CanRunConcurrently reports whether the step may run alongside other
	// concurrent steps. Steps that cannot act as a full barrier.
	CanRunConcurrently() bool

	// RunStep performs one unit of work and reports whether the step is done.
	RunStep(ctx context.Context, results *ledger.RunResults) (bool, error)
}

// Observer receives run lifecycle notifications. Implementations must be
// safe for concurrent use.
type Observer interface {
	RunStarted(id uuid.UUID, steps int)
	StepFinished(step string, elapsed time.Duration, err error)
	RunFinished(id uuid.UUID, state State, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) RunStarted(uuid.UUID, int) {}
func (nopObserver) StepFinished(string, time.Duration, error) {}
func (nopObserver) RunFinished(uuid.UUID, State, time.Duration) {}

// Observers fans notifications out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	if len(list) == 0 {
		return nopObserver{}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) RunStarted(id uuid.UUID, steps int) {
	for _, o := range m {
		o.RunStarted(id, steps)
	}
}

func (m multiObserver) StepFinished(step string, elapsed time.Duration, err error) {
	for _, o := range m {
		o.StepFinished(step, elapsed, err)
	}
}

func (m multiObserver) RunFinished(id uuid.UUID, state State, elapsed time.Duration) {
	for _, o := range m {
		o.RunFinished(id, state, elapsed)
	}
}
