package autoevo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/autoevo/ledger"
)

// State is the lifecycle state of a run.
type State int32

const (
	NotStarted State = iota
	Running
	Finished
	Aborted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrNotFinished is returned when results are requested before the run finished.
	ErrNotFinished = errors.New("autoevo: run not finished")
	// ErrAborted is returned when results are requested from an aborted run.
	ErrAborted = errors.New("autoevo: run aborted")
	// ErrAlreadyStarted is returned by Start on a run that is already driven.
	ErrAlreadyStarted = errors.New("autoevo: run already started")
)

// Options configures a run.
type Options struct {
	Workers  int
	Logger   *slog.Logger
	Observer Observer
}

// Run is one auto-evo run: an ordered step pipeline, the ledger the steps
// write into, and the state machine NotStarted -> Running -> Finished|Aborted.
type Run struct {
	ID uuid.UUID

	results *ledger.RunResults
	stepper *Stepper

	logger   *slog.Logger
	observer Observer

	state     atomic.Int32
	abort     atomic.Bool
	started   atomic.Bool
	startTime time.Time

	// stepMu serializes Advance
	stepMu sync.Mutex

	errMu sync.Mutex
	err   error

	done     chan struct{}
	doneOnce sync.Once
}

// NewRun creates a run over steps with a fresh ledger.
func NewRun(steps []Step, opts Options) *Run {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	id := uuid.New()
	results := ledger.NewRunResults(logger.With("run", id.String()))

	return &Run{
		ID:       id,
		results:  results,
		stepper:  NewStepper(steps, results, opts.Workers, observer),
		logger:   logger,
		observer: observer,
		done:     make(chan struct{}),
	}
}

// State returns the current state.
func (r *Run) State() State {
	return State(r.state.Load())
}

// Progress returns the step progress.
func (r *Run) Progress() Progress {
	return r.stepper.Progress()
}

// Err returns the step error that aborted the run, if any.
func (r *Run) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// Done is closed when the run reaches Finished or Aborted.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Abort requests cooperative cancellation. It takes effect before the next
// step invocation.
func (r *Run) Abort() {
	r.abort.Store(true)
}

// Start drives the run to completion on a background goroutine.
func (r *Run) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go func() {
		_ = r.loop(ctx)
	}()
	return nil
}

// Wait blocks until the run ends or ctx is done, and returns the run error.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunToCompletion drives the run synchronously on the calling goroutine.
func (r *Run) RunToCompletion(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	return r.loop(ctx)
}

func (r *Run) loop(ctx context.Context) error {
	for {
		done, err := r.Advance(ctx)
		if err != nil || done {
			return err
		}
		if r.State() != Running {
			return r.Err()
		}
	}
}

// Advance runs one round of the pipeline and reports whether the run has
// ended. It lets external tooling pace a run one round at a time.
func (r *Run) Advance(ctx context.Context) (bool, error) {
	r.stepMu.Lock()
	defer r.stepMu.Unlock()

	switch r.State() {
	case Finished:
		return true, nil
	case Aborted:
		return true, r.Err()
	case NotStarted:
		r.startTime = time.Now()
		r.state.Store(int32(Running))
		r.observer.RunStarted(r.ID, len(r.stepper.steps))
		r.logger.Info("autoevo_run_started",
			"run", r.ID.String(),
			"steps", len(r.stepper.steps),
			"batches", len(r.stepper.batches),
		)
	}

	if r.abort.Load() {
		r.finish(Aborted, nil)
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		r.finish(Aborted, err)
		return true, err
	}

	done, err := r.stepper.Advance(ctx)
	if err != nil {
		r.finish(Aborted, err)
		return true, err
	}
	if done {
		r.finish(Finished, nil)
		return true, nil
	}
	return false, nil
}

func (r *Run) finish(state State, err error) {
	r.errMu.Lock()
	r.err = err
	r.errMu.Unlock()
	r.state.Store(int32(state))

	elapsed := time.Since(r.startTime)
	r.observer.RunFinished(r.ID, state, elapsed)

	attrs := []any{
		"run", r.ID.String(),
		"state", state.String(),
		"elapsed", elapsed,
		"progress", fmt.Sprintf("%d/%d", r.Progress().Completed, r.Progress().Total),
	}
	if err != nil {
		r.logger.Error("autoevo_run_failed", append(attrs, "error", err)...)
	} else {
		r.logger.Info("autoevo_run_finished", attrs...)
	}

	r.doneOnce.Do(func() { close(r.done) })
}

// Results returns the ledger of a finished run.
func (r *Run) Results() (*ledger.RunResults, error) {
	switch r.State() {
	case Finished:
		return r.results, nil
	case Aborted:
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAborted, err)
		}
		return nil, ErrAborted
	default:
		return nil, ErrNotFinished
	}
}

// ApplyResults commits the ledger of a finished run to the world.
func (r *Run) ApplyResults(w ledger.World, skipMutations bool) (ledger.CommitReport, error) {
	results, err := r.Results()
	if err != nil {
		return ledger.CommitReport{}, err
	}
	report, err := results.ApplyResults(w, skipMutations)
	if err != nil {
		return report, err
	}
	r.logger.Info("autoevo_results_applied", "run", r.ID.String(), "report", report)
	return report, nil
}
