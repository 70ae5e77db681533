package autoevo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/autoevo/ledger"
)

// Progress reports how far a run has come in step units.
type Progress struct {
	Completed int
	Total     int
	Batch     int
	Batches   int
}

// Fraction returns Completed / Total, or 1 with no work.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 1
	}
	return float64(p.Completed) / float64(p.Total)
}

// Stepper is the resumable position within a step pipeline. Each Advance
// runs one round: one RunStep call on every unfinished step of the current
// batch. A batch is either a run of consecutive concurrent steps or a single
// step that cannot run concurrently.
//
// Advance must not be called concurrently with itself.
type Stepper struct {
	steps    []Step
	batches  [][]int
	finished []bool
	elapsed  []time.Duration
	results  *ledger.RunResults
	workers  int
	observer Observer

	batch     int
	completed int

	mu       sync.Mutex
	progress Progress
}

// NewStepper creates a stepper over steps writing into results.
// workers bounds how many concurrent steps run at once.
func NewStepper(steps []Step, results *ledger.RunResults, workers int, observer Observer) *Stepper {
	if workers <= 0 {
		workers = 1
	}
	if observer == nil {
		observer = nopObserver{}
	}
	s := &Stepper{
		steps:    steps,
		batches:  planBatches(steps),
		finished: make([]bool, len(steps)),
		elapsed:  make([]time.Duration, len(steps)),
		results:  results,
		workers:  workers,
		observer: observer,
	}
	s.updateProgress()
	return s
}

// planBatches groups consecutive concurrent steps. A step that cannot run
// concurrently always forms its own batch.
func planBatches(steps []Step) [][]int {
	var batches [][]int
	var current []int
	for i, st := range steps {
		if st.CanRunConcurrently() {
			current = append(current, i)
			continue
		}
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
		}
		batches = append(batches, []int{i})
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// Done reports whether every step has finished.
func (s *Stepper) Done() bool {
	return s.batch >= len(s.batches)
}

// Progress returns the progress recorded after the last round.
func (s *Stepper) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Advance runs one round of the current batch. It returns true once the
// whole pipeline is done. A step error stops the round and is returned.
func (s *Stepper) Advance(ctx context.Context) (bool, error) {
	if s.Done() {
		return true, nil
	}

	var pending []int
	for _, i := range s.batches[s.batch] {
		if !s.finished[i] {
			pending = append(pending, i)
		}
	}

	var err error
	if len(pending) == 1 {
		err = s.runOne(ctx, pending[0])
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for _, i := range pending {
			g.Go(func() error {
				return s.runOne(gctx, i)
			})
		}
		err = g.Wait()
	}
	s.completed += len(pending)

	if err == nil {
		s.advanceBatch()
	}
	s.updateProgress()
	return s.Done(), err
}

func (s *Stepper) runOne(ctx context.Context, i int) error {
	st := s.steps[i]
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	done, err := st.RunStep(ctx, s.results)
	s.elapsed[i] += time.Since(start)

	if err != nil {
		s.observer.StepFinished(st.Name(), s.elapsed[i], err)
		return fmt.Errorf("step %s: %w", st.Name(), err)
	}
	if done {
		s.finished[i] = true
		s.observer.StepFinished(st.Name(), s.elapsed[i], nil)
	}
	return nil
}

// advanceBatch moves past fully finished batches.
func (s *Stepper) advanceBatch() {
	for s.batch < len(s.batches) {
		for _, i := range s.batches[s.batch] {
			if !s.finished[i] {
				return
			}
		}
		s.batch++
	}
}

func (s *Stepper) updateProgress() {
	remaining := 0
	for i, st := range s.steps {
		if !s.finished[i] {
			remaining += max(st.TotalSteps(), 0)
		}
	}

	s.mu.Lock()
	s.progress = Progress{
		Completed: s.completed,
		Total:     s.completed + remaining,
		Batch:     min(s.batch, len(s.batches)),
		Batches:   len(s.batches),
	}
	s.mu.Unlock()
}
