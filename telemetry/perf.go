package telemetry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/autoevo/autoevo"
	"github.com/pthm-cable/autoevo/steps"
)

// PerfSample holds timing data for a single run.
type PerfSample struct {
	RunDuration time.Duration
	Phases      map[string]time.Duration
	StepErrors  int
}

// PerfCollector tracks run and step timings over a rolling window of runs.
// It implements autoevo.Observer.
type PerfCollector struct {
	mu sync.Mutex

	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	currentErrors int
	inRun         bool
}

var _ autoevo.Observer = (*PerfCollector)(nil)

// phaseOrder fixes the order phase percentages are logged in.
var phaseOrder = steps.NewRegistry().IDs()

// NewPerfCollector creates a new performance collector.
// windowSize: number of runs to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 20
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// RunStarted begins timing a new run.
func (p *PerfCollector) RunStarted(uuid.UUID, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentPhases = make(map[string]time.Duration)
	p.currentErrors = 0
	p.inRun = true
}

// StepFinished adds a finished step to the current run. Steps sharing a name
// are summed, so phase totals of concurrent steps may exceed the run duration.
func (p *PerfCollector) StepFinished(step string, elapsed time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentPhases[step] += elapsed
	if err != nil {
		p.currentErrors++
	}
}

// RunFinished records the sample for the current run.
func (p *PerfCollector) RunFinished(_ uuid.UUID, _ autoevo.State, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.inRun {
		return
	}
	p.inRun = false

	p.samples[p.writeIndex] = PerfSample{
		RunDuration: elapsed,
		Phases:      p.currentPhases,
		StepErrors:  p.currentErrors,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	// Run timing
	AvgRunDuration time.Duration
	MinRunDuration time.Duration
	MaxRunDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total run time
	PhasePct map[string]float64

	RunsPerSecond float64
	StepErrors    int
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total, minRun, maxRun time.Duration
	var stepErrors int
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.RunDuration
		stepErrors += s.StepErrors

		if i == 0 || s.RunDuration < minRun {
			minRun = s.RunDuration
		}
		if s.RunDuration > maxRun {
			maxRun = s.RunDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)

	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var runsPerSec float64
	if avg > 0 {
		runsPerSec = float64(time.Second) / float64(avg)
	}

	return PerfStats{
		AvgRunDuration: avg,
		MinRunDuration: minRun,
		MaxRunDuration: maxRun,
		PhaseAvg:       phaseAvg,
		PhasePct:       phasePct,
		RunsPerSecond:  runsPerSec,
		StepErrors:     stepErrors,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_run_us", s.AvgRunDuration.Microseconds()),
		slog.Int64("min_run_us", s.MinRunDuration.Microseconds()),
		slog.Int64("max_run_us", s.MaxRunDuration.Microseconds()),
		slog.Float64("runs_per_sec", s.RunsPerSecond),
	}
	if s.StepErrors > 0 {
		attrs = append(attrs, slog.Int("step_errors", s.StepErrors))
	}
	for _, phase := range phaseOrder {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Generation                 int     `csv:"generation"`
	AvgRunUS                   int64   `csv:"avg_run_us"`
	MinRunUS                   int64   `csv:"min_run_us"`
	MaxRunUS                   int64   `csv:"max_run_us"`
	RunsPerSec                 float64 `csv:"runs_per_sec"`
	StepErrors                 int     `csv:"step_errors"`
	MichePopulationPct         float64 `csv:"miche_population_pct"`
	FindMigrationsPct          float64 `csv:"find_migrations_pct"`
	ModifySpeciesPct           float64 `csv:"modify_species_pct"`
	RemoveInvalidMigrationsPct float64 `csv:"remove_invalid_migrations_pct"`
	KillLowPopulationPct       float64 `csv:"kill_low_population_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(generation int) PerfStatsCSV {
	return PerfStatsCSV{
		Generation:                 generation,
		AvgRunUS:                   s.AvgRunDuration.Microseconds(),
		MinRunUS:                   s.MinRunDuration.Microseconds(),
		MaxRunUS:                   s.MaxRunDuration.Microseconds(),
		RunsPerSec:                 s.RunsPerSecond,
		StepErrors:                 s.StepErrors,
		MichePopulationPct:         s.PhasePct[steps.IDMichePopulation],
		FindMigrationsPct:          s.PhasePct[steps.IDFindMigrations],
		ModifySpeciesPct:           s.PhasePct[steps.IDModifySpecies],
		RemoveInvalidMigrationsPct: s.PhasePct[steps.IDRemoveInvalidMigrations],
		KillLowPopulationPct:       s.PhasePct[steps.IDKillLowPopulation],
	}
}
