// Package telemetry provides generation statistics, event detection, step
// timing and CSV output for auto-evo runs.
package telemetry

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/autoevo/config"
)

// EventType identifies the type of generation event.
type EventType string

const (
	EventMassExtinction  EventType = "mass_extinction"
	EventSpeciationBurst EventType = "speciation_burst"
	EventPopulationCrash EventType = "population_crash"
	EventStableEcosystem EventType = "stable_ecosystem"
)

// Event represents an automatically detected generation event.
type Event struct {
	Type        EventType `csv:"type" json:"type"`
	Generation  int       `csv:"generation" json:"generation"`
	Description string    `csv:"description" json:"description"`
}

// LogEvent logs the event using slog.
func (e Event) LogEvent(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("event",
		"type", string(e.Type),
		"generation", e.Generation,
		"description", e.Description,
	)
}

// EventDetector detects notable generations.
type EventDetector struct {
	cfg config.EventsConfig

	// Rolling history (circular buffer)
	history     []GenerationStats
	historySize int
	historyIdx  int
	historyFull bool

	stableRun int // consecutive generations inside the stability window
}

// NewEventDetector creates a detector with the given thresholds.
func NewEventDetector(cfg config.EventsConfig) *EventDetector {
	size := cfg.HistorySize
	if size < cfg.StableGenerations {
		size = cfg.StableGenerations
	}
	if size < 5 {
		size = 5
	}
	return &EventDetector{
		cfg:         cfg,
		history:     make([]GenerationStats, size),
		historySize: size,
	}
}

// Check analyzes the latest stats and returns any triggered events.
func (d *EventDetector) Check(stats GenerationStats) []Event {
	var events []Event

	if e := d.checkSpeciationBurst(stats); e != nil {
		events = append(events, *e)
	}
	if d.historyFull || d.historyIdx > 0 {
		if e := d.checkMassExtinction(stats); e != nil {
			events = append(events, *e)
		}
		if e := d.checkPopulationCrash(stats); e != nil {
			events = append(events, *e)
		}
		if e := d.checkStableEcosystem(stats); e != nil {
			events = append(events, *e)
		}
	}

	d.addToHistory(stats)
	return events
}

func (d *EventDetector) addToHistory(stats GenerationStats) {
	d.history[d.historyIdx] = stats
	d.historyIdx = (d.historyIdx + 1) % d.historySize
	if d.historyIdx == 0 {
		d.historyFull = true
	}
}

// recent returns up to n history entries, oldest first.
func (d *EventDetector) recent(n int) []GenerationStats {
	count := d.historyIdx
	if d.historyFull {
		count = d.historySize
	}
	n = min(n, count)
	out := make([]GenerationStats, 0, n)
	for i := n; i > 0; i-- {
		idx := (d.historyIdx - i + d.historySize) % d.historySize
		out = append(out, d.history[idx])
	}
	return out
}

func (d *EventDetector) checkSpeciationBurst(stats GenerationStats) *Event {
	if d.cfg.SpeciationBurst <= 0 || stats.NewSpecies < d.cfg.SpeciationBurst {
		return nil
	}
	return &Event{
		Type:        EventSpeciationBurst,
		Generation:  stats.Generation,
		Description: fmt.Sprintf("%d new species in one generation", stats.NewSpecies),
	}
}

func (d *EventDetector) checkMassExtinction(stats GenerationStats) *Event {
	prev := d.recent(1)
	if len(prev) == 0 || prev[0].SpeciesCount == 0 || stats.Extinctions == 0 {
		return nil
	}

	lost := float64(stats.Extinctions) / float64(prev[0].SpeciesCount)
	if lost < d.cfg.MassExtinctionFraction {
		return nil
	}
	return &Event{
		Type:        EventMassExtinction,
		Generation:  stats.Generation,
		Description: fmt.Sprintf("%d of %d species went extinct (%.0f%%)", stats.Extinctions, prev[0].SpeciesCount, lost*100),
	}
}

func (d *EventDetector) checkPopulationCrash(stats GenerationStats) *Event {
	history := d.recent(d.historySize)
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += float64(h.TotalPopulation)
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	drop := 1 - float64(stats.TotalPopulation)/avg
	if drop <= d.cfg.CrashDropPercent {
		return nil
	}
	return &Event{
		Type:        EventPopulationCrash,
		Generation:  stats.Generation,
		Description: fmt.Sprintf("Total population %d is %.0f%% below the recent average %.0f", stats.TotalPopulation, drop*100, avg),
	}
}

func (d *EventDetector) checkStableEcosystem(stats GenerationStats) *Event {
	window := d.cfg.StableGenerations
	if window < 2 || stats.SpeciesCount == 0 {
		d.stableRun = 0
		return nil
	}

	history := d.recent(window - 1)
	if len(history) < window-1 {
		return nil
	}

	pops := make([]float64, 0, window)
	for _, h := range history {
		pops = append(pops, float64(h.TotalPopulation))
	}
	pops = append(pops, float64(stats.TotalPopulation))

	if Summarize(pops).CV() >= d.cfg.StableCV {
		d.stableRun = 0
		return nil
	}

	d.stableRun++
	if d.stableRun != 1 {
		return nil
	}
	return &Event{
		Type:        EventStableEcosystem,
		Generation:  stats.Generation,
		Description: fmt.Sprintf("Total population held near %d with %d species over %d generations", stats.TotalPopulation, stats.SpeciesCount, window),
	}
}
