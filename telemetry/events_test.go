package telemetry

import (
	"testing"

	"github.com/pthm-cable/autoevo/config"
)

func testEventsConfig() config.EventsConfig {
	return config.EventsConfig{
		HistorySize:            10,
		MassExtinctionFraction: 0.5,
		SpeciationBurst:        4,
		CrashDropPercent:       0.4,
		StableGenerations:      5,
		StableCV:               0.05,
	}
}

func hasEvent(events []Event, typ EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestEventDetector_SpeciationBurst(t *testing.T) {
	d := NewEventDetector(testEventsConfig())

	if events := d.Check(GenerationStats{Generation: 1, NewSpecies: 3}); hasEvent(events, EventSpeciationBurst) {
		t.Error("burst fired below threshold")
	}
	if events := d.Check(GenerationStats{Generation: 2, NewSpecies: 4}); !hasEvent(events, EventSpeciationBurst) {
		t.Error("expected speciation_burst event")
	}
}

func TestEventDetector_MassExtinction(t *testing.T) {
	d := NewEventDetector(testEventsConfig())

	d.Check(GenerationStats{Generation: 1, SpeciesCount: 10, TotalPopulation: 1000})

	events := d.Check(GenerationStats{Generation: 2, SpeciesCount: 4, Extinctions: 6, TotalPopulation: 900})
	if !hasEvent(events, EventMassExtinction) {
		t.Error("expected mass_extinction event")
	}

	events = d.Check(GenerationStats{Generation: 3, SpeciesCount: 3, Extinctions: 1, TotalPopulation: 900})
	if hasEvent(events, EventMassExtinction) {
		t.Error("one of four species lost is not a mass extinction")
	}
}

func TestEventDetector_PopulationCrash(t *testing.T) {
	d := NewEventDetector(testEventsConfig())

	for i := 0; i < 5; i++ {
		d.Check(GenerationStats{Generation: i, SpeciesCount: 5, TotalPopulation: 10000})
	}

	events := d.Check(GenerationStats{Generation: 5, SpeciesCount: 5, TotalPopulation: 5000})
	if !hasEvent(events, EventPopulationCrash) {
		t.Error("expected population_crash event")
	}
}

func TestEventDetector_StableEcosystemFiresOnce(t *testing.T) {
	d := NewEventDetector(testEventsConfig())

	fired := 0
	for i := 0; i < 10; i++ {
		events := d.Check(GenerationStats{Generation: i, SpeciesCount: 3, TotalPopulation: 5000 + int64(i%2)})
		if hasEvent(events, EventStableEcosystem) {
			fired++
			if i != 4 {
				t.Errorf("stable event at generation %d, want 4", i)
			}
		}
	}
	if fired != 1 {
		t.Errorf("stable event fired %d times, want 1", fired)
	}
}

func TestEventDetector_UnstableResets(t *testing.T) {
	d := NewEventDetector(testEventsConfig())

	pops := []int64{1000, 5000, 1000, 5000, 1000, 5000, 1000}
	for i, pop := range pops {
		events := d.Check(GenerationStats{Generation: i, SpeciesCount: 3, TotalPopulation: pop})
		if hasEvent(events, EventStableEcosystem) {
			t.Fatalf("unexpected stable event at generation %d", i)
		}
	}
}
