// Package history archives the ledger snapshots of committed generations.
package history

import (
	"context"
	"time"

	"github.com/pthm-cable/autoevo/ledger"
	"github.com/pthm-cable/autoevo/miche"
	"github.com/pthm-cable/autoevo/world"
)

// Generation is the archived outcome of one committed run.
type Generation struct {
	SchemaVersion int                    `json:"schema_version"`
	Number        int                    `json:"generation"`
	RunID         string                 `json:"run_id"`
	CommittedAt   time.Time              `json:"committed_at"`
	Species       []ledger.SpeciesRecord `json:"species"`
	Miches        []miche.Snapshot       `json:"miches,omitempty"`
	Anomalies     int                    `json:"anomalies"`
}

// Store persists generations.
type Store interface {
	Init(ctx context.Context) error
	SaveGeneration(ctx context.Context, gen Generation) error
	GetGeneration(ctx context.Context, number int) (Generation, bool, error)
	// Generations returns the stored generation numbers in ascending order.
	Generations(ctx context.Context) ([]int, error)
	Close() error
}

// PopulationPoint is the global population of a species in one generation.
type PopulationPoint struct {
	Generation int
	Population int64
}

// SpeciesHistory returns the population of a species over every stored
// generation it appears in.
func SpeciesHistory(ctx context.Context, store Store, species world.SpeciesID) ([]PopulationPoint, error) {
	numbers, err := store.Generations(ctx)
	if err != nil {
		return nil, err
	}
	var out []PopulationPoint
	for _, n := range numbers {
		gen, ok, err := store.GetGeneration(ctx, n)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, rec := range gen.Species {
			if rec.SpeciesID == species {
				out = append(out, PopulationPoint{Generation: n, Population: rec.GlobalPopulation})
				break
			}
		}
	}
	return out, nil
}
