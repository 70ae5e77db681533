package telemetry

import (
	"cmp"
	"slices"

	"github.com/pthm-cable/autoevo/ledger"
	"github.com/pthm-cable/autoevo/world"
)

// LifetimeStats tracks one species over the generations it exists in.
type LifetimeStats struct {
	SpeciesID       world.SpeciesID `json:"species_id"`
	Name            string          `json:"name"`
	ParentID        world.SpeciesID `json:"parent_id,omitempty"`
	FirstGeneration int             `json:"first_generation"`
	LastGeneration  int             `json:"last_generation"`
	PeakPopulation  int64           `json:"peak_population"`
	PeakGeneration  int             `json:"peak_generation"`
	Children        int             `json:"children"`
	Extinct         bool            `json:"extinct"`
}

// Span returns the number of generations the species was alive for.
func (ls *LifetimeStats) Span() int {
	return ls.LastGeneration - ls.FirstGeneration + 1
}

// LifetimeTracker manages per-species lifetime statistics.
type LifetimeTracker struct {
	stats map[world.SpeciesID]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[world.SpeciesID]*LifetimeStats),
	}
}

// Observe folds one generation's ledger snapshot into the tracker.
func (lt *LifetimeTracker) Observe(generation int, records []ledger.SpeciesRecord) {
	for _, rec := range records {
		s := lt.stats[rec.SpeciesID]
		if s == nil {
			if rec.Extinct() {
				continue
			}
			s = &LifetimeStats{
				SpeciesID:       rec.SpeciesID,
				Name:            rec.Name,
				FirstGeneration: generation,
			}
			if rec.SplitFrom != 0 {
				s.ParentID = rec.SplitFrom
			} else if rec.Species != nil {
				s.ParentID = rec.Species.ParentID
			}
			lt.stats[rec.SpeciesID] = s
			if parent := lt.stats[s.ParentID]; parent != nil {
				parent.Children++
			}
		}
		if s.Extinct {
			continue
		}

		s.LastGeneration = generation
		if rec.GlobalPopulation > s.PeakPopulation {
			s.PeakPopulation = rec.GlobalPopulation
			s.PeakGeneration = generation
		}
		if rec.Extinct() {
			s.Extinct = true
		}
	}
}

// Get returns the lifetime stats for a species, or nil if not found.
func (lt *LifetimeTracker) Get(id world.SpeciesID) *LifetimeStats {
	return lt.stats[id]
}

// All returns every tracked species ordered by ID.
func (lt *LifetimeTracker) All() []*LifetimeStats {
	out := make([]*LifetimeStats, 0, len(lt.stats))
	for _, s := range lt.stats {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *LifetimeStats) int { return cmp.Compare(a.SpeciesID, b.SpeciesID) })
	return out
}

// Count returns the number of tracked species.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}

// Living returns the number of tracked species not yet extinct.
func (lt *LifetimeTracker) Living() int {
	n := 0
	for _, s := range lt.stats {
		if !s.Extinct {
			n++
		}
	}
	return n
}

// Longest returns the species with the longest span, preferring living ones
// on ties. Returns nil when nothing is tracked.
func (lt *LifetimeTracker) Longest() *LifetimeStats {
	var best *LifetimeStats
	for _, s := range lt.All() {
		if best == nil || s.Span() > best.Span() || (s.Span() == best.Span() && best.Extinct && !s.Extinct) {
			best = s
		}
	}
	return best
}
