package ledger

import "github.com/pthm-cable/autoevo/world"

// MigrationRecord is the archived form of a migration.
type MigrationRecord struct {
	From       world.PatchID `json:"from"`
	To         world.PatchID `json:"to"`
	Population int64         `json:"population"`
}

// SpeciesRecord is an immutable copy of one ledger row, suitable for
// generation history.
type SpeciesRecord struct {
	SpeciesID        world.SpeciesID               `json:"species_id"`
	Name             string                        `json:"name"`
	Species          *world.Species                `json:"species"`
	NewPopulation    map[world.PatchID]int64       `json:"new_population"`
	OldPopulation    map[world.PatchID]int64       `json:"old_population,omitempty"`
	Resolved         map[world.PatchID]int64       `json:"resolved"`
	GlobalPopulation int64                         `json:"global_population"`
	Migrations       []MigrationRecord             `json:"migrations,omitempty"`
	NewlyCreated     NewSpeciesType                `json:"newly_created"`
	SplitFrom        world.SpeciesID               `json:"split_from,omitempty"`
	SplitOff         world.SpeciesID               `json:"split_off,omitempty"`
	SplitOffPatches  []world.PatchID               `json:"split_off_patches,omitempty"`
	Mutated          *world.Species                `json:"mutated,omitempty"`
	Energy           map[world.PatchID]PatchEnergy `json:"energy,omitempty"`
}

// OldGlobalPopulation sums the recorded pre-run populations.
func (s SpeciesRecord) OldGlobalPopulation() int64 {
	var total int64
	for _, pop := range s.OldPopulation {
		total += pop
	}
	return total
}

// Extinct reports whether the species ends the run with no population.
func (s SpeciesRecord) Extinct() bool {
	return s.GlobalPopulation <= 0
}

// Record returns the snapshot of one species row.
func (r *RunResults) Record(id world.SpeciesID) (SpeciesRecord, error) {
	res, err := r.existing(id)
	if err != nil {
		return SpeciesRecord{}, err
	}
	res.mu.Lock()
	defer res.mu.Unlock()
	return res.record(), nil
}

// Snapshot returns records for every row ordered by species ID.
func (r *RunResults) Snapshot() []SpeciesRecord {
	ids := r.SpeciesIDs()
	out := make([]SpeciesRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.Record(id)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}

	// Split targets inherit the origin population in the split-off patches
	byID := make(map[world.SpeciesID]int, len(out))
	for i := range out {
		byID[out[i].SpeciesID] = i
	}
	for _, origin := range out {
		if origin.SplitOff == 0 {
			continue
		}
		i, ok := byID[origin.SplitOff]
		if !ok {
			continue
		}
		target := &out[i]
		for _, patch := range origin.SplitOffPatches {
			if pop := origin.NewPopulation[patch]; pop > 0 {
				target.Resolved[patch] += pop
				target.GlobalPopulation += pop
			}
		}
	}
	return out
}
