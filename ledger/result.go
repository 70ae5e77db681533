package ledger

import (
	"maps"
	"slices"
	"sync"

	"github.com/pthm-cable/autoevo/world"
)

// NewSpeciesType records why a species was created during a run.
type NewSpeciesType int

const (
	NotNew NewSpeciesType = iota
	FillNiche
	SplitDueToMutation
)

func (t NewSpeciesType) String() string {
	switch t {
	case FillNiche:
		return "fill_niche"
	case SplitDueToMutation:
		return "split_due_to_mutation"
	default:
		return "not_new"
	}
}

// SpeciesResult is the ledger row of one species. All fields are guarded by mu.
type SpeciesResult struct {
	mu sync.Mutex

	species *world.Species

	// Natural growth or decline only; migrations and splits are resolved on read
	newPopulation map[world.PatchID]int64
	oldPopulation map[world.PatchID]int64

	mutated    *world.Species
	migrations []Migration

	newlyCreated NewSpeciesType
	splitFrom    *world.Species

	splitOff        *world.Species
	splitOffPatches []world.PatchID

	energy map[world.PatchID]*PatchEnergy
}

func newSpeciesResult(sp *world.Species) *SpeciesResult {
	return &SpeciesResult{
		species:       sp,
		newPopulation: make(map[world.PatchID]int64),
		oldPopulation: make(map[world.PatchID]int64),
		energy:        make(map[world.PatchID]*PatchEnergy),
	}
}

// isSplitOffPatch must be called with mu held.
func (r *SpeciesResult) isSplitOffPatch(patch world.PatchID) bool {
	return r.splitOff != nil && slices.Contains(r.splitOffPatches, patch)
}

// patchEnergy must be called with mu held.
func (r *SpeciesResult) patchEnergy(patch world.PatchID) *PatchEnergy {
	e, ok := r.energy[patch]
	if !ok {
		e = &PatchEnergy{}
		r.energy[patch] = e
	}
	return e
}

// resolvedPopulations must be called with mu held.
func (r *SpeciesResult) resolvedPopulations(resolveMigrations, resolveSplits bool) map[world.PatchID]int64 {
	out := make(map[world.PatchID]int64, len(r.newPopulation))
	for patch, pop := range r.newPopulation {
		// Zero population means absent before adjustments
		if pop > 0 {
			out[patch] = pop
		}
	}

	if resolveSplits && r.splitOff != nil {
		for _, patch := range r.splitOffPatches {
			delete(out, patch)
		}
	}

	if resolveMigrations {
		for _, m := range r.migrations {
			moved := min(m.population, out[m.from])
			if moved <= 0 {
				continue
			}
			out[m.from] -= moved
			if out[m.from] == 0 {
				delete(out, m.from)
			}
			out[m.to] += moved
		}
	}
	return out
}

// record copies the row into an immutable SpeciesRecord. Must be called with mu held.
func (r *SpeciesResult) record() SpeciesRecord {
	rec := SpeciesRecord{
		SpeciesID:     r.species.ID,
		Name:          r.species.Name,
		Species:       r.species.Clone(),
		NewPopulation: maps.Clone(r.newPopulation),
		OldPopulation: maps.Clone(r.oldPopulation),
		Resolved:      r.resolvedPopulations(true, true),
		NewlyCreated:  r.newlyCreated,
		Mutated:       r.mutated.Clone(),
	}
	for _, m := range r.migrations {
		rec.Migrations = append(rec.Migrations, MigrationRecord{From: m.from, To: m.to, Population: m.population})
	}
	if r.splitFrom != nil {
		rec.SplitFrom = r.splitFrom.ID
	}
	if r.splitOff != nil {
		rec.SplitOff = r.splitOff.ID
		rec.SplitOffPatches = slices.Clone(r.splitOffPatches)
	}
	if len(r.energy) > 0 {
		rec.Energy = make(map[world.PatchID]PatchEnergy, len(r.energy))
		for patch, e := range r.energy {
			rec.Energy[patch] = *e.clone()
		}
	}
	for _, pop := range rec.Resolved {
		rec.GlobalPopulation += pop
	}
	return rec
}
