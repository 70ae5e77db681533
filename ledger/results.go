// Package ledger accumulates the population changes, migrations and
// speciation events simulation steps produce during one auto-evo run, and
// commits them to the world exactly once.
package ledger

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pthm-cable/autoevo/world"
)

// RunResults is the ledger of one run. Rows are keyed by stable species ID.
// Writers to different species proceed in parallel; writes to one species
// are serialized by the row lock.
type RunResults struct {
	mu      sync.RWMutex
	results map[world.SpeciesID]*SpeciesResult

	applied atomic.Bool
	logger  *slog.Logger
}

// NewRunResults creates an empty ledger. A nil logger uses slog.Default().
func NewRunResults(logger *slog.Logger) *RunResults {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunResults{
		results: make(map[world.SpeciesID]*SpeciesResult),
		logger:  logger,
	}
}

// row returns the row of a species, creating it on first reference.
func (r *RunResults) row(sp *world.Species) (*SpeciesResult, error) {
	if sp == nil {
		return nil, ErrNilSpecies
	}

	r.mu.RLock()
	res, ok := r.results[sp.ID]
	r.mu.RUnlock()
	if ok {
		return res, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.results[sp.ID]; ok {
		return res, nil
	}
	res = newSpeciesResult(sp)
	r.results[sp.ID] = res
	return res, nil
}

// existing returns the row of a species or ErrNoResult.
func (r *RunResults) existing(id world.SpeciesID) (*SpeciesResult, error) {
	r.mu.RLock()
	res, ok := r.results[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoResult, id)
	}
	return res, nil
}

// Has reports whether a species has a ledger row.
func (r *RunResults) Has(id world.SpeciesID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.results[id]
	return ok
}

// SpeciesIDs returns the species with ledger rows in ascending order.
func (r *RunResults) SpeciesIDs() []world.SpeciesID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.results))
}

// Species returns the species with ledger rows ordered by ID.
func (r *RunResults) Species() []*world.Species {
	ids := r.SpeciesIDs()
	out := make([]*world.Species, 0, len(ids))
	r.mu.RLock()
	for _, id := range ids {
		out = append(out, r.results[id].species)
	}
	r.mu.RUnlock()
	return out
}

// Len returns the number of ledger rows.
func (r *RunResults) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.results)
}

// Applied reports whether the ledger has been committed.
func (r *RunResults) Applied() bool {
	return r.applied.Load()
}

// AddPopulationResultForSpecies sets the natural population of a species in
// a patch. Negative values are clamped to zero.
func (r *RunResults) AddPopulationResultForSpecies(sp *world.Species, patch world.PatchID, population int64) error {
	res, err := r.row(sp)
	if err != nil {
		return err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	res.newPopulation[patch] = max(population, 0)
	return nil
}

// RecordOldPopulation stores the population a species had in a patch before the run.
func (r *RunResults) RecordOldPopulation(sp *world.Species, patch world.PatchID, population int64) error {
	res, err := r.row(sp)
	if err != nil {
		return err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	res.oldPopulation[patch] = population
	return nil
}

// AddMigrationResultForSpecies queues a migration for a species.
func (r *RunResults) AddMigrationResultForSpecies(sp *world.Species, m Migration) error {
	res, err := r.row(sp)
	if err != nil {
		return err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	res.migrations = append(res.migrations, m)
	return nil
}

// Migrations returns a copy of the queued migrations of a species.
func (r *RunResults) Migrations(id world.SpeciesID) ([]Migration, error) {
	res, err := r.existing(id)
	if err != nil {
		return nil, err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	return slices.Clone(res.migrations), nil
}

// RemoveDuplicateTargetPatchMigrations drops every migration that targets a
// patch an earlier migration of the same species already targets. Returns the
// number of migrations removed. Species without a row are left alone.
func (r *RunResults) RemoveDuplicateTargetPatchMigrations(id world.SpeciesID) int {
	res, err := r.existing(id)
	if err != nil {
		return 0
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	seen := make(map[world.PatchID]bool, len(res.migrations))
	kept := res.migrations[:0]
	removed := 0
	for _, m := range res.migrations {
		if seen[m.to] {
			r.logger.Debug("duplicate_migration_dropped",
				"species", id,
				"from", m.from,
				"to", m.to,
				"population", m.population,
			)
			removed++
			continue
		}
		seen[m.to] = true
		kept = append(kept, m)
	}
	res.migrations = kept
	return removed
}

// RemoveMigrationsForSplitPatches drops migrations that start or end in a
// patch that split off to a new species. Returns the number removed.
func (r *RunResults) RemoveMigrationsForSplitPatches(id world.SpeciesID) int {
	res, err := r.existing(id)
	if err != nil {
		return 0
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	if res.splitOff == nil || len(res.splitOffPatches) == 0 {
		return 0
	}
	before := len(res.migrations)
	res.migrations = slices.DeleteFunc(res.migrations, func(m Migration) bool {
		return slices.Contains(res.splitOffPatches, m.from) || slices.Contains(res.splitOffPatches, m.to)
	})
	return before - len(res.migrations)
}

// KillSpeciesInPatch sets the population of a species in a patch to zero and
// drops migrations heading there, unless the patch is part of a split. When
// refundMigrations is false the migrants are also debited from their source
// patch, as if they died on the way.
func (r *RunResults) KillSpeciesInPatch(sp *world.Species, patch world.PatchID, refundMigrations bool) error {
	res, err := r.row(sp)
	if err != nil {
		return err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	res.newPopulation[patch] = 0

	if res.isSplitOffPatch(patch) {
		return nil
	}

	res.migrations = slices.DeleteFunc(res.migrations, func(m Migration) bool {
		if m.to != patch {
			return false
		}
		if !refundMigrations {
			if src, ok := res.newPopulation[m.from]; ok {
				res.newPopulation[m.from] = max(src-m.population, 0)
			}
		}
		return true
	})
	return nil
}

// AddNewSpecies records a species created during this run with its starting
// populations. from is the species it derives from. Split targets are
// recorded without populations; they inherit from the split at commit.
func (r *RunResults) AddNewSpecies(sp *world.Species, populations map[world.PatchID]int64, kind NewSpeciesType, from *world.Species) error {
	if kind == NotNew {
		return ErrInvalidNewSpecies
	}
	if from == nil {
		return fmt.Errorf("%w: origin of new species", ErrNilSpecies)
	}
	for patch, pop := range populations {
		if pop < 0 {
			return fmt.Errorf("%w: new species in patch %d", ErrNegativePopulation, patch)
		}
	}

	res, err := r.row(sp)
	if err != nil {
		return err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	res.newlyCreated = kind
	res.splitFrom = from
	for patch, pop := range populations {
		res.newPopulation[patch] = pop
	}
	return nil
}

// AddSplitResultForSpecies records that the population of sp in patches moves
// to the new species split.
func (r *RunResults) AddSplitResultForSpecies(sp, split *world.Species, patches []world.PatchID) error {
	if split == nil {
		return fmt.Errorf("%w: split target", ErrNilSpecies)
	}
	res, err := r.row(sp)
	if err != nil {
		return err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	res.splitOff = split
	res.splitOffPatches = slices.Clone(patches)
	return nil
}

// AddMutationResultForSpecies records the mutated properties a species
// adopts at commit. A nil mutation clears a previous one.
func (r *RunResults) AddMutationResultForSpecies(sp, mutated *world.Species) error {
	res, err := r.row(sp)
	if err != nil {
		return err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	res.mutated = mutated
	return nil
}

// AddTrackedEnergyForSpecies records energy a species gathered from a source in a patch.
func (r *RunResults) AddTrackedEnergyForSpecies(sp *world.Species, patch world.PatchID, source string, fitness, energy float64) error {
	res, err := r.row(sp)
	if err != nil {
		return err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	e := res.patchEnergy(patch)
	e.TotalEnergy += energy
	e.Contributions = append(e.Contributions, EnergyContribution{Source: source, Fitness: fitness, Energy: energy})
	return nil
}

// AddTrackedEnergyConsumptionForSpecies records what one individual of a
// species costs in a patch.
func (r *RunResults) AddTrackedEnergyConsumptionForSpecies(sp *world.Species, patch world.PatchID, individualCost float64) error {
	res, err := r.row(sp)
	if err != nil {
		return err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	res.patchEnergy(patch).IndividualCost = individualCost
	return nil
}

// UnadjustedPopulation returns floor(energy gathered / individual cost) for a
// species in a patch, or 0 when nothing was tracked there.
func (r *RunResults) UnadjustedPopulation(id world.SpeciesID, patch world.PatchID) (int64, error) {
	res, err := r.existing(id)
	if err != nil {
		return 0, err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	e, ok := res.energy[patch]
	if !ok {
		return 0, nil
	}
	return e.UnadjustedPopulation(), nil
}

// GetSpeciesPopulationsByPatch returns the per-patch population of a species.
// Patches with no natural population are absent. resolveSplits removes the
// patches that split away; resolveMigrations moves migrants, clamped to what
// the source patch holds.
func (r *RunResults) GetSpeciesPopulationsByPatch(id world.SpeciesID, resolveMigrations, resolveSplits bool) (map[world.PatchID]int64, error) {
	res, err := r.existing(id)
	if err != nil {
		return nil, err
	}
	res.mu.Lock()
	defer res.mu.Unlock()

	return res.resolvedPopulations(resolveMigrations, resolveSplits), nil
}

// GetGlobalPopulation sums the resolved population of a species over all patches.
func (r *RunResults) GetGlobalPopulation(id world.SpeciesID, resolveMigrations, resolveSplits bool) (int64, error) {
	pops, err := r.GetSpeciesPopulationsByPatch(id, resolveMigrations, resolveSplits)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, pop := range pops {
		total += pop
	}
	return total, nil
}

// GetPopulationInPatch returns the fully resolved population of a species in one patch.
func (r *RunResults) GetPopulationInPatch(id world.SpeciesID, patch world.PatchID) (int64, error) {
	pops, err := r.GetSpeciesPopulationsByPatch(id, true, true)
	if err != nil {
		return 0, err
	}
	return pops[patch], nil
}

// GetNewSpeciesPopulationInPatch returns the population of a species in a
// patch including what it inherits from species that split into it there.
// Species without a row of their own still count inherited population.
func (r *RunResults) GetNewSpeciesPopulationInPatch(id world.SpeciesID, patch world.PatchID) int64 {
	var total int64
	if own, err := r.GetPopulationInPatch(id, patch); err == nil {
		total = own
	}

	r.mu.RLock()
	rows := slices.Collect(maps.Values(r.results))
	r.mu.RUnlock()

	for _, res := range rows {
		res.mu.Lock()
		if res.splitOff != nil && res.splitOff.ID == id && slices.Contains(res.splitOffPatches, patch) {
			total += max(res.newPopulation[patch], 0)
		}
		res.mu.Unlock()
	}
	return total
}
