package ledger

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/pthm-cable/autoevo/world"
)

// World is the persistent state a ledger is committed to.
type World interface {
	Patch(id world.PatchID) (*world.Patch, bool)
	// RegisterSpecies adds a species if unknown. Returns false if already registered.
	RegisterSpecies(sp *world.Species) bool
	UpdateSpeciesProperties(id world.SpeciesID, mutated *world.Species) error
	// UpdateSpeciesPopulation reports false if the species is not in the patch.
	UpdateSpeciesPopulation(patch world.PatchID, species world.SpeciesID, population int64) bool
	AddSpeciesToPatch(patch world.PatchID, species world.SpeciesID, population int64) bool
	SpeciesPopulationInPatch(patch world.PatchID, species world.SpeciesID) int64
	ClearPopulationCaches()
}

// Anomaly is a commit item that could not be applied to the world.
type Anomaly struct {
	Op      string
	Species world.SpeciesID
	Patch   world.PatchID
	Detail  string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s: species %d patch %d: %s", a.Op, a.Species, a.Patch, a.Detail)
}

// CommitReport summarizes what ApplyResults changed.
type CommitReport struct {
	Registered        int
	Mutated           int
	PopulationUpdates int
	Migrations        int
	Splits            int
	Anomalies         []Anomaly
}

// LogValue implements slog.LogValuer.
func (c CommitReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("registered", c.Registered),
		slog.Int("mutated", c.Mutated),
		slog.Int("population_updates", c.PopulationUpdates),
		slog.Int("migrations", c.Migrations),
		slog.Int("splits", c.Splits),
		slog.Int("anomalies", len(c.Anomalies)),
	)
}

type committer struct {
	w      World
	logger *slog.Logger
	report CommitReport
}

func (c *committer) anomaly(op string, species world.SpeciesID, patch world.PatchID, format string, args ...any) {
	a := Anomaly{Op: op, Species: species, Patch: patch, Detail: fmt.Sprintf(format, args...)}
	c.report.Anomalies = append(c.report.Anomalies, a)
	c.logger.Warn("commit_anomaly",
		"op", op,
		"species", species,
		"patch", patch,
		"detail", a.Detail,
	)
}

func (c *committer) hasPatch(id world.PatchID) bool {
	_, ok := c.w.Patch(id)
	return ok
}

// ApplyResults commits the ledger to the world. It may only be called once;
// later calls return ErrAlreadyApplied without touching the world. Items the
// world rejects are logged and reported as anomalies while the commit goes on.
// A declared split without split-off patches fails the commit before any change.
func (r *RunResults) ApplyResults(w World, skipMutations bool) (CommitReport, error) {
	// Writers are excluded for the whole commit
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.applied.Load() {
		return CommitReport{}, ErrAlreadyApplied
	}

	ids := slices.Sorted(maps.Keys(r.results))
	rows := make([]*SpeciesResult, len(ids))
	for i, id := range ids {
		rows[i] = r.results[id]
		rows[i].mu.Lock()
		defer rows[i].mu.Unlock()
	}

	// Split targets receive their population from the split, not as new species
	splitTargets := make(map[world.SpeciesID]bool)
	for _, res := range rows {
		if res.splitOff == nil {
			continue
		}
		if len(res.splitOffPatches) == 0 {
			return CommitReport{}, fmt.Errorf("%w: %s", ErrMissingSplitPatches, res.species)
		}
		splitTargets[res.splitOff.ID] = true
	}

	r.applied.Store(true)
	c := &committer{w: w, logger: r.logger}

	// 1. Register new species
	for _, res := range rows {
		if res.newlyCreated != NotNew && w.RegisterSpecies(res.species) {
			c.report.Registered++
		}
		if res.splitOff != nil && w.RegisterSpecies(res.splitOff) {
			c.report.Registered++
		}
	}

	// 2. Mutations
	if !skipMutations {
		for _, res := range rows {
			if res.mutated == nil {
				continue
			}
			if err := w.UpdateSpeciesProperties(res.species.ID, res.mutated); err != nil {
				c.anomaly("mutate", res.species.ID, 0, "%v", err)
				continue
			}
			c.report.Mutated++
		}
	}

	// 3. Natural populations of existing species
	for _, res := range rows {
		if res.newlyCreated != NotNew {
			continue
		}
		id := res.species.ID
		for _, patch := range slices.Sorted(maps.Keys(res.newPopulation)) {
			pop := res.newPopulation[patch]
			if !c.hasPatch(patch) {
				c.anomaly("population", id, patch, "unknown patch")
				continue
			}
			if w.UpdateSpeciesPopulation(patch, id, pop) {
				c.report.PopulationUpdates++
				continue
			}
			if pop <= 0 {
				continue
			}
			if !w.AddSpeciesToPatch(patch, id, pop) {
				c.anomaly("population", id, patch, "could not add %d individuals", pop)
				continue
			}
			c.report.PopulationUpdates++
			c.logger.Debug("species_appeared_without_migration", "species", id, "patch", patch, "population", pop)
		}
	}

	// 4. Starting populations of new species
	for _, res := range rows {
		id := res.species.ID
		if res.newlyCreated == NotNew || splitTargets[id] {
			continue
		}
		for _, patch := range slices.Sorted(maps.Keys(res.newPopulation)) {
			pop := res.newPopulation[patch]
			if pop <= 0 {
				continue
			}
			if !c.hasPatch(patch) {
				c.anomaly("new_species", id, patch, "unknown patch")
				continue
			}
			if !w.AddSpeciesToPatch(patch, id, pop) && !w.UpdateSpeciesPopulation(patch, id, pop) {
				c.anomaly("new_species", id, patch, "could not place %d individuals", pop)
				continue
			}
			c.report.PopulationUpdates++
		}
	}

	// 5. Migrations
	for _, res := range rows {
		id := res.species.ID
		for _, m := range res.migrations {
			c.migrate(id, m)
		}
	}

	// 6. Splits
	for _, res := range rows {
		if res.splitOff == nil {
			continue
		}
		id := res.species.ID
		for _, patch := range res.splitOffPatches {
			pop := w.SpeciesPopulationInPatch(patch, id)
			if pop <= 0 {
				continue
			}
			if !w.UpdateSpeciesPopulation(patch, id, 0) {
				c.anomaly("split", id, patch, "could not clear origin population")
				continue
			}
			target := res.splitOff.ID
			if !w.AddSpeciesToPatch(patch, target, pop) && !w.UpdateSpeciesPopulation(patch, target, w.SpeciesPopulationInPatch(patch, target)+pop) {
				c.anomaly("split", target, patch, "could not transfer %d individuals", pop)
				continue
			}
			c.report.Splits++
		}
	}

	// 7. Transient caches
	w.ClearPopulationCaches()

	return c.report, nil
}

func (c *committer) migrate(id world.SpeciesID, m Migration) {
	if !c.hasPatch(m.from) || !c.hasPatch(m.to) {
		c.anomaly("migration", id, m.to, "unknown patch in %s", m)
		return
	}

	src := c.w.SpeciesPopulationInPatch(m.from, id)
	moved := min(m.population, src)
	if moved <= 0 {
		c.anomaly("migration", id, m.from, "source empty for %s", m)
		return
	}
	if !c.w.UpdateSpeciesPopulation(m.from, id, src-moved) {
		c.anomaly("migration", id, m.from, "could not debit source for %s", m)
		return
	}

	dst := c.w.SpeciesPopulationInPatch(m.to, id)
	if !c.w.UpdateSpeciesPopulation(m.to, id, dst+moved) && !c.w.AddSpeciesToPatch(m.to, id, moved) {
		c.anomaly("migration", id, m.to, "could not credit destination for %s", m)
		return
	}
	c.report.Migrations++
}
