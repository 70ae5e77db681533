package steps

import (
	"context"
	"maps"
	"slices"

	"github.com/pthm-cable/autoevo/ledger"
	"github.com/pthm-cable/autoevo/world"
)

// RemoveInvalidMigrations drops duplicate-target migrations and migrations
// touching split-off patches.
type RemoveInvalidMigrations struct {
	done bool
}

// NewRemoveInvalidMigrations creates the cleanup step.
func NewRemoveInvalidMigrations() *RemoveInvalidMigrations {
	return &RemoveInvalidMigrations{}
}

func (s *RemoveInvalidMigrations) Name() string             { return IDRemoveInvalidMigrations }
func (s *RemoveInvalidMigrations) CanRunConcurrently() bool { return false }

func (s *RemoveInvalidMigrations) TotalSteps() int {
	if s.done {
		return 0
	}
	return 1
}

func (s *RemoveInvalidMigrations) RunStep(ctx context.Context, results *ledger.RunResults) (bool, error) {
	for _, id := range results.SpeciesIDs() {
		results.RemoveDuplicateTargetPatchMigrations(id)
		results.RemoveMigrationsForSplitPatches(id)
	}
	s.done = true
	return true, nil
}

// KillLowPopulation removes species from patches where their resolved
// population falls below the viable minimum.
type KillLowPopulation struct {
	env  *Env
	done bool
}

// NewKillLowPopulation creates the step.
func NewKillLowPopulation(env *Env) *KillLowPopulation {
	return &KillLowPopulation{env: env}
}

func (s *KillLowPopulation) Name() string             { return IDKillLowPopulation }
func (s *KillLowPopulation) CanRunConcurrently() bool { return false }

func (s *KillLowPopulation) TotalSteps() int {
	if s.done {
		return 0
	}
	return 1
}

func (s *KillLowPopulation) RunStep(ctx context.Context, results *ledger.RunResults) (bool, error) {
	ac := s.env.Config.AutoEvo

	for _, sp := range results.Species() {
		natural, err := results.GetSpeciesPopulationsByPatch(sp.ID, false, false)
		if err != nil {
			return false, err
		}
		// Split-off patches stay in: their population moves to the new species
		resolved, err := results.GetSpeciesPopulationsByPatch(sp.ID, true, false)
		if err != nil {
			return false, err
		}

		patches := make(map[world.PatchID]bool, len(resolved)+len(natural))
		for patch := range resolved {
			patches[patch] = true
		}
		for patch := range natural {
			patches[patch] = true
		}

		for _, patch := range slices.Sorted(maps.Keys(patches)) {
			if resolved[patch] >= ac.MinViablePopulation {
				continue
			}
			if err := results.KillSpeciesInPatch(sp, patch, ac.RefundMigrations); err != nil {
				return false, err
			}
		}
	}
	s.done = true
	return true, nil
}
