package steps

import (
	"context"
	"errors"
	"slices"

	"github.com/pthm-cable/autoevo/ledger"
	"github.com/pthm-cable/autoevo/world"
)

// FindMigrations proposes, one species per call, moves from crowded patches
// into adjacent patches whose niche tree would accept the species.
// It reads the trees MichePopulation built, so it runs as a barrier after it.
type FindMigrations struct {
	env     *Env
	pending []*world.Species
}

// NewFindMigrations creates the step over every species in the world.
func NewFindMigrations(env *Env) *FindMigrations {
	return &FindMigrations{env: env, pending: env.World.AllSpecies()}
}

func (s *FindMigrations) Name() string             { return IDFindMigrations }
func (s *FindMigrations) CanRunConcurrently() bool { return false }
func (s *FindMigrations) TotalSteps() int          { return len(s.pending) }

func (s *FindMigrations) RunStep(ctx context.Context, results *ledger.RunResults) (bool, error) {
	for len(s.pending) > 0 {
		sp := s.pending[0]
		s.pending = s.pending[1:]

		pops, err := results.GetSpeciesPopulationsByPatch(sp.ID, false, false)
		if errors.Is(err, ledger.ErrNoResult) {
			// Not present anywhere; skipping shrinks the step
			continue
		}
		if err != nil {
			return false, err
		}
		if err := s.proposeFor(sp, pops, results); err != nil {
			return false, err
		}
		break
	}
	return len(s.pending) == 0, nil
}

func (s *FindMigrations) proposeFor(sp *world.Species, pops map[world.PatchID]int64, results *ledger.RunResults) error {
	ac := s.env.Config.AutoEvo
	if ac.MaxMigrationsPerSpecies <= 0 || ac.MigrationFraction <= 0 {
		return nil
	}

	// Largest populations send migrants first
	sources := make([]world.PatchID, 0, len(pops))
	for patch, pop := range pops {
		if pop >= ac.MinMigrationPopulation {
			sources = append(sources, patch)
		}
	}
	slices.SortFunc(sources, func(a, b world.PatchID) int {
		if pops[a] != pops[b] {
			if pops[a] > pops[b] {
				return -1
			}
			return 1
		}
		return int(a) - int(b)
	})

	proposed := 0
	for _, from := range sources {
		patch, ok := s.env.World.Patch(from)
		if !ok {
			continue
		}
		targets := slices.Clone(patch.Adjacent)
		s.env.Rand.Shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })

		for _, to := range targets {
			if pops[to] > 0 {
				continue
			}
			tree, ok := s.env.Miches.Get(to)
			if !ok || !tree.InsertSpecies(sp, s.env.Cache, true) {
				continue
			}

			amount := int64(float64(pops[from]) * ac.MigrationFraction)
			m, err := ledger.NewMigration(from, to, amount)
			if err != nil {
				return err
			}
			if err := results.AddMigrationResultForSpecies(sp, m); err != nil {
				return err
			}
			s.env.logger().Debug("migration_proposed", "species", sp.ID, "from", from, "to", to, "population", amount)

			proposed++
			if proposed >= ac.MaxMigrationsPerSpecies {
				return nil
			}
		}
	}
	return nil
}
