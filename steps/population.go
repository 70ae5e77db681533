package steps

import (
	"context"
	"math"

	"github.com/pthm-cable/autoevo/ledger"
	"github.com/pthm-cable/autoevo/miche"
	"github.com/pthm-cable/autoevo/pressure"
	"github.com/pthm-cable/autoevo/world"
)

// MichePopulation builds the niche tree of one patch, inserts every species
// present, and converts the energy each species gathers into its population.
type MichePopulation struct {
	env   *Env
	patch *world.Patch
	done  bool
}

// NewMichePopulation creates the population step for a patch.
func NewMichePopulation(env *Env, patch *world.Patch) *MichePopulation {
	return &MichePopulation{env: env, patch: patch}
}

func (s *MichePopulation) Name() string             { return IDMichePopulation }
func (s *MichePopulation) CanRunConcurrently() bool { return true }

func (s *MichePopulation) TotalSteps() int {
	if s.done {
		return 0
	}
	return 1
}

func (s *MichePopulation) RunStep(ctx context.Context, results *ledger.RunResults) (bool, error) {
	cfg := s.env.Config
	present := s.env.World.SpeciesInPatch(s.patch.ID)

	tree := pressure.BuildTree(s.patch, cfg)
	for _, sp := range present {
		if err := results.RecordOldPopulation(sp.Species, s.patch.ID, sp.Population); err != nil {
			return false, err
		}
		tree.InsertSpecies(sp.Species, s.env.Cache, false)
	}

	gathered := distributeEnergy(tree, s.patch, s.env)

	for _, sp := range present {
		cost := sp.Species.IndividualCost(cfg.Energy.BaseIndividualCost, cfg.Energy.ArmorCostFactor)
		if err := results.AddTrackedEnergyConsumptionForSpecies(sp.Species, s.patch.ID, cost); err != nil {
			return false, err
		}

		total := 0.0
		for _, c := range gathered[sp.Species.ID] {
			total += c.Energy
			if err := results.AddTrackedEnergyForSpecies(sp.Species, s.patch.ID, c.Source, c.Fitness, c.Energy); err != nil {
				return false, err
			}
		}

		pop := int64(0)
		if cost > 0 {
			pop = int64(math.Floor(total / cost))
		}
		if err := results.AddPopulationResultForSpecies(sp.Species, s.patch.ID, pop); err != nil {
			return false, err
		}
	}

	s.env.Miches.Set(s.patch.ID, tree)
	s.done = true
	return true, nil
}

// distributeEnergy splits the energy of every pressure in the tree among the
// species occupying its subtree, in proportion to their fitness under it.
func distributeEnergy(tree *miche.Tree, patch *world.Patch, env *Env) map[world.SpeciesID][]ledger.EnergyContribution {
	out := make(map[world.SpeciesID][]ledger.EnergyContribution)

	for i := 0; i < tree.Len(); i++ {
		id := miche.NodeID(i)
		p := tree.Pressure(id)
		energy := p.Energy(patch)
		if energy <= 0 {
			continue
		}

		seen := make(map[world.SpeciesID]bool)
		var occupants []*world.Species
		for _, occ := range tree.OccupantsOf(id) {
			if !seen[occ.ID] {
				seen[occ.ID] = true
				occupants = append(occupants, occ)
			}
		}

		fitness := make([]float64, len(occupants))
		totalFitness := 0.0
		for j, occ := range occupants {
			fitness[j] = max(p.Score(occ, env.Cache), 0)
			totalFitness += fitness[j]
		}
		if totalFitness <= 0 {
			continue
		}

		for j, occ := range occupants {
			out[occ.ID] = append(out[occ.ID], ledger.EnergyContribution{
				Source:  p.Name(),
				Fitness: fitness[j],
				Energy:  energy * (fitness[j] / totalFitness),
			})
		}
	}
	return out
}
