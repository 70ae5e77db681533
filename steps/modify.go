package steps

import (
	"context"
	"errors"
	"maps"
	"math"
	"slices"

	"github.com/pthm-cable/autoevo/ledger"
	"github.com/pthm-cable/autoevo/world"
)

// ModifySpecies tries mutants of one species per call. A mutant that
// out-competes its parent in some patches splits off there; one that wins
// everywhere replaces the parent's properties; one that only claims empty
// niches becomes a new species filling them.
type ModifySpecies struct {
	env     *Env
	pending []*world.Species

	// Mutants are trialled under IDs counting down from the top of the ID
	// space so rejected attempts never consume world IDs. Each trial ID is
	// used once, keeping memoized scores per mutant.
	nextTrialID world.SpeciesID
}

// NewModifySpecies creates the step over every species in the world.
func NewModifySpecies(env *Env) *ModifySpecies {
	return &ModifySpecies{env: env, pending: env.World.AllSpecies(), nextTrialID: math.MaxUint32}
}

func (s *ModifySpecies) Name() string             { return IDModifySpecies }
func (s *ModifySpecies) CanRunConcurrently() bool { return false }
func (s *ModifySpecies) TotalSteps() int          { return len(s.pending) }

func (s *ModifySpecies) RunStep(ctx context.Context, results *ledger.RunResults) (bool, error) {
	for len(s.pending) > 0 {
		sp := s.pending[0]
		s.pending = s.pending[1:]

		pops, err := results.GetSpeciesPopulationsByPatch(sp.ID, true, false)
		if errors.Is(err, ledger.ErrNoResult) {
			continue
		}
		if err != nil {
			return false, err
		}

		var global int64
		for _, pop := range pops {
			global += pop
		}
		if global < s.env.Config.AutoEvo.MinViablePopulation {
			continue
		}

		if err := s.modify(sp, pops, global, results); err != nil {
			return false, err
		}
		break
	}
	return len(s.pending) == 0, nil
}

// trial is the outcome of inserting a mutant into copies of the parent's trees.
type trial struct {
	candidate ledger.PossibleSpecies
	displaced []world.PatchID // Patches where the mutant took leaves from the parent
	filled    []world.PatchID // Patches where the mutant only took empty leaves
}

func (s *ModifySpecies) modify(sp *world.Species, pops map[world.PatchID]int64, global int64, results *ledger.RunResults) error {
	ac := s.env.Config.AutoEvo

	for attempt := 0; attempt < ac.MutationAttempts; attempt++ {
		mutant := sp.Mutate(s.env.Rand, ac.MutationSigma)
		mutant.ID = s.trialID()
		mutant.Generation = s.env.Generation

		candidate, err := ledger.NewPossibleSpecies(mutant, 0, sp)
		if err != nil {
			return err
		}
		t := s.trial(candidate, pops)

		switch {
		case len(t.displaced) > 0 && len(t.displaced) < len(pops):
			var share int64
			for _, patch := range t.displaced {
				share += pops[patch]
			}
			if float64(share) < ac.SplitPopulationShare*float64(global) {
				continue
			}
			s.adopt(t)
			return s.split(t, results)

		case len(t.displaced) > 0:
			// Wins everywhere: the species itself adapts
			mutated := mutant.Clone()
			mutated.ID = sp.ID
			mutated.Name = sp.Name
			mutated.ParentID = sp.ParentID
			mutated.Generation = sp.Generation
			s.env.logger().Debug("species_mutated", "species", sp.ID)
			return results.AddMutationResultForSpecies(sp, mutated)

		case len(t.filled) > 0:
			if !s.hasFounders(t, results) {
				continue
			}
			s.adopt(t)
			return s.fillNiche(t, results)
		}
	}
	return nil
}

func (s *ModifySpecies) trialID() world.SpeciesID {
	id := s.nextTrialID
	s.nextTrialID--
	return id
}

// adopt gives an accepted mutant its permanent world ID and name.
func (s *ModifySpecies) adopt(t trial) {
	mutant := t.candidate.Species
	mutant.ID = s.env.World.NewSpeciesID()
	mutant.Name = world.DescendantName(t.candidate.Parent, mutant.ID)
}

// founders returns how many individuals leave the parent's natural
// population of a patch to found a niche-filling species there.
func (s *ModifySpecies) founders(natural int64) int64 {
	return min(s.env.Config.AutoEvo.FillNichePopulation, natural/2)
}

func (s *ModifySpecies) hasFounders(t trial, results *ledger.RunResults) bool {
	natural, err := results.GetSpeciesPopulationsByPatch(t.candidate.Parent.ID, false, false)
	if err != nil {
		return false
	}
	for _, patch := range t.filled {
		if s.founders(natural[patch]) > 0 {
			return true
		}
	}
	return false
}

func (s *ModifySpecies) trial(candidate ledger.PossibleSpecies, pops map[world.PatchID]int64) trial {
	t := trial{candidate: candidate}
	parent := candidate.Parent.ID

	for _, patch := range slices.Sorted(maps.Keys(pops)) {
		tree, ok := s.env.Miches.Get(patch)
		if !ok {
			continue
		}
		before := len(tree.LeavesOccupiedBy(parent))
		trialTree := tree.DeepCopy()
		if !trialTree.InsertSpecies(candidate.Species, s.env.Cache, false) {
			continue
		}
		if len(trialTree.LeavesOccupiedBy(parent)) < before {
			t.displaced = append(t.displaced, patch)
		} else {
			t.filled = append(t.filled, patch)
		}
	}
	return t
}

func (s *ModifySpecies) split(t trial, results *ledger.RunResults) error {
	parent, mutant := t.candidate.Parent, t.candidate.Species
	if err := results.AddNewSpecies(mutant, nil, ledger.SplitDueToMutation, parent); err != nil {
		return err
	}
	if err := results.AddSplitResultForSpecies(parent, mutant, t.displaced); err != nil {
		return err
	}
	s.env.logger().Debug("species_split", "parent", parent.ID, "species", mutant.ID, "patches", t.displaced)
	return nil
}

// fillNiche founds the mutant in the filled patches. Founders only come out
// of the parent's natural population; patches it merely migrates into are
// skipped so migrations stay pure redistribution.
func (s *ModifySpecies) fillNiche(t trial, results *ledger.RunResults) error {
	parent, mutant := t.candidate.Parent, t.candidate.Species
	natural, err := results.GetSpeciesPopulationsByPatch(parent.ID, false, false)
	if err != nil {
		return err
	}

	starting := make(map[world.PatchID]int64, len(t.filled))
	for _, patch := range t.filled {
		pop := natural[patch]
		founders := s.founders(pop)
		if founders <= 0 {
			continue
		}
		starting[patch] = founders
		if err := results.AddPopulationResultForSpecies(parent, patch, pop-founders); err != nil {
			return err
		}
	}
	if len(starting) == 0 {
		return nil
	}

	if err := results.AddNewSpecies(mutant, starting, ledger.FillNiche, parent); err != nil {
		return err
	}
	s.env.logger().Debug("niche_filled", "parent", parent.ID, "species", mutant.ID, "patches", len(starting))
	return nil
}
