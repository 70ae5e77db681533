// Package pressure provides the concrete selection pressures niche trees are built from.
package pressure

import (
	"math"

	"github.com/pthm-cable/autoevo/config"
	"github.com/pthm-cable/autoevo/miche"
	"github.com/pthm-cable/autoevo/simcache"
	"github.com/pthm-cable/autoevo/traits"
	"github.com/pthm-cable/autoevo/world"
)

// base holds what every patch-bound pressure shares.
type base struct {
	kind     string
	patch    *world.Patch
	strength float64
}

func (b base) Name() string { return b.kind }

func (b base) WeightedComparedScores(my, their float64) float64 {
	return (my - their) * b.strength
}

func (b base) score(sp *world.Species, cache *simcache.Cache, compute func() float64) float64 {
	key := simcache.Key{Pressure: b.kind, Patch: uint32(b.patch.ID), Species: uint32(sp.ID)}
	return cache.GetOrCompute(key, compute)
}

// Root admits every species and contributes nothing to competition.
type Root struct{ base }

// NewRoot creates the root pressure for a patch.
func NewRoot(patch *world.Patch) *Root {
	return &Root{base{kind: "Root", patch: patch}}
}

func (*Root) Score(*world.Species, *simcache.Cache) float64 { return 1 }

func (*Root) WeightedComparedScores(float64, float64) float64 { return 0 }

func (*Root) Energy(*world.Patch) float64 { return 0 }

// Temperature scores how close a patch is to a species' preferred temperature.
type Temperature struct{ base }

// NewTemperature creates a temperature pressure.
func NewTemperature(patch *world.Patch, strength float64) *Temperature {
	return &Temperature{base{kind: "Temperature", patch: patch, strength: strength}}
}

// Score falls linearly from 1 at the optimum to 0 at the tolerance edge.
// Cold and heat adaptation widen the tolerance on their side by half.
func (t *Temperature) Score(sp *world.Species, cache *simcache.Cache) float64 {
	return t.score(sp, cache, func() float64 {
		p := sp.Properties
		diff := t.patch.Temperature - p.OptimalTemperature
		tol := p.TemperatureTolerance
		switch {
		case diff < 0 && sp.Traits.Has(traits.ColdAdapted):
			tol *= 1.5
		case diff > 0 && sp.Traits.Has(traits.HeatAdapted):
			tol *= 1.5
		}
		if tol <= 0 {
			return 0
		}
		return math.Max(0, 1-math.Abs(diff)/tol)
	})
}

func (*Temperature) Energy(*world.Patch) float64 { return 0 }

// Sunlight rewards photosynthesis.
type Sunlight struct {
	base
	energy float64
}

// NewSunlight creates a sunlight pressure. energy is the total energy at full sunlight.
func NewSunlight(patch *world.Patch, strength, energy float64) *Sunlight {
	return &Sunlight{base: base{kind: "Sunlight", patch: patch, strength: strength}, energy: energy}
}

func (s *Sunlight) Score(sp *world.Species, cache *simcache.Cache) float64 {
	return s.score(sp, cache, func() float64 {
		if !sp.Traits.Has(traits.Photosynthetic) {
			return 0
		}
		return sp.Properties.Photosynthesis * s.patch.Sunlight
	})
}

func (s *Sunlight) Energy(patch *world.Patch) float64 {
	return s.energy * patch.Sunlight
}

// Chemicals rewards chemosynthesis.
type Chemicals struct {
	base
	energy float64
}

// NewChemicals creates a chemical energy pressure.
func NewChemicals(patch *world.Patch, strength, energy float64) *Chemicals {
	return &Chemicals{base: base{kind: "Chemicals", patch: patch, strength: strength}, energy: energy}
}

func (c *Chemicals) Score(sp *world.Species, cache *simcache.Cache) float64 {
	return c.score(sp, cache, func() float64 {
		if !sp.Traits.Has(traits.Chemosynthetic) {
			return 0
		}
		return sp.Properties.Chemosynthesis * c.patch.Chemicals
	})
}

func (c *Chemicals) Energy(patch *world.Patch) float64 {
	return c.energy * patch.Chemicals
}

// Predation rewards hunting ability. Available energy stands in for prey
// biomass and grows with the primary productivity of the patch.
type Predation struct {
	base
	energy float64
}

// NewPredation creates a predation pressure.
func NewPredation(patch *world.Patch, strength, energy float64) *Predation {
	return &Predation{base: base{kind: "Predation", patch: patch, strength: strength}, energy: energy}
}

func (p *Predation) Score(sp *world.Species, cache *simcache.Cache) float64 {
	return p.score(sp, cache, func() float64 {
		if !sp.Traits.Has(traits.Predator) {
			return 0
		}
		s := sp.Properties.Aggression * (0.5 + 0.5*sp.Properties.Speed)
		if sp.Traits.Has(traits.Motile) {
			s *= 1.2
		}
		return s
	})
}

func (p *Predation) Energy(patch *world.Patch) float64 {
	return p.energy * (patch.Sunlight + patch.Chemicals) / 2
}

// BuildTree assembles the niche tree for a patch:
//
//	Root
//	└── Temperature
//	    ├── Sunlight
//	    ├── Chemicals
//	    └── Predation
func BuildTree(patch *world.Patch, cfg *config.Config) *miche.Tree {
	ps, en := cfg.Pressures, cfg.Energy

	tree := miche.NewTree(NewRoot(patch))
	temp, _ := tree.AddChild(tree.Root(), NewTemperature(patch, ps.Temperature))
	tree.AddChild(temp, NewSunlight(patch, ps.Sunlight, en.SunlightEnergy))
	tree.AddChild(temp, NewChemicals(patch, ps.Chemicals, en.ChemicalEnergy))
	tree.AddChild(temp, NewPredation(patch, ps.Predation, en.PredationEnergy))
	return tree
}
