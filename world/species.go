// Package world holds the species, patches and patch map the auto-evo engine mutates.
package world

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/pthm-cable/autoevo/traits"
)

// SpeciesID is a stable species identifier. It never changes for the lifetime
// of a species, including across clones taken for history snapshots.
type SpeciesID uint32

// Properties holds the heritable numeric properties selection pressures score.
type Properties struct {
	BodySize             float64 // Scales individual energy cost
	OptimalTemperature   float64 // Preferred patch temperature (C)
	TemperatureTolerance float64 // Degrees from optimum before fitness reaches zero
	Speed                float64 // 0..1
	Aggression           float64 // 0..1, predation effectiveness
	Photosynthesis       float64 // 0..1, sunlight conversion efficiency
	Chemosynthesis       float64 // 0..1, chemical conversion efficiency
}

// Species is a population-level organism description.
type Species struct {
	ID         SpeciesID
	Name       string
	Traits     traits.Trait
	Properties Properties
	ParentID   SpeciesID // Zero for founders
	Generation int       // Generation the species appeared in
}

// NewSpecies creates a species.
func NewSpecies(id SpeciesID, name string, t traits.Trait, props Properties) *Species {
	return &Species{
		ID:         id,
		Name:       name,
		Traits:     t,
		Properties: props,
	}
}

// Clone returns an independent copy with the same ID.
func (s *Species) Clone() *Species {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// String formats the species as "Name (#id)".
func (s *Species) String() string {
	if s == nil {
		return "<nil species>"
	}
	return fmt.Sprintf("%s (#%d)", s.Name, s.ID)
}

// IndividualCost returns the energy one individual needs per generation.
func (s *Species) IndividualCost(base, armorFactor float64) float64 {
	cost := base * s.Properties.BodySize
	if s.Traits.Has(traits.Armored) && armorFactor > 0 {
		cost *= armorFactor
	}
	return cost
}

// Mutate returns a perturbed copy of the species. The copy keeps the ID of
// the original; callers assign a fresh ID when the mutant becomes a species.
// sigma is the relative standard deviation applied to each property.
func (s *Species) Mutate(rng *rand.Rand, sigma float64) *Species {
	m := s.Clone()
	p := &m.Properties

	scale := func(v, lo, hi float64) float64 {
		v *= 1 + rng.NormFloat64()*sigma
		return math.Max(lo, math.Min(hi, v))
	}

	p.BodySize = scale(p.BodySize, 0.1, 10)
	p.TemperatureTolerance = scale(p.TemperatureTolerance, 1, 60)
	p.Speed = scale(p.Speed+0.01, 0, 1)
	p.Aggression = scale(p.Aggression+0.01, 0, 1)
	p.Photosynthesis = scale(p.Photosynthesis, 0, 1)
	p.Chemosynthesis = scale(p.Chemosynthesis, 0, 1)
	p.OptimalTemperature += rng.NormFloat64() * sigma * 10

	// Rarely gain or lose a non energy-source trait
	if rng.Float64() < sigma {
		flip := traits.Trait(1) << rng.Intn(traits.Count())
		if !traits.EnergySourceTraits.Has(flip) {
			m.Traits = m.Traits.Toggle(flip)
		}
	}

	m.ParentID = s.ID
	return m
}

// DescendantName derives a name for a species split from parent.
func DescendantName(parent *Species, id SpeciesID) string {
	genus := parent.Name
	if i := strings.IndexByte(genus, ' '); i > 0 {
		genus = genus[:i]
	}
	return fmt.Sprintf("%s nova-%d", genus, id)
}
