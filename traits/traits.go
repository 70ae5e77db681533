// Package traits defines species behaviors and characteristics used by selection pressures.
package traits

import "strings"

// Trait is a bitset of species behaviors.
type Trait uint32

const (
	// Energy source traits
	Photosynthetic Trait = 1 << iota // Gathers energy from sunlight
	Chemosynthetic                   // Gathers energy from dissolved chemicals
	Predator                         // Hunts other species

	// Behavior traits
	Motile // Can move between patches on its own

	// Defensive traits
	Armored // Resists predation
	Toxic   // Deters predators

	// Environmental traits
	ColdAdapted // Widens tolerance towards cold patches
	HeatAdapted // Widens tolerance towards hot patches
)

// traitNames is ordered to match the bit positions above.
var traitNames = []string{
	"photosynthetic",
	"chemosynthetic",
	"predator",
	"motile",
	"armored",
	"toxic",
	"cold_adapted",
	"heat_adapted",
}

// Has checks if a trait set contains a trait.
func (t Trait) Has(other Trait) bool {
	return t&other != 0
}

// Add adds a trait to the set.
func (t Trait) Add(other Trait) Trait {
	return t | other
}

// Remove removes a trait from the set.
func (t Trait) Remove(other Trait) Trait {
	return t &^ other
}

// Toggle flips a trait in the set.
func (t Trait) Toggle(other Trait) Trait {
	return t ^ other
}

// Names returns the names of all traits in the set, in bit order.
func (t Trait) Names() []string {
	var names []string
	for i, name := range traitNames {
		if t.Has(Trait(1) << i) {
			names = append(names, name)
		}
	}
	return names
}

// String joins the trait names with '|'.
func (t Trait) String() string {
	if t == 0 {
		return "none"
	}
	return strings.Join(t.Names(), "|")
}

// Parse converts trait names back into a set. Unknown names are ignored.
func Parse(names ...string) Trait {
	var t Trait
	for _, name := range names {
		for i, known := range traitNames {
			if strings.EqualFold(strings.TrimSpace(name), known) {
				t = t.Add(Trait(1) << i)
			}
		}
	}
	return t
}

// IsAutotroph checks if the species makes its own energy.
func IsAutotroph(t Trait) bool {
	return t.Has(Photosynthetic) || t.Has(Chemosynthetic)
}

// IsHeterotroph checks if the species relies on eating others.
func IsHeterotroph(t Trait) bool {
	return t.Has(Predator)
}

// Defended checks if a species has any anti-predator trait.
func Defended(t Trait) bool {
	return t.Has(Armored) || t.Has(Toxic)
}

// EnergySourceTraits are traits that decide where a species gets energy from.
var EnergySourceTraits = Photosynthetic | Chemosynthetic | Predator

// All is every defined trait.
var All = Photosynthetic | Chemosynthetic | Predator | Motile | Armored | Toxic | ColdAdapted | HeatAdapted

// Count returns the number of defined traits.
func Count() int {
	return len(traitNames)
}
