package ledger

import (
	"fmt"

	"github.com/pthm-cable/autoevo/world"
)

// Migration is a declared population transfer between two patches.
// The zero value moves nobody; use NewMigration to build one.
type Migration struct {
	from       world.PatchID
	to         world.PatchID
	population int64
}

// NewMigration creates a migration. Population must not be negative.
func NewMigration(from, to world.PatchID, population int64) (Migration, error) {
	if population < 0 {
		return Migration{}, fmt.Errorf("%w: migration %d->%d of %d", ErrNegativePopulation, from, to, population)
	}
	return Migration{from: from, to: to, population: population}, nil
}

// From returns the source patch.
func (m Migration) From() world.PatchID { return m.from }

// To returns the destination patch.
func (m Migration) To() world.PatchID { return m.to }

// Population returns the declared number of migrants.
func (m Migration) Population() int64 { return m.population }

func (m Migration) String() string {
	return fmt.Sprintf("%d->%d (%d)", m.from, m.to, m.population)
}

// PossibleSpecies is a tentative mutant that has not been committed to the
// world. It is only used while steps decide which mutations to keep.
type PossibleSpecies struct {
	Species           *world.Species
	InitialPopulation int64
	Parent            *world.Species
}

// NewPossibleSpecies validates and creates a tentative candidate.
func NewPossibleSpecies(sp *world.Species, initialPopulation int64, parent *world.Species) (PossibleSpecies, error) {
	if sp == nil || parent == nil {
		return PossibleSpecies{}, ErrNilSpecies
	}
	if initialPopulation < 0 {
		return PossibleSpecies{}, fmt.Errorf("%w: candidate %s of %d", ErrNegativePopulation, sp, initialPopulation)
	}
	return PossibleSpecies{Species: sp, InitialPopulation: initialPopulation, Parent: parent}, nil
}
