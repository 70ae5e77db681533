package ledger

import "errors"

var (
	// ErrNegativePopulation is returned when a migration or candidate is built
	// with a negative population.
	ErrNegativePopulation = errors.New("ledger: negative population")
	// ErrNilSpecies is returned when an operation is given a nil species.
	ErrNilSpecies = errors.New("ledger: nil species")
	// ErrNoResult is returned when querying a species that has no ledger row.
	ErrNoResult = errors.New("ledger: no result for species")
	// ErrMissingSplitPatches is returned by ApplyResults when a split is
	// declared without the patches that moved to the new species.
	ErrMissingSplitPatches = errors.New("ledger: split declared without split-off patches")
	// ErrAlreadyApplied is returned by ApplyResults after the first commit.
	ErrAlreadyApplied = errors.New("ledger: results already applied")
	// ErrInvalidNewSpecies is returned when a new species is recorded without a creation kind.
	ErrInvalidNewSpecies = errors.New("ledger: new species requires a creation kind")
)
