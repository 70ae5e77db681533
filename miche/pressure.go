// Package miche implements the niche tree that assigns species to ecological
// niches by scoring them against a stack of selection pressures.
//
// A tree is an arena of nodes addressed by NodeID. Every node wraps one
// Pressure; inner nodes refine the niche their ancestors describe and leaves
// may hold a single occupying species. Candidates are inserted from the root:
// a pressure that scores the candidate at or below zero prunes the branch, and
// at an occupied leaf the candidate replaces the occupant only if its relative
// advantage, accumulated over every pressure on the path, is positive.
package miche

import (
	"github.com/pthm-cable/autoevo/simcache"
	"github.com/pthm-cable/autoevo/world"
)

// Pressure is a pluggable scoring rule used to rank species for a niche.
// Implementations must be safe for concurrent use and must not change after
// construction; copied trees share them.
type Pressure interface {
	// Name is a human-readable description used in reports.
	Name() string

	// Score returns the fitness of candidate under this pressure.
	// A score at or below zero disqualifies the candidate.
	Score(candidate *world.Species, cache *simcache.Cache) float64

	// WeightedComparedScores returns the signed advantage of a species
	// scoring my over one scoring their.
	WeightedComparedScores(my, their float64) float64

	// Energy returns the energy this pressure makes available in a patch.
	Energy(patch *world.Patch) float64
}
