// Package steps holds the simulation steps of the standard auto-evo pipeline.
package steps

import (
	"log/slog"
	"math/rand"
	"slices"
	"sync"

	"github.com/pthm-cable/autoevo/autoevo"
	"github.com/pthm-cable/autoevo/config"
	"github.com/pthm-cable/autoevo/miche"
	"github.com/pthm-cable/autoevo/simcache"
	"github.com/pthm-cable/autoevo/world"
)

// Step IDs.
const (
	IDMichePopulation         = "michePopulation"
	IDFindMigrations          = "findMigrations"
	IDModifySpecies           = "modifySpecies"
	IDRemoveInvalidMigrations = "removeInvalidMigrations"
	IDKillLowPopulation       = "killLowPopulation"
)

// WorldView is the read access steps need. Steps never write the world;
// their output goes to the ledger.
type WorldView interface {
	Patches() []*world.Patch
	Patch(id world.PatchID) (*world.Patch, bool)
	SpeciesInPatch(patch world.PatchID) []world.SpeciesPopulation
	AllSpecies() []*world.Species
	NewSpeciesID() world.SpeciesID
}

// Env is what every step of one run shares.
type Env struct {
	World      WorldView
	Config     *config.Config
	Cache      *simcache.Cache
	Miches     *Miches
	Rand       *rand.Rand // Only barrier steps may use it
	Generation int
	Logger     *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Miches is the set of niche trees built during a run, one per patch.
type Miches struct {
	mu    sync.Mutex
	trees map[world.PatchID]*miche.Tree
}

// NewMiches creates an empty set.
func NewMiches() *Miches {
	return &Miches{trees: make(map[world.PatchID]*miche.Tree)}
}

// Set stores the tree of a patch.
func (m *Miches) Set(patch world.PatchID, tree *miche.Tree) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trees[patch] = tree
}

// Get returns the tree of a patch.
func (m *Miches) Get(patch world.PatchID) (*miche.Tree, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trees[patch]
	return t, ok
}

// Snapshots captures every tree ordered by patch ID.
func (m *Miches) Snapshots() []miche.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]world.PatchID, 0, len(m.trees))
	for id := range m.trees {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]miche.Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.trees[id].Snapshot(id))
	}
	return out
}

// Default assembles the standard pipeline: one concurrent population step
// per patch, then the migration, speciation and cleanup barriers.
func Default(env *Env) []autoevo.Step {
	var out []autoevo.Step
	for _, p := range env.World.Patches() {
		out = append(out, NewMichePopulation(env, p))
	}
	out = append(out,
		NewFindMigrations(env),
		NewModifySpecies(env),
		NewRemoveInvalidMigrations(),
		NewKillLowPopulation(env),
	)
	return out
}
