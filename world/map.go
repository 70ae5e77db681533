package world

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/autoevo/components"
)

var (
	// ErrDuplicatePatch is returned when a patch ID is added twice.
	ErrDuplicatePatch = errors.New("world: duplicate patch")
	// ErrUnknownSpecies is returned for operations on unregistered species.
	ErrUnknownSpecies = errors.New("world: unknown species")
)

// SpeciesPopulation pairs a species with its population in one patch.
type SpeciesPopulation struct {
	Species    *Species
	Population int64
}

type memberKey struct {
	patch   PatchID
	species SpeciesID
}

// Map is the world: patches, registered species, and the populations of
// species in patches. Species-in-patch memberships are ECS entities.
//
// All methods are safe for concurrent use. Simulation steps read the map
// concurrently during a run; only the commit phase writes.
type Map struct {
	mu sync.Mutex

	patches    map[PatchID]*Patch
	patchOrder []PatchID
	species    map[SpeciesID]*Species
	nextID     atomic.Uint32

	world   *ecs.World
	members *ecs.Map2[components.Membership, components.Population]
	popMap  *ecs.Map1[components.Population]
	filter  *ecs.Filter2[components.Membership, components.Population]
	index   map[memberKey]ecs.Entity
}

// NewMap creates an empty world map.
func NewMap() *Map {
	w := ecs.NewWorld()
	m := &Map{
		patches: make(map[PatchID]*Patch),
		species: make(map[SpeciesID]*Species),
		world:   w,
		members: ecs.NewMap2[components.Membership, components.Population](w),
		popMap:  ecs.NewMap1[components.Population](w),
		filter:  ecs.NewFilter2[components.Membership, components.Population](w),
		index:   make(map[memberKey]ecs.Entity),
	}
	m.nextID.Store(1)
	return m
}

// AddPatch adds a patch to the map.
func (m *Map) AddPatch(p *Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.patches[p.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicatePatch, p.ID)
	}
	m.patches[p.ID] = p
	m.patchOrder = append(m.patchOrder, p.ID)
	return nil
}

// Patch looks up a patch by ID.
func (m *Map) Patch(id PatchID) (*Patch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.patches[id]
	return p, ok
}

// Patches returns all patches in insertion order.
func (m *Map) Patches() []*Patch {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Patch, 0, len(m.patchOrder))
	for _, id := range m.patchOrder {
		out = append(out, m.patches[id])
	}
	return out
}

// NewSpeciesID reserves a fresh species ID. Safe to call from concurrent steps.
func (m *Map) NewSpeciesID() SpeciesID {
	return SpeciesID(m.nextID.Add(1) - 1)
}

// RegisterSpecies adds a species to the world if it is not already known.
// Returns false if a species with the same ID was already registered.
func (m *Map) RegisterSpecies(sp *Species) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.species[sp.ID]; ok {
		return false
	}
	m.species[sp.ID] = sp

	// Keep ID allocation ahead of externally assigned IDs
	for {
		next := m.nextID.Load()
		if uint32(sp.ID) < next || m.nextID.CompareAndSwap(next, uint32(sp.ID)+1) {
			break
		}
	}
	return true
}

// Species looks up a registered species.
func (m *Map) Species(id SpeciesID) (*Species, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.species[id]
	return sp, ok
}

// AllSpecies returns all registered species ordered by ID.
func (m *Map) AllSpecies() []*Species {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Species, 0, len(m.species))
	for _, sp := range m.species {
		out = append(out, sp)
	}
	slices.SortFunc(out, func(a, b *Species) int { return int(a.ID) - int(b.ID) })
	return out
}

// UpdateSpeciesProperties applies mutated traits and properties to a registered species.
func (m *Map) UpdateSpeciesProperties(id SpeciesID, mutated *Species) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.species[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSpecies, id)
	}
	sp.Traits = mutated.Traits
	sp.Properties = mutated.Properties
	return nil
}

// SpeciesPopulationInPatch returns the simulation population of a species in
// a patch, or 0 if the species is absent there.
func (m *Map) SpeciesPopulationInPatch(patch PatchID, species SpeciesID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.index[memberKey{patch, species}]
	if !ok {
		return 0
	}
	return m.popMap.Get(e).Simulation
}

// HasSpeciesInPatch reports whether the species has a membership in the patch.
func (m *Map) HasSpeciesInPatch(patch PatchID, species SpeciesID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.index[memberKey{patch, species}]
	return ok
}

// SpeciesInPatch returns every species present in a patch ordered by species ID.
func (m *Map) SpeciesInPatch(patch PatchID) []SpeciesPopulation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []SpeciesPopulation
	query := m.filter.Query()
	for query.Next() {
		mem, pop := query.Get()
		if PatchID(mem.Patch) != patch {
			continue
		}
		sp, ok := m.species[SpeciesID(mem.Species)]
		if !ok {
			continue
		}
		out = append(out, SpeciesPopulation{Species: sp, Population: pop.Simulation})
	}
	slices.SortFunc(out, func(a, b SpeciesPopulation) int { return int(a.Species.ID) - int(b.Species.ID) })
	return out
}

// PatchesOf returns the per-patch populations of a species.
func (m *Map) PatchesOf(species SpeciesID) map[PatchID]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[PatchID]int64)
	query := m.filter.Query()
	for query.Next() {
		mem, pop := query.Get()
		if SpeciesID(mem.Species) == species {
			out[PatchID(mem.Patch)] = pop.Simulation
		}
	}
	return out
}

// GlobalPopulation sums the population of a species over all patches.
func (m *Map) GlobalPopulation(species SpeciesID) int64 {
	var total int64
	for _, pop := range m.PatchesOf(species) {
		total += pop
	}
	return total
}

// UpdateSpeciesPopulation sets the simulation population of a species already
// present in a patch. Returns false if there is no such membership or the
// population is negative.
func (m *Map) UpdateSpeciesPopulation(patch PatchID, species SpeciesID, population int64) bool {
	if population < 0 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.index[memberKey{patch, species}]
	if !ok {
		return false
	}
	m.popMap.Get(e).Simulation = population
	return true
}

// AddSpeciesToPatch creates a membership for a registered species in an
// existing patch. Returns false if the patch or species is unknown, the
// species is already present, or the population is negative.
func (m *Map) AddSpeciesToPatch(patch PatchID, species SpeciesID, population int64) bool {
	if population < 0 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.patches[patch]; !ok {
		return false
	}
	if _, ok := m.species[species]; !ok {
		return false
	}
	key := memberKey{patch, species}
	if _, ok := m.index[key]; ok {
		return false
	}

	e := m.members.NewEntity(
		&components.Membership{Patch: uint32(patch), Species: uint32(species)},
		&components.Population{Simulation: population},
	)
	m.index[key] = e
	return true
}

// RemoveSpeciesFromPatch deletes a membership. Returns false if absent.
func (m *Map) RemoveSpeciesFromPatch(patch PatchID, species SpeciesID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memberKey{patch, species}
	e, ok := m.index[key]
	if !ok {
		return false
	}
	m.world.RemoveEntity(e)
	delete(m.index, key)
	return true
}

// SetGameplayPopulation caches the population the player currently sees.
func (m *Map) SetGameplayPopulation(patch PatchID, species SpeciesID, population int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.index[memberKey{patch, species}]
	if !ok {
		return false
	}
	pop := m.popMap.Get(e)
	pop.Gameplay = population
	pop.HasGameplay = true
	return true
}

// GameplayPopulation returns the cached gameplay population if set.
func (m *Map) GameplayPopulation(patch PatchID, species SpeciesID) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.index[memberKey{patch, species}]
	if !ok {
		return 0, false
	}
	pop := m.popMap.Get(e)
	return pop.Gameplay, pop.HasGameplay
}

// ClearPopulationCaches drops every transient gameplay population.
func (m *Map) ClearPopulationCaches() {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := m.filter.Query()
	for query.Next() {
		_, pop := query.Get()
		pop.ClearGameplay()
	}
}

// MembershipCount returns the number of species-in-patch memberships.
func (m *Map) MembershipCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.index)
}

// RemoveExtinct drops memberships with zero population, then unregisters
// species left without any membership. Returns the removed species IDs.
func (m *Map) RemoveExtinct() []SpeciesID {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Collect first: entities cannot be removed while the query holds the world lock
	var dead []ecs.Entity
	var deadKeys []memberKey
	alive := make(map[SpeciesID]bool, len(m.species))

	query := m.filter.Query()
	for query.Next() {
		mem, pop := query.Get()
		if pop.Simulation <= 0 {
			dead = append(dead, query.Entity())
			deadKeys = append(deadKeys, memberKey{PatchID(mem.Patch), SpeciesID(mem.Species)})
			continue
		}
		alive[SpeciesID(mem.Species)] = true
	}

	for i, e := range dead {
		m.world.RemoveEntity(e)
		delete(m.index, deadKeys[i])
	}

	var removed []SpeciesID
	for id := range m.species {
		if !alive[id] {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(m.species, id)
	}
	slices.Sort(removed)
	return removed
}
