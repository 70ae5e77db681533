package miche

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/pthm-cable/autoevo/simcache"
	"github.com/pthm-cable/autoevo/world"
)

// fixedPressure scores species from a lookup table. Unknown species score def.
type fixedPressure struct {
	name   string
	scores map[world.SpeciesID]float64
	def    float64
	calls  int
}

func (p *fixedPressure) Name() string { return p.name }

func (p *fixedPressure) Score(sp *world.Species, _ *simcache.Cache) float64 {
	p.calls++
	if s, ok := p.scores[sp.ID]; ok {
		return s
	}
	return p.def
}

func (p *fixedPressure) WeightedComparedScores(my, their float64) float64 { return my - their }

func (p *fixedPressure) Energy(*world.Patch) float64 { return 0 }

func uniform(name string) *fixedPressure {
	return &fixedPressure{name: name, def: 1}
}

func sp(id world.SpeciesID) *world.Species {
	return world.NewSpecies(id, "s", 0, world.Properties{})
}

// checkLeafOccupancy verifies that only leaves hold occupants.
func checkLeafOccupancy(t *testing.T, tree *Tree) {
	t.Helper()
	for i := 0; i < tree.Len(); i++ {
		id := NodeID(i)
		if !tree.IsLeaf(id) && tree.Occupant(id) != nil {
			t.Fatalf("inner node %d holds occupant %v", id, tree.Occupant(id))
		}
	}
}

func countOccupiedLeaves(tree *Tree) int {
	n := 0
	for _, leaf := range tree.LeafNodes() {
		if tree.Occupant(leaf) != nil {
			n++
		}
	}
	return n
}

func TestInsertIntoEmptyLeaf(t *testing.T) {
	tree := NewTree(uniform("root"))
	a := sp(1)

	if !tree.InsertSpecies(a, nil, false) {
		t.Fatal("insert into empty leaf failed")
	}
	if tree.Occupant(tree.Root()) != a {
		t.Error("root leaf should hold the candidate")
	}
}

func TestPruneNonPositiveScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
	}{
		{"zero", 0},
		{"negative", -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := &fixedPressure{name: "root", def: tt.score}
			tree := NewTree(root)
			child := uniform("child")
			if _, err := tree.AddChild(tree.Root(), child); err != nil {
				t.Fatal(err)
			}

			if tree.InsertSpecies(sp(1), nil, false) {
				t.Error("candidate should be pruned at root")
			}
			if child.calls != 0 {
				t.Error("pruned branch should not be descended")
			}
			if len(tree.Occupants()) != 0 {
				t.Error("tree should stay empty")
			}
		})
	}
}

func TestLeafReplacement(t *testing.T) {
	tests := []struct {
		name        string
		candidate   float64
		occupant    float64
		wantReplace bool
	}{
		{"candidate better", 5, 2, true},
		{"candidate worse", 2, 5, false},
		{"tie keeps occupant", 3, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, c := sp(1), sp(2)
			p := &fixedPressure{name: "leaf", scores: map[world.SpeciesID]float64{1: tt.occupant, 2: tt.candidate}}
			tree := NewTree(p)
			tree.InsertSpecies(o, nil, false)

			got := tree.InsertSpecies(c, nil, false)
			if got != tt.wantReplace {
				t.Errorf("InsertSpecies = %v, want %v", got, tt.wantReplace)
			}
			want := o
			if tt.wantReplace {
				want = c
			}
			if tree.Occupant(tree.Root()) != want {
				t.Errorf("occupant = %v, want %v", tree.Occupant(tree.Root()), want)
			}
		})
	}
}

func TestAncestorScoresAccumulate(t *testing.T) {
	// Root favours the occupant by 3; the leaf favours the candidate by 2.
	// Net advantage is -1, so the occupant must stay.
	o, c := sp(1), sp(2)
	root := &fixedPressure{name: "root", scores: map[world.SpeciesID]float64{1: 4, 2: 1}}
	leaf := &fixedPressure{name: "leaf", scores: map[world.SpeciesID]float64{1: 1, 2: 3}}

	tree := NewTree(root)
	leafID, _ := tree.AddChild(tree.Root(), leaf)
	tree.InsertSpecies(o, nil, false)

	if tree.InsertSpecies(c, nil, false) {
		t.Error("candidate should lose on accumulated score")
	}
	if tree.Occupant(leafID) != o {
		t.Error("occupant should remain")
	}

	// Flip the leaf so the candidate wins by 5: net +2.
	leaf.scores[2] = 6
	if !tree.InsertSpecies(c, nil, false) {
		t.Error("candidate should win on accumulated score")
	}
	if tree.Occupant(leafID) != c {
		t.Error("candidate should occupy leaf")
	}
}

func TestInsertFillsAllAcceptingChildren(t *testing.T) {
	tree := NewTree(uniform("root"))
	for i := 0; i < 3; i++ {
		tree.AddChild(tree.Root(), uniform("child"))
	}
	a := sp(1)

	if !tree.InsertSpecies(a, nil, false) {
		t.Fatal("insert failed")
	}
	if got := len(tree.LeavesOccupiedBy(a.ID)); got != 3 {
		t.Errorf("occupied leaves = %d, want 3", got)
	}
	if got := len(tree.UniqueOccupants()); got != 1 {
		t.Errorf("unique occupants = %d, want 1", got)
	}
}

func TestDryInsertLeavesTreeUntouched(t *testing.T) {
	tree := NewTree(uniform("root"))
	tree.AddChild(tree.Root(), uniform("a"))
	tree.AddChild(tree.Root(), uniform("b"))

	if !tree.InsertSpecies(sp(1), nil, true) {
		t.Fatal("dry insert should report success")
	}
	if len(tree.Occupants()) != 0 {
		t.Error("dry insert mutated tree")
	}
}

func TestDryInsertShortCircuits(t *testing.T) {
	tree := NewTree(uniform("root"))
	first := uniform("first")
	second := uniform("second")
	tree.AddChild(tree.Root(), first)
	tree.AddChild(tree.Root(), second)

	tree.InsertSpecies(sp(1), nil, true)
	if second.calls != 0 {
		t.Error("dry insert should stop at first accepting child")
	}
}

func TestSameSpeciesDoesNotReplaceItself(t *testing.T) {
	tree := NewTree(uniform("root"))
	a := sp(1)
	tree.InsertSpecies(a, nil, false)
	if tree.InsertSpecies(a, nil, false) {
		t.Error("species has no advantage over itself")
	}
}

func TestAddChildErrors(t *testing.T) {
	tree := NewTree(uniform("root"))
	if _, err := tree.AddChild(42, uniform("x")); !errors.Is(err, ErrNoNode) {
		t.Errorf("expected ErrNoNode, got %v", err)
	}

	tree.InsertSpecies(sp(1), nil, false)
	if _, err := tree.AddChild(tree.Root(), uniform("x")); !errors.Is(err, ErrOccupiedParent) {
		t.Errorf("expected ErrOccupiedParent, got %v", err)
	}
}

func TestBackTraversal(t *testing.T) {
	tree := NewTree(uniform("root"))
	a, _ := tree.AddChild(tree.Root(), uniform("a"))
	b, _ := tree.AddChild(a, uniform("b"))

	got := tree.BackTraversal(b)
	want := []NodeID{b, a, tree.Root()}
	if len(got) != len(want) {
		t.Fatalf("BackTraversal = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("BackTraversal[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if tree.Parent(tree.Root()) != NoNode {
		t.Error("root parent should be NoNode")
	}
}

func TestDeepCopyIsIndependent(t *testing.T) {
	root := uniform("root")
	tree := NewTree(root)
	tree.AddChild(tree.Root(), uniform("a"))
	tree.InsertSpecies(sp(1), nil, false)

	cp := tree.DeepCopy()
	cp.Evict(1)
	cp.AddChild(cp.Root(), uniform("extra"))

	if len(tree.Occupants()) != 1 {
		t.Error("evicting from copy changed original")
	}
	if tree.Len() != 2 {
		t.Errorf("original len = %d, want 2", tree.Len())
	}
	if cp.Pressure(cp.Root()) != root {
		t.Error("copy should share pressures")
	}
}

func TestEvict(t *testing.T) {
	tree := NewTree(uniform("root"))
	tree.AddChild(tree.Root(), uniform("a"))
	tree.AddChild(tree.Root(), uniform("b"))
	tree.InsertSpecies(sp(1), nil, false)

	if got := tree.Evict(1); got != 2 {
		t.Errorf("Evict = %d, want 2", got)
	}
	if len(tree.Occupants()) != 0 {
		t.Error("tree should be empty after evict")
	}
}

// TestRandomTreesInvariants inserts random species into random trees and checks
// that only leaves are occupied and that occupant counts match occupied leaves.
func TestRandomTreesInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for trial := 0; trial < 50; trial++ {
		newPressure := func() Pressure {
			p := &fixedPressure{name: "p", scores: map[world.SpeciesID]float64{}}
			for id := world.SpeciesID(1); id <= 10; id++ {
				p.scores[id] = rng.Float64()*4 - 1
			}
			return p
		}

		tree := NewTree(newPressure())
		nodes := 1 + rng.Intn(12)
		for i := 0; i < nodes; i++ {
			parent := NodeID(rng.Intn(tree.Len()))
			if tree.Occupant(parent) != nil {
				continue
			}
			if _, err := tree.AddChild(parent, newPressure()); err != nil {
				t.Fatal(err)
			}
		}

		for id := world.SpeciesID(1); id <= 10; id++ {
			tree.InsertSpecies(sp(id), nil, rng.Intn(4) == 0)
			checkLeafOccupancy(t, tree)
		}

		if got, want := len(tree.Occupants()), countOccupiedLeaves(tree); got != want {
			t.Errorf("trial %d: occupants = %d, occupied leaves = %d", trial, got, want)
		}
	}
}

func TestSnapshot(t *testing.T) {
	tree := NewTree(uniform("root"))
	leaf, _ := tree.AddChild(tree.Root(), uniform("leaf"))
	a := world.NewSpecies(7, "Alpha", 0, world.Properties{})
	tree.InsertSpecies(a, nil, false)

	snap := tree.Snapshot(3)
	if snap.Patch != 3 || len(snap.Nodes) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Nodes[leaf].Occupant != 7 || snap.Nodes[leaf].OccupantName != "Alpha" {
		t.Errorf("leaf snapshot = %+v", snap.Nodes[leaf])
	}
	if path := snap.Nodes[leaf].Path; len(path) != 2 || path[0] != "root" || path[1] != "leaf" {
		t.Errorf("occupant path = %v, want [root leaf]", path)
	}
	if snap.Nodes[tree.Root()].Path != nil {
		t.Error("unoccupied node should have no path")
	}

	// Later changes must not leak into the snapshot
	tree.Evict(7)
	if snap.Nodes[leaf].Occupant != 7 {
		t.Error("snapshot aliased live tree")
	}

	out := snap.String()
	if out == "" {
		t.Error("empty rendering")
	}
}

func TestCacheUsedThrough(t *testing.T) {
	cache, _ := simcache.New(8)
	tree := NewTree(uniform("root"))
	if !tree.InsertSpecies(sp(1), cache, false) {
		t.Error("insert with cache failed")
	}
}
