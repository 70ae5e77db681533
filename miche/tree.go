package miche

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/autoevo/simcache"
	"github.com/pthm-cable/autoevo/world"
)

// NodeID addresses a node within one tree. IDs are assigned at creation and
// never change, regardless of occupant or pressure.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

var (
	// ErrNoNode is returned when a NodeID does not exist in the tree.
	ErrNoNode = errors.New("miche: no such node")
	// ErrOccupiedParent is returned when adding a child to an occupied leaf.
	ErrOccupiedParent = errors.New("miche: cannot add child to occupied node")
)

type node struct {
	pressure Pressure
	parent   NodeID
	children []NodeID
	occupant *world.Species
}

// Tree is a niche tree. It is not safe for concurrent mutation; callers that
// share a tree between goroutines must serialize access.
type Tree struct {
	nodes []node
}

// NewTree creates a tree whose root applies the given pressure.
func NewTree(root Pressure) *Tree {
	return &Tree{nodes: []node{{pressure: root, parent: NoNode}}}
}

// Root returns the root node ID.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// AddChild appends a child applying p under parent.
func (t *Tree) AddChild(parent NodeID, p Pressure) (NodeID, error) {
	if !t.valid(parent) {
		return NoNode, fmt.Errorf("%w: %d", ErrNoNode, parent)
	}
	if t.nodes[parent].occupant != nil {
		return NoNode, fmt.Errorf("%w: %d", ErrOccupiedParent, parent)
	}
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{pressure: p, parent: parent})
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	return id, nil
}

// Pressure returns the pressure applied at a node, or nil for an unknown ID.
func (t *Tree) Pressure(id NodeID) Pressure {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].pressure
}

// Parent returns the parent of a node, or NoNode for the root and unknown IDs.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.valid(id) {
		return NoNode
	}
	return t.nodes[id].parent
}

// Children returns a copy of the child IDs of a node in insertion order.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	return append([]NodeID(nil), t.nodes[id].children...)
}

// Occupant returns the species occupying a node, or nil.
func (t *Tree) Occupant(id NodeID) *world.Species {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].occupant
}

// IsLeaf reports whether a node has no children.
func (t *Tree) IsLeaf(id NodeID) bool {
	return t.valid(id) && len(t.nodes[id].children) == 0
}

// InsertSpecies tries to place candidate in the tree, starting at the root.
// With dry set the tree is left untouched and only the outcome is reported.
func (t *Tree) InsertSpecies(candidate *world.Species, cache *simcache.Cache, dry bool) bool {
	if candidate == nil {
		return false
	}
	return t.insert(t.Root(), candidate, nil, cache, dry)
}

func (t *Tree) insert(id NodeID, candidate *world.Species, scoresSoFar map[world.SpeciesID]float64, cache *simcache.Cache, dry bool) bool {
	n := &t.nodes[id]

	myScore := n.pressure.Score(candidate, cache)
	if myScore <= 0 {
		return false
	}

	if len(n.children) == 0 && n.occupant == nil {
		if !dry {
			n.occupant = candidate
		}
		return true
	}

	// Running advantage of the candidate over each occupant in this subtree
	occupants := t.OccupantsOf(id)
	newScores := make(map[world.SpeciesID]float64, len(occupants))
	for _, occ := range occupants {
		relative := n.pressure.WeightedComparedScores(myScore, n.pressure.Score(occ, cache))
		newScores[occ.ID] = relative + scoresSoFar[occ.ID]
	}

	if n.occupant != nil {
		if newScores[n.occupant.ID] > 0 {
			if !dry {
				n.occupant = candidate
			}
			return true
		}
		return false
	}

	inserted := false
	for _, child := range n.children {
		if t.insert(child, candidate, newScores, cache, dry) {
			inserted = true
			if dry {
				return true
			}
		}
	}
	return inserted
}

// Occupants returns every occupant in the tree, one entry per occupied leaf.
func (t *Tree) Occupants() []*world.Species {
	return t.OccupantsOf(t.Root())
}

// OccupantsOf returns every occupant in the subtree rooted at id.
func (t *Tree) OccupantsOf(id NodeID) []*world.Species {
	var out []*world.Species
	for _, leaf := range t.LeafNodesOf(id) {
		if occ := t.nodes[leaf].occupant; occ != nil {
			out = append(out, occ)
		}
	}
	return out
}

// UniqueOccupants returns the distinct species occupying any leaf.
func (t *Tree) UniqueOccupants() []*world.Species {
	seen := make(map[world.SpeciesID]bool)
	var out []*world.Species
	for _, occ := range t.Occupants() {
		if !seen[occ.ID] {
			seen[occ.ID] = true
			out = append(out, occ)
		}
	}
	return out
}

// LeafNodes returns every leaf in the tree.
func (t *Tree) LeafNodes() []NodeID {
	return t.LeafNodesOf(t.Root())
}

// LeafNodesOf returns every leaf in the subtree rooted at id.
func (t *Tree) LeafNodesOf(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	var out []NodeID
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		children := t.nodes[cur].children
		if len(children) == 0 {
			out = append(out, cur)
			continue
		}
		// Push in reverse so leaves come out left to right
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}

// LeavesOccupiedBy returns the leaves held by a species.
func (t *Tree) LeavesOccupiedBy(species world.SpeciesID) []NodeID {
	var out []NodeID
	for _, leaf := range t.LeafNodes() {
		if occ := t.nodes[leaf].occupant; occ != nil && occ.ID == species {
			out = append(out, leaf)
		}
	}
	return out
}

// BackTraversal returns the path from id up to the root, id first.
func (t *Tree) BackTraversal(id NodeID) []NodeID {
	var out []NodeID
	for cur := id; t.valid(cur); cur = t.nodes[cur].parent {
		out = append(out, cur)
	}
	return out
}

// Evict clears every leaf held by a species. Returns the number of leaves freed.
func (t *Tree) Evict(species world.SpeciesID) int {
	freed := 0
	for i := range t.nodes {
		if occ := t.nodes[i].occupant; occ != nil && occ.ID == species {
			t.nodes[i].occupant = nil
			freed++
		}
	}
	return freed
}

// DeepCopy duplicates the tree structure and occupant references. Pressures
// are shared with the original.
func (t *Tree) DeepCopy() *Tree {
	c := &Tree{nodes: make([]node, len(t.nodes))}
	for i, n := range t.nodes {
		c.nodes[i] = node{
			pressure: n.pressure,
			parent:   n.parent,
			children: append([]NodeID(nil), n.children...),
			occupant: n.occupant,
		}
	}
	return c
}
