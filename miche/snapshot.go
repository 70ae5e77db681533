package miche

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/autoevo/world"
)

// SnapshotNode is a read-only view of one tree node.
type SnapshotNode struct {
	ID           NodeID          `json:"id"`
	Parent       NodeID          `json:"parent"`
	Pressure     string          `json:"pressure"`
	Children     []NodeID        `json:"children,omitempty"`
	Occupant     world.SpeciesID `json:"occupant,omitempty"`
	OccupantName string          `json:"occupant_name,omitempty"`
	// Path lists the pressures the occupant satisfies, root first.
	Path []string `json:"path,omitempty"`
}

// Snapshot is an immutable copy of a tree for inspection tooling.
type Snapshot struct {
	Patch world.PatchID  `json:"patch"`
	Nodes []SnapshotNode `json:"nodes"`
}

// Snapshot captures the tree for a patch.
func (t *Tree) Snapshot(patch world.PatchID) Snapshot {
	s := Snapshot{Patch: patch, Nodes: make([]SnapshotNode, len(t.nodes))}
	for i, n := range t.nodes {
		sn := SnapshotNode{
			ID:       NodeID(i),
			Parent:   n.parent,
			Pressure: n.pressure.Name(),
			Children: append([]NodeID(nil), n.children...),
		}
		if n.occupant != nil {
			sn.Occupant = n.occupant.ID
			sn.OccupantName = n.occupant.Name
			sn.Path = t.pressurePath(NodeID(i))
		}
		s.Nodes[i] = sn
	}
	return s
}

// pressurePath names the pressures from the root down to id.
func (t *Tree) pressurePath(id NodeID) []string {
	back := t.BackTraversal(id)
	path := make([]string, len(back))
	for i, n := range back {
		path[len(back)-1-i] = t.nodes[n].pressure.Name()
	}
	return path
}

// String renders the snapshot as an indented outline.
func (s Snapshot) String() string {
	if len(s.Nodes) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "patch %d\n", s.Patch)
	var walk func(id NodeID, depth int)
	walk = func(id NodeID, depth int) {
		n := s.Nodes[id]
		sb.WriteString(strings.Repeat("  ", depth+1))
		sb.WriteString(n.Pressure)
		if n.OccupantName != "" {
			fmt.Fprintf(&sb, " -> %s (#%d)", n.OccupantName, n.Occupant)
		}
		sb.WriteByte('\n')
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(0, 0)
	return sb.String()
}
