// Package graph produces a read-only edge-list projection of a ring's
// topology, for external renderers. It depends only on the small
// Source interface below, not on internal/overlay, so it can be tested
// against a fake topology without pulling in the whole overlay.
package graph

import "fmt"

// Role labels the kind of relationship an Edge represents.
type Role string

const (
	RoleSuccessor   Role = "successor"
	RolePredecessor Role = "predecessor"
	RoleFinger      Role = "finger"
	RoleStores      Role = "stores"
)

// Edge is one (node, role, target) tuple. For RoleFinger, Index holds
// the finger index. For RoleStores, Target is empty and Key/Name
// describe the stored item instead.
type Edge struct {
	Node   string
	Role   Role
	Target string
	Index  int
	Key    string
	Name   string
}

// NodeView is the minimal read-only view Export needs of one node.
type NodeView struct {
	ID            string
	SuccessorID   string
	PredecessorID string // empty if absent
	FingerIDs     []string
	StoredKeys    []StoredKey
}

// StoredKey is one resource held locally by a node, as seen by Export.
type StoredKey struct {
	Key  string
	Name string
}

// Source supplies the node views Export walks. internal/overlay.Overlay
// implements this via a small adapter (see overlay/graph_io.go).
type Source interface {
	Nodes() []NodeView
}

// Export walks every node in src and emits its successor edge, its
// predecessor edge (if present), one finger_i edge per finger index,
// and one stores annotation per locally held key. Duplicates are not
// suppressed; a finger pointing at the successor produces both edges.
func Export(src Source) []Edge {
	var edges []Edge
	for _, n := range src.Nodes() {
		if n.SuccessorID != "" {
			edges = append(edges, Edge{Node: n.ID, Role: RoleSuccessor, Target: n.SuccessorID})
		}
		if n.PredecessorID != "" {
			edges = append(edges, Edge{Node: n.ID, Role: RolePredecessor, Target: n.PredecessorID})
		}
		for i, f := range n.FingerIDs {
			if f == "" {
				continue
			}
			edges = append(edges, Edge{
				Node:   n.ID,
				Role:   Role(fmt.Sprintf("%s_%d", RoleFinger, i)),
				Target: f,
				Index:  i,
			})
		}
		for _, sk := range n.StoredKeys {
			edges = append(edges, Edge{Node: n.ID, Role: RoleStores, Key: sk.Key, Name: sk.Name})
		}
	}
	return edges
}
