package graph

import "testing"

type fakeSource struct{ views []NodeView }

func (f fakeSource) Nodes() []NodeView { return f.views }

func TestExportEmitsAllEdgeKinds(t *testing.T) {
	src := fakeSource{views: []NodeView{
		{
			ID:            "0",
			SuccessorID:   "2",
			PredecessorID: "4",
			FingerIDs:     []string{"2", "4"},
			StoredKeys:    []StoredKey{{Key: "1", Name: "alpha"}},
		},
	}}

	edges := Export(src)

	var sawSucc, sawPred, sawFinger0, sawFinger1, sawStores bool
	for _, e := range edges {
		switch {
		case e.Role == RoleSuccessor:
			sawSucc = e.Target == "2"
		case e.Role == RolePredecessor:
			sawPred = e.Target == "4"
		case e.Role == "finger_0":
			sawFinger0 = e.Target == "2"
		case e.Role == "finger_1":
			sawFinger1 = e.Target == "4"
		case e.Role == RoleStores:
			sawStores = e.Key == "1" && e.Name == "alpha"
		}
	}
	if !sawSucc || !sawPred || !sawFinger0 || !sawFinger1 || !sawStores {
		t.Fatalf("Export missing expected edges, got %+v", edges)
	}
}

func TestExportOmitsAbsentPredecessorAndFingers(t *testing.T) {
	src := fakeSource{views: []NodeView{
		{ID: "0", SuccessorID: "2", FingerIDs: []string{"", "4"}},
	}}

	edges := Export(src)
	for _, e := range edges {
		if e.Role == RolePredecessor {
			t.Errorf("unexpected predecessor edge for node with no predecessor: %+v", e)
		}
		if e.Role == "finger_0" {
			t.Errorf("unexpected edge for unset finger[0]: %+v", e)
		}
	}
}

func TestExportDoesNotDeduplicate(t *testing.T) {
	// A finger pointing at the same id as the successor still produces
	// both a successor edge and a finger edge.
	src := fakeSource{views: []NodeView{
		{ID: "0", SuccessorID: "2", FingerIDs: []string{"2"}},
	}}
	edges := Export(src)
	if len(edges) != 2 {
		t.Fatalf("Export() = %d edges, want 2 (successor + finger_0)", len(edges))
	}
}
