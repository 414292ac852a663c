package overlay

import (
	"errors"
	"testing"
	"time"
)

// reverseCodec reverses bytes on Wrap and on Unwrap, so a round trip
// through Put/Get only matches the original value if the overlay
// actually threads stored values through the configured codec.
type reverseCodec struct{}

func (reverseCodec) Wrap(v []byte) ([]byte, error)   { return reverseBytes(v), nil }
func (reverseCodec) Unwrap(v []byte) ([]byte, error) { return reverseBytes(v), nil }

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

func TestCreateMinimalRing(t *testing.T) {
	// Scenario 1: m=3, ids {0,2,4}. H("alpha") lands on 5, which wraps
	// to node 0 as owner.
	ov, err := Create(Config{Bits: 3, InitialIDs: []uint64{0, 2, 4}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rep := ov.HealthCheck()
	if !rep.Clean() {
		t.Fatalf("HealthCheck after Create = %+v, want clean", rep)
	}

	placedOn, err := ov.Put("alpha", []byte("A"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if placedOn.ToBigInt().Uint64() != 0 {
		t.Errorf("Put(alpha) placed on %s, want node 0", placedOn)
	}

	val, err := ov.Lookup("alpha")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if string(val) != "A" {
		t.Errorf("Lookup(alpha) = %q, want %q", val, "A")
	}
}

func TestCreateRejectsBadConfig(t *testing.T) {
	if _, err := Create(Config{Bits: 0}); err == nil {
		t.Errorf("Create(Bits: 0): expected error")
	}
	if _, err := Create(Config{Bits: 33}); err == nil {
		t.Errorf("Create(Bits: 33): expected error")
	}
	if _, err := Create(Config{Bits: 3, InitialIDs: []uint64{8}}); !errors.Is(err, ErrIdOutOfRange) {
		t.Errorf("Create with out-of-range id: got %v, want ErrIdOutOfRange", err)
	}
	if _, err := Create(Config{Bits: 3, InitialIDs: []uint64{1, 1}}); !errors.Is(err, ErrIdConflict) {
		t.Errorf("Create with duplicate ids: got %v, want ErrIdConflict", err)
	}
}

func TestInsertNodeIntoEmptyOverlay(t *testing.T) {
	ov, err := Create(Config{Bits: 4})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ov.NodeCount() != 0 {
		t.Fatalf("NodeCount() on Empty overlay = %d, want 0", ov.NodeCount())
	}
	if err := ov.InsertNode(3); err != nil {
		t.Fatalf("InsertNode: %v", err)
	}
	if ov.NodeCount() != 1 {
		t.Errorf("NodeCount() after first insert = %d, want 1", ov.NodeCount())
	}
}

func TestInsertNodeRejectsConflictAndOutOfRange(t *testing.T) {
	// Scenario 6: m=4, create with {0,5,10}, insert_node(5) -> IdConflict,
	// overlay unchanged.
	ov, err := Create(Config{Bits: 4, InitialIDs: []uint64{0, 5, 10}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	before, err := ov.Snapshot(time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if err := ov.InsertNode(5); !errors.Is(err, ErrIdConflict) {
		t.Errorf("InsertNode(5): got %v, want ErrIdConflict", err)
	}
	if err := ov.InsertNode(16); !errors.Is(err, ErrIdOutOfRange) {
		t.Errorf("InsertNode(16) in a 4-bit space: got %v, want ErrIdOutOfRange", err)
	}

	after, err := ov.Snapshot(time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(before.Nodes) != len(after.Nodes) {
		t.Errorf("overlay mutated by rejected InsertNode: before had %d nodes, after has %d", len(before.Nodes), len(after.Nodes))
	}
}

func TestRemoveNodeRejectsLastNodeAndMissingID(t *testing.T) {
	ov, err := Create(Config{Bits: 3, InitialIDs: []uint64{0}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ov.RemoveNode(0); !errors.Is(err, ErrLastNodeRemoval) {
		t.Errorf("RemoveNode(only node): got %v, want ErrLastNodeRemoval", err)
	}
	if err := ov.RemoveNode(4); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("RemoveNode(absent id): got %v, want ErrNodeNotFound", err)
	}
}

// scenarioNames are chosen so that, under domain.Space.HashName (top 3
// bits of SHA-1's first byte, for a 3-bit space), they hash to exactly
// 1, 3, 5, and 7 — the key values named in the join/leave migration
// scenarios. Verified offline against the SHA-1 digests of the names;
// a change to HashName's bit selection would need these regenerated.
var scenarioNames = map[uint64]string{
	1: "item27",
	3: "item0",
	5: "item6",
	7: "item9",
}

// nodeNames returns the names of every resource currently stored
// on the live node with the given id.
func (o *Overlay) nodeNames(t *testing.T, id uint64) []string {
	t.Helper()
	n, ok := o.nodes[o.space.FromUint64(id).String()]
	if !ok {
		t.Fatalf("node %d not found", id)
	}
	var names []string
	for _, res := range n.Store().All() {
		names = append(names, res.Name)
	}
	return names
}

func assertNames(t *testing.T, label string, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s: got names %v, want %v", label, got, want)
		return
	}
	seen := make(map[string]bool, len(got))
	for _, n := range got {
		seen[n] = true
	}
	for _, w := range want {
		if !seen[w] {
			t.Errorf("%s: got names %v, want %v", label, got, want)
			return
		}
	}
}

func TestJoinMigratesKeys(t *testing.T) {
	// Scenario 2: m=3, start ids {0,4}; names hash to 1,3,5,7 (see
	// scenarioNames). Key 1 and 3 fall in node 4's range (0,4]; key 5
	// and 7 fall in node 0's range (4,0] (wrapping) — confirmed by the
	// same (pred, id] rule scenario 1 exercises for H("alpha")=5 on
	// ids {0,2,4}.
	ov, err := Create(Config{Bits: 3, InitialIDs: []uint64{0, 4}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	values := map[uint64]string{1: "v1", 3: "v3", 5: "v5", 7: "v7"}
	wantOwnerBeforeInsert := map[uint64]uint64{1: 4, 3: 4, 5: 0, 7: 0}
	for key, value := range values {
		owner, err := ov.Put(scenarioNames[key], []byte(value))
		if err != nil {
			t.Fatalf("Put(%s): %v", scenarioNames[key], err)
		}
		if got := owner.ToBigInt().Uint64(); got != wantOwnerBeforeInsert[key] {
			t.Errorf("Put(%s) placed on node %d, want node %d", scenarioNames[key], got, wantOwnerBeforeInsert[key])
		}
	}
	assertNames(t, "node 4 before insert", ov.nodeNames(t, 4), "item27", "item0")
	assertNames(t, "node 0 before insert", ov.nodeNames(t, 0), "item6", "item9")

	if err := ov.InsertNode(2); err != nil {
		t.Fatalf("InsertNode(2): %v", err)
	}
	if err := ov.Rebalance(); err != nil {
		t.Fatalf("Rebalance: %v", err)
	}

	// Key 1 (in (0,2]) moves from node 4 to the new node 2; key 3
	// stays with node 4 ((2,4]); node 0's range is untouched by an
	// insert between 0 and 4.
	assertNames(t, "node 2 after join", ov.nodeNames(t, 2), "item27")
	assertNames(t, "node 4 after join", ov.nodeNames(t, 4), "item0")
	assertNames(t, "node 0 after join", ov.nodeNames(t, 0), "item6", "item9")

	for key, value := range values {
		got, err := ov.Lookup(scenarioNames[key])
		if err != nil {
			t.Fatalf("Lookup(%s) after join: %v", scenarioNames[key], err)
		}
		if string(got) != value {
			t.Errorf("Lookup(%s) after join = %q, want %q", scenarioNames[key], got, value)
		}
	}

	rep := ov.HealthCheck()
	if !rep.Clean() {
		t.Errorf("HealthCheck after join = %+v, want clean", rep)
	}
}

func TestLeaveMigratesKeys(t *testing.T) {
	// Scenario 3: continues scenario 2, then removes node 2.
	ov, err := Create(Config{Bits: 3, InitialIDs: []uint64{0, 4}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	values := map[uint64]string{1: "v1", 3: "v3", 5: "v5", 7: "v7"}
	for key, value := range values {
		if _, err := ov.Put(scenarioNames[key], []byte(value)); err != nil {
			t.Fatalf("Put(%s): %v", scenarioNames[key], err)
		}
	}
	if err := ov.InsertNode(2); err != nil {
		t.Fatalf("InsertNode(2): %v", err)
	}
	if err := ov.Rebalance(); err != nil {
		t.Fatalf("Rebalance: %v", err)
	}

	if err := ov.RemoveNode(2); err != nil {
		t.Fatalf("RemoveNode(2): %v", err)
	}
	if err := ov.Rebalance(); err != nil {
		t.Fatalf("Rebalance after remove: %v", err)
	}

	// Node 2's sole key (item27, key 1) transfers to its successor,
	// node 4, which already holds key 3 (item0); node 0 is untouched,
	// restoring the exact pre-insert distribution from scenario 2.
	assertNames(t, "node 4 after leave", ov.nodeNames(t, 4), "item27", "item0")
	assertNames(t, "node 0 after leave", ov.nodeNames(t, 0), "item6", "item9")

	for key, value := range values {
		got, err := ov.Lookup(scenarioNames[key])
		if err != nil {
			t.Fatalf("Lookup(%s) after leave: %v", scenarioNames[key], err)
		}
		if string(got) != value {
			t.Errorf("Lookup(%s) after leave = %q, want %q", scenarioNames[key], got, value)
		}
	}
	if ov.NodeCount() != 2 {
		t.Errorf("NodeCount() after leave = %d, want 2", ov.NodeCount())
	}
}

func TestHopBound(t *testing.T) {
	// Scenario 4 (scaled down for test speed): m=6, a full 32-node ring.
	ids := make([]uint64, 32)
	for i := range ids {
		ids[i] = uint64(i)
	}
	ov, err := Create(Config{Bits: 6, InitialIDs: ids})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	names := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		name := "name-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		names = append(names, name)
		if _, err := ov.Put(name, []byte("v")); err != nil {
			t.Fatalf("Put(%s): %v", name, err)
		}
	}

	entry, ok := ov.entryPoint()
	if !ok {
		t.Fatalf("entryPoint: no live node")
	}
	for _, name := range names {
		key := ov.space.HashName(name)
		_, hops, err := entry.FindSuccessor(key)
		if err != nil {
			t.Fatalf("FindSuccessor(%s): %v", name, err)
		}
		if hops > ov.space.Bits {
			t.Errorf("FindSuccessor(%s) took %d hops, want <= %d", name, hops, ov.space.Bits)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ov, err := Create(Config{Bits: 4, InitialIDs: []uint64{0, 3, 7, 11}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		if _, err := ov.Put(name, []byte{byte(i)}); err != nil {
			t.Fatalf("Put(%s): %v", name, err)
		}
	}

	doc, err := ov.Snapshot(time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored, err := Create(Config{Bits: 4})
	if err != nil {
		t.Fatalf("Create(restore target): %v", err)
	}
	if err := restored.Restore(doc); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	rep := restored.HealthCheck()
	if !rep.Clean() {
		t.Fatalf("HealthCheck after restore = %+v, want clean", rep)
	}
	if restored.NodeCount() != ov.NodeCount() {
		t.Errorf("restored NodeCount() = %d, want %d", restored.NodeCount(), ov.NodeCount())
	}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		if _, err := restored.Lookup(name); err != nil {
			t.Errorf("Lookup(%s) after restore: %v", name, err)
		}
	}
}

func TestRestoreRejectsVersionMismatch(t *testing.T) {
	ov, err := Create(Config{Bits: 3, InitialIDs: []uint64{0}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	doc, err := ov.Snapshot(time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	doc.Version = 2
	if err := ov.Restore(doc); !errors.Is(err, ErrSnapshotVersionMismatch) {
		t.Errorf("Restore(bad version): got %v, want ErrSnapshotVersionMismatch", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	ov, err := Create(Config{Bits: 3, InitialIDs: []uint64{0, 4}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ov.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing): got %v, want ErrNotFound", err)
	}

	if _, err := ov.Put("present", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ov.Delete("present"); err != nil {
		t.Fatalf("Delete(present): %v", err)
	}
	if _, err := ov.Lookup("present"); err == nil {
		t.Errorf("Lookup(present) after delete: expected error")
	}
}

func TestLookupNotFound(t *testing.T) {
	ov, err := Create(Config{Bits: 3, InitialIDs: []uint64{0, 4}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := ov.Lookup("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(missing): got %v, want ErrNotFound", err)
	}
}

func TestCodecWrapsAndUnwrapsStoredValues(t *testing.T) {
	ov, err := Create(Config{Bits: 3, InitialIDs: []uint64{0, 4}, Codec: reverseCodec{}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := ov.Put("name", []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := ov.Lookup("name")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Lookup after codec round trip = %q, want %q", got, "hello")
	}
}

// TestSnapshotRestoreWithCodecDoesNotDoubleWrap guards against
// Restore routing already-wrapped bytes back through codec.Wrap a
// second time: Snapshot captures Store().All(), which already holds
// codec-wrapped values, so Restore must write them back verbatim.
func TestSnapshotRestoreWithCodecDoesNotDoubleWrap(t *testing.T) {
	ov, err := Create(Config{Bits: 3, InitialIDs: []uint64{0, 4}, Codec: reverseCodec{}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := ov.Put("name", []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	doc, err := ov.Snapshot(time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored, err := Create(Config{Bits: 3, Codec: reverseCodec{}})
	if err != nil {
		t.Fatalf("Create(restore target): %v", err)
	}
	if err := restored.Restore(doc); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := restored.Lookup("name")
	if err != nil {
		t.Fatalf("Lookup after restore: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Lookup after restore with codec = %q, want %q (double-wrapped if reversed twice)", got, "hello")
	}

	rep := restored.HealthCheck()
	if !rep.Clean() {
		t.Errorf("HealthCheck after codec restore = %+v, want clean", rep)
	}
}

func TestRebalanceConvergesOnQuiescentRing(t *testing.T) {
	ov, err := Create(Config{Bits: 4, InitialIDs: []uint64{0, 4, 8, 12}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ov.Rebalance(); err != nil {
		t.Errorf("Rebalance on an already-quiescent ring: %v", err)
	}
}
