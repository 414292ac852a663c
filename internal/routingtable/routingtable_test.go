package routingtable

import (
	"chorddht/internal/domain"
	"testing"
)

func mustSpace(t *testing.T, bits int) domain.Space {
	t.Helper()
	sp, err := domain.NewSpace(bits)
	if err != nil {
		t.Fatalf("NewSpace(%d): %v", bits, err)
	}
	return sp
}

func TestNewStartsUnset(t *testing.T) {
	sp := mustSpace(t, 3)
	rt := New(sp.FromUint64(0), sp)

	if got := rt.GetSuccessor(); got != nil {
		t.Errorf("GetSuccessor() on fresh table = %v, want nil", got)
	}
	if got := rt.GetPredecessor(); got != nil {
		t.Errorf("GetPredecessor() on fresh table = %v, want nil", got)
	}
	if len(rt.FingerList()) != sp.Bits {
		t.Errorf("FingerList() length = %d, want %d", len(rt.FingerList()), sp.Bits)
	}
}

func TestInitSingleNode(t *testing.T) {
	sp := mustSpace(t, 3)
	self := sp.FromUint64(4)
	rt := New(self, sp)
	rt.InitSingleNode()

	if got := rt.GetSuccessor(); !got.Equal(self) {
		t.Errorf("GetSuccessor() = %s, want self %s", got, self)
	}
	if got := rt.GetPredecessor(); !got.Equal(self) {
		t.Errorf("GetPredecessor() = %s, want self %s", got, self)
	}
	for i, f := range rt.FingerList() {
		if !f.Equal(self) {
			t.Errorf("finger[%d] = %s, want self %s", i, f, self)
		}
	}
}

func TestSetGetSuccessorPredecessor(t *testing.T) {
	sp := mustSpace(t, 3)
	rt := New(sp.FromUint64(0), sp)

	succ := sp.FromUint64(2)
	rt.SetSuccessor(succ)
	if got := rt.GetSuccessor(); !got.Equal(succ) {
		t.Errorf("GetSuccessor() = %s, want %s", got, succ)
	}

	rt.SetPredecessor(nil)
	if got := rt.GetPredecessor(); got != nil {
		t.Errorf("GetPredecessor() after clearing = %v, want nil", got)
	}
}

func TestFingerOutOfRangeIsNoop(t *testing.T) {
	sp := mustSpace(t, 3)
	rt := New(sp.FromUint64(0), sp)

	if got := rt.GetFinger(sp.Bits); got != nil {
		t.Errorf("GetFinger(out of range) = %v, want nil", got)
	}
	rt.SetFinger(sp.Bits, sp.FromUint64(1)) // must not panic
}

func TestSetFingerListLengthMismatchIsNoop(t *testing.T) {
	sp := mustSpace(t, 3)
	rt := New(sp.FromUint64(0), sp)
	before := rt.FingerList()

	rt.SetFingerList([]domain.ID{sp.FromUint64(1)}) // wrong length

	after := rt.FingerList()
	for i := range before {
		if !equalIDs(before[i], after[i]) {
			t.Errorf("finger[%d] changed after mismatched SetFingerList", i)
		}
	}
}

func equalIDs(a, b domain.ID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}
