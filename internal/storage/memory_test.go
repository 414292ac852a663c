package storage

import (
	"chorddht/internal/domain"
	"chorddht/internal/logger"
	"errors"
	"testing"
)

func mustSpace(t *testing.T) domain.Space {
	t.Helper()
	sp, err := domain.NewSpace(4)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return sp
}

func TestPutGetDelete(t *testing.T) {
	sp := mustSpace(t)
	s := NewMemoryStorage(&logger.NopLogger{})

	key := sp.FromUint64(5)
	s.Put(domain.Resource{Key: key, Name: "alpha", Value: []byte("A")})

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "alpha" || string(got.Value) != "A" {
		t.Errorf("Get = %+v, want name=alpha value=A", got)
	}

	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(key); !errors.Is(err, domain.ErrResourceNotFound) {
		t.Errorf("Get after delete = %v, want ErrResourceNotFound", err)
	}
	if err := s.Delete(key); !errors.Is(err, domain.ErrResourceNotFound) {
		t.Errorf("Delete of absent key = %v, want ErrResourceNotFound", err)
	}
}

func TestPutOverwritesSameKey(t *testing.T) {
	sp := mustSpace(t)
	s := NewMemoryStorage(&logger.NopLogger{})
	key := sp.FromUint64(5)

	s.Put(domain.Resource{Key: key, Name: "alpha", Value: []byte("A")})
	s.Put(domain.Resource{Key: key, Name: "alpha", Value: []byte("A2")})

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Value) != "A2" {
		t.Errorf("Get after overwrite = %q, want %q", got.Value, "A2")
	}
	if len(s.All()) != 1 {
		t.Errorf("All() after overwrite has %d entries, want 1", len(s.All()))
	}
}

func TestBetweenWrapAround(t *testing.T) {
	sp := mustSpace(t)
	s := NewMemoryStorage(&logger.NopLogger{})
	for _, k := range []uint64{1, 5, 10, 14} {
		s.Put(domain.Resource{Key: sp.FromUint64(k), Name: "n", Value: []byte("v")})
	}

	// (12, 2] wraps: should contain 14 and 1, not 5 or 10.
	res, err := s.Between(sp.FromUint64(12), sp.FromUint64(2))
	if err != nil {
		t.Fatalf("Between: %v", err)
	}
	got := make(map[uint64]bool)
	for _, r := range res {
		got[r.Key.ToBigInt().Uint64()] = true
	}
	if !got[14] || !got[1] || got[5] || got[10] {
		t.Errorf("Between(12,2] = %v, want {1,14}", got)
	}
}

func TestAllReturnsIndependentCopy(t *testing.T) {
	sp := mustSpace(t)
	s := NewMemoryStorage(&logger.NopLogger{})
	s.Put(domain.Resource{Key: sp.FromUint64(1), Name: "a", Value: []byte("v")})

	all := s.All()
	all[0].Name = "mutated"

	fresh := s.All()
	if fresh[0].Name != "a" {
		t.Errorf("mutating All()'s result leaked into storage: got %q", fresh[0].Name)
	}
}
