package sparse

import (
	"testing"

	"github.com/prism-renderer/prism/internal/handle"
)

func TestAddGet(t *testing.T) {
	s := New[string]()
	h := s.Add("mesh-a")
	v, ok := s.Get(h)
	if !ok || v != "mesh-a" {
		t.Fatalf("expected to retrieve added value, got %q ok=%v", v, ok)
	}
}

func TestRemoveInvalidatesHandle(t *testing.T) {
	s := New[int]()
	h := s.Add(1)
	if !s.Remove(h) {
		t.Fatalf("expected removal to succeed")
	}
	if _, ok := s.Get(h); ok {
		t.Fatalf("expected stale handle to fail resolution after removal")
	}
}

func TestSlotReuseBumpsGeneration(t *testing.T) {
	s := New[int]()
	h1 := s.Add(1)
	s.Remove(h1)
	h2 := s.Add(2)

	if h1.Index() != h2.Index() {
		t.Fatalf("expected slot reuse to reuse the same index, got %d and %d", h1.Index(), h2.Index())
	}
	if h1.Generation() == h2.Generation() {
		t.Fatalf("expected generation to change on reuse")
	}
	if _, ok := s.Get(h1); ok {
		t.Fatalf("old handle must not resolve to the new occupant")
	}
	v, ok := s.Get(h2)
	if !ok || v != 2 {
		t.Fatalf("new handle should resolve to the new value, got %d ok=%v", v, ok)
	}
}

func TestLenTracksLiveCount(t *testing.T) {
	s := New[int]()
	h1 := s.Add(1)
	s.Add(2)
	if s.Len() != 2 {
		t.Fatalf("expected len 2, got %d", s.Len())
	}
	s.Remove(h1)
	if s.Len() != 1 {
		t.Fatalf("expected len 1 after removal, got %d", s.Len())
	}
}

func TestEachVisitsOnlyOccupiedSlots(t *testing.T) {
	s := New[int]()
	h1 := s.Add(10)
	s.Add(20)
	s.Remove(h1)

	seen := map[int]bool{}
	s.Each(func(h handle.Handle, v int) bool {
		seen[v] = true
		return true
	})
	if seen[10] {
		t.Fatalf("removed value should not be visited")
	}
	if !seen[20] {
		t.Fatalf("live value should be visited")
	}
}
