package handle

import "testing"

func TestZeroValueIsInvalid(t *testing.T) {
	var h Handle
	if h.Valid() {
		t.Fatalf("zero handle must be invalid")
	}
	if h != Invalid {
		t.Fatalf("zero value must equal Invalid")
	}
}

func TestRoundTripIndexGeneration(t *testing.T) {
	h := New(42, 7)
	if h.Index() != 42 {
		t.Fatalf("expected index 42, got %d", h.Index())
	}
	if h.Generation() != 7 {
		t.Fatalf("expected generation 7, got %d", h.Generation())
	}
	if !h.Valid() {
		t.Fatalf("expected non-zero handle to be valid")
	}
}

func TestDistinctGenerationsProduceDistinctHandles(t *testing.T) {
	a := New(1, 0)
	b := New(1, 1)
	if a == b {
		t.Fatalf("handles for the same slot but different generations must differ")
	}
}
