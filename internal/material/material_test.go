package material

import "testing"

func TestSimpleTreeRoot(t *testing.T) {
	var tr Tree
	idx := tr.AddDiffuse(DefaultReflectance, 0)
	if tr.Root() != idx {
		t.Fatalf("expected root to be the last-appended node")
	}
}

func TestMixResolveDeterministicAtExtremes(t *testing.T) {
	var tr Tree
	a := tr.AddDiffuse([3]float32{1, 0, 0}, 0)
	b := tr.AddEmissive([3]float32{0, 1, 0}, 1)
	mix := tr.AddMix(a, b, 0.5)

	leaf, prob := tr.Resolve(mix, 0.0)
	if leaf.Kind != Emissive {
		t.Fatalf("u=0 should always resolve to the right (emissive) branch, got %v", leaf.Kind)
	}
	if prob <= 0 || prob > 1 {
		t.Fatalf("probability out of range: %f", prob)
	}

	leaf, _ = tr.Resolve(mix, 0.999999)
	if leaf.Kind != Diffuse {
		t.Fatalf("u close to 1 should resolve to the left (diffuse) branch, got %v", leaf.Kind)
	}
}

func TestMixResolveTerminatesOnNestedMix(t *testing.T) {
	var tr Tree
	a := tr.AddDiffuse(DefaultReflectance, 0)
	b := tr.AddGlossy(DefaultSpecularity, DefaultRoughness)
	inner := tr.AddMix(a, b, 0.3)
	c := tr.AddEmissive(DefaultRadiance, 1)
	outer := tr.AddMix(inner, c, 0.7)

	for _, u := range []float32{0, 0.1, 0.5, 0.9, 0.999} {
		leaf, prob := tr.Resolve(outer, u)
		if leaf.Kind == Mix {
			t.Fatalf("resolve must never return a Mix node itself")
		}
		if prob <= 0 {
			t.Fatalf("expected positive probability for u=%f", u)
		}
	}
}

func TestIsEmissivePropagatesThroughMix(t *testing.T) {
	var tr Tree
	a := tr.AddDiffuse(DefaultReflectance, 0)
	b := tr.AddEmissive(DefaultRadiance, 1)
	mix := tr.AddMix(a, b, 0.5)

	if !tr.IsEmissive(mix) {
		t.Fatalf("expected mix containing an emissive branch to be reported emissive")
	}
	nonEmissive := tr.AddMix(a, a, 0.5)
	if tr.IsEmissive(nonEmissive) {
		t.Fatalf("expected mix of two non-emissive branches to be non-emissive")
	}
}
