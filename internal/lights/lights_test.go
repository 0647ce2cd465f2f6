package lights

import (
	"testing"

	"github.com/prism-renderer/prism/internal/vecmath"
)

func TestSampleDistributesByPower(t *testing.T) {
	tbl := New()
	tbl.Add(Light{Kind: Sphere, Radiance: vecmath.Vec3{10, 10, 10}, Radius: 1})
	tbl.Add(Light{Kind: Sphere, Radiance: vecmath.Vec3{0.01, 0.01, 0.01}, Radius: 1})

	counts := [2]int{}
	for i := 0; i < 1000; i++ {
		u := float32(i) / 1000
		idx, pmf, ok := tbl.Sample(u)
		if !ok {
			t.Fatalf("expected valid sample")
		}
		if pmf <= 0 {
			t.Fatalf("expected positive pmf")
		}
		counts[idx]++
	}
	if counts[0] < counts[1] {
		t.Fatalf("expected the brighter light to be selected more often: %v", counts)
	}
}

func TestPMFRecomputedAfterEdit(t *testing.T) {
	tbl := New()
	tbl.Add(Light{Kind: Sphere, Radiance: vecmath.Vec3{1, 1, 1}, Radius: 1})
	p1 := tbl.PMF(0)
	tbl.Add(Light{Kind: Sphere, Radiance: vecmath.Vec3{1, 1, 1}, Radius: 1})
	p2 := tbl.PMF(0)
	if p1 == p2 {
		t.Fatalf("expected PMF to change after a table edit, got %f both times", p1)
	}
}

func TestSamplePointDirectionalIsInfiniteDistance(t *testing.T) {
	l := Light{Kind: Directional, Direction: vecmath.Vec3{0, -1, 0}, Radiance: vecmath.Vec3{1, 1, 1}}
	res := SamplePoint(l, vecmath.Vec3{0, 0, 0}, 0, 0)
	if res.Direction.Dot(vecmath.Vec3{0, 1, 0}) < 0.99 {
		t.Fatalf("expected directional light sample to point opposite its direction")
	}
}

func TestFindTriangleLightRoundTrip(t *testing.T) {
	tbl := New()
	tbl.Add(Light{Kind: Triangle, TriangleIndex: 3, TransformIndex: 1})
	idx, ok := tbl.FindTriangleLight(TriangleLightSourceKey{TriangleIndex: 3, TransformIndex: 1})
	if !ok || idx != 0 {
		t.Fatalf("expected to find the registered triangle light")
	}
	if _, ok := tbl.FindTriangleLight(TriangleLightSourceKey{TriangleIndex: 9, TransformIndex: 1}); ok {
		t.Fatalf("expected no match for an unregistered triangle")
	}
}

func TestRemoveZeroesRadianceAndInvalidatesCDF(t *testing.T) {
	tbl := New()
	tbl.Add(Light{Kind: Sphere, Radiance: vecmath.Vec3{1, 1, 1}, Radius: 1})
	tbl.Remove(0)
	if tbl.Get(0).Radiance.Luminance() != 0 {
		t.Fatalf("expected removed light's radiance to be zeroed")
	}
	if _, _, ok := tbl.Sample(0.5); ok {
		t.Fatalf("expected sampling an all-zero-power table to fail")
	}
}
