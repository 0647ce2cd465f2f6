package accel

import (
	"math"
	"testing"

	"github.com/prism-renderer/prism/internal/bvh"
	"github.com/prism-renderer/prism/internal/vecmath"
)

func TestIntersectTriHitsCenter(t *testing.T) {
	tri := BuildTriAccel(0,
		vecmath.Vec3{-1, -1, 0},
		vecmath.Vec3{1, -1, 0},
		vecmath.Vec3{0, 1, 0},
	)
	r := Ray{Origin: vecmath.Vec3{0, -0.33, -5}, Dir: vecmath.Vec3{0, 0, 1}, TMin: 0, TMax: math.MaxFloat32}
	tt, _, _, hit := IntersectTri(r, tri)
	if !hit {
		t.Fatalf("expected ray through triangle centroid to hit")
	}
	if math.Abs(float64(tt-5)) > 1e-4 {
		t.Fatalf("expected t=5, got %f", tt)
	}
}

func TestIntersectTriMissesOutsideEdges(t *testing.T) {
	tri := BuildTriAccel(0,
		vecmath.Vec3{-1, -1, 0},
		vecmath.Vec3{1, -1, 0},
		vecmath.Vec3{0, 1, 0},
	)
	r := Ray{Origin: vecmath.Vec3{5, 5, -5}, Dir: vecmath.Vec3{0, 0, 1}, TMin: 0, TMax: math.MaxFloat32}
	if _, _, _, hit := IntersectTri(r, tri); hit {
		t.Fatalf("expected ray far outside triangle to miss")
	}
}

func TestWatertightAgreesWithMollerTrumbore(t *testing.T) {
	tri := BuildTriAccel(0,
		vecmath.Vec3{-1, -1, 0},
		vecmath.Vec3{1, -1, 0},
		vecmath.Vec3{0, 1, 0},
	)
	r := Ray{Origin: vecmath.Vec3{0.1, -0.2, -3}, Dir: vecmath.Vec3{0, 0, 1}, TMin: 0, TMax: math.MaxFloat32}
	t1, _, _, hit1 := IntersectTri(r, tri)
	sf := PrepareShear(r.Dir)
	t2, _, _, hit2 := WatertightIntersect(r, sf, tri)
	if hit1 != hit2 {
		t.Fatalf("expected both intersection routines to agree on hit status")
	}
	if hit1 && math.Abs(float64(t1-t2)) > 1e-3 {
		t.Fatalf("expected both routines to report similar t: %f vs %f", t1, t2)
	}
}

func buildTestScene(centroids [][3]float32) Scene {
	tris := make([]TriAccel, len(centroids))
	boxes := make([]bvh.AABB, len(centroids))
	for i, c := range centroids {
		p0 := vecmath.Vec3{c[0] - 0.1, c[1] - 0.1, c[2]}
		p1 := vecmath.Vec3{c[0] + 0.1, c[1] - 0.1, c[2]}
		p2 := vecmath.Vec3{c[0], c[1] + 0.1, c[2]}
		tris[i] = BuildTriAccel(uint32(i), p0, p1, p2)
		boxes[i] = bvh.AABB{Min: [3]float32{c[0] - 0.1, c[1] - 0.1, c[2] - 1e-4}, Max: [3]float32{c[0] + 0.1, c[1] + 0.1, c[2] + 1e-4}}
	}

	opts := bvh.DefaultOptions()
	opts.SpatialSplits = false
	res := bvh.Build(boxes, opts)

	orderedTris := make([]TriAccel, len(tris))
	for i, primIdx := range res.Order {
		orderedTris[i] = tris[primIdx]
	}

	mesh := Mesh{Nodes: res.Nodes, Tris: orderedTris}

	inst := Instance{MeshIndex: 0, ObjectToWorld: vecmath.Ident4(), WorldToObject: vecmath.Ident4()}
	tlasBoxes := []bvh.AABB{{Min: [3]float32{-100, -100, -100}, Max: [3]float32{100, 100, 100}}}
	tlas := bvh.Build(tlasBoxes, opts)

	return Scene{TLAS: tlas.Nodes, Instances: []Instance{inst}, Meshes: []Mesh{mesh}}
}

func TestClosestHitFindsOwnCentroidTriangle(t *testing.T) {
	centroids := [][3]float32{{0, 0, 0}, {2, 0, 0}, {0, 2, 0}, {-2, -2, 0}}
	scene := buildTestScene(centroids)

	for i, c := range centroids {
		origin := vecmath.Vec3{c[0], c[1], c[2] - 5}
		r := Ray{Origin: origin, Dir: vecmath.Vec3{0, 0, 1}, TMin: 0, TMax: math.MaxFloat32}
		hit, ok := scene.ClosestHit(r)
		if !ok {
			t.Fatalf("expected a hit for centroid %d", i)
		}
		if hit.TriangleIndex != uint32(i) {
			t.Fatalf("expected centroid %d to hit its own triangle, got triangle %d", i, hit.TriangleIndex)
		}
		if math.Abs(float64(hit.T-5)) > 1e-2 {
			t.Fatalf("expected closest hit near t=5 for its own triangle, got %f", hit.T)
		}
	}
}

func TestAnyHitDetectsOcclusion(t *testing.T) {
	scene := buildTestScene([][3]float32{{0, 0, 0}})
	r := Ray{Origin: vecmath.Vec3{0, 0, -5}, Dir: vecmath.Vec3{0, 0, 1}, TMin: 0, TMax: 10}
	if !scene.AnyHit(r, false) {
		t.Fatalf("expected shadow ray toward the triangle to report occlusion")
	}
	miss := Ray{Origin: vecmath.Vec3{50, 50, -5}, Dir: vecmath.Vec3{0, 0, 1}, TMin: 0, TMax: 10}
	if scene.AnyHit(miss, false) {
		t.Fatalf("expected shadow ray far from geometry to report no occlusion")
	}
}

func TestOffsetRayOriginMovesAlongNormal(t *testing.T) {
	p := vecmath.Vec3{1, 1, 1}
	n := vecmath.Vec3{0, 1, 0}
	off := OffsetRayOrigin(p, n)
	if off[1] <= p[1] {
		t.Fatalf("expected offset point to move outward along the normal")
	}
}
