package scene

import (
	"math"
	"testing"

	"github.com/prism-renderer/prism/internal/accel"
	"github.com/prism-renderer/prism/internal/handle"
	"github.com/prism-renderer/prism/internal/lights"
	"github.com/prism-renderer/prism/internal/vecmath"
)

func makeTriangleMesh(s *Scene) handle.MeshHandle {
	verts := []Vertex{
		{Position: vecmath.Vec3{-1, -1, 0}, Normal: vecmath.Vec3{0, 0, 1}},
		{Position: vecmath.Vec3{1, -1, 0}, Normal: vecmath.Vec3{0, 0, 1}},
		{Position: vecmath.Vec3{0, 1, 0}, Normal: vecmath.Vec3{0, 0, 1}},
	}
	return s.AddMesh("tri", verts, []uint32{0, 1, 2})
}

func TestAddMeshInstanceProducesConsistentWorldBounds(t *testing.T) {
	s := New()
	mh := makeTriangleMesh(s)

	xform := vecmath.Ident4()
	xform[12] = 5 // translate x by 5 (column-major, translation in column 3)

	ih, err := s.AddMeshInstance(mh, xform)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inst, ok := s.instances.Get(handle.Handle(ih))
	if !ok {
		t.Fatalf("expected instance to be retrievable")
	}

	m, _ := s.meshes.Get(handle.Handle(mh))
	want := transformAABB(m.Bounds, xform)
	for i := 0; i < 3; i++ {
		if math.Abs(float64(inst.WorldBounds.Min[i]-want.Min[i])) > 1e-4 {
			t.Fatalf("world bounds min mismatch on axis %d: got %v want %v", i, inst.WorldBounds.Min, want.Min)
		}
		if math.Abs(float64(inst.WorldBounds.Max[i]-want.Max[i])) > 1e-4 {
			t.Fatalf("world bounds max mismatch on axis %d: got %v want %v", i, inst.WorldBounds.Max, want.Max)
		}
	}
}

func TestSetGetEnvironmentRoundTrip(t *testing.T) {
	s := New()
	env := Environment{Tint: vecmath.Vec3{1, 2, 3}, EnvMapRotation: 0.5, MultipleImportance: true}
	s.SetEnvironment(env)
	got := s.GetEnvironment()
	if got != env {
		t.Fatalf("expected round-tripped environment to equal what was set: got %+v want %+v", got, env)
	}
}

func TestAddThenRemoveMeshInstanceLeavesSceneConsistentAfterFinalize(t *testing.T) {
	s := New()
	mh := makeTriangleMesh(s)
	ih, _ := s.AddMeshInstance(mh, vecmath.Ident4())
	s.Finalize(nil, 0, 0)
	countAfterAdd := s.instances.Len()

	s.RemoveMeshInstance(ih)
	s.Finalize(nil, 0, 0)

	if s.instances.Len() != countAfterAdd-1 {
		t.Fatalf("expected instance count to drop by one after remove+finalize, got %d from %d", s.instances.Len(), countAfterAdd)
	}
}

func TestEmissiveTriangleDiscoveryRegistersLight(t *testing.T) {
	s := New()
	mh := makeTriangleMesh(s)
	m, _ := s.meshes.Get(handle.Handle(mh))

	mat := s.AddMaterial([3]float32{0.1, 0.1, 0.1}, 0.5, 0, 1.5, [3]float32{5, 5, 5}, 1.0, 1.0)
	s.SetTriangleMaterial(mh, 0, m.TriCount, mat, mat, nil)

	// SetTriangleMaterial's SOLID_BIT computation needs the actual tree;
	// fetch it back for material-tree-based emissive discovery.
	tree, _ := s.materials.Get(handle.Handle(mat))
	s.SetTriangleMaterial(mh, 0, m.TriCount, mat, mat, tree)

	before := s.Lights.Len()
	if _, err := s.AddMeshInstance(mh, vecmath.Ident4()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Lights.Len() <= before {
		t.Fatalf("expected emissive material to register at least one triangle light")
	}
}

// TestTLASHandlesMoreThanLeafThresholdInstances covers the case where the
// TLAS root partitions into an internal node (more instances than
// bvh.DefaultOptions().LeafThreshold): leaf ranges then index into the
// SAH build's reordered primitive permutation rather than the original
// per-instance order, and the snapshot's Instances array must be
// reordered the same way or rays resolve against the wrong instance.
func TestTLASHandlesMoreThanLeafThresholdInstances(t *testing.T) {
	s := New()
	mh := makeTriangleMesh(s)

	const n = 6
	handles := make([]handle.InstanceHandle, n)
	for i := 0; i < n; i++ {
		xform := vecmath.Ident4()
		xform[12] = float32(i) * 10
		ih, err := s.AddMeshInstance(mh, xform)
		if err != nil {
			t.Fatalf("unexpected error adding instance %d: %v", i, err)
		}
		handles[i] = ih
	}
	s.Finalize(nil, 0, 0)

	frame := s.Frame()
	for i := 0; i < n; i++ {
		r := accel.Ray{
			Origin: vecmath.Vec3{float32(i) * 10, 0, 5},
			Dir:    vecmath.Vec3{0, 0, -1},
			TMin:   1e-4,
			TMax:   1e6,
		}
		hit, ok := frame.Accel.ClosestHit(r)
		if !ok {
			t.Fatalf("expected a hit against instance %d, got none", i)
		}
		if int(hit.InstanceIndex) >= len(frame.Accel.Instances) {
			t.Fatalf("hit instance index %d out of range (%d instances)", hit.InstanceIndex, len(frame.Accel.Instances))
		}
		got := frame.Accel.Instances[hit.InstanceIndex]
		want := uint32(handle.Handle(handles[i]).Index())
		if got.TransformIndex != want {
			t.Fatalf("instance %d: ray resolved to transform index %d, want %d (TLAS leaf range not remapped through the build's reorder permutation)", i, got.TransformIndex, want)
		}
	}
}

// TestPhysicalSkyBakePopulatesEquirectTexture covers Finalize step (1):
// a PhysicalSky environment with a directional light must produce a
// non-empty baked equirect texture before the qtree/TLAS steps run.
func TestPhysicalSkyBakePopulatesEquirectTexture(t *testing.T) {
	s := New()
	mh := makeTriangleMesh(s)
	if _, err := s.AddMeshInstance(mh, vecmath.Ident4()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Lights.Add(lights.Light{
		Kind:      lights.Directional,
		Direction: vecmath.Vec3{0, -1, 0},
		Radiance:  vecmath.Vec3{2, 2, 1.8},
	})
	s.SetEnvironment(Environment{PhysicalSky: true, Tint: vecmath.Vec3{1, 1, 1}, MultipleImportance: true})

	s.Finalize(nil, 0, 0)

	pixels, w, h := s.PhysicalSkyPixels()
	if pixels == nil || w != 512 || h != 256 {
		t.Fatalf("expected a 512x256 baked sky texture, got %d pixels (%dx%d)", len(pixels), w, h)
	}
	var sawNonZero bool
	for _, p := range pixels {
		if p[0] > 0 || p[1] > 0 || p[2] > 0 {
			sawNonZero = true
			break
		}
	}
	if !sawNonZero {
		t.Fatalf("expected at least one lit texel in the baked sky texture")
	}
	if len(s.QTree.Levels) == 0 {
		t.Fatalf("expected the baked sky texture to feed the environment quad-tree build")
	}
}

// TestPhysicalSkyBakeWithNoDirectionalLightsLeavesNoTexture covers the
// "no directional lights to bake against" case, which must not panic and
// must not fabricate a texture.
func TestPhysicalSkyBakeWithNoDirectionalLightsLeavesNoTexture(t *testing.T) {
	s := New()
	mh := makeTriangleMesh(s)
	if _, err := s.AddMeshInstance(mh, vecmath.Ident4()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.SetEnvironment(Environment{PhysicalSky: true})
	s.Finalize(nil, 0, 0)

	pixels, _, _ := s.PhysicalSkyPixels()
	if pixels != nil {
		t.Fatalf("expected no baked texture with zero directional lights, got %d pixels", len(pixels))
	}
}
