// Package goldentest represents six named end-to-end scenarios
// (oren_mat0, spec_mat0, refr_mis0, complex_mat5_sun_light,
// complex_mat7_refractive, alpha_mat3) as small, procedurally built
// in-memory scenes exercising a representative material/light
// configuration each.
//
// A full golden-image test driver compares a rendered frame against a
// reference PNG with a PSNR/firefly-count threshold; those reference
// images and the OBJ/PBRT scene fixtures they were rendered from are not
// part of this repository, so this harness cannot reproduce a literal
// PSNR comparison. Each scenario's PSNR/firefly constants are still
// recorded below verbatim (documentation, not an assertion), and Verify
// instead checks the property a correct unbiased estimator must have
// regardless of a golden reference: finite, non-negative radiance.
package goldentest

import (
	"fmt"
	"math"

	"github.com/prism-renderer/prism/internal/frame"
	"github.com/prism-renderer/prism/internal/handle"
	"github.com/prism-renderer/prism/internal/lights"
	"github.com/prism-renderer/prism/internal/material"
	"github.com/prism-renderer/prism/internal/pathtrace"
	"github.com/prism-renderer/prism/internal/scene"
	"github.com/prism-renderer/prism/internal/vecmath"
)

// Scenario is one named end-to-end configuration.
type Scenario struct {
	Name string

	// Samples/MinPSNRdB/MaxFireflies are the literal constants recorded for
	// this scenario against its (unavailable) golden image; kept here as
	// documentation, not asserted against.
	Samples      int
	MinPSNRdB    float32
	MaxFireflies int

	Config pathtrace.Config
	Build  func() (*scene.Scene, pathtrace.Camera)
}

// quad appends a two-triangle quad centered at center, spanning halfExtent
// along the local x/z axes, facing +Y, and returns its mesh handle plus
// its triangle count (always 2) so a caller can assign a material over
// the whole shape with SetTriangleMaterial.
func quad(sc *scene.Scene, name string, center vecmath.Vec3, halfExtent float32) (handle.MeshHandle, int) {
	normal := vecmath.Vec3{0, 1, 0}
	tangent := vecmath.Vec3{1, 0, 0}
	verts := []scene.Vertex{
		{Position: center.Add(vecmath.Vec3{-halfExtent, 0, -halfExtent}), Normal: normal, Tangent: tangent, UV: [2]float32{0, 0}},
		{Position: center.Add(vecmath.Vec3{halfExtent, 0, -halfExtent}), Normal: normal, Tangent: tangent, UV: [2]float32{1, 0}},
		{Position: center.Add(vecmath.Vec3{halfExtent, 0, halfExtent}), Normal: normal, Tangent: tangent, UV: [2]float32{1, 1}},
		{Position: center.Add(vecmath.Vec3{-halfExtent, 0, halfExtent}), Normal: normal, Tangent: tangent, UV: [2]float32{0, 1}},
	}
	indices := []uint32{0, 1, 2, 0, 2, 3}
	return sc.AddMesh(name, verts, indices), 2
}

// sphere tessellates a UV sphere of the given radius centered at center,
// coarse enough to stay cheap to build but dense enough to exercise BVH
// traversal and shading over curved geometry.
func sphere(sc *scene.Scene, name string, center vecmath.Vec3, radius float32, rings, slices int) (handle.MeshHandle, int) {
	var verts []scene.Vertex
	for r := 0; r <= rings; r++ {
		theta := float32(r) / float32(rings) * math.Pi
		y := float32(math.Cos(float64(theta)))
		ringRadius := float32(math.Sin(float64(theta)))
		for s := 0; s <= slices; s++ {
			phi := float32(s) / float32(slices) * 2 * math.Pi
			x := ringRadius * float32(math.Cos(float64(phi)))
			z := ringRadius * float32(math.Sin(float64(phi)))
			n := vecmath.Vec3{x, y, z}
			verts = append(verts, scene.Vertex{
				Position: center.Add(n.Mul(radius)),
				Normal:   n,
				Tangent:  vecmath.Vec3{-z, 0, x},
				UV:       [2]float32{float32(s) / float32(slices), float32(r) / float32(rings)},
			})
		}
	}
	var indices []uint32
	stride := uint32(slices + 1)
	for r := 0; r < rings; r++ {
		for s := 0; s < slices; s++ {
			a := uint32(r)*stride + uint32(s)
			b := a + stride
			indices = append(indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return sc.AddMesh(name, verts, indices), len(indices) / 3
}

// assignWholeMesh assigns mat as both the front and back material over
// every triangle of mesh mh.
func assignWholeMesh(sc *scene.Scene, mh handle.MeshHandle, triCount int, mat handle.MaterialHandle) {
	tree, _ := sc.MaterialTree(mat)
	sc.SetTriangleMaterial(mh, 0, triCount, mat, mat, tree)
}

func lookAtCamera(eye, target vecmath.Vec3, fovY, aspect float32) pathtrace.Camera {
	return pathtrace.NewCamera(eye, target, vecmath.Vec3{0, 1, 0}, fovY, aspect, 0, 1)
}

// overheadLight appends a small emissive quad above the origin standing in
// for the reference scenes' area light; Finalize's emissive-triangle walk
// registers one Triangle light per triangle of it.
func overheadLight(sc *scene.Scene) {
	lmh, ltri := quad(sc, "light", vecmath.Vec3{0, 4, 0}, 0.5)
	lmat := sc.AddMaterial([3]float32{1, 1, 1}, 1, 0, 1.5, [3]float32{20, 20, 20}, 1, 1)
	assignWholeMesh(sc, lmh, ltri, lmat)
	sc.AddMeshInstance(lmh, vecmath.Ident4())
}

// orenMat0 builds a diffuse-floor scenario: base RGB (0.5, 0, 0), default
// roughness, lit by an overhead emissive quad.
func orenMat0() (*scene.Scene, pathtrace.Camera) {
	sc := scene.New()
	floorMesh, floorTri := quad(sc, "floor", vecmath.Vec3{0, 0, 0}, 2)
	mat := sc.AddMaterial([3]float32{0.5, 0, 0}, material.DefaultRoughness, 0, material.DefaultIntIOR, [3]float32{}, 0, 1)
	assignWholeMesh(sc, floorMesh, floorTri, mat)
	sc.AddMeshInstance(floorMesh, vecmath.Ident4())
	overheadLight(sc)
	sc.Finalize(nil, 0, 0)
	return sc, lookAtCamera(vecmath.Vec3{0, 3, 4}, vecmath.Vec3{0, 0, 0}, 45, 1)
}

// specMat0 builds scenario 2: Principled, base (1,1,1), roughness 0,
// metallic 1 — a mirror-like conductor.
func specMat0() (*scene.Scene, pathtrace.Camera) {
	sc := scene.New()
	floorMesh, floorTri := quad(sc, "floor", vecmath.Vec3{0, 0, 0}, 2)
	mat := sc.AddMaterial([3]float32{1, 1, 1}, 0, 1, material.DefaultIntIOR, [3]float32{}, 0, 1)
	assignWholeMesh(sc, floorMesh, floorTri, mat)
	sc.AddMeshInstance(floorMesh, vecmath.Ident4())
	overheadLight(sc)
	sc.Finalize(nil, 0, 0)
	return sc, lookAtCamera(vecmath.Vec3{0, 3, 4}, vecmath.Vec3{0, 0, 0}, 45, 1)
}

// refrMis0 builds scenario 3: a refractive plane, IOR 1.45, roughness 0.
func refrMis0() (*scene.Scene, pathtrace.Camera) {
	sc := scene.New()
	floorMesh, floorTri := quad(sc, "plane", vecmath.Vec3{0, 0, 0}, 2)
	mat := sc.AddMaterial([3]float32{1, 1, 1}, 0, 0, 1.45, [3]float32{}, 0, 1)
	assignWholeMesh(sc, floorMesh, floorTri, mat)
	sc.AddMeshInstance(floorMesh, vecmath.Ident4())
	overheadLight(sc)
	sc.Finalize(nil, 0, 0)
	return sc, lookAtCamera(vecmath.Vec3{0, 3, 4}, vecmath.Vec3{0, 0, 0}, 45, 1)
}

// complexMat5SunLight builds scenario 4: a principled metal sphere with
// textures (approximated here by a flat albedo, since texture decoding
// lives behind pathtracer.Scene, not internal/scene) plus a directional
// sun light standing in for the original's Directional light kind.
func complexMat5SunLight() (*scene.Scene, pathtrace.Camera) {
	sc := scene.New()
	sph, sphTri := sphere(sc, "metal", vecmath.Vec3{0, 1, 0}, 1, 12, 24)
	mat := sc.AddMaterial([3]float32{0.9, 0.7, 0.4}, 0.2, 1, material.DefaultIntIOR, [3]float32{}, 0, 1)
	assignWholeMesh(sc, sph, sphTri, mat)
	sc.AddMeshInstance(sph, vecmath.Ident4())
	sc.Lights.Add(lights.Light{
		Kind:      lights.Directional,
		Flags:     lights.FlagCastShadow | lights.FlagVisible,
		Direction: vecmath.Vec3{-1, -1, -1}.Normalize(),
		Radiance:  vecmath.Vec3{3, 3, 2.8},
	})
	sc.Finalize(nil, 0, 0)
	return sc, lookAtCamera(vecmath.Vec3{0, 2, 5}, vecmath.Vec3{0, 1, 0}, 40, 1)
}

// complexMat7Refractive builds scenario 5: a refractive glass ball,
// rendered with an explicit max_total_depth = 9 budget (see Scenarios).
func complexMat7Refractive() (*scene.Scene, pathtrace.Camera) {
	sc := scene.New()
	ball, ballTri := sphere(sc, "glass", vecmath.Vec3{0, 1, 0}, 1, 12, 24)
	mat := sc.AddMaterial([3]float32{1, 1, 1}, 0, 0, 1.5, [3]float32{}, 0, 1)
	assignWholeMesh(sc, ball, ballTri, mat)
	sc.AddMeshInstance(ball, vecmath.Ident4())
	overheadLight(sc)
	sc.Finalize(nil, 0, 0)
	return sc, lookAtCamera(vecmath.Vec3{0, 2, 5}, vecmath.Vec3{0, 1, 0}, 40, 1)
}

// alphaMat3 builds scenario 6: a principled surface with alpha=0, which
// must render as a fully transparent foreground (the floor behind it
// shows through unobstructed).
func alphaMat3() (*scene.Scene, pathtrace.Camera) {
	sc := scene.New()
	floorMesh, floorTri := quad(sc, "floor", vecmath.Vec3{0, 0, 0}, 2)
	floorMat := sc.AddMaterial([3]float32{0.2, 0.2, 0.8}, 0.5, 0, material.DefaultIntIOR, [3]float32{}, 0, 1)
	assignWholeMesh(sc, floorMesh, floorTri, floorMat)
	sc.AddMeshInstance(floorMesh, vecmath.Ident4())

	glassMesh, glassTri := quad(sc, "cutout", vecmath.Vec3{0, 1, 0}, 1)
	glassMat := sc.AddMaterial([3]float32{1, 1, 1}, 0, 0, material.DefaultIntIOR, [3]float32{}, 0, 0)
	assignWholeMesh(sc, glassMesh, glassTri, glassMat)
	sc.AddMeshInstance(glassMesh, vecmath.Ident4())

	overheadLight(sc)
	sc.Finalize(nil, 0, 0)
	return sc, lookAtCamera(vecmath.Vec3{0, 3, 4}, vecmath.Vec3{0, 0, 0}, 45, 1)
}

// Scenarios returns all six named end-to-end configurations, in source
// order.
func Scenarios() []Scenario {
	cfg9 := pathtrace.DefaultConfig()
	cfg9.MaxBounces = 9

	return []Scenario{
		{Name: "oren_mat0", Samples: 310, MinPSNRdB: 30.0, MaxFireflies: 1, Config: pathtrace.DefaultConfig(), Build: orenMat0},
		{Name: "spec_mat0", Samples: 1640, MinPSNRdB: 30.0, MaxFireflies: 100, Config: pathtrace.DefaultConfig(), Build: specMat0},
		{Name: "refr_mis0", Samples: 1320, MinPSNRdB: 30.0, MaxFireflies: 10, Config: pathtrace.DefaultConfig(), Build: refrMis0},
		{Name: "complex_mat5_sun_light", Samples: 47, MinPSNRdB: 28.0, MaxFireflies: 1302, Config: pathtrace.DefaultConfig(), Build: complexMat5SunLight},
		{Name: "complex_mat7_refractive", Samples: 759, MinPSNRdB: 28.0, MaxFireflies: 1309, Config: cfg9, Build: complexMat7Refractive},
		{Name: "alpha_mat3", Samples: 190, MinPSNRdB: 30.0, MaxFireflies: 1, Config: pathtrace.DefaultConfig(), Build: alphaMat3},
	}
}

// Verify renders a small frame for the scenario and checks the property a
// correct unbiased estimator must have regardless of a golden reference:
// every accumulated pixel is finite and non-negative. It returns a
// non-nil error describing the first offending pixel, or nil if the
// frame is clean.
func Verify(sc Scenario, width, height uint32, spp int) error {
	scn, cam := sc.Build()

	opts := frame.DefaultOptions()
	opts.FrameW, opts.FrameH = width, height
	opts.SamplesPerPixel = uint32(spp)

	fr := scn.Frame()
	tr := pathtrace.New(fr, func(vecmath.Vec3) vecmath.Vec3 { return vecmath.Vec3{} }, sc.Config)

	f, stats := frame.RenderFrame(tr, cam, opts)
	if stats.Err != nil {
		return fmt.Errorf("%s: render failed: %w", sc.Name, stats.Err)
	}

	accum := f.Accumulator()
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			c := accum.Mean(x, y)
			for ch := 0; ch < 3; ch++ {
				v := c[ch]
				if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
					return fmt.Errorf("%s: pixel (%d,%d) channel %d is non-finite: %v", sc.Name, x, y, ch, v)
				}
				if v < 0 {
					return fmt.Errorf("%s: pixel (%d,%d) channel %d is negative: %v", sc.Name, x, y, ch, v)
				}
			}
		}
	}
	return nil
}
