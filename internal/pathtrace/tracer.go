// Package pathtrace implements the per-sample wavefront estimator: primary
// ray generation, closest-hit shading with next-event estimation against
// both the analytic/triangle light table and the environment map's
// importance quad-tree, BSDF sampling, and Russian-roulette termination.
//
// The bounce loop (intersect, shade with NEE, sample a continuation,
// roulette) runs entirely on the CPU rather than handing rays to an
// external device, mirroring a wavefront GPU path tracer's stage split
// (RayGen/Intersect/Shade/ShadowRay/Compose) as a single per-sample Go
// call stack instead of separate kernel dispatches. PowerHeuristic-weighted
// MIS and the fixed per-bounce Sobol dimension order this loop consumes
// come from internal/sampling.
package pathtrace

import (
	"github.com/prism-renderer/prism/internal/accel"
	"github.com/prism-renderer/prism/internal/assert"
	"github.com/prism-renderer/prism/internal/handle"
	"github.com/prism-renderer/prism/internal/lights"
	"github.com/prism-renderer/prism/internal/material"
	"github.com/prism-renderer/prism/internal/sampling"
	"github.com/prism-renderer/prism/internal/scene"
	"github.com/prism-renderer/prism/internal/vecmath"
)

// Config controls bounce budget and Russian-roulette onset; the fixed
// Sobol dimension order the sampler consumes is independent of Config and
// lives in internal/sampling.
type Config struct {
	MaxBounces    int
	MinBounce     int
	RRLow         float32
	ClampRadiance float32
}

// DefaultConfig mirrors typical offline-renderer defaults: enough bounces
// to converge diffuse interreflection, Russian roulette from bounce 3,
// and no firefly clamping.
func DefaultConfig() Config {
	return Config{MaxBounces: 64, MinBounce: 3, RRLow: 0.05}
}

// Tracer evaluates radiance samples against one immutable scene.Frame
// snapshot. A Tracer must not outlive the Frame it was built from once the
// scene mutates again.
type Tracer struct {
	Frame  scene.Frame
	Env    EnvRadiance
	Config Config

	instanceOfTransform map[uint32]int
	pEnv                float32
}

// New builds a Tracer over a frame snapshot, precomputing the
// TransformIndex->instance lookup triangle-light NEE needs and the fixed
// per-frame mixture weight between the analytic light table and the
// environment map's importance quad-tree.
func New(f scene.Frame, env EnvRadiance, cfg Config) *Tracer {
	assert.Truef(cfg.MinBounce <= cfg.MaxBounces, "pathtrace: MinBounce (%d) must not exceed MaxBounces (%d)", cfg.MinBounce, cfg.MaxBounces)
	tr := &Tracer{Frame: f, Env: env, Config: cfg}
	tr.instanceOfTransform = make(map[uint32]int, len(f.Accel.Instances))
	for i, inst := range f.Accel.Instances {
		tr.instanceOfTransform[inst.TransformIndex] = i
	}

	hasEnv := env != nil && len(f.QTree.Levels) > 0 && f.Env.MultipleImportance
	lightTotal := float32(0)
	if f.Lights != nil {
		lightTotal = f.Lights.TotalPower()
	}
	switch {
	case hasEnv && lightTotal <= 0:
		tr.pEnv = 1
	case hasEnv:
		envTotal := f.QTree.TotalLuminance()
		if envTotal+lightTotal > 0 {
			tr.pEnv = envTotal / (envTotal + lightTotal)
		}
	}
	return tr
}

// shadingPoint is the interpolated, world-space geometry at a closest-hit
// result.
type shadingPoint struct {
	Position     vecmath.Vec3
	Normal       vecmath.Vec3
	GeomNormal   vecmath.Vec3
	Material     handle.MaterialHandle
	FrontFacing  bool
	InstanceIdx  uint32
	OrigTriIndex uint32
}

func (tr *Tracer) interpolate(hit accel.Hit, ray accel.Ray) shadingPoint {
	inst := tr.Frame.Accel.Instances[hit.InstanceIndex]
	mesh := tr.Frame.Meshes[inst.MeshIndex]

	base := hit.TriangleIndex * 3
	i0, i1, i2 := mesh.Indices[base], mesh.Indices[base+1], mesh.Indices[base+2]
	v0, v1, v2 := mesh.Verts[i0], mesh.Verts[i1], mesh.Verts[i2]

	w := 1 - hit.U - hit.V
	localP := v0.Position.Mul(w).Add(v1.Position.Mul(hit.U)).Add(v2.Position.Mul(hit.V))
	localN := v0.Normal.Mul(w).Add(v1.Normal.Mul(hit.U)).Add(v2.Normal.Mul(hit.V)).Normalize()

	worldP := inst.ObjectToWorld.MulPoint(localP)
	normalMat := inst.WorldToObject.Transpose().Mat3()
	worldN := normalMat.MulVec(localN).Normalize()

	geomLocal := v1.Position.Sub(v0.Position).Cross(v2.Position.Sub(v0.Position))
	worldGeom := normalMat.MulVec(geomLocal).Normalize()

	wo := ray.Dir.Neg()
	frontFacing := worldN.Dot(wo) >= 0
	n, gn := worldN, worldGeom
	if !frontFacing {
		n, gn = n.Neg(), gn.Neg()
	}

	matHandle := mesh.FrontMat[hit.TriangleIndex]
	if !frontFacing {
		matHandle = mesh.BackMat[hit.TriangleIndex]
	}

	return shadingPoint{
		Position:     worldP,
		Normal:       n,
		GeomNormal:   gn,
		Material:     matHandle,
		FrontFacing:  frontFacing,
		InstanceIdx:  hit.InstanceIndex,
		OrigTriIndex: hit.TriangleIndex,
	}
}

// globalTriKey rebuilds the (TriangleIndex, TransformIndex) pair
// AddMeshInstance used to register a triangle light for the mesh
// triangle a Hit landed on.
func (tr *Tracer) globalTriKey(sp shadingPoint) lights.TriangleLightSourceKey {
	inst := tr.Frame.Accel.Instances[sp.InstanceIdx]
	mesh := tr.Frame.Meshes[inst.MeshIndex]
	return lights.TriangleLightSourceKey{
		TriangleIndex:  uint32(mesh.TriStart) + sp.OrigTriIndex,
		TransformIndex: inst.TransformIndex,
	}
}

// SamplePixel traces one full camera path for pixel (px, py), sample index
// idx, with (filmX, filmY) the already jittered NDC film coordinates in
// [-1, 1]^2, and returns the estimated radiance.
func (tr *Tracer) SamplePixel(cam Camera, px, py uint32, idx uint32, filmX, filmY float32) vecmath.Vec3 {
	seq := sampling.NewSequence(px, py)
	lu, lv := seq.Sample2D(idx, sampling.DimLens)
	ray := cam.GenerateRay(filmX, filmY, lu, lv)
	return tr.trace(seq, idx, ray)
}

func (tr *Tracer) trace(seq *sampling.Sequence, idx uint32, ray accel.Ray) vecmath.Vec3 {
	radiance := vecmath.Vec3{}
	throughput := vecmath.Vec3{1, 1, 1}
	specularBounce := true
	prevPdf := float32(0)

	for bounce := 0; bounce <= tr.Config.MaxBounces; bounce++ {
		hit, ok := tr.Frame.Accel.ClosestHit(ray)
		if !ok {
			radiance = radiance.Add(throughput.MulVec(tr.missRadiance(ray.Dir, prevPdf, specularBounce)))
			break
		}

		sp := tr.interpolate(hit, ray)
		wo := ray.Dir.Neg()

		tree, hasTree := tr.Frame.Materials[sp.Material]
		if !hasTree || len(tree.Nodes) == 0 {
			break
		}

		lightU := seq.Sample(idx, sampling.BounceDim(sampling.DimMixSelect, bounce))
		leaf, _ := tree.Resolve(tree.Root(), lightU)

		if leaf.Kind == material.Emissive {
			emitted := vecmath.Vec3(leaf.Emission).Mul(leaf.EmissionScale)
			weight := float32(1)
			if !specularBounce {
				weight = tr.hitLightMISWeight(sp, hit, ray, prevPdf)
			}
			radiance = radiance.Add(throughput.MulVec(emitted).Mul(weight))
			break
		}

		offsetOrigin := accel.OffsetRayOrigin(sp.Position, sp.GeomNormal)

		nee := tr.sampleNEE(seq, idx, bounce, leaf, sp, offsetOrigin, wo)
		radiance = radiance.Add(throughput.MulVec(nee))

		bu, bv := seq.Sample2D(idx, sampling.BounceDim(sampling.DimBSDFUV, bounce))
		// +3, not +2: DimBSDFUV+2 lands on DimRR's own slot within the same
		// bounce (stride 12), which would correlate the Principled
		// lobe-selection sample with Russian-roulette survival.
		bu2 := seq.Sample(idx, sampling.BounceDim(sampling.DimBSDFUV, bounce)+3)
		sample, ok := sampleBSDF(leaf, sp.Normal, wo, bu, bv, bu2)
		if !ok || sample.Pdf <= 0 {
			break
		}
		cosTheta := absFloat(sample.Dir.Dot(sp.Normal))
		if cosTheta <= 0 {
			break
		}
		throughput = throughput.MulVec(sample.Value).Mul(cosTheta / sample.Pdf)
		if !throughput.IsFinite() {
			break
		}

		if bounce >= tr.Config.MinBounce {
			rrU := seq.Sample(idx, sampling.BounceDim(sampling.DimRR, bounce))
			q := throughput.MaxComponent()
			if q < tr.Config.RRLow {
				q = tr.Config.RRLow
			}
			if q > 1 {
				q = 1
			}
			if rrU >= q {
				break
			}
			throughput = throughput.Mul(1 / q)
		}

		if tr.Config.ClampRadiance > 0 {
			throughput = clampVec(throughput, tr.Config.ClampRadiance)
		}

		origin := offsetOrigin
		if sample.Dir.Dot(sp.GeomNormal) < 0 {
			origin = accel.OffsetRayOrigin(sp.Position, sp.GeomNormal.Neg())
		}
		ray = accel.Ray{Origin: origin, Dir: sample.Dir, TMin: 1e-4, TMax: float32(1e30)}
		prevPdf = sample.Pdf
		specularBounce = sample.Specular
	}

	return radiance
}

func (tr *Tracer) missRadiance(dir vecmath.Vec3, prevPdf float32, specularBounce bool) vecmath.Vec3 {
	if tr.Env == nil {
		return vecmath.Vec3{}
	}
	le := tr.Env(dir)
	if specularBounce || tr.pEnv <= 0 {
		return le
	}
	u, v := equirectDirToUV(dir)
	envPdfUV := tr.Frame.QTree.PDF(u, v)
	envPdfSolid := uvPDFToSolidAngle(envPdfUV, v)
	neePdf := tr.pEnv * envPdfSolid
	weight := sampling.PowerHeuristic(1, prevPdf, 1, neePdf)
	return le.Mul(weight)
}

// hitLightMISWeight computes the BSDF-sampling side of the MIS weight when
// a continuation ray directly lands on an emissive triangle.
func (tr *Tracer) hitLightMISWeight(sp shadingPoint, hit accel.Hit, ray accel.Ray, prevPdf float32) float32 {
	key := tr.globalTriKey(sp)
	lightIdx, ok := tr.Frame.Lights.FindTriangleLight(key)
	if !ok {
		return 1
	}
	tp, ok := resolveTriangleLight(&tr.Frame, tr.instanceOfTransform, tr.Frame.Lights.Get(lightIdx))
	if !ok {
		return 1
	}
	pmf := tr.Frame.Lights.PMF(lightIdx)
	lightPdfSolid := trianglePDF(tp, ray.Dir, hit.T)
	neePdf := (1 - tr.pEnv) * pmf * lightPdfSolid
	return sampling.PowerHeuristic(1, prevPdf, 1, neePdf)
}

func absFloat(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clampVec(v vecmath.Vec3, maxComp float32) vecmath.Vec3 {
	m := v.MaxComponent()
	if m <= maxComp || m <= 0 {
		return v
	}
	return v.Mul(maxComp / m)
}
