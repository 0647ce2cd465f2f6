package pathtrace

import (
	"math"

	"github.com/prism-renderer/prism/internal/lights"
	"github.com/prism-renderer/prism/internal/scene"
	"github.com/prism-renderer/prism/internal/vecmath"
)

// trianglePos is the world-space geometry of one triangle light, resolved
// once per NEE sample from the instance transform and mesh vertex data a
// scene.Frame snapshot carries.
type trianglePos struct {
	P0, P1, P2 vecmath.Vec3
	Normal     vecmath.Vec3
	Area       float32
}

// resolveTriangleLight looks up the world-space geometry a Triangle light
// references, using the TransformIndex->instance map built once per Frame
// and the light's TriangleIndex, which AddMeshInstance derived from the
// same mesh.TriStart base a FrameMesh carries.
func resolveTriangleLight(f *scene.Frame, instanceOfTransform map[uint32]int, l lights.Light) (trianglePos, bool) {
	instIdx, ok := instanceOfTransform[l.TransformIndex]
	if !ok {
		return trianglePos{}, false
	}
	inst := f.Accel.Instances[instIdx]
	mesh := f.Meshes[inst.MeshIndex]
	origIdx := int(l.TriangleIndex) - mesh.TriStart
	if origIdx < 0 || (origIdx*3+2) >= len(mesh.Indices) {
		return trianglePos{}, false
	}
	i0, i1, i2 := mesh.Indices[origIdx*3], mesh.Indices[origIdx*3+1], mesh.Indices[origIdx*3+2]
	p0 := inst.ObjectToWorld.MulPoint(mesh.Verts[i0].Position)
	p1 := inst.ObjectToWorld.MulPoint(mesh.Verts[i1].Position)
	p2 := inst.ObjectToWorld.MulPoint(mesh.Verts[i2].Position)
	e1, e2 := p1.Sub(p0), p2.Sub(p0)
	cr := e1.Cross(e2)
	area := cr.Len() * 0.5
	normal := cr.Normalize()
	return trianglePos{P0: p0, P1: p1, P2: p2, Normal: normal, Area: area}, true
}

// sampleTriangleLight uniformly samples a point on tp via the standard
// square-root barycentric mapping and returns the NEE sample seen from
// shadingPoint.
func sampleTriangleLight(tp trianglePos, radiance vecmath.Vec3, shadingPoint vecmath.Vec3, u, v float32) (lights.SampleResult, bool) {
	su := float32(math.Sqrt(float64(u)))
	b0 := 1 - su
	b1 := v * su
	point := tp.P0.Mul(b0).Add(tp.P1.Mul(b1)).Add(tp.P2.Mul(1 - b0 - b1))
	toLight := point.Sub(shadingPoint)
	dist := toLight.Len()
	if dist <= 0 {
		return lights.SampleResult{}, false
	}
	dir := toLight.Mul(1 / dist)
	cosLight := -dir.Dot(tp.Normal)
	if cosLight <= 0 || tp.Area <= 0 {
		return lights.SampleResult{}, false
	}
	pdf := (dist * dist) / (tp.Area * cosLight)
	return lights.SampleResult{Point: point, Direction: dir, Distance: dist, PDF: pdf, Radiance: radiance}, true
}

// trianglePDF returns the solid-angle PDF of a direction/distance pair
// already known to land on tp, used to MIS-weight a BSDF-sampled ray that
// happens to directly hit a triangle light.
func trianglePDF(tp trianglePos, dir vecmath.Vec3, dist float32) float32 {
	cosLight := -dir.Dot(tp.Normal)
	if cosLight <= 0 || tp.Area <= 0 {
		return 0
	}
	return (dist * dist) / (tp.Area * cosLight)
}
