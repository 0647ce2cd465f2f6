// Package accel implements per-triangle intersection primitives and
// TLAS/BLAS traversal over the flat bvh.Node arrays produced by
// internal/bvh, plus the HWIntersector contract a hardware ray-tracing
// backend must satisfy to be a drop-in replacement.
//
// The two-level TLAS-over-BLAS traversal shape and per-instance
// object-space transform follow the same two-level BVH partitioning
// traversal order used elsewhere in this tree; the watertight shear/scale
// intersection and self-intersection epsilon offset implement Woop et
// al.'s watertight ray/triangle test to avoid double-hits on shared
// edges.
package accel

import (
	"math"

	"github.com/prism-renderer/prism/internal/vecmath"
)

// Ray is a traversal ray in whatever space it is currently expressed.
type Ray struct {
	Origin vecmath.Vec3
	Dir    vecmath.Vec3
	TMin   float32
	TMax   float32
}

// TriAccel holds Möller-Trumbore precompute for one triangle: a base
// vertex and its two edge vectors.
type TriAccel struct {
	V0, Edge1, Edge2 vecmath.Vec3
	// original mesh-local triangle index, carried through for material
	// lookup and triangle-light back-reference.
	TriIndex uint32
}

// BuildTriAccel precomputes a TriAccel from a triangle's three vertex
// positions.
func BuildTriAccel(triIndex uint32, p0, p1, p2 vecmath.Vec3) TriAccel {
	return TriAccel{V0: p0, Edge1: p1.Sub(p0), Edge2: p2.Sub(p0), TriIndex: triIndex}
}

const epsilon = 1e-8

// IntersectTri is the standard (non-watertight) Möller-Trumbore test.
func IntersectTri(r Ray, tri TriAccel) (t, u, v float32, hit bool) {
	pvec := r.Dir.Cross(tri.Edge2)
	det := tri.Edge1.Dot(pvec)
	if det > -epsilon && det < epsilon {
		return 0, 0, 0, false
	}
	invDet := 1.0 / det
	tvec := r.Origin.Sub(tri.V0)
	u = tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	qvec := tvec.Cross(tri.Edge1)
	v = r.Dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = tri.Edge2.Dot(qvec) * invDet
	if t < r.TMin || t > r.TMax {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

// ShearFrame holds the per-ray shear/scale transform used by
// WatertightIntersect, which implements Woop et al.'s watertight
// ray-triangle test, avoiding double-hits and gaps on shared edges
// that plain Möller-Trumbore can suffer from under floating-point error.
// The shear/scale transform depends only on the ray, so a caller
// traversing many triangles against the same ray should compute it once.
type ShearFrame struct {
	KX, KY, KZ   int
	Sx, Sy, Sz   float32
}

// PrepareShear derives the dominant-axis permutation and shear
// coefficients for one ray.
func PrepareShear(dir vecmath.Vec3) ShearFrame {
	ax, ay, az := abs32(dir[0]), abs32(dir[1]), abs32(dir[2])
	kz := 2
	if ax > ay && ax > az {
		kz = 0
	} else if ay > az {
		kz = 1
	}
	kx := (kz + 1) % 3
	ky := (kx + 1) % 3
	if dir[kz] < 0 {
		kx, ky = ky, kx
	}
	sx := dir[kx] / dir[kz]
	sy := dir[ky] / dir[kz]
	sz := 1.0 / dir[kz]
	return ShearFrame{KX: kx, KY: ky, KZ: kz, Sx: sx, Sy: sy, Sz: sz}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// WatertightIntersect tests a ray (with a precomputed ShearFrame) against
// one triangle.
func WatertightIntersect(r Ray, sf ShearFrame, tri TriAccel) (t, u, v float32, hit bool) {
	p0 := tri.V0.Sub(r.Origin)
	p1 := tri.V0.Add(tri.Edge1).Sub(r.Origin)
	p2 := tri.V0.Add(tri.Edge2).Sub(r.Origin)

	ax := p0[sf.KX] - sf.Sx*p0[sf.KZ]
	ay := p0[sf.KY] - sf.Sy*p0[sf.KZ]
	bx := p1[sf.KX] - sf.Sx*p1[sf.KZ]
	by := p1[sf.KY] - sf.Sy*p1[sf.KZ]
	cx := p2[sf.KX] - sf.Sx*p2[sf.KZ]
	cy := p2[sf.KY] - sf.Sy*p2[sf.KZ]

	u0 := cx*by - cy*bx
	v0 := ax*cy - ay*cx
	w0 := bx*ay - by*ax

	if (u0 < 0 || v0 < 0 || w0 < 0) && (u0 > 0 || v0 > 0 || w0 > 0) {
		return 0, 0, 0, false
	}
	det := u0 + v0 + w0
	if det == 0 {
		return 0, 0, 0, false
	}

	az := sf.Sz * p0[sf.KZ]
	bz := sf.Sz * p1[sf.KZ]
	cz := sf.Sz * p2[sf.KZ]
	tScaled := u0*az + v0*bz + w0*cz

	invDet := 1.0 / det
	tOut := tScaled * invDet
	if tOut < r.TMin || tOut > r.TMax {
		return 0, 0, 0, false
	}
	return tOut, v0 * invDet, w0 * invDet, true
}

// OffsetRayOrigin nudges a shading point along the geometric normal by a
// small scale-invariant epsilon, avoiding self-intersection on the next
// bounce's ray without a fixed absolute bias.
func OffsetRayOrigin(p, geomNormal vecmath.Vec3) vecmath.Vec3 {
	const originEps = 1.0 / 32.0
	const floatScale = 1.0 / 65536.0
	const intScale = 256.0

	ix := int32(intScale * geomNormal[0])
	iy := int32(intScale * geomNormal[1])
	iz := int32(intScale * geomNormal[2])

	offset := func(v float32, i int32) float32 {
		bits := math.Float32bits(v)
		if v < 0 {
			bits -= uint32(i)
		} else {
			bits += uint32(i)
		}
		return math.Float32frombits(bits)
	}

	po := vecmath.Vec3{offset(p[0], ix), offset(p[1], iy), offset(p[2], iz)}

	if abs32(p[0]) < originEps {
		po[0] = p[0] + floatScale*geomNormal[0]
	}
	if abs32(p[1]) < originEps {
		po[1] = p[1] + floatScale*geomNormal[1]
	}
	if abs32(p[2]) < originEps {
		po[2] = p[2] + floatScale*geomNormal[2]
	}
	return po
}

// Hit is the closest-hit result shape shared by the software traversal
// and any hardware-backed implementation.
type Hit struct {
	InstanceIndex  uint32
	TriangleIndex  uint32
	U, V           float32
	T              float32
	Solid          bool
}

// HWIntersector is the contract a hardware ray-tracing backend
// (internal/hwrt) must satisfy so the software traversal can forward to
// it transparently.
type HWIntersector interface {
	ClosestHit(r Ray) (Hit, bool)
	AnyHit(r Ray, solidOnly bool) bool
}
