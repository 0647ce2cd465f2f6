package accel

import (
	"github.com/prism-renderer/prism/internal/bvh"
	"github.com/prism-renderer/prism/internal/vecmath"
)

// Mesh is a bottom-level acceleration structure: a BVH node range plus a
// slice into the global triangle-accel array.
type Mesh struct {
	Nodes []bvh.Node
	Tris  []TriAccel
}

// Instance places a Mesh in world space via its object-to-world and
// world-to-object transforms; the mesh handle, transform handle and
// cached world AABB live on the scene manager's own Instance type — accel
// only needs the two matrices for ray transform.
type Instance struct {
	MeshIndex     uint32
	ObjectToWorld vecmath.Mat4
	WorldToObject vecmath.Mat4
	// SolidRanges marks, per triangle indexed by its original mesh-local
	// index (TriAccel.TriIndex, not its position in Mesh.Tris), whether the
	// front-facing material tree is fully solid (SOLID_BIT set) so
	// any-hit traversal can early-terminate without alpha evaluation.
	SolidRanges []bool
	// TransformIndex is the scene manager's instance handle index, carried
	// through purely so a shading kernel can rebuild the same
	// (triangle, transform) key the scene used to register a triangle
	// light and look it up again from a Hit.
	TransformIndex uint32
}

// Scene bundles the flat mesh and instance arrays needed to traverse the
// two-level TLAS-over-BLAS structure: a TLAS built over instance world
// AABBs, and one BLAS per mesh.
type Scene struct {
	TLAS      []bvh.Node
	Instances []Instance
	Meshes    []Mesh
}

func slabTest(nodeBounds bvh.AABB, origin, invDir vecmath.Vec3, tMin, tMax float32) (float32, bool) {
	for i := 0; i < 3; i++ {
		t0 := (nodeBounds.Min[i] - origin[i]) * invDir[i]
		t1 := (nodeBounds.Max[i] - origin[i]) * invDir[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMin > tMax {
			return 0, false
		}
	}
	return tMin, true
}

func invDirOf(dir vecmath.Vec3) vecmath.Vec3 {
	inv := func(v float32) float32 {
		if v == 0 {
			return 1e30
		}
		return 1 / v
	}
	return vecmath.Vec3{inv(dir[0]), inv(dir[1]), inv(dir[2])}
}

// closestHitBLAS traverses a single mesh's binary BVH in object space and
// returns the nearest triangle hit, if any.
func closestHitBLAS(mesh Mesh, r Ray) (triIdx int, t, u, v float32, hit bool) {
	if len(mesh.Nodes) == 0 {
		return 0, 0, 0, 0, false
	}
	invDir := invDirOf(r.Dir)
	sf := PrepareShear(r.Dir)
	stack := make([]uint32, 0, 64)
	stack = append(stack, 0)
	best := Ray{TMin: r.TMin, TMax: r.TMax}
	found := false
	var bestIdx int
	var bestU, bestV float32

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := mesh.Nodes[idx]
		if _, ok := slabTest(n.Bounds(), r.Origin, invDir, best.TMin, best.TMax); !ok {
			continue
		}
		if n.IsLeaf() {
			first, count := n.LeafRange()
			for k := uint32(0); k < count; k++ {
				tri := mesh.Tris[first+k]
				tt, uu, vv, ok := WatertightIntersect(Ray{Origin: r.Origin, Dir: r.Dir, TMin: best.TMin, TMax: best.TMax}, sf, tri)
				if ok {
					best.TMax = tt
					bestIdx = int(first + k)
					bestU, bestV = uu, vv
					found = true
				}
			}
			continue
		}
		left, right := n.ChildNodes()
		stack = append(stack, left, right)
	}
	return bestIdx, best.TMax, bestU, bestV, found
}

// anyHitBLAS reports whether any triangle in mesh occludes the ray up to
// r.TMax. When solidOnly is true, only triangles marked solid via
// solidRanges (indexed by each triangle's original, pre-BVH-reorder
// index, i.e. TriAccel.TriIndex, not its position in mesh.Tris) are
// considered occluders; others are skipped, a stand-in for the shader
// alpha-evaluation continuation a non-solid surface requires.
func anyHitBLAS(mesh Mesh, solidRanges []bool, r Ray, solidOnly bool) bool {
	if len(mesh.Nodes) == 0 {
		return false
	}
	invDir := invDirOf(r.Dir)
	sf := PrepareShear(r.Dir)
	stack := make([]uint32, 0, 64)
	stack = append(stack, 0)

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := mesh.Nodes[idx]
		if _, ok := slabTest(n.Bounds(), r.Origin, invDir, r.TMin, r.TMax); !ok {
			continue
		}
		if n.IsLeaf() {
			first, count := n.LeafRange()
			for k := uint32(0); k < count; k++ {
				tri := mesh.Tris[first+k]
				origIdx := int(tri.TriIndex)
				if solidOnly && solidRanges != nil && origIdx < len(solidRanges) && !solidRanges[origIdx] {
					continue
				}
				if _, _, _, ok := WatertightIntersect(r, sf, tri); ok {
					return true
				}
			}
			continue
		}
		left, right := n.ChildNodes()
		stack = append(stack, left, right)
	}
	return false
}

func transformRay(r Ray, m vecmath.Mat4) Ray {
	return Ray{
		Origin: m.MulPoint(r.Origin),
		Dir:    m.MulDir(r.Dir),
		TMin:   r.TMin,
		TMax:   r.TMax,
	}
}

// ClosestHit traverses the TLAS, then the hit instance's BLAS in object
// space, and returns the world-space closest hit.
func (s Scene) ClosestHit(r Ray) (Hit, bool) {
	if len(s.TLAS) == 0 {
		return Hit{}, false
	}
	invDir := invDirOf(r.Dir)
	stack := make([]uint32, 0, 64)
	stack = append(stack, 0)

	var result Hit
	found := false
	tMax := r.TMax

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := s.TLAS[idx]
		if _, ok := slabTest(n.Bounds(), r.Origin, invDir, r.TMin, tMax); !ok {
			continue
		}
		if n.IsLeaf() {
			first, count := n.LeafRange()
			for k := uint32(0); k < count; k++ {
				instIdx := first + k
				inst := s.Instances[instIdx]
				objRay := transformRay(Ray{Origin: r.Origin, Dir: r.Dir, TMin: r.TMin, TMax: tMax}, inst.WorldToObject)
				triLocal, t, u, v, ok := closestHitBLAS(s.Meshes[inst.MeshIndex], objRay)
				if ok && t < tMax {
					tMax = t
					origIdx := s.Meshes[inst.MeshIndex].Tris[triLocal].TriIndex
					solid := true
					if int(origIdx) < len(inst.SolidRanges) {
						solid = inst.SolidRanges[origIdx]
					}
					result = Hit{InstanceIndex: instIdx, TriangleIndex: origIdx, U: u, V: v, T: t, Solid: solid}
					found = true
				}
			}
			continue
		}
		left, right := n.ChildNodes()
		stack = append(stack, left, right)
	}
	return result, found
}

// AnyHit traverses the TLAS looking for any occluder up to r.TMax. When
// solidOnly is set, non-solid surfaces (SOLID_BIT cleared, i.e. a
// Transparent leaf reachable in the material tree) are skipped, letting
// the shader evaluate alpha and continue rather than treating every
// triangle as opaque.
func (s Scene) AnyHit(r Ray, solidOnly bool) bool {
	if len(s.TLAS) == 0 {
		return false
	}
	invDir := invDirOf(r.Dir)
	stack := make([]uint32, 0, 64)
	stack = append(stack, 0)

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := s.TLAS[idx]
		if _, ok := slabTest(n.Bounds(), r.Origin, invDir, r.TMin, r.TMax); !ok {
			continue
		}
		if n.IsLeaf() {
			first, count := n.LeafRange()
			for k := uint32(0); k < count; k++ {
				inst := s.Instances[first+k]
				objRay := transformRay(r, inst.WorldToObject)
				if anyHitBLAS(s.Meshes[inst.MeshIndex], inst.SolidRanges, objRay, solidOnly) {
					return true
				}
			}
			continue
		}
		left, right := n.ChildNodes()
		stack = append(stack, left, right)
	}
	return false
}
