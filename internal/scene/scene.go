// Package scene implements the mutable, concurrently-readable world: mesh
// and instance stores, materials, lights, and the environment map,
// together with the Finalize rebuild protocol that keeps the derived
// acceleration structures consistent with edits.
//
// A single writer-owned Scene struct holds every store; readers take the
// shared side of a RWMutex while structural edits take the exclusive side,
// and `Nolock`-suffixed internal twins let Finalize and friends compose
// edits without re-entering the lock. Emissive triangles are registered as
// lights when AddMeshInstance runs. Finalize compacts removed instances,
// bakes the physical sky (if enabled), rebuilds the environment quad-tree
// and then rebuilds the TLAS, keeping every derived structure consistent
// with the edits made since the previous Finalize.
package scene

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/olekukonko/tablewriter"

	"github.com/prism-renderer/prism/internal/accel"
	"github.com/prism-renderer/prism/internal/assert"
	"github.com/prism-renderer/prism/internal/bvh"
	"github.com/prism-renderer/prism/internal/envmap"
	"github.com/prism-renderer/prism/internal/handle"
	"github.com/prism-renderer/prism/internal/lights"
	"github.com/prism-renderer/prism/internal/material"
	"github.com/prism-renderer/prism/internal/rlog"
	"github.com/prism-renderer/prism/internal/skylight"
	"github.com/prism-renderer/prism/internal/sparse"
	"github.com/prism-renderer/prism/internal/vecmath"
)

var log = rlog.New("scene")

// Vertex is the common per-vertex layout every input layout is expanded
// into; a missing tangent basis is derived at ingestion time.
type Vertex struct {
	Position vecmath.Vec3
	Normal   vecmath.Vec3
	Tangent  vecmath.Vec3
	UV       [2]float32
}

// Mesh owns a range of vertices/triangles/BVH nodes appended to the
// scene's global arrays.
type Mesh struct {
	Name        string
	Bounds      bvh.AABB
	NodeStart   int
	NodeCount   int
	TriStart    int
	TriCount    int
	VertStart   int
	VertCount   int
	Indices     []uint32 // mesh-local triangle vertex indices, TriCount*3 long
	FrontMat    []handle.MaterialHandle // per-triangle front material handle
	BackMat     []handle.MaterialHandle
	FrontSolid  []bool
	BackSolid   []bool
}

// Instance is a mesh placed in world space.
type Instance struct {
	Mesh          handle.MeshHandle
	Transform     vecmath.Mat4
	InverseXform  vecmath.Mat4
	WorldBounds   bvh.AABB
	tombstoned    bool
}

// Environment holds the scene's ambient lighting: an optional equirect
// texture plus the fallback constant color used where it has no coverage.
type Environment struct {
	Tint               vecmath.Vec3
	EnvMapTexture      handle.TextureHandle
	BackMapTexture     handle.TextureHandle
	EnvMapRotation     float32
	BackMapRotation    float32
	MultipleImportance bool
	PhysicalSky        bool
}

// Scene owns every mutable resource plus the derived structures rebuilt
// by Finalize.
type Scene struct {
	mu sync.RWMutex

	vertices []Vertex
	nodes    []bvh.Node
	tris     []accel.TriAccel

	meshes    *sparse.Store[*Mesh]
	instances *sparse.Store[*Instance]
	materials *sparse.Store[*material.Tree]
	textures  *sparse.Store[TextureRecord]

	Lights *lights.Table
	Env    Environment
	QTree  envmap.QuadTree

	// skyPixels/skyW/skyH cache the most recently baked physical-sky
	// texture (Environment.PhysicalSky), so a caller building the
	// equirect texture the renderer actually samples can retrieve it
	// after Finalize without re-baking.
	skyPixels []vecmath.Vec3
	skyW      int
	skyH      int

	tlas      []bvh.Node
	tlasStart int
	// tlasOrder holds the instance handles in TLAS leaf order: tlasOrder[i]
	// is the instance a leaf range position i refers to, since bvh.Build's
	// leaf ranges index into its own SAH-reordered primitive permutation,
	// not the original per-instance iteration order.
	tlasOrder []handle.Handle

	dirty bool
}

// TextureRecord is the scene-owned metadata for one uploaded texture; the
// pixel data itself lives in internal/texstore.
type TextureRecord struct {
	Width, Height int
	IsNormalMap   bool
	Handle        handle.TextureHandle
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{
		meshes:    sparse.New[*Mesh](),
		instances: sparse.New[*Instance](),
		materials: sparse.New[*material.Tree](),
		textures:  sparse.New[TextureRecord](),
		Lights:    lights.New(),
	}
}

// AddMesh preprocesses vertex data into the common layout, builds a BLAS
// via internal/bvh, and appends nodes/triangles/vertices to the scene's
// global arrays, offsetting child/primitive indices by the current array
// sizes so the mesh's local BVH stays internally consistent once
// concatenated.
func (s *Scene) AddMesh(name string, verts []Vertex, triIndices []uint32) handle.MeshHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addMeshNolock(name, verts, triIndices)
}

func (s *Scene) addMeshNolock(name string, verts []Vertex, triIndices []uint32) handle.MeshHandle {
	for i := range verts {
		if verts[i].Tangent == (vecmath.Vec3{}) {
			t, _ := vecmath.Basis(verts[i].Normal)
			verts[i].Tangent = t
		}
	}

	triCount := len(triIndices) / 3
	boxes := make([]bvh.AABB, triCount)
	tris := make([]accel.TriAccel, triCount)
	for i := 0; i < triCount; i++ {
		i0, i1, i2 := triIndices[i*3], triIndices[i*3+1], triIndices[i*3+2]
		p0, p1, p2 := verts[i0].Position, verts[i1].Position, verts[i2].Position
		box := bvh.EmptyAABB()
		box = box.UnionPoint([3]float32{p0[0], p0[1], p0[2]})
		box = box.UnionPoint([3]float32{p1[0], p1[1], p1[2]})
		box = box.UnionPoint([3]float32{p2[0], p2[1], p2[2]})
		boxes[i] = box
		tris[i] = accel.BuildTriAccel(uint32(i), p0, p1, p2)
	}

	opts := bvh.DefaultOptions()
	res := bvh.Build(boxes, opts)

	nodeOffset := int32(len(s.nodes))
	orderedTris := make([]accel.TriAccel, len(res.Order))
	for i, primIdx := range res.Order {
		orderedTris[i] = tris[primIdx]
	}
	for i := range res.Nodes {
		res.Nodes[i].Offset(nodeOffset)
	}
	// leaf ranges are relative to res.Order/orderedTris; rebase them into
	// the scene-global triangle array.
	triOffset := uint32(len(s.tris))
	for i := range res.Nodes {
		if res.Nodes[i].IsLeaf() {
			first, count := res.Nodes[i].LeafRange()
			res.Nodes[i].SetLeaf(first+triOffset, count)
		}
	}

	nodeStart := len(s.nodes)
	s.nodes = append(s.nodes, res.Nodes...)
	triStart := len(s.tris)
	s.tris = append(s.tris, orderedTris...)
	vertStart := len(s.vertices)
	s.vertices = append(s.vertices, verts...)

	worldBox := bvh.EmptyAABB()
	for _, v := range verts {
		worldBox = worldBox.UnionPoint([3]float32{v.Position[0], v.Position[1], v.Position[2]})
	}

	m := &Mesh{
		Name:       name,
		Bounds:     worldBox,
		NodeStart:  nodeStart,
		NodeCount:  len(res.Nodes),
		TriStart:   triStart,
		TriCount:   triCount,
		VertStart:  vertStart,
		VertCount:  len(verts),
		Indices:    append([]uint32(nil), triIndices...),
		FrontMat:   make([]handle.MaterialHandle, triCount),
		BackMat:    make([]handle.MaterialHandle, triCount),
		FrontSolid: make([]bool, triCount),
		BackSolid:  make([]bool, triCount),
	}
	for i := range m.FrontSolid {
		m.FrontSolid[i] = true
		m.BackSolid[i] = true
	}

	h := s.meshes.Add(m)
	s.dirty = true
	return handle.MeshHandle(h)
}

// SetTriangleMaterial assigns the front/back material tree root for every
// triangle in [start, start+count) of the given mesh, clearing SOLID_BIT
// on whichever side's tree contains a Transparent leaf.
func (s *Scene) SetTriangleMaterial(mh handle.MeshHandle, start, count int, front, back handle.MaterialHandle, matTree *material.Tree) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meshes.Get(handle.Handle(mh))
	if !ok {
		return false
	}
	backTree := matTree
	if back != front {
		if t, ok := s.materials.Get(handle.Handle(back)); ok {
			backTree = t
		}
	}
	frontSolid := !treeContainsTransparent(matTree)
	backSolid := !treeContainsTransparent(backTree)
	for i := start; i < start+count && i < len(m.FrontMat); i++ {
		m.FrontMat[i] = front
		m.BackMat[i] = back
		m.FrontSolid[i] = frontSolid
		m.BackSolid[i] = backSolid
	}
	s.dirty = true
	return true
}

func treeContainsTransparent(tree *material.Tree) bool {
	if tree == nil || len(tree.Nodes) == 0 {
		return false
	}
	return containsTransparent(tree, tree.Root())
}

func containsTransparent(tree *material.Tree, root uint32) bool {
	if tree == nil || int(root) >= len(tree.Nodes) {
		return false
	}
	n := tree.Nodes[root]
	switch n.Kind {
	case material.Transparent:
		return true
	case material.Mix:
		return containsTransparent(tree, n.Left) || containsTransparent(tree, n.Right)
	default:
		return false
	}
}

// AddMaterial wraps a principled descriptor: the returned
// handle references the outermost node, which may be a Mix node added on
// top of the Principled root when the descriptor sets emission or
// non-unit alpha.
func (s *Scene) AddMaterial(albedo [3]float32, roughness, metallic, ior float32, emission [3]float32, emissionScale, alpha float32) handle.MaterialHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree := &material.Tree{}
	root := tree.AddPrincipled(albedo, roughness, metallic, ior)

	hasEmission := emission[0] > 0 || emission[1] > 0 || emission[2] > 0
	if hasEmission {
		em := tree.AddEmissive(emission, emissionScale)
		root = tree.AddMix(root, em, 0.5)
	}
	if alpha < 1.0 {
		trans := tree.AddTransparent(albedo)
		root = tree.AddMix(root, trans, 1.0-alpha)
	}
	_ = root

	h := s.materials.Add(tree)
	s.dirty = true
	return handle.MaterialHandle(h)
}

// AddTexture registers texture metadata for a texture whose pixel data has
// already been uploaded into an atlas and bindless table by the caller
// (internal/texstore owns pixel storage; Scene only needs the dimensions
// and bindless handle to report on it via Stats() and to resolve
// environment-map textures during Finalize).
func (s *Scene) AddTexture(h handle.TextureHandle, width, height int, isNormalMap bool) handle.TextureHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textures.Add(TextureRecord{Width: width, Height: height, IsNormalMap: isNormalMap, Handle: h})
	s.dirty = true
	return h
}

// AddMeshInstance places mesh in world space via xform and discovers any
// emissive triangles it introduces, registering a Triangle light for each
// one per the emissive-triangle-coverage invariant.
func (s *Scene) AddMeshInstance(mh handle.MeshHandle, xform vecmath.Mat4) (handle.InstanceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meshes.Get(handle.Handle(mh))
	if !ok {
		return handle.InstanceHandle(handle.Invalid), fmt.Errorf("scene: invalid mesh handle")
	}

	inv := xform.Inv()
	worldBounds := transformAABB(m.Bounds, xform)

	inst := &Instance{Mesh: mh, Transform: xform, InverseXform: inv, WorldBounds: worldBounds}
	h := s.instances.Add(inst)
	ih := handle.InstanceHandle(h)

	for i := 0; i < m.TriCount; i++ {
		frontMatHandle := m.FrontMat[i]
		if !frontMatHandle.Valid() {
			continue
		}
		tree, ok := s.materials.Get(handle.Handle(frontMatHandle))
		if !ok {
			continue
		}
		root := tree.Root()
		if !tree.IsEmissive(root) {
			continue
		}
		key := lights.TriangleLightSourceKey{TriangleIndex: uint32(m.TriStart + i), TransformIndex: uint32(ih)}
		if _, exists := s.Lights.FindTriangleLight(key); exists {
			continue
		}
		leaf, _ := tree.Resolve(root, 0.5)
		radiance := vecmath.Vec3(leaf.Emission).Mul(leaf.EmissionScale)
		s.Lights.Add(lights.Light{
			Kind:           lights.Triangle,
			Radiance:       radiance,
			TriangleIndex:  uint32(m.TriStart + i),
			TransformIndex: uint32(ih),
			Flags:          lights.FlagCastShadow | lights.FlagVisible,
		})
	}

	s.dirty = true
	return ih, nil
}

// RemoveMeshInstance is a conservative tombstone: the entry is marked
// removed and left in the store, and the next Finalize compacts the
// instance array and TLAS. This mirrors the source's own stubbed
// RemoveMeshInstance and RemoveNodes_nolock.
func (s *Scene) RemoveMeshInstance(ih handle.InstanceHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances.Get(handle.Handle(ih))
	if !ok {
		return false
	}
	inst.tombstoned = true
	s.dirty = true
	return true
}

func transformAABB(b bvh.AABB, m vecmath.Mat4) bvh.AABB {
	out := bvh.EmptyAABB()
	for i := 0; i < 8; i++ {
		p := vecmath.Vec3{
			pick(i&1 != 0, b.Max[0], b.Min[0]),
			pick(i&2 != 0, b.Max[1], b.Min[1]),
			pick(i&4 != 0, b.Max[2], b.Min[2]),
		}
		wp := m.MulPoint(p)
		out = out.UnionPoint([3]float32{wp[0], wp[1], wp[2]})
	}
	return out
}

func pick(cond bool, a, b float32) float32 {
	if cond {
		return a
	}
	return b
}

// rebaseNodes copies a mesh's node range out of the scene-global flat
// arrays and rewrites its child offsets and leaf triangle ranges to be
// relative to the copy (0-based), so the accel package can traverse it
// as a self-contained BLAS without knowing about the scene's global
// node/triangle numbering.
func rebaseNodes(nodes []bvh.Node, nodeBase, triBase uint32) []bvh.Node {
	out := append([]bvh.Node(nil), nodes...)
	for i := range out {
		if out[i].IsLeaf() {
			first, count := out[i].LeafRange()
			out[i].SetLeaf(first-triBase, count)
			continue
		}
		out[i].Offset(-int32(nodeBase))
	}
	return out
}

// SetEnvironment replaces the environment descriptor; the round-trip law
// SetEnvironment(env); GetEnvironment() == env holds because Environment
// is a plain value type copied in and out.
func (s *Scene) SetEnvironment(env Environment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Env = env
	s.dirty = true
}

func (s *Scene) GetEnvironment() Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Env
}

// Finalize rebuilds every derived structure that depends on edits made
// since the last Finalize, in a fixed order: compact removed instances,
// bake the physical sky (if enabled), build the env qtree (from the baked
// sky when there is one), then rebuild the TLAS.
func (s *Scene) Finalize(equirect func(x, y int) vecmath.Vec3, width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return
	}

	s.compactInstancesNolock()

	if s.Env.PhysicalSky {
		s.bakePhysicalSkyNolock()
		if s.skyPixels != nil {
			equirect = func(x, y int) vecmath.Vec3 { return s.skyPixels[y*s.skyW+x] }
			width, height = s.skyW, s.skyH
		}
	}

	if s.Env.MultipleImportance && (s.Env.Tint[0] > 0 || s.Env.Tint[1] > 0 || s.Env.Tint[2] > 0) && equirect != nil {
		s.QTree = envmap.Build(width, height, equirect)
	}

	s.rebuildTLASNolock()

	s.dirty = false
	log.Infof("scene finalized: %d instances, %d tlas nodes", s.instances.Len(), len(s.tlas))
}

// bakePhysicalSkyNolock renders the 512x256 physical-sky equirect texture
// from every directional light currently in the light table, caching the
// result on skyPixels for PhysicalSkyPixels and the qtree build above.
// A scene with no directional lights leaves skyPixels nil: there is
// nothing to bake against, matching the source renderer's behavior of
// clearing the environment map rather than baking a black one.
func (s *Scene) bakePhysicalSkyNolock() {
	const skyWidth, skyHeight = 512, 256

	var dirLights []skylight.DirectionalLight
	for i := 0; i < s.Lights.Len(); i++ {
		l := s.Lights.Get(uint32(i))
		if l.Kind != lights.Directional || l.Radiance == (vecmath.Vec3{}) {
			continue
		}
		dirLights = append(dirLights, skylight.DirectionalLight{
			Direction: l.Direction,
			Radiance:  l.Radiance,
		})
	}
	if len(dirLights) == 0 {
		s.skyPixels = nil
		s.skyW, s.skyH = 0, 0
		return
	}

	s.skyPixels = skylight.Bake(skyWidth, skyHeight, dirLights)
	s.skyW, s.skyH = skyWidth, skyHeight
}

// PhysicalSkyPixels returns the equirect texture baked by the most recent
// Finalize call, or nil if the environment isn't flagged PhysicalSky or no
// directional light exists to bake against.
func (s *Scene) PhysicalSkyPixels() ([]vecmath.Vec3, int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skyPixels, s.skyW, s.skyH
}

func (s *Scene) compactInstancesNolock() {
	var stale []handle.Handle
	s.instances.Each(func(h handle.Handle, inst *Instance) bool {
		if inst.tombstoned {
			stale = append(stale, h)
		}
		return true
	})
	for _, h := range stale {
		s.instances.Remove(h)
	}
}

// rebuildTLASNolock removes the previous TLAS nodes when they are still at
// the end of the global node array (if meshes were added after them, they
// stay in place unused), collects each live instance's world AABB as a
// unit primitive, builds a SAH BVH over them, and concatenates it to the
// global node array.
func (s *Scene) rebuildTLASNolock() {
	if s.tlasStart > 0 && s.tlasStart+len(s.tlas) == len(s.nodes) {
		s.nodes = s.nodes[:s.tlasStart]
	}

	var boxes []bvh.AABB
	var order []handle.Handle
	s.instances.Each(func(h handle.Handle, inst *Instance) bool {
		boxes = append(boxes, inst.WorldBounds)
		order = append(order, h)
		return true
	})

	opts := bvh.DefaultOptions()
	opts.SpatialSplits = false
	res := bvh.Build(boxes, opts)

	// res.Order[i] is the original (pre-build) index of the primitive that
	// now sits at leaf position i; reorder the handle list the same way so
	// a leaf range's "first+k" resolves to the right instance later.
	orderedHandles := make([]handle.Handle, len(res.Order))
	for i, primIdx := range res.Order {
		orderedHandles[i] = order[primIdx]
	}
	s.tlasOrder = orderedHandles

	s.tlasStart = len(s.nodes)
	nodeOffset := int32(s.tlasStart)
	for i := range res.Nodes {
		res.Nodes[i].Offset(nodeOffset)
	}
	s.tlas = res.Nodes
	s.nodes = append(s.nodes, res.Nodes...)
}

// Stats renders a table of per-category memory usage: meshes, instances,
// materials, lights and the BVH nodes derived from them.
func (s *Scene) Stats() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Asset Type", "Asset", "Size"})
	table.Append([]string{"Geometry", "---", fmtSize(s.vertices, s.nodes)})
	table.Append([]string{"", "Vertices", fmtSize(s.vertices)})
	table.Append([]string{"", "BVH nodes", fmtSize(s.nodes)})
	table.Append([]string{"", "Triangles", fmtSize(s.tris)})
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"Scene", "---", ""})
	table.Append([]string{"", "Meshes", fmt.Sprintf("%d", s.meshes.Len())})
	table.Append([]string{"", "Instances", fmt.Sprintf("%d", s.instances.Len())})
	table.Append([]string{"", "Materials", fmt.Sprintf("%d", s.materials.Len())})
	table.Append([]string{"", "Lights", fmt.Sprintf("%d", s.Lights.Len())})
	table.Append([]string{"", "Textures", fmt.Sprintf("%d", s.textures.Len())})
	table.SetFooter([]string{"Total", " ", strings.TrimLeft(fmtSize(s.vertices, s.nodes, s.tris), " ")})
	table.Render()
	return buf.String()
}

// FrameMesh is the read-only per-mesh view a Frame snapshot exposes to
// the renderer: the BLAS plus everything needed to shade a hit against
// it without touching the mutable scene again.
type FrameMesh struct {
	Accel      accel.Mesh
	Verts      []Vertex
	Indices    []uint32
	FrontMat   []handle.MaterialHandle
	BackMat    []handle.MaterialHandle
	FrontSolid []bool
	BackSolid  []bool
	// TriStart is this mesh's triangle-light numbering base (matching the
	// TriangleIndex AddMeshInstance used when registering emissive
	// triangles), so a shading kernel can turn a Hit's mesh-local
	// TriangleIndex back into the global key lights.Table indexes by.
	TriStart int
}

// Frame is an immutable snapshot of everything a render frame needs:
// scene mutation is forbidden between Finalize and the end of a frame
// (the caller's responsibility per the concurrency contract), so once
// taken this snapshot never changes underneath an in-flight tile job.
type Frame struct {
	Accel     accel.Scene
	Meshes    []FrameMesh
	Lights    *lights.Table
	Env       Environment
	QTree     envmap.QuadTree
	Materials map[handle.MaterialHandle]*material.Tree
}

// Frame takes the shared side of the lock and assembles a read-only
// snapshot for the renderer's tile workers, mirroring the concurrency
// contract's "renderer's per-frame snapshot takes the shared side".
func (s *Scene) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accelMeshes []accel.Mesh
	var frameMeshes []FrameMesh
	meshIndexOf := map[handle.Handle]int{}
	s.meshes.Each(func(h handle.Handle, m *Mesh) bool {
		meshIndexOf[h] = len(accelMeshes)
		// s.nodes/s.tris hold this mesh's BLAS as a subrange of the
		// scene-global flat arrays, and its child/leaf indices are
		// absolute offsets into those global arrays. Rebase a copy to
		// be self-contained (0-based) before handing it to the
		// renderer, the same way rebuildTLASNolock's leaf ranges are
		// already local to the per-build instance order.
		am := accel.Mesh{
			Nodes: rebaseNodes(s.nodes[m.NodeStart:m.NodeStart+m.NodeCount], uint32(m.NodeStart), uint32(m.TriStart)),
			Tris:  s.tris[m.TriStart : m.TriStart+m.TriCount],
		}
		accelMeshes = append(accelMeshes, am)
		frameMeshes = append(frameMeshes, FrameMesh{
			Accel:      am,
			Verts:      s.vertices[m.VertStart : m.VertStart+m.VertCount],
			Indices:    m.Indices,
			FrontMat:   m.FrontMat,
			BackMat:    m.BackMat,
			FrontSolid: m.FrontSolid,
			BackSolid:  m.BackSolid,
			TriStart:   m.TriStart,
		})
		return true
	})

	// TLAS leaf ranges index into s.tlasOrder's permutation, not the
	// sparse store's natural iteration order (see rebuildTLASNolock), so
	// this instance array must be built in that same order.
	instances := make([]accel.Instance, 0, len(s.tlasOrder))
	for _, h := range s.tlasOrder {
		inst, ok := s.instances.Get(h)
		assert.Truef(ok, "scene: tlasOrder references instance %s that is not in the instance store (stale after compaction without Finalize?)", h)
		if !ok {
			continue
		}
		mIdx, ok := meshIndexOf[handle.Handle(inst.Mesh)]
		assert.Truef(ok, "scene: instance %s references mesh %s that is not in the mesh store (no RemoveMesh exists, so this can only be a bug)", h, inst.Mesh)
		if !ok {
			continue
		}
		mesh, _ := s.meshes.Get(handle.Handle(inst.Mesh))
		instances = append(instances, accel.Instance{
			MeshIndex:      uint32(mIdx),
			ObjectToWorld:  inst.Transform,
			WorldToObject:  inst.InverseXform,
			SolidRanges:    mesh.FrontSolid,
			TransformIndex: uint32(h.Index()),
		})
	}

	// Rebase the TLAS relative to node 0 for the snapshot so the
	// renderer never has to know about the scene's global node array
	// offsets.
	tlas := append([]bvh.Node(nil), s.tlas...)
	for i := range tlas {
		tlas[i].Offset(int32(-s.tlasStart))
	}

	materials := make(map[handle.MaterialHandle]*material.Tree, s.materials.Len())
	s.materials.Each(func(h handle.Handle, tree *material.Tree) bool {
		materials[handle.MaterialHandle(h)] = tree
		return true
	})

	return Frame{
		Accel:     accel.Scene{TLAS: tlas, Instances: instances, Meshes: accelMeshes},
		Meshes:    frameMeshes,
		Lights:    s.Lights,
		Env:       s.Env,
		QTree:     s.QTree,
		Materials: materials,
	}
}

// MaterialTree resolves a material handle to its expression tree.
func (s *Scene) MaterialTree(h handle.MaterialHandle) (*material.Tree, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.materials.Get(handle.Handle(h))
}

func fmtSize(items ...interface{}) string {
	var totalBytes float32
	for _, item := range items {
		t := reflect.TypeOf(item)
		v := reflect.ValueOf(item)
		if v.Len() == 0 {
			continue
		}
		totalBytes += float32(int(t.Elem().Size()) * v.Len())
	}
	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", int(totalBytes))
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%5.1f mb", totalBytes/1e6)
}
