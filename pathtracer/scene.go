// Package pathtracer is the public façade a host application drives: it
// wraps internal/scene's mutable world, internal/texstore's atlas/bindless
// texture pipeline, and internal/pathtrace's estimator behind a
// handle-based builder API (CreateRenderer, Scene, Add*/Remove*,
// Finalize, RenderScene, GetPixelsRef, AddCamera/SetCurrentCamera).
//
// The split between this package and internal/scene keeps the mutable
// world (asset/scene) separate from frame orchestration (renderer);
// texture decoding/upload is kept here rather than in internal/scene
// because only a host application knows which image format/decoder a
// given texture file needs, so that decision is made at the call site
// instead of being baked into the scene graph.
package pathtracer

import (
	"fmt"
	"io"

	"github.com/prism-renderer/prism/internal/handle"
	"github.com/prism-renderer/prism/internal/material"
	"github.com/prism-renderer/prism/internal/pathtrace"
	"github.com/prism-renderer/prism/internal/scene"
	"github.com/prism-renderer/prism/internal/sparse"
	"github.com/prism-renderer/prism/internal/texstore"
	"github.com/prism-renderer/prism/internal/vecmath"
)

// Scene is the host-facing builder: every exported method forwards to
// internal/scene.Scene's exported (locking) mutators, plus the texture and
// camera bookkeeping the internal scene package deliberately doesn't own.
type Scene struct {
	inner *scene.Scene

	allocator *texstore.Allocator
	bindless  *texstore.BindlessTable
	decoders  map[string]texstore.Decoder

	// envPixels/envW/envH cache the decoded environment map so Finalize
	// can hand internal/scene.Scene.Finalize the equirect(x,y) callback
	// it needs to build the importance quad-tree, and so RenderScene can
	// build the EnvRadiance closure internal/pathtrace.Tracer samples
	// from at arbitrary directions rather than only at texel centers.
	envPixels []vecmath.Vec3
	envW      int
	envH      int

	cameras       *sparse.Store[pathtrace.Camera]
	currentCamera handle.CameraHandle
}

// CreateScene returns a new, empty Scene builder.
func CreateScene() *Scene {
	return &Scene{
		inner:     scene.New(),
		allocator: texstore.NewAllocator(),
		bindless:  texstore.NewBindlessTable(),
		decoders:  map[string]texstore.Decoder{"png": texstore.PNGDecoder{}},
		cameras:   sparse.New[pathtrace.Camera](),
	}
}

// AddMesh forwards to internal/scene.Scene.AddMesh.
func (s *Scene) AddMesh(name string, verts []scene.Vertex, triIndices []uint32) handle.MeshHandle {
	return s.inner.AddMesh(name, verts, triIndices)
}

// AddMeshInstance forwards to internal/scene.Scene.AddMeshInstance.
func (s *Scene) AddMeshInstance(mh handle.MeshHandle, xform vecmath.Mat4) (handle.InstanceHandle, error) {
	return s.inner.AddMeshInstance(mh, xform)
}

// RemoveMeshInstance forwards to internal/scene.Scene.RemoveMeshInstance.
func (s *Scene) RemoveMeshInstance(ih handle.InstanceHandle) bool {
	return s.inner.RemoveMeshInstance(ih)
}

// SetTriangleMaterial forwards to internal/scene.Scene.SetTriangleMaterial.
func (s *Scene) SetTriangleMaterial(mh handle.MeshHandle, start, count int, front, back handle.MaterialHandle, matTree *material.Tree) bool {
	return s.inner.SetTriangleMaterial(mh, start, count, front, back, matTree)
}

// AddMaterial forwards to internal/scene.Scene.AddMaterial.
func (s *Scene) AddMaterial(albedo [3]float32, roughness, metallic, ior float32, emission [3]float32, emissionScale, alpha float32) handle.MaterialHandle {
	return s.inner.AddMaterial(albedo, roughness, metallic, ior, emission, emissionScale, alpha)
}

// AddTexture decodes a texture from r (dispatching on kind, e.g. "png"),
// packs it into the atlas format texstore.SelectAtlasFormat picks, registers
// it in the bindless table, and records its metadata with the scene so
// Stats() and environment lookups can see it. isNormalMap/useCompression
// steer atlas-format selection exactly as texstore.SelectAtlasFormat
// documents.
func (s *Scene) AddTexture(kind string, r io.Reader, isNormalMap, useCompression bool) (handle.TextureHandle, error) {
	dec, ok := s.decoders[kind]
	if !ok {
		return handle.TextureHandle(handle.Invalid), fmt.Errorf("pathtracer: no decoder registered for %q", kind)
	}
	rgba, w, h, err := dec.Decode(r)
	if err != nil {
		return handle.TextureHandle(handle.Invalid), err
	}

	baseFormat := texstore.FormatRGBA8
	flags := uint32(0)
	if isNormalMap {
		rgb := stripAlpha(rgba)
		rg, reconstructZ := texstore.RepackNormalMap(rgb, w, h)
		_ = rg // packed pixel bytes are handed to the atlas backing store by the host; this façade only tracks metadata/handles.
		if reconstructZ {
			flags |= texstore.FlagReconstructZ
		}
	} else {
		flags |= texstore.FlagSRGB
	}

	format := texstore.SelectAtlasFormat(baseFormat, isNormalMap, useCompression)
	alloc := s.allocator.Alloc(format, w, h)
	th := s.bindless.Register(alloc, flags)

	return s.inner.AddTexture(th, w, h, isNormalMap), nil
}

func stripAlpha(rgba []byte) []byte {
	out := make([]byte, len(rgba)/4*3)
	for i, o := 0, 0; i < len(rgba); i, o = i+4, o+3 {
		out[o], out[o+1], out[o+2] = rgba[i], rgba[i+1], rgba[i+2]
	}
	return out
}

// SetEnvironmentHDR decodes a Radiance RGBE (.hdr) source into the linear
// float32 buffer both the environment quad-tree builder and the tracer's
// miss-radiance lookup read from, and forwards the descriptor fields (tint,
// rotation, importance-sampling flag) to internal/scene.Scene.
func (s *Scene) SetEnvironmentHDR(r io.Reader, env scene.Environment) error {
	pixels, w, h, err := texstore.DecodeRGBE(r)
	if err != nil {
		return err
	}
	s.envW, s.envH = w, h
	s.envPixels = make([]vecmath.Vec3, w*h)
	for i := range s.envPixels {
		s.envPixels[i] = vecmath.Vec3{pixels[i*3], pixels[i*3+1], pixels[i*3+2]}
	}
	s.inner.SetEnvironment(env)
	return nil
}

// SetEnvironment sets the environment descriptor without HDR pixel data
// (e.g. a solid-tint sky with no importance-sampled texture).
func (s *Scene) SetEnvironment(env scene.Environment) {
	s.inner.SetEnvironment(env)
}

// AddCamera appends a camera descriptor and returns its handle; the first
// camera added also becomes the current camera.
func (s *Scene) AddCamera(pos, target, worldUp vecmath.Vec3, fovY, aspect, lensRadius, focalDistance float32) handle.CameraHandle {
	cam := pathtrace.NewCamera(pos, target, worldUp, fovY, aspect, lensRadius, focalDistance)
	h := handle.CameraHandle(s.cameras.Add(cam))
	if !s.currentCamera.Valid() {
		s.currentCamera = h
	}
	return h
}

// SetCurrentCamera selects which camera RenderScene traces through.
func (s *Scene) SetCurrentCamera(h handle.CameraHandle) bool {
	if _, ok := s.cameras.Get(handle.Handle(h)); !ok {
		return false
	}
	s.currentCamera = h
	return true
}

func (s *Scene) currentCameraValue() (pathtrace.Camera, bool) {
	return s.cameras.Get(handle.Handle(s.currentCamera))
}

// pixelAt samples the decoded environment map (nearest, equirectangular)
// for envmap.Build's pixel(x, y) callback.
func (s *Scene) pixelAt(x, y int) vecmath.Vec3 {
	if s.envPixels == nil {
		return vecmath.Vec3{}
	}
	if x < 0 || y < 0 || x >= s.envW || y >= s.envH {
		return vecmath.Vec3{}
	}
	return s.envPixels[y*s.envW+x]
}

// Finalize rebuilds every derived structure (env quad-tree, TLAS) that
// has gone stale since the last call.
func (s *Scene) Finalize() {
	if s.envPixels != nil {
		s.inner.Finalize(s.pixelAt, s.envW, s.envH)
	} else {
		s.inner.Finalize(nil, 0, 0)
	}
	if s.inner.GetEnvironment().PhysicalSky {
		if pixels, w, h := s.inner.PhysicalSkyPixels(); pixels != nil {
			s.envPixels, s.envW, s.envH = pixels, w, h
		}
	}
}

// Stats forwards to internal/scene.Scene.Stats.
func (s *Scene) Stats() string { return s.inner.Stats() }

// envRadiance samples the decoded environment map bilinearly at an
// arbitrary world direction for the tracer's miss-radiance lookup, tinted
// by the environment descriptor's Tint.
func (s *Scene) envRadiance(dir vecmath.Vec3) vecmath.Vec3 {
	env := s.inner.GetEnvironment()
	if s.envPixels == nil {
		return env.Tint
	}
	u, v := pathtrace.EquirectDirToUV(dir)
	u += env.EnvMapRotation
	u -= float32(int(u))
	if u < 0 {
		u += 1
	}
	c := s.sampleEnvBilinear(u, v)
	return vecmath.Vec3{c[0] * env.Tint[0], c[1] * env.Tint[1], c[2] * env.Tint[2]}
}

func (s *Scene) sampleEnvBilinear(u, v float32) vecmath.Vec3 {
	fx := u*float32(s.envW) - 0.5
	fy := v*float32(s.envH) - 0.5
	x0, y0 := int(fx), int(fy)
	tx, ty := fx-float32(x0), fy-float32(y0)

	wrap := func(x int) int {
		m := x % s.envW
		if m < 0 {
			m += s.envW
		}
		return m
	}
	clampY := func(y int) int {
		if y < 0 {
			return 0
		}
		if y >= s.envH {
			return s.envH - 1
		}
		return y
	}

	c00 := s.envPixels[clampY(y0)*s.envW+wrap(x0)]
	c10 := s.envPixels[clampY(y0)*s.envW+wrap(x0+1)]
	c01 := s.envPixels[clampY(y0+1)*s.envW+wrap(x0)]
	c11 := s.envPixels[clampY(y0+1)*s.envW+wrap(x0+1)]

	top := c00.Mul(1 - tx).Add(c10.Mul(tx))
	bottom := c01.Mul(1 - tx).Add(c11.Mul(tx))
	return top.Mul(1 - ty).Add(bottom.Mul(ty))
}
