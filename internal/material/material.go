// Package material implements the material expression tree the path
// tracer evaluates at each shading point: a flat array of tagged-union
// nodes with child indices instead of pointers, so the tree can never
// contain a cycle and never needs an allocator per intersection.
//
// Each node carries its own bxdf parameter set (reflectance, roughness,
// IOR, emission) and, for Mix nodes, child indices into the same array
// rather than pointers, so an entire material tree can be uploaded and
// copied as one contiguous buffer.
package material

import "github.com/prism-renderer/prism/internal/handle"

// Kind identifies which BSDF a Node evaluates.
type Kind uint32

const (
	Invalid Kind = iota
	Diffuse
	Glossy
	Refractive
	Emissive
	Mix
	Transparent
	Principled
)

func (k Kind) String() string {
	switch k {
	case Diffuse:
		return "diffuse"
	case Glossy:
		return "glossy"
	case Refractive:
		return "refractive"
	case Emissive:
		return "emissive"
	case Mix:
		return "mix"
	case Transparent:
		return "transparent"
	case Principled:
		return "principled"
	}
	return "invalid"
}

// Default parameter values shared by callers that build nodes directly.
var (
	DefaultReflectance     = [3]float32{0.2, 0.2, 0.2}
	DefaultSpecularity     = [3]float32{1.0, 1.0, 1.0}
	DefaultRoughness       = float32(0.1)
	DefaultRadiance        = [3]float32{1.0, 1.0, 1.0}
	DefaultRadianceScale   = float32(1.0)
	DefaultIntIOR          = float32(1.5)
	DefaultExtIOR          = float32(1.0)
)

// Node is one tagged-union entry in a material Tree. Only the fields
// relevant to its Kind are meaningful; the rest are zero.
type Node struct {
	Kind Kind

	Albedo    [3]float32
	Roughness float32
	IntIOR    float32
	ExtIOR    float32

	Emission      [3]float32
	EmissionScale float32

	AlbedoTexture handle.TextureHandle
	NormalTexture handle.TextureHandle

	// Mix-only: Left/Right index into the same Tree.Nodes slice and
	// MUST refer to an earlier index, guaranteeing the tree is a DAG
	// with no cycles by construction. Weight selects Right with
	// probability Weight and Left with probability 1-Weight.
	Left, Right uint32
	Weight      float32
}

// Tree is a flat, index-addressed material expression tree. The last
// appended node is conventionally the tree's root.
type Tree struct {
	Nodes []Node
}

// Root returns the index of the tree's root node (its last entry).
func (t *Tree) Root() uint32 {
	return uint32(len(t.Nodes) - 1)
}

func (t *Tree) add(n Node) uint32 {
	t.Nodes = append(t.Nodes, n)
	return uint32(len(t.Nodes) - 1)
}

// AddDiffuse appends a Lambertian diffuse node.
func (t *Tree) AddDiffuse(albedo [3]float32, albedoTex handle.TextureHandle) uint32 {
	return t.add(Node{Kind: Diffuse, Albedo: albedo, AlbedoTexture: albedoTex})
}

// AddGlossy appends a microfacet-conductor node.
func (t *Tree) AddGlossy(albedo [3]float32, roughness float32) uint32 {
	return t.add(Node{Kind: Glossy, Albedo: albedo, Roughness: roughness})
}

// AddRefractive appends a smooth or rough dielectric node.
func (t *Tree) AddRefractive(albedo [3]float32, roughness, intIOR, extIOR float32) uint32 {
	return t.add(Node{Kind: Refractive, Albedo: albedo, Roughness: roughness, IntIOR: intIOR, ExtIOR: extIOR})
}

// AddEmissive appends a light-emitting node.
func (t *Tree) AddEmissive(radiance [3]float32, scale float32) uint32 {
	return t.add(Node{Kind: Emissive, Emission: radiance, EmissionScale: scale})
}

// AddTransparent appends a pass-through (alpha cutout) node that scales
// throughput by baseColor without scattering.
func (t *Tree) AddTransparent(baseColor [3]float32) uint32 {
	return t.add(Node{Kind: Transparent, Albedo: baseColor})
}

// AddPrincipled appends a single-lobe approximation of a full principled
// (metallic/roughness) shading model, stored using the same Albedo /
// Roughness / IntIOR fields as Glossy/Refractive but tagged distinctly so
// the shading kernel can dispatch to the combined lobe evaluator.
func (t *Tree) AddPrincipled(albedo [3]float32, roughness, metallic, ior float32) uint32 {
	return t.add(Node{Kind: Principled, Albedo: albedo, Roughness: roughness, IntIOR: ior, ExtIOR: metallic})
}

// AddMix appends a stochastic blend between two earlier nodes. left and
// right must already exist in the tree (indices less than len(t.Nodes)),
// which is what rules out cycles: a Mix node can only ever reference
// nodes appended strictly before it.
func (t *Tree) AddMix(left, right uint32, weight float32) uint32 {
	return t.add(Node{Kind: Mix, Left: left, Right: right, Weight: weight})
}

// Resolve walks Mix nodes starting at root, consuming one stochastic
// sample per Mix encountered, and returns the first non-Mix leaf node it
// reaches together with the accumulated selection probability (the
// product of the per-Mix branch probabilities taken). Because every Mix
// node's children have strictly smaller indices than the Mix node itself,
// the walk strictly decreases the current index on every step and is
// guaranteed to terminate within len(t.Nodes) steps.
func (t *Tree) Resolve(root uint32, u float32) (leaf Node, prob float32) {
	idx := root
	prob = 1
	for {
		n := t.Nodes[idx]
		if n.Kind != Mix {
			return n, prob
		}
		if u < n.Weight {
			prob *= n.Weight
			idx = n.Right
			u = u / n.Weight
		} else {
			prob *= 1 - n.Weight
			idx = n.Left
			u = (u - n.Weight) / (1 - n.Weight)
		}
	}
}

// IsEmissive reports whether resolving root can ever land on an Emissive
// leaf, used by the scene manager to discover emissive triangles for
// next-event estimation without allocating.
func (t *Tree) IsEmissive(root uint32) bool {
	n := t.Nodes[root]
	switch n.Kind {
	case Emissive:
		return true
	case Mix:
		return t.IsEmissive(n.Left) || t.IsEmissive(n.Right)
	default:
		return false
	}
}
