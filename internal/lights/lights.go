// Package lights implements the compact analytical + triangle +
// environment light table and its discrete-CDF selection and per-type
// sampling routines.
//
// Lights are a flat tagged array rather than a polymorphic interface
// slice, the same shape internal/material and internal/bvh use for their
// node arrays, so the whole table copies and indexes as one contiguous
// buffer with no per-light allocation.
package lights

import (
	"math"

	"github.com/prism-renderer/prism/internal/vecmath"
)

type Kind uint32

const (
	Directional Kind = iota
	Sphere
	Rect
	Disk
	Line
	Triangle
	Environment
)

const (
	FlagCastShadow uint32 = 1 << iota
	FlagVisible
	FlagSkyPortal
)

// Light is a tagged-union light descriptor. Only fields relevant to Kind
// are meaningful.
type Light struct {
	Kind      Kind
	Flags     uint32
	Radiance  vecmath.Vec3
	Position  vecmath.Vec3
	Direction vecmath.Vec3
	Normal    vecmath.Vec3
	Radius    float32
	Width     float32
	Height    float32
	CosAngle  float32 // spot half-angle cosine, sphere/disk solid-angle cache

	// Triangle-light back-reference.
	TriangleIndex  uint32
	TransformIndex uint32
}

// Table is the flat light array with an associated discrete PMF/CDF over
// light power; the PMF must be recomputed on every light-table edit or
// discrete sampling silently drifts off the true power distribution.
type Table struct {
	lights []Light
	cdf    []float32
	total  float32
}

func New() *Table { return &Table{} }

// Add appends a light and invalidates the cached CDF.
func (t *Table) Add(l Light) uint32 {
	t.lights = append(t.lights, l)
	t.cdf = nil
	return uint32(len(t.lights) - 1)
}

// Remove tombstones a light by zeroing its radiance (a conservative
// compaction-on-Finalize policy, mirroring the scene manager's handling
// of RemoveMeshInstance) and invalidates the cached CDF.
func (t *Table) Remove(index uint32) {
	if int(index) >= len(t.lights) {
		return
	}
	t.lights[index].Radiance = vecmath.Vec3{}
	t.cdf = nil
}

func (t *Table) Len() int { return len(t.lights) }

func (t *Table) Get(index uint32) Light { return t.lights[index] }

func power(l Light) float32 {
	lum := l.Radiance.Luminance()
	switch l.Kind {
	case Sphere:
		return lum * 4 * float32(math.Pi) * l.Radius * l.Radius
	case Rect:
		return lum * l.Width * l.Height
	case Disk:
		return lum * float32(math.Pi) * l.Radius * l.Radius
	case Triangle:
		return lum
	default:
		return lum
	}
}

// rebuild recomputes the discrete PMF/CDF over light power. Called lazily
// by Sample/PDF so every table mutation transparently invalidates it.
func (t *Table) rebuild() {
	t.cdf = make([]float32, len(t.lights))
	var acc float32
	for i, l := range t.lights {
		acc += power(l)
		t.cdf[i] = acc
	}
	t.total = acc
}

// Sample chooses one light by discrete-CDF sampling on light power and
// returns its index and selection probability (PMF).
func (t *Table) Sample(u float32) (index uint32, pmf float32, ok bool) {
	if t.cdf == nil {
		t.rebuild()
	}
	if t.total <= 0 || len(t.lights) == 0 {
		return 0, 0, false
	}
	target := u * t.total
	lo, hi := 0, len(t.cdf)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if t.cdf[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	p := power(t.lights[lo]) / t.total
	return uint32(lo), p, true
}

// PMF returns the selection probability of a specific light index under
// the current table.
func (t *Table) PMF(index uint32) float32 {
	if t.cdf == nil {
		t.rebuild()
	}
	if t.total <= 0 {
		return 0
	}
	return power(t.lights[index]) / t.total
}

// TotalPower returns the current table's total selection weight, used to
// balance the light table's share of a combined next-event-estimation
// strategy against the environment map's importance-sampling share.
func (t *Table) TotalPower() float32 {
	if t.cdf == nil {
		t.rebuild()
	}
	return t.total
}

// SampleResult carries a sampled point/direction on a light plus the
// solid-angle PDF of that sample, used by next-event estimation.
type SampleResult struct {
	Point     vecmath.Vec3
	Direction vecmath.Vec3
	Distance  float32
	PDF       float32
	Radiance  vecmath.Vec3
}

// SamplePoint draws a point on the given light as seen from shadingPoint,
// using the light's own geometric sampling routine.
func SamplePoint(l Light, shadingPoint vecmath.Vec3, u, v float32) SampleResult {
	switch l.Kind {
	case Directional:
		return SampleResult{
			Direction: l.Direction.Neg().Normalize(),
			Distance:  float32(math.Inf(1)),
			PDF:       1,
			Radiance:  l.Radiance,
		}
	case Sphere:
		dir := sampleSphereDir(u, v)
		point := l.Position.Add(dir.Mul(l.Radius))
		toLight := point.Sub(shadingPoint)
		dist := toLight.Len()
		area := 4 * float32(math.Pi) * l.Radius * l.Radius
		return SampleResult{Point: point, Direction: toLight.Normalize(), Distance: dist, PDF: dist * dist / (area * 0.5), Radiance: l.Radiance}
	case Rect:
		local := vecmath.Vec3{(u - 0.5) * l.Width, 0, (v - 0.5) * l.Height}
		point := l.Position.Add(local)
		toLight := point.Sub(shadingPoint)
		dist := toLight.Len()
		area := l.Width * l.Height
		return SampleResult{Point: point, Direction: toLight.Normalize(), Distance: dist, PDF: dist * dist / area, Radiance: l.Radiance}
	case Disk:
		r := l.Radius * float32(math.Sqrt(float64(u)))
		theta := 2 * float32(math.Pi) * v
		local := vecmath.Vec3{r * float32(math.Cos(float64(theta))), 0, r * float32(math.Sin(float64(theta)))}
		point := l.Position.Add(local)
		toLight := point.Sub(shadingPoint)
		dist := toLight.Len()
		area := float32(math.Pi) * l.Radius * l.Radius
		return SampleResult{Point: point, Direction: toLight.Normalize(), Distance: dist, PDF: dist * dist / area, Radiance: l.Radiance}
	case Triangle, Line, Environment:
		// Triangle lights are sampled in internal/pathtrace (triangle.go)
		// and the environment through the envmap quad-tree in pathtrace's
		// NEE; Line lights have no dedicated sampler. This fallback treats
		// the light as a point at l.Position.
		toLight := l.Position.Sub(shadingPoint)
		dist := toLight.Len()
		return SampleResult{Point: l.Position, Direction: toLight.Normalize(), Distance: dist, PDF: 1, Radiance: l.Radiance}
	}
	return SampleResult{}
}

func sampleSphereDir(u, v float32) vecmath.Vec3 {
	z := 1 - 2*u
	r := float32(math.Sqrt(math.Max(0, float64(1-z*z))))
	phi := 2 * float32(math.Pi) * v
	return vecmath.Vec3{r * float32(math.Cos(float64(phi))), r * float32(math.Sin(float64(phi))), z}
}

// TriangleLightSourceKey identifies the mesh triangle a Triangle light
// references, so every emissive triangle in the scene maps to exactly
// one light-table entry and none are double-counted or missed.
type TriangleLightSourceKey struct {
	TriangleIndex  uint32
	TransformIndex uint32
}

// FindTriangleLight reports whether a Triangle light already exists for
// the given (triangle, transform) pair, used by the scene manager to
// avoid double-registering emissive triangles.
func (t *Table) FindTriangleLight(key TriangleLightSourceKey) (uint32, bool) {
	for i, l := range t.lights {
		if l.Kind == Triangle && l.TriangleIndex == key.TriangleIndex && l.TransformIndex == key.TransformIndex {
			return uint32(i), true
		}
	}
	return 0, false
}
