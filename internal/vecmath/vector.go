// Package vecmath provides the vector, matrix and quaternion kernels shared
// by every other package in the renderer.
package vecmath

import (
	"math"

	"golang.org/x/image/math/f32"
)

const epsilon float32 = 1e-6

type Vec2 f32.Vec2
type Vec3 f32.Vec3
type Vec4 f32.Vec4

func XY(x, y float32) Vec2       { return Vec2{x, y} }
func XYZ(x, y, z float32) Vec3   { return Vec3{x, y, z} }
func XYZW(x, y, z, w float32) Vec4 { return Vec4{x, y, z, w} }

func (v Vec2) Vec3(z float32) Vec3 { return Vec3{v[0], v[1], z} }
func (v Vec3) Vec4(w float32) Vec4 { return Vec4{v[0], v[1], v[2], w} }
func (v Vec4) Vec3() Vec3          { return Vec3{v[0], v[1], v[2]} }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v[0] + o[0], v[1] + o[1]} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v[0] - o[0], v[1] - o[1]} }
func (v Vec2) Mul(s float32) Vec2 { return Vec2{v[0] * s, v[1] * s} }
func (v Vec2) Dot(o Vec2) float32 { return v[0]*o[0] + v[1]*o[1] }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }
func (v Vec3) Mul(s float32) Vec3 { return Vec3{v[0] * s, v[1] * s, v[2] * s} }
func (v Vec3) MulVec(o Vec3) Vec3 { return Vec3{v[0] * o[0], v[1] * o[1], v[2] * o[2]} }
func (v Vec3) Neg() Vec3 { return Vec3{-v[0], -v[1], -v[2]} }

func (v Vec3) Dot(o Vec3) float32 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vec3) Len() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

func (v Vec3) LenSq() float32 { return v.Dot(v) }

func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < epsilon {
		return Vec3{}
	}
	inv := 1.0 / l
	return Vec3{v[0] * inv, v[1] * inv, v[2] * inv}
}

// MaxComponent returns the largest of the three channels; used by the
// Russian-roulette survival heuristic and by throughput clamping.
func (v Vec3) MaxComponent() float32 {
	m := v[0]
	if v[1] > m {
		m = v[1]
	}
	if v[2] > m {
		m = v[2]
	}
	return m
}

// Luminance returns the Rec.709 relative luminance of an RGB triple.
func (v Vec3) Luminance() float32 {
	return 0.2126*v[0] + 0.7152*v[1] + 0.0722*v[2]
}

func (v Vec3) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}

func MinVec3(a, b Vec3) Vec3 {
	out := a
	for i := 0; i < 3; i++ {
		if b[i] < out[i] {
			out[i] = b[i]
		}
	}
	return out
}

func MaxVec3(a, b Vec3) Vec3 {
	out := a
	for i := 0; i < 3; i++ {
		if b[i] > out[i] {
			out[i] = b[i]
		}
	}
	return out
}

func (v Vec4) Add(o Vec4) Vec4 { return Vec4{v[0] + o[0], v[1] + o[1], v[2] + o[2], v[3] + o[3]} }
func (v Vec4) Sub(o Vec4) Vec4 { return Vec4{v[0] - o[0], v[1] - o[1], v[2] - o[2], v[3] - o[3]} }
func (v Vec4) Mul(s float32) Vec4 {
	return Vec4{v[0] * s, v[1] * s, v[2] * s, v[3] * s}
}

func (v Vec4) Len() float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2] + v[3]*v[3])))
}

func (v Vec4) Normalize() Vec4 {
	l := v.Len()
	if l < epsilon {
		return Vec4{}
	}
	inv := 1.0 / l
	return Vec4{v[0] * inv, v[1] * inv, v[2] * inv, v[3] * inv}
}

// Reflect reflects an incident direction i around normal n (n must be
// normalized).
func Reflect(i, n Vec3) Vec3 {
	return i.Sub(n.Mul(2 * i.Dot(n)))
}

// Refract implements Snell's law; ok is false on total internal reflection.
func Refract(i, n Vec3, eta float32) (t Vec3, ok bool) {
	cosI := -n.Dot(i)
	sin2T := eta * eta * (1 - cosI*cosI)
	if sin2T > 1.0 {
		return Vec3{}, false
	}
	cosT := float32(math.Sqrt(float64(1 - sin2T)))
	return i.Mul(eta).Add(n.Mul(eta*cosI - cosT)), true
}

// Basis builds an orthonormal tangent frame around a normalized normal
// using the Duff et al. branchless construction.
func Basis(n Vec3) (t, b Vec3) {
	sign := float32(1.0)
	if n[2] < 0 {
		sign = -1.0
	}
	a := -1.0 / (sign + n[2])
	c := n[0] * n[1] * a
	t = Vec3{1.0 + sign*n[0]*n[0]*a, sign * c, -sign * n[0]}
	b = Vec3{c, sign + n[1]*n[1]*a, -n[1]}
	return t, b
}
