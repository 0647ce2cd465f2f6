package sampling

import (
	"math"

	"github.com/prism-renderer/prism/internal/vecmath"
)

const pi = math.Pi

// CosineHemisphere draws a cosine-weighted direction around `normal` from a
// uniform 2D sample. Used by diffuse BSDF sampling.
func CosineHemisphere(normal vecmath.Vec3, u, v float32) (dir vecmath.Vec3, pdf float32) {
	r := float32(math.Sqrt(float64(u)))
	theta := 2 * pi * v

	x := r * float32(math.Cos(float64(theta)))
	y := r * float32(math.Sin(float64(theta)))
	z := float32(math.Sqrt(math.Max(0, float64(1-u))))

	t, b := vecmath.Basis(normal)
	dir = t.Mul(x).Add(b.Mul(y)).Add(normal.Mul(z)).Normalize()
	pdf = z / pi
	return dir, pdf
}

// CosineHemispherePDF returns the PDF of the cosine-weighted hemisphere
// distribution for a given cosine of the angle to the normal.
func CosineHemispherePDF(cosTheta float32) float32 {
	if cosTheta <= 0 {
		return 0
	}
	return cosTheta / pi
}

// UniformSphere draws a direction uniformly distributed over the unit
// sphere; used for the environment quad-tree fallback and for point/sphere
// light sampling.
func UniformSphere(u, v float32) vecmath.Vec3 {
	z := 1 - 2*u
	r := float32(math.Sqrt(math.Max(0, float64(1-z*z))))
	phi := 2 * pi * v
	return vecmath.Vec3{r * float32(math.Cos(float64(phi))), r * float32(math.Sin(float64(phi))), z}
}

// UniformDisk maps a unit square sample to a unit disk via concentric
// mapping, used for thin-lens aperture sampling.
func UniformDisk(u, v float32) (x, y float32) {
	ox, oy := 2*u-1, 2*v-1
	if ox == 0 && oy == 0 {
		return 0, 0
	}
	var r, theta float32
	if abs32(ox) > abs32(oy) {
		r = ox
		theta = (pi / 4) * (oy / ox)
	} else {
		r = oy
		theta = (pi / 2) - (pi/4)*(ox/oy)
	}
	return r * float32(math.Cos(float64(theta))), r * float32(math.Sin(float64(theta)))
}

// UniformCone samples a direction uniformly within a cone of half-angle
// whose cosine is cosThetaMax, oriented around `dir`; used for spot/sphere
// light NEE sampling.
func UniformCone(dir vecmath.Vec3, cosThetaMax, u, v float32) (sample vecmath.Vec3, pdf float32) {
	cosTheta := 1 - u*(1-cosThetaMax)
	sinTheta := float32(math.Sqrt(math.Max(0, float64(1-cosTheta*cosTheta))))
	phi := 2 * pi * v

	t, b := vecmath.Basis(dir)
	local := t.Mul(sinTheta * float32(math.Cos(float64(phi)))).
		Add(b.Mul(sinTheta * float32(math.Sin(float64(phi))))).
		Add(dir.Mul(cosTheta))

	solidAngle := 2 * pi * (1 - cosThetaMax)
	if solidAngle <= 0 {
		return dir, 1
	}
	return local.Normalize(), 1.0 / solidAngle
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// PowerHeuristic implements the beta=2 multiple-importance-sampling
// weight used to combine light-sampling and BSDF-sampling strategies.
// Unbiased MIS requires the two strategies' weights to sum to 1 for any
// sampled direction; PowerHeuristic satisfies this when called
// symmetrically for both strategies.
func PowerHeuristic(nf int, fPdf float32, ng int, gPdf float32) float32 {
	f := float32(nf) * fPdf
	g := float32(ng) * gPdf
	if f == 0 && g == 0 {
		return 0
	}
	return (f * f) / (f*f + g*g)
}

// BalanceHeuristic is the beta=1 variant, kept for callers (e.g. bidirectional
// debugging tools) that need the unweighted balance form.
func BalanceHeuristic(nf int, fPdf float32, ng int, gPdf float32) float32 {
	f := float32(nf) * fPdf
	g := float32(ng) * gPdf
	if f+g == 0 {
		return 0
	}
	return f / (f + g)
}
