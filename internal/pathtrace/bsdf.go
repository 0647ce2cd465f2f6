package pathtrace

import (
	"math"

	"github.com/prism-renderer/prism/internal/material"
	"github.com/prism-renderer/prism/internal/sampling"
	"github.com/prism-renderer/prism/internal/vecmath"
)

// bsdfSample is the result of importance-sampling a resolved material leaf
// at a shading point: an outgoing direction, the BSDF value for that
// direction, its solid-angle PDF, and whether the lobe is a delta
// distribution (mirror reflection/refraction) that next-event estimation
// can never hit and therefore must not be MIS-weighted against.
type bsdfSample struct {
	Dir      vecmath.Vec3
	Value    vecmath.Vec3
	Pdf      float32
	Specular bool
}

const invPi = float32(1 / math.Pi)

// mirrorDir reflects wo (pointing away from the surface, toward the
// previous vertex) about the shading normal to get the direction a
// perfect mirror would send the next bounce.
func mirrorDir(wo, n vecmath.Vec3) vecmath.Vec3 {
	return vecmath.Reflect(wo.Neg(), n)
}

// schlickFresnel is the Schlick approximation to the Fresnel reflectance
// at normal incidence f0, evaluated at the given cosine of the angle to
// the normal.
func schlickFresnel(f0, cosTheta float32) float32 {
	m := clamp01(1 - cosTheta)
	m2 := m * m
	return f0 + (1-f0)*m2*m2*m
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// glossyLobeExponent maps [0,1] roughness to a Phong-style specular
// exponent, a deliberately simpler stand-in for full GGX
// visible-normal sampling.
func glossyLobeExponent(roughness float32) float32 {
	r := clamp01(roughness)
	if r < 1e-3 {
		r = 1e-3
	}
	return 2/(r*r) - 2
}

// samplePhongLobe cosine-power importance-samples a lobe around `axis`
// with exponent `exp`, returning the sampled direction and its PDF.
func samplePhongLobe(axis vecmath.Vec3, exp, u, v float32) (dir vecmath.Vec3, pdf float32) {
	cosTheta := float32(math.Pow(float64(u), 1/float64(exp+1)))
	sinTheta := float32(math.Sqrt(math.Max(0, float64(1-cosTheta*cosTheta))))
	phi := 2 * math.Pi * float64(v)

	t, b := vecmath.Basis(axis)
	local := t.Mul(sinTheta * float32(math.Cos(phi))).
		Add(b.Mul(sinTheta * float32(math.Sin(phi)))).
		Add(axis.Mul(cosTheta))
	dir = local.Normalize()
	pdf = (exp + 1) / (2 * math.Pi) * float32(math.Pow(float64(cosTheta), float64(exp)))
	return dir, pdf
}

// phongLobePDF returns the PDF of samplePhongLobe for a direction already
// known to have cosine `cosAlpha` with the lobe axis.
func phongLobePDF(exp, cosAlpha float32) float32 {
	if cosAlpha <= 0 {
		return 0
	}
	return (exp + 1) / (2 * math.Pi) * float32(math.Pow(float64(cosAlpha), float64(exp)))
}

// sampleBSDF importance-samples the resolved material leaf's lobe at a
// shading point with geometric/shading normal n (facing the same side as
// wo) and outgoing direction wo (pointing away from the surface, toward
// the previous path vertex). It returns false for an Emissive leaf and
// when a sampled glossy direction falls below the surface; total internal
// reflection at a Refractive leaf yields a mirror-reflection sample.
func sampleBSDF(leaf material.Node, n, wo vecmath.Vec3, u, v, u2 float32) (bsdfSample, bool) {
	switch leaf.Kind {
	case material.Diffuse:
		dir, pdf := sampling.CosineHemisphere(n, u, v)
		if pdf <= 0 {
			return bsdfSample{}, false
		}
		albedo := vecmath.Vec3(leaf.Albedo)
		return bsdfSample{Dir: dir, Value: albedo.Mul(invPi), Pdf: pdf}, true

	case material.Glossy:
		exp := glossyLobeExponent(leaf.Roughness)
		axis := mirrorDir(wo, n)
		dir, pdf := samplePhongLobe(axis, exp, u, v)
		if dir.Dot(n) <= 0 || pdf <= 0 {
			return bsdfSample{}, false
		}
		albedo := vecmath.Vec3(leaf.Albedo)
		norm := (exp + 2) / (exp + 1)
		val := albedo.Mul(norm * invPi / 2)
		return bsdfSample{Dir: dir, Value: val, Pdf: pdf}, true

	case material.Refractive:
		return sampleRefractive(leaf, n, wo, u)

	case material.Principled:
		return samplePrincipled(leaf, n, wo, u, v, u2)

	case material.Transparent:
		// Pass through undeviated, scaling throughput by the base colour
		// only: folding 1/cosTheta into Value (the same delta convention
		// sampleRefractive uses) cancels the generic trace() throughput
		// update's cosTheta/Pdf term so no spurious cosine falloff is
		// applied to a surface the ray didn't actually scatter off of.
		dir := wo.Neg()
		cosTheta := absFloat(dir.Dot(n))
		if cosTheta < 1e-6 {
			cosTheta = 1e-6
		}
		albedo := vecmath.Vec3(leaf.Albedo)
		if albedo == (vecmath.Vec3{}) {
			albedo = vecmath.Vec3{1, 1, 1}
		}
		return bsdfSample{Dir: dir, Value: albedo.Mul(1 / cosTheta), Pdf: 1, Specular: true}, true

	case material.Emissive:
		return bsdfSample{}, false
	}
	return bsdfSample{}, false
}

// sampleRefractive stochastically chooses between specular reflection and
// refraction at a smooth dielectric interface using the Fresnel term as
// the selection probability, which is the standard unbiased way to
// importance-sample a two-delta-lobe BSDF.
func sampleRefractive(leaf material.Node, n, wo vecmath.Vec3, u float32) (bsdfSample, bool) {
	cosI := wo.Dot(n)
	entering := cosI > 0
	nl := n
	eta := leaf.ExtIOR / leaf.IntIOR
	if !entering {
		nl = n.Neg()
		cosI = -cosI
		eta = leaf.IntIOR / leaf.ExtIOR
	}

	f0 := (leaf.IntIOR - leaf.ExtIOR) / (leaf.IntIOR + leaf.ExtIOR)
	f0 *= f0
	fr := schlickFresnel(f0, cosI)

	albedo := vecmath.Vec3(leaf.Albedo)
	if albedo == (vecmath.Vec3{}) {
		albedo = vecmath.Vec3{1, 1, 1}
	}

	if u < fr {
		dir := mirrorDir(wo, nl)
		val := albedo.Mul(fr / dir.Dot(nl))
		return bsdfSample{Dir: dir, Value: val, Pdf: fr, Specular: true}, true
	}

	t, ok := vecmath.Refract(wo.Neg(), nl, eta)
	if !ok {
		dir := mirrorDir(wo, nl)
		val := albedo.Mul(1 / dir.Dot(nl))
		return bsdfSample{Dir: dir, Value: val, Pdf: 1, Specular: true}, true
	}
	dir := t.Normalize()
	cosO := -dir.Dot(nl)
	if cosO <= 0 {
		return bsdfSample{}, false
	}
	radianceScale := eta * eta
	val := albedo.Mul((1 - fr) * radianceScale / cosO)
	return bsdfSample{Dir: dir, Value: val, Pdf: 1 - fr, Specular: true}, true
}

// samplePrincipled blends a diffuse lobe and a glossy (metallic) lobe by
// the metallic parameter, matching the reduced single-lobe-per-sample
// approximation the material tree documents for AddPrincipled: ExtIOR
// carries metallic and IntIOR carries the dielectric/conductor IOR.
func samplePrincipled(leaf material.Node, n, wo vecmath.Vec3, u, v, u2 float32) (bsdfSample, bool) {
	metallic := clamp01(leaf.ExtIOR)
	if u2 < metallic {
		glossy := material.Node{Kind: material.Glossy, Albedo: leaf.Albedo, Roughness: leaf.Roughness}
		s, ok := sampleBSDF(glossy, n, wo, u, v, u2)
		if !ok {
			return s, ok
		}
		s.Value = s.Value.Mul(metallic)
		s.Pdf *= metallic
		return s, true
	}
	diffuse := material.Node{Kind: material.Diffuse, Albedo: leaf.Albedo}
	s, ok := sampleBSDF(diffuse, n, wo, u, v, u2)
	if !ok {
		return s, ok
	}
	s.Value = s.Value.Mul(1 - metallic)
	s.Pdf *= 1 - metallic
	return s, true
}

// evalBSDF returns the BSDF value and solid-angle PDF for an already-known
// direction, used by next-event estimation to weigh a light sample drawn
// independently of BSDF sampling. Delta lobes (Refractive, Transparent)
// can never be hit by a finite-measure NEE direction, so they evaluate to
// zero.
func evalBSDF(leaf material.Node, n, wo, wi vecmath.Vec3) (value vecmath.Vec3, pdf float32) {
	cosI := wi.Dot(n)
	switch leaf.Kind {
	case material.Diffuse:
		if cosI <= 0 {
			return vecmath.Vec3{}, 0
		}
		return vecmath.Vec3(leaf.Albedo).Mul(invPi), sampling.CosineHemispherePDF(cosI)

	case material.Glossy:
		if cosI <= 0 {
			return vecmath.Vec3{}, 0
		}
		exp := glossyLobeExponent(leaf.Roughness)
		axis := mirrorDir(wo, n)
		cosAlpha := wi.Dot(axis)
		p := phongLobePDF(exp, cosAlpha)
		if p <= 0 {
			return vecmath.Vec3{}, 0
		}
		norm := (exp + 2) / (exp + 1)
		return vecmath.Vec3(leaf.Albedo).Mul(norm * invPi / 2), p

	case material.Principled:
		metallic := clamp01(leaf.ExtIOR)
		gv, gp := evalBSDF(material.Node{Kind: material.Glossy, Albedo: leaf.Albedo, Roughness: leaf.Roughness}, n, wo, wi)
		dv, dp := evalBSDF(material.Node{Kind: material.Diffuse, Albedo: leaf.Albedo}, n, wo, wi)
		return gv.Mul(metallic).Add(dv.Mul(1 - metallic)), metallic*gp + (1-metallic)*dp

	default:
		return vecmath.Vec3{}, 0
	}
}
