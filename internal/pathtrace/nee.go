package pathtrace

import (
	"github.com/prism-renderer/prism/internal/accel"
	"github.com/prism-renderer/prism/internal/lights"
	"github.com/prism-renderer/prism/internal/material"
	"github.com/prism-renderer/prism/internal/sampling"
	"github.com/prism-renderer/prism/internal/vecmath"
)

// sampleNEE draws one next-event-estimation sample by first choosing
// between the environment map's importance quad-tree and the analytic
// light table (mixture weight tr.pEnv, fixed for the whole frame), then
// tracing a shadow ray and MIS-weighting the result against the BSDF
// sampling strategy via the power heuristic. Delta BSDFs (Refractive,
// Transparent) can never be reached by a finite-measure NEE direction, so
// they skip the draw entirely.
func (tr *Tracer) sampleNEE(seq *sampling.Sequence, idx uint32, bounce int, leaf material.Node, sp shadingPoint, origin, wo vecmath.Vec3) vecmath.Vec3 {
	if leaf.Kind == material.Refractive || leaf.Kind == material.Transparent {
		return vecmath.Vec3{}
	}
	hasLights := tr.Frame.Lights != nil && tr.Frame.Lights.Len() > 0
	if tr.pEnv <= 0 && !hasLights {
		return vecmath.Vec3{}
	}

	strategyU := seq.Sample(idx, sampling.BounceDim(sampling.DimLightSelect, bounce))
	u0, v0 := seq.Sample2D(idx, sampling.BounceDim(sampling.DimLightUV, bounce))

	var dir vecmath.Vec3
	var dist, neePdf float32
	var le vecmath.Vec3

	if strategyU < tr.pEnv {
		su, sv, pdfUV := tr.Frame.QTree.Sample(u0, v0)
		pdfSolid := uvPDFToSolidAngle(pdfUV, sv)
		if pdfSolid <= 0 {
			return vecmath.Vec3{}
		}
		dir = equirectUVToDir(su, sv)
		neePdf = tr.pEnv * pdfSolid
		dist = 1e27
		le = tr.envRadianceSafe(dir)
	} else {
		if !hasLights {
			return vecmath.Vec3{}
		}
		lightsU := strategyU
		if tr.pEnv > 0 {
			lightsU = (strategyU - tr.pEnv) / (1 - tr.pEnv)
		}
		lightIdx, pmf, sampled := tr.Frame.Lights.Sample(lightsU)
		if !sampled {
			return vecmath.Vec3{}
		}
		l := tr.Frame.Lights.Get(lightIdx)

		var res lights.SampleResult
		if l.Kind == lights.Triangle {
			tp, found := resolveTriangleLight(&tr.Frame, tr.instanceOfTransform, l)
			if !found {
				return vecmath.Vec3{}
			}
			sampled2, ok := sampleTriangleLight(tp, l.Radiance, sp.Position, u0, v0)
			if !ok {
				return vecmath.Vec3{}
			}
			res = sampled2
		} else {
			res = lights.SamplePoint(l, sp.Position, u0, v0)
		}
		if res.PDF <= 0 {
			return vecmath.Vec3{}
		}
		dir = res.Direction
		dist = res.Distance
		neePdf = (1 - tr.pEnv) * pmf * res.PDF
		le = res.Radiance
	}

	if neePdf <= 0 {
		return vecmath.Vec3{}
	}
	cosTheta := dir.Dot(sp.Normal)
	if cosTheta <= 0 {
		return vecmath.Vec3{}
	}

	bsdfValue, bsdfPdf := evalBSDF(leaf, sp.Normal, wo, dir)
	if bsdfPdf <= 0 || bsdfValue == (vecmath.Vec3{}) {
		return vecmath.Vec3{}
	}

	shadowMax := dist
	if shadowMax < 1e26 {
		shadowMax = dist * (1 - 1e-3)
	}
	shadowRay := accel.Ray{Origin: origin, Dir: dir, TMin: 1e-4, TMax: shadowMax}
	if tr.Frame.Accel.AnyHit(shadowRay, true) {
		return vecmath.Vec3{}
	}

	weight := sampling.PowerHeuristic(1, neePdf, 1, bsdfPdf)
	return bsdfValue.MulVec(le).Mul(cosTheta * weight / neePdf)
}

func (tr *Tracer) envRadianceSafe(dir vecmath.Vec3) vecmath.Vec3 {
	if tr.Env == nil {
		return vecmath.Vec3{}
	}
	return tr.Env(dir)
}
