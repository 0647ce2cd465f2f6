// Package skylight bakes a physical-sky environment texture: a
// Rayleigh+Mie single-scattering integration evaluated once per texel of
// a fixed-resolution equirectangular image, against whatever directional
// lights stand in for the sun in a scene.
//
// Grounded on the original renderer's PrepareSkyEnvMap/IntegrateScattering
// step, which ray-marches the atmosphere along each sky direction and
// accumulates in-scattered radiance from every directional light rather
// than running a full participating-media simulation; this keeps the same
// hard-coded, closed-form scattering model.
package skylight

import (
	"math"

	"github.com/prism-renderer/prism/internal/vecmath"
)

// DirectionalLight is the subset of a directional light's parameters the
// bake needs: Direction points the way the light travels (matching
// internal/lights.Light.Direction), Radiance is its color, and
// AngularRadius (radians) widens a point sun into a small disc; zero
// means no widening is applied.
type DirectionalLight struct {
	Direction     vecmath.Vec3
	Radiance      vecmath.Vec3
	AngularRadius float32
}

const (
	planetRadius     = float32(6371e3)
	atmosphereRadius = float32(6471e3)
	rayleighScaleH   = float32(8e3)
	mieScaleH        = float32(1.2e3)
	mieG             = float32(0.758)
	mieExtinctionMul = float32(1.1)

	scatterSteps      = 16
	opticalDepthSteps = 8
)

var (
	rayleighCoeff = vecmath.Vec3{5.8e-6, 13.5e-6, 33.1e-6}
	mieCoeff      = float32(21e-6)
)

// Bake renders a linear-RGB equirectangular sky texture of the given
// resolution, ray-marching the atmosphere along every texel's world
// direction (using the same equirect convention as decoded HDR
// environment textures) and summing each directional light's
// contribution.
func Bake(width, height int, dirLights []DirectionalLight) []vecmath.Vec3 {
	pixels := make([]vecmath.Vec3, width*height)
	if len(dirLights) == 0 || width <= 0 || height <= 0 {
		return pixels
	}

	toLights := make([]DirectionalLight, len(dirLights))
	for i, l := range dirLights {
		toLights[i] = DirectionalLight{
			Direction:     l.Direction.Neg().Normalize(),
			Radiance:      l.Radiance,
			AngularRadius: l.AngularRadius,
		}
	}

	// Perch the camera 1m above the ground so directions pointing straight
	// down still resolve against a sphere strictly larger than the origin.
	origin := vecmath.Vec3{0, planetRadius + 1, 0}
	maxRay := atmosphereRadius * 2

	for y := 0; y < height; y++ {
		v := (float32(y) + 0.5) / float32(height)
		for x := 0; x < width; x++ {
			u := (float32(x) + 0.5) / float32(width)
			dir := equirectUVToDir(u, v)

			var color vecmath.Vec3
			for _, l := range toLights {
				lightColor := l.Radiance
				if l.AngularRadius > 0 {
					r := float32(math.Tan(float64(l.AngularRadius)))
					lightColor = lightColor.Mul(float32(math.Pi) * r * r)
				}
				color = color.Add(integrateScattering(origin, dir, maxRay, l.Direction, lightColor))
			}
			pixels[y*width+x] = color
		}
	}
	return pixels
}

// integrateScattering accumulates in-scattered Rayleigh+Mie radiance
// along one view ray toward one light, ray-marching in fixed steps and,
// at each sample, marching a second time toward the light to accumulate
// the transmittance the in-scattered light suffered getting there.
func integrateScattering(origin, dir vecmath.Vec3, rayLength float32, lightDir, lightColor vecmath.Vec3) vecmath.Vec3 {
	_, tAtmoExit, ok := raySphere(origin, dir, atmosphereRadius)
	if !ok {
		return vecmath.Vec3{}
	}
	if tAtmoExit < rayLength {
		rayLength = tAtmoExit
	}
	if tGround, _, ok := raySphere(origin, dir, planetRadius); ok && tGround > 0 && tGround < rayLength {
		rayLength = tGround
	}
	if rayLength <= 0 {
		return vecmath.Vec3{}
	}

	stepSize := rayLength / float32(scatterSteps)
	cosTheta := dir.Dot(lightDir)
	rPhase := rayleighPhase(cosTheta)
	mPhase := miePhase(cosTheta, mieG)

	var rOpticalDepth, mOpticalDepth float32
	rayleighIn := vecmath.Vec3{}
	mieIn := vecmath.Vec3{}

	for i := 0; i < scatterSteps; i++ {
		t := stepSize * (float32(i) + 0.5)
		samplePos := origin.Add(dir.Mul(t))
		height := samplePos.Len() - planetRadius
		if height < 0 {
			break
		}
		rDens, mDens := densities(height)
		rOpticalDepth += rDens * stepSize
		mOpticalDepth += mDens * stepSize

		lightExit := atmosphereExitDistance(samplePos, lightDir)
		lightRDepth, lightMDepth := opticalDepth(samplePos, lightDir, lightExit)

		odR := rOpticalDepth + lightRDepth
		odM := (mOpticalDepth + lightMDepth) * mieExtinctionMul
		attenuation := rayleighCoeff.Mul(odR).Add(vecmath.Vec3{odM, odM, odM})
		transmittance := vecmath.Vec3{expf(-attenuation[0]), expf(-attenuation[1]), expf(-attenuation[2])}

		rayleighIn = rayleighIn.Add(transmittance.Mul(rDens * stepSize))
		mieIn = mieIn.Add(transmittance.Mul(mDens * stepSize))
	}

	rayleighTerm := rayleighIn.MulVec(rayleighCoeff).Mul(rPhase)
	mieTerm := mieIn.Mul(mieCoeff * mPhase)
	return rayleighTerm.Add(mieTerm).MulVec(lightColor)
}

func densities(height float32) (rayleigh, mie float32) {
	rayleigh = expf(-height / rayleighScaleH)
	mie = expf(-height / mieScaleH)
	return
}

// opticalDepth accumulates Rayleigh+Mie density along a ray of the given
// length, used for the per-sample ray toward the light; integrateScattering
// accumulates the view ray's depth inline.
func opticalDepth(origin, dir vecmath.Vec3, rayLength float32) (rayleighDepth, mieDepth float32) {
	if rayLength <= 0 {
		return 0, 0
	}
	stepSize := rayLength / float32(opticalDepthSteps)
	for i := 0; i < opticalDepthSteps; i++ {
		t := stepSize * (float32(i) + 0.5)
		pos := origin.Add(dir.Mul(t))
		height := pos.Len() - planetRadius
		if height < 0 {
			height = 0
		}
		r, m := densities(height)
		rayleighDepth += r * stepSize
		mieDepth += m * stepSize
	}
	return rayleighDepth, mieDepth
}

func atmosphereExitDistance(origin, dir vecmath.Vec3) float32 {
	_, t1, ok := raySphere(origin, dir, atmosphereRadius)
	if !ok || t1 < 0 {
		return 0
	}
	return t1
}

// raySphere intersects a ray against a sphere centered at the world
// origin (the planet center), returning the two hit distances along dir.
func raySphere(origin, dir vecmath.Vec3, radius float32) (t0, t1 float32, ok bool) {
	b := origin.Dot(dir)
	c := origin.Dot(origin) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, 0, false
	}
	sq := float32(math.Sqrt(float64(disc)))
	return -b - sq, -b + sq, true
}

func rayleighPhase(cosTheta float32) float32 {
	return 3.0 / (16.0 * math.Pi) * (1 + cosTheta*cosTheta)
}

func miePhase(cosTheta, g float32) float32 {
	g2 := g * g
	num := (1 - g2) * (1 + cosTheta*cosTheta)
	denom := (2 + g2) * float32(math.Pow(float64(1+g2-2*g*cosTheta), 1.5))
	if denom <= 0 {
		return 0
	}
	return 3.0 / (8.0 * math.Pi) * num / denom
}

func expf(x float32) float32 { return float32(math.Exp(float64(x))) }

// equirectUVToDir mirrors internal/pathtrace's equirectUVToDir mapping (v
// runs top (0, +Y) to bottom (1, -Y), u wraps longitude) so a baked sky
// texture lands on the exact same texels a decoded HDR equirect would,
// without this package importing internal/pathtrace (which itself needs
// internal/scene, and internal/scene bakes the sky).
func equirectUVToDir(u, v float32) vecmath.Vec3 {
	theta := float64(v) * math.Pi
	phi := (float64(u)*2 - 1) * math.Pi
	sinTheta, cosTheta := math.Sincos(theta)
	sinPhi, cosPhi := math.Sincos(phi)
	return vecmath.Vec3{
		float32(sinTheta * cosPhi),
		float32(cosTheta),
		float32(sinTheta * sinPhi),
	}
}
