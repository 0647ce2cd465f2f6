package pathtrace

import (
	"math"

	"github.com/prism-renderer/prism/internal/vecmath"
)

// EnvRadiance looks up incoming radiance for a miss ray direction (world
// space, normalized) against the scene's environment map. A nil
// EnvRadiance means the environment contributes no light.
type EnvRadiance func(dir vecmath.Vec3) vecmath.Vec3

// EquirectUVToDir is the exported form of equirectUVToDir, so callers
// building an EnvRadiance closure over a decoded equirectangular image
// (the pathtracer façade's job, not this package's) can share the exact
// mapping the estimator's MIS weighting assumes.
func EquirectUVToDir(u, v float32) vecmath.Vec3 { return equirectUVToDir(u, v) }

// EquirectDirToUV is the exported form of equirectDirToUV.
func EquirectDirToUV(dir vecmath.Vec3) (u, v float32) { return equirectDirToUV(dir) }

// equirectUVToDir maps an equirectangular (u, v) in [0,1)^2 to a world
// direction: v runs top (0, +Y) to bottom (1, -Y), u wraps longitude.
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

// equirectDirToUV is the inverse of equirectUVToDir.
func equirectDirToUV(dir vecmath.Vec3) (u, v float32) {
	d := dir.Normalize()
	theta := math.Acos(clampFloat64(float64(d[1]), -1, 1))
	phi := math.Atan2(float64(d[2]), float64(d[0]))
	v = float32(theta / math.Pi)
	u = float32(phi/(2*math.Pi) + 0.5)
	return u, v
}

func clampFloat64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// uvPDFToSolidAngle converts a density over the unit (u,v) square into a
// density over solid angle for the equirectangular mapping: an area
// element du*dv subtends a solid angle of 2*pi^2*sin(theta)*du*dv.
func uvPDFToSolidAngle(pdfUV, v float32) float32 {
	theta := float64(v) * math.Pi
	sinTheta := float32(math.Sin(theta))
	if sinTheta <= 0 {
		return 0
	}
	return pdfUV / (2 * float32(math.Pi) * float32(math.Pi) * sinTheta)
}
