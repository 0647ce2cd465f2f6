package pathtrace

import (
	"math"

	"github.com/prism-renderer/prism/internal/accel"
	"github.com/prism-renderer/prism/internal/sampling"
	"github.com/prism-renderer/prism/internal/vecmath"
)

// Camera is a pinhole or thin-lens camera descriptor; when LensRadius is
// zero the camera behaves as a pinhole (no depth of field).
type Camera struct {
	Origin  vecmath.Vec3
	Forward vecmath.Vec3
	Right   vecmath.Vec3
	Up      vecmath.Vec3

	FovY   float32
	Aspect float32

	LensRadius    float32
	FocalDistance float32
}

// NewCamera derives an orthonormal Right/Up basis from position, look-at
// target and world-up.
func NewCamera(pos, target, worldUp vecmath.Vec3, fovY, aspect, lensRadius, focalDistance float32) Camera {
	forward := target.Sub(pos).Normalize()
	right := forward.Cross(worldUp).Normalize()
	up := right.Cross(forward).Normalize()
	return Camera{Origin: pos, Forward: forward, Right: right, Up: up, FovY: fovY, Aspect: aspect, LensRadius: lensRadius, FocalDistance: focalDistance}
}

// GenerateRay forms a primary ray for film-plane sample (filmX, filmY) in
// [-1, 1]^2 and lens sample (lensU, lensV) in [0,1)^2 (box-filtered pixel
// jitter is applied by the caller before converting to film coordinates).
func (c Camera) GenerateRay(filmX, filmY, lensU, lensV float32) accel.Ray {
	tanHalfFov := float32(math.Tan(float64(c.FovY) / 2))
	dirCamera := c.Forward.
		Add(c.Right.Mul(filmX * tanHalfFov * c.Aspect)).
		Add(c.Up.Mul(filmY * tanHalfFov)).
		Normalize()

	if c.LensRadius <= 0 {
		return accel.Ray{Origin: c.Origin, Dir: dirCamera, TMin: 1e-4, TMax: float32(math.MaxFloat32)}
	}

	lx, ly := sampling.UniformDisk(lensU, lensV)
	lensOffset := c.Right.Mul(lx * c.LensRadius).Add(c.Up.Mul(ly * c.LensRadius))
	focalPoint := c.Origin.Add(dirCamera.Mul(c.FocalDistance))
	origin := c.Origin.Add(lensOffset)
	dir := focalPoint.Sub(origin).Normalize()
	return accel.Ray{Origin: origin, Dir: dir, TMin: 1e-4, TMax: float32(math.MaxFloat32)}
}
