package frame

import (
	"math"

	"github.com/prism-renderer/prism/internal/vecmath"
)

// TonemapMode selects the post-filter HDR->LDR curve.
type TonemapMode int32

const (
	TonemapLinear TonemapMode = iota
	TonemapReinhard
	TonemapACES
)

// FilterParams bundles the NLM filter's tunables (rect and inv_img_size
// are implicit here since this filter always runs over the whole frame
// buffer rather than a GPU-dispatched sub-rect).
type FilterParams struct {
	Alpha       float32
	Damping     float32
	InvGamma    float32
	TonemapMode TonemapMode
}

// DefaultFilterParams matches typical NLM defaults: a moderate patch
// dissimilarity falloff, light damping, and standard 1/2.2 gamma.
func DefaultFilterParams() FilterParams {
	return FilterParams{Alpha: 0.6, Damping: 4.0, InvGamma: 1 / 2.2, TonemapMode: TonemapReinhard}
}

// computeVarianceImage estimates a per-pixel spatial luminance variance
// from a 3x3 neighborhood, standing in for a fixed-function image->image
// variance compute pass a GPU backend might run instead. RunNLM uses it
// only when it is passed a nil variance slice in place of the
// accumulator's own temporal variance (from Accumulator.Variance).
func computeVarianceImage(mean []vecmath.Vec3, w, h uint32) []float32 {
	out := make([]float32, len(mean))
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			var sum, sumSq float32
			var n float32
			for dy := int32(-1); dy <= 1; dy++ {
				ny := int32(y) + dy
				if ny < 0 || ny >= int32(h) {
					continue
				}
				for dx := int32(-1); dx <= 1; dx++ {
					nx := int32(x) + dx
					if nx < 0 || nx >= int32(w) {
						continue
					}
					lum := mean[uint32(ny)*w+uint32(nx)].Luminance()
					sum += lum
					sumSq += lum * lum
					n++
				}
			}
			m := sum / n
			out[y*w+x] = float32(math.Max(0, float64(sumSq/n-m*m)))
		}
	}
	return out
}

// nlmRadius and nlmPatchRadius bound the search/comparison windows to keep
// the reference (non-SIMD) filter tractable on a full frame, the same
// "reference, not SIMD" tradeoff internal/texstore's bc.go makes for its
// block coders.
const (
	nlmRadius      = 3
	nlmPatchRadius = 1
)

// RunNLM applies a variance-guided non-local-means filter to mean (the
// accumulator's per-pixel running mean), using variance (typically
// Accumulator.Variance per pixel, falling back to computeVarianceImage
// when nil) as the per-pixel noise estimate that damps the patch weight.
func RunNLM(mean []vecmath.Vec3, variance []float32, w, h uint32, p FilterParams) []vecmath.Vec3 {
	if variance == nil {
		variance = computeVarianceImage(mean, w, h)
	}
	out := make([]vecmath.Vec3, len(mean))

	at := func(x, y int32) vecmath.Vec3 {
		x = clampI(x, 0, int32(w)-1)
		y = clampI(y, 0, int32(h)-1)
		return mean[uint32(y)*w+uint32(x)]
	}
	varAt := func(x, y int32) float32 {
		x = clampI(x, 0, int32(w)-1)
		y = clampI(y, 0, int32(h)-1)
		return variance[uint32(y)*w+uint32(x)]
	}

	for y := int32(0); y < int32(h); y++ {
		for x := int32(0); x < int32(w); x++ {
			center := at(x, y)
			centerVar := varAt(x, y)

			var accum vecmath.Vec3
			var weightSum float32

			for dy := int32(-nlmRadius); dy <= nlmRadius; dy++ {
				for dx := int32(-nlmRadius); dx <= nlmRadius; dx++ {
					sx, sy := x+dx, y+dy

					var patchDist float32
					var patchN float32
					for py := int32(-nlmPatchRadius); py <= nlmPatchRadius; py++ {
						for px := int32(-nlmPatchRadius); px <= nlmPatchRadius; px++ {
							a := at(x+px, y+py)
							b := at(sx+px, sy+py)
							d := a.Sub(b)
							patchDist += d.Dot(d)
							patchN++
						}
					}
					patchDist /= patchN

					noiseFloor := p.Damping * (centerVar + varAt(sx, sy) + 1e-6)
					weight := float32(math.Exp(-float64(clamp0(patchDist-noiseFloor) / (p.Alpha*p.Alpha + 1e-6))))

					accum = accum.Add(at(sx, sy).Mul(weight))
					weightSum += weight
				}
			}

			if weightSum <= 0 {
				out[y*int32(w)+x] = center
				continue
			}
			out[y*int32(w)+x] = accum.Mul(1 / weightSum)
		}
	}
	return out
}

func clampI(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp0(v float32) float32 {
	if v < 0 {
		return 0
	}
	return v
}

// Tonemap converts one linear HDR radiance value to a gamma-corrected
// [0,1] LDR value using exposure and the configured curve.
func Tonemap(c vecmath.Vec3, exposure float32, p FilterParams) vecmath.Vec3 {
	c = c.Mul(exposure)
	switch p.TonemapMode {
	case TonemapReinhard:
		c = vecmath.Vec3{c[0] / (1 + c[0]), c[1] / (1 + c[1]), c[2] / (1 + c[2])}
	case TonemapACES:
		c = acesFilm(c)
	}
	gamma := p.InvGamma
	if gamma <= 0 {
		gamma = 1 / 2.2
	}
	return vecmath.Vec3{
		float32(math.Pow(float64(clamp01f(c[0])), float64(gamma))),
		float32(math.Pow(float64(clamp01f(c[1])), float64(gamma))),
		float32(math.Pow(float64(clamp01f(c[2])), float64(gamma))),
	}
}

// acesFilm is the standard Narkowicz ACES filmic fit.
func acesFilm(c vecmath.Vec3) vecmath.Vec3 {
	const a, b, cc, d, e = 2.51, 0.03, 2.43, 0.59, 0.14
	tone := func(x float32) float32 {
		return clamp01f((x * (a*x + b)) / (x*(cc*x+d) + e))
	}
	return vecmath.Vec3{tone(c[0]), tone(c[1]), tone(c[2])}
}

func clamp01f(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
