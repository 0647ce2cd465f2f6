package frame

import (
	"github.com/prism-renderer/prism/internal/assert"
	"github.com/prism-renderer/prism/internal/vecmath"
)

// Accumulator is a progressive per-pixel radiance accumulator. Each pixel
// tracks a running mean via Welford's online algorithm together with the
// second moment of its luminance, giving a running variance estimate
// without needing to retain every sample. The variance map feeds
// the NLM filter's edge-stopping weight.
type Accumulator struct {
	width, height uint32
	mean          []vecmath.Vec3
	m2            []float32
	count         []uint32
}

// NewAccumulator allocates a zeroed accumulator for a frameW x frameH image.
func NewAccumulator(frameW, frameH uint32) *Accumulator {
	assert.Truef(frameW > 0 && frameH > 0, "frame: accumulator dimensions must be positive, got %dx%d", frameW, frameH)
	n := int(frameW) * int(frameH)
	return &Accumulator{
		width:  frameW,
		height: frameH,
		mean:   make([]vecmath.Vec3, n),
		m2:     make([]float32, n),
		count:  make([]uint32, n),
	}
}

func (a *Accumulator) index(x, y uint32) int { return int(y)*int(a.width) + int(x) }

// Add folds one radiance sample into pixel (x, y)'s running statistics.
func (a *Accumulator) Add(x, y uint32, sample vecmath.Vec3) {
	if !sample.IsFinite() {
		return
	}
	i := a.index(x, y)
	a.count[i]++
	n := float32(a.count[i])

	lum := sample.Luminance()
	prevMeanLum := a.mean[i].Luminance()

	delta := sample.Sub(a.mean[i])
	a.mean[i] = a.mean[i].Add(delta.Mul(1 / n))

	deltaLum2 := lum - (prevMeanLum + (lum-prevMeanLum)/n)
	a.m2[i] += (lum - prevMeanLum) * deltaLum2
}

// Mean returns the current running-mean radiance for pixel (x, y).
func (a *Accumulator) Mean(x, y uint32) vecmath.Vec3 {
	return a.mean[a.index(x, y)]
}

// SampleCount returns how many samples pixel (x, y) has accumulated.
func (a *Accumulator) SampleCount(x, y uint32) uint32 {
	return a.count[a.index(x, y)]
}

// Variance returns the population variance of the pixel's luminance
// samples seen so far (M2/n); pixels with fewer than 2 samples report
// zero.
func (a *Accumulator) Variance(x, y uint32) float32 {
	i := a.index(x, y)
	n := a.count[i]
	if n < 2 {
		return 0
	}
	return a.m2[i] / float32(n)
}

// Width and Height report the accumulator's frame dimensions.
func (a *Accumulator) Width() uint32  { return a.width }
func (a *Accumulator) Height() uint32 { return a.height }
