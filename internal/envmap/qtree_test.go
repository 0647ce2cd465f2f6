package envmap

import (
	"math"
	"testing"

	"github.com/prism-renderer/prism/internal/vecmath"
)

func constPixel(v float32) func(x, y int) vecmath.Vec3 {
	return func(x, y int) vecmath.Vec3 { return vecmath.Vec3{v, v, v} }
}

func TestBuildProducesAtLeastOneLevel(t *testing.T) {
	q := Build(64, 32, constPixel(1))
	if len(q.Levels) == 0 {
		t.Fatalf("expected at least one retained level")
	}
}

func TestParentEqualsSumOfChildren(t *testing.T) {
	q := Build(64, 32, func(x, y int) vecmath.Vec3 {
		// non-uniform so levels don't collapse trivially
		if x%3 == 0 {
			return vecmath.Vec3{2, 2, 2}
		}
		return vecmath.Vec3{0.1, 0.1, 0.1}
	})

	for i := 0; i < len(q.Levels)-1; i++ {
		fine := q.Levels[i]
		coarse := q.Levels[i+1]
		for cy := 0; cy < coarse.Res; cy++ {
			for cx := 0; cx < coarse.Res; cx++ {
				var want [4]float32
				for dy := 0; dy < 2; dy++ {
					for dx := 0; dx < 2; dx++ {
						fx, fy := cx*2+dx, cy*2+dy
						cell := fine.Data[fy*fine.Res+fx]
						var s float32
						for _, c := range cell {
							s += c
						}
						want[dy*2+dx] = s
					}
				}
				got := coarse.Data[cy*coarse.Res+cx]
				for k := 0; k < 4; k++ {
					if math.Abs(float64(got[k]-want[k])) > 1e-4 {
						t.Fatalf("level %d cell (%d,%d) component %d: got %f want %f", i+1, cx, cy, k, got[k], want[k])
					}
				}
			}
		}
	}
}

func TestTrimDropsLowEnergyLevels(t *testing.T) {
	q := Build(64, 32, constPixel(1))
	total := q.TotalLuminance()
	if len(q.Levels) > 0 {
		coarsest := q.Levels[len(q.Levels)-1]
		var sum float32
		for _, c := range coarsest.Data {
			sum += c[0] + c[1] + c[2] + c[3]
		}
		if sum < 0.01*total-1e-3 && len(q.Levels) > 1 {
			t.Fatalf("coarsest retained level should not itself be below the trim threshold")
		}
	}
}

func TestSampleReturnsValidUV(t *testing.T) {
	q := Build(64, 32, func(x, y int) vecmath.Vec3 {
		if x < 32 {
			return vecmath.Vec3{5, 5, 5}
		}
		return vecmath.Vec3{0.01, 0.01, 0.01}
	})
	for _, s := range [][2]float32{{0, 0}, {0.25, 0.75}, {0.999, 0.001}} {
		u, v, pdf := q.Sample(s[0], s[1])
		if u < 0 || u >= 1 || v < 0 || v >= 1 {
			t.Fatalf("sampled uv out of range: %f %f", u, v)
		}
		if pdf <= 0 {
			t.Fatalf("expected positive pdf, got %f", pdf)
		}
	}
}
