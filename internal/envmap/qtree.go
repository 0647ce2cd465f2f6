// Package envmap builds a luminance-weighted spherical quad-tree over an
// equirectangular HDR environment map for importance sampling of
// environment radiance during next-event estimation.
//
// The resolution formula, quadrant-bit mapping, sum-of-children upper
// levels and 1%-of-total trim threshold implement the importance-sampling
// scheme a GPU path tracer would otherwise bake into its environment
// prefilter pass, done here entirely on the CPU at Finalize time.
package envmap

import "github.com/prism-renderer/prism/internal/vecmath"

// Level is one mip level of the quad-tree: an (res x res) grid of
// 4-component cells, each component the max (level 0) or the sum
// (upper levels) of luminance over the corresponding sub-quadrant.
type Level struct {
	Res  int
	Data [][4]float32 // row-major, len == Res*Res
}

// QuadTree is the full trimmed pyramid, finest level first.
type QuadTree struct {
	Levels []Level
}

// Build constructs the quad-tree from a linear-RGB equirectangular image
// of the given width and height. pixel(x, y) must return linear RGB.
func Build(width, height int, pixel func(x, y int) vecmath.Vec3) QuadTree {
	res := 1
	lowest := width
	if height < lowest {
		lowest = height
	}
	for 2*res < lowest {
		res *= 2
	}
	half := res / 2
	if half < 1 {
		half = 1
	}

	level0 := Level{Res: half, Data: make([][4]float32, half*half)}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			u := (float32(x) + 0.5) / float32(width)
			v := (float32(y) + 0.5) / float32(height)

			gx := u * float32(res)
			gy := v * float32(res)
			cellX := int(gx) / 2
			cellY := int(gy) / 2
			if cellX >= half {
				cellX = half - 1
			}
			if cellY >= half {
				cellY = half - 1
			}
			qx := int(gx) & 1
			qy := int(gy) & 1
			comp := qy*2 + qx

			lum := pixel(x, y).Luminance()
			idx := cellY*half + cellX
			if lum > level0.Data[idx][comp] {
				level0.Data[idx][comp] = lum
			}
		}
	}

	levels := []Level{level0}
	cur := level0
	for cur.Res > 1 {
		nextRes := cur.Res / 2
		next := Level{Res: nextRes, Data: make([][4]float32, nextRes*nextRes)}
		for cy := 0; cy < nextRes; cy++ {
			for cx := 0; cx < nextRes; cx++ {
				var quad [4]float32
				for dy := 0; dy < 2; dy++ {
					for dx := 0; dx < 2; dx++ {
						srcX := cx*2 + dx
						srcY := cy*2 + dy
						cell := cur.Data[srcY*cur.Res+srcX]
						var childSum float32
						for _, c := range cell {
							childSum += c
						}
						quad[dy*2+dx] = childSum
					}
				}
				next.Data[cy*nextRes+cx] = quad
			}
		}
		levels = append([]Level{next}, levels...)
		cur = next
	}

	total := float32(0)
	for _, c := range levels[len(levels)-1].Data {
		total += c[0] + c[1] + c[2] + c[3]
	}
	// levels is coarsest-first at this point; trim from the coarse end,
	// dropping levels whose every component sums below 1% of total.
	trimmed := 0
	for trimmed < len(levels)-1 {
		lvl := levels[trimmed]
		below := true
		for _, c := range lvl.Data {
			for _, v := range c {
				if v > 0.01*total {
					below = false
				}
			}
		}
		if !below {
			break
		}
		trimmed++
	}
	levels = levels[trimmed:]

	// finest level first, matching the sampler's descent order.
	finestFirst := make([]Level, len(levels))
	for i, l := range levels {
		finestFirst[len(levels)-1-i] = l
	}

	return QuadTree{Levels: finestFirst}
}

// TotalLuminance sums every component of the coarsest retained level.
func (q QuadTree) TotalLuminance() float32 {
	if len(q.Levels) == 0 {
		return 0
	}
	coarsest := q.Levels[len(q.Levels)-1]
	var sum float32
	for _, c := range coarsest.Data {
		sum += c[0] + c[1] + c[2] + c[3]
	}
	return sum
}

// Sample draws a direction from the quad-tree given a 2D uniform sample,
// descending from the coarsest retained level to the finest by picking
// among the four child components proportional to their luminance, and
// returns the sampled (u, v) in [0,1)^2 plus its PDF over the unit square.
func (q QuadTree) Sample(u, v float32) (su, sv float32, pdf float32) {
	if len(q.Levels) == 0 {
		return u, v, 1
	}

	x, y := 0, 0
	res := 1
	pdfAccum := float32(1)

	for lvl := len(q.Levels) - 1; lvl >= 0; lvl-- {
		level := q.Levels[lvl]
		cell := level.Data[y*level.Res+x]
		total := cell[0] + cell[1] + cell[2] + cell[3]
		if total <= 0 {
			x, y = x*2, y*2
			res *= 2
			continue
		}

		var acc float32
		chosen := 3
		var chosenProb float32
		target := u * total
		for i, w := range cell {
			acc += w
			if target <= acc {
				chosen = i
				chosenProb = w / total
				u = (target - (acc - w)) / w
				break
			}
		}
		if chosenProb <= 0 {
			chosenProb = 1e-6
		}
		pdfAccum *= chosenProb * 4

		dx := chosen & 1
		dy := (chosen >> 1) & 1
		x = x*2 + dx
		y = y*2 + dy
		res *= 2
	}

	fres := float32(res)
	su = (float32(x) + u) / fres
	sv = (float32(y) + v) / fres
	return su, sv, pdfAccum
}

// PDF returns the sampling density Sample would have produced for a
// (u, v) coordinate already known (e.g. from a BSDF-sampled direction
// that happened to escape to the environment), by deterministically
// walking the same cell descent Sample uses without consuming any random
// numbers.
func (q QuadTree) PDF(u, v float32) float32 {
	if len(q.Levels) == 0 {
		return 1
	}
	x, y := 0, 0
	pdfAccum := float32(1)
	for lvl := len(q.Levels) - 1; lvl >= 0; lvl-- {
		level := q.Levels[lvl]
		cell := level.Data[y*level.Res+x]
		total := cell[0] + cell[1] + cell[2] + cell[3]

		fres := float32(level.Res * 2)
		gx := int(u * fres)
		gy := int(v * fres)
		dx := (gx - x*2) & 1
		dy := (gy - y*2) & 1
		child := dy*2 + dx

		if total > 0 {
			w := cell[child]
			prob := w / total
			if prob <= 0 {
				prob = 1e-6
			}
			pdfAccum *= prob * 4
		}
		x, y = x*2+dx, y*2+dy
	}
	return pdfAccum
}
