package bvh

// WideNode is a fan-out collapse of the binary Node tree into groups of up
// to `Arity` children, intended for SIMD traversal (4-wide with SSE-style
// lanes, 8-wide with AVX-style lanes). Unused child slots carry an empty
// bounding box and IsLeaf == false so a traverser can skip them with the
// same ray/box test used for real children.
type WideNode struct {
	Min     [8][3]float32
	Max     [8][3]float32
	Child   [8]uint32
	Count   [8]uint32
	IsLeaf  [8]bool
	NumUsed int
}

// Collapse rewrites a binary BVH (as produced by Build) into a wide BVH of
// the given arity (4 or 8). At each wide node, the binary subtree is
// expanded greedily: on every step, the child with the largest surface
// area among the current leaves-of-the-partial-tree is replaced by its two
// binary children, until either `arity` slots are filled or no internal
// nodes remain to expand.
func Collapse(nodes []Node, arity int) []WideNode {
	if arity != 4 && arity != 8 {
		arity = 8
	}
	if len(nodes) == 0 {
		return nil
	}

	out := make([]WideNode, 0, len(nodes))
	remap := make(map[uint32]uint32, len(nodes))

	var build func(binIdx uint32) uint32
	build = func(binIdx uint32) uint32 {
		if r, ok := remap[binIdx]; ok {
			return r
		}

		wideIdx := uint32(len(out))
		out = append(out, WideNode{})
		remap[binIdx] = wideIdx

		type slot struct {
			binIdx uint32
			area   float32
		}
		slots := []slot{{binIdx: binIdx, area: nodes[binIdx].Bounds().SurfaceArea()}}

		for len(slots) < arity {
			bestI := -1
			var bestArea float32 = -1
			for i, s := range slots {
				if nodes[s.binIdx].IsLeaf() {
					continue
				}
				if s.area > bestArea {
					bestArea = s.area
					bestI = i
				}
			}
			if bestI < 0 {
				break
			}

			expand := slots[bestI]
			left, right := nodes[expand.binIdx].ChildNodes()
			slots[bestI] = slot{binIdx: left, area: nodes[left].Bounds().SurfaceArea()}
			slots = append(slots, slot{binIdx: right, area: nodes[right].Bounds().SurfaceArea()})
		}

		wn := WideNode{NumUsed: len(slots)}
		empty := EmptyAABB()
		for i := len(slots); i < len(wn.Min); i++ {
			wn.Min[i] = empty.Min
			wn.Max[i] = empty.Max
		}
		for i, s := range slots {
			b := nodes[s.binIdx].Bounds()
			wn.Min[i] = b.Min
			wn.Max[i] = b.Max
			if nodes[s.binIdx].IsLeaf() {
				wn.IsLeaf[i] = true
				first, count := nodes[s.binIdx].LeafRange()
				wn.Child[i] = first
				wn.Count[i] = count
			} else {
				wn.IsLeaf[i] = false
				wn.Child[i] = build(s.binIdx)
			}
		}
		out[wideIdx] = wn
		return wideIdx
	}

	build(0)
	return out
}

// LeafRange returns a WideNode leaf slot's (firstPrim, count) pair,
// mirroring Node.LeafRange for binary leaves.
func (w WideNode) LeafRange(slot int) (firstPrim, count uint32) {
	return w.Child[slot], w.Count[slot]
}
