package bvh

import "sort"

const (
	numBuckets = 12

	// minSideLength: axes whose extent falls below this threshold are
	// skipped as split candidates.
	minSideLength float32 = 1e-3

	// degenerateEps is the amount degenerate (zero-volume) primitive AABBs
	// are enlarged by before entering the builder.
	degenerateEps float32 = 1e-5
)

// Options configures a single Build call.
type Options struct {
	// LeafThreshold: a node with at most this many primitives always
	// becomes a leaf without evaluating splits.
	LeafThreshold int

	// TraversalCost / IntersectCost feed the SAH cost formula
	// C(split) = trav + sum(P(child) * N(child) * intersect).
	TraversalCost   float32
	IntersectCost   float32

	// SpatialSplits enables SBVH-style re-clipping of straddling
	// primitives when an object split leaves significant overlap.
	SpatialSplits bool

	// FastMode disables spatial splits and uses median-centroid
	// bucketing instead of full SAH bucket scoring, trading build
	// quality for build speed.
	FastMode bool
}

// DefaultOptions returns the builder configuration used when the caller
// has no specific requirements.
func DefaultOptions() Options {
	return Options{
		LeafThreshold: 4,
		TraversalCost: 1.0,
		IntersectCost: 1.0,
		SpatialSplits: true,
	}
}

type ref struct {
	prim   uint32
	bounds AABB
}

func (r ref) center() [3]float32 { return r.bounds.Center() }

// Result is the flat output of a Build call.
type Result struct {
	Nodes []Node
	// Order lists, per leaf range, the original primitive indices; a
	// primitive may appear more than once when spatial splits duplicated
	// it across sibling leaves.
	Order []uint32
}

type builder struct {
	opts      Options
	nodes     []Node
	order     []uint32
	rootArea  float32
	maxDepth  int
}

// Build constructs a BVH over the given primitive bounding boxes using a
// top-down SAH splitter. Degenerate boxes are enlarged on the builder's
// own copies; the caller's bounds slice is not modified.
func Build(bounds []AABB, opts Options) Result {
	if opts.LeafThreshold <= 0 {
		opts.LeafThreshold = 4
	}
	if opts.TraversalCost <= 0 {
		opts.TraversalCost = 1.0
	}
	if opts.IntersectCost <= 0 {
		opts.IntersectCost = 1.0
	}

	refs := make([]ref, len(bounds))
	root := EmptyAABB()
	for i, b := range bounds {
		eb := b.Enlarge(degenerateEps)
		refs[i] = ref{prim: uint32(i), bounds: eb}
		root = root.Union(eb)
	}

	b := &builder{opts: opts, rootArea: root.SurfaceArea()}
	if len(refs) == 0 {
		empty := Node{}
		empty.SetLeaf(0, 0)
		b.nodes = append(b.nodes, empty)
		return Result{Nodes: b.nodes, Order: b.order}
	}

	b.partition(refs, 0)
	return Result{Nodes: b.nodes, Order: b.order}
}

func (b *builder) partition(refs []ref, depth int) uint32 {
	if depth > b.maxDepth {
		b.maxDepth = depth
	}

	bounds := EmptyAABB()
	centroidBounds := EmptyAABB()
	for _, r := range refs {
		bounds = bounds.Union(r.bounds)
		centroidBounds = centroidBounds.UnionPoint(r.center())
	}

	if len(refs) <= b.opts.LeafThreshold {
		return b.makeLeaf(bounds, refs)
	}

	noSplitCost := float32(len(refs)) * b.opts.IntersectCost * bounds.SurfaceArea()

	best, ok := b.findBestSplit(refs, bounds, centroidBounds)
	if !ok || best.cost >= noSplitCost {
		return b.makeLeaf(bounds, refs)
	}

	leftRefs, rightRefs := b.applySplit(refs, best)
	if len(leftRefs) == 0 || len(rightRefs) == 0 {
		return b.makeLeaf(bounds, refs)
	}

	nodeIndex := uint32(len(b.nodes))
	b.nodes = append(b.nodes, Node{})
	b.nodes[nodeIndex].SetBounds(bounds)

	leftIdx := b.partition(leftRefs, depth+1)
	rightIdx := b.partition(rightRefs, depth+1)
	b.nodes[nodeIndex].SetChildren(leftIdx, rightIdx)

	return nodeIndex
}

func (b *builder) makeLeaf(bounds AABB, refs []ref) uint32 {
	first := uint32(len(b.order))
	for _, r := range refs {
		b.order = append(b.order, r.prim)
	}
	idx := uint32(len(b.nodes))
	node := Node{}
	node.SetBounds(bounds)
	node.SetLeaf(first, uint32(len(refs)))
	b.nodes = append(b.nodes, node)
	return idx
}

type split struct {
	axis      int
	pos       float32
	cost      float32
	isSpatial bool
}

// findBestSplit evaluates object splits on all three axes via SAH
// bucketing (or median bucketing in fast mode), then — when spatial
// splits are enabled — checks whether the winning object split leaves
// significant left/right overlap and, if so, evaluates a spatial split at
// the same plane for comparison.
func (b *builder) findBestSplit(refs []ref, bounds, centroidBounds AABB) (split, bool) {
	var best split
	best.cost = float32(1e30)
	found := false

	for axis := 0; axis < 3; axis++ {
		extent := centroidBounds.Max[axis] - centroidBounds.Min[axis]
		if extent < minSideLength {
			continue
		}

		if b.opts.FastMode {
			if s, ok := b.medianSplit(refs, axis, centroidBounds); ok && s.cost < best.cost {
				best = s
				found = true
			}
			continue
		}

		if s, ok := b.binnedSplit(refs, axis, bounds, centroidBounds); ok && s.cost < best.cost {
			best = s
			found = true
		}
	}

	if !found {
		return split{}, false
	}

	if b.opts.SpatialSplits && !b.opts.FastMode {
		leftBounds, rightBounds := EmptyAABB(), EmptyAABB()
		for _, r := range refs {
			if r.center()[best.axis] < best.pos {
				leftBounds = leftBounds.Union(r.bounds)
			} else {
				rightBounds = rightBounds.Union(r.bounds)
			}
		}
		overlap := intersectAABB(leftBounds, rightBounds).SurfaceArea()
		if overlap > 1e-5*b.rootArea {
			if s, ok := b.spatialSplit(refs, best.axis, best.pos); ok && s.cost < best.cost {
				best = s
			}
		}
	}

	return best, true
}

func intersectAABB(a, b AABB) AABB {
	out := AABB{}
	for i := 0; i < 3; i++ {
		out.Min[i] = maxf(a.Min[i], b.Min[i])
		out.Max[i] = minf(a.Max[i], b.Max[i])
	}
	return out
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

type bucket struct {
	count  int
	bounds AABB
}

// binnedSplit implements the standard SAH bucketed evaluation: primitives
// are binned into numBuckets buckets by centroid along `axis`, prefix and
// suffix bounds/counts are accumulated, and the boundary minimizing
// trav + P(L)*N(L) + P(R)*N(R) is returned.
func (b *builder) binnedSplit(refs []ref, axis int, bounds, centroidBounds AABB) (split, bool) {
	lo := centroidBounds.Min[axis]
	extent := centroidBounds.Max[axis] - lo
	if extent < 1e-8 {
		return split{}, false
	}

	var buckets [numBuckets]bucket
	for i := range buckets {
		buckets[i].bounds = EmptyAABB()
	}

	bucketOf := func(c float32) int {
		idx := int(float32(numBuckets) * (c - lo) / extent)
		if idx < 0 {
			idx = 0
		}
		if idx >= numBuckets {
			idx = numBuckets - 1
		}
		return idx
	}

	for _, r := range refs {
		i := bucketOf(r.center()[axis])
		buckets[i].count++
		buckets[i].bounds = buckets[i].bounds.Union(r.bounds)
	}

	var prefixBounds [numBuckets]AABB
	var prefixCount [numBuckets]int
	acc := EmptyAABB()
	cnt := 0
	for i := 0; i < numBuckets; i++ {
		acc = acc.Union(buckets[i].bounds)
		cnt += buckets[i].count
		prefixBounds[i] = acc
		prefixCount[i] = cnt
	}

	var suffixBounds [numBuckets]AABB
	var suffixCount [numBuckets]int
	acc = EmptyAABB()
	cnt = 0
	for i := numBuckets - 1; i >= 0; i-- {
		acc = acc.Union(buckets[i].bounds)
		cnt += buckets[i].count
		suffixBounds[i] = acc
		suffixCount[i] = cnt
	}

	best := split{cost: 1e30}
	found := false
	for i := 0; i < numBuckets-1; i++ {
		leftCount := prefixCount[i]
		rightCount := suffixCount[i+1]
		if leftCount == 0 || rightCount == 0 {
			continue
		}
		cost := b.opts.TraversalCost +
			b.opts.IntersectCost*(float32(leftCount)*prefixBounds[i].SurfaceArea()+
				float32(rightCount)*suffixBounds[i+1].SurfaceArea())

		if cost < best.cost {
			pos := lo + extent*float32(i+1)/float32(numBuckets)
			best = split{axis: axis, pos: pos, cost: cost}
			found = true
		}
	}

	return best, found
}

// medianSplit implements the "fast mode" fallback: split at the median
// centroid position along `axis` without evaluating SAH cost buckets.
func (b *builder) medianSplit(refs []ref, axis int, centroidBounds AABB) (split, bool) {
	sorted := append([]ref(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].center()[axis] < sorted[j].center()[axis] })
	mid := len(sorted) / 2
	pos := sorted[mid].center()[axis]

	leftBounds, rightBounds := EmptyAABB(), EmptyAABB()
	leftCount, rightCount := 0, 0
	for _, r := range refs {
		if r.center()[axis] < pos {
			leftBounds = leftBounds.Union(r.bounds)
			leftCount++
		} else {
			rightBounds = rightBounds.Union(r.bounds)
			rightCount++
		}
	}
	if leftCount == 0 || rightCount == 0 {
		return split{}, false
	}
	cost := b.opts.TraversalCost + b.opts.IntersectCost*(float32(leftCount)*leftBounds.SurfaceArea()+float32(rightCount)*rightBounds.SurfaceArea())
	return split{axis: axis, pos: pos, cost: cost}, true
}

// spatialSplit re-clips every reference straddling the candidate plane
// against both sides, duplicating it into the left and right work lists,
// and returns the SAH cost of the resulting (larger) partition so the
// caller can compare it directly against the object-split cost.
func (b *builder) spatialSplit(refs []ref, axis int, pos float32) (split, bool) {
	leftBounds, rightBounds := EmptyAABB(), EmptyAABB()
	leftCount, rightCount := 0, 0
	for _, r := range refs {
		if r.bounds.Max[axis] <= pos {
			leftBounds = leftBounds.Union(r.bounds)
			leftCount++
		} else if r.bounds.Min[axis] >= pos {
			rightBounds = rightBounds.Union(r.bounds)
			rightCount++
		} else {
			l := r.bounds.Clip(axis, pos, true)
			rr := r.bounds.Clip(axis, pos, false)
			leftBounds = leftBounds.Union(l)
			rightBounds = rightBounds.Union(rr)
			leftCount++
			rightCount++
		}
	}
	if leftCount == 0 || rightCount == 0 {
		return split{}, false
	}
	cost := b.opts.TraversalCost + b.opts.IntersectCost*(float32(leftCount)*leftBounds.SurfaceArea()+float32(rightCount)*rightBounds.SurfaceArea())
	return split{axis: axis, pos: pos, cost: cost, isSpatial: true}, true
}

func (b *builder) applySplit(refs []ref, s split) (left, right []ref) {
	for _, r := range refs {
		if !s.isSpatial {
			if r.center()[s.axis] < s.pos {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
			continue
		}

		if r.bounds.Max[s.axis] <= s.pos {
			left = append(left, r)
		} else if r.bounds.Min[s.axis] >= s.pos {
			right = append(right, r)
		} else {
			left = append(left, ref{prim: r.prim, bounds: r.bounds.Clip(s.axis, s.pos, true)})
			right = append(right, ref{prim: r.prim, bounds: r.bounds.Clip(s.axis, s.pos, false)})
		}
	}
	return left, right
}
