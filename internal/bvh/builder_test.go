package bvh

import "testing"

func boxAt(x, y, z, half float32) AABB {
	return AABB{
		Min: [3]float32{x - half, y - half, z - half},
		Max: [3]float32{x + half, y + half, z + half},
	}
}

func gridBoxes(n int) []AABB {
	boxes := make([]AABB, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			boxes = append(boxes, boxAt(float32(i)*2, float32(j)*2, 0, 0.4))
		}
	}
	return boxes
}

func TestBuildCoversAllGeometry(t *testing.T) {
	boxes := gridBoxes(6)
	opts := DefaultOptions()
	opts.SpatialSplits = false
	res := Build(boxes, opts)

	root := res.Nodes[0].Bounds()
	for _, b := range boxes {
		if !root.Contains(b, 1e-4) {
			t.Fatalf("root bounds do not cover primitive %v", b)
		}
	}
}

func TestBuildPartitionWithoutSpatialSplits(t *testing.T) {
	boxes := gridBoxes(6)
	opts := DefaultOptions()
	opts.SpatialSplits = false
	res := Build(boxes, opts)

	if len(res.Order) != len(boxes) {
		t.Fatalf("expected exactly one leaf entry per primitive, got %d for %d primitives", len(res.Order), len(boxes))
	}

	seen := make(map[uint32]bool)
	for _, idx := range res.Order {
		if seen[idx] {
			t.Fatalf("primitive %d appears in more than one leaf", idx)
		}
		seen[idx] = true
	}
	for i := range boxes {
		if !seen[uint32(i)] {
			t.Fatalf("primitive %d missing from any leaf", i)
		}
	}
}

func TestBuildLeafBoundsContainChildBounds(t *testing.T) {
	boxes := gridBoxes(5)
	opts := DefaultOptions()
	opts.SpatialSplits = false
	res := Build(boxes, opts)

	var check func(idx uint32)
	check = func(idx uint32) {
		n := res.Nodes[idx]
		if n.IsLeaf() {
			first, count := n.LeafRange()
			bounds := n.Bounds()
			for k := uint32(0); k < count; k++ {
				prim := res.Order[first+k]
				if !bounds.Contains(boxes[prim], 1e-4) {
					t.Fatalf("leaf bounds do not contain primitive %d", prim)
				}
			}
			return
		}
		left, right := n.ChildNodes()
		if !n.Bounds().Contains(res.Nodes[left].Bounds(), 1e-4) {
			t.Fatalf("parent bounds do not contain left child bounds")
		}
		if !n.Bounds().Contains(res.Nodes[right].Bounds(), 1e-4) {
			t.Fatalf("parent bounds do not contain right child bounds")
		}
		check(left)
		check(right)
	}
	check(0)
}

func TestBuildSingleLeafForSmallInput(t *testing.T) {
	boxes := []AABB{boxAt(0, 0, 0, 1), boxAt(1, 0, 0, 1)}
	res := Build(boxes, DefaultOptions())
	if !res.Nodes[0].IsLeaf() {
		t.Fatalf("expected a single leaf for input below the leaf threshold")
	}
}

func TestBuildEmptyInput(t *testing.T) {
	res := Build(nil, DefaultOptions())
	if len(res.Nodes) != 1 || !res.Nodes[0].IsLeaf() {
		t.Fatalf("expected a single empty leaf node for empty input")
	}
	if len(res.Order) != 0 {
		t.Fatalf("expected no primitive order entries for empty input")
	}
}

func TestBuildDegenerateAABBGetsEnlarged(t *testing.T) {
	boxes := []AABB{
		{Min: [3]float32{0, 0, 0}, Max: [3]float32{0, 0, 0}},
		boxAt(5, 0, 0, 0.5),
		boxAt(-5, 0, 0, 0.5),
	}
	res := Build(boxes, DefaultOptions())
	root := res.Nodes[0].Bounds()
	if root.SurfaceArea() <= 0 {
		t.Fatalf("expected non-degenerate root surface area")
	}
}

func TestBuildFastModeProducesValidTree(t *testing.T) {
	boxes := gridBoxes(6)
	opts := DefaultOptions()
	opts.FastMode = true
	res := Build(boxes, opts)
	root := res.Nodes[0].Bounds()
	for _, b := range boxes {
		if !root.Contains(b, 1e-4) {
			t.Fatalf("fast-mode root bounds do not cover primitive %v", b)
		}
	}
}

func TestBuildSpatialSplitsMayDuplicateReferences(t *testing.T) {
	// A single elongated primitive straddling the natural median split
	// plane, alongside many small primitives on each side, should trigger
	// a spatial split and duplicate the elongated primitive's reference.
	boxes := []AABB{
		{Min: [3]float32{-10, -0.1, -0.1}, Max: [3]float32{10, 0.1, 0.1}},
	}
	for i := 0; i < 20; i++ {
		boxes = append(boxes, boxAt(float32(i-10)*1.5, 3, 0, 0.3))
	}

	opts := DefaultOptions()
	opts.SpatialSplits = true
	res := Build(boxes, opts)

	if len(res.Order) < len(boxes) {
		t.Fatalf("spatial-split order should never be shorter than the primitive count")
	}

	root := res.Nodes[0].Bounds()
	for _, b := range boxes {
		if !root.Contains(b, 1e-3) {
			t.Fatalf("root bounds do not cover primitive %v after spatial splits", b)
		}
	}
}

func TestCollapseToWideBVH(t *testing.T) {
	boxes := gridBoxes(8)
	opts := DefaultOptions()
	opts.SpatialSplits = false
	res := Build(boxes, opts)

	wide := Collapse(res.Nodes, 8)
	if len(wide) == 0 {
		t.Fatalf("expected at least one wide node")
	}
	if wide[0].NumUsed < 2 {
		t.Fatalf("expected the root wide node to collapse more than one child, got %d", wide[0].NumUsed)
	}
	if wide[0].NumUsed > 8 {
		t.Fatalf("wide node exceeded arity: %d", wide[0].NumUsed)
	}
}

func TestCollapseArityFour(t *testing.T) {
	boxes := gridBoxes(8)
	res := Build(boxes, DefaultOptions())
	wide := Collapse(res.Nodes, 4)
	for _, n := range wide {
		if n.NumUsed > 4 {
			t.Fatalf("4-wide node exceeded arity: %d", n.NumUsed)
		}
	}
}
