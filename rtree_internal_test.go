package rtree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

var negInf = math.Inf(-1)
var posInf = math.Inf(1)

// testPoint is the minimal Item used throughout the test suite: a
// degenerate (zero-area) box at (x, y), optionally carrying an ID for
// equality checks independent from pointer identity.
type testPoint struct {
	id   int
	x, y float64
}

func (p *testPoint) Bounds() Rect {
	return Rect{Min: Vec2{p.x, p.y}, Max: Vec2{p.x, p.y}}
}

func pt(id int, x, y float64) *testPoint { return &testPoint{id: id, x: x, y: y} }

// boxItem is an Item with an arbitrary, explicitly-specified bounding box,
// used where a test needs non-degenerate rectangles rather than points.
type boxItem struct {
	box Rect
}

func (b *boxItem) Bounds() Rect { return b.box }

func box(minX, minY, maxX, maxY float64) *boxItem {
	return &boxItem{box: rect(minX, minY, maxX, maxY)}
}

func rect(minX, minY, maxX, maxY float64) Rect {
	return Rect{Min: Vec2{minX, minY}, Max: Vec2{maxX, maxY}}
}

// rbushGridData is the well-known 48-point "grid of grids" fixture used by
// the reference JS rbush test suite: four 50x50 quadrants, each containing
// a 3x4 arrangement of points at local offsets {0,10,20,25,35,45}.
func rbushGridData() []Item {
	offsets := [][2]float64{
		{0, 0}, {10, 10}, {20, 20},
		{25, 0}, {35, 10}, {45, 20},
		{0, 25}, {10, 35}, {20, 45},
		{25, 25}, {35, 35}, {45, 45},
	}
	quadrants := [][2]float64{{0, 0}, {50, 0}, {0, 50}, {50, 50}}

	items := make([]Item, 0, len(offsets)*len(quadrants))
	id := 0
	for _, q := range quadrants {
		for _, o := range offsets {
			items = append(items, pt(id, q[0]+o[0], q[1]+o[1]))
			id++
		}
	}
	return items
}

// bruteForceIntersect returns the payloads among items whose Bounds()
// intersects area, used as an oracle to check tree query results against.
func bruteForceIntersect(items []Item, area Rect) []Item {
	var out []Item
	for _, it := range items {
		if area.Intersects(it.Bounds()) {
			out = append(out, it)
		}
	}
	return out
}

// checkInvariants walks every node of the tree and asserts the structural
// invariants from the data model: MBR tightness (every node's bounds equal
// the tight union of its children), height balance implied by the
// height field matching 1 + max(child height), and fan-out bounds on
// non-root nodes (soft-checked: only asserted when assertFanout is true,
// since Remove's condense step does not rebalance underflowed nodes).
func checkInvariants(t *testing.T, r *RTree, assertFanout bool) {
	t.Helper()
	checkNode(t, r, r.root, true, assertFanout)
}

func checkNode(t *testing.T, r *RTree, n *node, isRoot, assertFanout bool) {
	t.Helper()

	count := len(n.children) + len(n.items)
	if !isRoot && assertFanout {
		require.GreaterOrEqualf(t, count, r.minEntries, "node below minEntries")
		require.LessOrEqualf(t, count, r.maxEntries, "node above maxEntries")
	}

	want := r.calcSubBBox(n, 0, count)
	require.Equal(t, want, n.bounds, "node bounds are not the tight union of its children")

	if n.leaf {
		return
	}
	childHeight := -1
	for _, child := range n.children {
		if childHeight == -1 {
			childHeight = child.height
		}
		require.Equal(t, childHeight, child.height, "not all children share the same height")
		checkNode(t, r, child, false, assertFanout)
	}
	require.Equal(t, childHeight+1, n.height, "height is not 1 + child height")
}

// collectIDs returns the testPoint ids among items, used with
// assert.ElementsMatch to compare multisets independent of pointer identity
// and order.
func collectIDs(items []Item) []int {
	ids := make([]int, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.(*testPoint).id)
	}
	return ids
}
