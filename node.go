package rtree

// Item is a payload stored in the tree. Payloads that can supply their own
// bounding box implement Bounds directly; payloads that can't (third-party
// types the caller doesn't own) are indexed via a BoundsFunc override passed
// to NewWithOptions through WithBoundsFunc instead.
type Item interface {
	Bounds() Rect
}

// BoundsFunc overrides how an item yields its bounding box. When nil, the
// tree calls item.Bounds() directly.
type BoundsFunc func(item Item) Rect

// EqualsFunc is an optional payload-equality predicate for Remove. When nil,
// Remove compares payloads with Go's == operator over the Item interface
// value (identity for pointer-shaped payloads, structural equality for
// comparable value-shaped payloads).
type EqualsFunc func(a, b Item) bool

// node is a tree element that contains either sub-nodes or leaf entries, but
// never both. height is 1 at leaves and 1+max(child.height) for internal
// nodes; RTree.Height() reports root.height directly, so an empty or
// single-leaf tree has height 1.
type node struct {
	children []*node
	items    []Item

	height int
	leaf   bool
	bounds Rect
}

func newNode() *node {
	return &node{
		height: 1,
		leaf:   true,
		bounds: noBounds,
	}
}

// sorting helpers used by chooseSplitAxis and the OMT packer.

type nodesByMinX []*node
type nodesByMinY []*node

func (a nodesByMinX) Len() int           { return len(a) }
func (a nodesByMinX) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a nodesByMinX) Less(i, j int) bool { return a[i].bounds.Min[0] < a[j].bounds.Min[0] }

func (a nodesByMinY) Len() int           { return len(a) }
func (a nodesByMinY) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a nodesByMinY) Less(i, j int) bool { return a[i].bounds.Min[1] < a[j].bounds.Min[1] }

type itemsByMinX struct {
	items []Item
	boxOf BoundsFunc
}
type itemsByMinY struct {
	items []Item
	boxOf BoundsFunc
}

func (a itemsByMinX) Len() int      { return len(a.items) }
func (a itemsByMinX) Swap(i, j int) { a.items[i], a.items[j] = a.items[j], a.items[i] }
func (a itemsByMinX) Less(i, j int) bool {
	return a.boxOf(a.items[i]).Min[0] < a.boxOf(a.items[j]).Min[0]
}

func (a itemsByMinY) Len() int      { return len(a.items) }
func (a itemsByMinY) Swap(i, j int) { a.items[i], a.items[j] = a.items[j], a.items[i] }
func (a itemsByMinY) Less(i, j int) bool {
	return a.boxOf(a.items[i]).Min[1] < a.boxOf(a.items[j]).Min[1]
}

// popNode removes and returns the last slice entry, treating the slice as a
// stack. Used throughout to keep traversals iterative instead of recursive.
func popNode(nodes *[]*node) *node {
	length := len(*nodes)
	n := (*nodes)[length-1]
	*nodes = (*nodes)[:length-1]
	return n
}

// popInt removes and returns the last slice entry.
func popInt(ints *[]int) int {
	length := len(*ints)
	i := (*ints)[length-1]
	*ints = (*ints)[:length-1]
	return i
}
