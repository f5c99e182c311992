// Package rtree implements an in-memory, height-balanced R-tree over
// axis-aligned 2D bounding boxes. It supports dynamic insertion, STR/OMT
// bulk loading, deletion, range search and collision tests, and a
// structural dump/restore pair for host-controlled serialization.
package rtree

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// ErrInvalidMaxEntries is returned by NewStrict when maxEntries < 4.
var ErrInvalidMaxEntries = errors.New("rtree: maxEntries must be >= 4")

// ErrInvalidBounds is returned when an item's bounding box has Min > Max on
// some axis. Query rectangles are normalized instead of rejected.
var ErrInvalidBounds = errors.New("rtree: invalid bounds: min > max on some axis")

// DefaultMaxEntries is a reasonable maxEntries for callers with no
// particular tuning target.
const DefaultMaxEntries = 9

// RTree is a 2D spatial index over axis-aligned bounding boxes.
//
// RTree is not safe for concurrent mutation. Concurrent read-only access
// (Search/Collides/All/Dump alongside each other, with no writer) is safe.
type RTree struct {
	maxEntries, minEntries int
	boundsFn               BoundsFunc
	encodeEntry            EncodeEntry
	decodeEntry            DecodeEntry
	log                    zerolog.Logger
	root                   *node
}

// Option configures an RTree constructed with NewWithOptions.
type Option func(*RTree)

// WithBoundsFunc overrides how items yield their bounding box. When not
// supplied, the tree calls item.Bounds() directly.
func WithBoundsFunc(fn BoundsFunc) Option {
	return func(r *RTree) { r.boundsFn = fn }
}

// WithLogger attaches a zerolog.Logger used for debug-level instrumentation
// of bulk loads (pack height/fan-out decisions). The default is a no-op
// logger; the tree never logs above Debug and never lets logging affect
// behavior.
func WithLogger(log zerolog.Logger) Option {
	return func(r *RTree) { r.log = log }
}

// New creates an empty RTree with the given maxEntries (the maximum number
// of children/entries per node before it splits). maxEntries below 4 is
// clamped up to 4, matching the teacher's convention, rather than rejected,
// since this is almost always a compile-time constant rather than
// attacker-controlled input; see NewStrict for a constructor that instead
// returns an error.
func New(maxEntries int) *RTree {
	if maxEntries < 4 {
		maxEntries = 4
	}
	r := &RTree{
		maxEntries: maxEntries,
		minEntries: maxInt(2, int(math.Ceil(float64(maxEntries)*0.4))),
		log:        zerolog.Nop(),
	}
	r.Clear()
	return r
}

// NewStrict creates an empty RTree, rejecting maxEntries < 4 with
// ErrInvalidMaxEntries instead of silently clamping it. Useful when
// maxEntries is plumbed in from external configuration.
func NewStrict(maxEntries int) (*RTree, error) {
	if maxEntries < 4 {
		return nil, fmt.Errorf("rtree: NewStrict(%d): %w", maxEntries, ErrInvalidMaxEntries)
	}
	return New(maxEntries), nil
}

// NewWithOptions creates an empty RTree, applying the given options after
// the maxEntries default/clamp logic from New.
func NewWithOptions(maxEntries int, opts ...Option) *RTree {
	r := New(maxEntries)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// bbox returns the bounding box of item, using the tree's BoundsFunc
// override if one was configured, falling back to item.Bounds().
func (r *RTree) bbox(item Item) Rect {
	if r.boundsFn != nil {
		return r.boundsFn(item)
	}
	return item.Bounds()
}

// Clear removes all items, replacing the root with a fresh empty leaf.
func (r *RTree) Clear() *RTree {
	r.root = newNode()
	return r
}

// Insert adds a single item. Returns an error wrapping ErrInvalidBounds if
// the item's bounding box has Min > Max on some axis.
func (r *RTree) Insert(item Item) error {
	bbox := r.bbox(item)
	if !bbox.Valid() {
		return fmt.Errorf("rtree: Insert: %w", ErrInvalidBounds)
	}
	r.insertBBox(item, bbox)
	return nil
}

// insertBBox is the internal insert path once bbox has already been
// validated and computed, shared with Load's single-item fallback.
func (r *RTree) insertBBox(item Item, bbox Rect) {
	level := r.root.height - 1

	leafNode, insertPath := r.chooseSubtree(bbox, r.root, level)
	leafNode.items = append(leafNode.items, item)
	extend(&leafNode.bounds, bbox)

	level = r.splitNodes(insertPath, level)
	r.adjustParentBBoxes(insertPath, bbox, level)
}

// Load bulk-inserts a batch of items, using an STR/OMT packing algorithm
// that is significantly faster than inserting items one at a time and
// produces a better-balanced tree for clustered input. Empty input is a
// no-op. Returns an error wrapping ErrInvalidBounds if any item's bounding
// box has Min > Max on some axis, in which case no item from the batch is
// inserted.
func (r *RTree) Load(items []Item) error {
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		if !r.bbox(item).Valid() {
			return fmt.Errorf("rtree: Load: %w", ErrInvalidBounds)
		}
	}

	if len(items) < r.minEntries {
		for _, item := range items {
			r.insertBBox(item, r.bbox(item))
		}
		return nil
	}

	r.log.Debug().Int("items", len(items)).Int("maxEntries", r.maxEntries).Msg("bulk load: packing subtree")
	newTree := r.build(items, 0, len(items)-1, 0)
	r.log.Debug().Int("height", newTree.height).Msg("bulk load: packed subtree built")

	if len(r.root.children)+len(r.root.items) == 0 {
		r.root = newTree
	} else if r.root.height == newTree.height {
		r.splitRoot(r.root, newTree)
	} else {
		if r.root.height < newTree.height { // swap so the taller tree hosts the shorter one
			r.root, newTree = newTree, r.root
		}
		r.insertNode(newTree, r.root.height-newTree.height-1)
	}
	return nil
}

// Remove deletes the given item from the tree. equals is optional: when
// nil, payloads are compared with Go's == operator; supply equals when you
// only hold a copy of the originally inserted item. Removing an item that
// isn't present is a no-op.
func (r *RTree) Remove(item Item, equals EqualsFunc) *RTree {
	bbox := r.bbox(item)

	var path []*node
	var childIndexes []int
	var parent *node
	var childIdx int

	goingUp := false

	nod := r.root
	for nod != nil || len(path) > 0 {
		if nod == nil { // go up
			nod = popNode(&path)
			parent = r.root
			if len(path) > 1 {
				parent = path[len(path)-1]
			}
			childIdx = popInt(&childIndexes)
			goingUp = true
		}

		if nod.leaf {
			if removeChildItem(nod, item, equals) {
				r.condense(append(path, nod))
				return r
			}
		}

		contained := nod.bounds.ContainsRect(bbox)
		if !goingUp && !nod.leaf && contained { // go down
			path = append(path, nod)
			childIndexes = append(childIndexes, childIdx)
			childIdx = 0
			parent = nod
			nod = nod.children[0]
		} else if parent != nil { // go right
			nod = nil
			childIdx++
			if childIdx < len(parent.children) {
				nod = parent.children[childIdx]
			}
			goingUp = false
		} else { // exhausted the tree without a match
			nod = nil
		}
	}
	return r
}

// insertNode inserts a subtree node at the given level, used by Load's
// merge step when the packed tree is shorter than the existing tree.
func (r *RTree) insertNode(n *node, level int) {
	bbox := n.bounds

	leafNode, insertPath := r.chooseSubtree(bbox, r.root, level)
	leafNode.children = append(leafNode.children, n)
	extend(&leafNode.bounds, bbox)

	level = r.splitNodes(insertPath, level)
	r.adjustParentBBoxes(insertPath, bbox, level)
}

// splitNodes splits all overflowing nodes along the insertion path, walking
// from the insertion level up to the root. It returns the level of the
// deepest node that was not split (-1 if the root was split); split nodes
// already have tight bounds, so only that level and above need extending.
func (r *RTree) splitNodes(insertPath []*node, level int) int {
	for level >= 0 {
		entries := len(insertPath[level].children) + len(insertPath[level].items)
		if entries <= r.maxEntries {
			break
		}
		r.split(insertPath, level)
		level--
	}
	return level
}

// build recursively creates a packed tree from items[left:right+1] using an
// OMT (overlap-minimizing top-down) bulk-loading algorithm: group by
// minimum x into roughly-square column groups, then group each column by
// minimum y into roughly-square cell groups, recursing until each group fits
// in a single leaf. Items are ordered by the Min corner of their boxes, not
// by their centers.
func (r *RTree) build(items []Item, left, right, height int) *node {
	count := float64(right - left + 1)
	max := float64(r.maxEntries)

	if count <= max { // create leaf
		n := newNode()
		n.items = append(n.items, items[left:right+1]...)
		r.calcBBox(n)
		return n
	}

	if height == 0 {
		height = int(math.Ceil(logN(count, max)))  // target height of resulting tree = LOGmax(count)
		maxCap := math.Pow(max, float64(height-1)) // total capacity in the resulting tree
		max = math.Ceil(count / maxCap)             // target number of root entries to maximize storage utilization
	}

	n := newNode()
	n.leaf = false
	n.height = height

	// Split the items into 'max' groups, each roughly square: group by
	// x-coordinate into grpX columns, then group each column by
	// y-coordinate into grpY cells.
	grpY := int(math.Ceil(count / max))
	grpX := grpY * int(math.Ceil(math.Sqrt(max)))

	r.groupItems(items, left, right, grpX, true)

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := left; i <= right; i += grpX {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			right2 := minInt(i+grpX-1, right)
			r.groupItems(items, i, right2, grpY, false)

			for j := i; j <= right2; j += grpY {
				right3 := minInt(j+grpY-1, right2)
				sub := r.build(items, j, right3, height-1)
				mu.Lock()
				n.children = append(n.children, sub)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	r.calcBBox(n)
	return n
}

// chooseSubtree finds the node best suited for the new entry, minimizing
// enlargement (then area as a tie-break). Returns the node and the path
// taken to find it; the returned node is the last element of the path.
// level bounds how deep to descend (used when inserting a whole subtree
// during a bulk-load merge rather than a single leaf entry).
func (r *RTree) chooseSubtree(bbox Rect, root *node, level int) (*node, []*node) {
	path := make([]*node, 0)

	subNode := root
	for {
		path = append(path, subNode)

		if subNode.leaf || len(path)-1 == level {
			break
		}

		minArea := math.Inf(1)
		minEnlargement := math.Inf(1)
		var nextSubNode *node

		for _, child := range subNode.children {
			area := child.bounds.Area()
			enlargement := enlargedArea(bbox, child.bounds) - area

			if enlargement < minEnlargement {
				minEnlargement = enlargement
				minArea = math.Min(minArea, area)
				nextSubNode = child
				continue
			}
			if enlargement == minEnlargement {
				if area < minArea {
					minArea = area
					nextSubNode = child
				}
			}
		}
		subNode = nextSubNode
	}
	return subNode, path
}

// split divides the overflowing node at insertPath[level] into two siblings.
func (r *RTree) split(insertPath []*node, level int) {
	n := insertPath[level]
	min := r.minEntries
	max := len(n.children) + len(n.items)

	r.chooseSplitAxis(n, min, max)
	splitIndex := r.chooseSplitIndex(n, min, max)

	sibling := newNode()
	sibling.height = n.height
	sibling.leaf = n.leaf

	if n.leaf {
		sibling.items = append(sibling.items, n.items[splitIndex:]...)
		n.items = n.items[:splitIndex]
	} else {
		sibling.children = append(sibling.children, n.children[splitIndex:]...)
		n.children = n.children[:splitIndex]
	}

	r.calcBBox(n)
	r.calcBBox(sibling)

	if level > 0 {
		insertPath[level-1].children = append(insertPath[level-1].children, sibling)
	} else {
		r.splitRoot(n, sibling)
	}
}

// splitRoot replaces the current root with a new internal root whose two
// children are a and b, growing the tree height by one.
func (r *RTree) splitRoot(a, b *node) {
	newHeight := r.root.height + 1
	r.root = newNode()
	r.root.children = []*node{a, b}
	r.root.height = newHeight
	r.root.leaf = false
	r.calcBBox(r.root)
}

// chooseSplitIndex finds the index at which node's children (already sorted
// by the chosen split axis) should be divided, minimizing overlap between
// the two resulting bounding boxes and then total area.
func (r *RTree) chooseSplitIndex(n *node, min, count int) int {
	minOverlap := math.Inf(1)
	minArea := math.Inf(1)

	idx := count - min
	for i := min; i <= count-min; i++ {
		bbox1 := r.calcSubBBox(n, 0, i)
		bbox2 := r.calcSubBBox(n, i, count)

		overlap := intersectionArea(bbox1, bbox2)
		area := bbox1.Area() + bbox2.Area()

		if overlap < minOverlap {
			minOverlap = overlap
			minArea = math.Min(area, minArea)
			idx = i
		} else if overlap == minOverlap {
			if area < minArea {
				minArea = area
				idx = i
			}
		}
	}
	return idx
}

// chooseSplitAxis sorts node's entries by whichever axis (x or y) yields the
// smaller total margin across all candidate split distributions.
func (r *RTree) chooseSplitAxis(n *node, min, max int) {
	var sortMinX, sortMinY sort.Interface
	if n.leaf {
		sortMinX = itemsByMinX{n.items, r.boxOf}
		sortMinY = itemsByMinY{n.items, r.boxOf}
	} else {
		sortMinX = nodesByMinX(n.children)
		sortMinY = nodesByMinY(n.children)
	}

	sort.Sort(sortMinX)
	xMargin := r.allDistMargin(n, min, max)
	sort.Sort(sortMinY)
	yMargin := r.allDistMargin(n, min, max)

	// If the total margin across all distributions is smaller for x,
	// re-sort by x; otherwise leave the y-sort from above in place.
	if xMargin < yMargin {
		sort.Sort(sortMinX)
	}
}

// boxOf is the BoundsFunc used for sorting leaf items; it defers to the
// tree's override when configured, otherwise calls item.Bounds().
func (r *RTree) boxOf(item Item) Rect {
	return r.bbox(item)
}

// allDistMargin sums the margins of every candidate left/right split
// distribution of node's entries (already sorted along a candidate axis),
// used as a heuristic for picking the best split axis.
func (r *RTree) allDistMargin(n *node, min, max int) float64 {
	leftBBox := r.calcSubBBox(n, 0, min)
	rightBBox := r.calcSubBBox(n, max-min, max)

	margin := bboxMargin(leftBBox) + bboxMargin(rightBBox)

	for i := min; i < max-min; i++ {
		if n.leaf {
			extend(&leftBBox, r.bbox(n.items[i]))
		} else {
			extend(&leftBBox, n.children[i].bounds)
		}
		margin += bboxMargin(leftBBox)
	}

	for i := max - min - 1; i >= min; i-- {
		if n.leaf {
			extend(&rightBBox, r.bbox(n.items[i]))
		} else {
			extend(&rightBBox, n.children[i].bounds)
		}
		margin += bboxMargin(rightBBox)
	}
	return margin
}

// adjustParentBBoxes extends every bounding box along the insertion path
// (from the insertion level up to the root) to cover the newly added bbox.
func (r *RTree) adjustParentBBoxes(insertPath []*node, bbox Rect, level int) {
	for i := level; i >= 0; i-- {
		extend(&insertPath[i].bounds, bbox)
	}
}

// condense walks path bottom-up after a removal, dropping any node that
// became empty and tightening the MBR of every remaining ancestor. It does
// not re-balance underflowed nodes by reinsertion; this variant only
// compacts empty subtrees, which can leave a node below minEntries.
func (r *RTree) condense(path []*node) {
	for i := len(path) - 1; i >= 0; i-- {
		item := path[i]
		itemCount := len(item.children) + len(item.items)
		if itemCount == 0 {
			if i > 0 {
				removeChildNode(path[i-1], item)
			} else {
				r.Clear()
			}
		} else {
			r.calcBBox(item)
		}
	}
	r.promoteSingleChildRoot()
}

// promoteSingleChildRoot repeatedly lowers the tree's height by promoting
// the root's only child, after condensing removed nodes away, collapsing a
// cascaded chain of single-child roots down to the first one with more than
// one child (or a leaf).
func (r *RTree) promoteSingleChildRoot() {
	for !r.root.leaf && len(r.root.children) == 1 {
		r.root = r.root.children[0]
	}
}

// removeChildItem removes a matching child item from a leaf. Returns true
// if an item was found and removed.
func removeChildItem(parent *node, child Item, equals EqualsFunc) bool {
	for idx, item := range parent.items {
		var found bool
		if equals == nil {
			found = child == item
		} else {
			found = equals(child, item)
		}
		if found {
			parent.items = append(parent.items[:idx], parent.items[idx+1:]...)
			return true
		}
	}
	return false
}

// removeChildNode removes a child node from its direct parent by identity.
func removeChildNode(parent, child *node) {
	for idx, n := range parent.children {
		if n == child {
			parent.children = append(parent.children[:idx], parent.children[idx+1:]...)
			return
		}
	}
}

// groupItems partially sorts items[leftIdx:rightIdx+1] into groups of
// groupSize unsorted items, with the groups themselves sorted relative to
// each other. xDim selects sorting by MinX (true) or MinY (false). This
// combines quickselect with a non-recursive divide & conquer sweep, which
// is why bulk load stays sub-O(n log n) on its grouping passes.
func (r *RTree) groupItems(items []Item, leftIdx, rightIdx, groupSize int, xDim bool) {
	stack := []int{leftIdx, rightIdx}
	for len(stack) > 0 {
		rightIdx, leftIdx = popInt(&stack), popInt(&stack)

		size := rightIdx - leftIdx
		if size <= groupSize {
			continue
		}

		groups := float64(size) / float64(groupSize)
		pivot := int(math.Ceil(groups/2)) * groupSize // center group
		if xDim {
			quickselect(itemsByMinX{items[leftIdx : rightIdx+1], r.boxOf}, pivot)
		} else {
			quickselect(itemsByMinY{items[leftIdx : rightIdx+1], r.boxOf}, pivot)
		}
		pivot += leftIdx
		stack = append(stack, leftIdx, pivot, pivot, rightIdx)
	}
}

// calcBBox recomputes node's bounds from the tight union of all its
// children/items.
func (r *RTree) calcBBox(n *node) {
	n.bounds = r.calcSubBBox(n, 0, len(n.children)+len(n.items))
}

// calcSubBBox computes the tight union of node's entries in [start:end).
func (r *RTree) calcSubBBox(n *node, start, end int) Rect {
	bbox := noBounds
	if n.leaf {
		for _, item := range n.items[start:end] {
			extend(&bbox, r.bbox(item))
		}
	} else {
		for _, child := range n.children[start:end] {
			extend(&bbox, child.bounds)
		}
	}
	return bbox
}

func logN(v, base float64) float64 {
	return math.Log(v) / math.Log(base)
}
