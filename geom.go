package rtree

import "math"

// Vec2 is a 2D coordinate pair, in the style of vmath.Vec2f but carrying
// double precision to match the tree's IEEE-754 double contract.
type Vec2 [2]float64

// Rect is an axis-aligned bounding box described by its minimum and maximum
// corners. It follows the teacher's vmath.Rectf API one-for-one (Merge,
// Intersects, ContainsRect, Normalize, Area) with float64 lanes.
type Rect struct {
	Min Vec2
	Max Vec2
}

// noBounds is an inside-out rectangle that shrinks to whatever it is first
// merged with; used as the accumulator seed for bounding-box computation.
var noBounds = Rect{
	Min: Vec2{math.Inf(1), math.Inf(1)},
	Max: Vec2{math.Inf(-1), math.Inf(-1)},
}

// Area returns width * height. Degenerate (point or line) rectangles have
// zero area. An inside-out rectangle's area can be negative, zero, or (for
// the Min={+Inf,+Inf}/Max={-Inf,-Inf} accumulator seed specifically)
// positive, since both factors are negative; use Valid() to test
// inside-out-ness directly rather than inspecting Area()'s sign.
func (r Rect) Area() float64 {
	return (r.Max[0] - r.Min[0]) * (r.Max[1] - r.Min[1])
}

// Margin returns the half-perimeter (width + height), used as the split
// quality heuristic.
func (r Rect) Margin() float64 {
	return (r.Max[0] - r.Min[0]) + (r.Max[1] - r.Min[1])
}

// Merge returns the tight union of r and o.
func (r Rect) Merge(o Rect) Rect {
	return Rect{
		Min: Vec2{math.Min(r.Min[0], o.Min[0]), math.Min(r.Min[1], o.Min[1])},
		Max: Vec2{math.Max(r.Max[0], o.Max[0]), math.Max(r.Max[1], o.Max[1])},
	}
}

// Intersects reports whether r and o share at least one point. Rectangles
// that only touch at a shared edge/corner with exactly equal floats are
// still considered intersecting (non-strict separation test).
func (r Rect) Intersects(o Rect) bool {
	return r.Min[0] <= o.Max[0] && r.Max[0] >= o.Min[0] &&
		r.Min[1] <= o.Max[1] && r.Max[1] >= o.Min[1]
}

// ContainsRect reports whether o lies entirely within r.
func (r Rect) ContainsRect(o Rect) bool {
	return o.Min[0] >= r.Min[0] && o.Max[0] <= r.Max[0] &&
		o.Min[1] >= r.Min[1] && o.Max[1] <= r.Max[1]
}

// Normalize returns a copy of r with Min/Max swapped per-axis where the
// caller supplied them backwards. Query rectangles go through this before
// use; MBRs computed internally are always already normalized.
func (r Rect) Normalize() Rect {
	if r.Min[0] > r.Max[0] {
		r.Min[0], r.Max[0] = r.Max[0], r.Min[0]
	}
	if r.Min[1] > r.Max[1] {
		r.Min[1], r.Max[1] = r.Max[1], r.Min[1]
	}
	return r
}

// Valid reports whether r has no axis with Min > Max (post-normalization
// this is always true; it exists to validate caller-supplied bounds before
// normalizing them away, per the InvalidArgument error kind).
func (r Rect) Valid() bool {
	return r.Min[0] <= r.Max[0] && r.Min[1] <= r.Max[1]
}

// extend mutates *a in place to the union of *a and b, mirroring the
// teacher's free-function `extend` helper (vmath.Rectf has no in-place
// merge, so the teacher wraps Merge in a tiny free function; we keep that
// shape on our own Rect type for the same reason).
func extend(a *Rect, b Rect) {
	*a = a.Merge(b)
}

// enlargedArea returns the area of bbox after being enlarged to also cover
// newChild, without mutating either argument.
func enlargedArea(bbox, newChild Rect) float64 {
	width := math.Max(newChild.Max[0], bbox.Max[0]) - math.Min(newChild.Min[0], bbox.Min[0])
	height := math.Max(newChild.Max[1], bbox.Max[1]) - math.Min(newChild.Min[1], bbox.Min[1])
	return width * height
}

// intersectionArea returns the area of the overlap between a and b, or 0 if
// they don't overlap on some axis.
func intersectionArea(a, b Rect) float64 {
	width := math.Min(a.Max[0], b.Max[0]) - math.Max(a.Min[0], b.Min[0])
	if width <= 0 {
		return 0
	}
	height := math.Min(a.Max[1], b.Max[1]) - math.Max(a.Min[1], b.Min[1])
	if height <= 0 {
		return 0
	}
	return width * height
}

// bboxMargin returns the bbox's sum of width and height.
func bboxMargin(bbox Rect) float64 {
	return (bbox.Max[0] - bbox.Min[0]) + (bbox.Max[1] - bbox.Min[1])
}
