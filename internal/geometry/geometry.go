package geometry

import (
	"math"
	"sort"

	"formbuilder/internal/domain"
)

const (
	// DefaultGridSize matches the frontend canvas grid.
	DefaultGridSize = 20.0

	// OrderTolerance is the vertical band within which two elements are
	// considered to be on the same row; Order breaks the tie.
	OrderTolerance = 5.0

	// EndOfListSpacing is the vertical gap left after the last element when
	// an insertion point falls below everything on the canvas.
	EndOfListSpacing = 80.0
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Intersects reports whether r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && r.X+r.W > o.X &&
		r.Y < o.Y+o.H && r.Y+r.H > o.Y
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Area returns the rectangle's area.
func (r Rect) Area() float64 {
	return r.W * r.H
}

// Corners returns the four corner points of r.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{r.X, r.Y},
		{r.X + r.W, r.Y},
		{r.X, r.Y + r.H},
		{r.X + r.W, r.Y + r.H},
	}
}

// Distance returns the euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// SnapValue rounds v to the nearest multiple of grid.
func SnapValue(v, grid float64) float64 {
	if grid <= 0 {
		return v
	}
	return math.Round(v/grid) * grid
}

// SnapToGrid rounds both coordinates to the nearest grid multiple.
// Snapping an already-snapped point is a no-op.
func SnapToGrid(p Point, grid float64) Point {
	return Point{X: SnapValue(p.X, grid), Y: SnapValue(p.Y, grid)}
}

// ConstrainToCanvas clamps p so an element of the given size stays inside the
// canvas. When the element is larger than the canvas the upper bound clamps
// to zero rather than going negative.
func ConstrainToCanvas(p Point, canvas Size, element Size) Point {
	maxX := math.Max(0, canvas.Width-element.Width)
	maxY := math.Max(0, canvas.Height-element.Height)
	return Point{
		X: math.Min(math.Max(p.X, 0), maxX),
		Y: math.Min(math.Max(p.Y, 0), maxY),
	}
}

// Bounds is the positional span of a set of elements.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// BoundingBox returns the min/max span of the elements' positions, or nil for
// an empty collection. Positions only — element sizes are not part of the
// simplified on-canvas model.
func BoundingBox(elements []domain.FormElement) *Bounds {
	if len(elements) == 0 {
		return nil
	}
	b := &Bounds{
		MinX: elements[0].Position.X, MaxX: elements[0].Position.X,
		MinY: elements[0].Position.Y, MaxY: elements[0].Position.Y,
	}
	for _, e := range elements[1:] {
		b.MinX = math.Min(b.MinX, e.Position.X)
		b.MaxX = math.Max(b.MaxX, e.Position.X)
		b.MinY = math.Min(b.MinY, e.Position.Y)
		b.MaxY = math.Max(b.MaxY, e.Position.Y)
	}
	return b
}

// Alignment selects the edge or axis elements align to.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignRight  Alignment = "right"
	AlignCenter Alignment = "center"
	AlignTop    Alignment = "top"
	AlignBottom Alignment = "bottom"
	AlignMiddle Alignment = "middle"
)

// AlignElements computes new positions aligning the elements on one edge or
// axis. Fewer than two elements is a no-op (empty map). Input is not mutated.
func AlignElements(elements []domain.FormElement, alignment Alignment) map[string]domain.ElementPosition {
	result := map[string]domain.ElementPosition{}
	if len(elements) < 2 {
		return result
	}

	var target float64
	switch alignment {
	case AlignLeft:
		target = elements[0].Position.X
		for _, e := range elements[1:] {
			target = math.Min(target, e.Position.X)
		}
	case AlignRight:
		target = elements[0].Position.X
		for _, e := range elements[1:] {
			target = math.Max(target, e.Position.X)
		}
	case AlignCenter:
		for _, e := range elements {
			target += e.Position.X
		}
		target /= float64(len(elements))
	case AlignTop:
		target = elements[0].Position.Y
		for _, e := range elements[1:] {
			target = math.Min(target, e.Position.Y)
		}
	case AlignBottom:
		target = elements[0].Position.Y
		for _, e := range elements[1:] {
			target = math.Max(target, e.Position.Y)
		}
	case AlignMiddle:
		for _, e := range elements {
			target += e.Position.Y
		}
		target /= float64(len(elements))
	default:
		return result
	}

	horizontal := alignment == AlignLeft || alignment == AlignRight || alignment == AlignCenter
	for _, e := range elements {
		pos := e.Position
		if horizontal {
			pos.X = target
		} else {
			pos.Y = target
		}
		result[e.ID] = pos
	}
	return result
}

// Direction selects the axis for distribution.
type Direction string

const (
	DirectionHorizontal Direction = "horizontal"
	DirectionVertical   Direction = "vertical"
)

// DistributeElements spaces elements evenly along one axis. The first and last
// (by that axis) stay fixed; the rest are interpolated between them. Fewer
// than three elements is a no-op. Input is not mutated.
func DistributeElements(elements []domain.FormElement, direction Direction) map[string]domain.ElementPosition {
	result := map[string]domain.ElementPosition{}
	if len(elements) < 3 {
		return result
	}

	sorted := make([]domain.FormElement, len(elements))
	copy(sorted, elements)
	sort.SliceStable(sorted, func(i, j int) bool {
		if direction == DirectionHorizontal {
			return sorted[i].Position.X < sorted[j].Position.X
		}
		return sorted[i].Position.Y < sorted[j].Position.Y
	})

	n := len(sorted)
	var first, last float64
	if direction == DirectionHorizontal {
		first, last = sorted[0].Position.X, sorted[n-1].Position.X
	} else {
		first, last = sorted[0].Position.Y, sorted[n-1].Position.Y
	}
	step := (last - first) / float64(n-1)

	for i, e := range sorted {
		pos := e.Position
		v := first + step*float64(i)
		if direction == DirectionHorizontal {
			pos.X = v
		} else {
			pos.Y = v
		}
		result[e.ID] = pos
	}
	return result
}

// InsertionPoint is where a dragged element would land if released now:
// the index to insert at (insert-before semantics) and the Y coordinate the
// drop indicator should render at.
type InsertionPoint struct {
	Index int     `json:"index"`
	Y     float64 `json:"y"`
}

// SortByVertical orders elements top to bottom; within the OrderTolerance
// band, Order is authoritative. The input is not mutated.
func SortByVertical(elements []domain.FormElement) []domain.FormElement {
	sorted := make([]domain.FormElement, len(elements))
	copy(sorted, elements)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Position.Y-sorted[j].Position.Y) <= OrderTolerance {
			return sorted[i].Position.Order < sorted[j].Position.Order
		}
		return sorted[i].Position.Y < sorted[j].Position.Y
	})
	return sorted
}

// CalculateInsertionPoint scans elements top to bottom and returns the slot
// the pointer currently indicates: before the first element sitting below the
// pointer, or after everything with a fixed trailing gap.
func CalculateInsertionPoint(pointerY float64, elements []domain.FormElement, container Rect) InsertionPoint {
	if len(elements) == 0 {
		return InsertionPoint{Index: 0, Y: container.Y}
	}

	sorted := SortByVertical(elements)
	for i, e := range sorted {
		if e.Position.Y > pointerY {
			return InsertionPoint{Index: i, Y: e.Position.Y}
		}
	}
	last := sorted[len(sorted)-1]
	return InsertionPoint{Index: len(sorted), Y: last.Position.Y + EndOfListSpacing}
}
