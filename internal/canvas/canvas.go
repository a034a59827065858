// Package canvas is the operations layer over a form's element collection and
// its selection set: multi-element move, align, distribute, viewport queries,
// and automatic placement. It has no undo/redo coupling — callers feed the
// resulting position maps into commands.
package canvas

import (
	"formbuilder/internal/domain"
	"formbuilder/internal/geometry"
)

// Selection is an ordered set of selected element ids.
type Selection struct {
	ids   []string
	index map[string]struct{}
}

// NewSelection creates an empty selection set.
func NewSelection() *Selection {
	return &Selection{index: map[string]struct{}{}}
}

// Set replaces the selection with a single id.
func (s *Selection) Set(id string) {
	s.ids = []string{id}
	s.index = map[string]struct{}{id: {}}
}

// Add appends an id to the selection if not already present.
func (s *Selection) Add(id string) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.ids = append(s.ids, id)
	s.index[id] = struct{}{}
}

// Toggle adds the id if absent, removes it if present.
func (s *Selection) Toggle(id string) {
	if _, ok := s.index[id]; !ok {
		s.Add(id)
		return
	}
	delete(s.index, id)
	for i, existing := range s.ids {
		if existing == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = nil
	s.index = map[string]struct{}{}
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// IDs returns the selected ids in selection order.
func (s *Selection) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the selection size.
func (s *Selection) Len() int {
	return len(s.ids)
}

// selected filters elements down to the current selection, preserving
// element order.
func selected(elements []domain.FormElement, sel *Selection) []domain.FormElement {
	var out []domain.FormElement
	for _, e := range elements {
		if sel.Has(e.ID) {
			out = append(out, e)
		}
	}
	return out
}

// MoveSelected shifts every selected element by (dx, dy), constrained to the
// canvas and optionally snapped. Returns a map of element id to new position.
func MoveSelected(elements []domain.FormElement, sel *Selection, dx, dy float64, canvas domain.CanvasSize, grid float64) map[string]domain.ElementPosition {
	result := map[string]domain.ElementPosition{}
	for _, e := range selected(elements, sel) {
		w, h := domain.DefaultElementSize(e.Type)
		p := geometry.Point{X: e.Position.X + dx, Y: e.Position.Y + dy}
		if grid > 0 {
			p = geometry.SnapToGrid(p, grid)
		}
		p = geometry.ConstrainToCanvas(p,
			geometry.Size{Width: canvas.Width, Height: canvas.Height},
			geometry.Size{Width: w, Height: h})
		pos := e.Position
		pos.X, pos.Y = p.X, p.Y
		result[e.ID] = pos
	}
	return result
}

// AlignSelected aligns the selected elements on one edge or axis.
func AlignSelected(elements []domain.FormElement, sel *Selection, alignment geometry.Alignment) map[string]domain.ElementPosition {
	return geometry.AlignElements(selected(elements, sel), alignment)
}

// DistributeSelected spaces the selected elements evenly along one axis.
func DistributeSelected(elements []domain.FormElement, sel *Selection, direction geometry.Direction) map[string]domain.ElementPosition {
	return geometry.DistributeElements(selected(elements, sel), direction)
}

// SelectInRect returns a selection of all elements whose footprint intersects
// the given canvas rectangle (rubber-band select).
func SelectInRect(elements []domain.FormElement, r geometry.Rect) *Selection {
	sel := NewSelection()
	for _, e := range elements {
		w, h := domain.DefaultElementSize(e.Type)
		if r.Intersects(geometry.Rect{X: e.Position.X, Y: e.Position.Y, W: w, H: h}) {
			sel.Add(e.ID)
		}
	}
	return sel
}

// ElementsInView returns the elements visible in a screen-space viewport at
// the given zoom level. The viewport is divided by zoom to get canvas
// coordinates before the intersection test.
func ElementsInView(elements []domain.FormElement, view geometry.Rect, zoom float64) []domain.FormElement {
	if zoom <= 0 {
		zoom = 1
	}
	canvasView := geometry.Rect{
		X: view.X / zoom,
		Y: view.Y / zoom,
		W: view.W / zoom,
		H: view.H / zoom,
	}
	var out []domain.FormElement
	for _, e := range elements {
		w, h := domain.DefaultElementSize(e.Type)
		if canvasView.Intersects(geometry.Rect{X: e.Position.X, Y: e.Position.Y, W: w, H: h}) {
			out = append(out, e)
		}
	}
	return out
}

// Layout handles automatic placement so programmatically added elements don't
// overlap existing ones.
type Layout struct {
	gridSize    float64
	padding     float64
	maxRowWidth float64
}

// NewLayout creates a Layout with the default grid, one grid cell of padding
// between elements, and the canvas default width as the row bound.
func NewLayout() *Layout {
	return &Layout{
		gridSize:    geometry.DefaultGridSize,
		padding:     geometry.DefaultGridSize * 2,
		maxRowWidth: 1200,
	}
}

// NextPosition scans rows top-to-bottom, columns left-to-right, for the first
// grid position where an element of size (w, h) fits without overlapping any
// existing element (padding included).
func (l *Layout) NextPosition(existing []domain.FormElement, w, h float64) geometry.Point {
	if len(existing) == 0 {
		return geometry.Point{}
	}

	occupied := make([]geometry.Rect, len(existing))
	for i, e := range existing {
		ew, eh := domain.DefaultElementSize(e.Type)
		occupied[i] = geometry.Rect{X: e.Position.X, Y: e.Position.Y, W: ew, H: eh}
	}

	for y := 0.0; y < 100000; y += l.gridSize {
		for x := 0.0; x+w <= l.maxRowWidth; x += l.gridSize {
			candidate := geometry.Rect{
				X: geometry.SnapValue(x, l.gridSize),
				Y: geometry.SnapValue(y, l.gridSize),
				W: w, H: h,
			}
			overlaps := false
			for _, occ := range occupied {
				padded := geometry.Rect{
					X: occ.X - l.padding,
					Y: occ.Y - l.padding,
					W: occ.W + l.padding*2,
					H: occ.H + l.padding*2,
				}
				if candidate.Intersects(padded) {
					overlaps = true
					break
				}
			}
			if !overlaps {
				return geometry.Point{X: candidate.X, Y: candidate.Y}
			}
		}
	}

	// Fallback: below everything.
	maxY := 0.0
	for _, occ := range occupied {
		if occ.Y+occ.H > maxY {
			maxY = occ.Y + occ.H
		}
	}
	return geometry.Point{X: 0, Y: geometry.SnapValue(maxY+l.padding, l.gridSize)}
}

// Arrange lays the given elements out in a wrapping grid starting at
// (startX, startY) and returns a map of element id to new position.
func (l *Layout) Arrange(elements []domain.FormElement, startX, startY float64) map[string]domain.ElementPosition {
	result := map[string]domain.ElementPosition{}
	x := geometry.SnapValue(startX, l.gridSize)
	y := geometry.SnapValue(startY, l.gridSize)
	rowHeight := 0.0

	for i, e := range elements {
		w, h := domain.DefaultElementSize(e.Type)

		if x+w > l.maxRowWidth && x > startX {
			x = geometry.SnapValue(startX, l.gridSize)
			y += geometry.SnapValue(rowHeight+l.padding, l.gridSize)
			rowHeight = 0
		}

		pos := e.Position
		pos.X, pos.Y = x, y
		pos.Order = i
		result[e.ID] = pos

		if h > rowHeight {
			rowHeight = h
		}
		x += geometry.SnapValue(w+l.padding, l.gridSize)
	}
	return result
}
