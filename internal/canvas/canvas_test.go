package canvas

import (
	"testing"

	"formbuilder/internal/domain"
	"formbuilder/internal/geometry"
)

func el(id string, t domain.ElementType, x, y float64) domain.FormElement {
	return domain.FormElement{ID: id, Type: t, Position: domain.ElementPosition{X: x, Y: y}}
}

func TestSelection(t *testing.T) {
	s := NewSelection()
	s.Add("a")
	s.Add("b")
	s.Add("a") // duplicate is a no-op

	if s.Len() != 2 {
		t.Fatalf("expected 2 selected, got %d", s.Len())
	}
	if !s.Has("a") || !s.Has("b") {
		t.Error("expected a and b selected")
	}

	s.Toggle("b")
	if s.Has("b") {
		t.Error("toggle should have removed b")
	}
	s.Toggle("c")
	if !s.Has("c") {
		t.Error("toggle should have added c")
	}

	s.Set("solo")
	if s.Len() != 1 || !s.Has("solo") {
		t.Errorf("Set should replace the selection, got %v", s.IDs())
	}

	s.Clear()
	if s.Len() != 0 {
		t.Error("expected empty selection after Clear")
	}
}

func TestMoveSelected(t *testing.T) {
	elements := []domain.FormElement{
		el("a", domain.ElementTypeText, 100, 100),
		el("b", domain.ElementTypeText, 200, 200),
		el("c", domain.ElementTypeText, 300, 300),
	}
	sel := NewSelection()
	sel.Add("a")
	sel.Add("c")

	moved := MoveSelected(elements, sel, 50, -20, domain.CanvasSize{Width: 1200, Height: 2000}, 0)
	if len(moved) != 2 {
		t.Fatalf("expected 2 moved, got %d", len(moved))
	}
	if moved["a"].X != 150 || moved["a"].Y != 80 {
		t.Errorf("a moved to (%.0f,%.0f), want (150,80)", moved["a"].X, moved["a"].Y)
	}
	if _, ok := moved["b"]; ok {
		t.Error("unselected element must not move")
	}
}

func TestMoveSelected_ConstrainedToCanvas(t *testing.T) {
	elements := []domain.FormElement{el("a", domain.ElementTypeText, 10, 10)}
	sel := NewSelection()
	sel.Add("a")

	moved := MoveSelected(elements, sel, -100, -100, domain.CanvasSize{Width: 1200, Height: 2000}, 0)
	if moved["a"].X != 0 || moved["a"].Y != 0 {
		t.Errorf("expected clamp to origin, got (%.0f,%.0f)", moved["a"].X, moved["a"].Y)
	}
}

func TestMoveSelected_Snaps(t *testing.T) {
	elements := []domain.FormElement{el("a", domain.ElementTypeText, 100, 100)}
	sel := NewSelection()
	sel.Add("a")

	moved := MoveSelected(elements, sel, 13, 27, domain.CanvasSize{Width: 1200, Height: 2000}, 20)
	if moved["a"].X != 120 || moved["a"].Y != 120 {
		t.Errorf("expected snapped (120,120), got (%.0f,%.0f)", moved["a"].X, moved["a"].Y)
	}
}

func TestAlignSelected_OnlySelectedElements(t *testing.T) {
	elements := []domain.FormElement{
		el("a", domain.ElementTypeText, 40, 0),
		el("b", domain.ElementTypeText, 10, 100),
		el("ignored", domain.ElementTypeText, 5, 200),
	}
	sel := NewSelection()
	sel.Add("a")
	sel.Add("b")

	aligned := AlignSelected(elements, sel, geometry.AlignLeft)
	if len(aligned) != 2 {
		t.Fatalf("expected 2 aligned, got %d", len(aligned))
	}
	if aligned["a"].X != 10 || aligned["b"].X != 10 {
		t.Errorf("expected both at x=10, got a=%.0f b=%.0f", aligned["a"].X, aligned["b"].X)
	}
}

func TestDistributeSelected(t *testing.T) {
	elements := []domain.FormElement{
		el("a", domain.ElementTypeText, 0, 0),
		el("b", domain.ElementTypeText, 0, 70),
		el("c", domain.ElementTypeText, 0, 400),
	}
	sel := NewSelection()
	for _, e := range elements {
		sel.Add(e.ID)
	}

	dist := DistributeSelected(elements, sel, geometry.DirectionVertical)
	if dist["b"].Y != 200 {
		t.Errorf("middle element should interpolate to 200, got %.0f", dist["b"].Y)
	}
}

func TestSelectInRect(t *testing.T) {
	elements := []domain.FormElement{
		el("in", domain.ElementTypeText, 50, 50),
		el("out", domain.ElementTypeText, 900, 900),
	}
	sel := SelectInRect(elements, geometry.Rect{X: 0, Y: 0, W: 400, H: 400})
	if !sel.Has("in") || sel.Has("out") {
		t.Errorf("rubber-band selection wrong: %v", sel.IDs())
	}
}

func TestElementsInView_ZoomAware(t *testing.T) {
	elements := []domain.FormElement{
		el("near", domain.ElementTypeText, 100, 100),
		el("far", domain.ElementTypeText, 1500, 1000),
	}

	// At zoom 1 only the near element is inside an 800x600 view.
	visible := ElementsInView(elements, geometry.Rect{W: 800, H: 600}, 1)
	if len(visible) != 1 || visible[0].ID != "near" {
		t.Fatalf("zoom 1: expected only near, got %d", len(visible))
	}

	// Zoomed out to 0.5 the same screen view covers 1600x1200 canvas units.
	visible = ElementsInView(elements, geometry.Rect{W: 800, H: 600}, 0.5)
	if len(visible) != 2 {
		t.Errorf("zoom 0.5: expected both elements, got %d", len(visible))
	}
}

func TestLayoutNextPosition_EmptyCanvas(t *testing.T) {
	l := NewLayout()
	p := l.NextPosition(nil, 280, 72)
	if p.X != 0 || p.Y != 0 {
		t.Errorf("expected origin for empty canvas, got %+v", p)
	}
}

func TestLayoutNextPosition_AvoidsOverlap(t *testing.T) {
	l := NewLayout()
	existing := []domain.FormElement{el("a", domain.ElementTypeText, 0, 0)}
	p := l.NextPosition(existing, 280, 72)

	w, h := domain.DefaultElementSize(domain.ElementTypeText)
	placed := geometry.Rect{X: p.X, Y: p.Y, W: 280, H: 72}
	occupied := geometry.Rect{X: 0, Y: 0, W: w, H: h}
	if placed.Intersects(occupied) {
		t.Errorf("placed element at %+v overlaps existing element", p)
	}
}

func TestLayoutArrange_NoOverlapAndReordered(t *testing.T) {
	l := NewLayout()
	elements := []domain.FormElement{
		el("a", domain.ElementTypeText, 500, 500),
		el("b", domain.ElementTypeText, 0, 0),
		el("c", domain.ElementTypeTextarea, 100, 900),
	}
	arranged := l.Arrange(elements, 0, 0)
	if len(arranged) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(arranged))
	}

	rects := map[string]geometry.Rect{}
	for _, e := range elements {
		w, h := domain.DefaultElementSize(e.Type)
		pos := arranged[e.ID]
		rects[e.ID] = geometry.Rect{X: pos.X, Y: pos.Y, W: w, H: h}
	}
	ids := []string{"a", "b", "c"}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if rects[ids[i]].Intersects(rects[ids[j]]) {
				t.Errorf("arranged elements %s and %s overlap", ids[i], ids[j])
			}
		}
	}

	// Arrange rewrites insertion order to match layout order.
	if arranged["a"].Order != 0 || arranged["b"].Order != 1 || arranged["c"].Order != 2 {
		t.Errorf("orders = %d,%d,%d; want 0,1,2",
			arranged["a"].Order, arranged["b"].Order, arranged["c"].Order)
	}
}
