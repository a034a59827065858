package geometry

import (
	"testing"

	"formbuilder/internal/domain"
)

func el(id string, x, y float64, order int) domain.FormElement {
	return domain.FormElement{
		ID:       id,
		Type:     domain.ElementTypeText,
		Position: domain.ElementPosition{X: x, Y: y, Order: order},
	}
}

func TestSnapToGrid(t *testing.T) {
	tests := []struct {
		in   Point
		grid float64
		want Point
	}{
		{Point{0, 0}, 20, Point{0, 0}},
		{Point{9, 9}, 20, Point{0, 0}},
		{Point{10, 10}, 20, Point{20, 20}},
		{Point{29, 31}, 20, Point{20, 40}},
		{Point{45, 15}, 30, Point{60, 30}},
		{Point{-9, -11}, 20, Point{0, -20}},
	}
	for _, tt := range tests {
		got := SnapToGrid(tt.in, tt.grid)
		if got != tt.want {
			t.Errorf("SnapToGrid(%v, %.0f) = %v, want %v", tt.in, tt.grid, got, tt.want)
		}
	}
}

func TestSnapToGrid_Idempotent(t *testing.T) {
	points := []Point{{0, 0}, {13, 87}, {101.5, 44.2}, {-33, 7}}
	grids := []float64{1, 10, 20, 30, 55}
	for _, p := range points {
		for _, g := range grids {
			once := SnapToGrid(p, g)
			twice := SnapToGrid(once, g)
			if once != twice {
				t.Errorf("snap not idempotent: snap(%v, %.0f) = %v, re-snap = %v", p, g, once, twice)
			}
		}
	}
}

func TestSnapToGrid_ZeroGridIsNoop(t *testing.T) {
	p := Point{13, 27}
	if got := SnapToGrid(p, 0); got != p {
		t.Errorf("SnapToGrid with zero grid = %v, want %v", got, p)
	}
}

func TestConstrainToCanvas(t *testing.T) {
	canvas := Size{Width: 1000, Height: 800}
	element := Size{Width: 200, Height: 100}

	tests := []struct {
		in, want Point
	}{
		{Point{50, 50}, Point{50, 50}},
		{Point{-10, -10}, Point{0, 0}},
		{Point{950, 50}, Point{800, 50}},
		{Point{50, 780}, Point{50, 700}},
		{Point{2000, 2000}, Point{800, 700}},
	}
	for _, tt := range tests {
		if got := ConstrainToCanvas(tt.in, canvas, element); got != tt.want {
			t.Errorf("ConstrainToCanvas(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConstrainToCanvas_ElementLargerThanCanvas(t *testing.T) {
	got := ConstrainToCanvas(Point{100, 100}, Size{Width: 300, Height: 200}, Size{Width: 500, Height: 400})
	if got != (Point{0, 0}) {
		t.Errorf("expected clamp bound to floor at 0, got %v", got)
	}
}

func TestBoundingBox_Empty(t *testing.T) {
	if b := BoundingBox(nil); b != nil {
		t.Errorf("expected nil bounds for empty collection, got %+v", b)
	}
}

func TestBoundingBox(t *testing.T) {
	b := BoundingBox([]domain.FormElement{
		el("a", 100, 50, 0),
		el("b", 20, 300, 1),
		el("c", 400, 120, 2),
	})
	if b == nil {
		t.Fatal("expected bounds")
	}
	if b.MinX != 20 || b.MaxX != 400 || b.MinY != 50 || b.MaxY != 300 {
		t.Errorf("bounds = %+v, want min (20,50) max (400,300)", b)
	}
}

func TestAlignElements_SingleElementIsNoop(t *testing.T) {
	result := AlignElements([]domain.FormElement{el("a", 10, 10, 0)}, AlignLeft)
	if len(result) != 0 {
		t.Errorf("expected empty map for single element, got %d entries", len(result))
	}
}

func TestAlignElements_Left(t *testing.T) {
	result := AlignElements([]domain.FormElement{
		el("a", 40, 10, 0),
		el("b", 15, 120, 1),
	}, AlignLeft)
	if len(result) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result))
	}
	if result["a"].X != 15 || result["b"].X != 15 {
		t.Errorf("expected both x = 15, got a=%.0f b=%.0f", result["a"].X, result["b"].X)
	}
	if result["a"].Y != 10 || result["b"].Y != 120 {
		t.Error("alignment must not touch the other axis")
	}
}

func TestAlignElements_RightAndCenter(t *testing.T) {
	elements := []domain.FormElement{
		el("a", 0, 0, 0),
		el("b", 100, 50, 1),
		el("c", 50, 100, 2),
	}

	right := AlignElements(elements, AlignRight)
	for id, pos := range right {
		if pos.X != 100 {
			t.Errorf("right align: %s.x = %.0f, want 100", id, pos.X)
		}
	}

	center := AlignElements(elements, AlignCenter)
	for id, pos := range center {
		if pos.X != 50 {
			t.Errorf("center align: %s.x = %.0f, want 50 (mean)", id, pos.X)
		}
	}
}

func TestAlignElements_VerticalAxes(t *testing.T) {
	elements := []domain.FormElement{
		el("a", 10, 30, 0),
		el("b", 200, 90, 1),
	}
	top := AlignElements(elements, AlignTop)
	if top["a"].Y != 30 || top["b"].Y != 30 {
		t.Errorf("top align: got a=%.0f b=%.0f, want 30", top["a"].Y, top["b"].Y)
	}
	bottom := AlignElements(elements, AlignBottom)
	if bottom["a"].Y != 90 || bottom["b"].Y != 90 {
		t.Errorf("bottom align: got a=%.0f b=%.0f, want 90", bottom["a"].Y, bottom["b"].Y)
	}
	middle := AlignElements(elements, AlignMiddle)
	if middle["a"].Y != 60 || middle["b"].Y != 60 {
		t.Errorf("middle align: got a=%.0f b=%.0f, want 60", middle["a"].Y, middle["b"].Y)
	}
}

func TestDistributeElements_TwoElementsIsNoop(t *testing.T) {
	result := DistributeElements([]domain.FormElement{
		el("a", 0, 0, 0),
		el("b", 100, 0, 1),
	}, DirectionHorizontal)
	if len(result) != 0 {
		t.Errorf("expected empty map for fewer than 3 elements, got %d entries", len(result))
	}
}

func TestDistributeElements_Horizontal(t *testing.T) {
	result := DistributeElements([]domain.FormElement{
		el("a", 0, 10, 0),
		el("b", 35, 20, 1),
		el("c", 90, 30, 2),
		el("d", 300, 40, 3),
	}, DirectionHorizontal)
	if len(result) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(result))
	}
	// Endpoints fixed, interior interpolated at equal spacing.
	if result["a"].X != 0 || result["d"].X != 300 {
		t.Errorf("endpoints moved: a=%.0f d=%.0f", result["a"].X, result["d"].X)
	}
	if result["b"].X != 100 || result["c"].X != 200 {
		t.Errorf("interior spacing wrong: b=%.0f c=%.0f, want 100 and 200", result["b"].X, result["c"].X)
	}
	if result["b"].Y != 20 {
		t.Error("distribution must not touch the other axis")
	}
}

func TestDistributeElements_Vertical(t *testing.T) {
	result := DistributeElements([]domain.FormElement{
		el("a", 0, 400, 0),
		el("b", 0, 0, 1),
		el("c", 0, 55, 2),
	}, DirectionVertical)
	if result["b"].Y != 0 || result["a"].Y != 400 {
		t.Errorf("endpoints moved: b=%.0f a=%.0f", result["b"].Y, result["a"].Y)
	}
	if result["c"].Y != 200 {
		t.Errorf("middle element y = %.0f, want 200", result["c"].Y)
	}
}

func TestCalculateInsertionPoint_EmptyCanvas(t *testing.T) {
	ip := CalculateInsertionPoint(250, nil, Rect{X: 0, Y: 40, W: 800, H: 1200})
	if ip.Index != 0 || ip.Y != 40 {
		t.Errorf("empty canvas insertion = %+v, want index 0 at container top", ip)
	}
}

func TestCalculateInsertionPoint_InsertBefore(t *testing.T) {
	elements := []domain.FormElement{
		el("a", 0, 100, 0),
		el("b", 0, 200, 1),
		el("c", 0, 300, 2),
	}
	ip := CalculateInsertionPoint(150, elements, Rect{W: 800, H: 1200})
	if ip.Index != 1 || ip.Y != 200 {
		t.Errorf("insertion = %+v, want index 1 at y=200", ip)
	}
}

func TestCalculateInsertionPoint_BelowAll(t *testing.T) {
	elements := []domain.FormElement{
		el("a", 0, 100, 0),
		el("b", 0, 200, 1),
	}
	ip := CalculateInsertionPoint(900, elements, Rect{W: 800, H: 1200})
	if ip.Index != 2 {
		t.Errorf("index = %d, want end-of-list 2", ip.Index)
	}
	if ip.Y != 200+EndOfListSpacing {
		t.Errorf("y = %.0f, want %.0f", ip.Y, 200+EndOfListSpacing)
	}
}

func TestSortByVertical_OrderBreaksTies(t *testing.T) {
	elements := []domain.FormElement{
		el("second", 0, 102, 1),
		el("first", 0, 100, 0),
		el("third", 0, 300, 2),
	}
	sorted := SortByVertical(elements)
	if sorted[0].ID != "first" || sorted[1].ID != "second" || sorted[2].ID != "third" {
		t.Errorf("order within tolerance band not respected: %s, %s, %s",
			sorted[0].ID, sorted[1].ID, sorted[2].ID)
	}
}

func TestRectIntersects(t *testing.T) {
	a := Rect{0, 0, 100, 100}
	if !a.Intersects(Rect{50, 50, 100, 100}) {
		t.Error("overlapping rects should intersect")
	}
	if a.Intersects(Rect{200, 200, 50, 50}) {
		t.Error("disjoint rects should not intersect")
	}
	if a.Intersects(Rect{100, 0, 50, 50}) {
		t.Error("edge-touching rects should not intersect")
	}
}
