package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"formbuilder/internal/collision"
	"formbuilder/internal/domain"
	"formbuilder/internal/geometry"
)

func (s *Server) registerCanvasTools() {
	// ── align_elements ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("align_elements",
		mcp.WithDescription("Align the selected elements along an edge or axis"),
		mcp.WithString("alignment",
			mcp.Description("One of: left, right, center, top, bottom, middle"),
			mcp.Required(),
		),
	), s.handleAlignElements)

	// ── distribute_elements ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("distribute_elements",
		mcp.WithDescription("Spread the selected elements evenly between the two outermost ones"),
		mcp.WithString("direction",
			mcp.Description("One of: horizontal, vertical"),
			mcp.Required(),
		),
	), s.handleDistributeElements)

	// ── arrange_elements ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("arrange_elements",
		mcp.WithDescription("Auto-arrange all elements on a wrapping grid layout"),
	), s.handleArrangeElements)

	// ── insertion_point ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("insertion_point",
		mcp.WithDescription("Compute where a drop at the given Y coordinate would insert in the form's vertical order"),
		mcp.WithNumber("y", mcp.Description("Pointer Y position on the canvas"), mcp.Required()),
	), s.handleInsertionPoint)

	// ── detect_drop_zone ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("detect_drop_zone",
		mcp.WithDescription("Find the drop targets for a dragged element at the given position, best match first"),
		mcp.WithString("type", mcp.Description("Element type being dragged"), mcp.Required()),
		mcp.WithNumber("x", mcp.Description("Drag X position"), mcp.Required()),
		mcp.WithNumber("y", mcp.Description("Drag Y position"), mcp.Required()),
		mcp.WithString("elementId", mcp.Description("ID of the element being moved (optional; omit for a palette drag)")),
	), s.handleDetectDropZone)
}

func (s *Server) handleAlignElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alignment := getString(req.GetArguments(), "alignment", "")
	switch geometry.Alignment(alignment) {
	case geometry.AlignLeft, geometry.AlignRight, geometry.AlignCenter,
		geometry.AlignTop, geometry.AlignBottom, geometry.AlignMiddle:
	default:
		return nil, fmt.Errorf("unknown alignment %q", alignment)
	}
	if err := s.builder.AlignSelected(ctx, geometry.Alignment(alignment)); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Selection aligned %s", alignment)), nil
}

func (s *Server) handleDistributeElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	direction := getString(req.GetArguments(), "direction", "")
	switch geometry.Direction(direction) {
	case geometry.DirectionHorizontal, geometry.DirectionVertical:
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}
	if err := s.builder.DistributeSelected(ctx, geometry.Direction(direction)); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Selection distributed %sly", direction)), nil
}

func (s *Server) handleArrangeElements(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.builder.ArrangeAll(ctx); err != nil {
		return nil, err
	}
	return textResult("Elements arranged"), nil
}

func (s *Server) handleInsertionPoint(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.builder.State()
	if err != nil {
		return nil, err
	}
	y := getFloat(req.GetArguments(), "y", 0)
	container := geometry.Rect{W: st.Canvas.Width, H: st.Canvas.Height}
	return jsonResult(geometry.CalculateInsertionPoint(y, st.Elements, container))
}

func (s *Server) handleDetectDropZone(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	elementType := domain.ElementType(getString(args, "type", ""))
	if !domain.KnownElementType(elementType) {
		return nil, fmt.Errorf("unknown element type %q", elementType)
	}

	st, err := s.builder.State()
	if err != nil {
		return nil, err
	}
	det := detectorForState(st)

	x := getFloat(args, "x", 0)
	y := getFloat(args, "y", 0)
	w, h := domain.DefaultElementSize(elementType)
	rect := geometry.Rect{X: x, Y: y, W: w, H: h}
	pointer := rect.Center()

	cands := det.Detect(collision.DragInfo{
		ID:      getString(args, "elementId", ""),
		Type:    elementType,
		Rect:    &rect,
		Pointer: &pointer,
	})

	type zoneHit struct {
		ZoneID       string         `json:"zoneId"`
		Kind         string         `json:"kind"`
		Distance     float64        `json:"distance"`
		DropPosition geometry.Point `json:"dropPosition"`
	}
	hits := make([]zoneHit, 0, len(cands))
	for _, c := range cands {
		hits = append(hits, zoneHit{
			ZoneID:       c.Zone.ID,
			Kind:         string(c.Zone.Kind),
			Distance:     c.Distance,
			DropPosition: c.DropPosition,
		})
	}
	return jsonResult(hits)
}

// detectorForState builds a drop-zone registry from the current form: the
// canvas root, every section as a container, and every other element as an
// occupied region.
func detectorForState(st *domain.FormBuilderState) *collision.Detector {
	det := collision.NewDetector(collision.Options{
		Strategy: collision.StrategyClosestCenter,
		GridSize: geometry.DefaultGridSize,
		Nested:   true,
	})
	det.Register(collision.DropZone{
		ID:   "canvas",
		Kind: collision.ZoneCanvas,
		Rect: geometry.Rect{W: st.Canvas.Width, H: st.Canvas.Height},
	})
	for _, el := range st.Elements {
		w, h := domain.DefaultElementSize(el.Type)
		zone := collision.DropZone{
			ID:       el.ID,
			Kind:     collision.ZoneElement,
			ParentID: "canvas",
			Rect:     geometry.Rect{X: el.Position.X, Y: el.Position.Y, W: w, H: h},
		}
		if el.Type == domain.ElementTypeSection {
			zone.Kind = collision.ZoneContainer
			// Sections hold input fields, not structural elements.
			zone.Accepts = []domain.ElementType{
				domain.ElementTypeText, domain.ElementTypeEmail, domain.ElementTypePhone,
				domain.ElementTypeNumber, domain.ElementTypeDate, domain.ElementTypeTextarea,
				domain.ElementTypeDropdown, domain.ElementTypeRadio, domain.ElementTypeCheckbox,
				domain.ElementTypeFile,
			}
		}
		det.Register(zone)
	}
	return det
}
