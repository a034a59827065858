package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"formbuilder/internal/command"
	"formbuilder/internal/domain"
)

func (s *Server) registerElementTools() {
	// ── add_element ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_element",
		mcp.WithDescription("Add a form element to the canvas. Position is auto-calculated if not provided."),
		mcp.WithString("type",
			mcp.Description("Element type: text, email, phone, number, date, textarea, dropdown, radio, checkbox, section, heading, divider, file"),
			mcp.Required(),
		),
		mcp.WithNumber("x", mcp.Description("X position (optional, auto-layout if omitted)")),
		mcp.WithNumber("y", mcp.Description("Y position (optional, auto-layout if omitted)")),
	), s.handleAddElement)

	// ── update_element ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_element",
		mcp.WithDescription("Update an element's properties. Only provided fields change."),
		mcp.WithString("elementId", mcp.Description("Element ID"), mcp.Required()),
		mcp.WithString("label", mcp.Description("New label (optional)")),
		mcp.WithString("placeholder", mcp.Description("New placeholder (optional)")),
		mcp.WithBoolean("required", mcp.Description("Whether the field is required (optional)")),
		mcp.WithString("properties",
			mcp.Description("JSON object of type-specific properties to merge, e.g. {\"options\": [\"A\", \"B\"]} (optional)"),
		),
	), s.handleUpdateElement)

	// ── move_element ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_element",
		mcp.WithDescription("Move an element. The position snaps to the grid when the form has it enabled."),
		mcp.WithString("elementId", mcp.Description("Element ID"), mcp.Required()),
		mcp.WithNumber("x", mcp.Description("New X position"), mcp.Required()),
		mcp.WithNumber("y", mcp.Description("New Y position"), mcp.Required()),
		mcp.WithNumber("order", mcp.Description("New position in the form's tab order (optional, keeps current)")),
	), s.handleMoveElement)

	// ── remove_element (destructive) ───────────────────
	s.mcp.AddTool(mcp.NewTool("remove_element",
		mcp.WithDescription("Remove an element from the form. Undoable via the undo tool."),
		mcp.WithString("elementId", mcp.Description("Element ID to remove"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveElement)

	// ── list_elements ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_elements",
		mcp.WithDescription("List the open form's elements, optionally filtered by type"),
		mcp.WithString("type", mcp.Description("Filter by element type (optional)")),
	), s.handleListElements)

	// ── select_elements ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("select_elements",
		mcp.WithDescription("Replace the selection with the given elements (not undoable)"),
		mcp.WithString("elementIds", mcp.Description("Comma-separated element IDs; empty clears the selection")),
	), s.handleSelectElements)
}

func (s *Server) handleAddElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	elementType, _ := args["type"].(string)
	if elementType == "" {
		return nil, fmt.Errorf("type is required")
	}

	// Negative coordinates ask the layout engine for a free slot.
	x := getFloat(args, "x", -1)
	y := getFloat(args, "y", -1)
	return commandResult(s.builder.AddElement(ctx, elementType, x, y))
}

func (s *Server) handleUpdateElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	elementID := getString(args, "elementId", "")
	if elementID == "" {
		return nil, fmt.Errorf("elementId is required")
	}

	var patch command.ElementPatch
	if v, ok := args["label"].(string); ok {
		patch.Label = &v
	}
	if v, ok := args["placeholder"].(string); ok {
		patch.Placeholder = &v
	}
	if v, ok := args["required"].(bool); ok {
		patch.Required = &v
	}
	if raw, ok := args["properties"].(string); ok && raw != "" {
		if err := parseJSON(raw, &patch.Properties); err != nil {
			return nil, fmt.Errorf("parse properties: %w", err)
		}
	}
	return commandResult(s.builder.UpdateElement(ctx, elementID, patch))
}

func (s *Server) handleMoveElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	elementID := getString(args, "elementId", "")
	if elementID == "" {
		return nil, fmt.Errorf("elementId is required")
	}
	x := getFloat(args, "x", 0)
	y := getFloat(args, "y", 0)

	order := -1
	if v, ok := args["order"].(float64); ok {
		order = int(v)
	}
	if order < 0 {
		st, err := s.builder.State()
		if err != nil {
			return nil, err
		}
		el, ok := st.ElementByID(elementID)
		if !ok {
			return nil, fmt.Errorf("element %s not found", elementID)
		}
		order = el.Position.Order
	}
	return commandResult(s.builder.MoveElement(ctx, elementID, x, y, order))
}

func (s *Server) handleRemoveElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	elementID := getString(req.GetArguments(), "elementId", "")
	if elementID == "" {
		return nil, fmt.Errorf("elementId is required")
	}
	return commandResult(s.builder.RemoveElement(ctx, elementID))
}

func (s *Server) handleListElements(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.builder.State()
	if err != nil {
		return nil, err
	}

	filter := getString(req.GetArguments(), "type", "")
	if filter == "" {
		return jsonResult(st.Elements)
	}
	var filtered []domain.FormElement
	for _, el := range st.Elements {
		if string(el.Type) == filter {
			filtered = append(filtered, el)
		}
	}
	return jsonResult(filtered)
}

func (s *Server) handleSelectElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := getString(req.GetArguments(), "elementIds", "")
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	st, err := s.builder.SelectElements(ctx, ids)
	if err != nil {
		return nil, err
	}
	return jsonResult(st.SelectedIDs)
}
