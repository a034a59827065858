package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"formbuilder/internal/formfile"
)

func (s *Server) registerFormTools() {
	// ── create_form ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_form",
		mcp.WithDescription("Create a new empty form and open it for editing"),
		mcp.WithString("title", mcp.Description("Form title"), mcp.Required()),
	), s.handleCreateForm)

	// ── open_form ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_form",
		mcp.WithDescription("Open a saved form for editing; restores its undo history"),
		mcp.WithString("formId", mcp.Description("Form ID"), mcp.Required()),
	), s.handleOpenForm)

	// ── list_forms ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_forms",
		mcp.WithDescription("List all saved forms"),
	), s.handleListForms)

	// ── save_form ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_form",
		mcp.WithDescription("Save the open form and its undo history"),
	), s.handleSaveForm)

	// ── update_form_properties ─────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_form_properties",
		mcp.WithDescription("Change the open form's title and/or description (undoable)"),
		mcp.WithString("title", mcp.Description("New title (optional)")),
		mcp.WithString("description", mcp.Description("New description (optional)")),
	), s.handleUpdateFormProperties)

	// ── delete_form (destructive) ──────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_form",
		mcp.WithDescription("🛑 DESTRUCTIVE: Permanently delete a saved form and its history"),
		mcp.WithString("formId", mcp.Description("Form ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteForm)

	// ── export_form ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("export_form",
		mcp.WithDescription("Export the open form as a JSON document on disk"),
	), s.handleExportForm)
}

func (s *Server) handleCreateForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	title, _ := args["title"].(string)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	st, err := s.builder.NewForm(ctx, title)
	if err != nil {
		return nil, err
	}
	return jsonResult(st)
}

func (s *Server) handleOpenForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	formID := getString(req.GetArguments(), "formId", "")
	if formID == "" {
		return nil, fmt.Errorf("formId is required")
	}

	st, err := s.builder.OpenForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	return jsonResult(st)
}

func (s *Server) handleListForms(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	forms, err := s.builder.ListForms()
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return jsonResult(forms)
}

func (s *Server) handleSaveForm(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.builder.Save(ctx); err != nil {
		return nil, err
	}
	return textResult("Form saved"), nil
}

func (s *Server) handleUpdateFormProperties(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var title, description *string
	if v, ok := args["title"].(string); ok {
		title = &v
	}
	if v, ok := args["description"].(string); ok {
		description = &v
	}
	return commandResult(s.builder.UpdateForm(ctx, title, description))
}

func (s *Server) handleDeleteForm(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	formID := getString(req.GetArguments(), "formId", "")
	if formID == "" {
		return nil, fmt.Errorf("formId is required")
	}
	if err := s.builder.DeleteForm(formID); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Form %s deleted", formID)), nil
}

func (s *Server) handleExportForm(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.exportDir == "" {
		return nil, fmt.Errorf("export directory not configured")
	}
	st, err := s.builder.State()
	if err != nil {
		return nil, err
	}
	path, err := formfile.Export(s.exportDir, st)
	if err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Form exported to %s", path)), nil
}
