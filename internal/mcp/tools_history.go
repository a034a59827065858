package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerHistoryTools() {
	// ── undo ───────────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the most recent change to the open form"),
	), s.handleUndo)

	// ── redo ───────────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Re-apply the most recently undone change"),
	), s.handleRedo)

	// ── history_status ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("history_status",
		mcp.WithDescription("Report whether undo/redo are available and how deep each stack is"),
	), s.handleHistoryStatus)

	// ── clear_history (destructive) ────────────────────
	s.mcp.AddTool(mcp.NewTool("clear_history",
		mcp.WithDescription("🛑 DESTRUCTIVE: Drop the open form's entire undo/redo history"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleClearHistory)
}

func (s *Server) handleUndo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return commandResult(s.builder.Undo(ctx))
}

func (s *Server) handleRedo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return commandResult(s.builder.Redo(ctx))
}

func (s *Server) handleHistoryStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.builder.Flags())
}

func (s *Server) handleClearHistory(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.builder.ClearHistory(ctx); err != nil {
		return nil, err
	}
	return textResult("History cleared"), nil
}
