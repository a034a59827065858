// Package mcpserver exposes the form builder over the Model Context Protocol
// so AI agents can create forms, place elements, and drive undo/redo.
package mcpserver

import (
	"context"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"formbuilder/internal/service"
)

// Server is the MCP server for the form builder.
type Server struct {
	mcp     *server.MCPServer
	emitter service.EventEmitter
	builder *service.BuilderService

	// Export directory for form documents; empty disables export tools.
	exportDir string
}

// Deps holds the dependencies injected from the composition root.
type Deps struct {
	Emitter   service.EventEmitter
	Builder   *service.BuilderService
	ExportDir string
}

// New creates and configures an MCP server with all form builder tools.
func New(ctx context.Context, deps Deps) *Server {
	s := &Server{
		emitter:   deps.Emitter,
		builder:   deps.Builder,
		exportDir: deps.ExportDir,
	}

	s.mcp = server.NewMCPServer(
		"formbuilder-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerFormTools()
	s.registerElementTools()
	s.registerCanvasTools()
	s.registerHistoryTools()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}
