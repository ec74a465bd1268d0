// Package mcp exposes the studio console services to agents over the Model
// Context Protocol.
package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/mcp/tools"
	"github.com/magnetic-studio/studio-console/pkg/middleware"
)

// Server wraps the mcp-go MCPServer with the console's tools and logging.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance and registers every studio tool.
// A nil deps creates a bare server.
func NewServer(name, version string, deps *tools.ToolDeps, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)

	if deps != nil {
		if deps.Logger == nil {
			deps.Logger = logger.Named("mcp-tools")
		}
		tools.RegisterAll(mcpServer, deps)
	}

	return &Server{
		mcp:    mcpServer,
		logger: logger.Named("mcp"),
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterRoutes mounts the streamable HTTP transport at /mcp with tool call logging.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	handler := middleware.MCPRequestLogger(s.logger)(s.NewStreamableHTTPServer())
	mux.Handle("/mcp", handler)
	s.logger.Info("MCP endpoint registered", zap.String("path", "/mcp"))
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
