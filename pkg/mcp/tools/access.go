// Package tools provides the MCP tool implementations for the studio console.
package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/services"
)

// Scoper attaches a database connection to a context for the duration of a
// tool call. *database.ScopeProvider satisfies it.
type Scoper interface {
	WithScope(ctx context.Context) (context.Context, func(), error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ToolDeps carries the services the MCP tools call into.
type ToolDeps struct {
	Scope        Scoper
	DB           Pinger
	Costing      services.CostingService
	FactLedger   services.FactLedgerService
	CurrentState services.CurrentStateService
	PriceMemory  services.PriceMemoryService
	Version      string
	Logger       *zap.Logger
}

// RegisterAll adds every studio tool to s.
func RegisterAll(s *server.MCPServer, deps *ToolDeps) {
	RegisterHealthTool(s, deps)
	registerCurrentStateTool(s, deps)
	registerCostingSummaryTool(s, deps)
	registerPriceEstimateTool(s, deps)
	registerFactTools(s, deps)
}

// acquireScope returns a context carrying a connection and tagged with MCP
// provenance. The cleanup function must always be called.
func acquireScope(ctx context.Context, deps *ToolDeps) (context.Context, func(), error) {
	ctx = models.WithProvenance(ctx, models.ProvenanceContext{Source: models.SourceMCP})
	if deps.Scope == nil {
		return ctx, func() {}, nil
	}
	scoped, cleanup, err := deps.Scope.WithScope(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	return scoped, cleanup, nil
}
