package models

import (
	"context"

	"github.com/google/uuid"
)

// ProvenanceSource represents how a fact or record entered the system.
type ProvenanceSource string

const (
	SourceIngestion ProvenanceSource = "ingestion" // Document/email/connector ingestion
	SourceAgent     ProvenanceSource = "agent"     // LLM-backed agent workflow
	SourceManual    ProvenanceSource = "manual"    // Direct edit via UI
	SourceMCP       ProvenanceSource = "mcp"       // MCP tool call
)

// String returns the string representation of a ProvenanceSource.
func (s ProvenanceSource) String() string {
	return string(s)
}

// IsValid returns true if the source is a valid provenance source.
func (s ProvenanceSource) IsValid() bool {
	switch s {
	case SourceIngestion, SourceAgent, SourceManual, SourceMCP:
		return true
	default:
		return false
	}
}

// ProvenanceContext carries source and actor information through operations.
type ProvenanceContext struct {
	Source ProvenanceSource
	// UserID may be uuid.Nil for background ingestion.
	UserID uuid.UUID
}

type provenanceKey struct{}

// WithProvenance returns a new context with provenance information attached.
func WithProvenance(ctx context.Context, p ProvenanceContext) context.Context {
	return context.WithValue(ctx, provenanceKey{}, p)
}

// GetProvenance retrieves provenance information from the context.
func GetProvenance(ctx context.Context) (ProvenanceContext, bool) {
	p, ok := ctx.Value(provenanceKey{}).(ProvenanceContext)
	return p, ok
}

// SourceFromContext returns the provenance source in ctx, or fallback.
func SourceFromContext(ctx context.Context, fallback ProvenanceSource) ProvenanceSource {
	if p, ok := GetProvenance(ctx); ok && p.Source.IsValid() {
		return p.Source
	}
	return fallback
}
