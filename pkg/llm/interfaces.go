// Package llm provides the schema-constrained model boundary used by skills.
// Clients exist for OpenAI-compatible endpoints and for Anthropic.
package llm

import (
	"context"
	"encoding/json"

	"github.com/magnetic-studio/studio-console/pkg/jsonschema"
)

// Prompt is a rendered system/user message pair. Model overrides the
// client's configured model when set.
type Prompt struct {
	System string
	User   string
	Model  string
}

// SchemaCaller asks a model for a JSON document shaped like outputSchema.
// Implementations return only the extracted JSON; validation against the
// schema is left to the caller.
type SchemaCaller interface {
	CallWithSchema(ctx context.Context, outputSchema *jsonschema.Schema, prompt Prompt) (json.RawMessage, error)

	// Model returns the configured model name.
	Model() string
}

var (
	_ SchemaCaller = (*OpenAIClient)(nil)
	_ SchemaCaller = (*AnthropicClient)(nil)
	_ SchemaCaller = (*GuardedCaller)(nil)
)
