package llm

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/magnetic-studio/studio-console/pkg/jsonschema"
)

// MockSchemaCaller is a configurable SchemaCaller for tests.
type MockSchemaCaller struct {
	// CallFunc is invoked by CallWithSchema. If nil, "{}" is returned.
	CallFunc func(ctx context.Context, outputSchema *jsonschema.Schema, prompt Prompt) (json.RawMessage, error)

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	mu      sync.Mutex
	prompts []Prompt
}

// NewMockSchemaCaller creates a mock that returns response on every call.
func NewMockSchemaCaller(response string) *MockSchemaCaller {
	return &MockSchemaCaller{
		CallFunc: func(context.Context, *jsonschema.Schema, Prompt) (json.RawMessage, error) {
			return json.RawMessage(response), nil
		},
	}
}

func (m *MockSchemaCaller) CallWithSchema(ctx context.Context, outputSchema *jsonschema.Schema, prompt Prompt) (json.RawMessage, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CallFunc != nil {
		return m.CallFunc(ctx, outputSchema, prompt)
	}
	return json.RawMessage(`{}`), nil
}

func (m *MockSchemaCaller) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// Calls returns the prompts received so far.
func (m *MockSchemaCaller) Calls() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Prompt(nil), m.prompts...)
}
