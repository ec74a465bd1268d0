package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, _ := args[key].(string)
	return strings.TrimSpace(val)
}

// getOptionalBool extracts an optional boolean argument, false when absent.
func getOptionalBool(req mcp.CallToolRequest, key string) bool {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return false
	}
	val, _ := args[key].(bool)
	return val
}

// getStringSlice extracts an optional array of strings. Non-string entries
// are skipped.
func getStringSlice(req mcp.CallToolRequest, key string) []string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil
	}
	raw, _ := args[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// requireUUID reads a required UUID argument. A non-nil result is an
// actionable error for the caller.
func requireUUID(req mcp.CallToolRequest, key string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(key)
	if err != nil {
		return uuid.Nil, NewErrorResult("missing_parameter", fmt.Sprintf("%s is required", key))
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_parameter", fmt.Sprintf("%s must be a UUID", key))
	}
	return id, nil
}

// jsonResult marshals v as the text content of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
