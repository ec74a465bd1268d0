package tools

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithArgs(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestGetOptionalString(t *testing.T) {
	req := requestWithArgs(map[string]any{"scope": "  multiItem ", "count": 3})

	assert.Equal(t, "multiItem", getOptionalString(req, "scope"))
	assert.Equal(t, "", getOptionalString(req, "count"), "non-string values read as empty")
	assert.Equal(t, "", getOptionalString(req, "missing"))
	assert.Equal(t, "", getOptionalString(mcp.CallToolRequest{}, "scope"))
}

func TestGetOptionalBool(t *testing.T) {
	req := requestWithArgs(map[string]any{"include_management": true, "include_optional": "true"})

	assert.True(t, getOptionalBool(req, "include_management"))
	assert.False(t, getOptionalBool(req, "include_optional"))
	assert.False(t, getOptionalBool(req, "respect_visibility"))
}

func TestGetStringSlice(t *testing.T) {
	req := requestWithArgs(map[string]any{"item_ids": []any{"a", 7, "b"}})

	assert.Equal(t, []string{"a", "b"}, getStringSlice(req, "item_ids"))
	assert.Empty(t, getStringSlice(req, "missing"))
}

func TestRequireUUID(t *testing.T) {
	id := uuid.New()

	t.Run("valid", func(t *testing.T) {
		got, errResult := requireUUID(requestWithArgs(map[string]any{"project_id": " " + id.String() + " "}), "project_id")
		require.Nil(t, errResult)
		assert.Equal(t, id, got)
	})

	t.Run("missing", func(t *testing.T) {
		_, errResult := requireUUID(requestWithArgs(map[string]any{}), "project_id")
		require.NotNil(t, errResult)
		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal([]byte(getTextContent(errResult)), &errResp))
		assert.Equal(t, "missing_parameter", errResp.Code)
		assert.Equal(t, "project_id is required", errResp.Message)
	})

	t.Run("malformed", func(t *testing.T) {
		_, errResult := requireUUID(requestWithArgs(map[string]any{"project_id": "nope"}), "project_id")
		require.NotNil(t, errResult)
		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal([]byte(getTextContent(errResult)), &errResp))
		assert.Equal(t, "invalid_parameter", errResp.Code)
	})
}

func TestJSONResult(t *testing.T) {
	result, err := jsonResult(map[string]int{"total": 2})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"total":2}`, getTextContent(result))

	_, err = jsonResult(make(chan int))
	assert.Error(t, err)
}
