package tools

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
	"github.com/magnetic-studio/studio-console/pkg/currentstate"
	"github.com/magnetic-studio/studio-console/pkg/models"
)

func TestGetCurrentState(t *testing.T) {
	projectID := uuid.New()
	itemA, itemB := uuid.New(), uuid.New()
	state := &mockCurrentState{doc: "# Project: Loft\n"}
	scoper := &mockScoper{}
	s := newTestServer(&ToolDeps{CurrentState: state, Scope: scoper})

	resp := callTool(t, s, "get_current_state", map[string]any{
		"project_id": projectID.String(),
		"scope":      "multiItem",
		"item_ids":   []any{itemA.String(), itemB.String()},
	})

	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.IsError)
	assert.Equal(t, "# Project: Loft\n", resp.text())
	assert.Equal(t, currentstate.ScopeMultiItem, state.gotScope)
	assert.Equal(t, []uuid.UUID{itemA, itemB}, state.gotItemIDs)
	assert.Equal(t, 1, scoper.acquired)
	assert.Equal(t, 1, scoper.released)
}

func TestGetCurrentState_DefaultsToProjectScope(t *testing.T) {
	state := &mockCurrentState{doc: "doc"}
	s := newTestServer(&ToolDeps{CurrentState: state})

	resp := callTool(t, s, "get_current_state", map[string]any{"project_id": uuid.NewString()})

	assert.False(t, resp.Result.IsError)
	assert.Equal(t, currentstate.ScopeProject, state.gotScope)
	assert.Empty(t, state.gotItemIDs)
}

func TestGetCurrentState_InvalidArguments(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]any
		wantCode string
	}{
		{"missing project", map[string]any{}, "missing_parameter"},
		{"bad project", map[string]any{"project_id": "x"}, "invalid_parameter"},
		{"bad scope", map[string]any{"project_id": uuid.NewString(), "scope": "everything"}, "invalid_parameter"},
		{"bad item id", map[string]any{"project_id": uuid.NewString(), "scope": "singleItem", "item_ids": []any{"nope"}}, "invalid_parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &mockCurrentState{}
			s := newTestServer(&ToolDeps{CurrentState: state})

			errResp := decodeToolError(t, callTool(t, s, "get_current_state", tt.args))
			assert.Equal(t, tt.wantCode, errResp.Code)
		})
	}
}

func TestGetCurrentState_ServiceValidationError(t *testing.T) {
	state := &mockCurrentState{err: apperrors.NewValidationError("scope", []string{"singleItem scope requires exactly one item id"})}
	s := newTestServer(&ToolDeps{CurrentState: state})

	errResp := decodeToolError(t, callTool(t, s, "get_current_state", map[string]any{
		"project_id": uuid.NewString(),
		"scope":      "singleItem",
	}))

	assert.Equal(t, "validation_error", errResp.Code)
}

func TestGetCurrentState_ScopeFailure(t *testing.T) {
	s := newTestServer(&ToolDeps{Scope: &mockScoper{err: errBoom}})

	resp := callTool(t, s, "get_current_state", map[string]any{"project_id": uuid.NewString()})

	require.NotNil(t, resp.Error, "system failures surface as JSON-RPC errors")
	assert.Contains(t, resp.Error.Message, "failed to acquire database connection")
}

func TestGetCostingSummary(t *testing.T) {
	projectID := uuid.New()
	costing := &mockCostingService{summary: &models.CostingSummary{
		ProjectID: projectID,
		Totals:    models.ProjectTotals{PlannedDirect: 1000, PlannedClientPrice: 1430, ActualDirect: 250},
	}}
	s := newTestServer(&ToolDeps{Costing: costing})

	resp := callTool(t, s, "get_costing_summary", map[string]any{
		"project_id":         projectID.String(),
		"include_management": true,
		"respect_visibility": true,
	})

	require.False(t, resp.Result.IsError, resp.text())
	assert.Equal(t, models.CostOptions{IncludeManagement: true, RespectVisibility: true}, costing.gotOpts)

	var summary models.CostingSummary
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &summary))
	assert.Equal(t, projectID, summary.ProjectID)
	assert.InDelta(t, 1430, summary.Totals.PlannedClientPrice, 0.001)
}

func TestGetCostingSummary_NotFound(t *testing.T) {
	costing := &mockCostingService{err: fmt.Errorf("project: %w", apperrors.ErrNotFound)}
	s := newTestServer(&ToolDeps{Costing: costing})

	errResp := decodeToolError(t, callTool(t, s, "get_costing_summary", map[string]any{"project_id": uuid.NewString()}))

	assert.Equal(t, "not_found", errResp.Code)
}

func TestGetPriceEstimate_ByCanonicalID(t *testing.T) {
	canonicalID := uuid.New()
	prices := &mockPriceMemory{estimate: &models.PriceEstimate{
		CanonicalItemID: canonicalID,
		Range:           models.PriceRange{Min: 10, Max: 14},
		Median:          12,
		Confidence:      models.ConfidenceHigh,
		LastSeenAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		SampleSize:      3,
	}}
	s := newTestServer(&ToolDeps{PriceMemory: prices})

	resp := callTool(t, s, "get_price_estimate", map[string]any{"canonical_item_id": canonicalID.String()})

	require.False(t, resp.Result.IsError, resp.text())
	assert.Equal(t, canonicalID, prices.gotEstimated)
	assert.Empty(t, prices.gotName, "name lookup skipped when id is given")

	var out priceEstimateResponse
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &out))
	require.NotNil(t, out.Estimate)
	assert.InDelta(t, 12, out.Estimate.Median, 0.001)
	assert.Equal(t, 3, out.Estimate.SampleSize)
}

func TestGetPriceEstimate_ByNameWithoutHistory(t *testing.T) {
	canonicalID := uuid.New()
	prices := &mockPriceMemory{canonicalID: canonicalID}
	s := newTestServer(&ToolDeps{PriceMemory: prices})

	resp := callTool(t, s, "get_price_estimate", map[string]any{"item_name": "Birch Ply 18mm"})

	require.False(t, resp.Result.IsError, resp.text())
	assert.Equal(t, "Birch Ply 18mm", prices.gotName)
	assert.JSONEq(t, fmt.Sprintf(`{"canonical_item_id":%q,"estimate":null}`, canonicalID), resp.text())
}

func TestGetPriceEstimate_UnknownCanonicalItem(t *testing.T) {
	prices := &mockPriceMemory{err: apperrors.ErrNotFound}
	s := newTestServer(&ToolDeps{PriceMemory: prices})

	errResp := decodeToolError(t, callTool(t, s, "get_price_estimate", map[string]any{"canonical_item_id": uuid.NewString()}))
	assert.Equal(t, "not_found", errResp.Code)
}

func TestGetPriceEstimate_InvalidArguments(t *testing.T) {
	s := newTestServer(&ToolDeps{})

	errResp := decodeToolError(t, callTool(t, s, "get_price_estimate", map[string]any{}))
	assert.Equal(t, "missing_parameter", errResp.Code)

	errResp = decodeToolError(t, callTool(t, s, "get_price_estimate", map[string]any{"canonical_item_id": "bad"}))
	assert.Equal(t, "invalid_parameter", errResp.Code)
}

func TestListFactConflicts_GroupsBySlot(t *testing.T) {
	projectID := uuid.New()
	itemID := uuid.New()
	facts := []*models.Fact{
		{ID: uuid.New(), ScopeType: models.ScopeItem, ItemID: &itemID, Key: "spec.width_mm", Value: json.RawMessage(`600`), Status: models.FactConflict},
		{ID: uuid.New(), ScopeType: models.ScopeProject, Key: "client.name", Value: json.RawMessage(`"Ada"`), Status: models.FactConflict},
		{ID: uuid.New(), ScopeType: models.ScopeItem, ItemID: &itemID, Key: "spec.width_mm", Value: json.RawMessage(`620`), Status: models.FactConflict},
		{ID: uuid.New(), ScopeType: models.ScopeProject, Key: "client.name", Value: json.RawMessage(`"Ada L."`), Status: models.FactConflict},
	}
	ledger := &mockFactLedger{facts: facts}
	s := newTestServer(&ToolDeps{FactLedger: ledger})

	resp := callTool(t, s, "list_fact_conflicts", map[string]any{"project_id": projectID.String()})

	require.False(t, resp.Result.IsError, resp.text())
	assert.Equal(t, models.FactViewConflict, ledger.gotView)

	var out conflictListResponse
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &out))
	require.Equal(t, 2, out.Total)
	assert.Equal(t, "client.name", out.Conflicts[0].Key)
	assert.Nil(t, out.Conflicts[0].ItemID)
	assert.Len(t, out.Conflicts[0].Facts, 2)
	assert.Equal(t, "spec.width_mm", out.Conflicts[1].Key)
	require.NotNil(t, out.Conflicts[1].ItemID)
	assert.Equal(t, itemID, *out.Conflicts[1].ItemID)
	assert.Len(t, out.Conflicts[1].Facts, 2)
}

func TestListFactConflicts_Empty(t *testing.T) {
	s := newTestServer(&ToolDeps{FactLedger: &mockFactLedger{}})

	resp := callTool(t, s, "list_fact_conflicts", map[string]any{"project_id": uuid.NewString()})

	assert.JSONEq(t, `{"conflicts":[],"total":0}`, resp.text())
}

func TestProposeFact(t *testing.T) {
	projectID := uuid.New()
	itemID := uuid.New()
	ledger := &mockFactLedger{proposed: &models.Fact{
		ID:        uuid.New(),
		ProjectID: projectID,
		ScopeType: models.ScopeItem,
		ItemID:    &itemID,
		Key:       "spec.width_mm",
		Value:     json.RawMessage(`600`),
		Status:    models.FactProposed,
		Source:    models.SourceMCP,
	}}
	s := newTestServer(&ToolDeps{FactLedger: ledger})

	resp := callTool(t, s, "propose_fact", map[string]any{
		"project_id":      projectID.String(),
		"scope_type":      "item",
		"item_id":         itemID.String(),
		"key":             "spec.width_mm",
		"value":           "600",
		"evidence_quote":  "width 600mm",
		"evidence_source": "email-2026-02-11",
	})

	require.False(t, resp.Result.IsError, resp.text())
	assert.Equal(t, models.SourceMCP, ledger.gotSource)
	assert.Equal(t, models.ScopeItem, ledger.gotProposal.ScopeType)
	require.NotNil(t, ledger.gotProposal.ItemID)
	assert.Equal(t, itemID, *ledger.gotProposal.ItemID)
	assert.JSONEq(t, `600`, string(ledger.gotProposal.Value))
	require.NotNil(t, ledger.gotProposal.Evidence)
	assert.Equal(t, "width 600mm", ledger.gotProposal.Evidence.Quote)
	assert.Equal(t, "email-2026-02-11", ledger.gotProposal.Evidence.SourceRef)

	var fact models.Fact
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &fact))
	assert.Equal(t, models.FactProposed, fact.Status)
}

func TestProposeFact_Errors(t *testing.T) {
	t.Run("bad item id", func(t *testing.T) {
		s := newTestServer(&ToolDeps{})
		errResp := decodeToolError(t, callTool(t, s, "propose_fact", map[string]any{
			"project_id": uuid.NewString(),
			"scope_type": "item",
			"item_id":    "abc",
			"key":        "spec.width_mm",
			"value":      "600",
		}))
		assert.Equal(t, "invalid_parameter", errResp.Code)
	})

	t.Run("validation from ledger", func(t *testing.T) {
		ledger := &mockFactLedger{err: apperrors.NewValidationError("fact", []string{"key must be group.field"})}
		s := newTestServer(&ToolDeps{FactLedger: ledger})
		errResp := decodeToolError(t, callTool(t, s, "propose_fact", map[string]any{
			"project_id": uuid.NewString(),
			"scope_type": "project",
			"key":        "name",
			"value":      `"x"`,
		}))
		assert.Equal(t, "validation_error", errResp.Code)
		assert.Nil(t, ledger.gotProposal.Evidence)
	})
}
