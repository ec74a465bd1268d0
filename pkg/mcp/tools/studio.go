package tools

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/currentstate"
	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/services"
)

func readOnly() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
}

func projectIDParam() mcp.ToolOption {
	return mcp.WithString("project_id", mcp.Required(), mcp.Description("Project UUID"))
}

// registerCurrentStateTool adds get_current_state, the derived markdown
// summary of a project's accepted knowledge.
func registerCurrentStateTool(s *server.MCPServer, deps *ToolDeps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Render the derived current-state document for a project: client and project facts, " +
				"then one section per item with its accepted fact groups. " +
				"Use scope 'singleItem' or 'multiItem' with item_ids to narrow the item sections.",
		),
		projectIDParam(),
		mcp.WithString("scope",
			mcp.Enum(string(currentstate.ScopeProject), string(currentstate.ScopeSingleItem), string(currentstate.ScopeMultiItem)),
			mcp.Description("Rendering scope (default: project)"),
		),
		mcp.WithArray("item_ids",
			mcp.Description("Item UUIDs for singleItem (exactly one) or multiItem scope"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	}, readOnly()...)

	s.AddTool(mcp.NewTool("get_current_state", opts...), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, errResult := requireUUID(req, "project_id")
		if errResult != nil {
			return errResult, nil
		}
		scope, err := currentstate.ParseScope(getOptionalString(req, "scope"))
		if err != nil {
			return NewErrorResult("invalid_parameter", err.Error()), nil
		}
		var itemIDs []uuid.UUID
		for _, raw := range getStringSlice(req, "item_ids") {
			id, err := uuid.Parse(raw)
			if err != nil {
				return NewErrorResult("invalid_parameter", "item_ids must contain UUIDs"), nil
			}
			itemIDs = append(itemIDs, id)
		}

		ctx, cleanup, err := acquireScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		doc, err := deps.CurrentState.Build(ctx, projectID, scope, itemIDs)
		if err != nil {
			return resultForError(err)
		}
		return mcp.NewToolResultText(doc), nil
	})
}

// registerCostingSummaryTool adds get_costing_summary.
func registerCostingSummaryTool(s *server.MCPServer, deps *ToolDeps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Planned and actual costing for every section of a project with overhead, risk and profit " +
				"applied, plus project totals. Management lines and optional lines are excluded unless requested.",
		),
		projectIDParam(),
		mcp.WithBoolean("include_management", mcp.Description("Include management lines (default: false)")),
		mcp.WithBoolean("include_optional", mcp.Description("Include lines marked optional for the quote (default: false)")),
		mcp.WithBoolean("respect_visibility", mcp.Description("Drop lines excluded from the client quote (default: false)")),
	}, readOnly()...)

	s.AddTool(mcp.NewTool("get_costing_summary", opts...), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, errResult := requireUUID(req, "project_id")
		if errResult != nil {
			return errResult, nil
		}
		costOpts := models.CostOptions{
			IncludeManagement: getOptionalBool(req, "include_management"),
			IncludeOptional:   getOptionalBool(req, "include_optional"),
			RespectVisibility: getOptionalBool(req, "respect_visibility"),
		}

		ctx, cleanup, err := acquireScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		summary, err := deps.Costing.Summary(ctx, projectID, costOpts)
		if err != nil {
			return resultForError(err)
		}
		return jsonResult(summary)
	})
}

// registerPriceEstimateTool adds get_price_estimate. Either a canonical item
// id or a raw item name is accepted; names are resolved through the alias table.
func registerPriceEstimateTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool("get_price_estimate",
		mcp.WithDescription(
			"Best price estimate for a purchasable item from recent purchase history: median, range, "+
				"sample size and confidence. Returns estimate null when no purchases are recorded.",
		),
		mcp.WithString("canonical_item_id", mcp.Description("Canonical item UUID")),
		mcp.WithString("item_name", mcp.Description("Raw item name, used when canonical_item_id is not known")),
		mcp.WithString("location", mcp.Description("Optional location tag")),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawID := getOptionalString(req, "canonical_item_id")
		name := getOptionalString(req, "item_name")
		if rawID == "" && name == "" {
			return NewErrorResult("missing_parameter", "canonical_item_id or item_name is required"), nil
		}

		ctx, cleanup, err := acquireScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		var canonicalID uuid.UUID
		if rawID != "" {
			canonicalID, err = uuid.Parse(rawID)
			if err != nil {
				return NewErrorResult("invalid_parameter", "canonical_item_id must be a UUID"), nil
			}
		} else {
			canonicalID, err = deps.PriceMemory.NormalizeItemName(ctx, name)
			if err != nil {
				return resultForError(err)
			}
		}

		est, err := deps.PriceMemory.GetBestEstimate(ctx, canonicalID, getOptionalString(req, "location"))
		if err != nil {
			return resultForError(err)
		}
		return jsonResult(priceEstimateResponse{CanonicalItemID: canonicalID, Estimate: est})
	})
}

type priceEstimateResponse struct {
	CanonicalItemID uuid.UUID             `json:"canonical_item_id"`
	Estimate        *models.PriceEstimate `json:"estimate"`
}

// registerFactTools adds list_fact_conflicts and propose_fact.
func registerFactTools(s *server.MCPServer, deps *ToolDeps) {
	listOpts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"List unresolved fact conflicts for a project, grouped by fact slot. " +
				"Each group holds the competing values with their provenance and evidence.",
		),
		projectIDParam(),
	}, readOnly()...)

	s.AddTool(mcp.NewTool("list_fact_conflicts", listOpts...), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, errResult := requireUUID(req, "project_id")
		if errResult != nil {
			return errResult, nil
		}

		ctx, cleanup, err := acquireScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		facts, err := deps.FactLedger.List(ctx, projectID, models.FactViewConflict)
		if err != nil {
			return resultForError(err)
		}
		groups := groupConflicts(facts)
		return jsonResult(conflictListResponse{Conflicts: groups, Total: len(groups)})
	})

	propose := mcp.NewTool("propose_fact",
		mcp.WithDescription(
			"Propose a fact for a project or item. Keys are dotted paths ending in group.field "+
				"(e.g. 'spec.width_mm'). A value that disagrees with the accepted one opens a conflict for review.",
		),
		projectIDParam(),
		mcp.WithString("scope_type", mcp.Required(), mcp.Enum(string(models.ScopeProject), string(models.ScopeItem))),
		mcp.WithString("item_id", mcp.Description("Item UUID, required for item scope")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Dotted fact key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Fact value as JSON (strings must be quoted)")),
		mcp.WithString("evidence_quote", mcp.Description("Verbatim source text supporting the value")),
		mcp.WithString("evidence_source", mcp.Description("Reference to the source document")),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(propose, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, errResult := requireUUID(req, "project_id")
		if errResult != nil {
			return errResult, nil
		}
		proposal := services.ProposeFactRequest{
			ScopeType: models.ScopeType(getOptionalString(req, "scope_type")),
			Key:       getOptionalString(req, "key"),
			Value:     json.RawMessage(getOptionalString(req, "value")),
		}
		if raw := getOptionalString(req, "item_id"); raw != "" {
			itemID, err := uuid.Parse(raw)
			if err != nil {
				return NewErrorResult("invalid_parameter", "item_id must be a UUID"), nil
			}
			proposal.ItemID = &itemID
		}
		if quote := getOptionalString(req, "evidence_quote"); quote != "" {
			proposal.Evidence = &models.Evidence{Quote: quote, SourceRef: getOptionalString(req, "evidence_source")}
		}

		ctx, cleanup, err := acquireScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		fact, err := deps.FactLedger.Propose(ctx, projectID, proposal)
		if err != nil {
			return resultForError(err)
		}
		deps.Logger.Info("Fact proposed via MCP",
			zap.String("project_id", projectID.String()),
			zap.String("key", fact.Key),
			zap.String("status", string(fact.Status)))
		return jsonResult(fact)
	})
}

type conflictGroup struct {
	ScopeType models.ScopeType `json:"scope_type"`
	ItemID    *uuid.UUID       `json:"item_id,omitempty"`
	Key       string           `json:"key"`
	Facts     []*models.Fact   `json:"facts"`
}

type conflictListResponse struct {
	Conflicts []conflictGroup `json:"conflicts"`
	Total     int             `json:"total"`
}

// groupConflicts buckets conflict facts by slot, ordered by key then item.
func groupConflicts(facts []*models.Fact) []conflictGroup {
	index := make(map[string]int)
	groups := make([]conflictGroup, 0)
	for _, f := range facts {
		slot := string(f.ScopeType) + "|" + f.Key
		if f.ItemID != nil {
			slot += "|" + f.ItemID.String()
		}
		i, ok := index[slot]
		if !ok {
			i = len(groups)
			index[slot] = i
			groups = append(groups, conflictGroup{ScopeType: f.ScopeType, ItemID: f.ItemID, Key: f.Key})
		}
		groups[i].Facts = append(groups[i].Facts, f)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].Key != groups[b].Key {
			return groups[a].Key < groups[b].Key
		}
		return itemKey(groups[a].ItemID) < itemKey(groups[b].ItemID)
	})
	return groups
}

func itemKey(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
