package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/currentstate"
	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/services"
)

var errBoom = errors.New("boom")

// mockCostingService implements services.CostingService for testing.
type mockCostingService struct {
	summary *models.CostingSummary
	err     error
	gotOpts models.CostOptions
}

func (m *mockCostingService) Summary(ctx context.Context, projectID uuid.UUID, opts models.CostOptions) (*models.CostingSummary, error) {
	m.gotOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.summary, nil
}

func (m *mockCostingService) SectionStats(ctx context.Context, projectID, sectionID uuid.UUID, opts models.CostOptions) (*models.SectionStats, error) {
	return nil, nil
}

func (m *mockCostingService) UpdateDefaults(ctx context.Context, projectID uuid.UUID, defaults *models.ProjectDefaults) error {
	return nil
}

func (m *mockCostingService) RecordMaterialActual(ctx context.Context, projectID, lineID uuid.UUID, update services.ActualsUpdate) error {
	return nil
}

func (m *mockCostingService) RecordWorkActual(ctx context.Context, projectID, lineID uuid.UUID, update services.ActualsUpdate) error {
	return nil
}

// mockFactLedger implements services.FactLedgerService for testing.
type mockFactLedger struct {
	facts       []*models.Fact
	proposed    *models.Fact
	err         error
	gotView     models.FactView
	gotProposal services.ProposeFactRequest
	gotSource   models.ProvenanceSource
}

func (m *mockFactLedger) Propose(ctx context.Context, projectID uuid.UUID, req services.ProposeFactRequest) (*models.Fact, error) {
	m.gotProposal = req
	m.gotSource = models.SourceFromContext(ctx, "")
	if m.err != nil {
		return nil, m.err
	}
	return m.proposed, nil
}

func (m *mockFactLedger) Accept(ctx context.Context, projectID, factID uuid.UUID) (*models.Fact, error) {
	return nil, nil
}

func (m *mockFactLedger) Reject(ctx context.Context, projectID, factID uuid.UUID) (*models.Fact, error) {
	return nil, nil
}

func (m *mockFactLedger) ResolveConflict(ctx context.Context, projectID uuid.UUID, req services.ResolveConflictRequest) (*models.Fact, error) {
	return nil, nil
}

func (m *mockFactLedger) List(ctx context.Context, projectID uuid.UUID, view models.FactView) ([]*models.Fact, error) {
	m.gotView = view
	if m.err != nil {
		return nil, m.err
	}
	return m.facts, nil
}

func (m *mockFactLedger) ItemProjection(ctx context.Context, projectID, itemID uuid.UUID) (models.ItemProjection, error) {
	return nil, nil
}

// mockCurrentState implements services.CurrentStateService for testing.
type mockCurrentState struct {
	doc        string
	err        error
	gotScope   currentstate.Scope
	gotItemIDs []uuid.UUID
}

func (m *mockCurrentState) Build(ctx context.Context, projectID uuid.UUID, scope currentstate.Scope, itemIDs []uuid.UUID) (string, error) {
	m.gotScope = scope
	m.gotItemIDs = itemIDs
	if m.err != nil {
		return "", m.err
	}
	return m.doc, nil
}

// mockPriceMemory implements services.PriceMemoryService for testing.
type mockPriceMemory struct {
	canonicalID  uuid.UUID
	estimate     *models.PriceEstimate
	err          error
	gotName      string
	gotEstimated uuid.UUID
}

func (m *mockPriceMemory) NormalizeItemName(ctx context.Context, raw string) (uuid.UUID, error) {
	m.gotName = raw
	if m.err != nil {
		return uuid.Nil, m.err
	}
	return m.canonicalID, nil
}

func (m *mockPriceMemory) IngestPurchase(ctx context.Context, purchase *models.Purchase) (*models.PriceObservation, error) {
	return nil, nil
}

func (m *mockPriceMemory) GetBestEstimate(ctx context.Context, canonicalItemID uuid.UUID, locationTag string) (*models.PriceEstimate, error) {
	m.gotEstimated = canonicalItemID
	if m.err != nil {
		return nil, m.err
	}
	return m.estimate, nil
}

// mockScoper counts scope acquisitions and releases.
type mockScoper struct {
	err      error
	acquired int
	released int
}

func (m *mockScoper) WithScope(ctx context.Context) (context.Context, func(), error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	m.acquired++
	return ctx, func() { m.released++ }, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

var (
	_ services.CostingService      = (*mockCostingService)(nil)
	_ services.FactLedgerService   = (*mockFactLedger)(nil)
	_ services.CurrentStateService = (*mockCurrentState)(nil)
	_ services.PriceMemoryService  = (*mockPriceMemory)(nil)
	_ Scoper                       = (*mockScoper)(nil)
	_ Pinger                       = (*mockPinger)(nil)
)

// newTestServer registers every tool against deps. Unset services get empty mocks.
func newTestServer(deps *ToolDeps) *server.MCPServer {
	if deps.Costing == nil {
		deps.Costing = &mockCostingService{}
	}
	if deps.FactLedger == nil {
		deps.FactLedger = &mockFactLedger{}
	}
	if deps.CurrentState == nil {
		deps.CurrentState = &mockCurrentState{}
	}
	if deps.PriceMemory == nil {
		deps.PriceMemory = &mockPriceMemory{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAll(s, deps)
	return s
}

// toolResponse is the decoded JSON-RPC envelope of a tools/call.
type toolResponse struct {
	Result *struct {
		Content []mcp.TextContent `json:"content"`
		IsError bool              `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r toolResponse) text() string {
	if r.Result == nil || len(r.Result.Content) == 0 {
		return ""
	}
	return r.Result.Content[0].Text
}

// callTool invokes name through the JSON-RPC entry point.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()
	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  params,
	})
	require.NoError(t, err)

	result := s.HandleMessage(context.Background(), msg)
	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var resp toolResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

// decodeToolError parses a structured error result.
func decodeToolError(t *testing.T, resp toolResponse) ErrorResponse {
	t.Helper()
	require.NotNil(t, resp.Result)
	require.True(t, resp.Result.IsError, "expected error result, got %s", resp.text())
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &errResp))
	return errResp
}
