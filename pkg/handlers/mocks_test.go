package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/magnetic-studio/studio-console/pkg/currentstate"
	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/services"
	"github.com/magnetic-studio/studio-console/pkg/skills"
)

// noopScope stands in for the database middleware.
func noopScope(next http.HandlerFunc) http.HandlerFunc { return next }

// mockCostingService implements services.CostingService for handler tests.
type mockCostingService struct {
	summary     *models.CostingSummary
	stats       *models.SectionStats
	err         error
	gotOpts     models.CostOptions
	gotDefaults *models.ProjectDefaults
	gotUpdate   services.ActualsUpdate
	gotLine     uuid.UUID
	workCalls   int
}

func (m *mockCostingService) Summary(ctx context.Context, projectID uuid.UUID, opts models.CostOptions) (*models.CostingSummary, error) {
	m.gotOpts = opts
	return m.summary, m.err
}

func (m *mockCostingService) SectionStats(ctx context.Context, projectID, sectionID uuid.UUID, opts models.CostOptions) (*models.SectionStats, error) {
	m.gotOpts = opts
	return m.stats, m.err
}

func (m *mockCostingService) UpdateDefaults(ctx context.Context, projectID uuid.UUID, defaults *models.ProjectDefaults) error {
	m.gotDefaults = defaults
	return m.err
}

func (m *mockCostingService) RecordMaterialActual(ctx context.Context, projectID, lineID uuid.UUID, update services.ActualsUpdate) error {
	m.gotLine, m.gotUpdate = lineID, update
	return m.err
}

func (m *mockCostingService) RecordWorkActual(ctx context.Context, projectID, lineID uuid.UUID, update services.ActualsUpdate) error {
	m.workCalls++
	m.gotLine, m.gotUpdate = lineID, update
	return m.err
}

// mockFactLedger implements services.FactLedgerService for handler tests.
type mockFactLedger struct {
	fact        *models.Fact
	facts       []*models.Fact
	projection  models.ItemProjection
	err         error
	gotView     models.FactView
	gotProposal services.ProposeFactRequest
	gotResolve  services.ResolveConflictRequest
	gotSource   models.ProvenanceSource
}

func (m *mockFactLedger) Propose(ctx context.Context, projectID uuid.UUID, req services.ProposeFactRequest) (*models.Fact, error) {
	m.gotProposal = req
	m.gotSource = models.SourceFromContext(ctx, "")
	return m.fact, m.err
}

func (m *mockFactLedger) Accept(ctx context.Context, projectID, factID uuid.UUID) (*models.Fact, error) {
	return m.fact, m.err
}

func (m *mockFactLedger) Reject(ctx context.Context, projectID, factID uuid.UUID) (*models.Fact, error) {
	return m.fact, m.err
}

func (m *mockFactLedger) ResolveConflict(ctx context.Context, projectID uuid.UUID, req services.ResolveConflictRequest) (*models.Fact, error) {
	m.gotResolve = req
	return m.fact, m.err
}

func (m *mockFactLedger) List(ctx context.Context, projectID uuid.UUID, view models.FactView) ([]*models.Fact, error) {
	m.gotView = view
	return m.facts, m.err
}

func (m *mockFactLedger) ItemProjection(ctx context.Context, projectID, itemID uuid.UUID) (models.ItemProjection, error) {
	return m.projection, m.err
}

// mockCurrentState implements services.CurrentStateService for handler tests.
type mockCurrentState struct {
	doc      string
	err      error
	gotScope currentstate.Scope
	gotItems []uuid.UUID
}

func (m *mockCurrentState) Build(ctx context.Context, projectID uuid.UUID, scope currentstate.Scope, itemIDs []uuid.UUID) (string, error) {
	m.gotScope, m.gotItems = scope, itemIDs
	return m.doc, m.err
}

// mockPriceMemory implements services.PriceMemoryService for handler tests.
type mockPriceMemory struct {
	id          uuid.UUID
	observation *models.PriceObservation
	estimate    *models.PriceEstimate
	err         error
	gotPurchase *models.Purchase
	gotLocation string
}

func (m *mockPriceMemory) NormalizeItemName(ctx context.Context, raw string) (uuid.UUID, error) {
	return m.id, m.err
}

func (m *mockPriceMemory) IngestPurchase(ctx context.Context, purchase *models.Purchase) (*models.PriceObservation, error) {
	m.gotPurchase = purchase
	return m.observation, m.err
}

func (m *mockPriceMemory) GetBestEstimate(ctx context.Context, canonicalItemID uuid.UUID, locationTag string) (*models.PriceEstimate, error) {
	m.gotLocation = locationTag
	return m.estimate, m.err
}

// mockSkillService implements services.SkillService for handler tests.
type mockSkillService struct {
	result   *services.SkillResult
	err      error
	skills   []*skills.Skill
	gotName  string
	gotInput json.RawMessage
}

func (m *mockSkillService) Run(ctx context.Context, projectID uuid.UUID, name string, input json.RawMessage) (*services.SkillResult, error) {
	m.gotName, m.gotInput = name, input
	return m.result, m.err
}

func (m *mockSkillService) List() []*skills.Skill {
	return m.skills
}

// mockPinger implements Pinger.
type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context) error { return m.err }

var errBoom = errors.New("boom")

var (
	_ services.CostingService      = (*mockCostingService)(nil)
	_ services.FactLedgerService   = (*mockFactLedger)(nil)
	_ services.CurrentStateService = (*mockCurrentState)(nil)
	_ services.PriceMemoryService  = (*mockPriceMemory)(nil)
	_ services.SkillService        = (*mockSkillService)(nil)
)
