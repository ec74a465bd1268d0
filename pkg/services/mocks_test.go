package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
	"github.com/magnetic-studio/studio-console/pkg/models"
)

// ============================================================================
// Mock Implementations for Service Tests
// ============================================================================

type mockProjectRepo struct {
	projects  map[uuid.UUID]*models.Project
	getErr    error
	updateErr error
}

func newMockProjectRepo(projects ...*models.Project) *mockProjectRepo {
	m := &mockProjectRepo{projects: make(map[uuid.UUID]*models.Project)}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

func (m *mockProjectRepo) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.projects[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

func (m *mockProjectRepo) UpdateDefaults(ctx context.Context, id uuid.UUID, defaults *models.ProjectDefaults) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	p, ok := m.projects[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.Defaults = defaults
	return nil
}

func (m *mockProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.projects, id)
	return nil
}

type mockSectionRepo struct {
	sections  []*models.Section
	materials []*models.MaterialLine
	work      []*models.WorkLine
	listErr   error
}

func (m *mockSectionRepo) CreateSection(ctx context.Context, section *models.Section) error {
	if section.ID == uuid.Nil {
		section.ID = uuid.New()
	}
	m.sections = append(m.sections, section)
	return nil
}

func (m *mockSectionRepo) GetSection(ctx context.Context, projectID, sectionID uuid.UUID) (*models.Section, error) {
	for _, s := range m.sections {
		if s.ID == sectionID && s.ProjectID == projectID {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSectionRepo) ListSections(ctx context.Context, projectID uuid.UUID) ([]*models.Section, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*models.Section, 0)
	for _, s := range m.sections {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSectionRepo) CreateMaterialLine(ctx context.Context, line *models.MaterialLine) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	m.materials = append(m.materials, line)
	return nil
}

func (m *mockSectionRepo) CreateWorkLine(ctx context.Context, line *models.WorkLine) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	m.work = append(m.work, line)
	return nil
}

func (m *mockSectionRepo) ListMaterialLines(ctx context.Context, sectionIDs []uuid.UUID) ([]*models.MaterialLine, error) {
	out := make([]*models.MaterialLine, 0)
	for _, l := range m.materials {
		if containsID(sectionIDs, l.SectionID) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockSectionRepo) ListWorkLines(ctx context.Context, sectionIDs []uuid.UUID) ([]*models.WorkLine, error) {
	out := make([]*models.WorkLine, 0)
	for _, l := range m.work {
		if containsID(sectionIDs, l.SectionID) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockSectionRepo) ownsSection(projectID, sectionID uuid.UUID) bool {
	_, err := m.GetSection(context.Background(), projectID, sectionID)
	return err == nil
}

func (m *mockSectionRepo) UpdateMaterialActuals(ctx context.Context, projectID, lineID uuid.UUID, quantity, unitCost *float64) error {
	for _, l := range m.materials {
		if l.ID == lineID && m.ownsSection(projectID, l.SectionID) {
			l.ActualQuantity, l.ActualUnitCost = quantity, unitCost
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockSectionRepo) UpdateWorkActuals(ctx context.Context, projectID, lineID uuid.UUID, quantity, unitCost *float64) error {
	for _, l := range m.work {
		if l.ID == lineID && m.ownsSection(projectID, l.SectionID) {
			l.ActualQuantity, l.ActualUnitCost = quantity, unitCost
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

type mockItemRepo struct {
	items map[uuid.UUID]*models.Item
	order []uuid.UUID
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[uuid.UUID]*models.Item)}
}

func (m *mockItemRepo) Create(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	m.items[item.ID] = item
	m.order = append(m.order, item.ID)
	return nil
}

func (m *mockItemRepo) Get(ctx context.Context, projectID, itemID uuid.UUID) (*models.Item, error) {
	it, ok := m.items[itemID]
	if !ok || it.ProjectID != projectID {
		return nil, apperrors.ErrNotFound
	}
	return it, nil
}

func (m *mockItemRepo) List(ctx context.Context, projectID uuid.UUID) ([]*models.Item, error) {
	out := make([]*models.Item, 0)
	for _, id := range m.order {
		if it := m.items[id]; it.ProjectID == projectID {
			out = append(out, it)
		}
	}
	return out, nil
}

// mockFactRepo enforces the single-accepted-per-slot rule the database
// index provides, so ordering bugs in the service surface as ErrConflict.
type mockFactRepo struct {
	mu        sync.Mutex
	facts     map[uuid.UUID]*models.Fact
	seq       int
	mutations int
	createErr error
}

func newMockFactRepo() *mockFactRepo {
	return &mockFactRepo{facts: make(map[uuid.UUID]*models.Fact)}
}

func sameSlot(a, b models.FactKey) bool {
	if a.ProjectID != b.ProjectID || a.ScopeType != b.ScopeType || a.Key != b.Key {
		return false
	}
	if a.ItemID == nil || b.ItemID == nil {
		return a.ItemID == nil && b.ItemID == nil
	}
	return *a.ItemID == *b.ItemID
}

func (m *mockFactRepo) acceptedInSlot(slot models.FactKey, except uuid.UUID) bool {
	for _, f := range m.facts {
		if f.ID != except && f.Status == models.FactAccepted && sameSlot(f.Slot(), slot) {
			return true
		}
	}
	return false
}

func (m *mockFactRepo) Create(ctx context.Context, fact *models.Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if fact.ID == uuid.Nil {
		fact.ID = uuid.New()
	}
	if fact.Status == models.FactAccepted && m.acceptedInSlot(fact.Slot(), fact.ID) {
		return apperrors.ErrConflict
	}
	m.seq++
	fact.CreatedAt = time.Unix(int64(m.seq), 0)
	stored := *fact
	m.facts[fact.ID] = &stored
	m.mutations++
	return nil
}

func (m *mockFactRepo) Get(ctx context.Context, projectID, factID uuid.UUID) (*models.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facts[factID]
	if !ok || f.ProjectID != projectID {
		return nil, apperrors.ErrNotFound
	}
	c := *f
	return &c, nil
}

func (m *mockFactRepo) UpdateStatus(ctx context.Context, projectID, factID uuid.UUID, status models.FactStatus, needsReview bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facts[factID]
	if !ok || f.ProjectID != projectID {
		return apperrors.ErrNotFound
	}
	if status == models.FactAccepted && m.acceptedInSlot(f.Slot(), factID) {
		return apperrors.ErrConflict
	}
	f.Status, f.NeedsReview = status, needsReview
	m.mutations++
	return nil
}

func (m *mockFactRepo) list(match func(*models.Fact) bool) []*models.Fact {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Fact, 0)
	for _, f := range m.facts {
		if match(f) {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *mockFactRepo) ListBySlot(ctx context.Context, key models.FactKey) ([]*models.Fact, error) {
	return m.list(func(f *models.Fact) bool { return sameSlot(f.Slot(), key) }), nil
}

func (m *mockFactRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Fact, error) {
	return m.list(func(f *models.Fact) bool { return f.ProjectID == projectID }), nil
}

func (m *mockFactRepo) ListAccepted(ctx context.Context, projectID uuid.UUID, scopeType models.ScopeType, itemID *uuid.UUID) ([]*models.Fact, error) {
	scope := models.FactKey{ProjectID: projectID, ScopeType: scopeType, ItemID: itemID}
	return m.list(func(f *models.Fact) bool {
		slot := f.Slot()
		slot.Key = ""
		return f.Status == models.FactAccepted && sameSlot(slot, scope)
	}), nil
}

func (m *mockFactRepo) status(id uuid.UUID) models.FactStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facts[id].Status
}

type blockKey struct {
	scope models.ScopeType
	item  uuid.UUID
	key   string
}

type mockBlockRepo struct {
	blocks map[blockKey]*models.KnowledgeBlock
}

func newMockBlockRepo() *mockBlockRepo {
	return &mockBlockRepo{blocks: make(map[blockKey]*models.KnowledgeBlock)}
}

func keyOf(scope models.ScopeType, itemID *uuid.UUID, key string) blockKey {
	k := blockKey{scope: scope, key: key}
	if itemID != nil {
		k.item = *itemID
	}
	return k
}

func (m *mockBlockRepo) Upsert(ctx context.Context, block *models.KnowledgeBlock) error {
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	m.blocks[keyOf(block.ScopeType, block.ItemID, block.BlockKey)] = block
	return nil
}

func (m *mockBlockRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.KnowledgeBlock, error) {
	out := make([]*models.KnowledgeBlock, 0)
	for _, b := range m.blocks {
		if b.ProjectID == projectID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBlockRepo) Delete(ctx context.Context, projectID uuid.UUID, scopeType models.ScopeType, itemID *uuid.UUID, key string) error {
	delete(m.blocks, keyOf(scopeType, itemID, key))
	return nil
}

func (m *mockBlockRepo) get(scope models.ScopeType, itemID *uuid.UUID, key string) *models.KnowledgeBlock {
	return m.blocks[keyOf(scope, itemID, key)]
}

type mockPriceRepo struct {
	mu           sync.Mutex
	aliases      map[string]*models.ItemAlias
	items        map[uuid.UUID]*models.CanonicalItem
	purchases    []*models.Purchase
	observations []*models.PriceObservation
	appendErr    error
}

func newMockPriceRepo() *mockPriceRepo {
	return &mockPriceRepo{
		aliases: make(map[string]*models.ItemAlias),
		items:   make(map[uuid.UUID]*models.CanonicalItem),
	}
}

func (m *mockPriceRepo) GetAlias(ctx context.Context, raw string) (*models.ItemAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.aliases[raw]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (m *mockPriceRepo) CreateAlias(ctx context.Context, alias *models.ItemAlias) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.aliases[alias.RawNormalized]; ok {
		return apperrors.ErrConflict
	}
	m.aliases[alias.RawNormalized] = alias
	return nil
}

func (m *mockPriceRepo) CreateCanonicalItem(ctx context.Context, item *models.CanonicalItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	m.items[item.ID] = item
	return nil
}

func (m *mockPriceRepo) GetCanonicalItem(ctx context.Context, id uuid.UUID) (*models.CanonicalItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return it, nil
}

func (m *mockPriceRepo) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.purchases = append(m.purchases, p)
	return nil
}

func (m *mockPriceRepo) AppendObservation(ctx context.Context, o *models.PriceObservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	m.observations = append(m.observations, o)
	return nil
}

func (m *mockPriceRepo) ListRecentObservations(ctx context.Context, id uuid.UUID, limit int) ([]*models.PriceObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.PriceObservation, 0)
	for _, o := range m.observations {
		if o.CanonicalItemID == id {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
