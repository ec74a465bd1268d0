package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
	"github.com/magnetic-studio/studio-console/pkg/currentstate"
	"github.com/magnetic-studio/studio-console/pkg/database"
	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/repositories"
)

// ProposeFactRequest is the input to FactLedgerService.Propose.
type ProposeFactRequest struct {
	ScopeType models.ScopeType `json:"scope_type"`
	ItemID    *uuid.UUID       `json:"item_id,omitempty"`
	Key       string           `json:"key"`
	Value     json.RawMessage  `json:"value"`
	Evidence  *models.Evidence `json:"evidence,omitempty"`
}

// ResolveConflictRequest names the slot being resolved and the fact that wins.
type ResolveConflictRequest struct {
	ScopeType    models.ScopeType `json:"scope_type"`
	ItemID       *uuid.UUID       `json:"item_id,omitempty"`
	Key          string           `json:"key"`
	ChosenFactID uuid.UUID        `json:"chosen_fact_id"`
}

// FactLedgerService manages fact proposals and their review lifecycle.
// At most one fact per (project, scope, item, key) is accepted at any time.
type FactLedgerService interface {
	// Propose records a new fact. If the slot already has an accepted fact with
	// the same value the proposal is stored as rejected; with a different value
	// both facts move to conflict.
	Propose(ctx context.Context, projectID uuid.UUID, req ProposeFactRequest) (*models.Fact, error)

	// Accept makes a fact the accepted value of its slot, demoting any other
	// accepted fact to rejected.
	Accept(ctx context.Context, projectID, factID uuid.UUID) (*models.Fact, error)

	// Reject marks a single fact rejected.
	Reject(ctx context.Context, projectID, factID uuid.UUID) (*models.Fact, error)

	// ResolveConflict accepts the chosen fact and rejects the rest of the
	// conflict set. Returns apperrors.ErrNotInConflictSet without mutating
	// anything when the chosen fact is not in conflict for that slot.
	ResolveConflict(ctx context.Context, projectID uuid.UUID, req ResolveConflictRequest) (*models.Fact, error)

	List(ctx context.Context, projectID uuid.UUID, view models.FactView) ([]*models.Fact, error)

	// ItemProjection returns accepted item facts as {group: {field: value}}.
	ItemProjection(ctx context.Context, projectID, itemID uuid.UUID) (models.ItemProjection, error)
}

type factLedgerService struct {
	factRepo  repositories.FactRepository
	itemRepo  repositories.ItemRepository
	blockRepo repositories.KnowledgeBlockRepository
	locker    database.KeyLocker
	logger    *zap.Logger
}

// NewFactLedgerService creates a new fact ledger service.
func NewFactLedgerService(
	factRepo repositories.FactRepository,
	itemRepo repositories.ItemRepository,
	blockRepo repositories.KnowledgeBlockRepository,
	locker database.KeyLocker,
	logger *zap.Logger,
) FactLedgerService {
	return &factLedgerService{
		factRepo:  factRepo,
		itemRepo:  itemRepo,
		blockRepo: blockRepo,
		locker:    locker,
		logger:    logger.Named("fact-ledger"),
	}
}

var _ FactLedgerService = (*factLedgerService)(nil)

func (s *factLedgerService) Propose(ctx context.Context, projectID uuid.UUID, req ProposeFactRequest) (*models.Fact, error) {
	source := models.SourceFromContext(ctx, models.SourceManual)
	if err := s.validateProposal(ctx, projectID, req, source); err != nil {
		return nil, err
	}

	group, field := models.SplitFactKey(req.Key)
	fact := &models.Fact{
		ProjectID: projectID,
		ScopeType: req.ScopeType,
		ItemID:    req.ItemID,
		Key:       req.Key,
		Group:     group,
		Field:     field,
		Value:     req.Value,
		Status:    models.FactProposed,
		Evidence:  req.Evidence,
		Source:    source,
	}
	slot := fact.Slot()

	var rerender bool
	err := s.locker.WithKeyLock(ctx, slot.String(), func(ctx context.Context) error {
		existing, err := s.factRepo.ListBySlot(ctx, slot)
		if err != nil {
			return err
		}

		accepted := findAccepted(existing)
		switch {
		case accepted == nil:
		case models.FactValuesEqual(accepted.Value, fact.Value):
			fact.Status = models.FactRejected
		default:
			// The accepted fact leaves the slot before the new one is written.
			if err := s.factRepo.UpdateStatus(ctx, projectID, accepted.ID, models.FactConflict, true); err != nil {
				return err
			}
			fact.Status = models.FactConflict
			fact.NeedsReview = true
			rerender = true
		}

		if err := s.factRepo.Create(ctx, fact); err != nil {
			return err
		}
		if rerender {
			return s.renderGroup(ctx, fact)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to propose fact",
			zap.String("project_id", projectID.String()),
			zap.String("key", req.Key),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Fact proposed",
		zap.String("project_id", projectID.String()),
		zap.String("fact_id", fact.ID.String()),
		zap.String("key", fact.Key),
		zap.String("status", string(fact.Status)),
		zap.String("source", fact.Source.String()))

	return fact, nil
}

func (s *factLedgerService) validateProposal(ctx context.Context, projectID uuid.UUID, req ProposeFactRequest, source models.ProvenanceSource) error {
	var msgs []string
	if req.Key == "" {
		msgs = append(msgs, "key is required")
	}
	switch req.ScopeType {
	case models.ScopeProject:
		if req.ItemID != nil {
			msgs = append(msgs, "item_id must be empty for project scope")
		}
	case models.ScopeItem:
		if req.ItemID == nil {
			msgs = append(msgs, "item_id is required for item scope")
		}
	default:
		msgs = append(msgs, fmt.Sprintf("unknown scope_type %q", req.ScopeType))
	}
	if len(req.Value) == 0 || !json.Valid(req.Value) {
		msgs = append(msgs, "value must be valid JSON")
	}
	if !source.IsValid() {
		msgs = append(msgs, fmt.Sprintf("unknown source %q", source))
	}
	if err := apperrors.NewValidationError("fact", msgs); err != nil {
		return err
	}

	if req.ScopeType == models.ScopeItem {
		if _, err := s.itemRepo.Get(ctx, projectID, *req.ItemID); err != nil {
			return err
		}
	}
	return nil
}

func (s *factLedgerService) Accept(ctx context.Context, projectID, factID uuid.UUID) (*models.Fact, error) {
	fact, err := s.factRepo.Get(ctx, projectID, factID)
	if err != nil {
		return nil, err
	}
	slot := fact.Slot()

	err = s.locker.WithKeyLock(ctx, slot.String(), func(ctx context.Context) error {
		existing, err := s.factRepo.ListBySlot(ctx, slot)
		if err != nil {
			return err
		}
		for _, f := range existing {
			if f.ID != factID && f.Status == models.FactAccepted {
				if err := s.factRepo.UpdateStatus(ctx, projectID, f.ID, models.FactRejected, false); err != nil {
					return err
				}
			}
		}
		if err := s.factRepo.UpdateStatus(ctx, projectID, factID, models.FactAccepted, false); err != nil {
			return err
		}
		return s.renderGroup(ctx, fact)
	})
	if err != nil {
		s.logger.Error("Failed to accept fact",
			zap.String("project_id", projectID.String()),
			zap.String("fact_id", factID.String()),
			zap.Error(err))
		return nil, err
	}

	fact.Status = models.FactAccepted
	fact.NeedsReview = false
	s.logger.Info("Fact accepted",
		zap.String("project_id", projectID.String()),
		zap.String("fact_id", factID.String()),
		zap.String("key", fact.Key))
	return fact, nil
}

func (s *factLedgerService) Reject(ctx context.Context, projectID, factID uuid.UUID) (*models.Fact, error) {
	fact, err := s.factRepo.Get(ctx, projectID, factID)
	if err != nil {
		return nil, err
	}
	wasAccepted := fact.Status == models.FactAccepted

	err = s.locker.WithKeyLock(ctx, fact.Slot().String(), func(ctx context.Context) error {
		if err := s.factRepo.UpdateStatus(ctx, projectID, factID, models.FactRejected, false); err != nil {
			return err
		}
		if wasAccepted {
			return s.renderGroup(ctx, fact)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fact.Status = models.FactRejected
	fact.NeedsReview = false
	s.logger.Info("Fact rejected",
		zap.String("project_id", projectID.String()),
		zap.String("fact_id", factID.String()))
	return fact, nil
}

func (s *factLedgerService) ResolveConflict(ctx context.Context, projectID uuid.UUID, req ResolveConflictRequest) (*models.Fact, error) {
	if !req.ScopeType.IsValid() || req.Key == "" {
		return nil, apperrors.NewValidationError("resolve", []string{"scope_type and key are required"})
	}
	slot := models.FactKey{ProjectID: projectID, ScopeType: req.ScopeType, ItemID: req.ItemID, Key: req.Key}

	var chosen *models.Fact
	err := s.locker.WithKeyLock(ctx, slot.String(), func(ctx context.Context) error {
		existing, err := s.factRepo.ListBySlot(ctx, slot)
		if err != nil {
			return err
		}

		var siblings []*models.Fact
		for _, f := range existing {
			switch {
			case f.Status == models.FactConflict && f.ID == req.ChosenFactID:
				chosen = f
			case f.Status == models.FactConflict, f.Status == models.FactAccepted:
				siblings = append(siblings, f)
			}
		}
		if chosen == nil {
			return apperrors.ErrNotInConflictSet
		}

		for _, f := range siblings {
			if err := s.factRepo.UpdateStatus(ctx, projectID, f.ID, models.FactRejected, false); err != nil {
				return err
			}
		}
		if err := s.factRepo.UpdateStatus(ctx, projectID, chosen.ID, models.FactAccepted, false); err != nil {
			return err
		}
		chosen.Status = models.FactAccepted
		chosen.NeedsReview = false
		return s.renderGroup(ctx, chosen)
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotInConflictSet) {
			s.logger.Error("Failed to resolve fact conflict",
				zap.String("project_id", projectID.String()),
				zap.String("key", req.Key),
				zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Fact conflict resolved",
		zap.String("project_id", projectID.String()),
		zap.String("key", req.Key),
		zap.String("chosen_fact_id", chosen.ID.String()))
	return chosen, nil
}

func (s *factLedgerService) List(ctx context.Context, projectID uuid.UUID, view models.FactView) ([]*models.Fact, error) {
	if view == "" {
		view = models.FactViewAll
	}
	if !view.IsValid() {
		return nil, apperrors.NewValidationError("view", []string{fmt.Sprintf("unknown view %q", view)})
	}

	facts, err := s.factRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return models.FilterFacts(facts, view), nil
}

func (s *factLedgerService) ItemProjection(ctx context.Context, projectID, itemID uuid.UUID) (models.ItemProjection, error) {
	if _, err := s.itemRepo.Get(ctx, projectID, itemID); err != nil {
		return nil, err
	}
	facts, err := s.factRepo.ListAccepted(ctx, projectID, models.ScopeItem, &itemID)
	if err != nil {
		return nil, err
	}
	return models.ProjectFacts(facts), nil
}

// renderGroup rebuilds the knowledge block for the group of fact from the
// accepted facts sharing its scope. The block is removed once no accepted
// fact remains in the group.
func (s *factLedgerService) renderGroup(ctx context.Context, fact *models.Fact) error {
	blockKey := factBlockKey(fact.Group)

	accepted, err := s.factRepo.ListAccepted(ctx, fact.ProjectID, fact.ScopeType, fact.ItemID)
	if err != nil {
		return err
	}

	fields := make(map[string]models.BlockField)
	for _, f := range accepted {
		if f.Group != fact.Group {
			continue
		}
		var v any
		if err := json.Unmarshal(f.Value, &v); err != nil {
			return fmt.Errorf("failed to decode fact %s value: %w", f.ID, err)
		}
		fields[f.Field] = models.BlockField{Value: v}
	}

	if len(fields) == 0 {
		return s.blockRepo.Delete(ctx, fact.ProjectID, fact.ScopeType, fact.ItemID, blockKey)
	}

	md := currentstate.RenderFactGroup(blockKey, fields)
	return s.blockRepo.Upsert(ctx, &models.KnowledgeBlock{
		ProjectID:        fact.ProjectID,
		ScopeType:        fact.ScopeType,
		ItemID:           fact.ItemID,
		BlockKey:         blockKey,
		RenderedMarkdown: &md,
		JSON:             fields,
	})
}

func factBlockKey(group string) string {
	if group == "" {
		return "facts"
	}
	return "facts." + group
}

func findAccepted(facts []*models.Fact) *models.Fact {
	for _, f := range facts {
		if f.Status == models.FactAccepted {
			return f
		}
	}
	return nil
}
