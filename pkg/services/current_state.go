package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
	"github.com/magnetic-studio/studio-console/pkg/currentstate"
	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/repositories"
)

// CurrentStateService renders the derived current-state document of a project.
type CurrentStateService interface {
	Build(ctx context.Context, projectID uuid.UUID, scope currentstate.Scope, itemIDs []uuid.UUID) (string, error)
}

type currentStateService struct {
	projectRepo repositories.ProjectRepository
	itemRepo    repositories.ItemRepository
	blockRepo   repositories.KnowledgeBlockRepository
	logger      *zap.Logger
}

// NewCurrentStateService creates a new current state service.
func NewCurrentStateService(
	projectRepo repositories.ProjectRepository,
	itemRepo repositories.ItemRepository,
	blockRepo repositories.KnowledgeBlockRepository,
	logger *zap.Logger,
) CurrentStateService {
	return &currentStateService{
		projectRepo: projectRepo,
		itemRepo:    itemRepo,
		blockRepo:   blockRepo,
		logger:      logger.Named("current-state"),
	}
}

var _ CurrentStateService = (*currentStateService)(nil)

func (s *currentStateService) Build(ctx context.Context, projectID uuid.UUID, scope currentstate.Scope, itemIDs []uuid.UUID) (string, error) {
	project, err := s.projectRepo.Get(ctx, projectID)
	if err != nil {
		return "", err
	}

	items, err := s.itemRepo.List(ctx, projectID)
	if err != nil {
		return "", err
	}

	blocks, err := s.blockRepo.ListByProject(ctx, projectID)
	if err != nil {
		return "", err
	}

	scopedItems, blocks, err := currentstate.ApplyScope(scope, itemIDs, items, blocks)
	if err != nil {
		return "", apperrors.NewValidationError("scope", []string{err.Error()})
	}
	if scope == currentstate.ScopeSingleItem || scope == currentstate.ScopeMultiItem {
		if missing := missingItems(itemIDs, scopedItems); len(missing) > 0 {
			return "", fmt.Errorf("items %v: %w", missing, apperrors.ErrNotFound)
		}
	}
	items = scopedItems

	s.logger.Debug("Rendering current state",
		zap.String("project_id", projectID.String()),
		zap.String("scope", string(scope)),
		zap.Int("items", len(items)),
		zap.Int("blocks", len(blocks)))

	return currentstate.Build(currentstate.Input{
		ProjectName: project.Name,
		Blocks:      blocks,
		Items:       items,
	}), nil
}

// missingItems returns the requested ids with no matching item.
func missingItems(ids []uuid.UUID, items []*models.Item) []uuid.UUID {
	found := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		found[it.ID] = true
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
