package services

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
	"github.com/magnetic-studio/studio-console/pkg/costing"
	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/repositories"
)

// ActualsUpdate carries recorded actuals for one line. A nil field leaves the
// stored actual untouched.
type ActualsUpdate struct {
	Quantity *float64 `json:"actual_quantity"`
	UnitCost *float64 `json:"actual_unit_cost"`
}

// CostingService computes planned/actual rollups and records actuals.
type CostingService interface {
	// Summary returns stats for every section of the project plus project totals.
	Summary(ctx context.Context, projectID uuid.UUID, opts models.CostOptions) (*models.CostingSummary, error)

	// SectionStats returns the rollup of a single section.
	SectionStats(ctx context.Context, projectID, sectionID uuid.UUID, opts models.CostOptions) (*models.SectionStats, error)

	// UpdateDefaults stores project-level percentages. Nil reverts to the studio defaults.
	UpdateDefaults(ctx context.Context, projectID uuid.UUID, defaults *models.ProjectDefaults) error

	RecordMaterialActual(ctx context.Context, projectID, lineID uuid.UUID, update ActualsUpdate) error
	RecordWorkActual(ctx context.Context, projectID, lineID uuid.UUID, update ActualsUpdate) error
}

type costingService struct {
	projectRepo repositories.ProjectRepository
	sectionRepo repositories.SectionRepository
	fallback    models.ProjectDefaults
	logger      *zap.Logger
}

// NewCostingService creates a new costing service. fallback supplies the
// studio-wide defaults for projects without their own.
func NewCostingService(
	projectRepo repositories.ProjectRepository,
	sectionRepo repositories.SectionRepository,
	fallback models.ProjectDefaults,
	logger *zap.Logger,
) CostingService {
	return &costingService{
		projectRepo: projectRepo,
		sectionRepo: sectionRepo,
		fallback:    fallback,
		logger:      logger.Named("costing"),
	}
}

var _ CostingService = (*costingService)(nil)

func (s *costingService) Summary(ctx context.Context, projectID uuid.UUID, opts models.CostOptions) (*models.CostingSummary, error) {
	project, err := s.projectRepo.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	sections, err := s.sectionRepo.ListSections(ctx, projectID)
	if err != nil {
		return nil, err
	}

	bundles, err := s.loadLines(ctx, sections)
	if err != nil {
		return nil, err
	}

	defaults := project.ResolveDefaults(s.fallback)

	// Lines are already in memory; the rollups themselves are independent.
	stats := make([]models.SectionStats, len(bundles))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, b := range bundles {
		g.Go(func() error {
			stats[i] = models.SectionStats{
				SectionID: b.Section.ID,
				Name:      b.Section.Name,
				Totals:    costing.CalculateSectionStats(b.Section, b.Materials, b.Work, defaults, opts),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totals := make([]models.SectionTotals, len(stats))
	for i := range stats {
		totals[i] = stats[i].Totals
	}

	s.logger.Debug("Computed costing summary",
		zap.String("project_id", projectID.String()),
		zap.Int("sections", len(stats)))

	return &models.CostingSummary{
		ProjectID: projectID,
		Defaults:  defaults,
		Options:   opts,
		Sections:  stats,
		Totals:    costing.AggregateProject(totals),
	}, nil
}

func (s *costingService) SectionStats(ctx context.Context, projectID, sectionID uuid.UUID, opts models.CostOptions) (*models.SectionStats, error) {
	project, err := s.projectRepo.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	section, err := s.sectionRepo.GetSection(ctx, projectID, sectionID)
	if err != nil {
		return nil, err
	}

	bundles, err := s.loadLines(ctx, []*models.Section{section})
	if err != nil {
		return nil, err
	}
	b := bundles[0]

	return &models.SectionStats{
		SectionID: section.ID,
		Name:      section.Name,
		Totals:    costing.CalculateSectionStats(section, b.Materials, b.Work, project.ResolveDefaults(s.fallback), opts),
	}, nil
}

// loadLines fetches the lines of all sections in two queries and groups them.
func (s *costingService) loadLines(ctx context.Context, sections []*models.Section) ([]models.SectionWithLines, error) {
	bundles := make([]models.SectionWithLines, len(sections))
	if len(sections) == 0 {
		return bundles, nil
	}

	ids := make([]uuid.UUID, len(sections))
	index := make(map[uuid.UUID]int, len(sections))
	for i, sec := range sections {
		ids[i] = sec.ID
		index[sec.ID] = i
		bundles[i].Section = sec
	}

	materials, err := s.sectionRepo.ListMaterialLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range materials {
		if i, ok := index[m.SectionID]; ok {
			bundles[i].Materials = append(bundles[i].Materials, m)
		}
	}

	work, err := s.sectionRepo.ListWorkLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, w := range work {
		if i, ok := index[w.SectionID]; ok {
			bundles[i].Work = append(bundles[i].Work, w)
		}
	}

	return bundles, nil
}

func (s *costingService) UpdateDefaults(ctx context.Context, projectID uuid.UUID, defaults *models.ProjectDefaults) error {
	if defaults != nil {
		var msgs []string
		for _, f := range []struct {
			name  string
			value float64
		}{
			{"overhead", defaults.Overhead},
			{"risk", defaults.Risk},
			{"profit", defaults.Profit},
		} {
			if f.value < 0 {
				msgs = append(msgs, fmt.Sprintf("%s must not be negative", f.name))
			}
		}
		if err := apperrors.NewValidationError("defaults", msgs); err != nil {
			return err
		}
	}

	if err := s.projectRepo.UpdateDefaults(ctx, projectID, defaults); err != nil {
		return err
	}

	s.logger.Info("Project costing defaults updated",
		zap.String("project_id", projectID.String()),
		zap.Bool("cleared", defaults == nil))
	return nil
}

func (s *costingService) RecordMaterialActual(ctx context.Context, projectID, lineID uuid.UUID, update ActualsUpdate) error {
	if err := s.sectionRepo.UpdateMaterialActuals(ctx, projectID, lineID, update.Quantity, update.UnitCost); err != nil {
		return err
	}
	s.logger.Debug("Recorded material actuals",
		zap.String("project_id", projectID.String()),
		zap.String("line_id", lineID.String()))
	return nil
}

func (s *costingService) RecordWorkActual(ctx context.Context, projectID, lineID uuid.UUID, update ActualsUpdate) error {
	if err := s.sectionRepo.UpdateWorkActuals(ctx, projectID, lineID, update.Quantity, update.UnitCost); err != nil {
		return err
	}
	s.logger.Debug("Recorded work actuals",
		zap.String("project_id", projectID.String()),
		zap.String("line_id", lineID.String()))
	return nil
}
