package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
	"github.com/magnetic-studio/studio-console/pkg/database"
	"github.com/magnetic-studio/studio-console/pkg/models"
)

// SectionRepository provides data access for cost sections and the material
// and work lines they own.
type SectionRepository interface {
	CreateSection(ctx context.Context, section *models.Section) error
	GetSection(ctx context.Context, projectID, sectionID uuid.UUID) (*models.Section, error)
	ListSections(ctx context.Context, projectID uuid.UUID) ([]*models.Section, error)

	CreateMaterialLine(ctx context.Context, line *models.MaterialLine) error
	CreateWorkLine(ctx context.Context, line *models.WorkLine) error

	// ListMaterialLines returns lines for the given sections, in insertion order.
	ListMaterialLines(ctx context.Context, sectionIDs []uuid.UUID) ([]*models.MaterialLine, error)
	ListWorkLines(ctx context.Context, sectionIDs []uuid.UUID) ([]*models.WorkLine, error)

	// UpdateMaterialActuals records actual quantity/unit cost for a material
	// line belonging to projectID. Nil values keep the stored actual.
	UpdateMaterialActuals(ctx context.Context, projectID, lineID uuid.UUID, quantity, unitCost *float64) error
	UpdateWorkActuals(ctx context.Context, projectID, lineID uuid.UUID, quantity, unitCost *float64) error
}

type sectionRepository struct{}

// NewSectionRepository creates a new SectionRepository.
func NewSectionRepository() SectionRepository {
	return &sectionRepository{}
}

var _ SectionRepository = (*sectionRepository)(nil)

const sectionColumns = `id, project_id, name, sort_order,
	overhead_percent_override, risk_percent_override, profit_percent_override,
	created_at, updated_at`

func (r *sectionRepository) CreateSection(ctx context.Context, section *models.Section) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	if section.ID == uuid.Nil {
		section.ID = uuid.New()
	}
	now := time.Now()
	section.CreatedAt = now
	section.UpdatedAt = now

	query := `
		INSERT INTO studio_sections (` + sectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = conn.Exec(ctx, query,
		section.ID, section.ProjectID, section.Name, section.SortOrder,
		section.OverheadPercentOverride, section.RiskPercentOverride, section.ProfitPercentOverride,
		section.CreatedAt, section.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create section: %w", err)
	}
	return nil
}

func (r *sectionRepository) GetSection(ctx context.Context, projectID, sectionID uuid.UUID) (*models.Section, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + sectionColumns + ` FROM studio_sections WHERE project_id = $1 AND id = $2`

	s, err := scanSection(conn.QueryRow(ctx, query, projectID, sectionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *sectionRepository) ListSections(ctx context.Context, projectID uuid.UUID) ([]*models.Section, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + sectionColumns + ` FROM studio_sections
		WHERE project_id = $1
		ORDER BY sort_order, created_at`

	rows, err := conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	sections := make([]*models.Section, 0)
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sections: %w", err)
	}
	return sections, nil
}

func scanSection(row pgx.Row) (*models.Section, error) {
	var s models.Section
	err := row.Scan(
		&s.ID, &s.ProjectID, &s.Name, &s.SortOrder,
		&s.OverheadPercentOverride, &s.RiskPercentOverride, &s.ProfitPercentOverride,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan section: %w", err)
	}
	return &s, nil
}

func (r *sectionRepository) CreateMaterialLine(ctx context.Context, line *models.MaterialLine) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	line.QuoteVisibility = line.QuoteVisibility.Normalize()

	query := `
		INSERT INTO studio_material_lines (
			id, section_id, label, planned_quantity, planned_unit_cost,
			actual_quantity, actual_unit_cost, is_management, quote_visibility
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = conn.Exec(ctx, query,
		line.ID, line.SectionID, line.Label, line.PlannedQuantity, line.PlannedUnitCost,
		line.ActualQuantity, line.ActualUnitCost, line.IsManagement, string(line.QuoteVisibility),
	)
	if err != nil {
		return fmt.Errorf("failed to create material line: %w", err)
	}
	return nil
}

func (r *sectionRepository) CreateWorkLine(ctx context.Context, line *models.WorkLine) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	if line.RateType == "" {
		line.RateType = models.RatePerUnit
	}
	line.QuoteVisibility = line.QuoteVisibility.Normalize()

	query := `
		INSERT INTO studio_work_lines (
			id, section_id, label, rate_type, planned_quantity, planned_unit_cost,
			actual_quantity, actual_unit_cost, is_management, quote_visibility
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = conn.Exec(ctx, query,
		line.ID, line.SectionID, line.Label, string(line.RateType), line.PlannedQuantity, line.PlannedUnitCost,
		line.ActualQuantity, line.ActualUnitCost, line.IsManagement, string(line.QuoteVisibility),
	)
	if err != nil {
		return fmt.Errorf("failed to create work line: %w", err)
	}
	return nil
}

func (r *sectionRepository) ListMaterialLines(ctx context.Context, sectionIDs []uuid.UUID) ([]*models.MaterialLine, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, section_id, label, planned_quantity, planned_unit_cost,
		       actual_quantity, actual_unit_cost, is_management, quote_visibility
		FROM studio_material_lines
		WHERE section_id = ANY($1)
		ORDER BY sort_order, created_at`

	rows, err := conn.Query(ctx, query, sectionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list material lines: %w", err)
	}
	defer rows.Close()

	lines := make([]*models.MaterialLine, 0)
	for rows.Next() {
		var (
			l   models.MaterialLine
			vis string
		)
		if err := rows.Scan(
			&l.ID, &l.SectionID, &l.Label, &l.PlannedQuantity, &l.PlannedUnitCost,
			&l.ActualQuantity, &l.ActualUnitCost, &l.IsManagement, &vis,
		); err != nil {
			return nil, fmt.Errorf("failed to scan material line: %w", err)
		}
		l.QuoteVisibility = models.QuoteVisibility(vis).Normalize()
		lines = append(lines, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating material lines: %w", err)
	}
	return lines, nil
}

func (r *sectionRepository) ListWorkLines(ctx context.Context, sectionIDs []uuid.UUID) ([]*models.WorkLine, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, section_id, label, rate_type, planned_quantity, planned_unit_cost,
		       actual_quantity, actual_unit_cost, is_management, quote_visibility
		FROM studio_work_lines
		WHERE section_id = ANY($1)
		ORDER BY sort_order, created_at`

	rows, err := conn.Query(ctx, query, sectionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list work lines: %w", err)
	}
	defer rows.Close()

	lines := make([]*models.WorkLine, 0)
	for rows.Next() {
		var (
			l             models.WorkLine
			rateType, vis string
		)
		if err := rows.Scan(
			&l.ID, &l.SectionID, &l.Label, &rateType, &l.PlannedQuantity, &l.PlannedUnitCost,
			&l.ActualQuantity, &l.ActualUnitCost, &l.IsManagement, &vis,
		); err != nil {
			return nil, fmt.Errorf("failed to scan work line: %w", err)
		}
		l.RateType = models.RateType(rateType)
		l.QuoteVisibility = models.QuoteVisibility(vis).Normalize()
		lines = append(lines, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work lines: %w", err)
	}
	return lines, nil
}

func (r *sectionRepository) UpdateMaterialActuals(ctx context.Context, projectID, lineID uuid.UUID, quantity, unitCost *float64) error {
	return r.updateActuals(ctx, "studio_material_lines", projectID, lineID, quantity, unitCost)
}

func (r *sectionRepository) UpdateWorkActuals(ctx context.Context, projectID, lineID uuid.UUID, quantity, unitCost *float64) error {
	return r.updateActuals(ctx, "studio_work_lines", projectID, lineID, quantity, unitCost)
}

// updateActuals is shared by both line tables. table is never user input.
// A nil value keeps the stored actual.
func (r *sectionRepository) updateActuals(ctx context.Context, table string, projectID, lineID uuid.UUID, quantity, unitCost *float64) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE ` + table + ` l
		SET actual_quantity = COALESCE($3, l.actual_quantity),
		    actual_unit_cost = COALESCE($4, l.actual_unit_cost),
		    updated_at = $5
		FROM studio_sections s
		WHERE l.section_id = s.id AND s.project_id = $1 AND l.id = $2`

	result, err := conn.Exec(ctx, query, projectID, lineID, quantity, unitCost, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update actuals: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
