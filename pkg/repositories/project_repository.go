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

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// UpdateDefaults stores the project's costing defaults. Nil clears them so
	// the studio-wide defaults apply again.
	UpdateDefaults(ctx context.Context, id uuid.UUID, defaults *models.ProjectDefaults) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct{}

// NewProjectRepository creates a new project repository.
func NewProjectRepository() ProjectRepository {
	return &projectRepository{}
}

// Create inserts a new project or updates its name and status if it already
// exists (idempotent).
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = "active"
	}

	overhead, risk, profit := defaultsArgs(project.Defaults)

	query := `
		INSERT INTO studio_projects (id, name, status, default_overhead, default_risk, default_profit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    status = EXCLUDED.status,
		    updated_at = EXCLUDED.updated_at`

	_, err = conn.Exec(ctx, query,
		project.ID,
		project.Name,
		project.Status,
		overhead, risk, profit,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// Get retrieves a project by ID.
func (r *projectRepository) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, status, default_overhead, default_risk, default_profit, created_at, updated_at
		FROM studio_projects
		WHERE id = $1`

	var (
		project                models.Project
		overhead, risk, profit *float64
	)
	err = conn.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.Status,
		&overhead, &risk, &profit,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if overhead != nil && risk != nil && profit != nil {
		project.Defaults = &models.ProjectDefaults{Overhead: *overhead, Risk: *risk, Profit: *profit}
	}

	return &project, nil
}

// UpdateDefaults sets or clears the project's costing defaults.
func (r *projectRepository) UpdateDefaults(ctx context.Context, id uuid.UUID, defaults *models.ProjectDefaults) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	overhead, risk, profit := defaultsArgs(defaults)

	query := `
		UPDATE studio_projects
		SET default_overhead = $2, default_risk = $3, default_profit = $4, updated_at = $5
		WHERE id = $1`

	result, err := conn.Exec(ctx, query, id, overhead, risk, profit, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update project defaults: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a project by ID. Sections, items and facts cascade.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	result, err := conn.Exec(ctx, `DELETE FROM studio_projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func defaultsArgs(d *models.ProjectDefaults) (overhead, risk, profit *float64) {
	if d == nil {
		return nil, nil, nil
	}
	return &d.Overhead, &d.Risk, &d.Profit
}

// Ensure projectRepository implements ProjectRepository at compile time.
var _ ProjectRepository = (*projectRepository)(nil)
