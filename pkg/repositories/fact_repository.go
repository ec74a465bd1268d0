package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
	"github.com/magnetic-studio/studio-console/pkg/database"
	"github.com/magnetic-studio/studio-console/pkg/models"
)

// FactRepository provides data access for the fact ledger.
type FactRepository interface {
	Create(ctx context.Context, fact *models.Fact) error
	Get(ctx context.Context, projectID, factID uuid.UUID) (*models.Fact, error)
	// UpdateStatus sets status and needs_review on a single fact.
	UpdateStatus(ctx context.Context, projectID, factID uuid.UUID, status models.FactStatus, needsReview bool) error
	// ListBySlot returns every fact competing for key, oldest first.
	ListBySlot(ctx context.Context, key models.FactKey) ([]*models.Fact, error)
	// ListByProject returns all facts of a project, oldest first.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Fact, error)
	// ListAccepted returns accepted facts in one scope, oldest first. itemID
	// must be nil for project scope.
	ListAccepted(ctx context.Context, projectID uuid.UUID, scopeType models.ScopeType, itemID *uuid.UUID) ([]*models.Fact, error)
}

type factRepository struct{}

// NewFactRepository creates a new FactRepository.
func NewFactRepository() FactRepository {
	return &factRepository{}
}

var _ FactRepository = (*factRepository)(nil)

const factColumns = `id, project_id, scope_type, item_id, fact_key, fact_group, fact_field,
	value, status, needs_review, evidence, source, created_at, updated_at`

func (r *factRepository) Create(ctx context.Context, fact *models.Fact) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	if fact.ID == uuid.Nil {
		fact.ID = uuid.New()
	}
	now := time.Now()
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = now
	}
	fact.UpdatedAt = now

	var evidence []byte
	if fact.Evidence != nil {
		evidence, err = json.Marshal(fact.Evidence)
		if err != nil {
			return fmt.Errorf("failed to marshal evidence: %w", err)
		}
	}

	query := `
		INSERT INTO studio_facts (` + factColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = conn.Exec(ctx, query,
		fact.ID, fact.ProjectID, string(fact.ScopeType), fact.ItemID, fact.Key, fact.Group, fact.Field,
		[]byte(fact.Value), string(fact.Status), fact.NeedsReview, evidence, string(fact.Source),
		fact.CreatedAt, fact.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return apperrors.ErrConflict
			case "23503":
				// project or item row is missing
				return fmt.Errorf("%s: %w", pgErr.ConstraintName, apperrors.ErrNotFound)
			}
		}
		return fmt.Errorf("failed to create fact: %w", err)
	}
	return nil
}

func (r *factRepository) Get(ctx context.Context, projectID, factID uuid.UUID) (*models.Fact, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + factColumns + ` FROM studio_facts WHERE project_id = $1 AND id = $2`

	f, err := scanFact(conn.QueryRow(ctx, query, projectID, factID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (r *factRepository) UpdateStatus(ctx context.Context, projectID, factID uuid.UUID, status models.FactStatus, needsReview bool) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE studio_facts
		SET status = $3, needs_review = $4, updated_at = $5
		WHERE project_id = $1 AND id = $2`

	result, err := conn.Exec(ctx, query, projectID, factID, string(status), needsReview, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update fact status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *factRepository) ListBySlot(ctx context.Context, key models.FactKey) ([]*models.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM studio_facts
		WHERE project_id = $1 AND scope_type = $2 AND item_id IS NOT DISTINCT FROM $3 AND fact_key = $4
		ORDER BY created_at, id`
	return r.list(ctx, query, key.ProjectID, string(key.ScopeType), key.ItemID, key.Key)
}

func (r *factRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM studio_facts
		WHERE project_id = $1
		ORDER BY created_at, id`
	return r.list(ctx, query, projectID)
}

func (r *factRepository) ListAccepted(ctx context.Context, projectID uuid.UUID, scopeType models.ScopeType, itemID *uuid.UUID) ([]*models.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM studio_facts
		WHERE project_id = $1 AND scope_type = $2 AND item_id IS NOT DISTINCT FROM $3 AND status = 'accepted'
		ORDER BY created_at, id`
	return r.list(ctx, query, projectID, string(scopeType), itemID)
}

func (r *factRepository) list(ctx context.Context, query string, args ...any) ([]*models.Fact, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer rows.Close()

	facts := make([]*models.Fact, 0)
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facts: %w", err)
	}
	return facts, nil
}

func scanFact(row pgx.Row) (*models.Fact, error) {
	var (
		f                         models.Fact
		scopeType, status, source string
		value, evidence           []byte
	)
	err := row.Scan(
		&f.ID, &f.ProjectID, &scopeType, &f.ItemID, &f.Key, &f.Group, &f.Field,
		&value, &status, &f.NeedsReview, &evidence, &source, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan fact: %w", err)
	}

	f.ScopeType = models.ScopeType(scopeType)
	f.Status = models.FactStatus(status)
	f.Source = models.ProvenanceSource(source)
	f.Value = json.RawMessage(value)
	if len(evidence) > 0 {
		var ev models.Evidence
		if err := json.Unmarshal(evidence, &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
		}
		f.Evidence = &ev
	}
	return &f, nil
}
