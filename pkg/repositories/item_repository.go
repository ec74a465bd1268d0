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

// ItemRepository provides data access for project items.
type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	Get(ctx context.Context, projectID, itemID uuid.UUID) (*models.Item, error)
	List(ctx context.Context, projectID uuid.UUID) ([]*models.Item, error)
}

type itemRepository struct{}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository() ItemRepository {
	return &itemRepository{}
}

var _ ItemRepository = (*itemRepository)(nil)

const itemColumns = `id, project_id, title, name, item_type, status,
	scope_quantity, scope_unit, scope_dimensions, scope_location, scope_constraints, scope_assumptions,
	sort_order, created_at, updated_at`

func (r *itemRepository) Create(ctx context.Context, item *models.Item) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `
		INSERT INTO studio_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = conn.Exec(ctx, query,
		item.ID, item.ProjectID, item.Title, item.Name, item.Type, item.Status,
		item.Scope.Quantity, item.Scope.Unit, item.Scope.Dimensions, item.Scope.Location,
		nonNilStrings(item.Scope.Constraints), nonNilStrings(item.Scope.Assumptions),
		item.SortOrder, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (r *itemRepository) Get(ctx context.Context, projectID, itemID uuid.UUID) (*models.Item, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + itemColumns + ` FROM studio_items WHERE project_id = $1 AND id = $2`

	item, err := scanItem(conn.QueryRow(ctx, query, projectID, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *itemRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.Item, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + itemColumns + ` FROM studio_items
		WHERE project_id = $1
		ORDER BY sort_order, created_at`

	rows, err := conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

func scanItem(row pgx.Row) (*models.Item, error) {
	var i models.Item
	err := row.Scan(
		&i.ID, &i.ProjectID, &i.Title, &i.Name, &i.Type, &i.Status,
		&i.Scope.Quantity, &i.Scope.Unit, &i.Scope.Dimensions, &i.Scope.Location,
		&i.Scope.Constraints, &i.Scope.Assumptions,
		&i.SortOrder, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	return &i, nil
}

// nonNilStrings keeps NOT NULL text[] columns from receiving NULL.
func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
