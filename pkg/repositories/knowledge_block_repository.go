package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/magnetic-studio/studio-console/pkg/database"
	"github.com/magnetic-studio/studio-console/pkg/models"
)

// KnowledgeBlockRepository provides data access for rendered knowledge blocks.
type KnowledgeBlockRepository interface {
	// Upsert writes the block keyed by (project, scope, item, block key).
	Upsert(ctx context.Context, block *models.KnowledgeBlock) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.KnowledgeBlock, error)
	// Delete removes a block if it exists.
	Delete(ctx context.Context, projectID uuid.UUID, scopeType models.ScopeType, itemID *uuid.UUID, blockKey string) error
}

type knowledgeBlockRepository struct{}

// NewKnowledgeBlockRepository creates a new KnowledgeBlockRepository.
func NewKnowledgeBlockRepository() KnowledgeBlockRepository {
	return &knowledgeBlockRepository{}
}

var _ KnowledgeBlockRepository = (*knowledgeBlockRepository)(nil)

func (r *knowledgeBlockRepository) Upsert(ctx context.Context, block *models.KnowledgeBlock) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	block.UpdatedAt = time.Now()

	payload := block.JSON
	if payload == nil {
		payload = map[string]models.BlockField{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal block json: %w", err)
	}

	query := `
		INSERT INTO studio_knowledge_blocks (
			id, project_id, scope_type, item_id, block_key, rendered_markdown, json, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id, scope_type, COALESCE(item_id, '00000000-0000-0000-0000-000000000000'::uuid), block_key)
		DO UPDATE SET
			rendered_markdown = EXCLUDED.rendered_markdown,
			json = EXCLUDED.json,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	err = conn.QueryRow(ctx, query,
		block.ID, block.ProjectID, string(block.ScopeType), block.ItemID, block.BlockKey,
		block.RenderedMarkdown, data, block.UpdatedAt,
	).Scan(&block.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert knowledge block: %w", err)
	}
	return nil
}

func (r *knowledgeBlockRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.KnowledgeBlock, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, project_id, scope_type, item_id, block_key, rendered_markdown, json, updated_at
		FROM studio_knowledge_blocks
		WHERE project_id = $1
		ORDER BY block_key, id`

	rows, err := conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge blocks: %w", err)
	}
	defer rows.Close()

	blocks := make([]*models.KnowledgeBlock, 0)
	for rows.Next() {
		b, err := scanKnowledgeBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge blocks: %w", err)
	}
	return blocks, nil
}

func (r *knowledgeBlockRepository) Delete(ctx context.Context, projectID uuid.UUID, scopeType models.ScopeType, itemID *uuid.UUID, blockKey string) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	query := `
		DELETE FROM studio_knowledge_blocks
		WHERE project_id = $1 AND scope_type = $2 AND item_id IS NOT DISTINCT FROM $3 AND block_key = $4`

	if _, err := conn.Exec(ctx, query, projectID, string(scopeType), itemID, blockKey); err != nil {
		return fmt.Errorf("failed to delete knowledge block: %w", err)
	}
	return nil
}

func scanKnowledgeBlock(row pgx.Row) (*models.KnowledgeBlock, error) {
	var (
		b         models.KnowledgeBlock
		scopeType string
		data      []byte
	)
	err := row.Scan(&b.ID, &b.ProjectID, &scopeType, &b.ItemID, &b.BlockKey, &b.RenderedMarkdown, &data, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan knowledge block: %w", err)
	}
	b.ScopeType = models.ScopeType(scopeType)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &b.JSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal block json: %w", err)
		}
	}
	return &b, nil
}
