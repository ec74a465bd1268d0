package repositories

import (
	"context"
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

// PriceRepository provides data access for price memory: canonical items,
// aliases, purchases and the observation log.
type PriceRepository interface {
	GetAlias(ctx context.Context, rawNormalized string) (*models.ItemAlias, error)
	CreateAlias(ctx context.Context, alias *models.ItemAlias) error
	CreateCanonicalItem(ctx context.Context, item *models.CanonicalItem) error
	GetCanonicalItem(ctx context.Context, id uuid.UUID) (*models.CanonicalItem, error)
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	AppendObservation(ctx context.Context, obs *models.PriceObservation) error
	// ListRecentObservations returns up to limit observations, newest first.
	ListRecentObservations(ctx context.Context, canonicalItemID uuid.UUID, limit int) ([]*models.PriceObservation, error)
}

type priceRepository struct{}

// NewPriceRepository creates a new PriceRepository.
func NewPriceRepository() PriceRepository {
	return &priceRepository{}
}

var _ PriceRepository = (*priceRepository)(nil)

func (r *priceRepository) GetAlias(ctx context.Context, rawNormalized string) (*models.ItemAlias, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT raw_normalized, canonical_item_id, confidence, created_at
		FROM studio_item_aliases
		WHERE raw_normalized = $1`

	var a models.ItemAlias
	err = conn.QueryRow(ctx, query, rawNormalized).Scan(&a.RawNormalized, &a.CanonicalItemID, &a.Confidence, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alias: %w", err)
	}
	return &a, nil
}

// CreateAlias inserts a binding. An existing binding is never overwritten;
// ErrConflict is returned instead.
func (r *priceRepository) CreateAlias(ctx context.Context, alias *models.ItemAlias) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	alias.CreatedAt = time.Now()

	query := `
		INSERT INTO studio_item_aliases (raw_normalized, canonical_item_id, confidence, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err = conn.Exec(ctx, query, alias.RawNormalized, alias.CanonicalItemID, alias.Confidence, alias.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create alias: %w", err)
	}
	return nil
}

func (r *priceRepository) CreateCanonicalItem(ctx context.Context, item *models.CanonicalItem) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now()

	query := `
		INSERT INTO studio_canonical_items (id, name, tags, default_unit, synonyms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = conn.Exec(ctx, query,
		item.ID, item.Name, nonNilStrings(item.Tags), item.DefaultUnit, nonNilStrings(item.Synonyms), item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create canonical item: %w", err)
	}
	return nil
}

func (r *priceRepository) GetCanonicalItem(ctx context.Context, id uuid.UUID) (*models.CanonicalItem, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, tags, default_unit, synonyms, created_at
		FROM studio_canonical_items
		WHERE id = $1`

	var c models.CanonicalItem
	err = conn.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Tags, &c.DefaultUnit, &c.Synonyms, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get canonical item: %w", err)
	}
	return &c, nil
}

func (r *priceRepository) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()

	query := `
		INSERT INTO studio_purchases (
			id, project_id, item_name, quantity, amount, unit, currency, vendor_id, purchased_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = conn.Exec(ctx, query,
		p.ID, p.ProjectID, p.ItemName, p.Quantity, p.Amount, p.Unit, p.Currency, p.VendorID, p.PurchasedAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

func (r *priceRepository) AppendObservation(ctx context.Context, o *models.PriceObservation) error {
	conn, err := database.Conn(ctx)
	if err != nil {
		return err
	}

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	query := `
		INSERT INTO studio_price_observations (
			id, canonical_item_id, raw_item_name, vendor_id, unit, unit_price, currency, source, observed_at, source_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = conn.Exec(ctx, query,
		o.ID, o.CanonicalItemID, o.RawItemName, o.VendorID, o.Unit, o.UnitPrice, o.Currency, o.Source, o.ObservedAt, o.SourceRef)
	if err != nil {
		return fmt.Errorf("failed to append price observation: %w", err)
	}
	return nil
}

func (r *priceRepository) ListRecentObservations(ctx context.Context, canonicalItemID uuid.UUID, limit int) ([]*models.PriceObservation, error) {
	conn, err := database.Conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, canonical_item_id, raw_item_name, vendor_id, unit, unit_price, currency, source, observed_at, source_ref
		FROM studio_price_observations
		WHERE canonical_item_id = $1
		ORDER BY observed_at DESC, id
		LIMIT $2`

	rows, err := conn.Query(ctx, query, canonicalItemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list price observations: %w", err)
	}
	defer rows.Close()

	obs := make([]*models.PriceObservation, 0)
	for rows.Next() {
		var o models.PriceObservation
		if err := rows.Scan(
			&o.ID, &o.CanonicalItemID, &o.RawItemName, &o.VendorID, &o.Unit, &o.UnitPrice,
			&o.Currency, &o.Source, &o.ObservedAt, &o.SourceRef,
		); err != nil {
			return nil, fmt.Errorf("failed to scan price observation: %w", err)
		}
		obs = append(obs, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price observations: %w", err)
	}
	return obs, nil
}
