package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
	"github.com/magnetic-studio/studio-console/pkg/database"
	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/pricing"
	"github.com/magnetic-studio/studio-console/pkg/repositories"
)

// PriceMemoryService resolves raw item names to canonical items and turns
// purchases into price observations and estimates.
type PriceMemoryService interface {
	// NormalizeItemName returns the canonical item bound to raw, creating the
	// item and its alias on first sight. Repeated calls return the same id.
	NormalizeItemName(ctx context.Context, raw string) (uuid.UUID, error)

	// IngestPurchase stores the purchase and appends the derived observation.
	IngestPurchase(ctx context.Context, purchase *models.Purchase) (*models.PriceObservation, error)

	// GetBestEstimate summarizes the most recent observations. It returns
	// apperrors.ErrNotFound for an unknown item and nil when a known item has
	// never been observed. locationTag is reserved.
	GetBestEstimate(ctx context.Context, canonicalItemID uuid.UUID, locationTag string) (*models.PriceEstimate, error)
}

type priceMemoryService struct {
	priceRepo repositories.PriceRepository
	locker    database.KeyLocker
	logger    *zap.Logger
}

// NewPriceMemoryService creates a new price memory service.
func NewPriceMemoryService(priceRepo repositories.PriceRepository, locker database.KeyLocker, logger *zap.Logger) PriceMemoryService {
	return &priceMemoryService{
		priceRepo: priceRepo,
		locker:    locker,
		logger:    logger.Named("price-memory"),
	}
}

var _ PriceMemoryService = (*priceMemoryService)(nil)

func (s *priceMemoryService) NormalizeItemName(ctx context.Context, raw string) (uuid.UUID, error) {
	display := strings.TrimSpace(raw)
	key := models.NormalizeRawName(raw)
	if key == "" {
		return uuid.Nil, apperrors.NewValidationError("item_name", []string{"item name is required"})
	}

	var canonicalID uuid.UUID
	err := s.locker.WithKeyLock(ctx, "alias:"+key, func(ctx context.Context) error {
		alias, err := s.priceRepo.GetAlias(ctx, key)
		if err == nil {
			canonicalID = alias.CanonicalItemID
			return nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		item := &models.CanonicalItem{Name: display}
		if err := s.priceRepo.CreateCanonicalItem(ctx, item); err != nil {
			return err
		}
		if err := s.priceRepo.CreateAlias(ctx, &models.ItemAlias{
			RawNormalized:   key,
			CanonicalItemID: item.ID,
			Confidence:      1.0,
		}); err != nil {
			return err
		}
		canonicalID = item.ID

		s.logger.Info("Created canonical item",
			zap.String("canonical_item_id", item.ID.String()),
			zap.String("name", display))
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return canonicalID, nil
}

func (s *priceMemoryService) IngestPurchase(ctx context.Context, purchase *models.Purchase) (*models.PriceObservation, error) {
	var msgs []string
	if strings.TrimSpace(purchase.ItemName) == "" {
		msgs = append(msgs, "item_name is required")
	}
	if purchase.Currency == "" {
		msgs = append(msgs, "currency is required")
	}
	if purchase.PurchasedAt.IsZero() {
		msgs = append(msgs, "purchased_at is required")
	}
	if err := apperrors.NewValidationError("purchase", msgs); err != nil {
		return nil, err
	}

	canonicalID, err := s.NormalizeItemName(ctx, purchase.ItemName)
	if err != nil {
		return nil, err
	}

	obs := &models.PriceObservation{
		CanonicalItemID: canonicalID,
		RawItemName:     purchase.ItemName,
		VendorID:        purchase.VendorID,
		Unit:            purchase.Unit,
		UnitPrice:       purchase.UnitPrice(),
		Currency:        purchase.Currency,
		Source:          models.PriceSourcePurchase,
		ObservedAt:      purchase.PurchasedAt,
	}

	// Purchase and observation are written together.
	err = s.locker.WithKeyLock(ctx, "price:"+canonicalID.String(), func(ctx context.Context) error {
		if err := s.priceRepo.CreatePurchase(ctx, purchase); err != nil {
			return err
		}
		obs.SourceRef = purchase.ID.String()
		return s.priceRepo.AppendObservation(ctx, obs)
	})
	if err != nil {
		s.logger.Error("Failed to ingest purchase",
			zap.String("item_name", purchase.ItemName),
			zap.Error(err))
		return nil, err
	}

	s.logger.Debug("Recorded price observation",
		zap.String("canonical_item_id", canonicalID.String()),
		zap.Float64("unit_price", obs.UnitPrice))
	return obs, nil
}

func (s *priceMemoryService) GetBestEstimate(ctx context.Context, canonicalItemID uuid.UUID, _ string) (*models.PriceEstimate, error) {
	if _, err := s.priceRepo.GetCanonicalItem(ctx, canonicalItemID); err != nil {
		return nil, err
	}

	obs, err := s.priceRepo.ListRecentObservations(ctx, canonicalItemID, pricing.SampleLimit)
	if err != nil {
		return nil, err
	}
	return pricing.Summarize(obs), nil
}
