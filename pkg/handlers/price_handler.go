package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/services"
)

// IngestPurchaseRequest for POST /api/purchases
type IngestPurchaseRequest struct {
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	ItemName    string     `json:"item_name"`
	Quantity    *float64   `json:"quantity,omitempty"`
	Amount      float64    `json:"amount"`
	Unit        string     `json:"unit,omitempty"`
	Currency    string     `json:"currency"`
	VendorID    *uuid.UUID `json:"vendor_id,omitempty"`
	PurchasedAt time.Time  `json:"purchased_at"`
}

// NormalizeRequest for POST /api/prices/normalize
type NormalizeRequest struct {
	Name string `json:"name"`
}

// NormalizeResponse carries the canonical item a raw name resolved to.
type NormalizeResponse struct {
	CanonicalItemID uuid.UUID `json:"canonical_item_id"`
}

// PriceHandler exposes purchase ingestion and price estimates.
type PriceHandler struct {
	priceMemory services.PriceMemoryService
	logger      *zap.Logger
}

// NewPriceHandler creates a new price handler.
func NewPriceHandler(priceMemory services.PriceMemoryService, logger *zap.Logger) *PriceHandler {
	return &PriceHandler{
		priceMemory: priceMemory,
		logger:      logger.Named("price-handler"),
	}
}

// RegisterRoutes registers the price handler's routes on the given mux.
func (h *PriceHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/purchases", scope(h.IngestPurchase))
	mux.HandleFunc("POST /api/prices/normalize", scope(h.Normalize))
	mux.HandleFunc("GET /api/prices/{cid}/estimate", scope(h.Estimate))
}

// IngestPurchase handles POST /api/purchases
func (h *PriceHandler) IngestPurchase(w http.ResponseWriter, r *http.Request) {
	var req IngestPurchaseRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	obs, err := h.priceMemory.IngestPurchase(r.Context(), &models.Purchase{
		ProjectID:   req.ProjectID,
		ItemName:    req.ItemName,
		Quantity:    req.Quantity,
		Amount:      req.Amount,
		Unit:        req.Unit,
		Currency:    req.Currency,
		VendorID:    req.VendorID,
		PurchasedAt: req.PurchasedAt,
	})
	if err != nil {
		writeServiceError(w, err, "ingest_purchase_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusCreated, obs, h.logger)
}

// Normalize handles POST /api/prices/normalize
func (h *PriceHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	id, err := h.priceMemory.NormalizeItemName(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, err, "normalize_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, NormalizeResponse{CanonicalItemID: id}, h.logger)
}

// Estimate handles GET /api/prices/{cid}/estimate?location=...
// A canonical item with no observations yields data: null.
func (h *PriceHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	canonicalID, ok := ParseCanonicalItemID(w, r, h.logger)
	if !ok {
		return
	}

	est, err := h.priceMemory.GetBestEstimate(r.Context(), canonicalID, r.URL.Query().Get("location"))
	if err != nil {
		writeServiceError(w, err, "price_estimate_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, est, h.logger)
}
