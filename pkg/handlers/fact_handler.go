package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// ProposeFactRequest for POST /api/projects/{pid}/facts
type ProposeFactRequest struct {
	ScopeType models.ScopeType `json:"scope_type"`
	ItemID    *uuid.UUID       `json:"item_id,omitempty"`
	Key       string           `json:"key"`
	Value     json.RawMessage  `json:"value"`
	Evidence  *models.Evidence `json:"evidence,omitempty"`
	// Source overrides the provenance recorded on the fact. Defaults to manual.
	Source models.ProvenanceSource `json:"source,omitempty"`
}

// ResolveConflictRequest for POST /api/projects/{pid}/facts/resolve
type ResolveConflictRequest struct {
	ScopeType    models.ScopeType `json:"scope_type"`
	ItemID       *uuid.UUID       `json:"item_id,omitempty"`
	Key          string           `json:"key"`
	ChosenFactID uuid.UUID        `json:"chosen_fact_id"`
}

// FactListResponse for GET /api/projects/{pid}/facts
type FactListResponse struct {
	Facts []*models.Fact `json:"facts"`
	Total int            `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// FactHandler handles fact ledger HTTP requests.
type FactHandler struct {
	ledger services.FactLedgerService
	logger *zap.Logger
}

// NewFactHandler creates a new fact handler.
func NewFactHandler(ledger services.FactLedgerService, logger *zap.Logger) *FactHandler {
	return &FactHandler{
		ledger: ledger,
		logger: logger.Named("fact-handler"),
	}
}

// RegisterRoutes registers the fact handler's routes on the given mux.
func (h *FactHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	base := "/api/projects/{pid}/facts"

	mux.HandleFunc("GET "+base, scope(h.List))
	mux.HandleFunc("POST "+base, scope(h.Propose))
	mux.HandleFunc("POST "+base+"/resolve", scope(h.Resolve))
	mux.HandleFunc("POST "+base+"/{fid}/accept", scope(h.Accept))
	mux.HandleFunc("POST "+base+"/{fid}/reject", scope(h.Reject))
	mux.HandleFunc("GET /api/projects/{pid}/items/{iid}/projection", scope(h.Projection))
}

// List handles GET /api/projects/{pid}/facts?view=all|needs_review|conflict
func (h *FactHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	facts, err := h.ledger.List(r.Context(), projectID, models.FactView(r.URL.Query().Get("view")))
	if err != nil {
		writeServiceError(w, err, "list_facts_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, FactListResponse{Facts: facts, Total: len(facts)}, h.logger)
}

// Propose handles POST /api/projects/{pid}/facts
func (h *FactHandler) Propose(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req ProposeFactRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	source := models.SourceManual
	if req.Source != "" {
		if !req.Source.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid_source", "Unknown provenance source", h.logger)
			return
		}
		source = req.Source
	}
	ctx := models.WithProvenance(r.Context(), models.ProvenanceContext{Source: source})

	fact, err := h.ledger.Propose(ctx, projectID, services.ProposeFactRequest{
		ScopeType: req.ScopeType,
		ItemID:    req.ItemID,
		Key:       req.Key,
		Value:     req.Value,
		Evidence:  req.Evidence,
	})
	if err != nil {
		writeServiceError(w, err, "propose_fact_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusCreated, fact, h.logger)
}

// Accept handles POST /api/projects/{pid}/facts/{fid}/accept
func (h *FactHandler) Accept(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	factID, ok := ParseFactID(w, r, h.logger)
	if !ok {
		return
	}

	fact, err := h.ledger.Accept(r.Context(), projectID, factID)
	if err != nil {
		writeServiceError(w, err, "accept_fact_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, fact, h.logger)
}

// Reject handles POST /api/projects/{pid}/facts/{fid}/reject
func (h *FactHandler) Reject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	factID, ok := ParseFactID(w, r, h.logger)
	if !ok {
		return
	}

	fact, err := h.ledger.Reject(r.Context(), projectID, factID)
	if err != nil {
		writeServiceError(w, err, "reject_fact_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, fact, h.logger)
}

// Resolve handles POST /api/projects/{pid}/facts/resolve
func (h *FactHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req ResolveConflictRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if req.ChosenFactID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "chosen_fact_id is required", h.logger)
		return
	}

	fact, err := h.ledger.ResolveConflict(r.Context(), projectID, services.ResolveConflictRequest{
		ScopeType:    req.ScopeType,
		ItemID:       req.ItemID,
		Key:          req.Key,
		ChosenFactID: req.ChosenFactID,
	})
	if err != nil {
		writeServiceError(w, err, "resolve_conflict_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, fact, h.logger)
}

// Projection handles GET /api/projects/{pid}/items/{iid}/projection
func (h *FactHandler) Projection(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	itemID, ok := ParseItemID(w, r, h.logger)
	if !ok {
		return
	}

	projection, err := h.ledger.ItemProjection(r.Context(), projectID, itemID)
	if err != nil {
		writeServiceError(w, err, "item_projection_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, projection, h.logger)
}
