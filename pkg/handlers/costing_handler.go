package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/models"
	"github.com/magnetic-studio/studio-console/pkg/services"
)

// ScopeMiddleware wraps a handler with a request-scoped database connection.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// ActualsRequest for PUT .../materials/{lid}/actuals and .../work/{lid}/actuals.
// Omitted fields leave the stored actual untouched.
type ActualsRequest struct {
	Quantity *float64 `json:"actual_quantity"`
	UnitCost *float64 `json:"actual_unit_cost"`
}

// DefaultsRequest for PUT /api/projects/{pid}/costing/defaults. A null body
// clears the project's defaults so studio-wide values apply.
type DefaultsRequest struct {
	Defaults *models.ProjectDefaults `json:"defaults"`
}

// CostingHandler serves section statistics and actuals capture.
type CostingHandler struct {
	costingService services.CostingService
	logger         *zap.Logger
}

// NewCostingHandler creates a new costing handler.
func NewCostingHandler(costingService services.CostingService, logger *zap.Logger) *CostingHandler {
	return &CostingHandler{
		costingService: costingService,
		logger:         logger.Named("costing-handler"),
	}
}

// RegisterRoutes registers the costing handler's routes on the given mux.
func (h *CostingHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	base := "/api/projects/{pid}"

	mux.HandleFunc("GET "+base+"/costing", scope(h.Summary))
	mux.HandleFunc("PUT "+base+"/costing/defaults", scope(h.UpdateDefaults))
	mux.HandleFunc("GET "+base+"/sections/{sid}/stats", scope(h.SectionStats))
	mux.HandleFunc("PUT "+base+"/materials/{lid}/actuals", scope(h.RecordMaterialActual))
	mux.HandleFunc("PUT "+base+"/work/{lid}/actuals", scope(h.RecordWorkActual))
}

func costOptions(r *http.Request) models.CostOptions {
	return models.CostOptions{
		IncludeManagement: queryBool(r, "include_management"),
		IncludeOptional:   queryBool(r, "include_optional"),
		RespectVisibility: queryBool(r, "respect_visibility"),
	}
}

// Summary handles GET /api/projects/{pid}/costing
func (h *CostingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.costingService.Summary(r.Context(), projectID, costOptions(r))
	if err != nil {
		writeServiceError(w, err, "costing_summary_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, summary, h.logger)
}

// SectionStats handles GET /api/projects/{pid}/sections/{sid}/stats
func (h *CostingHandler) SectionStats(w http.ResponseWriter, r *http.Request) {
	projectID, sectionID, ok := ParseProjectAndSectionIDs(w, r, h.logger)
	if !ok {
		return
	}

	stats, err := h.costingService.SectionStats(r.Context(), projectID, sectionID, costOptions(r))
	if err != nil {
		writeServiceError(w, err, "section_stats_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, stats, h.logger)
}

// UpdateDefaults handles PUT /api/projects/{pid}/costing/defaults
func (h *CostingHandler) UpdateDefaults(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req DefaultsRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	if err := h.costingService.UpdateDefaults(r.Context(), projectID, req.Defaults); err != nil {
		writeServiceError(w, err, "update_defaults_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, req, h.logger)
}

// RecordMaterialActual handles PUT /api/projects/{pid}/materials/{lid}/actuals
func (h *CostingHandler) RecordMaterialActual(w http.ResponseWriter, r *http.Request) {
	h.recordActual(w, r, h.costingService.RecordMaterialActual)
}

// RecordWorkActual handles PUT /api/projects/{pid}/work/{lid}/actuals
func (h *CostingHandler) RecordWorkActual(w http.ResponseWriter, r *http.Request) {
	h.recordActual(w, r, h.costingService.RecordWorkActual)
}

type recordFunc func(ctx context.Context, projectID, lineID uuid.UUID, update services.ActualsUpdate) error

func (h *CostingHandler) recordActual(w http.ResponseWriter, r *http.Request, record recordFunc) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	lineID, ok := ParseLineID(w, r, h.logger)
	if !ok {
		return
	}

	var req ActualsRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if req.Quantity == nil && req.UnitCost == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "actual_quantity or actual_unit_cost is required", h.logger)
		return
	}

	update := services.ActualsUpdate{Quantity: req.Quantity, UnitCost: req.UnitCost}
	if err := record(r.Context(), projectID, lineID, update); err != nil {
		writeServiceError(w, err, "record_actual_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{"line_id": lineID.String()}, h.logger)
}
