package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/currentstate"
	"github.com/magnetic-studio/studio-console/pkg/services"
)

// CurrentStateResponse for GET /api/projects/{pid}/current-state
type CurrentStateResponse struct {
	Scope    currentstate.Scope `json:"scope"`
	Markdown string             `json:"markdown"`
}

// CurrentStateHandler renders the derived current-state document.
type CurrentStateHandler struct {
	currentState services.CurrentStateService
	logger       *zap.Logger
}

// NewCurrentStateHandler creates a new current state handler.
func NewCurrentStateHandler(currentState services.CurrentStateService, logger *zap.Logger) *CurrentStateHandler {
	return &CurrentStateHandler{
		currentState: currentState,
		logger:       logger.Named("current-state-handler"),
	}
}

// RegisterRoutes registers the current state handler's routes on the given mux.
func (h *CurrentStateHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/projects/{pid}/current-state", scope(h.Get))
}

// Get handles GET /api/projects/{pid}/current-state?scope=...&item_id=...
// Responds with markdown when the client asks for text/markdown, JSON otherwise.
func (h *CurrentStateHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	scope, err := currentstate.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_scope", err.Error(), h.logger)
		return
	}
	itemIDs, ok := parseUUIDList(w, r.URL.Query()["item_id"], "item_id", h.logger)
	if !ok {
		return
	}

	doc, err := h.currentState.Build(r.Context(), projectID, scope, itemIDs)
	if err != nil {
		writeServiceError(w, err, "current_state_failed", h.logger)
		return
	}

	if r.Header.Get("Accept") == "text/markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc))
		return
	}

	writeSuccess(w, http.StatusOK, CurrentStateResponse{Scope: scope, Markdown: doc}, h.logger)
}
