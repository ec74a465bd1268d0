package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/services"
)

// SkillSummary describes a registered skill.
type SkillSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RunSkillRequest for POST /api/projects/{pid}/skills/{name}/run
type RunSkillRequest struct {
	Input json.RawMessage `json:"input"`
}

// SkillHandler runs registered skills against the configured model.
type SkillHandler struct {
	skillService services.SkillService
	logger       *zap.Logger
}

// NewSkillHandler creates a new skill handler.
func NewSkillHandler(skillService services.SkillService, logger *zap.Logger) *SkillHandler {
	return &SkillHandler{
		skillService: skillService,
		logger:       logger.Named("skill-handler"),
	}
}

// RegisterRoutes registers the skill handler's routes on the given mux.
func (h *SkillHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/skills", h.List)
	mux.HandleFunc("POST /api/projects/{pid}/skills/{name}/run", scope(h.Run))
}

// List handles GET /api/skills
func (h *SkillHandler) List(w http.ResponseWriter, r *http.Request) {
	registered := h.skillService.List()
	out := make([]SkillSummary, 0, len(registered))
	for _, s := range registered {
		out = append(out, SkillSummary{Name: s.Name, Description: s.Description})
	}
	writeSuccess(w, http.StatusOK, out, h.logger)
}

// Run handles POST /api/projects/{pid}/skills/{name}/run
func (h *SkillHandler) Run(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	name := r.PathValue("name")

	var req RunSkillRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if len(req.Input) == 0 {
		req.Input = json.RawMessage(`{}`)
	}

	result, err := h.skillService.Run(r.Context(), projectID, name, req.Input)
	if err != nil {
		writeServiceError(w, err, "skill_run_failed", h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, result, h.logger)
}
