package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
	"github.com/magnetic-studio/studio-console/pkg/models"
)

func factRoutes(ledger *mockFactLedger) func(*http.ServeMux) {
	return func(mux *http.ServeMux) {
		NewFactHandler(ledger, zap.NewNop()).RegisterRoutes(mux, noopScope)
	}
}

func TestFactHandler_Propose(t *testing.T) {
	pid := uuid.New()
	ledger := &mockFactLedger{fact: &models.Fact{ID: uuid.New(), Key: "spec.width_mm", Status: models.FactProposed}}

	rec := serve(factRoutes(ledger), http.MethodPost, "/api/projects/"+pid.String()+"/facts",
		`{"scope_type": "project", "key": "spec.width_mm", "value": 1200, "source": "agent"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got models.Fact
	decodeData(t, rec, &got)
	assert.Equal(t, models.FactProposed, got.Status)
	assert.Equal(t, "spec.width_mm", ledger.gotProposal.Key)
	assert.JSONEq(t, `1200`, string(ledger.gotProposal.Value))
	assert.Equal(t, models.SourceAgent, ledger.gotSource)
}

func TestFactHandler_ProposeDefaultsToManualSource(t *testing.T) {
	ledger := &mockFactLedger{fact: &models.Fact{}}
	rec := serve(factRoutes(ledger), http.MethodPost, "/api/projects/"+uuid.NewString()+"/facts",
		`{"scope_type": "project", "key": "client.name", "value": "Acme"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.SourceManual, ledger.gotSource)

	rec = serve(factRoutes(ledger), http.MethodPost, "/api/projects/"+uuid.NewString()+"/facts",
		`{"scope_type": "project", "key": "client.name", "value": "Acme", "source": "telepathy"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFactHandler_ErrorMapping(t *testing.T) {
	pid, fid := uuid.New(), uuid.New()

	tests := []struct {
		name       string
		err        error
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"accept missing fact", apperrors.ErrNotFound, http.MethodPost, "/facts/" + fid.String() + "/accept", "", http.StatusNotFound, "not_found"},
		{"reject unexpected failure", errBoom, http.MethodPost, "/facts/" + fid.String() + "/reject", "", http.StatusInternalServerError, "reject_fact_failed"},
		{"resolve outside conflict set", fmt.Errorf("resolve: %w", apperrors.ErrNotInConflictSet), http.MethodPost, "/facts/resolve",
			`{"scope_type": "project", "key": "a.b", "chosen_fact_id": "` + fid.String() + `"}`, http.StatusConflict, "not_in_conflict_set"},
		{"propose invalid key", apperrors.NewValidationError("fact", []string{"key must not be empty"}), http.MethodPost, "/facts",
			`{"scope_type": "project", "key": "", "value": 1}`, http.StatusUnprocessableEntity, "validation_failed"},
		{"propose for unknown project", fmt.Errorf("studio_facts_project_id_fkey: %w", apperrors.ErrNotFound), http.MethodPost, "/facts",
			`{"scope_type": "project", "key": "client.name", "value": "Acme"}`, http.StatusNotFound, "not_found"},
		{"list bad view", apperrors.NewValidationError("view", []string{"unknown view"}), http.MethodGet, "/facts?view=weird", "", http.StatusUnprocessableEntity, "validation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.body != "" {
				body = tt.body
			}
			rec := serve(factRoutes(&mockFactLedger{err: tt.err}), tt.method, "/api/projects/"+pid.String()+tt.path, body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode, resp["error"])
		})
	}
}

func TestFactHandler_ResolveRequiresChoice(t *testing.T) {
	rec := serve(factRoutes(&mockFactLedger{}), http.MethodPost, "/api/projects/"+uuid.NewString()+"/facts/resolve",
		`{"scope_type": "project", "key": "a.b"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFactHandler_ListAndProjection(t *testing.T) {
	pid, iid := uuid.New(), uuid.New()
	ledger := &mockFactLedger{
		facts: []*models.Fact{{ID: uuid.New(), Status: models.FactConflict}},
		projection: models.ItemProjection{
			"spec": {"finish": {Value: json.RawMessage(`"oiled"`), Source: models.SourceManual}},
		},
	}

	rec := serve(factRoutes(ledger), http.MethodGet, "/api/projects/"+pid.String()+"/facts?view=conflict", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list FactListResponse
	decodeData(t, rec, &list)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, models.FactViewConflict, ledger.gotView)

	rec = serve(factRoutes(ledger), http.MethodGet, "/api/projects/"+pid.String()+"/items/"+iid.String()+"/projection", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var projection models.ItemProjection
	decodeData(t, rec, &projection)
	assert.JSONEq(t, `"oiled"`, string(projection["spec"]["finish"].Value))
}
