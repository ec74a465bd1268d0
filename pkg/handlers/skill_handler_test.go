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
	"github.com/magnetic-studio/studio-console/pkg/services"
	"github.com/magnetic-studio/studio-console/pkg/skills"
)

func skillRoutes(svc *mockSkillService) func(*http.ServeMux) {
	return func(mux *http.ServeMux) {
		NewSkillHandler(svc, zap.NewNop()).RegisterRoutes(mux, noopScope)
	}
}

func TestSkillHandler_Run(t *testing.T) {
	svc := &mockSkillService{result: &services.SkillResult{
		Skill: "summarize_item", Model: "gpt-4o-mini", Output: json.RawMessage(`{"summary": "Oak desk"}`),
	}}

	rec := serve(skillRoutes(svc), http.MethodPost, "/api/projects/"+uuid.NewString()+"/skills/summarize_item/run",
		`{"input": {"title": "Desk"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var got services.SkillResult
	decodeData(t, rec, &got)
	assert.JSONEq(t, `{"summary": "Oak desk"}`, string(got.Output))
	assert.Equal(t, "summarize_item", svc.gotName)
	assert.JSONEq(t, `{"title": "Desk"}`, string(svc.gotInput))
}

func TestSkillHandler_RunErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantRetryAt string
	}{
		{"rate limited", &apperrors.RateLimitError{Key: "skill:x", RetryAfterSeconds: 12}, http.StatusTooManyRequests, "12"},
		{"unknown skill", apperrors.ErrNotFound, http.StatusNotFound, ""},
		{"llm not configured", fmt.Errorf("llm is not configured: %w", apperrors.ErrUnavailable), http.StatusServiceUnavailable, ""},
		{"bad output", apperrors.NewValidationError("output", []string{`missing required field "summary"`}), http.StatusUnprocessableEntity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(skillRoutes(&mockSkillService{err: tt.err}), http.MethodPost,
				"/api/projects/"+uuid.NewString()+"/skills/summarize_item/run", `{}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRetryAt, rec.Header().Get("Retry-After"))
		})
	}
}

func TestSkillHandler_List(t *testing.T) {
	svc := &mockSkillService{skills: []*skills.Skill{{Name: "summarize_item", Description: "One-line item summary"}}}
	rec := serve(skillRoutes(svc), http.MethodGet, "/api/skills", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []SkillSummary
	decodeData(t, rec, &got)
	assert.Equal(t, []SkillSummary{{Name: "summarize_item", Description: "One-line item summary"}}, got)
}
