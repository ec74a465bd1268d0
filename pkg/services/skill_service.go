package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
	"github.com/magnetic-studio/studio-console/pkg/jsonschema"
	"github.com/magnetic-studio/studio-console/pkg/llm"
	"github.com/magnetic-studio/studio-console/pkg/ratelimit"
	"github.com/magnetic-studio/studio-console/pkg/retry"
	"github.com/magnetic-studio/studio-console/pkg/skills"
)

// SkillRunLimit bounds how often one skill may run per project.
type SkillRunLimit struct {
	Runs   int
	Window time.Duration
}

// SkillResult is the validated output of a skill run.
type SkillResult struct {
	Skill  string          `json:"skill"`
	Model  string          `json:"model"`
	Output json.RawMessage `json:"output"`
}

// SkillService runs registry skills against the configured model.
type SkillService interface {
	// Run rate-limits, validates input, calls the model and validates its
	// answer. Schema failures surface as *apperrors.ValidationError.
	Run(ctx context.Context, projectID uuid.UUID, name string, input json.RawMessage) (*SkillResult, error)

	List() []*skills.Skill
}

type skillService struct {
	registry *skills.Registry
	caller   llm.SchemaCaller
	limiter  *ratelimit.Limiter
	limit    SkillRunLimit
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewSkillService creates a new skill service. caller may be nil, in which
// case every run fails with apperrors.ErrUnavailable.
func NewSkillService(
	registry *skills.Registry,
	caller llm.SchemaCaller,
	limiter *ratelimit.Limiter,
	limit SkillRunLimit,
	retryCfg *retry.Config,
	logger *zap.Logger,
) SkillService {
	return &skillService{
		registry: registry,
		caller:   caller,
		limiter:  limiter,
		limit:    limit,
		retryCfg: retryCfg,
		logger:   logger.Named("skills"),
	}
}

var _ SkillService = (*skillService)(nil)

// invalidOutputError marks a model answer that failed the output schema.
// It is retryable so the model gets another attempt.
type invalidOutputError struct {
	messages []string
}

func (e *invalidOutputError) Error() string {
	return "model output failed schema validation: " + jsonschema.Join(e.messages)
}

func (e *invalidOutputError) IsRetryable() bool { return true }

func (s *skillService) List() []*skills.Skill {
	return s.registry.List()
}

func (s *skillService) Run(ctx context.Context, projectID uuid.UUID, name string, input json.RawMessage) (*SkillResult, error) {
	skill, ok := s.registry.Get(name)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if s.caller == nil {
		return nil, fmt.Errorf("llm is not configured: %w", apperrors.ErrUnavailable)
	}

	key := fmt.Sprintf("skill:%s:%s", projectID, name)
	if err := s.limiter.Check(ctx, key, s.limit.Runs, s.limit.Window); err != nil {
		if _, limited := apperrors.AsRateLimit(err); limited {
			s.logger.Warn("Skill run rate limited",
				zap.String("project_id", projectID.String()),
				zap.String("skill", name))
		}
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(input, &decoded); err != nil {
		return nil, apperrors.NewValidationError("input", []string{"input must be valid JSON"})
	}
	if err := apperrors.NewValidationError("input", jsonschema.Validate(skill.InputSchema, decoded)); err != nil {
		return nil, err
	}

	prompt, err := skill.Render(decoded)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) (json.RawMessage, error) {
		out, err := s.caller.CallWithSchema(ctx, skill.OutputSchema, prompt)
		if err != nil {
			return nil, err
		}
		if msgs := jsonschema.ValidateJSON(skill.OutputSchema, out); len(msgs) > 0 {
			return nil, &invalidOutputError{messages: msgs}
		}
		return out, nil
	})
	if err != nil {
		var invalid *invalidOutputError
		if errors.As(err, &invalid) {
			s.logger.Warn("Skill output failed validation",
				zap.String("project_id", projectID.String()),
				zap.String("skill", name),
				zap.Strings("errors", invalid.messages))
			return nil, apperrors.NewValidationError("output", invalid.messages)
		}
		s.logger.Error("Skill run failed",
			zap.String("project_id", projectID.String()),
			zap.String("skill", name),
			zap.Error(err))
		return nil, fmt.Errorf("skill %s: %w", name, err)
	}

	model := prompt.Model
	if model == "" {
		model = s.caller.Model()
	}

	s.logger.Info("Skill run completed",
		zap.String("project_id", projectID.String()),
		zap.String("skill", name),
		zap.String("model", model),
		zap.Duration("elapsed", time.Since(start)))

	return &SkillResult{Skill: name, Model: model, Output: out}, nil
}
