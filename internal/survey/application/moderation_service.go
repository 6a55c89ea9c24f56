package application

import (
	"context"
	"strings"

	"github.com/wellnest/survey-api/internal/survey/domain"
)

// ModerationService describes approve/reject use-cases.
type ModerationService interface {
	Decide(ctx context.Context, actor domain.Actor, cmd DecisionCommand) (*DecisionResult, error)
}

type moderationService struct {
	workflow *ApprovalWorkflow
	cache    DetailCache
}

func NewModerationService(workflow *ApprovalWorkflow, cache DetailCache) ModerationService {
	if cache == nil {
		cache = NopCache{}
	}
	return &moderationService{workflow: workflow, cache: cache}
}

func (s *moderationService) Decide(ctx context.Context, actor domain.Actor, cmd DecisionCommand) (*DecisionResult, error) {
	surveyID := strings.TrimSpace(cmd.SurveyID)
	if surveyID == "" {
		return nil, domain.Invalid("surveyId", "survey id is required")
	}
	decision, err := domain.ParseContentStatus(cmd.Decision)
	if err != nil {
		return nil, err
	}
	result, err := s.workflow.Decide(ctx, actor, surveyID, decision, cmd.Comment)
	s.cache.Invalidate(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	return result, nil
}
