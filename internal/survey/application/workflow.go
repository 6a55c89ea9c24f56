package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/wellnest/survey-api/internal/metrics"
	"github.com/wellnest/survey-api/internal/survey/domain"
)

// SubmissionOutcome is what a survey write did to its moderation cycle.
type SubmissionOutcome string

const (
	OutcomeBypassed     SubmissionOutcome = "bypassed"
	OutcomeSkippedDraft SubmissionOutcome = "skipped_draft"
	OutcomeOpened       SubmissionOutcome = "opened"
	OutcomeAmended      SubmissionOutcome = "amended"
)

// ApprovalWorkflow drives moderation cycles for surveys.
type ApprovalWorkflow struct {
	surveys   SurveyRepository
	approvals ApprovalRepository
	notifier  Notifier
	logger    *log.Logger
	brandName string
	now       func() time.Time
}

func NewApprovalWorkflow(surveys SurveyRepository, approvals ApprovalRepository, notifier Notifier, logger *log.Logger, brandName string) *ApprovalWorkflow {
	if logger == nil {
		logger = log.Default()
	}
	return &ApprovalWorkflow{
		surveys:   surveys,
		approvals: approvals,
		notifier:  notifier,
		logger:    logger,
		brandName: brandName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Stamp fills the moderation fields of a survey write. Privileged actors get
// the approver recorded immediately; everyone else sends the survey back to
// INACTIVE until a moderator decides.
func (w *ApprovalWorkflow) Stamp(actor domain.Actor, patch *SurveyPatch) {
	if actor.Privileged() {
		now := w.now()
		approver := actor.ID
		status := domain.StatusActive
		patch.ApprovedBy = &approver
		patch.ApprovedOn = &now
		patch.Status = &status
		return
	}
	status := domain.StatusInactive
	patch.Status = &status
}

// OnSubmit opens or amends the moderation cycle after the survey and its
// questions have been written.
func (w *ApprovalWorkflow) OnSubmit(ctx context.Context, actor domain.Actor, survey *domain.Survey, created bool) (SubmissionOutcome, error) {
	outcome, err := w.submit(ctx, actor, survey, created)
	if err != nil {
		return "", err
	}
	metrics.IncSubmission(string(outcome))
	return outcome, nil
}

func (w *ApprovalWorkflow) submit(ctx context.Context, actor domain.Actor, survey *domain.Survey, created bool) (SubmissionOutcome, error) {
	if actor.Privileged() {
		return OutcomeBypassed, nil
	}
	if survey.SurveyType == domain.SurveyTypeDraft {
		return OutcomeSkippedDraft, nil
	}
	if created {
		return OutcomeOpened, w.openCycle(ctx, actor, survey)
	}

	current, err := w.approvals.Latest(ctx, survey.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("load current approval: %w", err)
	}
	if current == nil {
		return OutcomeOpened, w.openCycle(ctx, actor, survey)
	}

	transition, err := current.ContentStatus.Apply(domain.EventResubmit)
	if err != nil {
		return "", err
	}
	if transition.NewCycle {
		return OutcomeOpened, w.openCycle(ctx, actor, survey)
	}

	err = w.approvals.Amend(ctx, current.ID, ApprovalAmendment{
		DisplayName: survey.Title,
		UpdatedBy:   actor.ID,
		UpdatedOn:   w.now(),
	})
	if errors.Is(err, domain.ErrApprovalFrozen) {
		// approved between the read and the amend
		return OutcomeOpened, w.openCycle(ctx, actor, survey)
	}
	if err != nil {
		return "", fmt.Errorf("amend approval %s: %w", current.ID, err)
	}
	return OutcomeAmended, nil
}

func (w *ApprovalWorkflow) openCycle(ctx context.Context, actor domain.Actor, survey *domain.Survey) error {
	now := w.now()
	approval := &domain.ContentApproval{
		ContentTypeID: survey.ID,
		ContentType:   domain.ContentTypeSurvey,
		CompanyID:     survey.CompanyID,
		DisplayName:   survey.Title,
		ContentStatus: domain.ContentDraft,
		CreatedBy:     actor.ID,
		UpdatedBy:     actor.ID,
		UpdatedOn:     now,
		Comments:      []domain.ApprovalComment{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := w.approvals.Insert(ctx, approval); err != nil {
		return fmt.Errorf("open approval: %w", err)
	}
	w.notifier.ApprovalRequested(ctx, ApprovalRequestNotice{
		ActorName:    actor.Name,
		ActorID:      actor.ID,
		SurveyID:     survey.ID,
		SurveyTitle:  survey.Title,
		ContentLabel: domain.ContentTypeSurvey,
		CompanyID:    survey.CompanyID,
	})
	return nil
}

// DecisionResult is the state after a moderator decision.
type DecisionResult struct {
	Survey   *domain.Survey
	Approval *domain.ContentApproval
}

// Decide records a moderator decision on the survey's current cycle and
// mirrors it onto the survey. The approval is written first; a failure of the
// survey write after that is reported as ErrPartialWrite.
func (w *ApprovalWorkflow) Decide(ctx context.Context, actor domain.Actor, surveyID string, decision domain.ContentStatus, comment *string) (*DecisionResult, error) {
	if !actor.Privileged() {
		return nil, domain.ErrForbidden
	}
	event, err := domain.EventForDecision(decision)
	if err != nil {
		return nil, err
	}

	survey, err := w.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(*survey) {
		return nil, domain.ErrSurveyNotFound
	}
	if !actor.CanModerate(*survey) {
		return nil, domain.ErrForbidden
	}

	current, err := w.approvals.Latest(ctx, survey.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrApprovalNotFound
	}
	transition, err := current.ContentStatus.Apply(event)
	if err != nil {
		return nil, err
	}

	now := w.now()
	entry := domain.ApprovalComment{
		Comment:       normalizeComment(comment),
		CommentedBy:   actor.ID,
		CommentedOn:   now,
		ContentStatus: transition.To,
	}
	if err := w.approvals.AppendDecision(ctx, current.ID, entry); err != nil {
		return nil, fmt.Errorf("record decision: %w", err)
	}
	current.ContentStatus = transition.To
	current.Comments = append(current.Comments, entry)
	current.UpdatedBy = actor.ID
	current.UpdatedOn = now

	patch := SurveyPatch{}
	status := domain.StatusRejected
	if transition.To == domain.ContentApproved {
		approver := actor.ID
		status = domain.StatusActive
		patch.ApprovedBy = &approver
		patch.ApprovedOn = &now
	}
	patch.Status = &status
	updated, err := w.surveys.Patch(ctx, survey.ID, 0, patch)
	if err != nil {
		w.logger.Printf("approval %s is %s but survey %s was not updated: %v", current.ID, transition.To, survey.ID, err)
		return nil, fmt.Errorf("%w: survey status after decision: %v", domain.ErrPartialWrite, err)
	}
	metrics.IncDecision(string(transition.To))

	w.notifier.ApprovalDecision(ctx, DecisionNotice{
		ActorName:    actor.Name,
		ActorID:      actor.ID,
		SurveyID:     updated.ID,
		SurveyTitle:  updated.Title,
		ContentLabel: domain.ContentTypeSurvey,
		Decision:     transition.To,
		HasComment:   entry.Comment != nil,
		Comment:      valueOr(entry.Comment, ""),
		RecipientID:  updated.CreatedBy,
	})
	if transition.To == domain.ContentApproved && updated.IsLive() {
		w.notifier.Audience(ctx, AudienceNotice{
			BrandName:   w.brandName,
			ActorID:     actor.ID,
			SurveyID:    updated.ID,
			SurveyTitle: updated.Title,
			Target:      updated.AudienceTarget(),
		})
	}
	return &DecisionResult{Survey: updated, Approval: current}, nil
}

func normalizeComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
