package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellnest/survey-api/internal/survey/domain"
)

func createByCoach(t *testing.T, h *harness, questions ...string) *SurveyResult {
	t.Helper()
	inputs := make([]QuestionInput, 0, len(questions))
	for _, title := range questions {
		inputs = append(inputs, QuestionInput{Title: title, Options: []string{"yes", "no"}})
	}
	result, err := h.authoring.Create(context.Background(), coach, SurveyCommand{
		Title:      ptr("Weekly check-in"),
		SurveyType: ptr("SURVEY"),
		Questions:  &inputs,
	})
	require.NoError(t, err)
	return result
}

// Scenario: a non-privileged create opens one DRAFT cycle.
func TestCreateByCoachOpensApproval(t *testing.T) {
	h := newHarness()
	result := createByCoach(t, h, "A", "B")

	assert.Equal(t, OutcomeOpened, result.Outcome)
	assert.Equal(t, domain.StatusInactive, result.Survey.Status)
	assert.Nil(t, result.Survey.ApprovedBy)
	assert.Len(t, result.Survey.QuestionIDs, 2)

	approvals := h.approvals.all(result.Survey.ID)
	require.Len(t, approvals, 1)
	assert.Equal(t, domain.ContentDraft, approvals[0].ContentStatus)
	assert.Equal(t, domain.ContentTypeSurvey, approvals[0].ContentType)
	assert.Equal(t, "Weekly check-in", approvals[0].DisplayName)
	assert.Equal(t, &acme, approvals[0].CompanyID)

	require.Len(t, h.notifier.requested, 1)
	assert.Equal(t, result.Survey.ID, h.notifier.requested[0].SurveyID)
	assert.Equal(t, coach.Name, h.notifier.requested[0].ActorName)
}

// Scenario: replacing A with C keeps B in place.
func TestEditReplacesQuestions(t *testing.T) {
	h := newHarness()
	created := createByCoach(t, h, "A", "B")
	a, b := created.Questions[0], created.Questions[1]

	result, err := h.authoring.Update(context.Background(), coach, created.Survey.ID, SurveyCommand{
		Questions: questionList(
			QuestionInput{QuestionID: b.ID, Title: "B edited", Options: []string{"1", "2"}},
			QuestionInput{Title: "C"},
		),
	})
	require.NoError(t, err)

	require.Len(t, result.Questions, 2)
	assert.Equal(t, b.ID, result.Questions[0].ID)
	assert.Equal(t, "B edited", result.Questions[0].Title)
	assert.Equal(t, "C", result.Questions[1].Title)
	assert.Equal(t, domain.QuestionIDs(result.Questions), result.Survey.QuestionIDs)
	assert.NotNil(t, h.questions.raw(a.ID).DeletedAt)
}

// Scenario: approve without a comment; then the next edit opens a second cycle.
func TestApproveThenEditOpensNewCycle(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	created := createByCoach(t, h, "A")
	surveyID := created.Survey.ID

	decided, err := h.moderation.Decide(ctx, admin, DecisionCommand{SurveyID: surveyID, Decision: "APPROVED"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, decided.Survey.Status)
	require.NotNil(t, decided.Survey.ApprovedBy)
	assert.Equal(t, admin.ID, *decided.Survey.ApprovedBy)
	assert.NotNil(t, decided.Survey.ApprovedOn)
	last := decided.Approval.LastComment()
	require.NotNil(t, last)
	assert.Nil(t, last.Comment)
	assert.Equal(t, domain.ContentApproved, last.ContentStatus)

	frozen := h.approvals.all(surveyID)[0]

	result, err := h.authoring.Update(ctx, coach, surveyID, SurveyCommand{Title: ptr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOpened, result.Outcome)

	approvals := h.approvals.all(surveyID)
	require.Len(t, approvals, 2)
	assert.Equal(t, frozen, approvals[0])
	assert.Equal(t, domain.ContentDraft, approvals[1].ContentStatus)
	assert.Equal(t, "Renamed", approvals[1].DisplayName)
	assert.Len(t, h.notifier.requested, 2)
	assert.Equal(t, domain.ApprovalCodePending, domain.ApprovalStatusCode(*result.Survey, &approvals[1]))
}

// Scenario: a rejected cycle is amended in place without a second notification.
func TestRejectThenEditAmendsSameCycle(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	created := createByCoach(t, h, "A")
	surveyID := created.Survey.ID

	decided, err := h.moderation.Decide(ctx, admin, DecisionCommand{SurveyID: surveyID, Decision: "rejected", Comment: ptr("  needs a clearer title ")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, decided.Survey.Status)
	assert.Nil(t, decided.Survey.ApprovedBy)
	require.NotNil(t, decided.Approval.LastComment().Comment)
	assert.Equal(t, "needs a clearer title", *decided.Approval.LastComment().Comment)

	result, err := h.authoring.Update(ctx, coach, surveyID, SurveyCommand{Title: ptr("Clearer title")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAmended, result.Outcome)
	assert.Equal(t, domain.StatusInactive, result.Survey.Status)

	approvals := h.approvals.all(surveyID)
	require.Len(t, approvals, 1)
	assert.Equal(t, domain.ContentDraft, approvals[0].ContentStatus)
	assert.Equal(t, "Clearer title", approvals[0].DisplayName)
	assert.Len(t, approvals[0].Comments, 1)
	assert.Len(t, h.notifier.requested, 1)
}

func TestEditWhilePendingDoesNotRenotify(t *testing.T) {
	h := newHarness()
	created := createByCoach(t, h, "A")

	_, err := h.authoring.Update(context.Background(), coach, created.Survey.ID, SurveyCommand{Duration: ptr(10)})
	require.NoError(t, err)
	_, err = h.authoring.Update(context.Background(), coach, created.Survey.ID, SurveyCommand{Duration: ptr(12)})
	require.NoError(t, err)

	assert.Len(t, h.approvals.all(created.Survey.ID), 1)
	assert.Len(t, h.notifier.requested, 1)
}

func TestPrivilegedCreateBypassesModeration(t *testing.T) {
	for _, actor := range []domain.Actor{admin, root} {
		for _, surveyType := range []string{"SURVEY", "TEMPLATE", "DRAFT"} {
			t.Run(string(actor.Role)+"/"+surveyType, func(t *testing.T) {
				h := newHarness()
				result, err := h.authoring.Create(context.Background(), actor, SurveyCommand{
					Title:      ptr("Org pulse"),
					SurveyType: ptr(surveyType),
					Questions:  questionList(QuestionInput{Title: "How are you?"}),
				})
				require.NoError(t, err)

				assert.Equal(t, OutcomeBypassed, result.Outcome)
				require.NotNil(t, result.Survey.ApprovedBy)
				assert.Equal(t, actor.ID, *result.Survey.ApprovedBy)
				assert.NotNil(t, result.Survey.ApprovedOn)
				assert.Equal(t, domain.StatusActive, result.Survey.Status)
				assert.Empty(t, h.approvals.all(result.Survey.ID))
				assert.Empty(t, h.notifier.requested)
			})
		}
	}
}

func TestDraftSurveysSkipModeration(t *testing.T) {
	h := newHarness()
	result, err := h.authoring.Create(context.Background(), coach, SurveyCommand{Title: ptr("Work in progress")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedDraft, result.Outcome)
	assert.Equal(t, domain.SurveyTypeDraft, result.Survey.SurveyType)
	assert.Empty(t, h.approvals.all(result.Survey.ID))
	assert.Empty(t, h.notifier.requested)
}

func TestDecisionNotifications(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	created := createByCoach(t, h, "A")

	_, err := h.moderation.Decide(ctx, admin, DecisionCommand{SurveyID: created.Survey.ID, Decision: "APPROVED", Comment: ptr("great")})
	require.NoError(t, err)

	require.Len(t, h.notifier.decisions, 1)
	notice := h.notifier.decisions[0]
	assert.Equal(t, coach.ID, notice.RecipientID)
	assert.Equal(t, domain.ContentApproved, notice.Decision)
	assert.True(t, notice.HasComment)
	assert.Equal(t, "great", notice.Comment)

	require.Len(t, h.notifier.audience, 1)
	assert.Equal(t, acme, h.notifier.audience[0].Target)
	assert.Equal(t, "Wellnest", h.notifier.audience[0].BrandName)
}

func TestApprovingTemplateDoesNotNotifyAudience(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	result, err := h.authoring.Create(ctx, coach, SurveyCommand{Title: ptr("Reusable"), SurveyType: ptr("TEMPLATE")})
	require.NoError(t, err)

	_, err = h.moderation.Decide(ctx, admin, DecisionCommand{SurveyID: result.Survey.ID, Decision: "APPROVED"})
	require.NoError(t, err)
	assert.Len(t, h.notifier.decisions, 1)
	assert.Empty(t, h.notifier.audience)
}

func TestRejectLeavesApproverUntouched(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	created := createByCoach(t, h, "A")
	_, err := h.moderation.Decide(ctx, admin, DecisionCommand{SurveyID: created.Survey.ID, Decision: "APPROVED"})
	require.NoError(t, err)
	before := h.surveys.get(created.Survey.ID)

	_, err = h.authoring.Update(ctx, coach, created.Survey.ID, SurveyCommand{Title: ptr("Again")})
	require.NoError(t, err)
	decided, err := h.moderation.Decide(ctx, admin, DecisionCommand{SurveyID: created.Survey.ID, Decision: "REJECTED"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusRejected, decided.Survey.Status)
	assert.Equal(t, before.ApprovedBy, decided.Survey.ApprovedBy)
	assert.Equal(t, before.ApprovedOn, decided.Survey.ApprovedOn)
}

func TestDecisionErrors(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	created := createByCoach(t, h, "A")
	draft, err := h.authoring.Create(ctx, coach, SurveyCommand{Title: ptr("Draft")})
	require.NoError(t, err)

	_, err = h.moderation.Decide(ctx, coach, DecisionCommand{SurveyID: created.Survey.ID, Decision: "APPROVED"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.moderation.Decide(ctx, admin, DecisionCommand{SurveyID: created.Survey.ID, Decision: "DRAFT"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.moderation.Decide(ctx, admin, DecisionCommand{SurveyID: "missing", Decision: "APPROVED"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.moderation.Decide(ctx, admin, DecisionCommand{SurveyID: draft.Survey.ID, Decision: "APPROVED"})
	assert.ErrorIs(t, err, domain.ErrApprovalNotFound)

	_, err = h.moderation.Decide(ctx, admin, DecisionCommand{SurveyID: created.Survey.ID, Decision: "APPROVED"})
	require.NoError(t, err)
	_, err = h.moderation.Decide(ctx, admin, DecisionCommand{SurveyID: created.Survey.ID, Decision: "REJECTED"})
	assert.ErrorIs(t, err, domain.ErrApprovalFrozen)
	assert.Len(t, h.approvals.all(created.Survey.ID)[0].Comments, 1)
}

func TestDecisionOutsideCompanyIsNotFound(t *testing.T) {
	h := newHarness()
	created := createByCoach(t, h, "A")
	other := "other"
	outsider := domain.Actor{ID: "admin-2", Role: domain.RoleOrgAdmin, CompanyID: &other}

	_, err := h.moderation.Decide(context.Background(), outsider, DecisionCommand{SurveyID: created.Survey.ID, Decision: "APPROVED"})
	assert.ErrorIs(t, err, domain.ErrSurveyNotFound)
}

func TestSurveyWriteFailureAfterDecisionIsPartial(t *testing.T) {
	h := newHarness()
	created := createByCoach(t, h, "A")
	h.surveys.failOn = "patch"

	_, err := h.moderation.Decide(context.Background(), admin, DecisionCommand{SurveyID: created.Survey.ID, Decision: "APPROVED"})
	assert.ErrorIs(t, err, domain.ErrPartialWrite)
	assert.Equal(t, domain.ContentApproved, h.approvals.all(created.Survey.ID)[0].ContentStatus)
	assert.Empty(t, h.notifier.decisions)
}

func TestGlobalSurveyIsModeratedByRootOnly(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	freelancer := domain.Actor{ID: "coach-9", Name: "Mio", Role: domain.RoleCoach}
	created, err := h.authoring.Create(ctx, freelancer, SurveyCommand{
		Title:      ptr("Open to everyone"),
		SurveyType: ptr("SURVEY"),
		Questions:  questionList(QuestionInput{Title: "Sleep well?"}),
	})
	require.NoError(t, err)
	require.Nil(t, created.Survey.CompanyID)
	require.Equal(t, OutcomeOpened, created.Outcome)

	pending := h.approvals.all(created.Survey.ID)
	other := "other-co"
	for _, orgAdmin := range []domain.Actor{admin, {ID: "admin-2", Role: domain.RoleOrgAdmin, CompanyID: &other}} {
		_, err = h.moderation.Decide(ctx, orgAdmin, DecisionCommand{SurveyID: created.Survey.ID, Decision: "APPROVED"})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	}
	assert.Equal(t, domain.StatusInactive, h.surveys.get(created.Survey.ID).Status)
	assert.Empty(t, h.notifier.audience)
	assert.Equal(t, pending, h.approvals.all(created.Survey.ID))

	decided, err := h.moderation.Decide(ctx, root, DecisionCommand{SurveyID: created.Survey.ID, Decision: "APPROVED"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, decided.Survey.Status)
	assert.Len(t, h.notifier.audience, 1)
}
