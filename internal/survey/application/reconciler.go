package application

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wellnest/survey-api/internal/metrics"
	"github.com/wellnest/survey-api/internal/survey/domain"
)

// QuestionPlan is the write set that moves a survey's questions to the desired list.
type QuestionPlan struct {
	Ops     []QuestionOp
	Inserts int
	Updates int
	Deletes []string
}

// PlanQuestions diffs specs against the ids currently owned by the survey.
// Referenced ids are updated in place, blank ids are inserted and every
// owned id left unreferenced is deleted in a single op. An id the survey
// does not own is refused before anything is planned.
func PlanQuestions(surveyID string, existing []string, specs []domain.QuestionSpec, now time.Time) (QuestionPlan, error) {
	if err := domain.CheckQuestionSpecs(specs); err != nil {
		return QuestionPlan{}, err
	}
	owned := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		owned[id] = struct{}{}
	}

	plan := QuestionPlan{Ops: make([]QuestionOp, 0, len(specs)+1)}
	for i, spec := range specs {
		question := domain.Question{
			ID:        spec.ID,
			SurveyID:  surveyID,
			Title:     spec.Title,
			Options:   append([]string{}, spec.Options...),
			Skipable:  spec.Skipable,
			Position:  i,
			UpdatedAt: now,
		}
		if spec.ID == "" {
			question.CreatedAt = now
			plan.Ops = append(plan.Ops, QuestionOp{Kind: OpInsert, Question: question})
			plan.Inserts++
			continue
		}
		if _, ok := owned[spec.ID]; !ok {
			return QuestionPlan{}, fmt.Errorf("%w: %s", domain.ErrQuestionNotOwned, spec.ID)
		}
		delete(owned, spec.ID)
		plan.Ops = append(plan.Ops, QuestionOp{Kind: OpUpdate, Question: question})
		plan.Updates++
	}

	for _, id := range existing {
		if _, ok := owned[id]; !ok {
			continue
		}
		delete(owned, id)
		plan.Deletes = append(plan.Deletes, id)
	}
	if len(plan.Deletes) > 0 {
		plan.Ops = append(plan.Ops, QuestionOp{Kind: OpDelete, Question: domain.Question{SurveyID: surveyID}, DeleteIDs: plan.Deletes})
	}
	return plan, nil
}

// QuestionReconciler syncs a survey's question collection and re-derives questionIds.
type QuestionReconciler struct {
	surveys   SurveyRepository
	questions QuestionRepository
	logger    *log.Logger
	now       func() time.Time
}

func NewQuestionReconciler(surveys SurveyRepository, questions QuestionRepository, logger *log.Logger) *QuestionReconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &QuestionReconciler{
		surveys:   surveys,
		questions: questions,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Check runs the planning step without writing, so ownership and duplicate
// errors surface before the caller commits anything.
func (r *QuestionReconciler) Check(ctx context.Context, survey *domain.Survey, specs []domain.QuestionSpec) error {
	live, err := r.questions.FindLive(ctx, survey.ID)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	_, err = PlanQuestions(survey.ID, ownedQuestionIDs(survey.QuestionIDs, live), specs, r.now())
	return err
}

// Reconcile applies specs to the survey and returns the questions that are
// actually live afterwards. survey.QuestionIDs is updated from that read,
// never from the write results. When the batch only partly applies the
// fresh read is still persisted and ErrPartialWrite is returned with it.
func (r *QuestionReconciler) Reconcile(ctx context.Context, survey *domain.Survey, specs []domain.QuestionSpec) ([]domain.Question, error) {
	if survey == nil || survey.ID == "" {
		return nil, domain.ErrSurveyNotFound
	}

	live, err := r.questions.FindLive(ctx, survey.ID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	existing := ownedQuestionIDs(survey.QuestionIDs, live)

	plan, err := PlanQuestions(survey.ID, existing, specs, r.now())
	if err != nil {
		return nil, err
	}

	var batchErr error
	if len(plan.Ops) > 0 {
		result, err := r.questions.BulkWrite(ctx, plan.Ops)
		if err != nil {
			metrics.IncReconcileFailure()
			r.logger.Printf("question batch for survey %s partially failed (inserted=%d modified=%d): %v", survey.ID, result.Inserted, result.Modified, err)
			batchErr = fmt.Errorf("%w: question batch: %v", domain.ErrPartialWrite, err)
		}
		metrics.AddQuestionOps(OpInsert.String(), plan.Inserts)
		metrics.AddQuestionOps(OpUpdate.String(), plan.Updates)
		metrics.AddQuestionOps(OpDelete.String(), len(plan.Deletes))
	}

	actual, err := r.questions.FindLive(ctx, survey.ID)
	if err != nil {
		return nil, fmt.Errorf("reload questions: %w", err)
	}
	ids := domain.QuestionIDs(actual)
	if err := r.surveys.SetQuestionIDs(ctx, survey.ID, ids); err != nil {
		return actual, fmt.Errorf("set question ids: %w", err)
	}
	survey.QuestionIDs = ids
	return actual, batchErr
}

// ownedQuestionIDs merges the survey's reference list with the live rows that
// point at it, so rows orphaned by an earlier failed write are reclaimed.
func ownedQuestionIDs(referenced []string, live []domain.Question) []string {
	seen := make(map[string]struct{}, len(referenced)+len(live))
	ids := make([]string, 0, len(referenced)+len(live))
	for _, id := range referenced {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, q := range live {
		if _, ok := seen[q.ID]; ok {
			continue
		}
		seen[q.ID] = struct{}{}
		ids = append(ids, q.ID)
	}
	return ids
}
