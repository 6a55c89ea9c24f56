package application

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/wellnest/survey-api/internal/survey/domain"
)

var surveySortFields = map[string]struct{}{
	"createdAt":  {},
	"updatedAt":  {},
	"title":      {},
	"status":     {},
	"surveyType": {},
	"scope":      {},
	"duration":   {},
	"notifyTime": {},
}

var approvalSortFields = map[string]struct{}{
	"updatedOn":     {},
	"createdAt":     {},
	"displayName":   {},
	"contentStatus": {},
}

// QueryService describes survey read use-cases.
type QueryService interface {
	Detail(ctx context.Context, actor domain.Actor, id string) (*SurveyDetail, error)
	List(ctx context.Context, actor domain.Actor, filter SurveyFilter, paging Paging) (*SurveyPage, error)
	Published(ctx context.Context, actor domain.Actor, filter SurveyFilter, paging Paging) (*SurveyPage, error)
	PublishedDetail(ctx context.Context, actor domain.Actor, id string) (*SurveyDetail, error)
	Approvals(ctx context.Context, actor domain.Actor, filter ApprovalFilter, paging Paging) (*ApprovalPage, error)
	ApprovalDetail(ctx context.Context, actor domain.Actor, surveyID string) (*ApprovalDetail, error)
}

type queryService struct {
	surveys   SurveyRepository
	questions QuestionRepository
	approvals ApprovalRepository
	directory Directory
	cache     DetailCache
	logger    *log.Logger
}

func NewQueryService(surveys SurveyRepository, questions QuestionRepository, approvals ApprovalRepository, directory Directory, cache DetailCache, logger *log.Logger) QueryService {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &queryService{
		surveys:   surveys,
		questions: questions,
		approvals: approvals,
		directory: directory,
		cache:     cache,
		logger:    logger,
	}
}

// Detail returns the survey aggregate. Surveys outside the actor's scope are
// reported as not found.
func (s *queryService) Detail(ctx context.Context, actor domain.Actor, id string) (*SurveyDetail, error) {
	if cached, ok := s.cache.Get(ctx, id); ok {
		if !actor.CanAccess(domain.Survey{CompanyID: cached.CompanyID}) {
			return nil, domain.ErrSurveyNotFound
		}
		return cached, nil
	}

	survey, err := s.surveys.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(*survey) {
		return nil, domain.ErrSurveyNotFound
	}
	detail, err := s.assembleDetail(ctx, survey)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, detail)
	return detail, nil
}

func (s *queryService) assembleDetail(ctx context.Context, survey *domain.Survey) (*SurveyDetail, error) {
	questions, err := s.questions.FindLive(ctx, survey.ID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	approval, err := s.approvals.Latest(ctx, survey.ID)
	if err != nil {
		return nil, fmt.Errorf("load approval: %w", err)
	}

	userIDs := []string{survey.CreatedBy}
	if approval != nil {
		userIDs = append(userIDs, approval.UpdatedBy)
	}
	names := s.userNames(ctx, userIDs)

	detail := &SurveyDetail{
		ID:              survey.ID,
		CompanyID:       survey.CompanyID,
		CreatedBy:       survey.CreatedBy,
		AuthorName:      names[survey.CreatedBy],
		ApprovedBy:      survey.ApprovedBy,
		ApprovedOn:      survey.ApprovedOn,
		Title:           survey.Title,
		CategoryID:      survey.CategoryID,
		LogoKey:         survey.LogoKey,
		ImageKey:        survey.ImageKey,
		SurveyType:      string(survey.SurveyType),
		Status:          string(survey.Status),
		Scope:           string(survey.Scope),
		TargetPlatforms: survey.TargetPlatforms.Strings(),
		NotifyTime:      survey.NotifyTime,
		Duration:        survey.Duration,
		Version:         survey.Version,
		ApprovalStatus:  domain.ApprovalStatusCode(*survey, approval),
		Questions:       newQuestionViews(questions),
		CreatedAt:       survey.CreatedAt,
		UpdatedAt:       survey.UpdatedAt,
	}
	if survey.CategoryID != nil {
		categories, err := s.directory.CategoryNames(ctx, []string{*survey.CategoryID})
		if err != nil {
			s.logger.Printf("category lookup failed for survey %s: %v", survey.ID, err)
		}
		detail.CategoryName = categories[*survey.CategoryID]
	}
	if approval != nil {
		snapshot := &ApprovalSnapshot{
			ID:            approval.ID,
			ContentStatus: string(approval.ContentStatus),
			UpdatedBy:     approval.UpdatedBy,
			UpdatedByName: names[approval.UpdatedBy],
			UpdatedOn:     approval.UpdatedOn,
		}
		if last := approval.LastComment(); last != nil {
			snapshot.Comment = last.Comment
		}
		detail.Approval = snapshot
	}
	return detail, nil
}

func (s *queryService) List(ctx context.Context, actor domain.Actor, filter SurveyFilter, paging Paging) (*SurveyPage, error) {
	paging, err := normalizeSort(paging, surveySortFields, "createdAt")
	if err != nil {
		return nil, err
	}
	filter.Visibility = VisibilityFor(actor)
	return s.page(ctx, filter, paging)
}

// Published lists the live surveys an end user may answer.
func (s *queryService) Published(ctx context.Context, actor domain.Actor, filter SurveyFilter, paging Paging) (*SurveyPage, error) {
	paging, err := normalizeSort(paging, surveySortFields, "createdAt")
	if err != nil {
		return nil, err
	}
	filter.Status = string(domain.StatusActive)
	filter.SurveyType = string(domain.SurveyTypeSurvey)
	filter.CreatedBy = ""
	filter.Visibility = VisibilityFor(actor)
	return s.page(ctx, filter, paging)
}

func (s *queryService) PublishedDetail(ctx context.Context, actor domain.Actor, id string) (*SurveyDetail, error) {
	detail, err := s.Detail(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if detail.Status != string(domain.StatusActive) || detail.SurveyType != string(domain.SurveyTypeSurvey) {
		return nil, domain.ErrSurveyNotFound
	}
	return detail, nil
}

func (s *queryService) page(ctx context.Context, filter SurveyFilter, paging Paging) (*SurveyPage, error) {
	surveys, total, err := s.surveys.Find(ctx, filter, paging)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(surveys))
	authors := make([]string, 0, len(surveys))
	for _, survey := range surveys {
		ids = append(ids, survey.ID)
		authors = append(authors, survey.CreatedBy)
	}
	approvals, err := s.approvals.LatestFor(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load approvals: %w", err)
	}
	names := s.userNames(ctx, authors)

	items := make([]SurveySummary, 0, len(surveys))
	for _, survey := range surveys {
		var approval *domain.ContentApproval
		if a, ok := approvals[survey.ID]; ok {
			approval = &a
		}
		items = append(items, newSurveySummary(survey, approval, names))
	}
	return &SurveyPage{Items: items, Total: total, Page: paging.Page, Limit: paging.Limit}, nil
}

// Approvals lists moderation cycles for privileged actors.
func (s *queryService) Approvals(ctx context.Context, actor domain.Actor, filter ApprovalFilter, paging Paging) (*ApprovalPage, error) {
	if !actor.Privileged() {
		return nil, domain.ErrForbidden
	}
	if filter.ContentStatus != "" {
		status, err := domain.ParseContentStatus(filter.ContentStatus)
		if err != nil {
			return nil, err
		}
		filter.ContentStatus = string(status)
	}
	paging, err := normalizeSort(paging, approvalSortFields, "updatedOn")
	if err != nil {
		return nil, err
	}
	filter.Visibility = ModerationVisibility(actor)

	approvals, total, err := s.approvals.Find(ctx, filter, paging)
	if err != nil {
		return nil, err
	}
	surveyIDs := make([]string, 0, len(approvals))
	userIDs := make([]string, 0, len(approvals)*2)
	for _, a := range approvals {
		surveyIDs = append(surveyIDs, a.ContentTypeID)
		userIDs = append(userIDs, a.CreatedBy, a.UpdatedBy)
	}
	surveys, err := s.surveys.FindByIDs(ctx, surveyIDs)
	if err != nil {
		return nil, fmt.Errorf("load surveys: %w", err)
	}
	for _, survey := range surveys {
		userIDs = append(userIDs, survey.CreatedBy)
	}
	names := s.userNames(ctx, userIDs)

	items := make([]ApprovalView, 0, len(approvals))
	for _, a := range approvals {
		var survey *domain.Survey
		if found, ok := surveys[a.ContentTypeID]; ok {
			survey = &found
		}
		items = append(items, newApprovalView(a, survey, names, false))
	}
	return &ApprovalPage{Items: items, Total: total, Page: paging.Page, Limit: paging.Limit}, nil
}

// ApprovalDetail joins a survey with every moderation cycle it went through.
func (s *queryService) ApprovalDetail(ctx context.Context, actor domain.Actor, surveyID string) (*ApprovalDetail, error) {
	if !actor.Privileged() {
		return nil, domain.ErrForbidden
	}
	detail, err := s.Detail(ctx, actor, surveyID)
	if err != nil {
		return nil, err
	}
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if !actor.CanModerate(*survey) {
		return nil, domain.ErrForbidden
	}
	history, err := s.approvals.History(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("load approval history: %w", err)
	}
	if len(history) == 0 {
		return nil, domain.ErrApprovalNotFound
	}

	userIDs := make([]string, 0, len(history)*2)
	for _, a := range history {
		userIDs = append(userIDs, a.CreatedBy, a.UpdatedBy)
		for _, c := range a.Comments {
			userIDs = append(userIDs, c.CommentedBy)
		}
	}
	names := s.userNames(ctx, userIDs)

	views := make([]ApprovalView, 0, len(history))
	for _, a := range history {
		views = append(views, newApprovalView(a, survey, names, true))
	}
	current := views[0]
	return &ApprovalDetail{Survey: detail, Current: &current, History: views}, nil
}

// userNames resolves display names; a lookup failure degrades to ids only.
func (s *queryService) userNames(ctx context.Context, ids []string) map[string]string {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[string]string{}
	}
	names, err := s.directory.UserNames(ctx, unique)
	if err != nil {
		s.logger.Printf("user lookup failed: %v", err)
		return map[string]string{}
	}
	return names
}

func normalizeSort(paging Paging, allowed map[string]struct{}, fallback string) (Paging, error) {
	if paging.Page > MaxPage {
		return Paging{}, domain.Invalid("page", fmt.Sprintf("must be at most %d", MaxPage))
	}
	paging = paging.Normalize()
	sortKey := strings.TrimSpace(paging.Sort)
	if sortKey == "" {
		paging.Sort = fallback
		paging.Desc = true
		return paging, nil
	}
	if strings.HasPrefix(sortKey, "-") {
		sortKey = strings.TrimPrefix(sortKey, "-")
		paging.Desc = true
	}
	if _, ok := allowed[sortKey]; !ok {
		return Paging{}, domain.Invalid("sort", fmt.Sprintf("cannot sort by %q", sortKey))
	}
	paging.Sort = sortKey
	return paging, nil
}
