package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/wellnest/survey-api/internal/survey/domain"
)

type memorySurveyRepo struct {
	mu      sync.Mutex
	surveys map[string]*domain.Survey
	nextID  int
	failOn  string
}

func newMemorySurveyRepo() *memorySurveyRepo {
	return &memorySurveyRepo{surveys: make(map[string]*domain.Survey)}
}

func cloneSurvey(s *domain.Survey) *domain.Survey {
	c := *s
	c.QuestionIDs = append([]string{}, s.QuestionIDs...)
	c.TargetPlatforms = append(domain.PlatformList{}, s.TargetPlatforms...)
	return &c
}

func (r *memorySurveyRepo) Insert(ctx context.Context, survey *domain.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "insert" {
		return errors.New("insert failed")
	}
	r.nextID++
	survey.ID = fmt.Sprintf("s%d", r.nextID)
	survey.Version = 1
	r.surveys[survey.ID] = cloneSurvey(survey)
	return nil
}

func (r *memorySurveyRepo) Patch(ctx context.Context, id string, expectedVersion int64, patch SurveyPatch) (*domain.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "patch" {
		return nil, errors.New("patch failed")
	}
	s, ok := r.surveys[id]
	if !ok || s.DeletedAt != nil {
		return nil, domain.ErrSurveyNotFound
	}
	if expectedVersion != 0 && s.Version != expectedVersion {
		return nil, domain.ErrVersionMismatch
	}
	patch.ApplyTo(s)
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	return cloneSurvey(s), nil
}

func (r *memorySurveyRepo) FindByID(ctx context.Context, id string) (*domain.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok || s.DeletedAt != nil {
		return nil, domain.ErrSurveyNotFound
	}
	return cloneSurvey(s), nil
}

func (r *memorySurveyRepo) FindByIDs(ctx context.Context, ids []string) (map[string]domain.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.Survey, len(ids))
	for _, id := range ids {
		if s, ok := r.surveys[id]; ok && s.DeletedAt == nil {
			out[id] = *cloneSurvey(s)
		}
	}
	return out, nil
}

func (r *memorySurveyRepo) Find(ctx context.Context, filter SurveyFilter, paging Paging) ([]domain.Survey, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]domain.Survey, 0)
	for _, s := range r.surveys {
		if s.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && string(s.Status) != filter.Status {
			continue
		}
		if filter.SurveyType != "" && string(s.SurveyType) != filter.SurveyType {
			continue
		}
		if filter.CreatedBy != "" && s.CreatedBy != filter.CreatedBy {
			continue
		}
		if !visible(filter.Visibility, s.CompanyID) {
			continue
		}
		matched = append(matched, *cloneSurvey(s))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := int64(len(matched))
	start := int(paging.Skip())
	if start > len(matched) {
		start = len(matched)
	}
	end := start + paging.Limit
	if end > len(matched) || paging.Limit == 0 {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func visible(v Visibility, companyID *string) bool {
	if v.All {
		return true
	}
	if companyID == nil {
		return v.Global
	}
	for _, id := range v.CompanyIDs {
		if id == *companyID {
			return true
		}
	}
	return false
}

func (r *memorySurveyRepo) SetQuestionIDs(ctx context.Context, id string, questionIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok {
		return domain.ErrSurveyNotFound
	}
	s.QuestionIDs = append([]string{}, questionIDs...)
	s.Version++
	return nil
}

func (r *memorySurveyRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok || s.DeletedAt != nil {
		return domain.ErrSurveyNotFound
	}
	s.DeletedAt = &at
	return nil
}

func (r *memorySurveyRepo) get(id string) *domain.Survey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneSurvey(r.surveys[id])
}

type memoryQuestionRepo struct {
	mu        sync.Mutex
	questions map[string]*domain.Question
	nextID    int

	// failOp makes matching ops fail while the rest of the batch applies.
	failOp func(QuestionOp) bool
}

func newMemoryQuestionRepo() *memoryQuestionRepo {
	return &memoryQuestionRepo{questions: make(map[string]*domain.Question)}
}

func (r *memoryQuestionRepo) BulkWrite(ctx context.Context, ops []QuestionOp) (BulkResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result BulkResult
	var failed int
	for _, op := range ops {
		if r.failOp != nil && r.failOp(op) {
			failed++
			continue
		}
		switch op.Kind {
		case OpInsert:
			r.nextID++
			q := op.Question
			q.ID = fmt.Sprintf("q%d", r.nextID)
			r.questions[q.ID] = &q
			result.Inserted++
		case OpUpdate:
			q, ok := r.questions[op.Question.ID]
			if !ok || q.DeletedAt != nil || q.SurveyID != op.Question.SurveyID {
				continue
			}
			q.Title = op.Question.Title
			q.Options = append([]string{}, op.Question.Options...)
			q.Skipable = op.Question.Skipable
			q.Position = op.Question.Position
			q.UpdatedAt = op.Question.UpdatedAt
			result.Modified++
		case OpDelete:
			now := time.Now().UTC()
			for _, id := range op.DeleteIDs {
				if q, ok := r.questions[id]; ok && q.DeletedAt == nil {
					q.DeletedAt = &now
					result.Modified++
				}
			}
		}
	}
	if failed > 0 {
		return result, fmt.Errorf("%d write errors", failed)
	}
	return result, nil
}

func (r *memoryQuestionRepo) FindLive(ctx context.Context, surveyID string) ([]domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := make([]domain.Question, 0)
	for _, q := range r.questions {
		if q.SurveyID == surveyID && q.DeletedAt == nil {
			live = append(live, *q)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].Position == live[j].Position {
			return live[i].ID < live[j].ID
		}
		return live[i].Position < live[j].Position
	})
	return live, nil
}

func (r *memoryQuestionRepo) SoftDeleteBySurvey(ctx context.Context, surveyID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.questions {
		if q.SurveyID == surveyID && q.DeletedAt == nil {
			q.DeletedAt = &at
		}
	}
	return nil
}

func (r *memoryQuestionRepo) seed(q domain.Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyQ := q
	r.questions[q.ID] = &copyQ
}

func (r *memoryQuestionRepo) raw(id string) domain.Question {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.questions[id]
}

type memoryApprovalRepo struct {
	mu        sync.Mutex
	approvals []*domain.ContentApproval
	nextID    int
}

func newMemoryApprovalRepo() *memoryApprovalRepo {
	return &memoryApprovalRepo{}
}

func cloneApproval(a *domain.ContentApproval) domain.ContentApproval {
	c := *a
	c.Comments = append([]domain.ApprovalComment{}, a.Comments...)
	return c
}

func (r *memoryApprovalRepo) Insert(ctx context.Context, approval *domain.ContentApproval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	approval.ID = fmt.Sprintf("a%d", r.nextID)
	c := cloneApproval(approval)
	r.approvals = append(r.approvals, &c)
	return nil
}

// latest relies on insertion order; later cycles are always appended.
func (r *memoryApprovalRepo) latest(surveyID string) *domain.ContentApproval {
	for i := len(r.approvals) - 1; i >= 0; i-- {
		if r.approvals[i].ContentTypeID == surveyID {
			return r.approvals[i]
		}
	}
	return nil
}

func (r *memoryApprovalRepo) Latest(ctx context.Context, surveyID string) (*domain.ContentApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.latest(surveyID)
	if a == nil {
		return nil, nil
	}
	c := cloneApproval(a)
	return &c, nil
}

func (r *memoryApprovalRepo) LatestFor(ctx context.Context, surveyIDs []string) (map[string]domain.ContentApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.ContentApproval)
	for _, id := range surveyIDs {
		if a := r.latest(id); a != nil {
			out[id] = cloneApproval(a)
		}
	}
	return out, nil
}

func (r *memoryApprovalRepo) History(ctx context.Context, surveyID string) ([]domain.ContentApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ContentApproval, 0)
	for i := len(r.approvals) - 1; i >= 0; i-- {
		if r.approvals[i].ContentTypeID == surveyID {
			out = append(out, cloneApproval(r.approvals[i]))
		}
	}
	return out, nil
}

func (r *memoryApprovalRepo) find(id string) *domain.ContentApproval {
	for _, a := range r.approvals {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (r *memoryApprovalRepo) Amend(ctx context.Context, id string, amendment ApprovalAmendment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.find(id)
	if a == nil {
		return domain.ErrApprovalNotFound
	}
	if a.ContentStatus == domain.ContentApproved {
		return domain.ErrApprovalFrozen
	}
	a.DisplayName = amendment.DisplayName
	a.ContentStatus = domain.ContentDraft
	a.UpdatedBy = amendment.UpdatedBy
	a.UpdatedOn = amendment.UpdatedOn
	a.UpdatedAt = amendment.UpdatedOn
	return nil
}

func (r *memoryApprovalRepo) AppendDecision(ctx context.Context, id string, comment domain.ApprovalComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.find(id)
	if a == nil {
		return domain.ErrApprovalNotFound
	}
	if a.ContentStatus == domain.ContentApproved {
		return domain.ErrApprovalFrozen
	}
	a.Comments = append(a.Comments, comment)
	a.ContentStatus = comment.ContentStatus
	a.UpdatedBy = comment.CommentedBy
	a.UpdatedOn = comment.CommentedOn
	a.UpdatedAt = comment.CommentedOn
	return nil
}

func (r *memoryApprovalRepo) Find(ctx context.Context, filter ApprovalFilter, paging Paging) ([]domain.ContentApproval, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ContentApproval, 0)
	for i := len(r.approvals) - 1; i >= 0; i-- {
		a := r.approvals[i]
		if filter.ContentStatus != "" && string(a.ContentStatus) != filter.ContentStatus {
			continue
		}
		if !visible(filter.Visibility, a.CompanyID) {
			continue
		}
		out = append(out, cloneApproval(a))
	}
	return out, int64(len(out)), nil
}

func (r *memoryApprovalRepo) all(surveyID string) []domain.ContentApproval {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ContentApproval, 0)
	for _, a := range r.approvals {
		if a.ContentTypeID == surveyID {
			out = append(out, cloneApproval(a))
		}
	}
	return out
}

type staticDirectory struct {
	users      map[string]string
	categories map[string]string
}

func (d staticDirectory) UserNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if name, ok := d.users[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (d staticDirectory) CategoryNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if name, ok := d.categories[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

type memoryMedia struct {
	mu         sync.Mutex
	objects    map[string][]byte
	removed    []string
	failUpload bool
}

func newMemoryMedia() *memoryMedia {
	return &memoryMedia{objects: make(map[string][]byte)}
}

func (m *memoryMedia) Upload(ctx context.Context, data []byte, contentType, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpload {
		return "", errors.New("storage unavailable")
	}
	m.objects[key] = data
	return key, nil
}

func (m *memoryMedia) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.removed = append(m.removed, key)
	return nil
}

func (m *memoryMedia) Copy(ctx context.Context, srcFolder, srcKey, destFolder, destKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[srcFolder+"/"+srcKey]
	if !ok {
		return false, nil
	}
	m.objects[destFolder+"/"+destKey] = data
	return true, nil
}

func (m *memoryMedia) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	return "https://uploads.test/" + key, nil
}

func (m *memoryMedia) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

type recordingNotifier struct {
	mu        sync.Mutex
	requested []ApprovalRequestNotice
	decisions []DecisionNotice
	audience  []AudienceNotice
}

func (n *recordingNotifier) ApprovalRequested(ctx context.Context, notice ApprovalRequestNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requested = append(n.requested, notice)
}

func (n *recordingNotifier) ApprovalDecision(ctx context.Context, notice DecisionNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decisions = append(n.decisions, notice)
}

func (n *recordingNotifier) Audience(ctx context.Context, notice AudienceNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.audience = append(n.audience, notice)
}

type recordingCache struct {
	mu          sync.Mutex
	entries     map[string]*SurveyDetail
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]*SurveyDetail)}
}

func (c *recordingCache) Get(ctx context.Context, id string) (*SurveyDetail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[id]
	return d, ok
}

func (c *recordingCache) Set(ctx context.Context, detail *SurveyDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[detail.ID] = detail
}

func (c *recordingCache) Invalidate(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.invalidated = append(c.invalidated, id)
}

type harness struct {
	surveys    *memorySurveyRepo
	questions  *memoryQuestionRepo
	approvals  *memoryApprovalRepo
	media      *memoryMedia
	notifier   *recordingNotifier
	cache      *recordingCache
	reconciler *QuestionReconciler
	workflow   *ApprovalWorkflow
	authoring  AuthoringService
	moderation ModerationService
	query      QueryService
}

func newHarness() *harness {
	logger := log.New(io.Discard, "", 0)
	h := &harness{
		surveys:   newMemorySurveyRepo(),
		questions: newMemoryQuestionRepo(),
		approvals: newMemoryApprovalRepo(),
		media:     newMemoryMedia(),
		notifier:  &recordingNotifier{},
		cache:     newRecordingCache(),
	}
	directory := staticDirectory{
		users:      map[string]string{"coach-1": "Aiko", "admin-1": "Ren"},
		categories: map[string]string{"cat-1": "Sleep"},
	}
	h.reconciler = NewQuestionReconciler(h.surveys, h.questions, logger)
	h.workflow = NewApprovalWorkflow(h.surveys, h.approvals, h.notifier, logger, "Wellnest")
	h.authoring = NewAuthoringService(h.surveys, h.questions, h.reconciler, h.workflow, h.media, h.cache, logger)
	h.moderation = NewModerationService(h.workflow, h.cache)
	h.query = NewQueryService(h.surveys, h.questions, h.approvals, directory, h.cache, logger)
	return h
}

var (
	acme  = "acme"
	coach = domain.Actor{ID: "coach-1", Name: "Aiko", Role: domain.RoleCoach, CompanyID: &acme}
	admin = domain.Actor{ID: "admin-1", Name: "Ren", Role: domain.RoleOrgAdmin, CompanyID: &acme}
	root  = domain.Actor{ID: "root-1", Name: "Root", Role: domain.RoleRootAdmin}
)

func ptr[T any](v T) *T {
	return &v
}

func questionList(inputs ...QuestionInput) *[]QuestionInput {
	list := append([]QuestionInput{}, inputs...)
	return &list
}
