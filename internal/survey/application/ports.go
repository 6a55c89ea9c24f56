package application

import (
	"context"
	"time"

	"github.com/wellnest/survey-api/internal/survey/domain"
)

// SurveyRepository persists survey aggregates.
type SurveyRepository interface {
	Insert(ctx context.Context, survey *domain.Survey) error
	// Patch merges the supplied fields. expectedVersion 0 skips the version check.
	Patch(ctx context.Context, id string, expectedVersion int64, patch SurveyPatch) (*domain.Survey, error)
	FindByID(ctx context.Context, id string) (*domain.Survey, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]domain.Survey, error)
	Find(ctx context.Context, filter SurveyFilter, paging Paging) ([]domain.Survey, int64, error)
	SetQuestionIDs(ctx context.Context, id string, questionIDs []string) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// QuestionRepository persists questions owned by surveys.
type QuestionRepository interface {
	// BulkWrite runs ops as one unordered batch; one failing op does not stop the rest.
	BulkWrite(ctx context.Context, ops []QuestionOp) (BulkResult, error)
	FindLive(ctx context.Context, surveyID string) ([]domain.Question, error)
	SoftDeleteBySurvey(ctx context.Context, surveyID string, at time.Time) error
}

// ApprovalRepository persists moderation cycles.
type ApprovalRepository interface {
	Insert(ctx context.Context, approval *domain.ContentApproval) error
	// Latest returns the current cycle ordered by updatedAt then createdAt.
	Latest(ctx context.Context, surveyID string) (*domain.ContentApproval, error)
	LatestFor(ctx context.Context, surveyIDs []string) (map[string]domain.ContentApproval, error)
	History(ctx context.Context, surveyID string) ([]domain.ContentApproval, error)
	// Amend reopens a non-approved cycle in place.
	Amend(ctx context.Context, id string, amendment ApprovalAmendment) error
	// AppendDecision records a decision on a non-approved cycle.
	AppendDecision(ctx context.Context, id string, comment domain.ApprovalComment) error
	Find(ctx context.Context, filter ApprovalFilter, paging Paging) ([]domain.ContentApproval, int64, error)
}

// Directory resolves display names owned by other modules.
type Directory interface {
	UserNames(ctx context.Context, ids []string) (map[string]string, error)
	CategoryNames(ctx context.Context, ids []string) (map[string]string, error)
}

// MediaStorage is the object storage collaborator.
type MediaStorage interface {
	Upload(ctx context.Context, data []byte, contentType, key string) (string, error)
	Remove(ctx context.Context, key string) error
	Copy(ctx context.Context, srcFolder, srcKey, destFolder, destKey string) (bool, error)
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
}

// Notifier delivers notifications out of band. Implementations must not block
// the caller on delivery and own their failure handling.
type Notifier interface {
	ApprovalRequested(ctx context.Context, notice ApprovalRequestNotice)
	ApprovalDecision(ctx context.Context, notice DecisionNotice)
	Audience(ctx context.Context, notice AudienceNotice)
}

// DetailCache caches assembled survey details.
type DetailCache interface {
	Get(ctx context.Context, id string) (*SurveyDetail, bool)
	Set(ctx context.Context, detail *SurveyDetail)
	Invalidate(ctx context.Context, id string)
}

// NopCache disables detail caching.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*SurveyDetail, bool) { return nil, false }
func (NopCache) Set(context.Context, *SurveyDetail)                {}
func (NopCache) Invalidate(context.Context, string)                {}

// Field distinguishes an absent field (Set false) from an explicit null (Value nil).
type Field[T any] struct {
	Set   bool
	Value *T
}

// Value builds a Field holding v.
func Value[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// Null builds a Field that clears the stored value.
func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

// SurveyPatch lists the survey fields a write touches. Nil pointers are left unchanged.
type SurveyPatch struct {
	Title           *string
	SurveyType      *domain.SurveyType
	Status          *domain.SurveyStatus
	Scope           *domain.Scope
	TargetPlatforms *domain.PlatformList
	NotifyTime      *string
	Duration        *int
	CategoryID      Field[string]
	LogoKey         Field[string]
	ImageKey        Field[string]
	ApprovedBy      *string
	ApprovedOn      *time.Time
}

// Empty reports whether the patch changes nothing.
func (p SurveyPatch) Empty() bool {
	return p.Title == nil && p.SurveyType == nil && p.Status == nil && p.Scope == nil &&
		p.TargetPlatforms == nil && p.NotifyTime == nil && p.Duration == nil &&
		!p.CategoryID.Set && !p.LogoKey.Set && !p.ImageKey.Set &&
		p.ApprovedBy == nil && p.ApprovedOn == nil
}

// ApplyTo merges the patch into s.
func (p SurveyPatch) ApplyTo(s *domain.Survey) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.SurveyType != nil {
		s.SurveyType = *p.SurveyType
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Scope != nil {
		s.Scope = *p.Scope
	}
	if p.TargetPlatforms != nil {
		s.TargetPlatforms = *p.TargetPlatforms
	}
	if p.NotifyTime != nil {
		s.NotifyTime = *p.NotifyTime
	}
	if p.Duration != nil {
		s.Duration = *p.Duration
	}
	if p.CategoryID.Set {
		s.CategoryID = p.CategoryID.Value
	}
	if p.LogoKey.Set {
		s.LogoKey = p.LogoKey.Value
	}
	if p.ImageKey.Set {
		s.ImageKey = p.ImageKey.Value
	}
	if p.ApprovedBy != nil {
		s.ApprovedBy = p.ApprovedBy
	}
	if p.ApprovedOn != nil {
		s.ApprovedOn = p.ApprovedOn
	}
}

// QuestionOpKind enumerates reconciler operations.
type QuestionOpKind int

const (
	OpInsert QuestionOpKind = iota
	OpUpdate
	OpDelete
)

func (k QuestionOpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// QuestionOp is one write of a reconciliation batch.
type QuestionOp struct {
	Kind      QuestionOpKind
	Question  domain.Question
	DeleteIDs []string
}

// BulkResult reports what the store acknowledged. It is informational only.
type BulkResult struct {
	Inserted int64
	Modified int64
}

// ApprovalAmendment is written when a pending or rejected cycle is resubmitted.
type ApprovalAmendment struct {
	DisplayName string
	UpdatedBy   string
	UpdatedOn   time.Time
}

// Visibility restricts queries to the surveys an actor may see.
type Visibility struct {
	All        bool
	CompanyIDs []string
	Global     bool
}

// VisibilityFor derives the query restriction for actor.
func VisibilityFor(actor domain.Actor) Visibility {
	if actor.IsRoot() {
		return Visibility{All: true}
	}
	if actor.CompanyID != nil && *actor.CompanyID != "" {
		return Visibility{CompanyIDs: []string{*actor.CompanyID}, Global: true}
	}
	return Visibility{Global: true}
}

// ModerationVisibility restricts the approval queue to the cycles actor may decide.
func ModerationVisibility(actor domain.Actor) Visibility {
	if actor.IsRoot() {
		return Visibility{All: true}
	}
	if actor.CompanyID != nil && *actor.CompanyID != "" {
		return Visibility{CompanyIDs: []string{*actor.CompanyID}}
	}
	return Visibility{}
}

// SurveyFilter expresses list criteria.
type SurveyFilter struct {
	Status     string
	SurveyType string
	Scope      string
	Search     string
	CreatedBy  string
	Visibility Visibility
}

// ApprovalFilter expresses moderation queue criteria.
type ApprovalFilter struct {
	ContentStatus string
	Visibility    Visibility
}

// Paging controls pagination.
type Paging struct {
	Page  int
	Limit int
	Sort  string
	Desc  bool
}

// MaxPage is the deepest page a listing accepts.
const MaxPage = 10000

// Normalize applies defaults and bounds.
func (p Paging) Normalize() Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

// Skip returns the number of documents before the page.
func (p Paging) Skip() int64 {
	page := min(p.Page, MaxPage)
	if page < 1 {
		return 0
	}
	return int64(page-1) * int64(p.Limit)
}

// ApprovalRequestNotice asks moderators to review new content.
type ApprovalRequestNotice struct {
	ActorName    string
	ActorID      string
	SurveyID     string
	SurveyTitle  string
	ContentLabel string
	CompanyID    *string
}

// DecisionNotice tells the author about a moderation decision.
type DecisionNotice struct {
	ActorName    string
	ActorID      string
	SurveyID     string
	SurveyTitle  string
	ContentLabel string
	Decision     domain.ContentStatus
	HasComment   bool
	Comment      string
	RecipientID  string
}

// AudienceNotice announces a newly approved survey to end users.
type AudienceNotice struct {
	BrandName   string
	ActorID     string
	SurveyID    string
	SurveyTitle string
	Target      string
}
