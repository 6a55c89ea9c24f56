package application

import (
	"time"

	"github.com/wellnest/survey-api/internal/survey/domain"
)

// QuestionView is a populated question of a survey detail.
type QuestionView struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Options  []string `json:"options"`
	Skipable bool     `json:"skipable"`
	Position int      `json:"position"`
}

// ApprovalSnapshot summarises the current moderation cycle of a survey.
type ApprovalSnapshot struct {
	ID            string    `json:"id"`
	ContentStatus string    `json:"contentStatus"`
	Comment       *string   `json:"comment"`
	UpdatedBy     string    `json:"updatedBy"`
	UpdatedByName string    `json:"updatedByName,omitempty"`
	UpdatedOn     time.Time `json:"updatedOn"`
}

// SurveyDetail is the full aggregate returned by detail endpoints.
type SurveyDetail struct {
	ID              string            `json:"id"`
	CompanyID       *string           `json:"companyId"`
	CreatedBy       string            `json:"createdBy"`
	AuthorName      string            `json:"authorName,omitempty"`
	ApprovedBy      *string           `json:"approvedBy"`
	ApprovedOn      *time.Time        `json:"approvedOn"`
	Title           string            `json:"title"`
	CategoryID      *string           `json:"categoryId"`
	CategoryName    string            `json:"categoryName,omitempty"`
	LogoKey         *string           `json:"logoKey"`
	ImageKey        *string           `json:"imageKey"`
	SurveyType      string            `json:"surveyType"`
	Status          string            `json:"status"`
	Scope           string            `json:"scope"`
	TargetPlatforms []string          `json:"targetPlatforms"`
	NotifyTime      string            `json:"notifyTime,omitempty"`
	Duration        int               `json:"duration"`
	Version         int64             `json:"version"`
	ApprovalStatus  int               `json:"approvalStatus"`
	Approval        *ApprovalSnapshot `json:"approval,omitempty"`
	Questions       []QuestionView    `json:"questions"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// SurveySummary is the lightweight list projection.
type SurveySummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	SurveyType     string    `json:"surveyType"`
	Status         string    `json:"status"`
	Scope          string    `json:"scope"`
	CompanyID      *string   `json:"companyId"`
	CreatedBy      string    `json:"createdBy"`
	AuthorName     string    `json:"authorName,omitempty"`
	ApprovalStatus int       `json:"approvalStatus"`
	QuestionCount  int       `json:"questionCount"`
	Duration       int       `json:"duration"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SurveyPage is one page of survey summaries.
type SurveyPage struct {
	Items []SurveySummary `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// CommentView is one decision entry.
type CommentView struct {
	Comment         *string   `json:"comment"`
	CommentedBy     string    `json:"commentedBy"`
	CommentedByName string    `json:"commentedByName,omitempty"`
	CommentedOn     time.Time `json:"commentedOn"`
	ContentStatus   string    `json:"contentStatus"`
}

// ApprovalView is one moderation cycle as listed for moderators.
type ApprovalView struct {
	ID             string         `json:"id"`
	SurveyID       string         `json:"surveyId"`
	DisplayName    string         `json:"displayName"`
	ContentStatus  string         `json:"contentStatus"`
	ApprovalStatus int            `json:"approvalStatus"`
	CompanyID      *string        `json:"companyId"`
	CreatedBy      string         `json:"createdBy"`
	CreatedByName  string         `json:"createdByName,omitempty"`
	UpdatedBy      string         `json:"updatedBy"`
	UpdatedOn      time.Time      `json:"updatedOn"`
	LastComment    *string        `json:"lastComment"`
	Comments       []CommentView  `json:"comments,omitempty"`
	Survey         *SurveySummary `json:"survey,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// ApprovalPage is one page of the moderation queue.
type ApprovalPage struct {
	Items []ApprovalView `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// ApprovalDetail joins a survey with its full moderation history, newest first.
type ApprovalDetail struct {
	Survey  *SurveyDetail  `json:"survey"`
	Current *ApprovalView  `json:"current"`
	History []ApprovalView `json:"history"`
}

func newQuestionViews(questions []domain.Question) []QuestionView {
	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, QuestionView{
			ID:       q.ID,
			Title:    q.Title,
			Options:  append([]string{}, q.Options...),
			Skipable: q.Skipable,
			Position: q.Position,
		})
	}
	return views
}

func newSurveySummary(s domain.Survey, approval *domain.ContentApproval, names map[string]string) SurveySummary {
	return SurveySummary{
		ID:             s.ID,
		Title:          s.Title,
		SurveyType:     string(s.SurveyType),
		Status:         string(s.Status),
		Scope:          string(s.Scope),
		CompanyID:      s.CompanyID,
		CreatedBy:      s.CreatedBy,
		AuthorName:     names[s.CreatedBy],
		ApprovalStatus: domain.ApprovalStatusCode(s, approval),
		QuestionCount:  len(s.QuestionIDs),
		Duration:       s.Duration,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func newApprovalView(a domain.ContentApproval, survey *domain.Survey, names map[string]string, withComments bool) ApprovalView {
	view := ApprovalView{
		ID:            a.ID,
		SurveyID:      a.ContentTypeID,
		DisplayName:   a.DisplayName,
		ContentStatus: string(a.ContentStatus),
		CompanyID:     a.CompanyID,
		CreatedBy:     a.CreatedBy,
		CreatedByName: names[a.CreatedBy],
		UpdatedBy:     a.UpdatedBy,
		UpdatedOn:     a.UpdatedOn,
		CreatedAt:     a.CreatedAt,
	}
	if last := a.LastComment(); last != nil {
		view.LastComment = last.Comment
	}
	if survey != nil {
		view.ApprovalStatus = domain.ApprovalStatusCode(*survey, &a)
		summary := newSurveySummary(*survey, &a, names)
		view.Survey = &summary
	} else {
		view.ApprovalStatus = domain.ApprovalStatusCode(domain.Survey{}, &a)
	}
	if withComments {
		view.Comments = make([]CommentView, 0, len(a.Comments))
		for _, c := range a.Comments {
			view.Comments = append(view.Comments, CommentView{
				Comment:         c.Comment,
				CommentedBy:     c.CommentedBy,
				CommentedByName: names[c.CommentedBy],
				CommentedOn:     c.CommentedOn,
				ContentStatus:   string(c.ContentStatus),
			})
		}
	}
	return view
}
