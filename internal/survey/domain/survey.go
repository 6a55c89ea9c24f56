package domain

import "time"

// SurveyType is the authoring lifecycle type of a survey.
type SurveyType string

const (
	SurveyTypeDraft    SurveyType = "DRAFT"
	SurveyTypeSurvey   SurveyType = "SURVEY"
	SurveyTypeTemplate SurveyType = "TEMPLATE"
)

// SurveyStatus is the visibility status of a survey.
type SurveyStatus string

const (
	StatusInactive SurveyStatus = "INACTIVE"
	StatusActive   SurveyStatus = "ACTIVE"
	StatusRejected SurveyStatus = "REJECTED"
)

// Scope is the audience partition a survey is visible to.
type Scope string

const (
	ScopeAll Scope = "ALL"
	ScopeB2B Scope = "B2B"
	ScopeB2C Scope = "B2C"
)

// Platform is a client platform a survey targets.
type Platform string

const (
	PlatformIOS     Platform = "IOS"
	PlatformAndroid Platform = "ANDROID"
	PlatformWeb     Platform = "WEB"
)

// Survey is the aggregate root of the authoring engine.
// QuestionIDs is derived from the question store and never trusted from input.
type Survey struct {
	ID              string
	CompanyID       *string
	CreatedBy       string
	ApprovedBy      *string
	ApprovedOn      *time.Time
	Title           string
	CategoryID      *string
	LogoKey         *string
	ImageKey        *string
	QuestionIDs     []string
	SurveyType      SurveyType
	Status          SurveyStatus
	Scope           Scope
	TargetPlatforms PlatformList
	NotifyTime      string
	Duration        int
	DeletedAt       *time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsLive reports whether approval of the survey reaches end users.
func (s Survey) IsLive() bool {
	return s.SurveyType == SurveyTypeSurvey
}

// IsApproved reports whether an approver has been recorded.
func (s Survey) IsApproved() bool {
	return s.ApprovedBy != nil
}

// AudienceTarget returns the company id for organization surveys and the scope otherwise.
func (s Survey) AudienceTarget() string {
	if s.CompanyID != nil && *s.CompanyID != "" {
		return *s.CompanyID
	}
	return string(s.Scope)
}
