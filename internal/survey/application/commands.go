package application

import "github.com/wellnest/survey-api/internal/survey/domain"

// SurveyCommand contains inputs for creating and editing surveys.
// Nil fields are left unchanged on edit.
type SurveyCommand struct {
	Title           *string
	SurveyType      *string
	Scope           *string
	CompanyID       *string
	CategoryID      Field[string]
	Duration        *int
	NotifyTime      *string
	TargetPlatforms *[]string
	Logo            MediaInput
	Image           MediaInput

	// Questions is the complete desired question list. Nil keeps the current set.
	Questions       *[]QuestionInput
	ExpectedVersion int64
}

// QuestionInput is one entry of the desired question list. A blank
// QuestionID asks for a new question.
type QuestionInput struct {
	QuestionID string
	Title      string
	Options    []string
	Skipable   bool
}

// MediaAction selects how a logo or image field is resolved.
type MediaAction int

const (
	MediaKeep MediaAction = iota
	MediaClear
	MediaUpload
	MediaReuse
	MediaPresign
)

// MediaInput describes one logo or image field of a write.
type MediaInput struct {
	Action      MediaAction
	Data        []byte
	ContentType string

	// SourceFolder and SourceKey locate an existing object for MediaReuse.
	SourceFolder string
	SourceKey    string
}

// SurveyResult is returned by create and edit.
type SurveyResult struct {
	Survey     *domain.Survey
	Questions  []domain.Question
	Outcome    SubmissionOutcome
	UploadURLs map[string]string
}

// DecisionCommand is a moderator decision.
type DecisionCommand struct {
	SurveyID string
	Decision string
	Comment  *string
}

func (c SurveyCommand) questionSpecs() ([]domain.QuestionSpec, error) {
	if c.Questions == nil {
		return nil, nil
	}
	specs := make([]domain.QuestionSpec, 0, len(*c.Questions))
	for _, input := range *c.Questions {
		spec, err := domain.NewQuestionSpec(input.QuestionID, input.Title, input.Options, input.Skipable)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	if err := domain.CheckQuestionSpecs(specs); err != nil {
		return nil, err
	}
	return specs, nil
}
