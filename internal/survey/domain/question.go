package domain

import "time"

// Question is a single survey question. Its lifecycle is owned by one Survey.
type Question struct {
	ID        string
	SurveyID  string
	Title     string
	Options   []string
	Skipable  bool
	Position  int
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QuestionSpec is the desired state of one question in an edit request.
// An empty ID asks for a new question.
type QuestionSpec struct {
	ID       string
	Title    string
	Options  []string
	Skipable bool
}

// QuestionIDs extracts ids preserving order.
func QuestionIDs(questions []Question) []string {
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids
}
