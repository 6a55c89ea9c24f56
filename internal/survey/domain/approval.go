package domain

import (
	"fmt"
	"strings"
	"time"
)

// ContentTypeSurvey is the only content type moderated by this service.
const ContentTypeSurvey = "SURVEY"

// ContentStatus is the moderation state of one ContentApproval document.
type ContentStatus string

const (
	ContentDraft    ContentStatus = "DRAFT"
	ContentApproved ContentStatus = "APPROVED"
	ContentRejected ContentStatus = "REJECTED"
)

// ParseContentStatus validates a raw status value.
func ParseContentStatus(value string) (ContentStatus, error) {
	switch ContentStatus(strings.ToUpper(strings.TrimSpace(value))) {
	case ContentDraft:
		return ContentDraft, nil
	case ContentApproved:
		return ContentApproved, nil
	case ContentRejected:
		return ContentRejected, nil
	}
	return "", Invalid("contentStatus", fmt.Sprintf("unknown content status %q", value))
}

// ApprovalEvent is an input to the moderation state machine.
type ApprovalEvent int

const (
	// EventResubmit is raised by every non-privileged create or edit.
	EventResubmit ApprovalEvent = iota
	EventApprove
	EventReject
)

func (e ApprovalEvent) String() string {
	switch e {
	case EventResubmit:
		return "resubmit"
	case EventApprove:
		return "approve"
	case EventReject:
		return "reject"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// EventForDecision maps a moderator decision onto its event.
func EventForDecision(decision ContentStatus) (ApprovalEvent, error) {
	switch decision {
	case ContentApproved:
		return EventApprove, nil
	case ContentRejected:
		return EventReject, nil
	case ContentDraft:
	}
	return 0, Invalid("decision", "decision must be APPROVED or REJECTED")
}

// Transition is the outcome of applying an event to a status.
// NewCycle means the current document is frozen and a new one must be opened.
type Transition struct {
	To       ContentStatus
	NewCycle bool
}

// Apply runs the moderation state machine.
//
//	DRAFT    --resubmit--> DRAFT     --approve--> APPROVED  --reject--> REJECTED
//	REJECTED --resubmit--> DRAFT     --approve--> APPROVED  --reject--> REJECTED
//	APPROVED --resubmit--> DRAFT (new document); approve/reject are refused
func (s ContentStatus) Apply(event ApprovalEvent) (Transition, error) {
	switch s {
	case ContentDraft, ContentRejected:
		switch event {
		case EventResubmit:
			return Transition{To: ContentDraft}, nil
		case EventApprove:
			return Transition{To: ContentApproved}, nil
		case EventReject:
			return Transition{To: ContentRejected}, nil
		}
	case ContentApproved:
		switch event {
		case EventResubmit:
			return Transition{To: ContentDraft, NewCycle: true}, nil
		case EventApprove, EventReject:
			return Transition{}, ErrApprovalFrozen
		}
	}
	return Transition{}, fmt.Errorf("%w: %s on %q", ErrInvalidTransition, event, s)
}

// ApprovalComment is one entry in the decision history of a moderation cycle.
type ApprovalComment struct {
	Comment       *string
	CommentedBy   string
	CommentedOn   time.Time
	ContentStatus ContentStatus
}

// ContentApproval is one moderation cycle for a survey.
type ContentApproval struct {
	ID            string
	ContentTypeID string
	ContentType   string
	CompanyID     *string
	DisplayName   string
	ContentStatus ContentStatus
	CreatedBy     string
	UpdatedBy     string
	UpdatedOn     time.Time
	Comments      []ApprovalComment
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LastComment returns the most recent decision entry, if any.
func (a ContentApproval) LastComment() *ApprovalComment {
	if len(a.Comments) == 0 {
		return nil
	}
	last := a.Comments[len(a.Comments)-1]
	return &last
}

// Approval status codes shown on list and detail screens.
const (
	ApprovalCodePending  = 0
	ApprovalCodeApproved = 1
	ApprovalCodeRejected = 2
)

// ApprovalStatusCode derives the displayed approval status: 0 while a cycle is
// open, 1 approved or has an approver, otherwise the last comment's status.
func ApprovalStatusCode(survey Survey, approval *ContentApproval) int {
	if approval != nil && approval.ContentStatus == ContentDraft {
		return ApprovalCodePending
	}
	if survey.IsApproved() {
		return ApprovalCodeApproved
	}
	if approval == nil {
		return ApprovalCodePending
	}
	status := approval.ContentStatus
	if last := approval.LastComment(); last != nil {
		status = last.ContentStatus
	}
	switch status {
	case ContentApproved:
		return ApprovalCodeApproved
	case ContentRejected:
		return ApprovalCodeRejected
	}
	return ApprovalCodePending
}
