package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleRunes    = 200
	MaxQuestionCount = 100
	MaxOptionCount   = 20
	MaxOptionRunes   = 200
	MaxDuration      = 24 * 60
)

func NewTitle(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", Invalid("title", "title is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleRunes {
		return "", Invalid("title", fmt.Sprintf("title must be <= %d characters", MaxTitleRunes))
	}
	return trimmed, nil
}

func ParseSurveyType(value string) (SurveyType, error) {
	switch SurveyType(strings.ToUpper(strings.TrimSpace(value))) {
	case SurveyTypeDraft:
		return SurveyTypeDraft, nil
	case SurveyTypeSurvey:
		return SurveyTypeSurvey, nil
	case SurveyTypeTemplate:
		return SurveyTypeTemplate, nil
	}
	return "", Invalid("surveyType", fmt.Sprintf("invalid survey type: %s", value))
}

func ParseSurveyStatus(value string) (SurveyStatus, error) {
	switch SurveyStatus(strings.ToUpper(strings.TrimSpace(value))) {
	case StatusInactive:
		return StatusInactive, nil
	case StatusActive:
		return StatusActive, nil
	case StatusRejected:
		return StatusRejected, nil
	}
	return "", Invalid("status", fmt.Sprintf("invalid status: %s", value))
}

func ParseScope(value string) (Scope, error) {
	switch Scope(strings.ToUpper(strings.TrimSpace(value))) {
	case ScopeAll:
		return ScopeAll, nil
	case ScopeB2B:
		return ScopeB2B, nil
	case ScopeB2C:
		return ScopeB2C, nil
	}
	return "", Invalid("scope", fmt.Sprintf("invalid scope: %s", value))
}

func ParsePlatform(value string) (Platform, error) {
	switch Platform(strings.ToUpper(strings.TrimSpace(value))) {
	case PlatformIOS:
		return PlatformIOS, nil
	case PlatformAndroid:
		return PlatformAndroid, nil
	case PlatformWeb:
		return PlatformWeb, nil
	}
	return "", Invalid("targetPlatforms", fmt.Sprintf("invalid platform: %s", value))
}

// PlatformList is a de-duplicated set of platforms in input order.
type PlatformList []Platform

func NewPlatformList(values []string) (PlatformList, error) {
	if len(values) == 0 {
		return PlatformList{}, nil
	}
	result := make([]Platform, 0, len(values))
	seen := make(map[Platform]struct{})
	for _, raw := range values {
		platform, err := ParsePlatform(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[platform]; ok {
			continue
		}
		seen[platform] = struct{}{}
		result = append(result, platform)
	}
	return PlatformList(result), nil
}

func (l PlatformList) Strings() []string {
	result := make([]string, 0, len(l))
	for _, v := range l {
		result = append(result, string(v))
	}
	return result
}

// NewNotifyTime accepts an empty value or a HH:MM clock time.
func NewNotifyTime(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	if _, err := time.Parse("15:04", trimmed); err != nil {
		return "", Invalid("notifyTime", "notify time must be HH:MM")
	}
	return trimmed, nil
}

// NewDuration validates a duration in minutes.
func NewDuration(minutes int) (int, error) {
	if minutes < 0 || minutes > MaxDuration {
		return 0, Invalid("duration", fmt.Sprintf("duration must be between 0 and %d minutes", MaxDuration))
	}
	return minutes, nil
}

func NewQuestionSpec(id, title string, options []string, skipable bool) (QuestionSpec, error) {
	trimmedTitle := strings.TrimSpace(title)
	if trimmedTitle == "" {
		return QuestionSpec{}, Invalid("questions", "question title is required")
	}
	if utf8.RuneCountInString(trimmedTitle) > MaxTitleRunes {
		return QuestionSpec{}, Invalid("questions", fmt.Sprintf("question title must be <= %d characters", MaxTitleRunes))
	}
	if len(options) > MaxOptionCount {
		return QuestionSpec{}, Invalid("questions", fmt.Sprintf("a question accepts at most %d options", MaxOptionCount))
	}
	cleaned := make([]string, 0, len(options))
	for _, option := range options {
		option = strings.TrimSpace(option)
		if option == "" {
			return QuestionSpec{}, Invalid("questions", "options must not be blank")
		}
		if utf8.RuneCountInString(option) > MaxOptionRunes {
			return QuestionSpec{}, Invalid("questions", fmt.Sprintf("options must be <= %d characters", MaxOptionRunes))
		}
		cleaned = append(cleaned, option)
	}
	return QuestionSpec{
		ID:       strings.TrimSpace(id),
		Title:    trimmedTitle,
		Options:  cleaned,
		Skipable: skipable,
	}, nil
}

// CheckQuestionSpecs rejects oversized lists and a question id referenced twice.
func CheckQuestionSpecs(specs []QuestionSpec) error {
	if len(specs) > MaxQuestionCount {
		return Invalid("questions", fmt.Sprintf("a survey accepts at most %d questions", MaxQuestionCount))
	}
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if spec.ID == "" {
			continue
		}
		if _, ok := seen[spec.ID]; ok {
			return Invalid("questions", fmt.Sprintf("question %s is listed more than once", spec.ID))
		}
		seen[spec.ID] = struct{}{}
	}
	return nil
}
