package common

import (
	"errors"
	"net/http"

	"github.com/wellnest/survey-api/internal/survey/domain"
)

// MappedError is the HTTP rendition of an application error.
type MappedError struct {
	Status  int
	Message string
	Detail  string
}

// MapError translates domain errors into status codes and message keys.
// The most specific sentinel wins.
func MapError(err error) MappedError {
	if err == nil {
		return MappedError{Status: http.StatusInternalServerError, Message: "internal_error"}
	}

	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		return MappedError{Status: http.StatusBadRequest, Message: "validation_failed", Detail: validation.Error()}
	case errors.Is(err, domain.ErrValidation):
		return MappedError{Status: http.StatusBadRequest, Message: "validation_failed", Detail: err.Error()}
	case errors.Is(err, domain.ErrSurveyNotFound):
		return MappedError{Status: http.StatusNotFound, Message: "survey_not_found", Detail: "survey not found"}
	case errors.Is(err, domain.ErrApprovalNotFound):
		return MappedError{Status: http.StatusNotFound, Message: "approval_not_found", Detail: "content approval not found"}
	case errors.Is(err, domain.ErrNotFound):
		return MappedError{Status: http.StatusNotFound, Message: "not_found", Detail: "resource not found"}
	case errors.Is(err, domain.ErrForbidden):
		return MappedError{Status: http.StatusForbidden, Message: "forbidden", Detail: "operation not permitted"}
	case errors.Is(err, domain.ErrQuestionNotOwned):
		return MappedError{Status: http.StatusConflict, Message: "question_not_owned", Detail: err.Error()}
	case errors.Is(err, domain.ErrVersionMismatch):
		return MappedError{Status: http.StatusConflict, Message: "version_conflict", Detail: "survey was modified by another request"}
	case errors.Is(err, domain.ErrApprovalFrozen):
		return MappedError{Status: http.StatusConflict, Message: "approval_frozen", Detail: "approved content cannot be changed"}
	case errors.Is(err, domain.ErrConflict):
		return MappedError{Status: http.StatusConflict, Message: "conflict", Detail: err.Error()}
	case errors.Is(err, domain.ErrPartialWrite):
		return MappedError{Status: http.StatusInternalServerError, Message: "partial_write", Detail: "the change was only partially applied"}
	default:
		return MappedError{Status: http.StatusInternalServerError, Message: "internal_error", Detail: http.StatusText(http.StatusInternalServerError)}
	}
}
