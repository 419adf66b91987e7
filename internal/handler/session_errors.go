package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/i18n"
	"github.com/stemsi/exstem-proctor/internal/response"
)

// sessionError is how a session error is reported to the candidate.
type sessionError struct {
	status int
	code   response.ErrCode
	msgID  string // i18n message replacing the default text, if any
	fields map[string]string
}

// classifySessionError maps an exam package error. ok is false for errors
// the session never returns.
func classifySessionError(err error) (sessionError, bool) {
	var formErr *exam.FormValidationError
	var netErr *exam.NetworkFailure
	switch {
	case errors.As(err, &formErr):
		return sessionError{status: http.StatusBadRequest, code: response.ErrValidation, fields: formErr.Fields}, true
	case errors.As(err, &netErr):
		return sessionError{status: http.StatusBadGateway, code: response.ErrSubmissionFailed, msgID: i18n.MsgSubmissionFailed}, true
	case errors.Is(err, exam.ErrIdentityMissing):
		return sessionError{status: http.StatusConflict, code: response.ErrIdentityMissing, msgID: i18n.MsgIdentityMissing}, true
	case errors.Is(err, exam.ErrInvalidTransition):
		return sessionError{status: http.StatusConflict, code: response.ErrInvalidTransition}, true
	case errors.Is(err, exam.ErrExamNotActive):
		return sessionError{status: http.StatusConflict, code: response.ErrExamNotActive}, true
	case errors.Is(err, exam.ErrUnknownQuestion):
		return sessionError{status: http.StatusNotFound, code: response.ErrUnknownQuestion}, true
	case errors.Is(err, exam.ErrOptionOutOfRange):
		return sessionError{status: http.StatusUnprocessableEntity, code: response.ErrOptionOutOfRange}, true
	default:
		return sessionError{status: http.StatusInternalServerError, code: response.ErrInternal}, false
	}
}

// message returns the candidate-facing text for e in lang.
func (e sessionError) message(tr exam.Translator, lang string) string {
	if e.msgID != "" {
		return tr.T(lang, e.msgID)
	}
	return response.GetMessage(e.code)
}
