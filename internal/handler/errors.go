package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
)

// serviceErrors maps service sentinels to an HTTP status and API code.
// Order matters for errors that wrap more than one sentinel.
var serviceErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrAccessDenied, http.StatusForbidden, response.ErrForbidden},
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrAlreadyActive, http.StatusConflict, response.ErrExamSessionActive},
	{service.ErrAlreadyCompleted, http.StatusConflict, response.ErrExamCompleted},
	{service.ErrSessionExpired, http.StatusConflict, response.ErrExamTimeOver},
	{service.ErrRetakeDenied, http.StatusForbidden, response.ErrRetakeDenied},
	{service.ErrExamNotAvailable, http.StatusForbidden, response.ErrExamNotAvailable},
	{service.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions},
	{service.ErrSessionNotCompleted, http.StatusConflict, response.ErrExamNotCompleted},
	{service.ErrQuestionNotInSession, http.StatusBadRequest, response.ErrQuestionNotInSession},
	{service.ErrInvalidQuestion, http.StatusBadRequest, response.ErrInvalidQuestion},
	{service.ErrInvalidAttempts, http.StatusBadRequest, response.ErrValidation},
	{service.ErrDependencyExists, http.StatusConflict, response.ErrDependencyExists},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrAccountPending, http.StatusForbidden, response.ErrAccountPending},
	{service.ErrDuplicateUser, http.StatusConflict, response.ErrDuplicateUser},
	{service.ErrSessionAlreadyActive, http.StatusConflict, response.ErrSessionActive},
}

// resolveError returns the status and code for a service error. Unknown
// errors are internal.
func resolveError(err error) (int, response.ErrCode) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failService writes the error response for err. Internal errors are logged
// with the request route.
func failService(c *gin.Context, err error) {
	status, code := resolveError(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Msg("Request failed")
	}

	var active *service.ActiveSessionError
	if errors.As(err, &active) {
		response.FailWithData(c, status, code, gin.H{"session_id": active.SessionID})
		return
	}

	response.Fail(c, status, code)
}

// paramInt64 parses a positive integer path parameter and writes a 400 when it is not one.
func paramInt64(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// paramUUID parses a uuid path parameter and writes a 400 when it is not one.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
