package service

import (
	"errors"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assess/internal/model"
)

// Errors returned by the services. Handlers map them to API error codes.
var (
	ErrAccessDenied         = errors.New("access denied")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyActive        = errors.New("another exam session is already active")
	ErrAlreadyCompleted     = errors.New("exam session is already completed")
	ErrSessionExpired       = errors.New("exam session time is over")
	ErrRetakeDenied         = errors.New("no retake permission left for this exam")
	ErrExamNotAvailable     = errors.New("exam is not available")
	ErrNoQuestions          = errors.New("no questions available")
	ErrSessionNotCompleted  = errors.New("exam session is not completed yet")
	ErrQuestionNotInSession = errors.New("question does not belong to this session")
	ErrInvalidQuestion      = model.ErrInvalidQuestion
	ErrDependencyExists     = errors.New("record is still referenced")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountPending       = errors.New("account is waiting for approval")
	ErrDuplicateUser        = errors.New("username or email already registered")
	ErrSessionAlreadyActive = errors.New("another login is already active, please contact admin to reset")
	ErrSessionInvalidated   = errors.New("login session was reset or replaced")
)

// ActiveSessionError is returned when a student tries to start a session
// while another one is still open. It matches ErrAlreadyActive.
type ActiveSessionError struct {
	SessionID uuid.UUID
}

func (e *ActiveSessionError) Error() string {
	return ErrAlreadyActive.Error() + ": " + e.SessionID.String()
}

func (e *ActiveSessionError) Is(target error) bool {
	return target == ErrAlreadyActive
}
