package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/stemsi/exstem-assess/internal/model"
)

// ErrInvalidAttempts is returned for a negative retake grant.
var ErrInvalidAttempts = errors.New("remaining attempts must not be negative")

// RetakeService lets admins grant extra attempts on single-attempt exams.
// Attempts are spent by ExamSessionService when a session starts.
type RetakeService struct {
	retakes RetakeStore
	exams   ExamStore
}

// NewRetakeService creates a new RetakeService.
func NewRetakeService(retakes RetakeStore, exams ExamStore) *RetakeService {
	return &RetakeService{retakes: retakes, exams: exams}
}

// Grant sets the remaining attempts of a student on an exam. A new value
// replaces the previous one.
func (s *RetakeService) Grant(ctx context.Context, p model.Principal, examID int64, userID, attempts int) (*model.RetakePermission, error) {
	if attempts < 0 {
		return nil, ErrInvalidAttempts
	}
	if _, err := s.managedExam(ctx, p, examID); err != nil {
		return nil, err
	}

	perm, err := s.retakes.Upsert(ctx, userID, examID, attempts)
	if err != nil {
		return nil, notFound("grant retake", err)
	}
	log.Info().
		Int64("exam_id", examID).
		Int("user_id", userID).
		Int("attempts", attempts).
		Int("admin_id", p.UserID).
		Msg("Retake permission granted")
	return perm, nil
}

// List returns every permission on an exam.
func (s *RetakeService) List(ctx context.Context, p model.Principal, examID int64) ([]model.RetakePermission, error) {
	if _, err := s.managedExam(ctx, p, examID); err != nil {
		return nil, err
	}
	perms, err := s.retakes.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list retakes: %w", err)
	}
	if perms == nil {
		perms = []model.RetakePermission{}
	}
	return perms, nil
}

func (s *RetakeService) managedExam(ctx context.Context, p model.Principal, examID int64) (*model.Exam, error) {
	if !p.IsAdmin() {
		return nil, ErrAccessDenied
	}
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, notFound("get exam", err)
	}
	if !p.CanManage(exam.Domain) {
		return nil, ErrAccessDenied
	}
	return exam, nil
}
