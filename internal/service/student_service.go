package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) error
}

// StudentService handles student accounts: registration, approval and login checks.
type StudentService struct {
	studentRepo StudentStore
	hasher      PasswordHasher
}

// NewStudentService creates a new StudentService.
func NewStudentService(studentRepo StudentStore, hasher PasswordHasher) *StudentService {
	return &StudentService{studentRepo: studentRepo, hasher: hasher}
}

// GetByID retrieves a student by ID.
func (s *StudentService) GetByID(ctx context.Context, id int) (*model.Student, error) {
	st, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("get student", err)
	}
	return st, nil
}

// Register creates a pending student account.
func (s *StudentService) Register(ctx context.Context, req model.RegisterStudentRequest) (*model.Student, error) {
	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	st := &model.Student{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
	}
	if err := s.studentRepo.Create(ctx, st); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("create student: %w", err)
	}

	log.Info().Int("student_id", st.ID).Str("username", st.Username).Msg("Student registered, waiting for approval")
	return st, nil
}

// Authenticate checks credentials. Unknown usernames and wrong passwords
// both yield ErrInvalidCredentials; unapproved accounts ErrAccountPending.
func (s *StudentService) Authenticate(ctx context.Context, username, password string) (*model.Student, error) {
	st, err := s.studentRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	if err := s.hasher.CheckPassword(st.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !st.IsApproved {
		return nil, ErrAccountPending
	}
	return st, nil
}

// ListPending lists registrations waiting for an admin decision.
func (s *StudentService) ListPending(ctx context.Context, p model.Principal) ([]model.Student, error) {
	if !p.IsAdmin() {
		return nil, ErrAccessDenied
	}
	students, err := s.studentRepo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending students: %w", err)
	}
	if students == nil {
		students = []model.Student{}
	}
	return students, nil
}

// Approve lets a pending student log in.
func (s *StudentService) Approve(ctx context.Context, p model.Principal, id int) error {
	if !p.IsAdmin() {
		return ErrAccessDenied
	}
	if err := s.studentRepo.Approve(ctx, id); err != nil {
		return notFound("approve student", err)
	}
	log.Info().Int("student_id", id).Int("admin_id", p.UserID).Msg("Student approved")
	return nil
}

// Reject deletes a pending registration.
func (s *StudentService) Reject(ctx context.Context, p model.Principal, id int) error {
	if !p.IsAdmin() {
		return ErrAccessDenied
	}
	if err := s.studentRepo.DeletePending(ctx, id); err != nil {
		return notFound("reject student", err)
	}
	log.Info().Int("student_id", id).Int("admin_id", p.UserID).Msg("Student registration rejected")
	return nil
}
