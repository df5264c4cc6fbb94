package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
)

// QuestionService handles question authoring inside an admin's domains.
type QuestionService struct {
	questionRepo QuestionStore
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo QuestionStore) *QuestionService {
	return &QuestionService{questionRepo: questionRepo}
}

// List returns every question of a domain.
func (s *QuestionService) List(ctx context.Context, p model.Principal, domain model.Domain) ([]model.Question, error) {
	if !p.CanManage(domain) {
		return nil, ErrAccessDenied
	}
	questions, err := s.questionRepo.ListByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// Get returns one question the admin may manage.
func (s *QuestionService) Get(ctx context.Context, p model.Principal, id int64) (*model.Question, error) {
	if !p.IsAdmin() {
		return nil, ErrAccessDenied
	}
	q, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("get question", err)
	}
	if !p.CanManage(q.Domain) {
		return nil, ErrAccessDenied
	}
	return q, nil
}

// Create adds a question to a domain.
func (s *QuestionService) Create(ctx context.Context, p model.Principal, domain model.Domain, req model.QuestionRequest) (*model.Question, error) {
	if !p.CanManage(domain) {
		return nil, ErrAccessDenied
	}
	q, err := req.ToQuestion(domain)
	if err != nil {
		return nil, err
	}
	if err := s.questionRepo.Create(ctx, &q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	log.Info().Int64("question_id", q.ID).Str("domain", string(domain)).Int("admin_id", p.UserID).Msg("Question created")
	return &q, nil
}

// Update overwrites a question. Its domain cannot change.
func (s *QuestionService) Update(ctx context.Context, p model.Principal, id int64, req model.QuestionRequest) (*model.Question, error) {
	existing, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	q, err := req.ToQuestion(existing.Domain)
	if err != nil {
		return nil, err
	}
	q.ID = existing.ID
	q.CreatedAt = existing.CreatedAt
	if err := s.questionRepo.Update(ctx, &q); err != nil {
		return nil, notFound("update question", err)
	}
	return &q, nil
}

// Delete removes a question that no graded response refers to.
func (s *QuestionService) Delete(ctx context.Context, p model.Principal, id int64) error {
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	if err := s.questionRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrInUse) {
			return ErrDependencyExists
		}
		return notFound("delete question", err)
	}
	log.Info().Int64("question_id", id).Int("admin_id", p.UserID).Msg("Question deleted")
	return nil
}
