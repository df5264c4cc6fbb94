package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
)

// SessionStore persists exam sessions and their graded responses.
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	ListActiveByUser(ctx context.Context, userID int) ([]model.ExamSession, error)
	ListCompletedByUser(ctx context.Context, userID int) ([]model.ExamSession, error)
	HasCompletedAttempt(ctx context.Context, userID int, examID int64) (bool, error)
	CompletedExamIDs(ctx context.Context, userID int) ([]int64, error)
	Create(ctx context.Context, s *model.ExamSession, consumeRetake bool) error
	MarkInProgress(ctx context.Context, id uuid.UUID, totalQuestions int) (bool, error)
	Finalize(ctx context.Context, id uuid.UUID, grade model.GradeFunc) (*model.ExamSession, bool, error)
	ListResponses(ctx context.Context, sessionID uuid.UUID) ([]model.ExamResponse, error)
	ListCompletedByExam(ctx context.Context, examID int64) ([]model.SessionSummary, error)
	ListRecentCompleted(ctx context.Context, domains []model.Domain, limit int) ([]model.SessionSummary, error)
	AveragePercentageByDomain(ctx context.Context) (map[model.Domain]float64, error)
}

// QuestionStore persists questions.
type QuestionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Question, error)
	ListByIDs(ctx context.Context, ids []int64) ([]model.Question, error)
	ListByDomain(ctx context.Context, domain model.Domain) ([]model.Question, error)
	ListIDsByDomain(ctx context.Context, domain model.Domain) ([]int64, error)
	Create(ctx context.Context, q *model.Question) error
	Update(ctx context.Context, q *model.Question) error
	Delete(ctx context.Context, id int64) error
}

// ExamStore persists exams and their question membership.
type ExamStore interface {
	GetByID(ctx context.Context, id int64) (*model.Exam, error)
	ListByDomains(ctx context.Context, domains []model.Domain) ([]model.Exam, error)
	ListVisible(ctx context.Context, domain *model.Domain) ([]model.Exam, error)
	Create(ctx context.Context, e *model.Exam) error
	SetVisibility(ctx context.Context, id int64, visible bool) error
	QuestionIDs(ctx context.Context, examID int64) ([]int64, error)
	ReplaceQuestions(ctx context.Context, examID int64, domain model.Domain, ids []int64) (int, error)
}

// RetakeStore persists retake permissions.
type RetakeStore interface {
	Upsert(ctx context.Context, userID int, examID int64, attempts int) (*model.RetakePermission, error)
	Get(ctx context.Context, userID int, examID int64) (*model.RetakePermission, error)
	ListByExam(ctx context.Context, examID int64) ([]model.RetakePermission, error)
	RemainingByUser(ctx context.Context, userID int) (map[int64]int, error)
}

// DraftStore keeps autosaved answers of open sessions.
type DraftStore interface {
	Save(ctx context.Context, sessionID uuid.UUID, questionID int64, answer []string) error
	Load(ctx context.Context, sessionID uuid.UUID) (map[int64][]string, error)
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

// StudentStore persists student accounts.
type StudentStore interface {
	GetByID(ctx context.Context, id int) (*model.Student, error)
	GetByUsername(ctx context.Context, username string) (*model.Student, error)
	Create(ctx context.Context, s *model.Student) error
	ListPending(ctx context.Context) ([]model.Student, error)
	Approve(ctx context.Context, id int) error
	DeletePending(ctx context.Context, id int) error
	CountPending(ctx context.Context) (int, error)
}

// AdminStore persists admin accounts.
type AdminStore interface {
	GetByID(ctx context.Context, id int) (*model.Admin, error)
	GetByUsername(ctx context.Context, username string) (*model.Admin, error)
	Create(ctx context.Context, a *model.Admin) error
	List(ctx context.Context) ([]model.Admin, error)
}

// Clock supplies the current time. Each operation reads it once.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

var (
	_ SessionStore  = (*repository.ExamSessionRepository)(nil)
	_ QuestionStore = (*repository.QuestionRepository)(nil)
	_ ExamStore     = (*repository.ExamRepository)(nil)
	_ RetakeStore   = (*repository.RetakeRepository)(nil)
	_ DraftStore    = (*repository.DraftRepository)(nil)
	_ StudentStore  = (*repository.StudentRepository)(nil)
	_ AdminStore    = (*repository.AdminRepository)(nil)
)

// notFound maps repository.ErrNotFound to ErrNotFound and wraps anything
// else with op.
func notFound(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
