package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/stemsi/exstem-assess/internal/model"
)

// ExamService handles exam authoring, student listings and result aggregation.
type ExamService struct {
	exams    ExamStore
	sessions SessionStore
	retakes  RetakeStore
}

// NewExamService creates a new ExamService.
func NewExamService(exams ExamStore, sessions SessionStore, retakes RetakeStore) *ExamService {
	return &ExamService{exams: exams, sessions: sessions, retakes: retakes}
}

// ListForAdmin returns the exams of one domain, or of every domain in scope
// when domain is nil.
func (s *ExamService) ListForAdmin(ctx context.Context, p model.Principal, domain *model.Domain) ([]model.Exam, error) {
	if !p.IsAdmin() {
		return nil, ErrAccessDenied
	}
	domains := p.Scope.Domains()
	if domain != nil {
		if !p.CanManage(*domain) {
			return nil, ErrAccessDenied
		}
		domains = []model.Domain{*domain}
	}

	exams, err := s.exams.ListByDomains(ctx, domains)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, nil
}

// Get returns one exam the admin may manage.
func (s *ExamService) Get(ctx context.Context, p model.Principal, id int64) (*model.Exam, error) {
	if !p.IsAdmin() {
		return nil, ErrAccessDenied
	}
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("get exam", err)
	}
	if !p.CanManage(exam.Domain) {
		return nil, ErrAccessDenied
	}
	return exam, nil
}

// Create adds a hidden exam. Exams are single-attempt unless told otherwise.
func (s *ExamService) Create(ctx context.Context, p model.Principal, req model.CreateExamRequest) (*model.Exam, error) {
	domain := model.Domain(req.Domain)
	if !domain.Valid() {
		return nil, ErrNotFound
	}
	if !p.CanManage(domain) {
		return nil, ErrAccessDenied
	}

	exam := &model.Exam{
		Name:          strings.TrimSpace(req.Name),
		Domain:        domain,
		SingleAttempt: true,
	}
	if req.SingleAttempt != nil {
		exam.SingleAttempt = *req.SingleAttempt
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	log.Info().Int64("exam_id", exam.ID).Str("domain", string(domain)).Int("admin_id", p.UserID).Msg("Exam created")
	return exam, nil
}

// SetVisibility shows or hides an exam.
func (s *ExamService) SetVisibility(ctx context.Context, p model.Principal, id int64, visible bool) (*model.Exam, error) {
	exam, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.exams.SetVisibility(ctx, id, visible); err != nil {
		return nil, notFound("set visibility", err)
	}
	exam.IsVisible = visible
	return exam, nil
}

// QuestionPaper returns the exam's question ids in display order.
func (s *ExamService) QuestionPaper(ctx context.Context, p model.Principal, id int64) ([]int64, error) {
	if _, err := s.Get(ctx, p, id); err != nil {
		return nil, err
	}
	ids, err := s.exams.QuestionIDs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("exam questions: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// SetQuestionPaper replaces the exam's questions with ids, in that order.
// Ids outside the exam's domain are dropped. Returns the number bound.
func (s *ExamService) SetQuestionPaper(ctx context.Context, p model.Principal, id int64, questionIDs []int64) (int, error) {
	exam, err := s.Get(ctx, p, id)
	if err != nil {
		return 0, err
	}
	n, err := s.exams.ReplaceQuestions(ctx, exam.ID, exam.Domain, questionIDs)
	if err != nil {
		return 0, notFound("replace exam questions", err)
	}
	if n < len(questionIDs) {
		log.Warn().Int64("exam_id", exam.ID).Int("requested", len(questionIDs)).Int("bound", n).
			Msg("Question paper skipped ids outside the exam domain")
	}
	return n, nil
}

// ListForStudent returns visible exams with the student's attempt state.
func (s *ExamService) ListForStudent(ctx context.Context, p model.Principal, domain *model.Domain) ([]model.StudentExam, error) {
	if !p.IsStudent() {
		return nil, ErrAccessDenied
	}
	exams, err := s.exams.ListVisible(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("list visible exams: %w", err)
	}
	completedIDs, err := s.sessions.CompletedExamIDs(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("completed exams: %w", err)
	}
	remaining, err := s.retakes.RemainingByUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("retake permissions: %w", err)
	}

	completed := make(map[int64]bool, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = true
	}

	out := make([]model.StudentExam, 0, len(exams))
	for _, e := range exams {
		se := model.StudentExam{Exam: e, Attempted: completed[e.ID]}
		if n, ok := remaining[e.ID]; ok {
			se.RemainingAttempts = &n
		}
		se.CanStart = e.QuestionCount > 0 &&
			(!se.Attempted || !e.SingleAttempt || (se.RemainingAttempts != nil && *se.RemainingAttempts > 0))
		out = append(out, se)
	}
	return out, nil
}

// Results aggregates every completed session of an exam.
func (s *ExamService) Results(ctx context.Context, p model.Principal, id int64) (*model.ExamResults, error) {
	exam, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}

	sessions, err := s.sessions.ListCompletedByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list exam sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.SessionSummary{}
	}

	res := &model.ExamResults{
		Exam:     *exam,
		Sessions: sessions,
		Distribution: map[model.ScoreBand]int{
			model.BandExcellent: 0,
			model.BandGood:      0,
			model.BandFair:      0,
			model.BandPoor:      0,
		},
		Retakes: make(map[int]int),
	}

	students := make(map[int]struct{})
	for _, sess := range sessions {
		students[sess.UserID] = struct{}{}
		res.Distribution[sess.Band]++
	}
	res.UniqueStudents = len(students)

	perms, err := s.retakes.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list retakes: %w", err)
	}
	for _, perm := range perms {
		res.Retakes[perm.UserID] = perm.RemainingAttempts
	}

	if p.Scope.IsAll() {
		if res.DomainAverages, err = s.sessions.AveragePercentageByDomain(ctx); err != nil {
			return nil, fmt.Errorf("domain averages: %w", err)
		}
	}
	return res, nil
}
