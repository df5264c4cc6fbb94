package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore backs every store interface used by the services with maps. One
// mutex guards everything, which also serializes Finalize the way the row
// lock does in Postgres.
type memStore struct {
	mu sync.Mutex

	sessions  map[uuid.UUID]*model.ExamSession
	responses map[uuid.UUID][]model.ExamResponse
	questions map[int64]model.Question
	exams     map[int64]*model.Exam
	members   map[int64][]int64
	retakes   map[[2]int64]*model.RetakePermission
	drafts    map[uuid.UUID]map[int64][]string
	students  map[int]*model.Student

	nextQuestionID int64
	nextExamID     int64
	nextResponseID int64
	nextStudentID  int

	gradeCalls int
	// draftErr makes DraftStore.Load fail, like an unreachable Redis.
	draftErr error
}

func newMemStore() *memStore {
	return &memStore{
		sessions:  make(map[uuid.UUID]*model.ExamSession),
		responses: make(map[uuid.UUID][]model.ExamResponse),
		questions: make(map[int64]model.Question),
		exams:     make(map[int64]*model.Exam),
		members:   make(map[int64][]int64),
		retakes:   make(map[[2]int64]*model.RetakePermission),
		drafts:    make(map[uuid.UUID]map[int64][]string),
		students:  make(map[int]*model.Student),
	}
}

// ─── seed helpers ───────────────────────────────────────────────────

func (m *memStore) addQuestion(q model.Question) model.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextQuestionID++
	q.ID = m.nextQuestionID
	m.questions[q.ID] = q
	return q
}

func (m *memStore) addExam(e model.Exam, questionIDs ...int64) *model.Exam {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextExamID++
	e.ID = m.nextExamID
	e.QuestionCount = len(questionIDs)
	m.exams[e.ID] = &e
	m.members[e.ID] = append([]int64(nil), questionIDs...)
	return &e
}

func (m *memStore) remaining(userID int, examID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.retakes[[2]int64{int64(userID), examID}]; ok {
		return p.RemainingAttempts
	}
	return -1
}

// ─── SessionStore ───────────────────────────────────────────────────

type sessionFake struct{ *memStore }

func (f sessionFake) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f sessionFake) filter(keep func(*model.ExamSession) bool) []model.ExamSession {
	var out []model.ExamSession
	for _, s := range f.sessions {
		if keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (f sessionFake) ListActiveByUser(_ context.Context, userID int) ([]model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter(func(s *model.ExamSession) bool { return s.UserID == userID && !s.IsCompleted() }), nil
}

func (f sessionFake) ListCompletedByUser(_ context.Context, userID int) ([]model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter(func(s *model.ExamSession) bool { return s.UserID == userID && s.IsCompleted() }), nil
}

func (f sessionFake) HasCompletedAttempt(_ context.Context, userID int, examID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID && s.ExamID != nil && *s.ExamID == examID && s.IsCompleted() {
			return true, nil
		}
	}
	return false, nil
}

func (f sessionFake) CompletedExamIDs(_ context.Context, userID int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[int64]bool)
	var out []int64
	for _, s := range f.sessions {
		if s.UserID == userID && s.ExamID != nil && s.IsCompleted() && !seen[*s.ExamID] {
			seen[*s.ExamID] = true
			out = append(out, *s.ExamID)
		}
	}
	return out, nil
}

func (f sessionFake) Create(_ context.Context, s *model.ExamSession, consumeRetake bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sessions {
		if existing.UserID == s.UserID && !existing.IsCompleted() {
			return repository.ErrActiveSessionExists
		}
	}
	if consumeRetake {
		if s.ExamID == nil {
			return repository.ErrRetakeUnavailable
		}
		p, ok := f.retakes[[2]int64{int64(s.UserID), *s.ExamID}]
		if !ok || p.RemainingAttempts <= 0 {
			return repository.ErrRetakeUnavailable
		}
		p.RemainingAttempts--
	}
	cp := *s
	cp.QuestionIDs = append([]int64(nil), s.QuestionIDs...)
	f.sessions[s.ID] = &cp
	return nil
}

func (f sessionFake) MarkInProgress(_ context.Context, id uuid.UUID, total int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status != model.SessionStatusCreated {
		return false, nil
	}
	s.Status = model.SessionStatusInProgress
	s.TotalQuestions = total
	return true, nil
}

func (f sessionFake) Finalize(_ context.Context, id uuid.UUID, grade model.GradeFunc) (*model.ExamSession, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if s.IsCompleted() {
		cp := *s
		return &cp, true, nil
	}

	locked := *s
	f.gradeCalls++
	g, err := grade(&locked)
	if err != nil {
		return nil, false, err
	}
	for _, r := range g.Responses {
		f.nextResponseID++
		r.ID = f.nextResponseID
		f.responses[id] = append(f.responses[id], r)
	}
	completedAt := g.CompletedAt
	s.Status = model.SessionStatusCompleted
	s.Score = g.Score
	s.MaxScore = g.MaxScore
	s.ExpiredOnSubmit = g.ExpiredOnSubmit
	s.CompletedAt = &completedAt

	cp := *s
	return &cp, false, nil
}

func (f sessionFake) ListResponses(_ context.Context, id uuid.UUID) ([]model.ExamResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ExamResponse(nil), f.responses[id]...), nil
}

func (f sessionFake) summaries(keep func(*model.ExamSession) bool) []model.SessionSummary {
	var out []model.SessionSummary
	for _, s := range f.filter(keep) {
		pct := model.Percentage(s.Score, s.MaxScore)
		out = append(out, model.SessionSummary{
			SessionID:      s.ID,
			UserID:         s.UserID,
			Domain:         s.Domain,
			ExamID:         s.ExamID,
			Score:          s.Score,
			MaxScore:       s.MaxScore,
			TotalQuestions: s.TotalQuestions,
			Percentage:     pct,
			Band:           model.BandFor(pct),
			StartTime:      s.StartTime,
			CompletedAt:    s.CompletedAt,
		})
	}
	return out
}

func (f sessionFake) ListCompletedByExam(_ context.Context, examID int64) ([]model.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaries(func(s *model.ExamSession) bool {
		return s.IsCompleted() && s.ExamID != nil && *s.ExamID == examID
	}), nil
}

func (f sessionFake) ListRecentCompleted(_ context.Context, domains []model.Domain, limit int) ([]model.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowed := make(map[model.Domain]bool)
	for _, d := range domains {
		allowed[d] = true
	}
	out := f.summaries(func(s *model.ExamSession) bool { return s.IsCompleted() && allowed[s.Domain] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f sessionFake) AveragePercentageByDomain(_ context.Context) (map[model.Domain]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sums := make(map[model.Domain]float64)
	counts := make(map[model.Domain]int)
	for _, s := range f.sessions {
		if s.IsCompleted() {
			sums[s.Domain] += model.Percentage(s.Score, s.MaxScore)
			counts[s.Domain]++
		}
	}
	out := make(map[model.Domain]float64)
	for d, sum := range sums {
		out[d] = sum / float64(counts[d])
	}
	return out, nil
}

// ─── QuestionStore ──────────────────────────────────────────────────

type questionFake struct{ *memStore }

func (f questionFake) GetByID(_ context.Context, id int64) (*model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.questions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &q, nil
}

func (f questionFake) ListByIDs(_ context.Context, ids []int64) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Question
	// Reverse order, callers must not rely on it.
	for i := len(ids) - 1; i >= 0; i-- {
		if q, ok := f.questions[ids[i]]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f questionFake) ListByDomain(_ context.Context, domain model.Domain) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Question
	for _, q := range f.questions {
		if q.Domain == domain {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f questionFake) ListIDsByDomain(ctx context.Context, domain model.Domain) ([]int64, error) {
	qs, _ := f.ListByDomain(ctx, domain)
	ids := make([]int64, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

func (f questionFake) Create(_ context.Context, q *model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextQuestionID++
	q.ID = f.nextQuestionID
	f.questions[q.ID] = *q
	return nil
}

func (f questionFake) Update(_ context.Context, q *model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.questions[q.ID]; !ok {
		return repository.ErrNotFound
	}
	f.questions[q.ID] = *q
	return nil
}

func (f questionFake) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.questions[id]; !ok {
		return repository.ErrNotFound
	}
	for _, rs := range f.responses {
		for _, r := range rs {
			if r.QuestionID == id {
				return repository.ErrInUse
			}
		}
	}
	delete(f.questions, id)
	return nil
}

// ─── ExamStore ──────────────────────────────────────────────────────

type examFake struct{ *memStore }

func (f examFake) GetByID(_ context.Context, id int64) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f examFake) ListByDomains(_ context.Context, domains []model.Domain) ([]model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowed := make(map[model.Domain]bool)
	for _, d := range domains {
		allowed[d] = true
	}
	var out []model.Exam
	for _, e := range f.exams {
		if allowed[e.Domain] {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f examFake) ListVisible(_ context.Context, domain *model.Domain) ([]model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Exam
	for _, e := range f.exams {
		if e.IsVisible && (domain == nil || e.Domain == *domain) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f examFake) Create(_ context.Context, e *model.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextExamID++
	e.ID = f.nextExamID
	cp := *e
	f.exams[e.ID] = &cp
	return nil
}

func (f examFake) SetVisibility(_ context.Context, id int64, visible bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.IsVisible = visible
	return nil
}

func (f examFake) QuestionIDs(_ context.Context, examID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.members[examID]...), nil
}

func (f examFake) ReplaceQuestions(_ context.Context, examID int64, domain model.Domain, ids []int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[examID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	seen := make(map[int64]bool)
	var bound []int64
	for _, id := range ids {
		q, ok := f.questions[id]
		if ok && q.Domain == domain && !seen[id] {
			seen[id] = true
			bound = append(bound, id)
		}
	}
	f.members[examID] = bound
	e.QuestionCount = len(bound)
	return len(bound), nil
}

// ─── RetakeStore ────────────────────────────────────────────────────

type retakeFake struct{ *memStore }

func (f retakeFake) Upsert(_ context.Context, userID int, examID int64, attempts int) (*model.RetakePermission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.exams[examID]; !ok {
		return nil, repository.ErrNotFound
	}
	p := &model.RetakePermission{UserID: userID, ExamID: examID, RemainingAttempts: attempts}
	f.retakes[[2]int64{int64(userID), examID}] = p
	cp := *p
	return &cp, nil
}

func (f retakeFake) Get(_ context.Context, userID int, examID int64) (*model.RetakePermission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.retakes[[2]int64{int64(userID), examID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f retakeFake) ListByExam(_ context.Context, examID int64) ([]model.RetakePermission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.RetakePermission
	for k, p := range f.retakes {
		if k[1] == examID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f retakeFake) RemainingByUser(_ context.Context, userID int) (map[int64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]int)
	for k, p := range f.retakes {
		if k[0] == int64(userID) {
			out[k[1]] = p.RemainingAttempts
		}
	}
	return out, nil
}

// ─── DraftStore ─────────────────────────────────────────────────────

type draftFake struct{ *memStore }

func (f draftFake) Save(_ context.Context, sessionID uuid.UUID, questionID int64, answer []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.drafts[sessionID] == nil {
		f.drafts[sessionID] = make(map[int64][]string)
	}
	f.drafts[sessionID][questionID] = append([]string(nil), answer...)
	return nil
}

func (f draftFake) Load(_ context.Context, sessionID uuid.UUID) (map[int64][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draftErr != nil {
		return nil, f.draftErr
	}
	out := make(map[int64][]string)
	for k, v := range f.drafts[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (f draftFake) Clear(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, sessionID)
	return nil
}

// ─── StudentStore ───────────────────────────────────────────────────

type studentFake struct{ *memStore }

func (f studentFake) GetByID(_ context.Context, id int) (*model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f studentFake) GetByUsername(_ context.Context, username string) (*model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.students {
		if s.Username == username {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f studentFake) Create(_ context.Context, s *model.Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.students {
		if existing.Username == s.Username || existing.Email == s.Email {
			return repository.ErrDuplicate
		}
	}
	f.nextStudentID++
	s.ID = f.nextStudentID
	cp := *s
	f.students[s.ID] = &cp
	return nil
}

func (f studentFake) ListPending(_ context.Context) ([]model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Student
	for _, s := range f.students {
		if !s.IsApproved {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f studentFake) Approve(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok || s.IsApproved {
		return repository.ErrNotFound
	}
	s.IsApproved = true
	return nil
}

func (f studentFake) DeletePending(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok || s.IsApproved {
		return repository.ErrNotFound
	}
	delete(f.students, id)
	return nil
}

func (f studentFake) CountPending(ctx context.Context) (int, error) {
	pending, _ := f.ListPending(ctx)
	return len(pending), nil
}

// plainHasher stores passwords with a prefix so tests avoid bcrypt cost.
type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) CheckPassword(hash, password string) error {
	if hash != "plain:"+password {
		return ErrInvalidCredentials
	}
	return nil
}
