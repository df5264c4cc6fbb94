package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-assess/internal/middleware"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
	"github.com/stemsi/exstem-assess/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// asCaller installs claims the way RequireStudentJWT / RequireAdminJWT do.
func asCaller(claims *service.Claims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, claims)
		c.Next()
	}
}

func adminClaims(domains ...model.Domain) *service.Claims {
	c := &service.Claims{TokenType: service.TokenTypeAdmin, UserID: 1}
	if len(domains) == 0 {
		c.AllDomains = true
	}
	for _, d := range domains {
		c.Domains = append(c.Domains, string(d))
	}
	return c
}

func studentClaims(id int) *service.Claims {
	return &service.Claims{TokenType: service.TokenTypeStudent, UserID: id}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   response.ErrCode  `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func serve(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, w.Body.String())
	}
	return w, env
}

func errCode(env envelope) response.ErrCode {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

// ─── Fakes ──────────────────────────────────────────────────────────

type questionStore struct {
	mu        sync.Mutex
	nextID    int64
	questions map[int64]model.Question
	answered  map[int64]bool
}

func newQuestionStore() *questionStore {
	return &questionStore{questions: make(map[int64]model.Question), answered: make(map[int64]bool)}
}

func (s *questionStore) GetByID(_ context.Context, id int64) (*model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &q, nil
}

func (s *questionStore) ListByIDs(_ context.Context, ids []int64) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Question
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *questionStore) ListByDomain(_ context.Context, d model.Domain) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Question
	for _, q := range s.questions {
		if q.Domain == d {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *questionStore) ListIDsByDomain(ctx context.Context, d model.Domain) ([]int64, error) {
	qs, _ := s.ListByDomain(ctx, d)
	ids := make([]int64, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

func (s *questionStore) Create(_ context.Context, q *model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	q.ID = s.nextID
	s.questions[q.ID] = *q
	return nil
}

func (s *questionStore) Update(_ context.Context, q *model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[q.ID]; !ok {
		return repository.ErrNotFound
	}
	s.questions[q.ID] = *q
	return nil
}

func (s *questionStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answered[id] {
		return repository.ErrInUse
	}
	if _, ok := s.questions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.questions, id)
	return nil
}

// sessionStore keeps sessions in memory. Methods the portal routes under
// test never reach are left to the embedded interface.
type sessionStore struct {
	service.SessionStore
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.ExamSession
}

func (s *sessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *sessionStore) Finalize(_ context.Context, id uuid.UUID, grade model.GradeFunc) (*model.ExamSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if sess.IsCompleted() {
		cp := *sess
		return &cp, true, nil
	}
	g, err := grade(sess)
	if err != nil {
		return nil, false, err
	}
	completedAt := g.CompletedAt
	sess.Status = model.SessionStatusCompleted
	sess.Score = g.Score
	sess.MaxScore = g.MaxScore
	sess.CompletedAt = &completedAt
	cp := *sess
	return &cp, false, nil
}

type noDrafts struct{}

func (noDrafts) Save(context.Context, uuid.UUID, int64, []string) error { return nil }

func (noDrafts) Load(context.Context, uuid.UUID) (map[int64][]string, error) {
	return map[int64][]string{}, nil
}

func (noDrafts) Clear(context.Context, uuid.UUID) error { return nil }

type clockAt time.Time

func (c clockAt) Now() time.Time { return time.Time(c) }

// portalFixture is one open exam session of student 7 over two questions.
type portalFixture struct {
	router  *gin.Engine
	session *model.ExamSession
	store   *sessionStore
}

func newPortalFixture(t *testing.T) *portalFixture {
	t.Helper()
	questions := newQuestionStore()
	single := model.Question{
		Domain: model.DomainWebDev, Text: "Create verb?", Type: model.SingleChoice{},
		Options:   []model.QuestionOption{{Label: "A", Text: "GET"}, {Label: "B", Text: "POST"}},
		AnswerKey: []string{"B"}, Points: 1,
	}
	multi := model.Question{
		Domain: model.DomainWebDev, Text: "Idempotent verbs?", Type: model.MultiChoice{},
		Options:   []model.QuestionOption{{Label: "A", Text: "PUT"}, {Label: "B", Text: "POST"}, {Label: "C", Text: "DELETE"}},
		AnswerKey: []string{"A", "C"}, Points: 1,
	}
	for _, q := range []*model.Question{&single, &multi} {
		if err := questions.Create(context.Background(), q); err != nil {
			t.Fatal(err)
		}
	}

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sess := &model.ExamSession{
		ID: uuid.New(), UserID: 7, Domain: model.DomainWebDev,
		StartTime: now, EndTime: now.Add(30 * time.Minute),
		Status: model.SessionStatusInProgress, TotalQuestions: 2,
		QuestionIDs: []int64{single.ID, multi.ID},
	}
	store := &sessionStore{sessions: map[uuid.UUID]*model.ExamSession{sess.ID: sess}}

	svc := service.NewExamSessionService(store, questions, nil, noDrafts{}, clockAt(now.Add(5*time.Minute)),
		service.SessionConfig{Duration: 30 * time.Minute, SubmitGrace: 30 * time.Second})
	h := NewStudentPortalHandler(svc, nil)

	r := gin.New()
	student := r.Group("/student", asCaller(studentClaims(7)))
	student.GET("/sessions/:id", h.GetSession)
	student.POST("/sessions/:id/submit", h.SubmitSession)
	return &portalFixture{router: r, session: sess, store: store}
}

// ─── Error mapping ──────────────────────────────────────────────────

func TestResolveError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
	}{
		{"denied", service.ErrAccessDenied, http.StatusForbidden, response.ErrForbidden},
		{"wrapped not found", fmt.Errorf("get exam: %w", service.ErrNotFound), http.StatusNotFound, response.ErrNotFound},
		{"active session", &service.ActiveSessionError{SessionID: uuid.New()}, http.StatusConflict, response.ErrExamSessionActive},
		{"retake", service.ErrRetakeDenied, http.StatusForbidden, response.ErrRetakeDenied},
		{"expired", service.ErrSessionExpired, http.StatusConflict, response.ErrExamTimeOver},
		{"invalid question", fmt.Errorf("%w: no options", model.ErrInvalidQuestion), http.StatusBadRequest, response.ErrInvalidQuestion},
		{"pending", service.ErrAccountPending, http.StatusForbidden, response.ErrAccountPending},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := resolveError(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("resolveError = (%d, %s), want (%d, %s)", status, code, tt.status, tt.code)
			}
		})
	}
}

func TestFailServiceIncludesActiveSessionID(t *testing.T) {
	id := uuid.New()
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		failService(c, fmt.Errorf("start: %w", &service.ActiveSessionError{SessionID: id}))
	})

	w, env := serve(t, r, http.MethodGet, "/x", nil)
	if w.Code != http.StatusConflict || errCode(env) != response.ErrExamSessionActive {
		t.Fatalf("got %d %s", w.Code, errCode(env))
	}
	var data struct {
		SessionID uuid.UUID `json:"session_id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.SessionID != id {
		t.Errorf("session_id = %s, want %s", data.SessionID, id)
	}
}

// ─── Pagination ─────────────────────────────────────────────────────

func TestPaginate(t *testing.T) {
	items := make([]int, 45)
	for i := range items {
		items[i] = i
	}
	tests := []struct {
		query     string
		wantLen   int
		wantFirst int
		wantPages int
	}{
		{"", 20, 0, 3},
		{"?page=3", 5, 40, 3},
		{"?page=9", 0, -1, 3},
		{"?per_page=500", 45, 0, 1},
		{"?page=-1&per_page=abc", 20, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)

			page, p := paginate(c, items)
			if len(page) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(page), tt.wantLen)
			}
			if tt.wantFirst >= 0 && page[0] != tt.wantFirst {
				t.Errorf("first = %d, want %d", page[0], tt.wantFirst)
			}
			if p.TotalItems != 45 || p.TotalPages != tt.wantPages {
				t.Errorf("pagination = %+v", p)
			}
		})
	}
}

// ─── Questions ──────────────────────────────────────────────────────

func questionRouter(store *questionStore, claims *service.Claims) *gin.Engine {
	h := NewQuestionHandler(service.NewQuestionService(store))
	r := gin.New()
	admin := r.Group("/admin", asCaller(claims))
	domain := admin.Group("/domains/:domain", middleware.RequireDomainAccess("domain"))
	domain.GET("/questions", h.ListQuestions)
	domain.POST("/questions", h.AddQuestion)
	admin.PUT("/questions/:question_id", h.UpdateQuestion)
	admin.DELETE("/questions/:question_id", h.DeleteQuestion)
	return r
}

func validQuestion() map[string]any {
	return map[string]any{
		"question_text": "Pick B",
		"question_type": "mcq_single",
		"options":       []map[string]string{{"label": "A", "text": "a"}, {"label": "B", "text": "b"}},
		"answer_key":    []string{"B"},
	}
}

func TestAddQuestion(t *testing.T) {
	tests := []struct {
		name   string
		claims *service.Claims
		path   string
		body   map[string]any
		status int
		code   response.ErrCode
	}{
		{"created", adminClaims(model.DomainWebDev), "/admin/domains/web_dev/questions", validQuestion(), http.StatusCreated, ""},
		{"other domain", adminClaims(model.DomainML), "/admin/domains/web_dev/questions", validQuestion(), http.StatusForbidden, response.ErrDomainForbidden},
		{"unknown domain", adminClaims(), "/admin/domains/cooking/questions", validQuestion(), http.StatusBadRequest, response.ErrInvalidDomain},
		{"bad type", adminClaims(), "/admin/domains/ml/questions", map[string]any{
			"question_text": "x", "question_type": "essay",
		}, http.StatusBadRequest, response.ErrValidation},
		{"answer not an option", adminClaims(), "/admin/domains/ml/questions", map[string]any{
			"question_text": "x", "question_type": "mcq_single",
			"options":    []map[string]string{{"label": "A", "text": "a"}, {"label": "B", "text": "b"}},
			"answer_key": []string{"D"},
		}, http.StatusBadRequest, response.ErrInvalidQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newQuestionStore()
			w, env := serve(t, questionRouter(store, tt.claims), http.MethodPost, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if errCode(env) != tt.code {
				t.Errorf("code = %s, want %s", errCode(env), tt.code)
			}
			if tt.status == http.StatusCreated && len(store.questions) != 1 {
				t.Errorf("stored %d questions, want 1", len(store.questions))
			}
		})
	}
}

func TestListQuestionsIncludesAnswerKey(t *testing.T) {
	store := newQuestionStore()
	r := questionRouter(store, adminClaims())
	if w, _ := serve(t, r, http.MethodPost, "/admin/domains/web_dev/questions", validQuestion()); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	w, env := serve(t, r, http.MethodGet, "/admin/domains/web_dev/questions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var data struct {
		Questions []struct {
			ID        int64    `json:"id"`
			AnswerKey []string `json:"answer_key"`
		} `json:"questions"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Questions) != 1 || len(data.Questions[0].AnswerKey) != 1 || data.Questions[0].AnswerKey[0] != "B" {
		t.Errorf("questions = %+v", data.Questions)
	}
}

func TestDeleteAnsweredQuestion(t *testing.T) {
	store := newQuestionStore()
	r := questionRouter(store, adminClaims())
	serve(t, r, http.MethodPost, "/admin/domains/web_dev/questions", validQuestion())
	store.answered[1] = true

	w, env := serve(t, r, http.MethodDelete, "/admin/questions/1", nil)
	if w.Code != http.StatusConflict || errCode(env) != response.ErrDependencyExists {
		t.Fatalf("got %d %s", w.Code, errCode(env))
	}

	w, env = serve(t, r, http.MethodDelete, "/admin/questions/abc", nil)
	if w.Code != http.StatusBadRequest || errCode(env) != response.ErrInvalidID {
		t.Fatalf("got %d %s", w.Code, errCode(env))
	}

	w, env = serve(t, r, http.MethodDelete, "/admin/questions/99", nil)
	if w.Code != http.StatusNotFound || errCode(env) != response.ErrNotFound {
		t.Fatalf("got %d %s", w.Code, errCode(env))
	}
}

func TestUpdateQuestionOutOfScope(t *testing.T) {
	store := newQuestionStore()
	serve(t, questionRouter(store, adminClaims()), http.MethodPost, "/admin/domains/web_dev/questions", validQuestion())

	w, env := serve(t, questionRouter(store, adminClaims(model.DomainML)), http.MethodPut, "/admin/questions/1", validQuestion())
	if w.Code != http.StatusForbidden || errCode(env) != response.ErrForbidden {
		t.Fatalf("got %d %s", w.Code, errCode(env))
	}
}

// ─── Student portal ─────────────────────────────────────────────────

func TestStartSessionRequiresTarget(t *testing.T) {
	h := NewStudentPortalHandler(nil, nil)
	r := gin.New()
	r.POST("/sessions", asCaller(studentClaims(7)), h.StartSession)

	tests := []struct {
		name string
		body any
	}{
		{"empty object", map[string]any{}},
		{"bad domain", map[string]any{"domain": "cooking"}},
		{"bad exam id", map[string]any{"exam_id": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := serve(t, r, http.MethodPost, "/sessions", tt.body)
			if w.Code != http.StatusBadRequest || errCode(env) != response.ErrValidation {
				t.Fatalf("got %d %s (%s)", w.Code, errCode(env), w.Body.String())
			}
		})
	}
}

func TestSubmitSessionSkipsUnusableKeys(t *testing.T) {
	f := newPortalFixture(t)
	body := map[string]any{"answers": map[string]any{
		"1":          "B",
		"2":          []string{"A", "C"},
		"question_3": "x",
		"-4":         "A",
		"99":         "A",
	}}

	w, env := serve(t, f.router, http.MethodPost, "/student/sessions/"+f.session.ID.String()+"/submit", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	var res struct {
		Score          float64 `json:"score"`
		TotalQuestions int     `json:"total_questions"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Score != 2 || res.TotalQuestions != 2 {
		t.Errorf("result = %+v, want score 2 of 2", res)
	}
}

func TestGetCompletedSessionPointsToResults(t *testing.T) {
	f := newPortalFixture(t)
	f.store.sessions[f.session.ID].Status = model.SessionStatusCompleted

	w, env := serve(t, f.router, http.MethodGet, "/student/sessions/"+f.session.ID.String(), nil)
	if w.Code != http.StatusConflict || errCode(env) != response.ErrExamCompleted {
		t.Fatalf("got %d %s", w.Code, errCode(env))
	}
	var data struct {
		SessionID  uuid.UUID `json:"session_id"`
		ResultsURL string    `json:"results_url"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	want := "/api/v1/student/sessions/" + f.session.ID.String() + "/results"
	if data.SessionID != f.session.ID || data.ResultsURL != want {
		t.Errorf("data = %+v, want results at %s", data, want)
	}
}

func TestSessionRoutesRejectBadID(t *testing.T) {
	h := NewStudentPortalHandler(nil, nil)
	r := gin.New()
	r.GET("/sessions/:id", asCaller(studentClaims(7)), h.GetSession)

	w, env := serve(t, r, http.MethodGet, "/sessions/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest || errCode(env) != response.ErrInvalidID {
		t.Fatalf("got %d %s", w.Code, errCode(env))
	}
}
