package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stemsi/exstem-assess/internal/metrics"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
	"github.com/stemsi/exstem-assess/internal/scoring"
)

// SessionConfig holds the timing rules of exam sessions.
type SessionConfig struct {
	Duration    time.Duration
	SubmitGrace time.Duration
}

// ExamSessionService runs the exam session lifecycle:
// CREATED -> IN_PROGRESS -> COMPLETED.
type ExamSessionService struct {
	sessions  SessionStore
	questions QuestionStore
	exams     ExamStore
	drafts    DraftStore
	clock     Clock
	cfg       SessionConfig
	log       zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	sessions SessionStore,
	questions QuestionStore,
	exams ExamStore,
	drafts DraftStore,
	clock Clock,
	cfg SessionConfig,
) *ExamSessionService {
	return &ExamSessionService{
		sessions:  sessions,
		questions: questions,
		exams:     exams,
		drafts:    drafts,
		clock:     clock,
		cfg:       cfg,
		log:       log.With().Str("component", "exam_session").Logger(),
	}
}

// StartResult is returned by StartOrResume.
type StartResult struct {
	Session *model.ExamSession `json:"session"`
	Resumed bool               `json:"resumed"`
}

// SessionView is what a student sees when opening a session.
type SessionView struct {
	Session          *model.ExamSession      `json:"session"`
	Questions        []model.StudentQuestion `json:"questions,omitempty"`
	Drafts           map[int64][]string      `json:"drafts,omitempty"`
	RemainingSeconds int64                   `json:"time_remaining_seconds"`
	// Expired is set when the view itself finalized the session.
	Expired bool `json:"expired"`
}

// FinalizeResult is returned by Finalize.
type FinalizeResult struct {
	Session          *model.ExamSession `json:"session"`
	Score            float64            `json:"score"`
	MaxScore         float64            `json:"max_score"`
	TotalQuestions   int                `json:"total_questions"`
	AlreadyCompleted bool               `json:"already_completed"`
	Expired          bool               `json:"expired"`
}

// TimeStatus is the informational countdown of a session.
type TimeStatus struct {
	TimeRemainingSeconds *int64     `json:"time_remaining_seconds,omitempty"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	TimeExpired          bool       `json:"time_expired,omitempty"`
	Completed            bool       `json:"completed,omitempty"`
}

// StartOrResume opens a session for target, or returns the caller's
// unfinished CREATED session for the same target.
func (s *ExamSessionService) StartOrResume(ctx context.Context, p model.Principal, target model.SessionTarget) (*StartResult, error) {
	if !p.IsStudent() {
		return nil, ErrAccessDenied
	}
	if !target.IsExam() && !target.Domain.Valid() {
		return nil, ErrNotFound
	}
	now := s.clock.Now()

	open, err := s.settleExpired(ctx, p.UserID, now)
	if err != nil {
		return nil, err
	}
	if res, err := resolveOpen(open, target); res != nil || err != nil {
		return res, err
	}

	sess := &model.ExamSession{
		ID:        uuid.New(),
		UserID:    p.UserID,
		StartTime: now,
		EndTime:   now.Add(s.cfg.Duration),
		Status:    model.SessionStatusCreated,
	}

	consumeRetake := false
	if target.IsExam() {
		exam, err := s.exams.GetByID(ctx, *target.ExamID)
		if err != nil {
			return nil, notFound("get exam", err)
		}
		if !exam.IsVisible {
			return nil, ErrExamNotAvailable
		}
		if exam.SingleAttempt {
			consumeRetake, err = s.sessions.HasCompletedAttempt(ctx, p.UserID, exam.ID)
			if err != nil {
				return nil, fmt.Errorf("check previous attempt: %w", err)
			}
		}
		ids, err := s.exams.QuestionIDs(ctx, exam.ID)
		if err != nil {
			return nil, fmt.Errorf("exam questions: %w", err)
		}
		examID := exam.ID
		sess.ExamID = &examID
		sess.Domain = exam.Domain
		sess.QuestionIDs = ids
	} else {
		ids, err := s.questions.ListIDsByDomain(ctx, target.Domain)
		if err != nil {
			return nil, fmt.Errorf("domain questions: %w", err)
		}
		sess.Domain = target.Domain
		sess.QuestionIDs = ids
	}

	if len(sess.QuestionIDs) == 0 {
		return nil, ErrNoQuestions
	}
	sess.TotalQuestions = len(sess.QuestionIDs)

	if err := s.sessions.Create(ctx, sess, consumeRetake); err != nil {
		switch {
		case errors.Is(err, repository.ErrRetakeUnavailable):
			return nil, ErrRetakeDenied
		case errors.Is(err, repository.ErrActiveSessionExists):
			// Lost a race against a concurrent start for the same user.
			open, lerr := s.sessions.ListActiveByUser(ctx, p.UserID)
			if lerr != nil {
				return nil, fmt.Errorf("list active sessions: %w", lerr)
			}
			if res, rerr := resolveOpen(open, target); res != nil || rerr != nil {
				return res, rerr
			}
			return nil, ErrAlreadyActive
		default:
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	kind := "adhoc"
	if sess.ExamID != nil {
		kind = "exam"
	}
	metrics.SessionsStarted.WithLabelValues(string(sess.Domain), kind).Inc()
	if consumeRetake {
		metrics.RetakesConsumed.Inc()
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Int("user_id", p.UserID).
		Str("domain", string(sess.Domain)).
		Int("total_questions", sess.TotalQuestions).
		Bool("retake", consumeRetake).
		Msg("Exam session started")

	return &StartResult{Session: sess}, nil
}

// resolveOpen decides what to do with the open sessions left after expiry
// settlement. A nil result and nil error mean a new session may be created.
func resolveOpen(open []model.ExamSession, target model.SessionTarget) (*StartResult, error) {
	if len(open) == 0 {
		return nil, nil
	}
	for i := range open {
		if open[i].Status == model.SessionStatusInProgress {
			return nil, &ActiveSessionError{SessionID: open[i].ID}
		}
	}
	// At most one open session per user is allowed by the store.
	sess := &open[0]
	if sess.Target().Matches(target) {
		return &StartResult{Session: sess, Resumed: true}, nil
	}
	return nil, &ActiveSessionError{SessionID: sess.ID}
}

// settleExpired finalizes every open session of the user whose deadline
// has passed and returns the ones still running.
func (s *ExamSessionService) settleExpired(ctx context.Context, userID int, now time.Time) ([]model.ExamSession, error) {
	active, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	var open []model.ExamSession
	for i := range active {
		if !active[i].Expired(now) {
			open = append(open, active[i])
			continue
		}
		if _, _, err := s.finalize(ctx, &active[i], nil, metrics.TriggerExpiry, now); err != nil {
			return nil, err
		}
	}
	return open, nil
}

// GetView returns the ordered questions and autosaved drafts of an open
// session. An expired session is finalized instead and returned without
// questions.
func (s *ExamSessionService) GetView(ctx context.Context, p model.Principal, sessionID uuid.UUID) (*SessionView, error) {
	sess, err := s.owned(ctx, p, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsCompleted() {
		return nil, ErrAlreadyCompleted
	}

	now := s.clock.Now()
	if sess.Expired(now) {
		finalized, _, err := s.finalize(ctx, sess, nil, metrics.TriggerExpiry, now)
		if err != nil {
			return nil, err
		}
		return &SessionView{Session: finalized, Expired: true}, nil
	}

	questions, err := s.sessionQuestions(ctx, sess)
	if err != nil {
		return nil, err
	}

	if sess.Status == model.SessionStatusCreated {
		moved, err := s.sessions.MarkInProgress(ctx, sess.ID, len(questions))
		if err != nil {
			return nil, fmt.Errorf("mark in progress: %w", err)
		}
		if moved {
			sess.Status = model.SessionStatusInProgress
			sess.TotalQuestions = len(questions)
		} else {
			if sess, err = s.sessions.GetByID(ctx, sessionID); err != nil {
				return nil, notFound("reload session", err)
			}
			if sess.IsCompleted() {
				return nil, ErrAlreadyCompleted
			}
		}
	}

	drafts, err := s.drafts.Load(ctx, sess.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to load drafts")
		drafts = nil
	}

	view := &SessionView{
		Session:          sess,
		Questions:        make([]model.StudentQuestion, 0, len(questions)),
		Drafts:           drafts,
		RemainingSeconds: int64(sess.Remaining(now) / time.Second),
	}
	for _, q := range questions {
		view.Questions = append(view.Questions, q.ForStudent())
	}
	return view, nil
}

// Finalize grades and completes the caller's session. Answers override
// autosaved drafts. A submission arriving after the deadline plus the
// submit grace is graded from drafts only and flagged as expired. Calling
// it on a completed session returns the stored outcome.
func (s *ExamSessionService) Finalize(ctx context.Context, p model.Principal, sessionID uuid.UUID, answers map[int64][]string) (*FinalizeResult, error) {
	sess, err := s.owned(ctx, p, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	trigger := metrics.TriggerSubmit
	if now.After(sess.EndTime.Add(s.cfg.SubmitGrace)) {
		trigger = metrics.TriggerExpiry
		answers = nil
	}

	finalized, already, err := s.finalize(ctx, sess, answers, trigger, now)
	if err != nil {
		return nil, err
	}
	return &FinalizeResult{
		Session:          finalized,
		Score:            finalized.Score,
		MaxScore:         finalized.MaxScore,
		TotalQuestions:   finalized.TotalQuestions,
		AlreadyCompleted: already,
		Expired:          finalized.ExpiredOnSubmit,
	}, nil
}

// finalize is the only path that completes a session. The store runs grade
// under a row lock and skips it when the session is already completed.
func (s *ExamSessionService) finalize(ctx context.Context, sess *model.ExamSession, answers map[int64][]string, trigger string, now time.Time) (*model.ExamSession, bool, error) {
	if sess.IsCompleted() {
		return sess, true, nil
	}

	questions, err := s.sessionQuestions(ctx, sess)
	if err != nil {
		return nil, false, err
	}

	drafts, err := s.drafts.Load(ctx, sess.ID)
	if err != nil {
		// Without submitted answers the drafts are the attempt. Leave the
		// session open so a later view or start finalizes it again.
		if len(answers) == 0 {
			return nil, false, fmt.Errorf("load drafts: %w", err)
		}
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to load drafts, grading submitted answers only")
	}
	merged := mergeAnswers(drafts, answers)
	expired := trigger == metrics.TriggerExpiry

	finalized, already, err := s.sessions.Finalize(ctx, sess.ID, func(locked *model.ExamSession) (*model.Grade, error) {
		return s.grade(locked, questions, merged, expired, now), nil
	})
	if err != nil {
		return nil, false, notFound("finalize session", err)
	}
	if already {
		return finalized, true, nil
	}

	if err := s.drafts.Clear(ctx, sess.ID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to clear drafts")
	}
	metrics.ObserveFinalize(string(finalized.Domain), trigger, finalized.Score, finalized.MaxScore)

	s.log.Info().
		Str("session_id", finalized.ID.String()).
		Int("user_id", finalized.UserID).
		Str("trigger", trigger).
		Float64("score", finalized.Score).
		Float64("max_score", finalized.MaxScore).
		Msg("Exam session finalized")

	return finalized, false, nil
}

// grade scores every session question exactly once. Answers for ids
// outside the question set are never looked at.
func (s *ExamSessionService) grade(sess *model.ExamSession, questions []model.Question, answers map[int64][]string, expired bool, now time.Time) *model.Grade {
	g := &model.Grade{
		Responses:       make([]model.ExamResponse, 0, len(questions)),
		MaxScore:        scoring.MaxScore(questions),
		ExpiredOnSubmit: expired,
		CompletedAt:     now,
	}

	results := make([]scoring.Result, 0, len(questions))
	for _, q := range questions {
		res := scoring.Score(q, answers[q.ID])
		if res.Malformed {
			s.log.Warn().
				Str("session_id", sess.ID.String()).
				Int64("question_id", q.ID).
				Str("question_type", string(q.Type.Kind())).
				Msg("InvalidAnswerPayload: coerced to first value")
		}
		results = append(results, res)
		g.Responses = append(g.Responses, model.ExamResponse{
			SessionID:     sess.ID,
			QuestionID:    q.ID,
			UserAnswer:    res.Answer,
			IsCorrect:     res.IsCorrect,
			AwardedPoints: res.AwardedPoints,
			AnsweredAt:    now,
		})
	}
	g.Score = scoring.Total(results)
	return g
}

func mergeAnswers(drafts, explicit map[int64][]string) map[int64][]string {
	merged := make(map[int64][]string, len(drafts)+len(explicit))
	for id, v := range drafts {
		merged[id] = v
	}
	for id, v := range explicit {
		merged[id] = v
	}
	return merged
}

// sessionQuestions loads the session's questions in snapshot order,
// skipping ids that no longer resolve.
func (s *ExamSessionService) sessionQuestions(ctx context.Context, sess *model.ExamSession) ([]model.Question, error) {
	found, err := s.questions.ListByIDs(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("load session questions: %w", err)
	}
	byID := make(map[int64]model.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}

	ordered := make([]model.Question, 0, len(sess.QuestionIDs))
	for _, id := range sess.QuestionIDs {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

// GetResults returns a completed session with its per-question review.
// Students see their own sessions; admins see sessions of their domains.
func (s *ExamSessionService) GetResults(ctx context.Context, p model.Principal, sessionID uuid.UUID) (*model.SessionResult, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, notFound("get session", err)
	}
	if !canView(p, sess) {
		return nil, ErrAccessDenied
	}
	if !sess.IsCompleted() {
		return nil, ErrSessionNotCompleted
	}

	responses, err := s.sessions.ListResponses(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	questions, err := s.sessionQuestions(ctx, sess)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[int64]model.ExamResponse, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}

	result := &model.SessionResult{
		Session:    *sess,
		Percentage: model.Percentage(sess.Score, sess.MaxScore),
		Items:      make([]model.ReviewItem, 0, len(responses)),
	}
	for _, q := range questions {
		if r, ok := byQuestion[q.ID]; ok {
			result.Items = append(result.Items, model.ReviewItem{Question: q, Response: r})
		}
	}
	return result, nil
}

// ListResults returns the caller's completed sessions, most recent first.
func (s *ExamSessionService) ListResults(ctx context.Context, p model.Principal) ([]model.SessionSummary, error) {
	if !p.IsStudent() {
		return nil, ErrAccessDenied
	}
	sessions, err := s.sessions.ListCompletedByUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list completed sessions: %w", err)
	}

	out := make([]model.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		pct := model.Percentage(sess.Score, sess.MaxScore)
		out = append(out, model.SessionSummary{
			SessionID:      sess.ID,
			UserID:         sess.UserID,
			Domain:         sess.Domain,
			ExamID:         sess.ExamID,
			Score:          sess.Score,
			MaxScore:       sess.MaxScore,
			TotalQuestions: sess.TotalQuestions,
			Percentage:     pct,
			Band:           model.BandFor(pct),
			StartTime:      sess.StartTime,
			CompletedAt:    sess.CompletedAt,
		})
	}
	return out, nil
}

// TimeStatus reports the remaining time of a session. It never finalizes.
func (s *ExamSessionService) TimeStatus(ctx context.Context, p model.Principal, sessionID uuid.UUID) (*TimeStatus, error) {
	sess, err := s.owned(ctx, p, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsCompleted() {
		return &TimeStatus{TimeExpired: true, Completed: true}, nil
	}

	now := s.clock.Now()
	if sess.Expired(now) {
		return &TimeStatus{TimeExpired: true}, nil
	}
	remaining := int64(sess.Remaining(now) / time.Second)
	end := sess.EndTime
	return &TimeStatus{TimeRemainingSeconds: &remaining, EndTime: &end}, nil
}

// Autosave stores a draft answer for one question of an open session.
func (s *ExamSessionService) Autosave(ctx context.Context, p model.Principal, sessionID uuid.UUID, questionID int64, values []string) error {
	sess, err := s.owned(ctx, p, sessionID)
	if err != nil {
		return err
	}
	if sess.IsCompleted() {
		return ErrAlreadyCompleted
	}
	if sess.Expired(s.clock.Now()) {
		return ErrSessionExpired
	}
	if !sess.HasQuestion(questionID) {
		return ErrQuestionNotInSession
	}
	if err := s.drafts.Save(ctx, sess.ID, questionID, values); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// ActiveSession returns the caller's unfinished session. Expired sessions
// found on the way are finalized.
func (s *ExamSessionService) ActiveSession(ctx context.Context, p model.Principal) (*model.ExamSession, error) {
	if !p.IsStudent() {
		return nil, ErrAccessDenied
	}
	open, err := s.settleExpired(ctx, p.UserID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, ErrNotFound
	}
	return &open[0], nil
}

// owned loads a session that must belong to the calling student.
func (s *ExamSessionService) owned(ctx context.Context, p model.Principal, sessionID uuid.UUID) (*model.ExamSession, error) {
	if !p.IsStudent() {
		return nil, ErrAccessDenied
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, notFound("get session", err)
	}
	if sess.UserID != p.UserID {
		return nil, ErrAccessDenied
	}
	return sess, nil
}

func canView(p model.Principal, sess *model.ExamSession) bool {
	switch {
	case p.IsStudent():
		return sess.UserID == p.UserID
	case p.IsAdmin():
		return p.CanManage(sess.Domain)
	default:
		return false
	}
}
