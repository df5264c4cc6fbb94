package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusCreated    SessionStatus = "CREATED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// ExamSession is one timed attempt by a student. ExamID is nil for ad-hoc
// domain attempts.
type ExamSession struct {
	ID              uuid.UUID     `json:"id"`
	UserID          int           `json:"user_id"`
	Domain          Domain        `json:"domain"`
	ExamID          *int64        `json:"exam_id,omitempty"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Status          SessionStatus `json:"status"`
	Score           float64       `json:"score"`
	MaxScore        float64       `json:"max_score"`
	TotalQuestions  int           `json:"total_questions"`
	QuestionIDs     []int64       `json:"-"`
	ExpiredOnSubmit bool          `json:"expired_on_submit"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

// IsCompleted reports whether the session has been finalized.
func (s *ExamSession) IsCompleted() bool {
	return s.Status == SessionStatusCompleted
}

// Expired reports whether now is past the session deadline.
func (s *ExamSession) Expired(now time.Time) bool {
	return now.After(s.EndTime)
}

// Remaining returns the time left before the deadline, never negative.
func (s *ExamSession) Remaining(now time.Time) time.Duration {
	if d := s.EndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Target returns the exam or domain this session was started for.
func (s *ExamSession) Target() SessionTarget {
	return SessionTarget{ExamID: s.ExamID, Domain: s.Domain}
}

// HasQuestion reports whether questionID is part of the session snapshot.
func (s *ExamSession) HasQuestion(questionID int64) bool {
	for _, id := range s.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// ExamResponse is the graded record of one question in a finalized session.
type ExamResponse struct {
	ID            int64     `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	QuestionID    int64     `json:"question_id"`
	UserAnswer    string    `json:"user_answer"`
	IsCorrect     bool      `json:"is_correct"`
	AwardedPoints float64   `json:"awarded_points"`
	AnsweredAt    time.Time `json:"answered_at"`
}

// Grade is the outcome of finalizing a session: one response per bound
// question plus the totals written back onto the session row.
type Grade struct {
	Responses       []ExamResponse
	Score           float64
	MaxScore        float64
	ExpiredOnSubmit bool
	CompletedAt     time.Time
}

// GradeFunc computes the grade of a locked, not yet completed session.
type GradeFunc func(s *ExamSession) (*Grade, error)

// SessionTarget names what a session is started for: a specific exam, or
// every question of a domain when ExamID is nil.
type SessionTarget struct {
	ExamID *int64
	Domain Domain
}

// IsExam reports whether the target is a curated exam.
func (t SessionTarget) IsExam() bool { return t.ExamID != nil }

// Matches reports whether two targets name the same exam or ad-hoc domain.
func (t SessionTarget) Matches(o SessionTarget) bool {
	if t.ExamID != nil || o.ExamID != nil {
		return t.ExamID != nil && o.ExamID != nil && *t.ExamID == *o.ExamID
	}
	return t.Domain == o.Domain
}

// ─── Answers ────────────────────────────────────────────────────────

// AnswerValue is a submitted answer. It decodes from a single string, an
// array of scalars or null, so clients can send either shape.
type AnswerValue []string

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make([]string, 0, len(raw))
		for _, r := range raw {
			if s, ok := scalarString(r); ok {
				out = append(out, s)
			}
		}
		*a = out
		return nil
	}

	s, ok := scalarString(data)
	if !ok {
		*a = nil
		return nil
	}
	*a = AnswerValue{s}
	return nil
}

// scalarString renders a JSON string, number or boolean as text.
func scalarString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

// ─── Requests ───────────────────────────────────────────────────────

// StartSessionRequest starts or resumes a session for an exam or a whole
// domain. ExamID wins when both are present.
type StartSessionRequest struct {
	ExamID *int64 `json:"exam_id" binding:"omitempty,gt=0"`
	Domain string `json:"domain" binding:"omitempty,domain"`
}

// Target converts the request into a SessionTarget. ok is false when
// neither an exam nor a domain was given.
func (r StartSessionRequest) Target() (target SessionTarget, ok bool) {
	if r.ExamID != nil {
		return SessionTarget{ExamID: r.ExamID}, true
	}
	if r.Domain == "" {
		return SessionTarget{}, false
	}
	return SessionTarget{Domain: Domain(r.Domain)}, true
}

// SubmitAnswersRequest carries the final answers keyed by question id.
// Keys stay strings so one unusable key cannot fail the whole decode.
type SubmitAnswersRequest struct {
	Answers map[string]AnswerValue `json:"answers"`
}

// AnswerMap flattens the request into the value lists the scorer reads.
// Keys that are not positive question ids are dropped.
func (r SubmitAnswersRequest) AnswerMap() map[int64][]string {
	out := make(map[int64][]string, len(r.Answers))
	for key, v := range r.Answers {
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		out[id] = v
	}
	return out
}
