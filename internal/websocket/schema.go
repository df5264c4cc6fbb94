package websocket

import (
	"encoding/json"

	"github.com/stemsi/exstem-assess/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionTime     Action = "time"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action          `json:"action"`
	Raw    json.RawMessage `json:"-"`
}

// AutosaveRequest stores a draft answer for one question.
type AutosaveRequest struct {
	Action     Action   `json:"action"`
	QuestionID int64    `json:"question_id"`
	Values     []string `json:"values"`
}

// SubmitRequest finishes the session. Answers override autosaved drafts.
type SubmitRequest struct {
	Action  Action                       `json:"action"`
	Answers map[string]model.AnswerValue `json:"answers,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventSaved  Event = "saved"
	EventTime   Event = "time"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

type SavedResponse struct {
	Event      Event `json:"event"`
	QuestionID int64 `json:"question_id"`
}

type TimeResponse struct {
	Event                Event  `json:"event"`
	TimeRemainingSeconds *int64 `json:"time_remaining_seconds,omitempty"`
	TimeExpired          bool   `json:"time_expired"`
	Completed            bool   `json:"completed"`
}

type GradedResponse struct {
	Event          Event   `json:"event"`
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"max_score"`
	TotalQuestions int     `json:"total_questions"`
	Expired        bool    `json:"expired"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
