package model

import "time"

// Exam is a named, ordered selection of questions from one domain.
type Exam struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Domain        Domain    `json:"domain"`
	IsVisible     bool      `json:"is_visible"`
	SingleAttempt bool      `json:"single_attempt"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExamQuestion binds a question to an exam at a display position.
type ExamQuestion struct {
	ExamID       int64 `json:"exam_id"`
	QuestionID   int64 `json:"question_id"`
	DisplayOrder int   `json:"display_order"`
}

// StudentExam is an exam as listed to a student.
type StudentExam struct {
	Exam
	Attempted         bool `json:"attempted"`
	RemainingAttempts *int `json:"remaining_attempts,omitempty"`
	CanStart          bool `json:"can_start"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Name          string `json:"name" binding:"required,min=3,max=200"`
	Domain        string `json:"domain" binding:"required,domain"`
	SingleAttempt *bool  `json:"single_attempt"`
}

// SetVisibilityRequest toggles whether students can see an exam.
type SetVisibilityRequest struct {
	IsVisible *bool `json:"is_visible" binding:"required"`
}

// SetQuestionPaperRequest replaces the ordered question membership of an exam.
type SetQuestionPaperRequest struct {
	QuestionIDs []int64 `json:"question_ids" binding:"max=500,dive,gt=0"`
}
