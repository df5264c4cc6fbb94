package model

import "time"

// RetakePermission is the number of extra attempts a student may still
// start for a single-attempt exam.
type RetakePermission struct {
	UserID            int       `json:"user_id"`
	ExamID            int64     `json:"exam_id"`
	RemainingAttempts int       `json:"remaining_attempts"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GrantRetakeRequest overwrites the remaining attempts for one student on one exam.
type GrantRetakeRequest struct {
	UserID   int  `json:"user_id" binding:"required,gt=0"`
	Attempts *int `json:"attempts" binding:"required,min=0,max=100"`
}
