package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScoreBand buckets a completed session by its percentage score.
type ScoreBand string

const (
	BandExcellent ScoreBand = "excellent"
	BandGood      ScoreBand = "good"
	BandFair      ScoreBand = "fair"
	BandPoor      ScoreBand = "poor"
)

// BandFor returns the band of a percentage in [0, 100].
func BandFor(percentage float64) ScoreBand {
	switch {
	case percentage >= 90:
		return BandExcellent
	case percentage >= 70:
		return BandGood
	case percentage >= 50:
		return BandFair
	default:
		return BandPoor
	}
}

// Percentage returns score as a share of maxScore, rounded to two decimals.
// A session with nothing to score counts as zero.
func Percentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	pct := decimal.NewFromFloat(score).
		Div(decimal.NewFromFloat(maxScore)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	f, _ := pct.Float64()
	return f
}

// SessionSummary is one completed session as listed on a results page.
type SessionSummary struct {
	SessionID      uuid.UUID  `json:"session_id"`
	UserID         int        `json:"user_id"`
	Username       string     `json:"username"`
	Domain         Domain     `json:"domain"`
	ExamID         *int64     `json:"exam_id,omitempty"`
	Score          float64    `json:"score"`
	MaxScore       float64    `json:"max_score"`
	TotalQuestions int        `json:"total_questions"`
	Percentage     float64    `json:"percentage"`
	Band           ScoreBand  `json:"band"`
	StartTime      time.Time  `json:"start_time"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ExamResults aggregates every completed session of one exam.
// DomainAverages is only filled for admins that manage all domains.
type ExamResults struct {
	Exam           Exam               `json:"exam"`
	Sessions       []SessionSummary   `json:"sessions"`
	UniqueStudents int                `json:"unique_students"`
	Distribution   map[ScoreBand]int  `json:"distribution"`
	DomainAverages map[Domain]float64 `json:"domain_averages,omitempty"`
	Retakes        map[int]int        `json:"retakes"`
}

// ReviewItem pairs a graded response with its question for result review.
type ReviewItem struct {
	Question Question     `json:"question"`
	Response ExamResponse `json:"response"`
}

// SessionResult is a finalized session with its per-question review.
type SessionResult struct {
	Session    ExamSession  `json:"session"`
	Percentage float64      `json:"percentage"`
	Items      []ReviewItem `json:"items"`
}
