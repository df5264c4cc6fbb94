// Package scoring grades a single question against a submitted answer.
// It performs no I/O and is safe for concurrent use.
package scoring

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stemsi/exstem-assess/internal/model"
)

// Result is the outcome of grading one question.
type Result struct {
	AwardedPoints float64
	IsCorrect     bool
	// Answer is the canonical form stored on the response row.
	Answer string
	// Malformed is set when the submission did not fit the question type
	// and had to be coerced, e.g. several labels for a single-choice question.
	Malformed bool
}

// Score grades submitted against q. An unanswered question is never correct
// and earns nothing.
func Score(q model.Question, submitted []string) Result {
	switch t := q.Type.(type) {
	case model.SingleChoice:
		return scoreSingle(q, submitted)
	case model.MultiChoice:
		return scoreMulti(q, t.PartialCredit, submitted)
	case model.ShortText:
		return scoreShortText(q, submitted)
	default:
		return Result{}
	}
}

func scoreSingle(q model.Question, submitted []string) Result {
	labels := model.CanonicalLabels(submitted)
	if len(labels) == 0 {
		return Result{}
	}

	res := Result{Answer: labels[0], Malformed: len(labels) > 1}
	key := model.CanonicalLabels(q.AnswerKey)
	if len(key) > 0 && key[0] == res.Answer {
		res.IsCorrect = true
		res.AwardedPoints = q.Points
	}
	return res
}

func scoreMulti(q model.Question, partial bool, submitted []string) Result {
	selected := model.CanonicalLabels(submitted)
	if len(selected) == 0 {
		return Result{}
	}

	key := toSet(model.CanonicalLabels(q.AnswerKey))
	var hits, misses int
	for _, l := range selected {
		if key[l] {
			hits++
		} else {
			misses++
		}
	}

	sorted := append([]string(nil), selected...)
	sort.Strings(sorted)
	res := Result{Answer: strings.Join(sorted, ",")}

	k := len(key)
	res.IsCorrect = k > 0 && hits == k && misses == 0
	switch {
	case res.IsCorrect:
		res.AwardedPoints = q.Points
	case partial && k > 0:
		res.AwardedPoints = partialCredit(hits, misses, k, q.Points)
	}
	return res
}

// partialCredit computes max(0, hits/k - misses/k) * points, rounded half
// away from zero to two decimals.
func partialCredit(hits, misses, k int, points float64) float64 {
	dk := decimal.NewFromInt(int64(k))
	raw := decimal.NewFromInt(int64(hits)).Div(dk).
		Sub(decimal.NewFromInt(int64(misses)).Div(dk))
	if raw.IsNegative() {
		return 0
	}
	awarded, _ := raw.Mul(decimal.NewFromFloat(points)).Round(2).Float64()
	return awarded
}

func scoreShortText(q model.Question, submitted []string) Result {
	answers := model.NormalizeTextSet(submitted)
	if len(answers) == 0 {
		return Result{}
	}

	res := Result{Answer: answers[0], Malformed: len(answers) > 1}
	for _, accepted := range model.ShortTextKey(q.AnswerKey) {
		if accepted == res.Answer {
			res.IsCorrect = true
			res.AwardedPoints = q.Points
			break
		}
	}
	return res
}

// Total sums awarded points without float drift.
func Total(results []Result) float64 {
	sum := decimal.Zero
	for _, r := range results {
		sum = sum.Add(decimal.NewFromFloat(r.AwardedPoints))
	}
	f, _ := sum.Round(2).Float64()
	return f
}

// MaxScore sums the points of every question.
func MaxScore(questions []model.Question) float64 {
	sum := decimal.Zero
	for _, q := range questions {
		sum = sum.Add(decimal.NewFromFloat(q.Points))
	}
	f, _ := sum.Round(2).Float64()
	return f
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
