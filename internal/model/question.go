package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// ErrInvalidQuestion marks a question whose shape breaks the authoring rules.
var ErrInvalidQuestion = errors.New("invalid question")

// QuestionKind is the persisted code of a question type.
type QuestionKind string

const (
	KindSingleChoice QuestionKind = "mcq_single"
	KindMultiChoice  QuestionKind = "mcq_multi"
	KindShortText    QuestionKind = "short_text"
)

// QuestionType is one of SingleChoice, MultiChoice or ShortText.
type QuestionType interface {
	Kind() QuestionKind
	questionType()
}

// SingleChoice questions have exactly one correct option label.
type SingleChoice struct{}

// MultiChoice questions have one or more correct option labels.
type MultiChoice struct {
	PartialCredit bool
}

// ShortText questions accept any of a set of normalized text answers.
type ShortText struct{}

func (SingleChoice) Kind() QuestionKind { return KindSingleChoice }
func (MultiChoice) Kind() QuestionKind  { return KindMultiChoice }
func (ShortText) Kind() QuestionKind    { return KindShortText }

func (SingleChoice) questionType() {}
func (MultiChoice) questionType()  {}
func (ShortText) questionType()    {}

// ParseQuestionType rebuilds a QuestionType from its stored code.
// partialCredit is ignored for everything but multi-choice.
func ParseQuestionType(kind string, partialCredit bool) (QuestionType, error) {
	switch QuestionKind(kind) {
	case KindSingleChoice:
		return SingleChoice{}, nil
	case KindMultiChoice:
		return MultiChoice{PartialCredit: partialCredit}, nil
	case KindShortText:
		return ShortText{}, nil
	default:
		return nil, fmt.Errorf("unknown question type %q", kind)
	}
}

// HasPartialCredit reports whether t is a multi-choice type with partial credit enabled.
func HasPartialCredit(t QuestionType) bool {
	mc, ok := t.(MultiChoice)
	return ok && mc.PartialCredit
}

// MaxOptions is the number of choice labels a question may carry (A through D).
const MaxOptions = 4

// OptionLabels are the labels a choice question may use.
var OptionLabels = []string{"A", "B", "C", "D"}

// QuestionOption is one selectable choice.
type QuestionOption struct {
	Label string `json:"label" binding:"required,max=1"`
	Text  string `json:"text" binding:"required,max=1000"`
}

// Question is a gradable item belonging to a domain.
type Question struct {
	ID        int64
	Domain    Domain
	Text      string
	Options   []QuestionOption
	Type      QuestionType
	AnswerKey []string
	Points    float64
	CreatedAt time.Time
}

type questionJSON struct {
	ID            int64            `json:"id"`
	Domain        Domain           `json:"domain"`
	Text          string           `json:"question_text"`
	Options       []QuestionOption `json:"options"`
	QuestionType  QuestionKind     `json:"question_type"`
	PartialCredit bool             `json:"partial_credit"`
	AnswerKey     []string         `json:"answer_key"`
	Points        float64          `json:"points"`
	CreatedAt     time.Time        `json:"created_at"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	out := questionJSON{
		ID:            q.ID,
		Domain:        q.Domain,
		Text:          q.Text,
		Options:       q.Options,
		PartialCredit: HasPartialCredit(q.Type),
		AnswerKey:     q.AnswerKey,
		Points:        q.Points,
		CreatedAt:     q.CreatedAt,
	}
	if q.Type != nil {
		out.QuestionType = q.Type.Kind()
	}
	if out.Options == nil {
		out.Options = []QuestionOption{}
	}
	if out.AnswerKey == nil {
		out.AnswerKey = []string{}
	}
	return json.Marshal(out)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var in questionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	qt, err := ParseQuestionType(string(in.QuestionType), in.PartialCredit)
	if err != nil {
		return err
	}
	*q = Question{
		ID:        in.ID,
		Domain:    in.Domain,
		Text:      in.Text,
		Options:   in.Options,
		Type:      qt,
		AnswerKey: in.AnswerKey,
		Points:    in.Points,
		CreatedAt: in.CreatedAt,
	}
	return nil
}

// Canonicalize rewrites option labels and the answer key into their stored forms.
func (q *Question) Canonicalize() {
	for i := range q.Options {
		q.Options[i].Label = strings.ToUpper(strings.TrimSpace(q.Options[i].Label))
		q.Options[i].Text = strings.TrimSpace(q.Options[i].Text)
	}
	switch q.Type.(type) {
	case ShortText:
		q.AnswerKey = ShortTextKey(q.AnswerKey)
	default:
		q.AnswerKey = CanonicalLabels(q.AnswerKey)
	}
}

// Validate checks the authoring rules for q. It expects a canonicalized question.
func (q Question) Validate() error {
	if !q.Domain.Valid() {
		return fmt.Errorf("%w: unknown domain %q", ErrInvalidQuestion, q.Domain)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: question text is empty", ErrInvalidQuestion)
	}
	if math.IsNaN(q.Points) || math.IsInf(q.Points, 0) || q.Points <= 0 {
		return fmt.Errorf("%w: points must be positive", ErrInvalidQuestion)
	}
	if p := decimal.NewFromFloat(q.Points); !p.Equal(p.Round(2)) {
		return fmt.Errorf("%w: points allow at most two decimals", ErrInvalidQuestion)
	}

	switch q.Type.(type) {
	case SingleChoice, MultiChoice:
		labels, err := q.optionLabels()
		if err != nil {
			return err
		}
		if _, single := q.Type.(SingleChoice); single && len(q.AnswerKey) != 1 {
			return fmt.Errorf("%w: single-choice key must name exactly one option", ErrInvalidQuestion)
		}
		if len(q.AnswerKey) == 0 {
			return fmt.Errorf("%w: multi-choice key must name at least one option", ErrInvalidQuestion)
		}
		for _, k := range q.AnswerKey {
			if !labels[k] {
				return fmt.Errorf("%w: key label %q is not an option", ErrInvalidQuestion, k)
			}
		}
	case ShortText:
		if len(q.Options) > 0 {
			return fmt.Errorf("%w: short-text questions take no options", ErrInvalidQuestion)
		}
		if len(q.AnswerKey) == 0 {
			return fmt.Errorf("%w: short-text questions need an accepted answer", ErrInvalidQuestion)
		}
	default:
		return fmt.Errorf("%w: question type is missing", ErrInvalidQuestion)
	}
	return nil
}

func (q Question) optionLabels() (map[string]bool, error) {
	if len(q.Options) == 0 || len(q.Options) > MaxOptions {
		return nil, fmt.Errorf("%w: choice questions need 1 to %d options", ErrInvalidQuestion, MaxOptions)
	}
	allowed := make(map[string]bool, len(OptionLabels))
	for _, l := range OptionLabels {
		allowed[l] = true
	}
	labels := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if !allowed[opt.Label] {
			return nil, fmt.Errorf("%w: option label %q is not one of A-D", ErrInvalidQuestion, opt.Label)
		}
		if labels[opt.Label] {
			return nil, fmt.Errorf("%w: duplicate option label %q", ErrInvalidQuestion, opt.Label)
		}
		if opt.Text == "" {
			return nil, fmt.Errorf("%w: option %q has no text", ErrInvalidQuestion, opt.Label)
		}
		labels[opt.Label] = true
	}
	return labels, nil
}

// ─── Canonical forms ────────────────────────────────────────────────

// CanonicalLabels trims and upper-cases choice labels, dropping blanks and
// duplicates while keeping first-seen order.
func CanonicalLabels(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		l := strings.ToUpper(strings.TrimSpace(v))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// NormalizeText trims surrounding whitespace and case-folds s.
func NormalizeText(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// NormalizeTextSet normalizes each value, dropping blanks and duplicates.
func NormalizeTextSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		n := NormalizeText(v)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// ParseAcceptedAnswers splits a comma-delimited list of accepted short-text answers.
func ParseAcceptedAnswers(raw string) []string {
	return ShortTextKey([]string{raw})
}

// ShortTextKey splits every key entry on commas and normalizes the parts,
// so "Paris, paris , FRANCE" yields [paris france].
func ShortTextKey(entries []string) []string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, strings.Split(e, ",")...)
	}
	return NormalizeTextSet(parts)
}

// ─── Student projection ─────────────────────────────────────────────

// StudentQuestion is a question as shown during an attempt, without its key.
type StudentQuestion struct {
	ID           int64            `json:"id"`
	Text         string           `json:"question_text"`
	QuestionType QuestionKind     `json:"question_type"`
	Options      []QuestionOption `json:"options,omitempty"`
	Points       float64          `json:"points"`
}

// ForStudent strips the answer key.
func (q Question) ForStudent() StudentQuestion {
	sq := StudentQuestion{
		ID:      q.ID,
		Text:    q.Text,
		Options: q.Options,
		Points:  q.Points,
	}
	if q.Type != nil {
		sq.QuestionType = q.Type.Kind()
	}
	return sq
}

// ─── Requests ───────────────────────────────────────────────────────

// QuestionRequest is the payload for adding or editing a question.
// Short-text answers may come either as answer_key entries or as a
// comma-delimited accepted_answers string.
type QuestionRequest struct {
	Text            string           `json:"question_text" binding:"required,min=1,max=2000"`
	QuestionType    string           `json:"question_type" binding:"required,qtype"`
	Options         []QuestionOption `json:"options" binding:"omitempty,max=4,dive"`
	AnswerKey       []string         `json:"answer_key" binding:"omitempty,max=20"`
	AcceptedAnswers string           `json:"accepted_answers" binding:"omitempty,max=1000"`
	Points          *float64         `json:"points" binding:"omitempty,gt=0"`
	PartialCredit   bool             `json:"partial_credit"`
}

// ToQuestion builds a canonical, validated question in domain d.
func (r QuestionRequest) ToQuestion(d Domain) (Question, error) {
	qt, err := ParseQuestionType(r.QuestionType, r.PartialCredit)
	if err != nil {
		return Question{}, fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}

	q := Question{
		Domain:    d,
		Text:      strings.TrimSpace(r.Text),
		Options:   r.Options,
		Type:      qt,
		AnswerKey: r.AnswerKey,
		Points:    1.0,
	}
	if r.Points != nil {
		q.Points = *r.Points
	}
	if _, ok := qt.(ShortText); ok && r.AcceptedAnswers != "" {
		q.AnswerKey = ParseAcceptedAnswers(r.AcceptedAnswers)
	}

	q.Canonicalize()
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}
