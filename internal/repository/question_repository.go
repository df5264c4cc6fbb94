package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assess/internal/model"
)

const questionColumns = `id, domain, question_text, question_type, partial_credit, options, answer_key, points, created_at`

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func scanQuestion(row pgx.Row) (*model.Question, error) {
	var (
		q       model.Question
		kind    string
		partial bool
		options []byte
	)
	if err := row.Scan(&q.ID, &q.Domain, &q.Text, &kind, &partial, &options, &q.AnswerKey, &q.Points, &q.CreatedAt); err != nil {
		return nil, err
	}

	qt, err := model.ParseQuestionType(kind, partial)
	if err != nil {
		return nil, fmt.Errorf("question %d: %w", q.ID, err)
	}
	q.Type = qt

	if len(options) > 0 {
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("question %d options: %w", q.ID, err)
		}
	}
	return &q, nil
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// GetByID retrieves a single question.
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return q, nil
}

// ListByIDs retrieves every existing question among ids, in no particular order.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []int64) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// ListByDomain retrieves all questions of a domain ordered by id.
func (r *QuestionRepository) ListByDomain(ctx context.Context, domain model.Domain) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE domain = $1 ORDER BY id`, domain)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// ListIDsByDomain returns the ids of a domain's questions ordered by id.
func (r *QuestionRepository) ListIDsByDomain(ctx context.Context, domain model.Domain) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM questions WHERE domain = $1 ORDER BY id`, domain)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	options, err := json.Marshal(optionsOrEmpty(q.Options))
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (domain, question_text, question_type, partial_credit, options, answer_key, points)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		q.Domain, q.Text, q.Type.Kind(), model.HasPartialCredit(q.Type), options, q.AnswerKey, q.Points,
	).Scan(&q.ID, &q.CreatedAt)
}

// Update overwrites the editable fields of a question. The domain never changes.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	options, err := json.Marshal(optionsOrEmpty(q.Options))
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions
		 SET question_text = $1, question_type = $2, partial_credit = $3, options = $4, answer_key = $5, points = $6
		 WHERE id = $7`,
		q.Text, q.Type.Kind(), model.HasPartialCredit(q.Type), options, q.AnswerKey, q.Points, q.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a question. Questions with graded responses cannot be removed.
func (r *QuestionRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		if pgErr, ok := pgError(err); ok && pgErr.Code == pgForeignKeyViolation {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func optionsOrEmpty(opts []model.QuestionOption) []model.QuestionOption {
	if opts == nil {
		return []model.QuestionOption{}
	}
	return opts
}
