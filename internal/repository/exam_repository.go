package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assess/internal/model"
)

const examSelect = `
	SELECT e.id, e.name, e.domain, e.is_visible, e.single_attempt, e.created_at,
	       (SELECT COUNT(*) FROM exam_questions eq WHERE eq.exam_id = e.id)
	FROM exams e`

// ExamRepository handles exam and exam membership data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	if err := row.Scan(&e.ID, &e.Name, &e.Domain, &e.IsVisible, &e.SingleAttempt, &e.CreatedAt, &e.QuestionCount); err != nil {
		return nil, err
	}
	return e, nil
}

func collectExams(rows pgx.Rows) ([]model.Exam, error) {
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// GetByID retrieves an exam with its question count.
func (r *ExamRepository) GetByID(ctx context.Context, id int64) (*model.Exam, error) {
	e, err := scanExam(r.pool.QueryRow(ctx, examSelect+` WHERE e.id = $1`, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return e, nil
}

// ListByDomains retrieves the exams of the given domains, newest first.
func (r *ExamRepository) ListByDomains(ctx context.Context, domains []model.Domain) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		examSelect+` WHERE e.domain = ANY($1) ORDER BY e.created_at DESC, e.id DESC`, domainStrings(domains))
	if err != nil {
		return nil, err
	}
	return collectExams(rows)
}

// ListVisible retrieves the exams students can see, optionally for one domain.
func (r *ExamRepository) ListVisible(ctx context.Context, domain *model.Domain) ([]model.Exam, error) {
	query := examSelect + ` WHERE e.is_visible = TRUE`
	var args []any
	if domain != nil {
		query += ` AND e.domain = $1`
		args = append(args, *domain)
	}
	query += ` ORDER BY e.domain, e.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectExams(rows)
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (name, domain, is_visible, single_attempt)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		e.Name, e.Domain, e.IsVisible, e.SingleAttempt,
	).Scan(&e.ID, &e.CreatedAt)
}

// SetVisibility shows or hides an exam from students.
func (r *ExamRepository) SetVisibility(ctx context.Context, id int64, visible bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE exams SET is_visible = $1 WHERE id = $2`, visible, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// QuestionIDs returns the exam's question ids in display order.
func (r *ExamRepository) QuestionIDs(ctx context.Context, examID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id FROM exam_questions
		 WHERE exam_id = $1
		 ORDER BY display_order, question_id`, examID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// ReplaceQuestions wipes the exam's membership and inserts ids in the given
// order with display_order 1..n. Ids that are unknown, duplicated, or belong
// to another domain are skipped. Returns the number of questions bound.
func (r *ExamRepository) ReplaceQuestions(ctx context.Context, examID int64, domain model.Domain, ids []int64) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT id FROM exams WHERE id = $1 FOR UPDATE`, examID); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM exam_questions WHERE exam_id = $1`, examID); err != nil {
		return 0, fmt.Errorf("clear exam questions: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT id FROM questions WHERE id = ANY($1) AND domain = $2`, ids, domain)
	if err != nil {
		return 0, err
	}
	valid, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, err
	}
	inDomain := make(map[int64]bool, len(valid))
	for _, id := range valid {
		inDomain[id] = true
	}

	ordered := make([]int64, 0, len(ids))
	for _, id := range ids {
		if inDomain[id] {
			ordered = append(ordered, id)
			delete(inDomain, id)
		}
	}

	if len(ordered) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"exam_questions"},
			[]string{"exam_id", "question_id", "display_order"},
			pgx.CopyFromSlice(len(ordered), func(i int) ([]any, error) {
				return []any{examID, ordered[i], i + 1}, nil
			}),
		)
		if err != nil {
			return 0, fmt.Errorf("insert exam questions: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(ordered), nil
}

func domainStrings(domains []model.Domain) []string {
	out := make([]string, len(domains))
	for i, d := range domains {
		out[i] = string(d)
	}
	return out
}
