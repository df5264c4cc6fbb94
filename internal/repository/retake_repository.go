package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assess/internal/model"
)

// RetakeRepository handles retake permission data access. Consuming a retake
// happens inside ExamSessionRepository.Create so it shares the session insert
// transaction.
type RetakeRepository struct {
	pool *pgxpool.Pool
}

// NewRetakeRepository creates a new RetakeRepository.
func NewRetakeRepository(pool *pgxpool.Pool) *RetakeRepository {
	return &RetakeRepository{pool: pool}
}

// Upsert sets the remaining attempts for (userID, examID), overwriting any previous value.
func (r *RetakeRepository) Upsert(ctx context.Context, userID int, examID int64, attempts int) (*model.RetakePermission, error) {
	p := &model.RetakePermission{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_retake_permissions (user_id, exam_id, remaining_attempts)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, exam_id)
		 DO UPDATE SET remaining_attempts = EXCLUDED.remaining_attempts, updated_at = NOW()
		 RETURNING user_id, exam_id, remaining_attempts, created_at, updated_at`,
		userID, examID, attempts,
	).Scan(&p.UserID, &p.ExamID, &p.RemainingAttempts, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pgErr, ok := pgError(err); ok && pgErr.Code == pgForeignKeyViolation {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Get retrieves the permission for one student on one exam.
func (r *RetakeRepository) Get(ctx context.Context, userID int, examID int64) (*model.RetakePermission, error) {
	p := &model.RetakePermission{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, exam_id, remaining_attempts, created_at, updated_at
		 FROM exam_retake_permissions
		 WHERE user_id = $1 AND exam_id = $2`, userID, examID,
	).Scan(&p.UserID, &p.ExamID, &p.RemainingAttempts, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return p, nil
}

// ListByExam retrieves every permission granted on an exam.
func (r *RetakeRepository) ListByExam(ctx context.Context, examID int64) ([]model.RetakePermission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, exam_id, remaining_attempts, created_at, updated_at
		 FROM exam_retake_permissions
		 WHERE exam_id = $1
		 ORDER BY user_id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []model.RetakePermission
	for rows.Next() {
		var p model.RetakePermission
		if err := rows.Scan(&p.UserID, &p.ExamID, &p.RemainingAttempts, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// RemainingByUser maps exam id to remaining attempts for one student.
func (r *RetakeRepository) RemainingByUser(ctx context.Context, userID int) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, remaining_attempts FROM exam_retake_permissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var examID int64
		var n int
		if err := rows.Scan(&examID, &n); err != nil {
			return nil, err
		}
		out[examID] = n
	}
	return out, rows.Err()
}
