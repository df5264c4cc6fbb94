package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assess/internal/model"
)

const studentColumns = `id, username, email, password_hash, is_approved, created_at`

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

func scanStudent(row pgx.Row) (*model.Student, error) {
	s := &model.Student{}
	if err := row.Scan(&s.ID, &s.Username, &s.Email, &s.PasswordHash, &s.IsApproved, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id int) (*model.Student, error) {
	s, err := scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return s, nil
}

// GetByUsername retrieves a student by username for authentication.
func (r *StudentRepository) GetByUsername(ctx context.Context, username string) (*model.Student, error) {
	s, err := scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE username = $1`, username))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return s, nil
}

// Create inserts a new, unapproved student.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (username, email, password_hash, is_approved)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		s.Username, s.Email, s.PasswordHash, s.IsApproved,
	).Scan(&s.ID, &s.CreatedAt)
	if pgErr, ok := pgError(err); ok && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

// ListPending retrieves students awaiting approval, oldest first.
func (r *StudentRepository) ListPending(ctx context.Context) ([]model.Student, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+studentColumns+` FROM students WHERE is_approved = FALSE ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *s)
	}
	return students, rows.Err()
}

// Approve marks a pending student as approved.
func (r *StudentRepository) Approve(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE students SET is_approved = TRUE WHERE id = $1 AND is_approved = FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePending removes a registration that was never approved.
func (r *StudentRepository) DeletePending(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM students WHERE id = $1 AND is_approved = FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPending returns the number of registrations awaiting approval.
func (r *StudentRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students WHERE is_approved = FALSE`).Scan(&n)
	return n, err
}
