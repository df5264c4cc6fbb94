package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Data access errors shared by every repository.
var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicate           = errors.New("record already exists")
	ErrInUse               = errors.New("record is still referenced")
	ErrActiveSessionExists = errors.New("user already has an unfinished session")
	ErrRetakeUnavailable   = errors.New("no retake attempts remaining")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	activeSessionIndex = "uniq_exam_sessions_active_user"
)

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// mapNoRows turns pgx.ErrNoRows into ErrNotFound.
func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
