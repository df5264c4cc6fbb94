package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assess/internal/model"
)

const sessionColumns = `id, user_id, domain, exam_id, start_time, end_time, status, score, max_score,
	total_questions, question_ids, expired_on_submit, completed_at`

// ExamSessionRepository handles exam session and response data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.UserID, &s.Domain, &s.ExamID, &s.StartTime, &s.EndTime, &s.Status,
		&s.Score, &s.MaxScore, &s.TotalQuestions, &s.QuestionIDs, &s.ExpiredOnSubmit, &s.CompletedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func collectSessions(rows pgx.Rows) ([]model.ExamSession, error) {
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// GetByID retrieves a session.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return s, nil
}

// ListActiveByUser retrieves the user's unfinished sessions, oldest first.
func (r *ExamSessionRepository) ListActiveByUser(ctx context.Context, userID int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions
		 WHERE user_id = $1 AND status <> $2
		 ORDER BY start_time`, userID, model.SessionStatusCompleted)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListCompletedByUser retrieves the user's finalized sessions, most recent first.
func (r *ExamSessionRepository) ListCompletedByUser(ctx context.Context, userID int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions
		 WHERE user_id = $1 AND status = $2
		 ORDER BY completed_at DESC`, userID, model.SessionStatusCompleted)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// HasCompletedAttempt reports whether the user already finished the exam at least once.
func (r *ExamSessionRepository) HasCompletedAttempt(ctx context.Context, userID int, examID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM exam_sessions
			WHERE user_id = $1 AND exam_id = $2 AND status = $3
		 )`, userID, examID, model.SessionStatusCompleted,
	).Scan(&exists)
	return exists, err
}

// CompletedExamIDs returns the ids of every exam the user has finished.
func (r *ExamSessionRepository) CompletedExamIDs(ctx context.Context, userID int) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT exam_id FROM exam_sessions
		 WHERE user_id = $1 AND exam_id IS NOT NULL AND status = $2`,
		userID, model.SessionStatusCompleted)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// Create inserts a new session. When consumeRetake is set, one retake unit
// for (user, exam) is spent in the same transaction; the insert is rolled
// back with ErrRetakeUnavailable if none is left. A second unfinished
// session for the same user fails with ErrActiveSessionExists.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession, consumeRetake bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if consumeRetake {
		if s.ExamID == nil {
			return ErrRetakeUnavailable
		}
		tag, err := tx.Exec(ctx,
			`UPDATE exam_retake_permissions
			 SET remaining_attempts = remaining_attempts - 1, updated_at = NOW()
			 WHERE user_id = $1 AND exam_id = $2 AND remaining_attempts > 0`,
			s.UserID, *s.ExamID)
		if err != nil {
			return fmt.Errorf("consume retake: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrRetakeUnavailable
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO exam_sessions (id, user_id, domain, exam_id, start_time, end_time, status, total_questions, question_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.Domain, s.ExamID, s.StartTime, s.EndTime, s.Status, s.TotalQuestions, s.QuestionIDs)
	if err != nil {
		if pgErr, ok := pgError(err); ok && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == activeSessionIndex {
			return ErrActiveSessionExists
		}
		return fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// MarkInProgress moves a CREATED session to IN_PROGRESS and fixes its
// question count. It reports false when the session had already left CREATED.
func (r *ExamSessionRepository) MarkInProgress(ctx context.Context, id uuid.UUID, totalQuestions int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions SET status = $1, total_questions = $2
		 WHERE id = $3 AND status = $4`,
		model.SessionStatusInProgress, totalQuestions, id, model.SessionStatusCreated)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Finalize locks the session row and, unless it is already completed, stores
// the responses produced by grade and completes the session, all in one
// transaction. The returned bool reports whether the session had been
// completed before this call, in which case grade is not invoked.
func (r *ExamSessionRepository) Finalize(ctx context.Context, id uuid.UUID, grade model.GradeFunc) (*model.ExamSession, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	s, err := scanSession(tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, false, mapNoRows(err)
	}
	if s.IsCompleted() {
		return s, true, nil
	}

	g, err := grade(s)
	if err != nil {
		return nil, false, err
	}

	if len(g.Responses) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"exam_responses"},
			[]string{"exam_session_id", "question_id", "user_answer", "is_correct", "awarded_points", "answered_at"},
			pgx.CopyFromSlice(len(g.Responses), func(i int) ([]any, error) {
				resp := g.Responses[i]
				return []any{s.ID, resp.QuestionID, resp.UserAnswer, resp.IsCorrect, resp.AwardedPoints, resp.AnsweredAt}, nil
			}),
		)
		if err != nil {
			return nil, false, fmt.Errorf("insert responses: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, score = $2, max_score = $3, expired_on_submit = $4, completed_at = $5
		 WHERE id = $6`,
		model.SessionStatusCompleted, g.Score, g.MaxScore, g.ExpiredOnSubmit, g.CompletedAt, s.ID)
	if err != nil {
		return nil, false, fmt.Errorf("complete session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	completedAt := g.CompletedAt
	s.Status = model.SessionStatusCompleted
	s.Score = g.Score
	s.MaxScore = g.MaxScore
	s.ExpiredOnSubmit = g.ExpiredOnSubmit
	s.CompletedAt = &completedAt
	return s, false, nil
}

// ListResponses retrieves the graded responses of a session.
func (r *ExamSessionRepository) ListResponses(ctx context.Context, sessionID uuid.UUID) ([]model.ExamResponse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_session_id, question_id, user_answer, is_correct, awarded_points, answered_at
		 FROM exam_responses
		 WHERE exam_session_id = $1
		 ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.ExamResponse
	for rows.Next() {
		var resp model.ExamResponse
		if err := rows.Scan(&resp.ID, &resp.SessionID, &resp.QuestionID, &resp.UserAnswer,
			&resp.IsCorrect, &resp.AwardedPoints, &resp.AnsweredAt); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

// ListCompletedByExam retrieves every finalized session of an exam with the
// student's username, most recent first.
func (r *ExamSessionRepository) ListCompletedByExam(ctx context.Context, examID int64) ([]model.SessionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT es.id, es.user_id, s.username, es.domain, es.exam_id, es.score, es.max_score,
		        es.total_questions, es.start_time, es.completed_at
		 FROM exam_sessions es
		 JOIN students s ON s.id = es.user_id
		 WHERE es.exam_id = $1 AND es.status = $2
		 ORDER BY es.completed_at DESC`, examID, model.SessionStatusCompleted)
	if err != nil {
		return nil, err
	}
	return collectSummaries(rows)
}

// ListRecentCompleted retrieves the latest finalized sessions across the given domains.
func (r *ExamSessionRepository) ListRecentCompleted(ctx context.Context, domains []model.Domain, limit int) ([]model.SessionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT es.id, es.user_id, s.username, es.domain, es.exam_id, es.score, es.max_score,
		        es.total_questions, es.start_time, es.completed_at
		 FROM exam_sessions es
		 JOIN students s ON s.id = es.user_id
		 WHERE es.domain = ANY($1) AND es.status = $2
		 ORDER BY es.completed_at DESC
		 LIMIT $3`, domainStrings(domains), model.SessionStatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	return collectSummaries(rows)
}

func collectSummaries(rows pgx.Rows) ([]model.SessionSummary, error) {
	defer rows.Close()

	var out []model.SessionSummary
	for rows.Next() {
		var s model.SessionSummary
		if err := rows.Scan(&s.SessionID, &s.UserID, &s.Username, &s.Domain, &s.ExamID, &s.Score,
			&s.MaxScore, &s.TotalQuestions, &s.StartTime, &s.CompletedAt); err != nil {
			return nil, err
		}
		s.Percentage = model.Percentage(s.Score, s.MaxScore)
		s.Band = model.BandFor(s.Percentage)
		out = append(out, s)
	}
	return out, rows.Err()
}

// AveragePercentageByDomain returns the mean percentage score of all
// finalized sessions per domain.
func (r *ExamSessionRepository) AveragePercentageByDomain(ctx context.Context) (map[model.Domain]float64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT domain,
		        ROUND(AVG(CASE WHEN max_score > 0 THEN score * 100 / max_score ELSE 0 END), 2)::float8
		 FROM exam_sessions
		 WHERE status = $1
		 GROUP BY domain`, model.SessionStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.Domain]float64)
	for rows.Next() {
		var d model.Domain
		var avg float64
		if err := rows.Scan(&d, &avg); err != nil {
			return nil, err
		}
		out[d] = avg
	}
	return out, rows.Err()
}
