package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assess/internal/model"
)

// DomainStats holds the dashboard counters of one domain.
type DomainStats struct {
	Domain            model.Domain `json:"domain"`
	Questions         int          `json:"questions"`
	Exams             int          `json:"exams"`
	VisibleExams      int          `json:"visible_exams"`
	CompletedSessions int          `json:"completed_sessions"`
	ActiveSessions    int          `json:"active_sessions"`
	AveragePercentage float64      `json:"average_percentage"`
}

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// DomainStats aggregates per-domain counters for the given domains. Domains
// without any data are still returned with zero values.
func (r *DashboardRepository) DomainStats(ctx context.Context, domains []model.Domain) ([]DomainStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT d.domain,
			(SELECT COUNT(*) FROM questions q WHERE q.domain = d.domain),
			(SELECT COUNT(*) FROM exams e WHERE e.domain = d.domain),
			(SELECT COUNT(*) FROM exams e WHERE e.domain = d.domain AND e.is_visible),
			(SELECT COUNT(*) FROM exam_sessions s WHERE s.domain = d.domain AND s.status = 'COMPLETED'),
			(SELECT COUNT(*) FROM exam_sessions s WHERE s.domain = d.domain AND s.status <> 'COMPLETED'),
			COALESCE((
				SELECT ROUND(AVG(CASE WHEN s.max_score > 0 THEN s.score * 100 / s.max_score ELSE 0 END), 2)
				FROM exam_sessions s WHERE s.domain = d.domain AND s.status = 'COMPLETED'
			), 0)::float8
		 FROM unnest($1::text[]) AS d(domain)
		 ORDER BY d.domain`, domainStrings(domains))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []DomainStats
	for rows.Next() {
		var s DomainStats
		if err := rows.Scan(&s.Domain, &s.Questions, &s.Exams, &s.VisibleExams,
			&s.CompletedSessions, &s.ActiveSessions, &s.AveragePercentage); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
