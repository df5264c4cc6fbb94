package service

import (
	"context"

	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
)

// DashboardStore reads aggregated dashboard numbers.
type DashboardStore interface {
	DomainStats(ctx context.Context, domains []model.Domain) ([]repository.DomainStats, error)
}

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	Domains         []repository.DomainStats `json:"domains"`
	PendingStudents int                      `json:"pending_students"`
	RecentSessions  []model.SessionSummary   `json:"recent_sessions"`
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo     DashboardStore
	students StudentStore
	sessions SessionStore
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo DashboardStore, students StudentStore, sessions SessionStore) *DashboardService {
	return &DashboardService{repo: repo, students: students, sessions: sessions}
}

// GetDashboardData collects the dashboard for the admin's domains.
func (s *DashboardService) GetDashboardData(ctx context.Context, p model.Principal) (*DashboardData, error) {
	if !p.IsAdmin() {
		return nil, ErrAccessDenied
	}
	domains := p.Scope.Domains()

	stats, err := s.repo.DomainStats(ctx, domains)
	if err != nil {
		return nil, err
	}

	pending, err := s.students.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.sessions.ListRecentCompleted(ctx, domains, 10)
	if err != nil {
		return nil, err
	}

	data := &DashboardData{
		Domains:         stats,
		PendingStudents: pending,
		RecentSessions:  recent,
	}
	if data.Domains == nil {
		data.Domains = []repository.DomainStats{}
	}
	if data.RecentSessions == nil {
		data.RecentSessions = []model.SessionSummary{}
	}
	return data, nil
}

var _ DashboardStore = (*repository.DashboardRepository)(nil)
