package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/repository"
)

// AdminService handles admin accounts.
type AdminService struct {
	adminRepo AdminStore
	hasher    PasswordHasher
}

// NewAdminService creates a new AdminService.
func NewAdminService(adminRepo AdminStore, hasher PasswordHasher) *AdminService {
	return &AdminService{adminRepo: adminRepo, hasher: hasher}
}

// GetByID retrieves an admin by ID.
func (s *AdminService) GetByID(ctx context.Context, id int) (*model.Admin, error) {
	a, err := s.adminRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("get admin", err)
	}
	return a, nil
}

// Authenticate checks admin credentials.
func (s *AdminService) Authenticate(ctx context.Context, username, password string) (*model.Admin, error) {
	a, err := s.adminRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if err := s.hasher.CheckPassword(a.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// Create stores a new admin with a hashed password. An empty domain list
// with allDomains unset still resolves to every domain at login.
func (s *AdminService) Create(ctx context.Context, username, email, password string, scope model.AdminScope) (*model.Admin, error) {
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	a := &model.Admin{
		Username:     strings.TrimSpace(username),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		AllDomains:   scope.IsAll(),
	}
	if !scope.IsAll() {
		a.Domains = scope.Domains()
	}
	if err := s.adminRepo.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return a, nil
}

// List returns every admin account. Only admins covering all domains may
// manage other admins.
func (s *AdminService) List(ctx context.Context, p model.Principal) ([]model.Admin, error) {
	if !p.IsAdmin() || !p.Scope.IsAll() {
		return nil, ErrAccessDenied
	}
	admins, err := s.adminRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	if admins == nil {
		admins = []model.Admin{}
	}
	return admins, nil
}

// CreateByAdmin adds an admin account on behalf of an all-domains admin.
// No domains means every domain.
func (s *AdminService) CreateByAdmin(ctx context.Context, p model.Principal, req model.CreateAdminRequest) (*model.Admin, error) {
	if !p.IsAdmin() || !p.Scope.IsAll() {
		return nil, ErrAccessDenied
	}
	domains := make([]model.Domain, 0, len(req.Domains))
	for _, d := range req.Domains {
		domains = append(domains, model.Domain(d))
	}
	return s.Create(ctx, req.Username, req.Email, req.Password, model.ResolveScope(len(domains) == 0, domains))
}
