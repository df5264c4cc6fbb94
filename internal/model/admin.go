package model

import "time"

// Admin is an exam author whose reach is limited to a set of domains.
type Admin struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AllDomains   bool      `json:"all_domains"`
	Domains      []Domain  `json:"domains"`
	CreatedAt    time.Time `json:"created_at"`
}

// Scope resolves the admin's stored domain columns into an AdminScope.
func (a *Admin) Scope() AdminScope {
	return ResolveScope(a.AllDomains, a.Domains)
}

// AdminLoginRequest is the payload for admin authentication.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=80"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// CreateAdminRequest is the payload for adding an admin account.
type CreateAdminRequest struct {
	Username string   `json:"username" binding:"required,min=3,max=80,alphanum"`
	Email    string   `json:"email" binding:"required,email,max=120"`
	Password string   `json:"password" binding:"required,min=8,max=128"`
	Domains  []string `json:"domains" binding:"omitempty,max=3,dive,domain"`
}
