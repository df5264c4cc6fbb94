package service

import (
	"testing"
	"time"

	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/model"
)

func TestAdminTokenCarriesScope(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: 4}, nil)

	tests := []struct {
		name    string
		admin   model.Admin
		allows  []model.Domain
		refuses []model.Domain
	}{
		{
			name:    "domain set",
			admin:   model.Admin{ID: 3, Domains: []model.Domain{model.DomainML}},
			allows:  []model.Domain{model.DomainML},
			refuses: []model.Domain{model.DomainWebDev, model.DomainDataScience},
		},
		{
			name:   "all domains flag",
			admin:  model.Admin{ID: 4, AllDomains: true},
			allows: model.AllDomains,
		},
		{
			name:   "empty list means all",
			admin:  model.Admin{ID: 5},
			allows: model.AllDomains,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := svc.GenerateAdminToken(&tt.admin)
			if err != nil {
				t.Fatalf("GenerateAdminToken: %v", err)
			}
			claims, err := svc.ValidateToken(token)
			if err != nil {
				t.Fatalf("ValidateToken: %v", err)
			}
			p := claims.Principal()
			if !p.IsAdmin() || p.UserID != tt.admin.ID {
				t.Fatalf("principal = %+v", p)
			}
			for _, d := range tt.allows {
				if !p.CanManage(d) {
					t.Errorf("cannot manage %s", d)
				}
			}
			for _, d := range tt.refuses {
				if p.CanManage(d) {
					t.Errorf("can manage %s", d)
				}
			}
		})
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	a := NewAuthService(&config.Config{JWTSecret: "one", JWTExpiry: time.Hour}, nil)
	b := NewAuthService(&config.Config{JWTSecret: "two", JWTExpiry: time.Hour}, nil)

	token, err := a.GenerateAdminToken(&model.Admin{ID: 1, AllDomains: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.ValidateToken(token); err == nil {
		t.Error("token signed with another secret was accepted")
	}
}

func TestPasswordHashing(t *testing.T) {
	svc := NewAuthService(&config.Config{BcryptCost: 4}, nil)
	hash, err := svc.HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.CheckPassword(hash, "hunter22"); err != nil {
		t.Errorf("CheckPassword(correct) = %v", err)
	}
	if err := svc.CheckPassword(hash, "hunter23"); err != ErrInvalidCredentials {
		t.Errorf("CheckPassword(wrong) = %v, want ErrInvalidCredentials", err)
	}
}
