package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stemsi/exstem-assess/internal/model"
)

func TestStudentService_RegistrationFlow(t *testing.T) {
	m := newMemStore()
	svc := NewStudentService(studentFake{m}, plainHasher{})
	ctx := context.Background()
	admin := model.AdminPrincipal(1, model.DomainSetScope(model.DomainML))

	st, err := svc.Register(ctx, model.RegisterStudentRequest{Username: "ayu", Email: "Ayu@Example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if st.IsApproved || st.Email != "ayu@example.com" {
		t.Errorf("registered = %+v", st)
	}
	if _, err := svc.Register(ctx, model.RegisterStudentRequest{Username: "ayu", Email: "x@example.com", Password: "secret1"}); !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("duplicate err = %v, want ErrDuplicateUser", err)
	}

	if _, err := svc.Authenticate(ctx, "ayu", "secret1"); !errors.Is(err, ErrAccountPending) {
		t.Errorf("pending login err = %v, want ErrAccountPending", err)
	}

	pending, err := svc.ListPending(ctx, admin)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListPending = %v, %v", pending, err)
	}
	if err := svc.Approve(ctx, model.StudentPrincipal(st.ID), st.ID); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("student approve err = %v, want ErrAccessDenied", err)
	}
	if err := svc.Approve(ctx, admin, st.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := svc.Approve(ctx, admin, st.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second approve err = %v, want ErrNotFound", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"valid", "ayu", "secret1", nil},
		{"wrong password", "ayu", "nope", ErrInvalidCredentials},
		{"unknown user", "budi", "secret1", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tt.username, tt.password)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStudentService_Reject(t *testing.T) {
	m := newMemStore()
	svc := NewStudentService(studentFake{m}, plainHasher{})
	ctx := context.Background()
	admin := model.AdminPrincipal(1, model.AllDomainsScope())

	st, err := svc.Register(ctx, model.RegisterStudentRequest{Username: "citra", Email: "c@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Reject(ctx, admin, st.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := svc.GetByID(ctx, st.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("rejected student still present: %v", err)
	}
}
