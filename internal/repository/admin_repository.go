package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assess/internal/model"
)

const adminColumns = `id, username, email, password_hash, all_domains, domains, created_at`

// AdminRepository handles admin data access.
type AdminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository creates a new AdminRepository.
func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

func scanAdmin(row pgx.Row) (*model.Admin, error) {
	a := &model.Admin{}
	var domains []string
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.AllDomains, &domains, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Domains = make([]model.Domain, 0, len(domains))
	for _, d := range domains {
		a.Domains = append(a.Domains, model.Domain(d))
	}
	return a, nil
}

// GetByID retrieves an admin by ID.
func (r *AdminRepository) GetByID(ctx context.Context, id int) (*model.Admin, error) {
	a, err := scanAdmin(r.pool.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return a, nil
}

// GetByUsername retrieves an admin by username for authentication.
func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*model.Admin, error) {
	a, err := scanAdmin(r.pool.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE username = $1`, username))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return a, nil
}

// Create inserts a new admin.
func (r *AdminRepository) Create(ctx context.Context, a *model.Admin) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO admins (username, email, password_hash, all_domains, domains)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		a.Username, a.Email, a.PasswordHash, a.AllDomains, domainStrings(a.Domains),
	).Scan(&a.ID, &a.CreatedAt)
	if pgErr, ok := pgError(err); ok && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

// List retrieves every admin ordered by username.
func (r *AdminRepository) List(ctx context.Context) ([]model.Admin, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+adminColumns+` FROM admins ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []model.Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, *a)
	}
	return admins, rows.Err()
}
