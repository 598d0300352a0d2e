package crdb

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/plan-it/planit/internal/domain"
)

// UpsertUser registers a user on first sign-in. The external identity id is
// immutable; repeated sign-ins refresh the mutable profile fields only.
func (r *Repository) UpsertUser(ctx context.Context, u domain.User) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, external_id, name, email, phone, address, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE SET name = $3, email = $4
		RETURNING id, external_id, name, email, phone, address, role
	`, u.ID, u.ExternalID, u.Name, u.Email, u.Phone, u.Address, u.Role)
	return scanUser(row)
}

func (r *Repository) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, external_id, name, email, phone, address, role
		FROM users WHERE external_id = $1
	`, externalID)
	return scanUser(row)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, external_id, name, email, phone, address, role
		FROM users WHERE email = $1
	`, email)
	return scanUser(row)
}

func (r *Repository) UpdateUserProfile(ctx context.Context, externalID, name, phone, address string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET name = $2, phone = $3, address = $4
		WHERE external_id = $1
		RETURNING id, external_id, name, email, phone, address, role
	`, externalID, name, phone, address)
	return scanUser(row)
}

func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, external_id, name, email, phone, address, role
		FROM users ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *Repository) CountAdmins(ctx context.Context, tx pgx.Tx) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `SELECT count(*) FROM users WHERE role = $1`, domain.RoleAdmin).Scan(&n)
	return n, err
}

func (r *Repository) UpdateUserRole(ctx context.Context, tx pgx.Tx, email string, role domain.Role) error {
	result, err := tx.Exec(ctx, `UPDATE users SET role = $2 WHERE email = $1`, email, role)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) OrganizerHasEvents(ctx context.Context, organizerID string) (bool, error) {
	var hosted bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM events WHERE organizer_id = $1)
	`, organizerID).Scan(&hosted)
	return hosted, err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email, &u.Phone, &u.Address, &u.Role)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
