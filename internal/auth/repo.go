package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository persists identities in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertIdentity writes a new identity; a duplicate email yields ErrEmailInUse.
func (r *Repository) InsertIdentity(ctx context.Context, id Identity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (uid, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, id.UID, id.Email, id.PasswordHash, id.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailInUse
	}
	return err
}

// IdentityByEmail returns nil when no identity uses email.
func (r *Repository) IdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT uid, email, password_hash, created_at FROM identities WHERE email = $1
	`, email)
	var id Identity
	if err := row.Scan(&id.UID, &id.Email, &id.PasswordHash, &id.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

// DeleteIdentity removes the identity with uid.
func (r *Repository) DeleteIdentity(ctx context.Context, uid string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE uid = $1`, uid)
	return err
}
