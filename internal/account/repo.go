package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrProfileNotFound is returned by mutations addressing a missing profile.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileColumns is the select list ScanProfile expects.
const ProfileColumns = `uid, name, email, phone, role, access_code, status, points,
	can_approve_attendance, stage, subject, photo_url, registered_by, created_at, updated_at`

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanProfile reads one row selected with ProfileColumns.
func ScanProfile(s Scanner) (Profile, error) {
	var p Profile
	var role, status string
	err := s.Scan(&p.UID, &p.Name, &p.Email, &p.Phone, &role, &p.AccessCode, &status, &p.Points,
		&p.CanApproveAttendance, &p.Stage, &p.Subject, &p.PhotoURL, &p.RegisteredBy, &p.CreatedAt, &p.UpdatedAt)
	p.Role = Role(role)
	p.Status = Status(status)
	return p, err
}

// Repository persists profiles in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Profile returns nil when uid has no profile.
func (r *Repository) Profile(ctx context.Context, uid string) (*Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ProfileColumns+` FROM users WHERE uid = $1`, uid)
	p, err := ScanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts p.
func (r *Repository) CreateProfile(ctx context.Context, p Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (uid, name, email, phone, role, access_code, status, points,
			can_approve_attendance, stage, subject, photo_url, registered_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, p.UID, p.Name, p.Email, p.Phone, string(p.Role), p.AccessCode, string(p.Status), p.Points,
		p.CanApproveAttendance, p.Stage, p.Subject, p.PhotoURL, p.RegisteredBy, p.CreatedAt, p.UpdatedAt)
	return err
}

// ProfileFilter narrows ListProfiles. Zero values match everything.
type ProfileFilter struct {
	Roles         []Role
	ExcludeStatus Status
}

// ListProfiles returns matching profiles, newest first.
func (r *Repository) ListProfiles(ctx context.Context, f ProfileFilter) ([]Profile, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Roles) > 0 {
		marks := make([]string, len(f.Roles))
		for i, role := range f.Roles {
			args = append(args, string(role))
			marks[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, "role IN ("+strings.Join(marks, ", ")+")")
	}
	if f.ExcludeStatus != "" {
		args = append(args, string(f.ExcludeStatus))
		where = append(where, fmt.Sprintf("status <> $%d", len(args)))
	}
	q := `SELECT ` + ProfileColumns + ` FROM users`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Profile{}
	for rows.Next() {
		p, err := ScanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetStatus moves a profile to status.
func (r *Repository) SetStatus(ctx context.Context, uid string, status Status) error {
	return r.exec(ctx, `UPDATE users SET status = $2, updated_at = NOW() WHERE uid = $1`, uid, string(status))
}

// Promote makes uid an administrator. Role changes go through here only.
func (r *Repository) Promote(ctx context.Context, uid string) error {
	return r.exec(ctx, `UPDATE users SET role = 'admin', updated_at = NOW() WHERE uid = $1`, uid)
}

// ToggleAttendancePermission flips can_approve_attendance atomically and
// returns the new value.
func (r *Repository) ToggleAttendancePermission(ctx context.Context, uid string) (bool, error) {
	var v bool
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET can_approve_attendance = NOT can_approve_attendance, updated_at = NOW()
		WHERE uid = $1 AND role = 'secretary'
		RETURNING can_approve_attendance
	`, uid).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrProfileNotFound
	}
	return v, err
}

// AddPoints increments a student's points by n and returns the new total.
func (r *Repository) AddPoints(ctx context.Context, uid string, n int) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET points = points + $2, updated_at = NOW()
		WHERE uid = $1 AND role = 'student'
		RETURNING points
	`, uid, n).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProfileNotFound
	}
	return total, err
}

// SetPhotoURL records an uploaded avatar.
func (r *Repository) SetPhotoURL(ctx context.Context, uid, url string) error {
	return r.exec(ctx, `UPDATE users SET photo_url = $2, updated_at = NOW() WHERE uid = $1`, uid, url)
}

func (r *Repository) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func newDocumentID() string {
	return uuid.NewString()
}

