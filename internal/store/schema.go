package store

import (
	"context"
	"database/sql"
)

// schema is applied on every start; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS identities (
	uid           TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash BYTEA NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
	uid                    TEXT PRIMARY KEY,
	name                   TEXT NOT NULL,
	email                  TEXT NOT NULL DEFAULT '',
	phone                  TEXT NOT NULL DEFAULT '',
	role                   TEXT NOT NULL CHECK (role IN ('admin', 'secretary', 'student')),
	access_code            TEXT NOT NULL,
	status                 TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'active', 'deleted')),
	points                 INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
	can_approve_attendance BOOLEAN NOT NULL DEFAULT FALSE,
	stage                  TEXT NOT NULL DEFAULT '',
	subject                TEXT NOT NULL DEFAULT '',
	photo_url              TEXT NOT NULL DEFAULT '',
	registered_by          TEXT NOT NULL DEFAULT '',
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);

CREATE TABLE IF NOT EXISTS attendance_requests (
	id           TEXT PRIMARY KEY,
	student_id   TEXT NOT NULL REFERENCES users(uid),
	student_name TEXT NOT NULL,
	date         DATE NOT NULL,
	note         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved')),
	approved_by  TEXT NOT NULL DEFAULT '',
	approved_at  TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_attendance_student ON attendance_requests(student_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_attendance_status ON attendance_requests(status);

CREATE TABLE IF NOT EXISTS homeworks (
	id           TEXT PRIMARY KEY,
	student_id   TEXT NOT NULL REFERENCES users(uid),
	student_name TEXT NOT NULL,
	file_title   TEXT NOT NULL,
	file_name    TEXT NOT NULL,
	file_url     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'submitted' CHECK (status IN ('submitted', 'graded')),
	grade        TEXT NOT NULL DEFAULT '',
	admin_note   TEXT NOT NULL DEFAULT '',
	submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	graded_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_homeworks_student ON homeworks(student_id, submitted_at DESC);

CREATE TABLE IF NOT EXISTS files (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	url        TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT 'note',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS quizzes (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	link       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// CreateSchema creates the portal tables when they are missing.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
