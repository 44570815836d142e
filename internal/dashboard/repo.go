package dashboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyHandled = errors.New("already handled")
)

// Repository persists dashboard records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertAttendance writes a new pending request.
func (r *Repository) InsertAttendance(ctx context.Context, req AttendanceRequest) (AttendanceRequest, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	req.Status = AttendancePending
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_requests (id, student_id, student_name, date, note, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, req.ID, req.StudentID, req.StudentName, req.Date, req.Note, req.Status, req.Timestamp)
	return req, err
}

// ApproveAttendance moves a pending request to approved.
func (r *Repository) ApproveAttendance(ctx context.Context, id, approvedBy string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_requests
		SET status = 'approved', approved_by = $2, approved_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, approvedBy)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.missingOrHandled(ctx, `SELECT 1 FROM attendance_requests WHERE id = $1`, id)
	}
	return nil
}

// AttendanceFilter narrows ListAttendance. Zero values match everything.
type AttendanceFilter struct {
	StudentID string
	Status    string
}

// ListAttendance returns requests, newest first.
func (r *Repository) ListAttendance(ctx context.Context, f AttendanceFilter) ([]AttendanceRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, student_name, to_char(date, 'YYYY-MM-DD'), note, status, approved_by, approved_at, created_at
		FROM attendance_requests
		WHERE ($1 = '' OR student_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`, f.StudentID, f.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AttendanceRequest{}
	for rows.Next() {
		var req AttendanceRequest
		var approvedAt sql.NullTime
		if err := rows.Scan(&req.ID, &req.StudentID, &req.StudentName, &req.Date, &req.Note, &req.Status,
			&req.ApprovedBy, &approvedAt, &req.Timestamp); err != nil {
			return nil, err
		}
		if approvedAt.Valid {
			t := approvedAt.Time
			req.ApprovedAt = &t
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// InsertHomework writes a new submission.
func (r *Repository) InsertHomework(ctx context.Context, hw Homework) (Homework, error) {
	if hw.ID == "" {
		hw.ID = uuid.NewString()
	}
	if hw.SubmittedAt.IsZero() {
		hw.SubmittedAt = time.Now().UTC()
	}
	hw.Status = HomeworkSubmitted
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO homeworks (id, student_id, student_name, file_title, file_name, file_url, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, hw.ID, hw.StudentID, hw.StudentName, hw.FileTitle, hw.FileName, hw.FileURL, hw.Status, hw.SubmittedAt)
	return hw, err
}

// GradeHomework grades a submitted homework and credits reward points to its
// student in one transaction. It returns the student's id.
func (r *Repository) GradeHomework(ctx context.Context, id, grade, note string, reward int) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var studentID string
	err = tx.QueryRowContext(ctx, `
		UPDATE homeworks
		SET status = 'graded', grade = $2, admin_note = $3, graded_at = NOW()
		WHERE id = $1 AND status = 'submitted'
		RETURNING student_id
	`, id, grade, note).Scan(&studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", r.missingOrHandled(ctx, `SELECT 1 FROM homeworks WHERE id = $1`, id)
	}
	if err != nil {
		return "", err
	}

	if reward > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET points = points + $2, updated_at = NOW() WHERE uid = $1
		`, studentID, reward); err != nil {
			return "", fmt.Errorf("reward points: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return studentID, nil
}

// ListHomeworks returns submissions, newest first. An empty studentID lists all.
func (r *Repository) ListHomeworks(ctx context.Context, studentID string) ([]Homework, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, student_name, file_title, file_name, file_url, status, grade, admin_note, submitted_at, graded_at
		FROM homeworks
		WHERE ($1 = '' OR student_id = $1)
		ORDER BY submitted_at DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Homework{}
	for rows.Next() {
		var hw Homework
		var gradedAt sql.NullTime
		if err := rows.Scan(&hw.ID, &hw.StudentID, &hw.StudentName, &hw.FileTitle, &hw.FileName, &hw.FileURL,
			&hw.Status, &hw.Grade, &hw.AdminNote, &hw.SubmittedAt, &gradedAt); err != nil {
			return nil, err
		}
		if gradedAt.Valid {
			t := gradedAt.Time
			hw.GradedAt = &t
		}
		out = append(out, hw)
	}
	return out, rows.Err()
}

// InsertFile publishes a resource file.
func (r *Repository) InsertFile(ctx context.Context, f File) (File, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO files (id, title, url, type, created_at) VALUES ($1, $2, $3, $4, $5)
	`, f.ID, f.Title, f.URL, f.Type, f.CreatedAt)
	return f, err
}

// ListFiles returns resources, newest first.
func (r *Repository) ListFiles(ctx context.Context) ([]File, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, url, type, created_at FROM files ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Title, &f.URL, &f.Type, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// InsertQuiz publishes a quiz link.
func (r *Repository) InsertQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quizzes (id, title, link, created_at) VALUES ($1, $2, $3, $4)
	`, q.ID, q.Title, q.Link, q.CreatedAt)
	return q, err
}

// ListQuizzes returns quizzes, newest first.
func (r *Repository) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, link, created_at FROM quizzes ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Quiz{}
	for rows.Next() {
		var q Quiz
		if err := rows.Scan(&q.ID, &q.Title, &q.Link, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// AdminStats computes the administrator's counters for the UTC day of now.
func (r *Repository) AdminStats(ctx context.Context, now time.Time) (AdminStats, error) {
	var s AdminStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'student'),
			(SELECT COUNT(*) FROM users WHERE status = 'pending'),
			(SELECT COALESCE(SUM(points), 0) FROM users),
			(SELECT COUNT(*) FROM attendance_requests WHERE status = 'approved' AND date = $1::date)
	`, now.UTC().Format("2006-01-02")).Scan(&s.TotalStudents, &s.PendingUsers, &s.TotalPoints, &s.PresentToday)
	return s, err
}

// SecretaryStats computes the secretary's counters for the UTC day of now.
func (r *Repository) SecretaryStats(ctx context.Context, now time.Time) (SecretaryStats, error) {
	y, m, d := now.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	var s SecretaryStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'student' AND created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM attendance_requests WHERE status = 'pending')
	`, start, start.Add(24*time.Hour)).Scan(&s.StudentsToday, &s.PendingAttendance)
	return s, err
}

func (r *Repository) missingOrHandled(ctx context.Context, q, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, q, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyHandled
}
