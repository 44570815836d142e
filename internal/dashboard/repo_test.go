package dashboard

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/account"
	"portal/internal/store"
)

// openTestDB connects to the database named by PORTAL_TEST_DATABASE_URL and
// skips the test when it is unset.
func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	url := os.Getenv("PORTAL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PORTAL_TEST_DATABASE_URL not set")
	}
	db, err := store.NewDB(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedProfile(t *testing.T, profiles *account.Repository, role account.Role) account.Profile {
	t.Helper()
	now := time.Now().UTC()
	p := account.Profile{
		UID:        "test-" + uuid.NewString(),
		Name:       "Test " + string(role),
		Role:       role,
		AccessCode: "ABCD2345",
		Status:     account.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, profiles.CreateProfile(context.Background(), p))
	return p
}

func TestRepositoryPostgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	profiles := account.NewRepository(db.Client)
	repo := NewRepository(db.Client)

	student := seedProfile(t, profiles, account.RoleStudent)
	secretary := seedProfile(t, profiles, account.RoleSecretary)

	t.Run("points increment", func(t *testing.T) {
		total, err := profiles.AddPoints(ctx, student.UID, 20)
		require.NoError(t, err)
		assert.Equal(t, 20, total)
		_, err = profiles.AddPoints(ctx, secretary.UID, 5)
		assert.ErrorIs(t, err, account.ErrProfileNotFound)
	})

	t.Run("toggle twice restores", func(t *testing.T) {
		v, err := profiles.ToggleAttendancePermission(ctx, secretary.UID)
		require.NoError(t, err)
		assert.True(t, v)
		v, err = profiles.ToggleAttendancePermission(ctx, secretary.UID)
		require.NoError(t, err)
		assert.False(t, v)
	})

	t.Run("grading credits reward once", func(t *testing.T) {
		hw, err := repo.InsertHomework(ctx, Homework{
			StudentID: student.UID, StudentName: student.Name,
			FileTitle: "Essay", FileName: "essay.pdf", FileURL: "https://files.test/essay.pdf",
		})
		require.NoError(t, err)

		uid, err := repo.GradeHomework(ctx, hw.ID, "A", "", 10)
		require.NoError(t, err)
		assert.Equal(t, student.UID, uid)
		_, err = repo.GradeHomework(ctx, hw.ID, "B", "", 10)
		assert.ErrorIs(t, err, ErrAlreadyHandled)
		_, err = repo.GradeHomework(ctx, "missing", "B", "", 10)
		assert.ErrorIs(t, err, ErrNotFound)

		p, err := profiles.Profile(ctx, student.UID)
		require.NoError(t, err)
		assert.Equal(t, 30, p.Points)
	})

	t.Run("attendance approve", func(t *testing.T) {
		req, err := repo.InsertAttendance(ctx, AttendanceRequest{
			StudentID: student.UID, StudentName: student.Name, Date: "2026-03-01", Note: DefaultAttendanceNote,
		})
		require.NoError(t, err)
		require.NoError(t, repo.ApproveAttendance(ctx, req.ID, secretary.Name))
		assert.ErrorIs(t, repo.ApproveAttendance(ctx, req.ID, secretary.Name), ErrAlreadyHandled)

		list, err := repo.ListAttendance(ctx, AttendanceFilter{StudentID: student.UID})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, AttendanceApproved, list[0].Status)
		assert.Equal(t, "2026-03-01", list[0].Date)
		assert.NotNil(t, list[0].ApprovedAt)
	})
}
