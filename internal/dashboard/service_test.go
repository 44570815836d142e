package dashboard

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portal/internal/account"
	"portal/internal/live"
)

type memProfiles struct {
	mu    sync.Mutex
	byUID map[string]*account.Profile
}

func (m *memProfiles) put(p account.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUID[p.UID] = &p
}

func (m *memProfiles) Profile(_ context.Context, uid string) (*account.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byUID[uid]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) ListProfiles(_ context.Context, f account.ProfileFilter) ([]account.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []account.Profile{}
	for _, p := range m.byUID {
		if f.ExcludeStatus != "" && p.Status == f.ExcludeStatus {
			continue
		}
		if len(f.Roles) > 0 {
			match := false
			for _, r := range f.Roles {
				match = match || p.Role == r
			}
			if !match {
				continue
			}
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (m *memProfiles) with(uid string, fn func(*account.Profile) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byUID[uid]
	if !ok {
		return account.ErrProfileNotFound
	}
	return fn(p)
}

func (m *memProfiles) SetStatus(_ context.Context, uid string, status account.Status) error {
	return m.with(uid, func(p *account.Profile) error { p.Status = status; return nil })
}

func (m *memProfiles) Promote(_ context.Context, uid string) error {
	return m.with(uid, func(p *account.Profile) error { p.Role = account.RoleAdmin; return nil })
}

func (m *memProfiles) ToggleAttendancePermission(_ context.Context, uid string) (bool, error) {
	var v bool
	err := m.with(uid, func(p *account.Profile) error {
		if p.Role != account.RoleSecretary {
			return account.ErrProfileNotFound
		}
		p.CanApproveAttendance = !p.CanApproveAttendance
		v = p.CanApproveAttendance
		return nil
	})
	return v, err
}

func (m *memProfiles) AddPoints(_ context.Context, uid string, n int) (int, error) {
	var total int
	err := m.with(uid, func(p *account.Profile) error {
		if p.Role != account.RoleStudent {
			return account.ErrProfileNotFound
		}
		p.Points += n
		total = p.Points
		return nil
	})
	return total, err
}

type memStore struct {
	mu         sync.Mutex
	profiles   *memProfiles
	attendance []AttendanceRequest
	homeworks  []Homework
	files      []File
	quizzes    []Quiz
}

func (s *memStore) InsertAttendance(_ context.Context, req AttendanceRequest) (AttendanceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = req.Date + "-" + req.StudentID
	req.Status = AttendancePending
	s.attendance = append(s.attendance, req)
	return req, nil
}

func (s *memStore) ApproveAttendance(_ context.Context, id, approvedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.attendance {
		if s.attendance[i].ID != id {
			continue
		}
		if s.attendance[i].Status != AttendancePending {
			return ErrAlreadyHandled
		}
		now := time.Now()
		s.attendance[i].Status = AttendanceApproved
		s.attendance[i].ApprovedBy = approvedBy
		s.attendance[i].ApprovedAt = &now
		return nil
	}
	return ErrNotFound
}

func (s *memStore) ListAttendance(_ context.Context, f AttendanceFilter) ([]AttendanceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []AttendanceRequest{}
	for _, r := range s.attendance {
		if (f.StudentID == "" || r.StudentID == f.StudentID) && (f.Status == "" || r.Status == f.Status) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) InsertHomework(_ context.Context, hw Homework) (Homework, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hw.ID = "hw-" + hw.FileName
	hw.Status = HomeworkSubmitted
	s.homeworks = append(s.homeworks, hw)
	return hw, nil
}

func (s *memStore) GradeHomework(ctx context.Context, id, grade, note string, reward int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.homeworks {
		hw := &s.homeworks[i]
		if hw.ID != id {
			continue
		}
		if hw.Status == HomeworkGraded {
			return "", ErrAlreadyHandled
		}
		hw.Status, hw.Grade, hw.AdminNote = HomeworkGraded, grade, note
		if _, err := s.profiles.AddPoints(ctx, hw.StudentID, reward); err != nil {
			return "", err
		}
		return hw.StudentID, nil
	}
	return "", ErrNotFound
}

func (s *memStore) ListHomeworks(_ context.Context, studentID string) ([]Homework, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Homework{}
	for _, hw := range s.homeworks {
		if studentID == "" || hw.StudentID == studentID {
			out = append(out, hw)
		}
	}
	return out, nil
}

func (s *memStore) InsertFile(_ context.Context, f File) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, f)
	return f, nil
}

func (s *memStore) ListFiles(context.Context) ([]File, error) { return s.files, nil }

func (s *memStore) InsertQuiz(_ context.Context, q Quiz) (Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes = append(s.quizzes, q)
	return q, nil
}

func (s *memStore) ListQuizzes(context.Context) ([]Quiz, error) { return s.quizzes, nil }

func (s *memStore) AdminStats(context.Context, time.Time) (AdminStats, error) {
	return AdminStats{}, nil
}

func (s *memStore) SecretaryStats(context.Context, time.Time) (SecretaryStats, error) {
	return SecretaryStats{}, nil
}

type notes struct {
	mu          sync.Mutex
	collections []string
	uids        []string
}

func (n *notes) Changed(_ context.Context, c string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.collections = append(n.collections, c)
	return nil
}

func (n *notes) AuthChanged(_ context.Context, uid string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.uids = append(n.uids, uid)
	return nil
}

type awarded struct{ total int }

func (a *awarded) PointsAwarded(n int) { a.total += n }

var (
	admin     = account.Profile{UID: "admin", Name: "Marina W", Role: account.RoleAdmin, Status: account.StatusActive}
	secretary = account.Profile{UID: "sec", Name: "Hadra V", Role: account.RoleSecretary, Status: account.StatusActive}
	omar      = account.Profile{UID: "omar", Name: "Omar Haddad", Role: account.RoleStudent, Status: account.StatusActive, Points: 35}
)

type env struct {
	svc      *Service
	profiles *memProfiles
	store    *memStore
	notes    *notes
	awarded  *awarded
}

func newEnv() *env {
	profiles := &memProfiles{byUID: map[string]*account.Profile{}}
	for _, p := range []account.Profile{admin, secretary, omar} {
		profiles.put(p)
	}
	e := &env{
		profiles: profiles,
		store:    &memStore{profiles: profiles},
		notes:    &notes{},
		awarded:  &awarded{},
	}
	e.svc = NewService(profiles, e.store, e.notes, e.awarded, 10, zap.NewNop())
	e.svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return e
}

func (e *env) profile(t *testing.T, uid string) account.Profile {
	t.Helper()
	p, err := e.profiles.Profile(context.Background(), uid)
	require.NoError(t, err)
	require.NotNil(t, p)
	return *p
}

func TestAwardPointsAddsExactlyN(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	before := e.profile(t, "omar").Points

	total, err := e.svc.AwardPoints(ctx, admin, "omar", 20)
	require.NoError(t, err)
	assert.Equal(t, before+20, total)
	assert.Equal(t, before+20, e.profile(t, "omar").Points)
	assert.Equal(t, 20, e.awarded.total)
	assert.Equal(t, []string{live.CollectionUsers}, e.notes.collections)

	for _, n := range []int{0, -5, MaxPointsAward + 1, math.MaxInt32} {
		_, err := e.svc.AwardPoints(ctx, admin, "omar", n)
		assert.ErrorIs(t, err, ErrInvalid)
	}
	_, err = e.svc.AwardPoints(ctx, admin, "sec", 5)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.svc.AwardPoints(ctx, secretary, "omar", 5)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, before+20, e.profile(t, "omar").Points)
}

func TestTogglePermissionTwiceRestores(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	original := e.profile(t, "sec").CanApproveAttendance

	v, err := e.svc.ToggleAttendancePermission(ctx, admin, "sec")
	require.NoError(t, err)
	assert.Equal(t, !original, v)
	v, err = e.svc.ToggleAttendancePermission(ctx, admin, "sec")
	require.NoError(t, err)
	assert.Equal(t, original, v)
	assert.Equal(t, original, e.profile(t, "sec").CanApproveAttendance)

	_, err = e.svc.ToggleAttendancePermission(ctx, admin, "omar")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApproveAttendanceRequiresPermission(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	req, err := e.svc.RequestAttendance(ctx, omar, "2026-03-01", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultAttendanceNote, req.Note)
	assert.Equal(t, "Omar Haddad", req.StudentName)

	// The acting profile claims the permission but the stored one does not have it.
	claimed := secretary
	claimed.CanApproveAttendance = true
	err = e.svc.ApproveAttendance(ctx, claimed, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.svc.ToggleAttendancePermission(ctx, admin, "sec")
	require.NoError(t, err)
	require.NoError(t, e.svc.ApproveAttendance(ctx, secretary, req.ID))

	list, err := e.store.ListAttendance(ctx, AttendanceFilter{StudentID: "omar"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, AttendanceApproved, list[0].Status)
	assert.Equal(t, "Hadra V", list[0].ApprovedBy)

	assert.ErrorIs(t, e.svc.ApproveAttendance(ctx, admin, req.ID), ErrAlreadyHandled)
	assert.ErrorIs(t, e.svc.ApproveAttendance(ctx, omar, req.ID), ErrForbidden)
}

func TestRequestAttendanceValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	_, err := e.svc.RequestAttendance(ctx, omar, "", "note")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = e.svc.RequestAttendance(ctx, omar, "01/03/2026", "note")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = e.svc.RequestAttendance(ctx, admin, "2026-03-01", "note")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestHomeworkSubmitAndGrade(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	_, err := e.svc.SubmitHomework(ctx, omar, "Essay", "essay.docx", "https://files.test/essay.docx")
	assert.ErrorIs(t, err, ErrInvalid)

	hw, err := e.svc.SubmitHomework(ctx, omar, "", "Essay.PDF", "https://files.test/essay.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Essay", hw.FileTitle)
	assert.Equal(t, HomeworkSubmitted, hw.Status)

	before := e.profile(t, "omar").Points
	assert.ErrorIs(t, e.svc.GradeHomework(ctx, admin, hw.ID, " ", ""), ErrInvalid)
	require.NoError(t, e.svc.GradeHomework(ctx, admin, hw.ID, "A", "well done"))
	assert.Equal(t, before+10, e.profile(t, "omar").Points)
	assert.ErrorIs(t, e.svc.GradeHomework(ctx, admin, hw.ID, "B", ""), ErrAlreadyHandled)
	assert.Equal(t, before+10, e.profile(t, "omar").Points)

	mine, err := e.store.ListHomeworks(ctx, "omar")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "A", mine[0].Grade)
}

func TestStatusChangesNotifyAuth(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	require.NoError(t, e.svc.Activate(ctx, admin, "omar"))
	require.NoError(t, e.svc.Delete(ctx, admin, "omar"))
	assert.Equal(t, account.StatusDeleted, e.profile(t, "omar").Status)
	require.NoError(t, e.svc.Promote(ctx, admin, "sec"))
	assert.Equal(t, account.RoleAdmin, e.profile(t, "sec").Role)

	assert.Equal(t, []string{"omar", "omar", "sec"}, e.notes.uids)
	assert.ErrorIs(t, e.svc.Delete(ctx, admin, "admin"), ErrInvalid)
	assert.ErrorIs(t, e.svc.Activate(ctx, admin, "ghost"), ErrNotFound)
	assert.ErrorIs(t, e.svc.Activate(ctx, secretary, "omar"), ErrForbidden)

	pendingStudent := omar
	pendingStudent.Status = account.StatusPending
	_, err := e.svc.RequestAttendance(ctx, pendingStudent, "2026-03-01", "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	f, err := e.svc.PublishFile(ctx, admin, "Chapter 1", "https://files.test/ch1.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, FileTypeNote, f.Type)
	_, err = e.svc.PublishFile(ctx, admin, "Chapter 2", "ftp://files.test/ch2.pdf", "note")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = e.svc.PublishFile(ctx, admin, "Chapter 2", "https://files.test/ch2.pdf", "video")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = e.svc.PublishFile(ctx, secretary, "Chapter 2", "https://files.test/ch2.pdf", "note")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.svc.PublishQuiz(ctx, secretary, "Quiz 1", "https://forms.test/q1")
	require.NoError(t, err)
	_, err = e.svc.PublishQuiz(ctx, omar, "Quiz 2", "https://forms.test/q2")
	assert.ErrorIs(t, err, ErrForbidden)

	assert.Equal(t, []string{live.CollectionFiles, live.CollectionQuizzes}, e.notes.collections)
}

func TestRank(t *testing.T) {
	cases := map[int]string{0: "diligent student", 100: "diligent student", 101: "distinguished hero", 500: "distinguished hero", 501: "school legend"}
	for points, want := range cases {
		assert.Equal(t, want, Rank(points), "points=%d", points)
	}
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.profiles.put(account.Profile{UID: "gone", Role: account.RoleStudent, Status: account.StatusDeleted})

	reg := live.NewRegistry()
	e.svc.RegisterQueries(reg)
	assert.Equal(t, []string{
		"attendance.mine", "attendance.pending", "files", "homeworks", "homeworks.mine",
		"me", "quizzes", "secretary.stats", "stats", "students", "users",
	}, reg.Names())

	users, err := reg.Run(ctx, "users", admin)
	require.NoError(t, err)
	var uids []string
	for _, p := range users.([]account.Profile) {
		uids = append(uids, p.UID)
	}
	assert.Equal(t, []string{"omar", "sec"}, uids)

	students, err := reg.Run(ctx, "students", secretary)
	require.NoError(t, err)
	assert.Len(t, students, 2)

	me, err := reg.Run(ctx, "me", omar)
	require.NoError(t, err)
	assert.Equal(t, "diligent student", me.(Me).Rank)

	_, err = reg.Run(ctx, "users", omar)
	assert.ErrorIs(t, err, live.ErrQueryForbidden)
	_, err = reg.Run(ctx, "me", admin)
	assert.ErrorIs(t, err, live.ErrQueryForbidden)
}
