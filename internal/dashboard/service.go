// Package dashboard implements the reads and writes behind the administrator,
// secretary and student dashboards.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"portal/internal/account"
	"portal/internal/live"
)

var (
	ErrForbidden = errors.New("not allowed for this account")
	ErrInvalid   = errors.New("invalid input")
)

// Profiles is the slice of the profile store the dashboards mutate.
type Profiles interface {
	Profile(ctx context.Context, uid string) (*account.Profile, error)
	ListProfiles(ctx context.Context, f account.ProfileFilter) ([]account.Profile, error)
	SetStatus(ctx context.Context, uid string, status account.Status) error
	Promote(ctx context.Context, uid string) error
	ToggleAttendancePermission(ctx context.Context, uid string) (bool, error)
	AddPoints(ctx context.Context, uid string, n int) (int, error)
}

// Store persists attendance, homework and published resources.
type Store interface {
	InsertAttendance(ctx context.Context, req AttendanceRequest) (AttendanceRequest, error)
	ApproveAttendance(ctx context.Context, id, approvedBy string) error
	ListAttendance(ctx context.Context, f AttendanceFilter) ([]AttendanceRequest, error)
	InsertHomework(ctx context.Context, hw Homework) (Homework, error)
	GradeHomework(ctx context.Context, id, grade, note string, reward int) (string, error)
	ListHomeworks(ctx context.Context, studentID string) ([]Homework, error)
	InsertFile(ctx context.Context, f File) (File, error)
	ListFiles(ctx context.Context) ([]File, error)
	InsertQuiz(ctx context.Context, q Quiz) (Quiz, error)
	ListQuizzes(ctx context.Context) ([]Quiz, error)
	AdminStats(ctx context.Context, now time.Time) (AdminStats, error)
	SecretaryStats(ctx context.Context, now time.Time) (SecretaryStats, error)
}

// Notifier publishes collection changes and auth-state changes.
type Notifier interface {
	Changed(ctx context.Context, collection string) error
	AuthChanged(ctx context.Context, uid string) error
}

// PointsRecorder counts awarded points.
type PointsRecorder interface {
	PointsAwarded(n int)
}

// Service runs dashboard operations on behalf of an acting profile.
type Service struct {
	profiles Profiles
	store    Store
	notify   Notifier
	points   PointsRecorder
	reward   int
	log      *zap.Logger
	now      func() time.Time
}

// NewService wires a service. reward is the points credit for a graded
// homework. notify and points may be nil.
func NewService(profiles Profiles, store Store, notify Notifier, points PointsRecorder, reward int, log *zap.Logger) *Service {
	return &Service{
		profiles: profiles,
		store:    store,
		notify:   notify,
		points:   points,
		reward:   reward,
		log:      log,
		now:      time.Now,
	}
}

// Activate lets a pending (or previously removed) account log in.
func (s *Service) Activate(ctx context.Context, actor account.Profile, uid string) error {
	if err := requireRole(actor, account.RoleAdmin); err != nil {
		return err
	}
	if err := s.profiles.SetStatus(ctx, uid, account.StatusActive); err != nil {
		return mapProfileErr(err)
	}
	s.audit(actor, "activate", uid)
	s.changedAuth(ctx, uid)
	return nil
}

// Delete soft-deletes an account; the profile stays but can no longer log in.
func (s *Service) Delete(ctx context.Context, actor account.Profile, uid string) error {
	if err := requireRole(actor, account.RoleAdmin); err != nil {
		return err
	}
	if uid == actor.UID {
		return fmt.Errorf("%w: you cannot remove your own account", ErrInvalid)
	}
	if err := s.profiles.SetStatus(ctx, uid, account.StatusDeleted); err != nil {
		return mapProfileErr(err)
	}
	s.audit(actor, "delete", uid)
	s.changedAuth(ctx, uid)
	return nil
}

// Promote turns an account into an administrator.
func (s *Service) Promote(ctx context.Context, actor account.Profile, uid string) error {
	if err := requireRole(actor, account.RoleAdmin); err != nil {
		return err
	}
	if err := s.profiles.Promote(ctx, uid); err != nil {
		return mapProfileErr(err)
	}
	s.audit(actor, "promote", uid)
	s.changedAuth(ctx, uid)
	return nil
}

// ToggleAttendancePermission flips a secretary's right to approve attendance
// and returns the new value.
func (s *Service) ToggleAttendancePermission(ctx context.Context, actor account.Profile, uid string) (bool, error) {
	if err := requireRole(actor, account.RoleAdmin); err != nil {
		return false, err
	}
	v, err := s.profiles.ToggleAttendancePermission(ctx, uid)
	if err != nil {
		return false, mapProfileErr(err)
	}
	s.audit(actor, "toggle-attendance-permission", uid, zap.Bool("value", v))
	s.changed(ctx, live.CollectionUsers)
	return v, nil
}

// AwardPoints adds n points to a student and returns the new total.
func (s *Service) AwardPoints(ctx context.Context, actor account.Profile, uid string, n int) (int, error) {
	if err := requireRole(actor, account.RoleAdmin); err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: points must be a positive whole number", ErrInvalid)
	}
	if n > MaxPointsAward {
		return 0, fmt.Errorf("%w: at most %d points can be awarded at once", ErrInvalid, MaxPointsAward)
	}
	total, err := s.profiles.AddPoints(ctx, uid, n)
	if err != nil {
		return 0, mapProfileErr(err)
	}
	if s.points != nil {
		s.points.PointsAwarded(n)
	}
	s.audit(actor, "award-points", uid, zap.Int("points", n), zap.Int("total", total))
	s.changed(ctx, live.CollectionUsers)
	return total, nil
}

// GradeHomework grades a submission and credits the homework reward.
func (s *Service) GradeHomework(ctx context.Context, actor account.Profile, id, grade, note string) error {
	if err := requireRole(actor, account.RoleAdmin); err != nil {
		return err
	}
	grade = strings.TrimSpace(grade)
	if grade == "" {
		return fmt.Errorf("%w: grade is required", ErrInvalid)
	}
	studentID, err := s.store.GradeHomework(ctx, id, grade, strings.TrimSpace(note), s.reward)
	if err != nil {
		return err
	}
	if s.points != nil && s.reward > 0 {
		s.points.PointsAwarded(s.reward)
	}
	s.audit(actor, "grade-homework", studentID, zap.String("homework", id))
	s.changed(ctx, live.CollectionHomeworks)
	s.changed(ctx, live.CollectionUsers)
	return nil
}

// PublishFile adds a note or homework sheet to the library.
func (s *Service) PublishFile(ctx context.Context, actor account.Profile, title, link, kind string) (File, error) {
	if err := requireRole(actor, account.RoleAdmin); err != nil {
		return File{}, err
	}
	title, link = strings.TrimSpace(title), strings.TrimSpace(link)
	if title == "" || !validURL(link) {
		return File{}, fmt.Errorf("%w: title and a valid url are required", ErrInvalid)
	}
	switch kind {
	case "":
		kind = FileTypeNote
	case FileTypeNote, FileTypeHomework:
	default:
		return File{}, fmt.Errorf("%w: type must be note or homework", ErrInvalid)
	}
	f, err := s.store.InsertFile(ctx, File{Title: title, URL: link, Type: kind, CreatedAt: s.now().UTC()})
	if err != nil {
		return File{}, err
	}
	s.changed(ctx, live.CollectionFiles)
	return f, nil
}

// PublishQuiz adds a quiz link. Administrators and secretaries may publish.
func (s *Service) PublishQuiz(ctx context.Context, actor account.Profile, title, link string) (Quiz, error) {
	if err := requireRole(actor, account.RoleAdmin, account.RoleSecretary); err != nil {
		return Quiz{}, err
	}
	title, link = strings.TrimSpace(title), strings.TrimSpace(link)
	if title == "" || !validURL(link) {
		return Quiz{}, fmt.Errorf("%w: title and a valid link are required", ErrInvalid)
	}
	q, err := s.store.InsertQuiz(ctx, Quiz{Title: title, Link: link, CreatedAt: s.now().UTC()})
	if err != nil {
		return Quiz{}, err
	}
	s.changed(ctx, live.CollectionQuizzes)
	return q, nil
}

// ApproveAttendance confirms a pending request. Secretaries need the
// attendance permission granted by an administrator; it is read from the
// stored profile, not from anything the client sends.
func (s *Service) ApproveAttendance(ctx context.Context, actor account.Profile, id string) error {
	if err := requireRole(actor, account.RoleAdmin, account.RoleSecretary); err != nil {
		return err
	}
	if actor.Role == account.RoleSecretary {
		current, err := s.profiles.Profile(ctx, actor.UID)
		if err != nil {
			return fmt.Errorf("load approver: %w", err)
		}
		if current == nil || !current.CanApproveAttendance {
			return fmt.Errorf("%w: attendance approval has not been granted to you by the administration", ErrForbidden)
		}
	}
	if err := s.store.ApproveAttendance(ctx, id, actor.Name); err != nil {
		return err
	}
	s.audit(actor, "approve-attendance", "", zap.String("request", id))
	s.changed(ctx, live.CollectionAttendance)
	return nil
}

// RequestAttendance records a student's attendance claim for date (YYYY-MM-DD).
func (s *Service) RequestAttendance(ctx context.Context, actor account.Profile, date, note string) (AttendanceRequest, error) {
	if err := requireRole(actor, account.RoleStudent); err != nil {
		return AttendanceRequest{}, err
	}
	date = strings.TrimSpace(date)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return AttendanceRequest{}, fmt.Errorf("%w: please choose the session date first", ErrInvalid)
	}
	if note = strings.TrimSpace(note); note == "" {
		note = DefaultAttendanceNote
	}
	req, err := s.store.InsertAttendance(ctx, AttendanceRequest{
		StudentID:   actor.UID,
		StudentName: actor.Name,
		Date:        date,
		Note:        note,
		Timestamp:   s.now().UTC(),
	})
	if err != nil {
		return AttendanceRequest{}, err
	}
	s.changed(ctx, live.CollectionAttendance)
	return req, nil
}

// SubmitHomework records a PDF homework submission.
func (s *Service) SubmitHomework(ctx context.Context, actor account.Profile, title, fileName, fileURL string) (Homework, error) {
	if err := requireRole(actor, account.RoleStudent); err != nil {
		return Homework{}, err
	}
	title, fileName, fileURL = strings.TrimSpace(title), strings.TrimSpace(fileName), strings.TrimSpace(fileURL)
	if fileName == "" {
		return Homework{}, fmt.Errorf("%w: please choose the homework file first", ErrInvalid)
	}
	if !strings.HasSuffix(strings.ToLower(fileName), ".pdf") {
		return Homework{}, fmt.Errorf("%w: homework must be a PDF file", ErrInvalid)
	}
	if !validURL(fileURL) {
		return Homework{}, fmt.Errorf("%w: a valid file url is required", ErrInvalid)
	}
	if title == "" {
		title = fileName[:len(fileName)-len(".pdf")]
	}
	hw, err := s.store.InsertHomework(ctx, Homework{
		StudentID:   actor.UID,
		StudentName: actor.Name,
		FileTitle:   title,
		FileName:    fileName,
		FileURL:     fileURL,
		SubmittedAt: s.now().UTC(),
	})
	if err != nil {
		return Homework{}, err
	}
	s.changed(ctx, live.CollectionHomeworks)
	return hw, nil
}

// Users lists every non-admin account that has not been removed.
func (s *Service) Users(ctx context.Context) ([]account.Profile, error) {
	return s.profiles.ListProfiles(ctx, account.ProfileFilter{
		Roles:         []account.Role{account.RoleSecretary, account.RoleStudent},
		ExcludeStatus: account.StatusDeleted,
	})
}

// Students lists every student profile.
func (s *Service) Students(ctx context.Context) ([]account.Profile, error) {
	return s.profiles.ListProfiles(ctx, account.ProfileFilter{Roles: []account.Role{account.RoleStudent}})
}

// Me returns the viewer's current profile with its rank.
func (s *Service) Me(ctx context.Context, viewer account.Profile) (Me, error) {
	p, err := s.profiles.Profile(ctx, viewer.UID)
	if err != nil {
		return Me{}, err
	}
	if p == nil {
		return Me{}, ErrNotFound
	}
	return Me{Profile: *p, Rank: Rank(p.Points)}, nil
}

func (s *Service) changed(ctx context.Context, collection string) {
	if s.notify == nil {
		return
	}
	if err := s.notify.Changed(ctx, collection); err != nil {
		s.log.Warn("publish change", zap.String("collection", collection), zap.Error(err))
	}
}

// changedAuth announces a status or role change so open sessions are re-checked.
func (s *Service) changedAuth(ctx context.Context, uid string) {
	s.changed(ctx, live.CollectionUsers)
	if s.notify == nil {
		return
	}
	if err := s.notify.AuthChanged(ctx, uid); err != nil {
		s.log.Warn("publish auth change", zap.String("uid", uid), zap.Error(err))
	}
}

func (s *Service) audit(actor account.Profile, action, target string, fields ...zap.Field) {
	s.log.Info("dashboard action", append([]zap.Field{
		zap.String("action", action),
		zap.String("actor", actor.UID),
		zap.String("target", target),
	}, fields...)...)
}

func requireRole(actor account.Profile, roles ...account.Role) error {
	if !actor.CanLogin() {
		return ErrForbidden
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

func mapProfileErr(err error) error {
	if errors.Is(err, account.ErrProfileNotFound) {
		return ErrNotFound
	}
	return err
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
