package dashboard

import (
	"context"

	"portal/internal/account"
	"portal/internal/live"
)

var (
	adminOnly     = []account.Role{account.RoleAdmin}
	secretaryOnly = []account.Role{account.RoleSecretary}
	studentOnly   = []account.Role{account.RoleStudent}
	staff         = []account.Role{account.RoleAdmin, account.RoleSecretary}
	everyone      = []account.Role{account.RoleAdmin, account.RoleSecretary, account.RoleStudent}
)

// RegisterQueries adds every dashboard live query to reg.
func (s *Service) RegisterQueries(reg *live.Registry) {
	users := []string{live.CollectionUsers}
	attendance := []string{live.CollectionAttendance}
	homeworks := []string{live.CollectionHomeworks}

	reg.Register(live.Query{
		Name: "users", Collections: users, Roles: adminOnly,
		Run: func(ctx context.Context, _ account.Profile) (any, error) { return s.Users(ctx) },
	})
	reg.Register(live.Query{
		Name: "stats", Collections: []string{live.CollectionUsers, live.CollectionAttendance}, Roles: adminOnly,
		Run: func(ctx context.Context, _ account.Profile) (any, error) { return s.store.AdminStats(ctx, s.now()) },
	})
	reg.Register(live.Query{
		Name: "homeworks", Collections: homeworks, Roles: adminOnly,
		Run: func(ctx context.Context, _ account.Profile) (any, error) { return s.store.ListHomeworks(ctx, "") },
	})
	reg.Register(live.Query{
		Name: "students", Collections: users, Roles: secretaryOnly,
		Run: func(ctx context.Context, _ account.Profile) (any, error) { return s.Students(ctx) },
	})
	reg.Register(live.Query{
		Name: "attendance.pending", Collections: attendance, Roles: staff,
		Run: func(ctx context.Context, _ account.Profile) (any, error) {
			return s.store.ListAttendance(ctx, AttendanceFilter{Status: AttendancePending})
		},
	})
	reg.Register(live.Query{
		Name: "secretary.stats", Collections: []string{live.CollectionUsers, live.CollectionAttendance}, Roles: secretaryOnly,
		Run: func(ctx context.Context, _ account.Profile) (any, error) { return s.store.SecretaryStats(ctx, s.now()) },
	})
	reg.Register(live.Query{
		Name: "me", Collections: users, Roles: studentOnly,
		Run: func(ctx context.Context, viewer account.Profile) (any, error) { return s.Me(ctx, viewer) },
	})
	reg.Register(live.Query{
		Name: "attendance.mine", Collections: attendance, Roles: studentOnly,
		Run: func(ctx context.Context, viewer account.Profile) (any, error) {
			return s.store.ListAttendance(ctx, AttendanceFilter{StudentID: viewer.UID})
		},
	})
	reg.Register(live.Query{
		Name: "homeworks.mine", Collections: homeworks, Roles: studentOnly,
		Run: func(ctx context.Context, viewer account.Profile) (any, error) {
			return s.store.ListHomeworks(ctx, viewer.UID)
		},
	})
	reg.Register(live.Query{
		Name: "files", Collections: []string{live.CollectionFiles}, Roles: everyone,
		Run: func(ctx context.Context, _ account.Profile) (any, error) { return s.store.ListFiles(ctx) },
	})
	reg.Register(live.Query{
		Name: "quizzes", Collections: []string{live.CollectionQuizzes}, Roles: everyone,
		Run: func(ctx context.Context, _ account.Profile) (any, error) { return s.store.ListQuizzes(ctx) },
	})
}
