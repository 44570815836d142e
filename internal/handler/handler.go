// Package handler exposes the portal over HTTP with gin.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portal/internal/account"
	"portal/internal/auth"
	"portal/internal/dashboard"
	"portal/internal/httpmiddleware"
)

// Login runs login attempts and ends sessions.
type Login interface {
	Login(ctx context.Context, in account.LoginInput) (account.LoginResult, error)
	Logout(ctx context.Context, sess auth.Session) error
}

// Registration creates accounts.
type Registration interface {
	Register(ctx context.Context, in account.RegisterInput) (account.Registration, error)
	CreateByAdmin(ctx context.Context, in account.RegisterInput) (account.Registration, error)
	AddStudent(ctx context.Context, secretaryUID string, in account.RegisterInput) (account.Registration, error)
}

// PageGuard decides page redirects.
type PageGuard interface {
	Evaluate(ctx context.Context, token, page string) (account.Verdict, error)
}

// Dashboard runs the role dashboard mutations.
type Dashboard interface {
	Activate(ctx context.Context, actor account.Profile, uid string) error
	Delete(ctx context.Context, actor account.Profile, uid string) error
	Promote(ctx context.Context, actor account.Profile, uid string) error
	ToggleAttendancePermission(ctx context.Context, actor account.Profile, uid string) (bool, error)
	AwardPoints(ctx context.Context, actor account.Profile, uid string, n int) (int, error)
	GradeHomework(ctx context.Context, actor account.Profile, id, grade, note string) error
	PublishFile(ctx context.Context, actor account.Profile, title, link, kind string) (dashboard.File, error)
	PublishQuiz(ctx context.Context, actor account.Profile, title, link string) (dashboard.Quiz, error)
	ApproveAttendance(ctx context.Context, actor account.Profile, id string) error
	RequestAttendance(ctx context.Context, actor account.Profile, date, note string) (dashboard.AttendanceRequest, error)
	SubmitHomework(ctx context.Context, actor account.Profile, title, fileName, fileURL string) (dashboard.Homework, error)
}

// Queries runs live queries once.
type Queries interface {
	Run(ctx context.Context, name string, viewer account.Profile) (any, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps groups the handler's collaborators. Live, Metrics and Limiter may be nil.
type Deps struct {
	Gate          Login
	Registrar     Registration
	Guard         PageGuard
	Sessions      auth.Verifier
	Profiles      account.ProfileReader
	Dashboard     Dashboard
	Queries       Queries
	Live          http.Handler
	Metrics       http.Handler
	Limiter       httpmiddleware.Limiter
	Health        map[string]HealthCheck
	FrontendDir   string
	SecureCookies bool
	Log           *zap.Logger
}

// Handler serves the portal API and pages.
type Handler struct {
	Deps
}

// New wires a handler.
func New(d Deps) *Handler {
	registerValidators()
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Handler{Deps: d}
}

// Router builds the gin engine. extra middleware runs after recovery and
// request ids, before any route.
func (h *Handler) Router(extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(h.Log, "/healthz", "/metrics"))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(extra...)

	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	r.GET("/healthz", h.healthz)

	v1 := r.Group("/v1")

	authGroup := v1.Group("/auth")
	limited := authGroup.Group("")
	if h.Limiter != nil {
		limited.Use(httpmiddleware.RateLimit(h.Limiter, h.Log))
	}
	limited.POST("/register", h.register)
	limited.POST("/login", h.login)
	authGroup.POST("/logout", auth.OptionalSession(h.Sessions), h.logout)

	signedIn := v1.Group("", auth.RequireSession(h.Sessions), h.loadProfile)
	signedIn.GET("/auth/session", h.session)
	signedIn.GET("/queries/:name", h.query)

	admin := signedIn.Group("/admin", requireRole(account.RoleAdmin))
	admin.POST("/users", h.createUser)
	admin.POST("/users/:id/activate", h.activate)
	admin.DELETE("/users/:id", h.deleteUser)
	admin.POST("/users/:id/promote", h.promote)
	admin.POST("/users/:id/toggle-attendance-permission", h.togglePermission)
	admin.POST("/users/:id/points", h.awardPoints)
	admin.POST("/homeworks/:id/grade", h.gradeHomework)
	admin.POST("/files", h.publishFile)
	admin.POST("/quizzes", h.publishQuiz)
	admin.POST("/attendance/:id/approve", h.approveAttendance)

	secretary := signedIn.Group("/secretary", requireRole(account.RoleSecretary))
	secretary.POST("/students", h.addStudent)
	secretary.POST("/attendance/:id/approve", h.approveAttendance)
	secretary.POST("/quizzes", h.publishQuiz)

	student := signedIn.Group("/student", requireRole(account.RoleStudent))
	student.POST("/attendance", h.requestAttendance)
	student.POST("/homeworks", h.submitHomework)

	if h.Live != nil {
		v1.GET("/live", gin.WrapH(h.Live))
	}

	h.mountPages(r)
	return r
}

func (h *Handler) healthz(c *gin.Context) {
	body := gin.H{}
	status := http.StatusOK
	for name, check := range h.Health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
		}
	}
	body["status"] = "ok"
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}
