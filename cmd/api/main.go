package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"portal/internal/account"
	"portal/internal/auth"
	"portal/internal/avatar"
	"portal/internal/cloudinary"
	"portal/internal/config"
	"portal/internal/credential"
	"portal/internal/dashboard"
	"portal/internal/handler"
	"portal/internal/httpmiddleware"
	"portal/internal/live"
	"portal/internal/logger"
	"portal/internal/metrics"
	"portal/internal/queue"
	"portal/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	recorder := metrics.New(prometheus.DefaultRegisterer)
	feed := live.NewFeed(redisClient.Client)

	sessions := auth.NewSessions(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.SessionTTL,
		auth.NewRedisDenylist(redisClient.Client), feed)
	identities := auth.NewProvider(auth.NewRepository(db.Client), sessions)
	profiles := account.NewRepository(db.Client)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	registrar := account.NewRegistrar(account.RegistrarDeps{
		Identities:   identities,
		Profiles:     profiles,
		Codes:        credential.NewIssuer(cfg.AccessCodeLength),
		Avatars:      queue.AvatarPublisher{Queue: q},
		Changes:      feed,
		Recorder:     recorder,
		DefaultPhoto: cfg.DefaultPhotoURL,
		Log:          log.Named("account"),
	})
	gate := account.NewGate(identities, profiles, recorder, log.Named("login"))
	guard := account.NewGuard(sessions, profiles, identities)

	svc := dashboard.NewService(profiles, dashboard.NewRepository(db.Client), feed, recorder,
		cfg.HomeworkRewardPoints, log.Named("dashboard"))
	registry := live.NewRegistry()
	svc.RegisterQueries(registry)

	hub := live.NewHub(redisClient.Client, registry, guard, recorder, log.Named("live"), allowedOrigin(cfg.CORSOrigins))
	go func() {
		if err := hub.Run(ctx); err != nil {
			log.Error("live hub stopped", zap.Error(err))
		}
	}()

	// With the in-memory queue nothing else can see the jobs, so the avatar
	// processor runs in this process.
	if cfg.QueueBackend == "memory" {
		var uploader avatar.Uploader
		if cfg.CloudinaryConfigured() {
			uploader = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		} else {
			log.Info("cloudinary not configured, registration photos keep the placeholder")
		}
		proc := avatar.NewProcessor(uploader, profiles, feed, recorder, log.Named("avatar"))
		go func() { _ = proc.Run(ctx, q) }()
	}

	var limiter httpmiddleware.Limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if cfg.RateLimitBackend == "redis" {
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin, time.Minute)
	}

	h := handler.New(handler.Deps{
		Gate:      gate,
		Registrar: registrar,
		Guard:     guard,
		Sessions:  sessions,
		Profiles:  profiles,
		Dashboard: svc,
		Queries:   registry,
		Live:      hub,
		Metrics:   promhttp.Handler(),
		Limiter:   limiter,
		Health: map[string]handler.HealthCheck{
			"db":    db.Healthy,
			"redis": redisClient.Healthy,
		},
		FrontendDir:   cfg.FrontendDir,
		SecureCookies: cfg.Production(),
		Log:           log.Named("http"),
	})
	r := h.Router(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.RequestIDHeader},
		ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Live sockets are hijacked and not tracked by Shutdown; cancelling ctx closes them.
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}

	log.Info("server exited")
	return nil
}

// allowedOrigin accepts websocket upgrades from the configured front-end
// origins and from same-host pages.
func allowedOrigin(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed[origin] || allowed["*"] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
