package main

import (
	"context"
	stdlog "log"
	"os"

	"go.uber.org/zap"

	"portal/internal/account"
	"portal/internal/auth"
	"portal/internal/config"
	"portal/internal/credential"
	"portal/internal/live"
	"portal/internal/logger"
	"portal/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := config.Load()
	log, err := logger.New("warn", "console")
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}

	cli := &commandLine{out: os.Stdout, open: func(ctx context.Context) (Registrar, func(), error) {
		return openRegistrar(ctx, cfg, log)
	}}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdlog.Printf("error: %s", err)
		}
		os.Exit(1)
	}
}

func openRegistrar(ctx context.Context, cfg config.App, log *zap.Logger) (Registrar, func(), error) {
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	feed := live.NewFeed(redisClient.Client)
	sessions := auth.NewSessions(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.SessionTTL,
		auth.NewRedisDenylist(redisClient.Client), feed)

	reg := account.NewRegistrar(account.RegistrarDeps{
		Identities:   auth.NewProvider(auth.NewRepository(db.Client), sessions),
		Profiles:     account.NewRepository(db.Client),
		Codes:        credential.NewIssuer(cfg.AccessCodeLength),
		Changes:      feed,
		DefaultPhoto: cfg.DefaultPhotoURL,
		Log:          log,
	})
	closeAll := func() {
		_ = redisClient.Close()
		_ = db.Close()
	}
	return reg, closeAll, nil
}
