// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Tourly HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Run database migrations (idempotent).
//  4. Connect to PostgreSQL (pgxpool).
//  5. Connect to Redis.
//  6. Wire the identity services and HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/tourly/internal/api"
	"github.com/taibuivan/tourly/internal/platform/config"
	"github.com/taibuivan/tourly/internal/platform/constants"
	"github.com/taibuivan/tourly/internal/platform/limiter"
	"github.com/taibuivan/tourly/internal/platform/mailer"
	"github.com/taibuivan/tourly/internal/platform/migration"
	pgstore "github.com/taibuivan/tourly/internal/platform/postgres"
	redisstore "github.com/taibuivan/tourly/internal/platform/redis"
	"github.com/taibuivan/tourly/internal/platform/sec"
	"github.com/taibuivan/tourly/internal/users/account"
	"github.com/taibuivan/tourly/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("[Tourly] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("google_enabled", cfg.GoogleEnabled()),
		slog.Bool("mail_enabled", cfg.MailEnabled()),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, cfg.Debug, log), "run migrations")

	// ── 4. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	// ── 5. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_error", slog.Any("error", cerr))
		}
	}()

	// ── 6. Security Primitives ────────────────────────────────────────────
	tokens, err := sec.NewTokenService(cfg.SessionSecret, constants.AuthIssuer, constants.SessionTokenTTL)
	must(log, err, "initialize token service")

	hasher := sec.NewPasswordHasher(sec.DefaultHasherParams)
	policy := sec.AccessPolicy{SuperAdminEmail: cfg.SuperAdminEmail}
	attempts := limiter.New(rdb)

	sender, err := newMailSender(cfg)
	must(log, err, "initialize mail sender")

	var federation auth.IdentityVerifier
	if cfg.GoogleEnabled() {
		google, err := auth.NewGoogleVerifier(startupCtx, cfg.GoogleClientID)
		must(log, err, "initialize google verifier")
		federation = google
	}

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	userRepository := auth.NewUserRepository(pool)
	codes := auth.NewCodeEngine(
		sec.NewCodeDigester(cfg.OTPSecret, constants.OneTimeCodeDigits),
		sender,
		attempts,
		constants.OneTimeCodeTTL,
	)

	authService, err := auth.NewService(auth.Dependencies{
		Users:      userRepository,
		Drafts:     auth.NewDraftRepository(rdb),
		Codes:      codes,
		Hasher:     hasher,
		Tokens:     tokens,
		Federation: federation,
		Attempts:   attempts,
		Policy:     policy,
	})
	must(log, err, "initialize auth service")

	accountService := account.NewService(
		userRepository,
		account.NewLifecycleRepository(pool),
		userRepository,
		hasher,
		policy,
		log.With(slog.String("component", "account")),
	)

	// ── 8. Health Handlers ────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckCache: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		},
	}, log)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log,
		api.Security{Verifier: tokens, Loader: auth.NewPrincipalResolver(userRepository)},
		api.Handlers{
			Liveness:  liveness,
			Readiness: readiness,
			Auth:      auth.NewHandler(authService),
			Account:   account.NewHandler(accountService, policy),
		},
	)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	log.Info("shutting_down_server", slog.Duration("timeout", constants.ShutdownTimeout))

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// newLogger builds the process-wide JSON logger.
func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

// newMailSender picks the SMTP relay when configured.
//
// Without one, codes are written to stdout, which is refused in production.
func newMailSender(cfg *config.Config) (mailer.Sender, error) {
	if cfg.MailEnabled() {
		return mailer.NewSMTPSender(cfg.SMTP), nil
	}
	if cfg.IsProduction() {
		return nil, errors.New("SMTP_HOST is required in production")
	}
	return mailer.NewConsoleSender(os.Stdout, constants.DefaultMailFrom), nil
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
