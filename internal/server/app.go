// Package server initializes and runs the auth server: it opens the
// database, applies migrations, wires the session service with its
// collaborators and starts the HTTP API, shutting everything down
// gracefully on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/carelink-app/carelink/internal/logging"
	"github.com/carelink-app/carelink/internal/server/audit"
	"github.com/carelink-app/carelink/internal/server/config"
	"github.com/carelink-app/carelink/internal/server/httpapi"
	"github.com/carelink-app/carelink/internal/server/migrations"
	"github.com/carelink-app/carelink/internal/server/password"
	"github.com/carelink-app/carelink/internal/server/ratelimit"
	"github.com/carelink-app/carelink/internal/server/repositories/refreshtokens"
	"github.com/carelink-app/carelink/internal/server/repositories/users"
	"github.com/carelink-app/carelink/internal/server/services"
	"github.com/carelink-app/carelink/internal/server/tokens"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	auditor    *audit.Dispatcher
	httpServer *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	verifier, err := password.NewVerifier(password.Config{
		MemoryKB:    cfg.Argon2MemoryKB,
		Time:        cfg.Argon2Time,
		Parallelism: cfg.Argon2Parallelism,
		SaltLength:  password.DefaultConfig().SaltLength,
		KeyLength:   password.DefaultConfig().KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("password verifier init error: %w", err)
	}

	codec, err := tokens.NewCodec(tokens.Config{
		Secret:     []byte(cfg.SecretKey),
		Issuer:     cfg.TokenIssuer,
		Audience:   cfg.TokenAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("token codec init error: %w", err)
	}

	sinks := []audit.Sink{audit.NewLogSink(logger)}
	if cfg.AuditS3Bucket != "" {
		archiver, err := audit.NewS3Archiver(ctx, audit.S3Config{
			AccessKey:    cfg.AuditS3AccessKey,
			SecretKey:    cfg.AuditS3SecretKey,
			Bucket:       cfg.AuditS3Bucket,
			Region:       cfg.AuditS3Region,
			BaseEndpoint: cfg.AuditS3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("audit archiver init error: %w", err)
		}
		sinks = append(sinks, archiver)
	}
	auditor := audit.NewDispatcher(logger, sinks...)

	var limitStore ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.RedisAddr != "" {
		limitStore = ratelimit.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), "")
	}
	loginLimiter := ratelimit.New(limitStore, ratelimit.Config{MaxAttempts: cfg.MaxLoginAttempts, Window: cfg.LoginWindow})
	refreshLimiter := ratelimit.New(limitStore, ratelimit.Config{MaxAttempts: cfg.MaxRefreshAttempts, Window: cfg.RefreshWindow})

	sessions := services.NewSessionService(
		users.NewPostgresRepository(db),
		refreshtokens.NewPostgresRepository(db),
		codec,
		verifier,
		auditor,
		logger,
	)

	handler := httpapi.NewHandler(sessions, logger, loginLimiter, refreshLimiter)
	httpServer := httpapi.NewServer(cfg.EndpointAddrHTTP, handler.Routes(), logger)

	return &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		auditor:    auditor,
		httpServer: httpServer,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server error", "error", err)
	}

	// Flush in-flight audit events before releasing the database.
	app.auditor.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
