package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/samber/oops"

	"credauth/backend/internal/config"
	authdomain "credauth/backend/internal/domain/auth"
	"credauth/backend/internal/httpserver"
	"credauth/backend/internal/infrastructure/memory"
	"credauth/backend/internal/infrastructure/password"
	"credauth/backend/internal/infrastructure/postgres"
	"credauth/backend/internal/infrastructure/token"
	"credauth/backend/internal/logging"
	authusecase "credauth/backend/internal/usecase/auth"
)

// app holds the wired auth core shared by serve and seed.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	auth     *authusecase.Service
	database httpserver.Pinger
	close    func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	users, database, closeStore, err := openUserStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	authService := authusecase.NewService(
		users,
		password.NewBcryptHasher(cfg.BcryptCost),
		token.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry, cfg.JWTIssuer),
		token.NewJWTManager(cfg.JWTRefreshSecret, cfg.JWTRefreshExpiry, cfg.JWTIssuer),
		logger,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		auth:     authService,
		database: database,
		close:    closeStore,
	}, nil
}

// openUserStore picks the store named by the config. The returned Pinger is
// nil for the in-memory store.
func openUserStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (authdomain.UserRepository, httpserver.Pinger, func(), error) {
	if cfg.StoreDriver != config.StorePostgres {
		logger.Warn("using in-memory user store, data is lost on restart")
		return memory.NewUserRepository(), nil, func() {}, nil
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	return postgres.NewUserRepository(db.Pool), db.Pool, db.Close, nil
}
