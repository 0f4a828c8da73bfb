package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/joestump/card-runner/internal/config"
	"github.com/joestump/card-runner/internal/db"
	"github.com/joestump/card-runner/internal/directory"
	"github.com/joestump/card-runner/internal/lock"
	"github.com/joestump/card-runner/internal/logger"
	"github.com/joestump/card-runner/internal/store"
)

// app is everything the subcommands share once config is loaded.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sqlx.DB
	users    *store.UserStore
	cards    *store.CardStore
	locks    lock.Locker
	redis    *redis.Client
	repairer *directory.Repairer
}

// newApp loads config, opens and migrates the database and selects the
// lock backend.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
	slog.SetDefault(log)

	database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database, cfg.DB.Driver); err != nil {
		_ = database.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: log,
		db:     database,
		users:  store.NewUserStore(database),
		cards:  store.NewCardStore(database),
	}

	switch cfg.Lock.Backend {
	case "redis":
		client, err := lock.DialRedis(ctx, cfg.Redis.URL)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		a.locks = lock.NewRedis(client, cfg.Lock.TTL, lock.WithLogger(log))
	default:
		a.locks = lock.NewLocal()
	}
	log.Info("lock backend selected", "backend", cfg.Lock.Backend)

	a.repairer = directory.NewRepairer(a.users, a.cards, a.locks, log)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.db.Close()
}
