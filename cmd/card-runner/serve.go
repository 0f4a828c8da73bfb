package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joestump/card-runner/internal/api"
	"github.com/joestump/card-runner/internal/auth"
	"github.com/joestump/card-runner/internal/directory"
	"github.com/joestump/card-runner/internal/metrics"
	"github.com/joestump/card-runner/internal/validate"
)

const gaugeRefreshInterval = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			cfg, log := a.cfg, a.logger

			allocator, err := directory.NewAllocator(a.cards, directory.AllocatorConfig{
				Min:         cfg.Allocator.Min,
				Max:         cfg.Allocator.Max,
				MaxAttempts: cfg.Allocator.MaxAttempts,
			})
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL)
			if err != nil {
				return err
			}

			if cfg.Repair.OnStartup {
				if _, err := a.repairer.Repair(ctx); err != nil {
					log.Error("startup repair failed", "error", err)
				}
			}
			go runMaintenance(ctx, a, cfg.Repair.Interval)

			router := api.NewRouter(api.Deps{
				Logger:         log,
				DB:             a.db,
				Users:          a.users,
				Cards:          a.cards,
				Publisher:      directory.NewPublisher(a.users, a.cards, allocator, a.locks),
				Favorites:      directory.NewFavoriteManager(a.users, a.cards, a.locks),
				Deletions:      directory.NewDeletionCoordinator(a.users, a.cards, a.locks, log),
				Tokens:         tokens,
				Passwords:      auth.NewPasswords(0),
				Validator:      validate.New(),
				AllowedOrigins: cfg.CORS.AllowedOrigins,
			})

			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info("listening", "addr", cfg.HTTP.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

// runMaintenance refreshes the size gauges and, when interval > 0, runs the
// repair pass periodically. It returns when ctx is done.
func runMaintenance(ctx context.Context, a *app, interval time.Duration) {
	refresh := time.NewTicker(gaugeRefreshInterval)
	defer refresh.Stop()

	var repairC <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		repairC = t.C
	}

	refreshGauges(ctx, a)
	for {
		select {
		case <-refresh.C:
			refreshGauges(ctx, a)
		case <-repairC:
			if _, err := a.repairer.Repair(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("periodic repair failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func refreshGauges(ctx context.Context, a *app) {
	if n, err := a.cards.Count(ctx); err != nil {
		a.logger.Warn("count cards", "error", err)
	} else {
		metrics.CardsTotal.Set(float64(n))
	}
	if n, err := a.users.Count(ctx); err != nil {
		a.logger.Warn("count users", "error", err)
	} else {
		metrics.UsersTotal.Set(float64(n))
	}
}
