// The session sweeper periodically deletes expired sessions and purges
// identities that were unlinked past the retention window.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avetra/identity/config"
	pginfra "github.com/avetra/identity/internal/infrastructure/postgres"
	"github.com/avetra/identity/pkg/helpers"
)

const sweepInterval = 15 * time.Minute

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-sweeper", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	sessions := pginfra.NewSessionRepository(pool)
	identities := pginfra.NewIdentityRepository(pool)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	sweep := func() {
		sctx, scancel := context.WithTimeout(ctx, time.Minute)
		defer scancel()

		if n, err := sessions.DeleteExpired(sctx); err != nil {
			logger.WithError(err).Error("delete expired sessions failed")
		} else if n > 0 {
			logger.WithField("count", n).Info("expired sessions deleted")
		}
		if n, err := identities.DeleteRemoved(sctx); err != nil {
			logger.WithError(err).Error("purge removed identities failed")
		} else if n > 0 {
			logger.WithField("count", n).Info("removed identities purged")
		}
	}

	logger.WithField("interval", sweepInterval.String()).Info("session sweeper started")
	sweep()
	for {
		select {
		case <-ticker.C:
			sweep()
		case <-stop:
			logger.Info("session sweeper stopped")
			return
		}
	}
}
