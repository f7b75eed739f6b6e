// The sweeper runs the periodic maintenance loop: deactivating expired
// date-based bans, marking ended events completed, and counting completed
// events against game-count bans.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kartis/internal/config"
	"kartis/internal/database"
	"kartis/internal/logger"
	"kartis/internal/repository"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	repos := repository.NewRepositories(db)

	log.Info("Starting sweeper", "interval", cfg.SweepInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	sweep(ctx, repos)
	for {
		select {
		case <-ctx.Done():
			log.Info("Sweeper stopping")
			return
		case <-ticker.C:
			sweep(ctx, repos)
		}
	}
}

func sweep(ctx context.Context, repos *repository.Repositories) {
	log := logger.Get()
	now := time.Now()

	expired, err := repos.Bans.DeactivateExpired(ctx, now)
	if err != nil {
		log.Error("Failed to deactivate expired bans", "error", err)
	} else if expired > 0 {
		log.Info("Deactivated expired bans", "count", expired)
	}

	ended, err := repos.Events.ListEndedUncompleted(ctx, now)
	if err != nil {
		log.Error("Failed to list ended events", "error", err)
		return
	}

	for _, event := range ended {
		if err := repos.Events.MarkCompleted(ctx, event.ID); err != nil {
			log.Error("Failed to mark event completed", "event_id", event.ID, "error", err)
			continue
		}

		// Each completed event counts once against the school's active
		// game-count bans.
		counted, err := repos.Bans.IncrementForSchool(ctx, event.SchoolID)
		if err != nil {
			log.Error("Failed to advance game-count bans",
				"event_id", event.ID, "school_id", event.SchoolID, "error", err)
			continue
		}

		log.Info("Event completed", "event_id", event.ID, "bans_advanced", counted)
	}
}
