package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ledgerflow/ledgerflow/internal/app"
	"github.com/ledgerflow/ledgerflow/internal/config"
	"github.com/ledgerflow/ledgerflow/internal/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer application.Close()

	log.Info().Msg("worker starting")
	if err := application.Queue.Start(ctx, application.ImportJobHandler()); err != nil {
		log.Fatal().Err(err).Msg("job queue failed to start")
	}

	// Scheduled connection syncs are opt-in via SYNC_INTERVAL_MINUTES.
	scheduler := cron.New()
	if cfg.SyncIntervalMinutes > 0 {
		spec := fmt.Sprintf("@every %dm", cfg.SyncIntervalMinutes)
		_, err := scheduler.AddFunc(spec, func() {
			results, err := application.Service.SyncAll(ctx)
			if err != nil {
				log.Error().Err(err).Msg("scheduled sync failed")
				return
			}
			for id, res := range results {
				log.Info().
					Str("connection", id).
					Bool("success", res.Success).
					Int("imported", res.Imported).
					Int("duplicates", res.DuplicatesSkipped).
					Msg("scheduled sync finished")
			}
		})
		if err != nil {
			log.Fatal().Err(err).Msg("scheduling sync failed")
		}
		scheduler.Start()
		log.Info().Int("interval_minutes", cfg.SyncIntervalMinutes).Msg("sync schedule active")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelDrain()
	if err := application.Queue.Stop(drainCtx); err != nil {
		log.Error().Err(err).Msg("queue drain incomplete")
	}
	log.Info().Msg("stopped")
}
