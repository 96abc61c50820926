package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/api"
	"github.com/ledgerflow/ledgerflow/internal/api/handlers"
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

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer application.Close()

	// Drain import jobs in-process; a separate worker deployment uses
	// cmd/worker instead.
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	if err := application.Queue.Start(workerCtx, application.ImportJobHandler()); err != nil {
		log.Fatal().Err(err).Msg("job queue failed to start")
	}

	h := handlers.New(application.Service, application.Queue, application.Jobs, application.Docs, log)
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(h, log),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
	if err := application.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("queue drain incomplete")
	}
	log.Info().Msg("stopped")
}
