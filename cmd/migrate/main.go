// Command migrate applies the ledger and preference schemas to Postgres.
// Safe to re-run: every statement is idempotent.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerflow/ledgerflow/internal/ledger"
	"github.com/ledgerflow/ledgerflow/internal/logger"
	"github.com/ledgerflow/ledgerflow/internal/prefs"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("POSTGRES_DSN"), "Postgres DSN (or set POSTGRES_DSN)")
	flag.Parse()

	log := logger.New()
	if *dsn == "" {
		log.Fatal().Msg("-dsn flag or POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}
	defer pool.Close()

	if err := ledger.NewPostgresStore(pool).Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("ledger migration failed")
	}
	if err := prefs.NewPostgresStore(pool).Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("prefs migration failed")
	}
	log.Info().Msg("migrations applied")
}
