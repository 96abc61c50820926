// Package sync coordinates scheduled pulls from linked bank connections
// through the shared normalize/rules/reconcile pipeline.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/logger"
	"github.com/ledgerflow/ledgerflow/internal/normalize"
	"github.com/ledgerflow/ledgerflow/internal/prefs"
	"github.com/ledgerflow/ledgerflow/internal/provider"
	"github.com/ledgerflow/ledgerflow/internal/reconcile"
	"github.com/ledgerflow/ledgerflow/internal/rules"
)

// DefaultFanOut bounds how many connections SyncAll works concurrently.
const DefaultFanOut = 4

// Coordinator owns the connection collection and drives syncs through
// the import pipeline.
type Coordinator struct {
	conns      prefs.ConnectionStore
	clients    map[domain.ProviderKind]provider.BankClient
	normalizer *normalize.Normalizer
	engine     *rules.Engine
	reconciler *reconcile.Reconciler
	fanOut     int
	log        zerolog.Logger
}

func NewCoordinator(
	conns prefs.ConnectionStore,
	clients []provider.BankClient,
	normalizer *normalize.Normalizer,
	engine *rules.Engine,
	reconciler *reconcile.Reconciler,
	fanOut int,
	log zerolog.Logger,
) *Coordinator {
	if fanOut <= 0 {
		fanOut = DefaultFanOut
	}
	byKind := make(map[domain.ProviderKind]provider.BankClient, len(clients))
	for _, c := range clients {
		byKind[c.Kind()] = c
	}
	return &Coordinator{
		conns:      conns,
		clients:    byKind,
		normalizer: normalizer,
		engine:     engine,
		reconciler: reconciler,
		fanOut:     fanOut,
		log:        logger.Component(log, "sync"),
	}
}

// Connections lists every linked connection.
func (c *Coordinator) Connections(ctx context.Context) ([]domain.Connection, error) {
	return c.conns.ListConnections(ctx)
}

// AddConnection registers a new connection. A connection for an unknown
// provider kind is rejected up front rather than failing on first sync.
func (c *Coordinator) AddConnection(ctx context.Context, conn domain.Connection) (domain.Connection, error) {
	if _, ok := c.clients[conn.ProviderKind]; !ok {
		return domain.Connection{}, &domain.ConfigurationError{
			Setting: string(conn.ProviderKind),
			Reason:  "no client configured for provider kind",
		}
	}
	if conn.Status == "" {
		conn.Status = domain.ConnectionPending
	}
	return c.conns.AddConnection(ctx, conn)
}

// RemoveConnection unlinks a connection. Transactions already imported
// through it stay in the ledger.
func (c *Coordinator) RemoveConnection(ctx context.Context, id string) error {
	return c.conns.RemoveConnection(ctx, id)
}

// SyncOne pulls one connection and runs the result through the pipeline.
// On a credential failure the client gets exactly one Refresh and one
// retry; if that still fails with an auth error the connection is marked
// expired and left for the user to re-link. Any other failure marks the
// connection errored. Both terminal paths still update the stored status
// before returning.
func (c *Coordinator) SyncOne(ctx context.Context, connID string) (*domain.SyncResult, error) {
	conn, err := c.conns.GetConnection(ctx, connID)
	if err != nil {
		return nil, fmt.Errorf("SyncOne: %w", err)
	}
	client, ok := c.clients[conn.ProviderKind]
	if !ok {
		return nil, &domain.ConfigurationError{
			Setting: string(conn.ProviderKind),
			Reason:  "no client configured for provider kind",
		}
	}

	records, err := c.fetchWithRefresh(ctx, client, &conn)
	if err != nil {
		status := domain.ConnectionError
		var authErr *domain.AuthError
		if errors.As(err, &authErr) {
			status = domain.ConnectionExpired
		}
		c.setStatus(ctx, conn, status)
		return nil, fmt.Errorf("SyncOne %s: %w", connID, err)
	}

	result, err := c.runPipeline(ctx, conn, records)
	if err != nil {
		c.setStatus(ctx, conn, domain.ConnectionError)
		return nil, fmt.Errorf("SyncOne %s: %w", connID, err)
	}

	conn.Status = domain.ConnectionConnected
	conn.LastSyncAt = time.Now().UTC()
	if err := c.conns.UpdateConnection(ctx, conn); err != nil {
		c.log.Warn().Err(err).Str("connection", conn.ID).Msg("status update failed")
	}
	return result, nil
}

// fetchWithRefresh is the single-refresh retry chain: fetch, and on an
// auth failure refresh once and fetch again. A second auth failure
// surfaces to the caller, which expires the connection.
func (c *Coordinator) fetchWithRefresh(ctx context.Context, client provider.BankClient, conn *domain.Connection) ([]domain.RawRecord, error) {
	since := conn.LastSyncAt
	records, err := client.FetchTransactions(ctx, *conn, since)
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		return records, err
	}

	c.log.Info().Str("connection", conn.ID).Msg("credential rejected, refreshing")
	if rerr := client.Refresh(ctx, conn); rerr != nil {
		// A failed refresh means the user must re-link; keep the auth
		// error in the chain so the caller expires the connection.
		return nil, fmt.Errorf("refresh failed (%v) after %w", rerr, authErr)
	}
	if uerr := c.conns.UpdateConnection(ctx, *conn); uerr != nil {
		c.log.Warn().Err(uerr).Str("connection", conn.ID).Msg("credential persist failed")
	}
	return client.FetchTransactions(ctx, *conn, since)
}

func (c *Coordinator) runPipeline(ctx context.Context, conn domain.Connection, records []domain.RawRecord) (*domain.SyncResult, error) {
	norm, err := c.normalizer.NormalizeRecords(ctx, records, normalize.Options{
		AccountID: conn.LedgerAccountID,
		SourceTag: string(conn.ProviderKind),
	})
	if err != nil {
		return nil, err
	}
	candidates, err := c.engine.ApplyAll(ctx, norm.Candidates)
	if err != nil {
		return nil, err
	}
	outcome, err := c.reconciler.Reconcile(ctx, conn.LedgerAccountID, candidates)
	if err != nil {
		return nil, err
	}

	result := &domain.SyncResult{
		Success:           len(outcome.Errors) == 0,
		Imported:          len(outcome.Imported),
		DuplicatesSkipped: outcome.Duplicates,
		SkippedRows:       norm.Skipped,
		NewTransactions:   outcome.Imported,
	}
	for _, e := range append(norm.RowErrors, outcome.Errors...) {
		result.Errors = append(result.Errors, e.Error())
	}
	return result, nil
}

func (c *Coordinator) setStatus(ctx context.Context, conn domain.Connection, status domain.ConnectionStatus) {
	conn.Status = status
	if err := c.conns.UpdateConnection(ctx, conn); err != nil {
		c.log.Warn().Err(err).Str("connection", conn.ID).Msg("status update failed")
	}
}

// SyncAll syncs every connected connection with bounded concurrency.
// Connections are isolated: one failing sync is reported in its own
// result slot and never stops the siblings.
func (c *Coordinator) SyncAll(ctx context.Context) (map[string]*domain.SyncResult, error) {
	conns, err := c.conns.ListConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("SyncAll: %w", err)
	}

	results := make(map[string]*domain.SyncResult, len(conns))
	var mu gosync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanOut)
	for _, conn := range conns {
		if conn.Status != domain.ConnectionConnected {
			continue
		}
		conn := conn
		g.Go(func() error {
			res, err := c.SyncOne(gctx, conn.ID)
			if err != nil {
				c.log.Error().Err(err).Str("connection", conn.ID).Msg("sync failed")
				res = &domain.SyncResult{Success: false, Errors: []string{err.Error()}}
			}
			mu.Lock()
			results[conn.ID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("SyncAll: %w", err)
	}
	return results, nil
}
