// Package reconcile deduplicates candidate transactions against the
// ledger before they are written.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/ledger"
	"github.com/ledgerflow/ledgerflow/internal/logger"
)

// Outcome summarizes one reconciliation batch. Imported plus Duplicates
// plus len(Errors) accounts for every candidate.
type Outcome struct {
	Imported   []domain.CanonicalTransaction
	Duplicates int
	Errors     []error
}

// Reconciler matches candidates against existing ledger rows by
// fingerprint and inserts only the new ones.
type Reconciler struct {
	store ledger.Store
	log   zerolog.Logger
}

func New(store ledger.Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, log: logger.Component(log, "reconcile")}
}

// Reconcile snapshots the account's existing fingerprints once, then
// walks the batch. A candidate whose fingerprint matches an existing row
// or an earlier candidate in the same batch is skipped as a duplicate.
// Insert failures are collected per candidate and the batch carries on,
// so one bad row never discards the rest.
func (r *Reconciler) Reconcile(ctx context.Context, accountID string, candidates []domain.CanonicalTransaction) (*Outcome, error) {
	existing, err := r.store.GetTransactions(ctx, ledger.TransactionFilter{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", err)
	}

	seen := make(map[string]struct{}, len(existing)+len(candidates))
	for _, tx := range existing {
		seen[tx.Fingerprint()] = struct{}{}
	}

	out := &Outcome{}
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("Reconcile: %w", err)
		}
		fp := cand.Fingerprint()
		if _, dup := seen[fp]; dup {
			out.Duplicates++
			continue
		}
		if _, err := r.store.AddTransaction(ctx, cand); err != nil {
			// A concurrent sync can insert the same fingerprint between
			// the snapshot and this write; the store reports it as
			// ErrDuplicate and it counts like any other duplicate.
			if errors.Is(err, domain.ErrDuplicate) {
				out.Duplicates++
				seen[fp] = struct{}{}
				continue
			}
			out.Errors = append(out.Errors, &domain.PersistenceError{Op: "add transaction", Err: err})
			r.log.Warn().Err(err).Str("payee", cand.PayeeName).Msg("insert failed")
			continue
		}
		seen[fp] = struct{}{}
		out.Imported = append(out.Imported, cand)
	}

	r.log.Info().
		Str("account", accountID).
		Int("imported", len(out.Imported)).
		Int("duplicates", out.Duplicates).
		Int("failed", len(out.Errors)).
		Msg("batch reconciled")
	return out, nil
}
