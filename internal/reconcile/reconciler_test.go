package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/ledger"
)

func candidate(id, payee string, amount int64) domain.CanonicalTransaction {
	return domain.CanonicalTransaction{
		ID:          id,
		AccountID:   "acc-1",
		Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		AmountMinor: amount,
		PayeeName:   payee,
	}
}

func TestReconcileImportIsIdempotent(t *testing.T) {
	store := ledger.NewMemoryStore()
	r := New(store, zerolog.Nop())
	ctx := context.Background()

	batch := []domain.CanonicalTransaction{
		candidate("a", "Starbucks", -450),
		candidate("b", "Grocer", -3200),
	}

	first, err := r.Reconcile(ctx, "acc-1", batch)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if len(first.Imported) != 2 || first.Duplicates != 0 {
		t.Fatalf("first pass: imported=%d duplicates=%d", len(first.Imported), first.Duplicates)
	}

	// Same file again: candidate IDs differ but fingerprints collide.
	again := []domain.CanonicalTransaction{
		candidate("c", "Starbucks", -450),
		candidate("d", "Grocer", -3200),
	}
	second, err := r.Reconcile(ctx, "acc-1", again)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if len(second.Imported) != 0 || second.Duplicates != 2 {
		t.Errorf("second pass: imported=%d duplicates=%d, want 0/2", len(second.Imported), second.Duplicates)
	}

	stored, _ := store.GetTransactions(ctx, ledger.TransactionFilter{AccountID: "acc-1"})
	if len(stored) != 2 {
		t.Errorf("ledger has %d transactions, want 2", len(stored))
	}
}

func TestReconcileSiblingDedup(t *testing.T) {
	store := ledger.NewMemoryStore()
	r := New(store, zerolog.Nop())

	batch := []domain.CanonicalTransaction{
		candidate("a", "Starbucks", -450),
		candidate("b", "Starbucks", -450),
	}
	out, err := r.Reconcile(context.Background(), "acc-1", batch)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(out.Imported) != 1 || out.Duplicates != 1 {
		t.Errorf("imported=%d duplicates=%d, want 1/1", len(out.Imported), out.Duplicates)
	}
}

func TestReconcileExternalIDWinsOverDigest(t *testing.T) {
	store := ledger.NewMemoryStore()
	r := New(store, zerolog.Nop())
	ctx := context.Background()

	a := candidate("a", "Starbucks", -450)
	a.ExternalID = "ext-1"
	if _, err := r.Reconcile(ctx, "acc-1", []domain.CanonicalTransaction{a}); err != nil {
		t.Fatal(err)
	}

	// Same provider transaction with an edited payee still collides.
	b := candidate("b", "Starbucks Coffee", -450)
	b.ExternalID = "ext-1"
	out, err := r.Reconcile(ctx, "acc-1", []domain.CanonicalTransaction{b})
	if err != nil {
		t.Fatal(err)
	}
	if out.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", out.Duplicates)
	}
}

// failingStore rejects inserts for one payee to exercise partial success.
type failingStore struct {
	*ledger.MemoryStore
	rejectPayee string
}

func (s *failingStore) AddTransaction(ctx context.Context, tx domain.CanonicalTransaction) (string, error) {
	if tx.PayeeName == s.rejectPayee {
		return "", fmt.Errorf("disk full")
	}
	return s.MemoryStore.AddTransaction(ctx, tx)
}

func TestReconcilePartialSuccess(t *testing.T) {
	store := &failingStore{MemoryStore: ledger.NewMemoryStore(), rejectPayee: "Cursed"}
	r := New(store, zerolog.Nop())

	batch := []domain.CanonicalTransaction{
		candidate("a", "Starbucks", -450),
		candidate("b", "Cursed", -100),
		candidate("c", "Grocer", -3200),
	}
	out, err := r.Reconcile(context.Background(), "acc-1", batch)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(out.Imported) != 2 {
		t.Errorf("imported = %d, want 2", len(out.Imported))
	}
	if len(out.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(out.Errors))
	}
	var pe *domain.PersistenceError
	if !errors.As(out.Errors[0], &pe) {
		t.Errorf("error type = %T", out.Errors[0])
	}
}

// racingStore simulates a concurrent sync inserting the same row between
// the snapshot and the write.
type racingStore struct {
	*ledger.MemoryStore
}

func (s *racingStore) GetTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]domain.CanonicalTransaction, error) {
	return nil, nil // stale snapshot: the row lands after this read
}

func TestReconcileStoreDuplicateCounted(t *testing.T) {
	mem := ledger.NewMemoryStore()
	if _, err := mem.AddTransaction(context.Background(), candidate("x", "Starbucks", -450)); err != nil {
		t.Fatal(err)
	}

	r := New(&racingStore{MemoryStore: mem}, zerolog.Nop())
	out, err := r.Reconcile(context.Background(), "acc-1", []domain.CanonicalTransaction{
		candidate("a", "Starbucks", -450),
		candidate("b", "Grocer", -3200),
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if out.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", out.Duplicates)
	}
	if len(out.Imported) != 1 {
		t.Errorf("imported = %d, want 1", len(out.Imported))
	}
	if len(out.Errors) != 0 {
		t.Errorf("errors = %v, want none", out.Errors)
	}
}
