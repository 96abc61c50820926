package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// MemoryStore is an in-memory Store. Safe for concurrent use; data is lost
// on restart. Used by tests and single-shot CLI runs without a database.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]Account
	transactions map[string]domain.CanonicalTransaction
	fingerprints map[string]string // account|fingerprint -> transaction ID
	payeesByName map[string]Payee
	categories   map[string]Category
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]Account),
		transactions: make(map[string]domain.CanonicalTransaction),
		fingerprints: make(map[string]string),
		payeesByName: make(map[string]Payee),
		categories:   make(map[string]Category),
	}
}

func fingerprintKey(tx domain.CanonicalTransaction) string {
	return tx.AccountID + "|" + tx.Fingerprint()
}

func (s *MemoryStore) GetAccounts(ctx context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (s *MemoryStore) CreateAccount(ctx context.Context, acc Account) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	s.accounts[acc.ID] = acc
	return acc, nil
}

func (s *MemoryStore) GetTransactions(ctx context.Context, filter TransactionFilter) ([]domain.CanonicalTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CanonicalTransaction
	for _, tx := range s.transactions {
		if filter.AccountID != "" && tx.AccountID != filter.AccountID {
			continue
		}
		if !filter.Since.IsZero() && tx.Date.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && tx.Date.After(filter.Until) {
			continue
		}
		out = append(out, tx.Clone())
	}
	return out, nil
}

// AddTransaction enforces fingerprint uniqueness per account at the write
// point, so racing imports of the same row converge on a single insert.
func (s *MemoryStore) AddTransaction(ctx context.Context, tx domain.CanonicalTransaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fingerprintKey(tx)
	if id, ok := s.fingerprints[key]; ok {
		return "", fmt.Errorf("transaction %s: %w", id, domain.ErrDuplicate)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	s.transactions[tx.ID] = tx.Clone()
	s.fingerprints[key] = tx.ID
	return tx.ID, nil
}

func (s *MemoryStore) AddTransactions(ctx context.Context, txs []domain.CanonicalTransaction) ([]string, error) {
	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		id, err := s.AddTransaction(ctx, tx)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if patch.Category != nil {
		tx.Category = *patch.Category
	}
	if patch.PayeeName != nil {
		tx.PayeeName = *patch.PayeeName
	}
	if patch.Notes != nil {
		tx.Notes = *patch.Notes
	}
	if patch.Cleared != nil {
		tx.Cleared = *patch.Cleared
	}
	if patch.Tags != nil {
		tx.Tags = append([]string(nil), (*patch.Tags)...)
	}
	// A payee change moves the fingerprint.
	old := s.transactions[id]
	if key := fingerprintKey(tx); key != fingerprintKey(old) {
		delete(s.fingerprints, fingerprintKey(old))
		s.fingerprints[key] = id
	}
	s.transactions[id] = tx
	return nil
}

func (s *MemoryStore) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	delete(s.fingerprints, fingerprintKey(tx))
	delete(s.transactions, id)
	return nil
}

func (s *MemoryStore) GetPayees(ctx context.Context) ([]Payee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Payee, 0, len(s.payeesByName))
	for _, p := range s.payeesByName {
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) FindPayee(ctx context.Context, name string) (*Payee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.payeesByName[name]; ok {
		return &p, nil
	}
	return nil, nil
}

// CreatePayee is idempotent under concurrency: the name key is checked and
// written under one lock, so racing imports of the same payee converge on
// a single row.
func (s *MemoryStore) CreatePayee(ctx context.Context, name string) (Payee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payeesByName[name]; ok {
		return p, nil
	}
	p := Payee{ID: uuid.NewString(), Name: name}
	s.payeesByName[name] = p
	return p, nil
}

func (s *MemoryStore) GetCategories(ctx context.Context) ([]Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryStore) CreateCategory(ctx context.Context, cat Category) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	s.categories[cat.ID] = cat
	return cat, nil
}

var _ Store = (*MemoryStore)(nil)
