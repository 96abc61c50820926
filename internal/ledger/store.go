// Package ledger defines the persistent transaction store the pipeline
// writes into, with in-memory and Postgres implementations.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// ErrNotFound is returned for lookups of absent accounts, payees or
// transactions.
var ErrNotFound = errors.New("ledger: not found")

// Account is one ledger account transactions belong to.
type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// Payee is a normalized counterparty. Names are unique; the create path is
// idempotent so concurrent imports of the same payee cannot produce
// duplicate rows.
type Payee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category is one entry of the category taxonomy.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TransactionFilter narrows GetTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	AccountID string
	Since     time.Time
	Until     time.Time
}

// TransactionPatch carries partial updates; nil fields are left untouched.
type TransactionPatch struct {
	Category  *string
	PayeeName *string
	Notes     *string
	Cleared   *bool
	Tags      *[]string
}

// Store is the ledger collaborator consumed by the pipeline. All methods
// take a context because no backend is assumed synchronous.
type Store interface {
	GetAccounts(ctx context.Context) ([]Account, error)
	CreateAccount(ctx context.Context, acc Account) (Account, error)

	GetTransactions(ctx context.Context, filter TransactionFilter) ([]domain.CanonicalTransaction, error)
	AddTransaction(ctx context.Context, tx domain.CanonicalTransaction) (string, error)
	AddTransactions(ctx context.Context, txs []domain.CanonicalTransaction) ([]string, error)
	UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) error
	DeleteTransaction(ctx context.Context, id string) error

	GetPayees(ctx context.Context) ([]Payee, error)
	FindPayee(ctx context.Context, name string) (*Payee, error)
	// CreatePayee is idempotent: creating a name that already exists
	// returns the existing payee instead of failing or duplicating.
	CreatePayee(ctx context.Context, name string) (Payee, error)

	GetCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, cat Category) (Category, error)
}
