package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// PostgresStore is the production Store backed by Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema creates the ledger tables when they do not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	currency   TEXT NOT NULL DEFAULT 'USD'
);
CREATE TABLE IF NOT EXISTS payees (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS categories (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS transactions (
	id           TEXT PRIMARY KEY,
	external_id  TEXT,
	account_id   TEXT NOT NULL,
	tx_date      DATE NOT NULL,
	amount_minor BIGINT NOT NULL,
	payee_name   TEXT NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	cleared      BOOLEAN NOT NULL DEFAULT FALSE,
	tags         TEXT[] NOT NULL DEFAULT '{}',
	source_tag   TEXT NOT NULL DEFAULT '',
	fingerprint  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions (account_id, tx_date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_fingerprint ON transactions (account_id, fingerprint);
`

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ledger migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, currency FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Currency); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acc Account) (Account, error) {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	if acc.Currency == "" {
		acc.Currency = "USD"
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, name, currency) VALUES ($1, $2, $3)`,
		acc.ID, acc.Name, acc.Currency)
	if err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return acc, nil
}

func (s *PostgresStore) GetTransactions(ctx context.Context, filter TransactionFilter) ([]domain.CanonicalTransaction, error) {
	query := `SELECT id, COALESCE(external_id, ''), account_id, tx_date, amount_minor,
	       payee_name, notes, category, cleared, tags, source_tag
	FROM transactions WHERE 1=1`
	args := []interface{}{}
	n := 0
	if filter.AccountID != "" {
		n++
		query += fmt.Sprintf(" AND account_id = $%d", n)
		args = append(args, filter.AccountID)
	}
	if !filter.Since.IsZero() {
		n++
		query += fmt.Sprintf(" AND tx_date >= $%d", n)
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		n++
		query += fmt.Sprintf(" AND tx_date <= $%d", n)
		args = append(args, filter.Until)
	}
	query += " ORDER BY tx_date, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.CanonicalTransaction
	for rows.Next() {
		var tx domain.CanonicalTransaction
		if err := rows.Scan(&tx.ID, &tx.ExternalID, &tx.AccountID, &tx.Date, &tx.AmountMinor,
			&tx.PayeeName, &tx.Notes, &tx.Category, &tx.Cleared, &tx.Tags, &tx.SourceTag); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// AddTransaction relies on the unique fingerprint index to serialize
// concurrent inserts of the same row; the losing insert reports
// ErrDuplicate.
func (s *PostgresStore) AddTransaction(ctx context.Context, tx domain.CanonicalTransaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tags := tx.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions
		 (id, external_id, account_id, tx_date, amount_minor, payee_name, notes, category, cleared, tags, source_tag, fingerprint)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		tx.ID, tx.ExternalID, tx.AccountID, tx.Date, tx.AmountMinor,
		tx.PayeeName, tx.Notes, tx.Category, tx.Cleared, tags, tx.SourceTag, tx.Fingerprint())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", fmt.Errorf("transaction %s: %w", tx.ID, domain.ErrDuplicate)
		}
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	return tx.ID, nil
}

func (s *PostgresStore) AddTransactions(ctx context.Context, txs []domain.CanonicalTransaction) ([]string, error) {
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

func (s *PostgresStore) UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) error {
	query := "UPDATE transactions SET id = id"
	args := []interface{}{}
	n := 0
	set := func(col string, val interface{}) {
		n++
		query += fmt.Sprintf(", %s = $%d", col, n)
		args = append(args, val)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.PayeeName != nil {
		set("payee_name", *patch.PayeeName)
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	if patch.Cleared != nil {
		set("cleared", *patch.Cleared)
	}
	if patch.Tags != nil {
		set("tags", *patch.Tags)
	}
	n++
	query += fmt.Sprintf(" WHERE id = $%d", n)
	args = append(args, id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteTransaction(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetPayees(ctx context.Context) ([]Payee, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM payees ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list payees: %w", err)
	}
	defer rows.Close()

	var out []Payee
	for rows.Next() {
		var p Payee
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan payee: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindPayee(ctx context.Context, name string) (*Payee, error) {
	var p Payee
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM payees WHERE name = $1`, name).
		Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payee %q: %w", name, err)
	}
	return &p, nil
}

// CreatePayee relies on the unique index on name: a concurrent insert of
// the same name resolves to the existing row instead of erroring.
func (s *PostgresStore) CreatePayee(ctx context.Context, name string) (Payee, error) {
	var p Payee
	err := s.pool.QueryRow(ctx,
		`INSERT INTO payees (id, name) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name`,
		uuid.NewString(), name).Scan(&p.ID, &p.Name)
	if err != nil {
		return Payee{}, fmt.Errorf("create payee %q: %w", name, err)
	}
	return p, nil
}

func (s *PostgresStore) GetCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateCategory(ctx context.Context, cat Category) (Category, error) {
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO categories (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		cat.ID, cat.Name)
	if err != nil {
		return Category{}, fmt.Errorf("create category %q: %w", cat.Name, err)
	}
	return cat, nil
}

var _ Store = (*PostgresStore)(nil)
