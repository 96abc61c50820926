package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// PostgresStore is the production preference store. Conditions and actions
// are stored as JSONB so the rule shape can evolve without migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema creates the preference tables when they do not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS import_rules (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	priority     INT NOT NULL DEFAULT 0,
	enabled      BOOLEAN NOT NULL DEFAULT TRUE,
	conditions   JSONB NOT NULL DEFAULT '[]',
	actions      JSONB NOT NULL DEFAULT '[]',
	use_count    INT NOT NULL DEFAULT 0,
	last_used_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS connections (
	id                  TEXT PRIMARY KEY,
	provider_kind       TEXT NOT NULL,
	ledger_account_id   TEXT NOT NULL,
	external_account_id TEXT NOT NULL,
	status              TEXT NOT NULL,
	last_sync_at        TIMESTAMPTZ,
	credential_ref      TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS rule_corrections (
	correction_key TEXT NOT NULL,
	category       TEXT NOT NULL,
	hits           INT NOT NULL DEFAULT 0,
	PRIMARY KEY (correction_key, category)
);
`

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("prefs migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRules(ctx context.Context) ([]domain.ImportRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, priority, enabled, conditions, actions, use_count, last_used_at
		 FROM import_rules ORDER BY priority DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportRule
	for rows.Next() {
		var (
			r           domain.ImportRule
			condJSON    []byte
			actJSON     []byte
			lastUsed    *time.Time
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Priority, &r.Enabled, &condJSON, &actJSON, &r.UseCount, &lastUsed); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if err := json.Unmarshal(condJSON, &r.Conditions); err != nil {
			return nil, fmt.Errorf("rule %s: decode conditions: %w", r.ID, err)
		}
		if err := json.Unmarshal(actJSON, &r.Actions); err != nil {
			return nil, fmt.Errorf("rule %s: decode actions: %w", r.ID, err)
		}
		r.LastUsedAt = lastUsed
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddRule(ctx context.Context, rule domain.ImportRule) (domain.ImportRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	condJSON, err := json.Marshal(ruleConditions(rule))
	if err != nil {
		return domain.ImportRule{}, fmt.Errorf("encode conditions: %w", err)
	}
	actJSON, err := json.Marshal(ruleActions(rule))
	if err != nil {
		return domain.ImportRule{}, fmt.Errorf("encode actions: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO import_rules (id, name, priority, enabled, conditions, actions, use_count, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rule.ID, rule.Name, rule.Priority, rule.Enabled, condJSON, actJSON, rule.UseCount, rule.LastUsedAt)
	if err != nil {
		return domain.ImportRule{}, fmt.Errorf("insert rule: %w", err)
	}
	return rule, nil
}

func (s *PostgresStore) UpdateRule(ctx context.Context, id string, patch RulePatch) error {
	query := "UPDATE import_rules SET id = id"
	args := []interface{}{}
	n := 0
	set := func(col string, val interface{}) {
		n++
		query += fmt.Sprintf(", %s = $%d", col, n)
		args = append(args, val)
	}
	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Priority != nil {
		set("priority", *patch.Priority)
	}
	if patch.Enabled != nil {
		set("enabled", *patch.Enabled)
	}
	if patch.Conditions != nil {
		condJSON, err := json.Marshal(*patch.Conditions)
		if err != nil {
			return fmt.Errorf("encode conditions: %w", err)
		}
		set("conditions", condJSON)
	}
	if patch.Actions != nil {
		actJSON, err := json.Marshal(*patch.Actions)
		if err != nil {
			return fmt.Errorf("encode actions: %w", err)
		}
		set("actions", actJSON)
	}
	n++
	query += fmt.Sprintf(" WHERE id = $%d", n)
	args = append(args, id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update rule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteRule(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM import_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) RecordRuleUse(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE import_rules SET use_count = use_count + 1, last_used_at = $2 WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("record rule use %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) RecordCorrection(ctx context.Context, key, category string) (int, error) {
	var hits int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO rule_corrections (correction_key, category, hits) VALUES ($1, $2, 1)
		 ON CONFLICT (correction_key, category) DO UPDATE SET hits = rule_corrections.hits + 1
		 RETURNING hits`,
		key, category).Scan(&hits)
	if err != nil {
		return 0, fmt.Errorf("record correction: %w", err)
	}
	return hits, nil
}

func (s *PostgresStore) ListConnections(ctx context.Context) ([]domain.Connection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, provider_kind, ledger_account_id, external_account_id, status, last_sync_at, credential_ref
		 FROM connections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var out []domain.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetConnection(ctx context.Context, id string) (domain.Connection, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, provider_kind, ledger_account_id, external_account_id, status, last_sync_at, credential_ref
		 FROM connections WHERE id = $1`, id)
	conn, err := scanConnection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Connection{}, fmt.Errorf("connection %s: %w", id, ErrNotFound)
	}
	return conn, err
}

func (s *PostgresStore) AddConnection(ctx context.Context, conn domain.Connection) (domain.Connection, error) {
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if conn.Status == "" {
		conn.Status = domain.ConnectionPending
	}
	var lastSync *time.Time
	if !conn.LastSyncAt.IsZero() {
		lastSync = &conn.LastSyncAt
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO connections (id, provider_kind, ledger_account_id, external_account_id, status, last_sync_at, credential_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		conn.ID, conn.ProviderKind, conn.LedgerAccountID, conn.ExternalAccountID, conn.Status, lastSync, conn.CredentialRef)
	if err != nil {
		return domain.Connection{}, fmt.Errorf("insert connection: %w", err)
	}
	return conn, nil
}

func (s *PostgresStore) UpdateConnection(ctx context.Context, conn domain.Connection) error {
	var lastSync *time.Time
	if !conn.LastSyncAt.IsZero() {
		lastSync = &conn.LastSyncAt
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE connections SET provider_kind = $2, ledger_account_id = $3, external_account_id = $4,
		 status = $5, last_sync_at = $6, credential_ref = $7 WHERE id = $1`,
		conn.ID, conn.ProviderKind, conn.LedgerAccountID, conn.ExternalAccountID, conn.Status, lastSync, conn.CredentialRef)
	if err != nil {
		return fmt.Errorf("update connection %s: %w", conn.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s: %w", conn.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) RemoveConnection(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanConnection(row pgx.Row) (domain.Connection, error) {
	var (
		conn     domain.Connection
		lastSync *time.Time
	)
	if err := row.Scan(&conn.ID, &conn.ProviderKind, &conn.LedgerAccountID, &conn.ExternalAccountID,
		&conn.Status, &lastSync, &conn.CredentialRef); err != nil {
		return domain.Connection{}, err
	}
	if lastSync != nil {
		conn.LastSyncAt = *lastSync
	}
	return conn, nil
}

func ruleConditions(r domain.ImportRule) []domain.Condition {
	if r.Conditions == nil {
		return []domain.Condition{}
	}
	return r.Conditions
}

func ruleActions(r domain.ImportRule) []domain.Action {
	if r.Actions == nil {
		return []domain.Action{}
	}
	return r.Actions
}

var (
	_ RuleStore       = (*PostgresStore)(nil)
	_ ConnectionStore = (*PostgresStore)(nil)
)
