package domain

import "time"

// ProviderKind identifies the family of external provider behind a
// connection or an extraction client.
type ProviderKind string

const (
	ProviderOCRExtractor ProviderKind = "ocr-extractor"
	ProviderPlaid        ProviderKind = "plaid-like"
	ProviderOpenFinance  ProviderKind = "open-finance"
	ProviderGoCardless   ProviderKind = "gocardless-like"
)

// ConnectionStatus is the health of a persistent bank connection.
type ConnectionStatus string

const (
	ConnectionConnected ConnectionStatus = "connected"
	ConnectionError     ConnectionStatus = "error"
	ConnectionExpired   ConnectionStatus = "expired"
	ConnectionPending   ConnectionStatus = "pending"
)

// Connection links a ledger account to an external account at a bank
// aggregator. Connections are created when a user links an account,
// mutated after every sync attempt, and removed only by explicit user
// action.
type Connection struct {
	ID                string           `json:"id"`
	ProviderKind      ProviderKind     `json:"provider_kind"`
	LedgerAccountID   string           `json:"ledger_account_id"`
	ExternalAccountID string           `json:"external_account_id"`
	Status            ConnectionStatus `json:"status"`
	LastSyncAt        time.Time        `json:"last_sync_at,omitempty"`
	CredentialRef     string           `json:"credential_ref,omitempty"`
}
