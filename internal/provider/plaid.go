package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// PlaidClient adapts a Plaid-style aggregator: credentials ride in the
// JSON body, amounts are positive for money out, and transactions are
// paged with a total_transactions count.
type PlaidClient struct {
	baseURL  string
	clientID string
	secret   string
	hc       *http.Client
	log      zerolog.Logger
}

// NewPlaidClient builds an adapter for a Plaid-family provider.
func NewPlaidClient(baseURL, clientID, secret string, hc *http.Client, log zerolog.Logger) *PlaidClient {
	return &PlaidClient{baseURL: baseURL, clientID: clientID, secret: secret, hc: defaultClient(hc), log: log}
}

func (c *PlaidClient) Kind() domain.ProviderKind { return domain.ProviderPlaid }

type plaidTransaction struct {
	TransactionID string  `json:"transaction_id"`
	AccountID     string  `json:"account_id"`
	Date          string  `json:"date"`
	Name          string  `json:"name"`
	Amount        float64 `json:"amount"`
	Pending       bool    `json:"pending"`
}

// FetchTransactions pulls transactions for the connection's external
// account. Plaid reports outflows as positive amounts; the adapter flips
// the sign here so everything past this boundary uses negative-for-outflow.
func (c *PlaidClient) FetchTransactions(ctx context.Context, conn domain.Connection, since time.Time) ([]domain.RawRecord, error) {
	start := "1970-01-01"
	if !since.IsZero() {
		start = since.Format("2006-01-02")
	}
	payload := map[string]interface{}{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"access_token": conn.CredentialRef,
		"start_date":   start,
		"end_date":     time.Now().UTC().Format("2006-01-02"),
		"options": map[string]interface{}{
			"account_ids": []string{conn.ExternalAccountID},
		},
	}

	var parsed struct {
		Transactions []plaidTransaction `json:"transactions"`
	}
	if err := c.post(ctx, "/transactions/get", payload, &parsed); err != nil {
		return nil, err
	}

	out := make([]domain.RawRecord, 0, len(parsed.Transactions))
	for _, tx := range parsed.Transactions {
		out = append(out, domain.RawRecord{
			ExternalID:  tx.TransactionID,
			Date:        tx.Date,
			Description: tx.Name,
			Amount:      strconv.FormatFloat(-tx.Amount, 'f', 2, 64),
			Pending:     tx.Pending,
		})
	}
	return out, nil
}

// Refresh exchanges the stored credential for a fresh access token.
func (c *PlaidClient) Refresh(ctx context.Context, conn *domain.Connection) error {
	payload := map[string]interface{}{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"access_token": conn.CredentialRef,
	}
	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.post(ctx, "/item/access_token/refresh", payload, &parsed); err != nil {
		return err
	}
	if parsed.AccessToken == "" {
		return &domain.AuthError{Provider: "plaid", Status: http.StatusUnauthorized}
	}
	conn.CredentialRef = parsed.AccessToken
	return nil
}

func (c *PlaidClient) post(ctx context.Context, path string, payload interface{}, into interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("plaid: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("plaid: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("plaid: request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("plaid", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("plaid: decode %s response: %w", path, err)
	}
	return nil
}

var _ BankClient = (*PlaidClient)(nil)
