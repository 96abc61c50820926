package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// GoCardlessClient adapts a GoCardless-style account information provider:
// secret-pair token endpoint, short-lived access tokens, transactions split
// into booked and pending buckets.
type GoCardlessClient struct {
	baseURL  string
	secretID string
	secret   string
	hc       *http.Client
	log      zerolog.Logger

	// The access token is shared by every connection of this provider
	// kind and concurrent syncs hit the client in parallel.
	mu          sync.Mutex
	accessToken string
}

// NewGoCardlessClient builds an adapter for a GoCardless-family provider.
func NewGoCardlessClient(baseURL, secretID, secret string, hc *http.Client, log zerolog.Logger) *GoCardlessClient {
	return &GoCardlessClient{baseURL: baseURL, secretID: secretID, secret: secret, hc: defaultClient(hc), log: log}
}

func (c *GoCardlessClient) Kind() domain.ProviderKind { return domain.ProviderGoCardless }

type gcTransaction struct {
	TransactionID     string `json:"transactionId"`
	BookingDate       string `json:"bookingDate"`
	TransactionAmount struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"transactionAmount"`
	RemittanceInformationUnstructured string `json:"remittanceInformationUnstructured"`
}

// FetchTransactions lists booked and pending transactions, booked first.
// Amounts are already signed in this provider family.
func (c *GoCardlessClient) FetchTransactions(ctx context.Context, conn domain.Connection, since time.Time) ([]domain.RawRecord, error) {
	token := c.token()
	if token == "" {
		if err := c.Refresh(ctx, &conn); err != nil {
			return nil, err
		}
		token = c.token()
	}

	url := fmt.Sprintf("%s/api/v2/accounts/%s/transactions/", c.baseURL, conn.ExternalAccountID)
	if !since.IsZero() {
		url += "?date_from=" + since.Format("2006-01-02")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("gocardless: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gocardless: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError("gocardless", resp)
	}

	var parsed struct {
		Transactions struct {
			Booked  []gcTransaction `json:"booked"`
			Pending []gcTransaction `json:"pending"`
		} `json:"transactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("gocardless: decode response: %w", err)
	}

	out := make([]domain.RawRecord, 0, len(parsed.Transactions.Booked)+len(parsed.Transactions.Pending))
	for _, tx := range parsed.Transactions.Booked {
		out = append(out, gcRecord(tx, false))
	}
	for _, tx := range parsed.Transactions.Pending {
		out = append(out, gcRecord(tx, true))
	}
	return out, nil
}

// Refresh obtains a new access token from the secret pair.
func (c *GoCardlessClient) Refresh(ctx context.Context, conn *domain.Connection) error {
	payload, err := json.Marshal(map[string]string{
		"secret_id":  c.secretID,
		"secret_key": c.secret,
	})
	if err != nil {
		return fmt.Errorf("gocardless: encode token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/token/new/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("gocardless: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("gocardless: token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("gocardless", resp)
	}

	var parsed struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("gocardless: decode token response: %w", err)
	}
	if parsed.Access == "" {
		return &domain.AuthError{Provider: "gocardless", Status: http.StatusUnauthorized}
	}
	c.mu.Lock()
	c.accessToken = parsed.Access
	c.mu.Unlock()
	return nil
}

func (c *GoCardlessClient) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func gcRecord(tx gcTransaction, pending bool) domain.RawRecord {
	return domain.RawRecord{
		ExternalID:  tx.TransactionID,
		Date:        tx.BookingDate,
		Description: tx.RemittanceInformationUnstructured,
		Amount:      tx.TransactionAmount.Amount,
		Pending:     pending,
	}
}

var _ BankClient = (*GoCardlessClient)(nil)
