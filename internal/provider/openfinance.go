package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// OpenFinanceClient adapts an open-finance (Berlin-group style) aggregator:
// bearer token auth, REST account resources, credit/debit indicator instead
// of signed amounts.
type OpenFinanceClient struct {
	baseURL string
	token   string
	hc      *http.Client
	log     zerolog.Logger
}

// NewOpenFinanceClient builds an adapter for an open-finance provider.
func NewOpenFinanceClient(baseURL, token string, hc *http.Client, log zerolog.Logger) *OpenFinanceClient {
	return &OpenFinanceClient{baseURL: baseURL, token: token, hc: defaultClient(hc), log: log}
}

func (c *OpenFinanceClient) Kind() domain.ProviderKind { return domain.ProviderOpenFinance }

type openFinanceTransaction struct {
	ID                    string `json:"id"`
	BookingDate           string `json:"bookingDate"`
	RemittanceInformation string `json:"remittanceInformation"`
	CreditDebitIndicator  string `json:"creditDebitIndicator"` // "CRDT" or "DBIT"
	TransactionAmount     struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"transactionAmount"`
}

// FetchTransactions lists booked transactions for the external account.
// Open-finance amounts are unsigned; DBIT entries are negated at this
// boundary so downstream sees negative-for-outflow.
func (c *OpenFinanceClient) FetchTransactions(ctx context.Context, conn domain.Connection, since time.Time) ([]domain.RawRecord, error) {
	url := fmt.Sprintf("%s/accounts/%s/transactions", c.baseURL, conn.ExternalAccountID)
	if !since.IsZero() {
		url += "?dateFrom=" + since.Format("2006-01-02")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("open-finance: build request: %w", err)
	}
	token := c.token
	if conn.CredentialRef != "" {
		token = conn.CredentialRef
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open-finance: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError("open-finance", resp)
	}

	var parsed struct {
		Data []openFinanceTransaction `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("open-finance: decode response: %w", err)
	}

	out := make([]domain.RawRecord, 0, len(parsed.Data))
	for _, tx := range parsed.Data {
		amount := tx.TransactionAmount.Amount
		if tx.CreditDebitIndicator == "DBIT" {
			amount = "-" + amount
		}
		out = append(out, domain.RawRecord{
			ExternalID:  tx.ID,
			Date:        tx.BookingDate,
			Description: tx.RemittanceInformation,
			Amount:      amount,
		})
	}
	return out, nil
}

// Refresh re-requests a bearer token from the provider's token endpoint.
func (c *OpenFinanceClient) Refresh(ctx context.Context, conn *domain.Connection) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token/refresh", nil)
	if err != nil {
		return fmt.Errorf("open-finance: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("open-finance: refresh: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("open-finance", resp)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("open-finance: decode refresh response: %w", err)
	}
	if parsed.AccessToken == "" {
		return &domain.AuthError{Provider: "open-finance", Status: http.StatusUnauthorized}
	}
	conn.CredentialRef = parsed.AccessToken
	return nil
}

var _ BankClient = (*OpenFinanceClient)(nil)
