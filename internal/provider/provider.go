// Package provider holds the thin per-provider wire adapters. Each client
// translates requests and responses only; retry and fallback policy lives
// in the extraction orchestrator and the sync coordinator above.
package provider

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// AuthScheme names a credential presentation the same endpoint may accept.
type AuthScheme string

const (
	AuthBearer AuthScheme = "bearer"
	AuthAPIKey AuthScheme = "api-key"
	AuthBasic  AuthScheme = "basic"
)

// File is one uploaded document handed to an extractor.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Extractor converts a document into raw line items or unstructured text.
type Extractor interface {
	Extract(ctx context.Context, file File) (*domain.RawExtraction, error)
}

// BankClient fetches transactions for a persistent connection. A zero
// since means "everything the provider will give us".
type BankClient interface {
	Kind() domain.ProviderKind
	FetchTransactions(ctx context.Context, conn domain.Connection, since time.Time) ([]domain.RawRecord, error)
	// Refresh re-authenticates the connection's credential. Called at most
	// once per sync attempt, by the coordinator, after a 401-class failure.
	Refresh(ctx context.Context, conn *domain.Connection) error
}

const maxDiagnosticBody = 512

// readBody drains a response body for diagnostics, truncated so a chatty
// provider cannot blow up error strings.
func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxDiagnosticBody))
	if err != nil {
		return ""
	}
	return string(b)
}

// statusError maps a non-2xx provider response to a typed error.
func statusError(provider string, resp *http.Response) error {
	body := readBody(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &domain.AuthError{Provider: provider, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &domain.RateLimitedError{Provider: provider}
	default:
		return &domain.UpstreamError{Provider: provider, Status: resp.StatusCode, Body: body}
	}
}

func defaultClient(hc *http.Client) *http.Client {
	if hc != nil {
		return hc
	}
	return &http.Client{Timeout: 60 * time.Second}
}
