package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/config"
	"github.com/ledgerflow/ledgerflow/internal/domain"
)

func TestStatusErrorTaxonomy(t *testing.T) {
	tests := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{http.StatusUnauthorized, func(t *testing.T, err error) {
			var authErr *domain.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("err = %T, want AuthError", err)
			}
			if authErr.Status != http.StatusUnauthorized {
				t.Errorf("status = %d", authErr.Status)
			}
		}},
		{http.StatusForbidden, func(t *testing.T, err error) {
			var authErr *domain.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("err = %T, want AuthError", err)
			}
		}},
		{http.StatusTooManyRequests, func(t *testing.T, err error) {
			var rateErr *domain.RateLimitedError
			if !errors.As(err, &rateErr) {
				t.Fatalf("err = %T, want RateLimitedError", err)
			}
		}},
		{http.StatusInternalServerError, func(t *testing.T, err error) {
			var upErr *domain.UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("err = %T, want UpstreamError", err)
			}
			if upErr.Body != "boom" {
				t.Errorf("body = %q", upErr.Body)
			}
		}},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte("boom"))
		}))
		client := NewOCRClient(server.URL, config.ProviderCreds{BearerToken: "tok"}, server.Client(), zerolog.Nop())

		_, err := client.ExtractWith(context.Background(), File{Name: "f.pdf"}, AuthBearer)
		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		tt.check(t, err)
		server.Close()
	}
}

func TestOCRClientParsesStructuredItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "key" {
			t.Errorf("api key header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{
				{"id": "it-1", "date": "2024-01-15", "description": "Coffee", "amount": "-4.50"},
			},
		})
	}))
	defer server.Close()

	client := NewOCRClient(server.URL, config.ProviderCreds{APIKey: "key"}, server.Client(), zerolog.Nop())
	out, err := client.ExtractWith(context.Background(), File{Name: "f.pdf"}, AuthAPIKey)
	if err != nil {
		t.Fatalf("ExtractWith failed: %v", err)
	}
	if len(out.Records) != 1 || out.Records[0].ExternalID != "it-1" {
		t.Fatalf("records = %+v", out.Records)
	}
	if out.SourceTag != "ocr" {
		t.Errorf("source tag = %q", out.SourceTag)
	}
}

func TestPlaidFetchNegatesAmounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["access_token"] != "cred-1" {
			t.Errorf("access_token = %v", req["access_token"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transactions": []map[string]interface{}{
				{"transaction_id": "p-1", "date": "2024-01-15", "name": "Coffee", "amount": 4.50},
				{"transaction_id": "p-2", "date": "2024-01-16", "name": "Refund", "amount": -12.00, "pending": true},
			},
		})
	}))
	defer server.Close()

	client := NewPlaidClient(server.URL, "cid", "sec", server.Client(), zerolog.Nop())
	conn := domain.Connection{ExternalAccountID: "ext-acc", CredentialRef: "cred-1"}

	records, err := client.FetchTransactions(context.Background(), conn, time.Time{})
	if err != nil {
		t.Fatalf("FetchTransactions failed: %v", err)
	}
	if records[0].Amount != "-4.50" {
		t.Errorf("outflow amount = %q, want -4.50", records[0].Amount)
	}
	if records[1].Amount != "12.00" {
		t.Errorf("inflow amount = %q, want 12.00", records[1].Amount)
	}
	if !records[1].Pending {
		t.Error("pending flag lost")
	}
}

func TestPlaidRefreshUpdatesCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "cred-2"})
	}))
	defer server.Close()

	client := NewPlaidClient(server.URL, "cid", "sec", server.Client(), zerolog.Nop())
	conn := domain.Connection{CredentialRef: "cred-1"}
	if err := client.Refresh(context.Background(), &conn); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if conn.CredentialRef != "cred-2" {
		t.Errorf("credential = %q, want cred-2", conn.CredentialRef)
	}
}

func TestGoCardlessConcurrentFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/token/new/" {
			json.NewEncoder(w).Encode(map[string]string{"access": "tok"})
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transactions": map[string]interface{}{
				"booked": []map[string]interface{}{
					{"transactionId": "gc-1", "bookingDate": "2024-01-15",
						"transactionAmount": map[string]string{"amount": "-4.50", "currency": "EUR"},
						"remittanceInformationUnstructured": "Coffee"},
				},
			},
		})
	}))
	defer server.Close()

	// One client serves every connection of this kind; SyncAll fans out
	// over it in parallel and the token cache must stay consistent.
	client := NewGoCardlessClient(server.URL, "sid", "sec", server.Client(), zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			conn := domain.Connection{ExternalAccountID: fmt.Sprintf("ext-%d", n)}
			records, err := client.FetchTransactions(context.Background(), conn, time.Time{})
			if err != nil {
				t.Errorf("FetchTransactions failed: %v", err)
				return
			}
			if len(records) != 1 || records[0].ExternalID != "gc-1" {
				t.Errorf("records = %+v", records)
			}
		}(i)
	}
	wg.Wait()
}

func TestClassifierClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["text"] != "STARBUCKS" || req["type"] != "expense" {
			t.Errorf("request = %v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"label_name": "Coffee", "score": 0.93})
	}))
	defer server.Close()

	client := NewClassifierClient(server.URL, server.Client(), zerolog.Nop())
	label, score, err := client.Classify(context.Background(), "STARBUCKS", "expense")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if label != "Coffee" || score < 0.9 {
		t.Errorf("label=%q score=%v", label, score)
	}
}
