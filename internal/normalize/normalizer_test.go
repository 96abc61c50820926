package normalize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/ledger"
)

func testNormalizer() (*Normalizer, *ledger.MemoryStore) {
	store := ledger.NewMemoryStore()
	return New(store, zerolog.Nop()), store
}

func TestNormalizeCSV(t *testing.T) {
	n, _ := testNormalizer()

	csv := strings.Join([]string{
		"Date,Description,Amount,Type",
		"2024-01-15,Starbucks Coffee,-4.50,Debit",
		"01/16/24,Paycheck,\"1,250.00\",Credit",
		"not-a-date,Broken Row,10.00,Debit",
		",,,",
	}, "\n")

	res, err := n.NormalizeCSV(context.Background(), []byte(csv), Options{AccountID: "acc-1"})
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}

	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(res.Candidates))
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
	if res.Total() != 3 {
		t.Errorf("total = %d, want 3", res.Total())
	}

	first := res.Candidates[0]
	if got := first.Date; !got.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", got)
	}
	if first.AmountMinor != -450 {
		t.Errorf("amount = %d, want -450", first.AmountMinor)
	}
	if first.PayeeName != "Starbucks Coffee" {
		t.Errorf("payee = %q", first.PayeeName)
	}
	if first.AccountID != "acc-1" {
		t.Errorf("account = %q", first.AccountID)
	}

	second := res.Candidates[1]
	if second.AmountMinor != 125000 {
		t.Errorf("amount = %d, want 125000", second.AmountMinor)
	}
	if got := second.Date; !got.Equal(time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("two-digit year date = %v", got)
	}
}

func TestNormalizeCSVHeaderSynonyms(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"standard", "Date,Description,Amount", false},
		{"bank export", "Posted Date,Memo,Debit", false},
		{"merchant and transaction date", "Transaction Date,Merchant,Amount", false},
		{"quoted header", `"Date","Payee","Amount"`, false},
		{"no date column", "Description,Amount", true},
		{"no amount column", "Date,Description", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _ := testNormalizer()
			csv := tt.header + "\n2024-02-01,Sample,1.00\n"
			_, err := n.NormalizeCSV(context.Background(), []byte(csv), Options{AccountID: "acc-1"})
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var validation *domain.ValidationError
				if !errors.As(err, &validation) || validation.Scope != "file" {
					t.Errorf("want file-scoped validation error, got %v", err)
				}
			}
		})
	}
}

func TestNormalizeCSVNegateAmounts(t *testing.T) {
	n, _ := testNormalizer()
	csv := "Date,Description,Amount\n2024-03-01,Coffee,4.50\n"

	res, err := n.NormalizeCSV(context.Background(), []byte(csv), Options{
		AccountID:     "acc-1",
		NegateAmounts: true,
	})
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}
	if res.Candidates[0].AmountMinor != -450 {
		t.Errorf("amount = %d, want -450", res.Candidates[0].AmountMinor)
	}
}

func TestNormalizePayeeReuse(t *testing.T) {
	n, store := testNormalizer()
	csv := strings.Join([]string{
		"Date,Description,Amount",
		"2024-01-01,Starbucks,-4.00",
		"2024-01-02,Starbucks,-5.25",
	}, "\n")

	if _, err := n.NormalizeCSV(context.Background(), []byte(csv), Options{AccountID: "acc-1"}); err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}

	payees, err := store.GetPayees(context.Background())
	if err != nil {
		t.Fatalf("GetPayees failed: %v", err)
	}
	if len(payees) != 1 {
		t.Errorf("payees = %d, want 1", len(payees))
	}
}

func TestNormalizeExtractionStructured(t *testing.T) {
	n, _ := testNormalizer()
	ex := &domain.RawExtraction{
		SourceTag: "ocr",
		Records: []domain.RawRecord{
			{ExternalID: "ext-1", Date: "2024-05-01", Description: "Grocer", Amount: "-32.18", Pending: true},
		},
	}

	res, err := n.NormalizeExtraction(context.Background(), ex, Options{AccountID: "acc-1"})
	if err != nil {
		t.Fatalf("NormalizeExtraction failed: %v", err)
	}
	tx := res.Candidates[0]
	if tx.ExternalID != "ext-1" {
		t.Errorf("external id = %q", tx.ExternalID)
	}
	if tx.Cleared {
		t.Error("pending record should not be cleared")
	}
	if tx.SourceTag != "ocr" {
		t.Errorf("source tag = %q", tx.SourceTag)
	}
}

func TestNormalizeExtractionTextFallback(t *testing.T) {
	n, _ := testNormalizer()
	ex := &domain.RawExtraction{
		SourceTag: "local-pdf",
		Text: strings.Join([]string{
			"ACME BANK    Statement Period Jan 2024",
			"01/15/2024  STARBUCKS COFFEE #123  -4.50",
			"Page 1 of 3",
			"2024-01-16  EMPLOYER PAYROLL  2,500.00",
			"Closing balance  1,234.56",
		}, "\n"),
	}

	res, err := n.NormalizeExtraction(context.Background(), ex, Options{AccountID: "acc-1"})
	if err != nil {
		t.Fatalf("NormalizeExtraction failed: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(res.Candidates))
	}
	if res.Candidates[0].AmountMinor != -450 {
		t.Errorf("amount = %d, want -450", res.Candidates[0].AmountMinor)
	}
	if res.Candidates[1].AmountMinor != 250000 {
		t.Errorf("amount = %d, want 250000", res.Candidates[1].AmountMinor)
	}
}
