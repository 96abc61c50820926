package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/config"
	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/provider"
)

// fakeStrategy returns a canned result per chunk content.
type fakeStrategy struct {
	name  string
	kinds map[FileKind]bool
	fn    func(file provider.File) (*domain.RawExtraction, error)
	calls int
}

func (s *fakeStrategy) Name() string                 { return s.name }
func (s *fakeStrategy) CanHandle(kind FileKind) bool { return s.kinds[kind] }
func (s *fakeStrategy) Extract(ctx context.Context, file provider.File) (*domain.RawExtraction, error) {
	s.calls++
	return s.fn(file)
}

type fakeSplitter struct {
	chunks   [][]byte
	err      error
	maxPages int
}

func (s *fakeSplitter) SplitPDF(ctx context.Context, data []byte, maxPages int) ([][]byte, error) {
	s.maxPages = maxPages
	return s.chunks, s.err
}

func pdfFile(data string) provider.File {
	return provider.File{Name: "statement.pdf", MIME: "application/pdf", Data: []byte(data)}
}

func TestClassifyFile(t *testing.T) {
	tests := []struct {
		name string
		mime string
		want FileKind
	}{
		{"statement.pdf", "application/pdf", KindPDF},
		{"statement.pdf", "", KindPDF},
		{"export.csv", "text/csv", KindCSV},
		{"export.csv", "text/plain", KindCSV},
		{"receipt.jpg", "image/jpeg", KindImage},
		{"receipt.heic", "", KindImage},
		{"mystery.bin", "application/octet-stream", KindUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyFile(tt.name, tt.mime); got != tt.want {
			t.Errorf("ClassifyFile(%q, %q) = %v, want %v", tt.name, tt.mime, got, tt.want)
		}
	}
}

func TestExtractRejectsCSV(t *testing.T) {
	o := New(nil, nil, 5, zerolog.Nop())
	_, err := o.Extract(context.Background(), provider.File{Name: "export.csv", MIME: "text/csv"})
	if err == nil {
		t.Fatal("expected error for csv input")
	}
}

func TestExtractChunksOversizedPDF(t *testing.T) {
	splitter := &fakeSplitter{chunks: [][]byte{[]byte("one"), []byte("two"), []byte("three")}}
	strat := &fakeStrategy{
		name:  "fake",
		kinds: map[FileKind]bool{KindPDF: true},
		fn: func(file provider.File) (*domain.RawExtraction, error) {
			return &domain.RawExtraction{
				Records:   []domain.RawRecord{{Description: string(file.Data), Date: "2024-01-01", Amount: "-1.00"}},
				SourceTag: "fake",
			}, nil
		},
	}

	o := New([]Strategy{strat}, splitter, 5, zerolog.Nop()).
		WithPageCounter(func([]byte) (int, error) { return 12, nil })

	out, err := o.Extract(context.Background(), pdfFile("whole"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if splitter.maxPages != 5 {
		t.Errorf("split chunk size = %d, want 5", splitter.maxPages)
	}
	if len(out.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(out.Records))
	}
	// Chunk order survives concatenation.
	for i, want := range []string{"one", "two", "three"} {
		if out.Records[i].Description != want {
			t.Errorf("record %d = %q, want %q", i, out.Records[i].Description, want)
		}
	}
}

func TestExtractSplitFailureAbortsFile(t *testing.T) {
	splitter := &fakeSplitter{err: fmt.Errorf("split service down")}
	strat := &fakeStrategy{
		name:  "fake",
		kinds: map[FileKind]bool{KindPDF: true},
		fn: func(provider.File) (*domain.RawExtraction, error) {
			return &domain.RawExtraction{Text: "text"}, nil
		},
	}
	o := New([]Strategy{strat}, splitter, 5, zerolog.Nop()).
		WithPageCounter(func([]byte) (int, error) { return 12, nil })

	if _, err := o.Extract(context.Background(), pdfFile("whole")); err == nil {
		t.Fatal("expected split failure to abort the file")
	}
	if strat.calls != 0 {
		t.Errorf("strategy called %d times after failed split", strat.calls)
	}
}

func TestExtractSmallPDFSkipsSplit(t *testing.T) {
	splitter := &fakeSplitter{chunks: [][]byte{[]byte("never")}}
	strat := &fakeStrategy{
		name:  "fake",
		kinds: map[FileKind]bool{KindPDF: true},
		fn: func(provider.File) (*domain.RawExtraction, error) {
			return &domain.RawExtraction{Text: "text"}, nil
		},
	}
	o := New([]Strategy{strat}, splitter, 5, zerolog.Nop()).
		WithPageCounter(func([]byte) (int, error) { return 3, nil })

	if _, err := o.Extract(context.Background(), pdfFile("small")); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if splitter.maxPages != 0 {
		t.Error("splitter called for a small pdf")
	}
}

func TestCascadeFirstNonEmptyWins(t *testing.T) {
	failing := &fakeStrategy{
		name:  "failing",
		kinds: map[FileKind]bool{KindPDF: true},
		fn:    func(provider.File) (*domain.RawExtraction, error) { return nil, fmt.Errorf("boom") },
	}
	empty := &fakeStrategy{
		name:  "empty",
		kinds: map[FileKind]bool{KindPDF: true},
		fn:    func(provider.File) (*domain.RawExtraction, error) { return &domain.RawExtraction{}, nil },
	}
	winning := &fakeStrategy{
		name:  "winning",
		kinds: map[FileKind]bool{KindPDF: true},
		fn: func(provider.File) (*domain.RawExtraction, error) {
			return &domain.RawExtraction{Text: "found", SourceTag: "winning"}, nil
		},
	}
	never := &fakeStrategy{
		name:  "never",
		kinds: map[FileKind]bool{KindPDF: true},
		fn:    func(provider.File) (*domain.RawExtraction, error) { return &domain.RawExtraction{Text: "x"}, nil },
	}

	o := New([]Strategy{failing, empty, winning, never}, nil, 5, zerolog.Nop()).
		WithPageCounter(func([]byte) (int, error) { return 1, nil })

	out, err := o.Extract(context.Background(), pdfFile("doc"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if out.SourceTag != "winning" {
		t.Errorf("source = %q", out.SourceTag)
	}
	if never.calls != 0 {
		t.Error("later strategy called after a success")
	}
}

func TestCascadeErrorRetainsAttempts(t *testing.T) {
	a := &fakeStrategy{name: "alpha", kinds: map[FileKind]bool{KindPDF: true},
		fn: func(provider.File) (*domain.RawExtraction, error) { return nil, fmt.Errorf("alpha down") }}
	b := &fakeStrategy{name: "beta", kinds: map[FileKind]bool{KindPDF: true},
		fn: func(provider.File) (*domain.RawExtraction, error) { return nil, fmt.Errorf("beta down") }}

	o := New([]Strategy{a, b}, nil, 5, zerolog.Nop()).
		WithPageCounter(func([]byte) (int, error) { return 1, nil })

	_, err := o.Extract(context.Background(), pdfFile("doc"))
	if err == nil {
		t.Fatal("expected terminal error")
	}
	for _, want := range []string{"alpha down", "beta down"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing attempt %q", err, want)
		}
	}
}

// The OCR strategy rotates auth schemes only on credential failures, then
// the cascade falls through to the local text layer without touching the
// remaining network strategies.
func TestOCRAuthRotationThenLocalFallback(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := config.ProviderCreds{
		BearerToken: "tok",
		APIKey:      "key",
		BasicUser:   "user",
		BasicPass:   "pass",
	}
	ocr := &OCRStrategy{
		Client: provider.NewOCRClient(server.URL, creds, server.Client(), zerolog.Nop()),
		Log:    zerolog.Nop(),
	}
	local := &LocalPDFStrategy{
		ExtractText: func([]byte) (string, error) { return "01/15/2024 COFFEE -4.50", nil },
	}
	secondary := &fakeStrategy{name: "secondary", kinds: map[FileKind]bool{KindPDF: true},
		fn: func(provider.File) (*domain.RawExtraction, error) { return &domain.RawExtraction{Text: "x"}, nil }}

	o := New([]Strategy{ocr, local, secondary}, nil, 5, zerolog.Nop()).
		WithPageCounter(func([]byte) (int, error) { return 1, nil })

	out, err := o.Extract(context.Background(), pdfFile("doc"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if hits != 3 {
		t.Errorf("ocr attempts = %d, want one per auth scheme", hits)
	}
	if out.SourceTag != "local-pdf" {
		t.Errorf("source = %q, want local-pdf", out.SourceTag)
	}
	if secondary.calls != 0 {
		t.Error("secondary chain used although local extraction succeeded")
	}
}

func TestOCRRotatesOnNonAuthRejection(t *testing.T) {
	// The wrong scheme is rejected with 400 here, not 401; the next
	// scheme must still be tried and succeeds.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") == "key" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]string{
					{"id": "it-1", "date": "2024-01-15", "description": "Coffee", "amount": "-4.50"},
				},
			})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	creds := config.ProviderCreds{BearerToken: "tok", APIKey: "key"}
	ocr := &OCRStrategy{
		Client: provider.NewOCRClient(server.URL, creds, server.Client(), zerolog.Nop()),
		Log:    zerolog.Nop(),
	}

	out, err := ocr.Extract(context.Background(), pdfFile("doc"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(out.Records) != 1 || out.Records[0].ExternalID != "it-1" {
		t.Errorf("records = %+v", out.Records)
	}
}
