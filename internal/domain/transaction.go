package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// CanonicalTransaction is the single normalized transaction shape every
// source (CSV upload, OCR extraction, bank aggregator) is converted into
// before rule evaluation and reconciliation.
//
// AmountMinor is the signed amount in minor currency units (pennies, cents);
// negative means money out. No floating-point amounts survive normalization.
// Date carries a UTC calendar date with a zero time component.
type CanonicalTransaction struct {
	ID          string    `json:"id,omitempty"`
	ExternalID  string    `json:"external_id,omitempty"`
	AccountID   string    `json:"account_id"`
	Date        time.Time `json:"date"`
	AmountMinor int64     `json:"amount_minor"`
	PayeeName   string    `json:"payee_name"`
	Notes       string    `json:"notes,omitempty"`
	Category    string    `json:"category,omitempty"`
	Cleared     bool      `json:"cleared"`
	Tags        []string  `json:"tags,omitempty"`
	SourceTag   string    `json:"source_tag,omitempty"`
}

// Fingerprint returns the stable identifier used for deduplication.
// When the source supplied an external ID it wins; otherwise the
// fingerprint is derived from the fields that identify a statement line.
func (t CanonicalTransaction) Fingerprint() string {
	if t.ExternalID != "" {
		return t.ExternalID
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s",
		t.AccountID, t.Date.Format("2006-01-02"), t.AmountMinor, t.PayeeName)))
	return hex.EncodeToString(h[:16])
}

// HasTag reports whether the transaction already carries the given tag.
func (t CanonicalTransaction) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so rule evaluation can stay pure.
func (t CanonicalTransaction) Clone() CanonicalTransaction {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	return out
}

// RawRecord is a single pre-normalization record: either an ordered list of
// CSV cells, or a description/amount/date triplet from a structured source
// (OCR provider, bank aggregator). Amounts and dates stay as the source
// gave them; parsing happens in the normalizer.
type RawRecord struct {
	Cells []string

	ExternalID  string
	Date        string
	Description string
	Amount      string
	Pending     bool
}

// Structured reports whether the record came from a structured source
// rather than a positional CSV row.
func (r RawRecord) Structured() bool { return len(r.Cells) == 0 }

// RawExtraction is the output of one extraction pass over an uploaded file:
// structured line items when the provider could parse the document, or
// unstructured text that still needs line-level re-parsing.
type RawExtraction struct {
	Records   []RawRecord
	Text      string
	SourceTag string
}

// Empty reports whether the extraction yielded nothing usable.
func (e *RawExtraction) Empty() bool {
	return e == nil || (len(e.Records) == 0 && e.Text == "")
}

// SyncResult summarizes one import or sync call. It is returned to the
// caller and never persisted. Partial success is a normal outcome: Errors
// may be non-empty while Imported is positive.
type SyncResult struct {
	Success           bool                   `json:"success"`
	Imported          int                    `json:"imported"`
	DuplicatesSkipped int                    `json:"duplicates_skipped"`
	SkippedRows       int                    `json:"skipped_rows,omitempty"`
	Errors            []string               `json:"errors,omitempty"`
	NewTransactions   []CanonicalTransaction `json:"new_transactions,omitempty"`
}
