package normalize

import (
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// Header synonyms per field, in priority order. The first synonym that
// matches any header cell wins, so a file with both "debit" and "credit"
// columns resolves amount to "debit".
var (
	dateSynonyms        = []string{"date", "transaction date", "posted date"}
	amountSynonyms      = []string{"amount", "debit", "credit"}
	descriptionSynonyms = []string{"description", "memo", "payee", "merchant"}
)

// ColumnMap holds the resolved header indexes for a delimited file.
// Description may be -1 when no synonym matched; date and amount are
// always valid once BuildColumnMap succeeds.
type ColumnMap struct {
	Date        int
	Amount      int
	Description int
}

// BuildColumnMap resolves the header row against the known synonyms.
// Matching is case-insensitive substring, so "Transaction Date" and
// "posted_date" both resolve. Missing date or amount fails the whole
// file, since no row could ever parse without them.
func BuildColumnMap(header []string) (ColumnMap, error) {
	cm := ColumnMap{Date: -1, Amount: -1, Description: -1}
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = strings.ToLower(cleanCell(h))
	}

	cm.Date = resolveColumn(cells, dateSynonyms)
	cm.Amount = resolveColumn(cells, amountSynonyms)
	cm.Description = resolveColumn(cells, descriptionSynonyms)

	if cm.Date < 0 {
		return cm, domain.NewFileError("no date column found in header")
	}
	if cm.Amount < 0 {
		return cm, domain.NewFileError("no amount column found in header")
	}
	return cm, nil
}

func resolveColumn(cells []string, synonyms []string) int {
	for _, syn := range synonyms {
		for i, cell := range cells {
			if strings.Contains(cell, syn) {
				return i
			}
		}
	}
	return -1
}

// cleanCell strips surrounding whitespace and stray quotation marks left
// behind by exporters that double-quote inside already quoted fields.
func cleanCell(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
