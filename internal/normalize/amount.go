package normalize

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

var currencySymbols = strings.NewReplacer(
	"$", "",
	"£", "",
	"€", "",
	"¥", "",
	",", "",
	" ", "",
)

// ParseAmountMinor parses a source amount string into signed minor units.
// Currency symbols and thousands separators are stripped first; a value in
// accounting parentheses is negative. The parse goes through decimal so
// "4.50" becomes exactly 450.
func ParseAmountMinor(s string) (int64, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return 0, domain.NewRowError("empty amount")
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	cleaned = currencySymbols.Replace(cleaned)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, domain.NewRowError("amount %q is not numeric", s)
	}
	if negative {
		d = d.Neg()
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// FormatMinor renders minor units as a plain decimal string ("-450" →
// "-4.50"). Used for amount conditions that apply string operators.
func FormatMinor(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
