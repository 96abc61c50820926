package normalize

import (
	"regexp"
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// transactionLine matches one statement line of the form
// "01/15/2024  STARBUCKS COFFEE  -4.50". The date anchors the line, the
// amount anchors its end, everything between is the description.
var transactionLine = regexp.MustCompile(
	`^\s*(\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2})\s+(.+?)\s+(\(?-?[$£€¥]?[\d,]+(?:\.\d+)?\)?)\s*$`,
)

// RecordsFromText scans unstructured extractor output line by line and
// pulls out the lines that look like transactions. Header text, page
// furniture and balance summaries simply never match and are dropped.
func RecordsFromText(text string) []domain.RawRecord {
	var records []domain.RawRecord
	for _, line := range strings.Split(text, "\n") {
		m := transactionLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		records = append(records, domain.RawRecord{
			Date:        m[1],
			Description: strings.TrimSpace(m[2]),
			Amount:      m[3],
		})
	}
	return records
}
