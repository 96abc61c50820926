package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// ParseDate accepts the slash form MM/DD/YY or MM/DD/YYYY first, then the
// ISO form YYYY-MM-DD. Two-digit years are taken to be in the 2000s. The
// result is a date-only value at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, domain.NewRowError("empty date")
	}

	if strings.Contains(cleaned, "/") {
		return parseSlashDate(cleaned)
	}

	t, err := time.Parse("2006-01-02", cleaned)
	if err != nil {
		return time.Time{}, domain.NewRowError("date %q is not MM/DD/YYYY or YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

func parseSlashDate(s string) (time.Time, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, domain.NewRowError("date %q is not MM/DD/YYYY", s)
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, domain.NewRowError("date %q is not MM/DD/YYYY", s)
	}
	if len(parts[2]) <= 2 {
		year += 2000
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, so 13/45/2024 would silently roll
	// into another month. Reject anything that did not round-trip.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, domain.NewRowError("date %q is out of range", s)
	}
	return t, nil
}
