package rules

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// ruleMatches reports whether every condition of the rule holds for the
// transaction. A rule with no conditions never matches.
func ruleMatches(rule domain.ImportRule, tx domain.CanonicalTransaction) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	for _, cond := range rule.Conditions {
		if !conditionMatches(cond, tx) {
			return false
		}
	}
	return true
}

func conditionMatches(cond domain.Condition, tx domain.CanonicalTransaction) bool {
	switch cond.Operator {
	case domain.OpGreaterThan, domain.OpLessThan:
		return numericMatches(cond, tx)
	}

	subject := fieldValue(cond.Field, tx)
	value := cond.Value
	if !cond.CaseSensitive {
		subject = strings.ToLower(subject)
		value = strings.ToLower(value)
	}

	switch cond.Operator {
	case domain.OpContains:
		return strings.Contains(subject, value)
	case domain.OpEquals:
		return subject == value
	case domain.OpStartsWith:
		return strings.HasPrefix(subject, value)
	case domain.OpEndsWith:
		return strings.HasSuffix(subject, value)
	case domain.OpRegex:
		re, err := regexp.Compile(cond.Value)
		if err != nil {
			// A broken pattern must not fail the import, it just
			// never matches.
			return false
		}
		return re.MatchString(fieldValue(cond.Field, tx))
	default:
		return false
	}
}

// numericMatches compares amounts in minor units. The comparison only
// makes sense on the amount field; on anything else it is a non-match.
func numericMatches(cond domain.Condition, tx domain.CanonicalTransaction) bool {
	if cond.Field != domain.FieldAmount {
		return false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(cond.Value))
	if err != nil {
		return false
	}
	threshold := d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if cond.Operator == domain.OpGreaterThan {
		return tx.AmountMinor > threshold
	}
	return tx.AmountMinor < threshold
}

func fieldValue(field domain.ConditionField, tx domain.CanonicalTransaction) string {
	switch field {
	case domain.FieldPayee:
		return tx.PayeeName
	case domain.FieldAmount:
		return decimal.New(tx.AmountMinor, -2).StringFixed(2)
	case domain.FieldNotes:
		return tx.Notes
	case domain.FieldAccount:
		return tx.AccountID
	default:
		return ""
	}
}
