// Package rules evaluates import rules against canonical transactions and
// grows the rule set from human corrections.
package rules

import (
	"strconv"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// Tags stamped by rule actions so callers can tell machine edits from
// source data.
const (
	TagAutoCategorized = "auto_categorized"
	TagPayeeNormalized = "payee_normalized"
)

// Evaluate runs the rule set against one transaction and returns the
// modified copy plus the ID of the rule that fired, or "" when none did.
// Rules are ordered by descending priority with the rule ID as tie-break,
// and only the first full match fires. The function is pure: callers own
// the bookkeeping for use counts.
func Evaluate(ruleSet []domain.ImportRule, tx domain.CanonicalTransaction) (domain.CanonicalTransaction, string) {
	ordered := make([]domain.ImportRule, len(ruleSet))
	copy(ordered, ruleSet)
	domain.SortRules(ordered)

	for _, rule := range ordered {
		if !rule.Enabled {
			continue
		}
		if !ruleMatches(rule, tx) {
			continue
		}
		return applyActions(rule, tx), rule.ID
	}
	return tx, ""
}

func applyActions(rule domain.ImportRule, tx domain.CanonicalTransaction) domain.CanonicalTransaction {
	out := tx.Clone()
	for _, action := range rule.Actions {
		switch action.Type {
		case domain.ActionSetCategory:
			out.Category = action.Value
			addTag(&out, TagAutoCategorized)
		case domain.ActionSetPayee:
			out.PayeeName = action.Value
			addTag(&out, TagPayeeNormalized)
		case domain.ActionAddTag:
			addTag(&out, action.Value)
		case domain.ActionSetCleared:
			if v, err := strconv.ParseBool(action.Value); err == nil {
				out.Cleared = v
			}
		case domain.ActionAddNote:
			if out.Notes == "" {
				out.Notes = action.Value
			} else {
				out.Notes += "\n" + action.Value
			}
		}
	}
	return out
}

func addTag(tx *domain.CanonicalTransaction, tag string) {
	if tag == "" || tx.HasTag(tag) {
		return
	}
	tx.Tags = append(tx.Tags, tag)
}
