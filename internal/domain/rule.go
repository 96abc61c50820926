package domain

import (
	"sort"
	"time"
)

// ConditionField selects which transaction field a condition inspects.
type ConditionField string

const (
	FieldPayee   ConditionField = "payee"
	FieldAmount  ConditionField = "amount"
	FieldNotes   ConditionField = "notes"
	FieldAccount ConditionField = "account"
)

// ConditionOperator is the comparison applied by a condition.
type ConditionOperator string

const (
	OpContains    ConditionOperator = "contains"
	OpEquals      ConditionOperator = "equals"
	OpStartsWith  ConditionOperator = "starts_with"
	OpEndsWith    ConditionOperator = "ends_with"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpRegex       ConditionOperator = "regex"
)

// Condition is one predicate of an import rule. Conditions within a rule
// are AND'd: a rule matches only when every condition matches.
type Condition struct {
	Field         ConditionField    `json:"field"`
	Operator      ConditionOperator `json:"operator"`
	Value         string            `json:"value"`
	CaseSensitive bool              `json:"case_sensitive,omitempty"`
}

// ActionType names the mutation an action applies on a matched transaction.
type ActionType string

const (
	ActionSetCategory ActionType = "set_category"
	ActionSetPayee    ActionType = "set_payee"
	ActionAddTag      ActionType = "add_tag"
	ActionSetCleared  ActionType = "set_cleared"
	ActionAddNote     ActionType = "add_note"
)

// Action is one mutation applied when a rule fires.
type Action struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value"`
}

// ImportRule is a user- or learning-owned categorization rule. Rules are
// evaluated in descending priority order and at most one rule fires per
// transaction (first full match wins).
type ImportRule struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Priority   int         `json:"priority"`
	Enabled    bool        `json:"enabled"`
	Conditions []Condition `json:"conditions"`
	Actions    []Action    `json:"actions"`
	UseCount   int         `json:"use_count"`
	LastUsedAt *time.Time  `json:"last_used_at,omitempty"`
}

// SortRules orders rules for evaluation: descending priority, rule ID as a
// stable tie-break.
func SortRules(rules []ImportRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}
