// Package prefs holds the key-value preference store behind import rules
// and bank connections.
package prefs

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// ErrNotFound is returned for absent rules or connections.
var ErrNotFound = errors.New("prefs: not found")

// RulePatch carries partial rule updates; nil fields are untouched.
type RulePatch struct {
	Name       *string
	Priority   *int
	Enabled    *bool
	Conditions *[]domain.Condition
	Actions    *[]domain.Action
}

// RuleStore persists import rules and the correction history feeding rule
// learning. Mutations of the rule set (add/update/delete) are atomic with
// respect to the persisted set; the usage counters are best-effort.
type RuleStore interface {
	// ListRules returns the rule set sorted descending by priority.
	ListRules(ctx context.Context) ([]domain.ImportRule, error)
	AddRule(ctx context.Context, rule domain.ImportRule) (domain.ImportRule, error)
	UpdateRule(ctx context.Context, id string, patch RulePatch) error
	DeleteRule(ctx context.Context, id string) error

	// RecordRuleUse increments use_count and stamps last_used_at.
	// Losing an increment under a rare race is acceptable.
	RecordRuleUse(ctx context.Context, id string, at time.Time) error

	// RecordCorrection stores one human categorization correction keyed by
	// payee (or payee substring, per the learning policy) and returns the
	// total number of corrections sharing that key and category.
	RecordCorrection(ctx context.Context, key, category string) (int, error)
}

// ConnectionStore persists the bank connection collection.
type ConnectionStore interface {
	ListConnections(ctx context.Context) ([]domain.Connection, error)
	GetConnection(ctx context.Context, id string) (domain.Connection, error)
	AddConnection(ctx context.Context, conn domain.Connection) (domain.Connection, error)
	UpdateConnection(ctx context.Context, conn domain.Connection) error
	RemoveConnection(ctx context.Context, id string) error
}
