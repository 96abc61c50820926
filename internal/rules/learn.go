package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// MatchStrategy selects how a learned rule matches future transactions.
type MatchStrategy string

// MatchPayeeSubstring learns case-insensitive payee "contains" rules.
const MatchPayeeSubstring MatchStrategy = "payee_substring"

// Priority assigned to learned rules. It sits below explicit user rules
// at the conventional 100 but above the catch-alls at 0, so a human rule
// for the same payee still wins.
const learnedRulePriority = 50

// LearningPolicy controls when corrections turn into rules.
type LearningPolicy struct {
	// Threshold is the number of identical corrections required before a
	// rule is synthesized.
	Threshold int
	Strategy  MatchStrategy
}

func DefaultLearningPolicy() LearningPolicy {
	return LearningPolicy{Threshold: 3, Strategy: MatchPayeeSubstring}
}

// LearnFromCorrection records one human recategorization and, when the
// same payee has been corrected to the same category exactly Threshold
// times, synthesizes a matching rule. The rule is created only at the
// exact crossing, so the fourth and later corrections return nil and
// never duplicate it.
func (e *Engine) LearnFromCorrection(ctx context.Context, tx domain.CanonicalTransaction, category string) (*domain.ImportRule, error) {
	key := correctionKey(e.policy.Strategy, tx)
	if key == "" || category == "" {
		return nil, nil
	}

	count, err := e.store.RecordCorrection(ctx, key, category)
	if err != nil {
		return nil, fmt.Errorf("LearnFromCorrection: %w", err)
	}
	if count != e.policy.Threshold {
		return nil, nil
	}

	rule := domain.ImportRule{
		ID:       uuid.NewString(),
		Name:     fmt.Sprintf("learned: %s is %s", key, category),
		Priority: learnedRulePriority,
		Enabled:  true,
		Conditions: []domain.Condition{
			{Field: domain.FieldPayee, Operator: domain.OpContains, Value: key},
		},
		Actions: []domain.Action{
			{Type: domain.ActionSetCategory, Value: category},
		},
	}
	created, err := e.store.AddRule(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("LearnFromCorrection: %w", err)
	}
	e.log.Info().
		Str("rule", created.ID).
		Str("payee", key).
		Str("category", category).
		Msg("rule learned from corrections")
	return &created, nil
}

func correctionKey(strategy MatchStrategy, tx domain.CanonicalTransaction) string {
	switch strategy {
	case MatchPayeeSubstring:
		return strings.ToLower(strings.TrimSpace(tx.PayeeName))
	default:
		return ""
	}
}
