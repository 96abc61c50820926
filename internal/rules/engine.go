package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/logger"
	"github.com/ledgerflow/ledgerflow/internal/prefs"
)

// Engine wires rule evaluation to the rule store: it loads the persisted
// set, applies it, and keeps the usage counters current.
type Engine struct {
	store  prefs.RuleStore
	policy LearningPolicy
	log    zerolog.Logger
}

func NewEngine(store prefs.RuleStore, policy LearningPolicy, log zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		policy: policy,
		log:    logger.Component(log, "rules"),
	}
}

// Apply runs the persisted rule set against one transaction.
func (e *Engine) Apply(ctx context.Context, tx domain.CanonicalTransaction) (domain.CanonicalTransaction, error) {
	out, err := e.ApplyAll(ctx, []domain.CanonicalTransaction{tx})
	if err != nil {
		return tx, err
	}
	return out[0], nil
}

// ApplyAll runs the persisted rule set against a batch. The set is loaded
// once, so every transaction in the batch sees the same rules. A matched
// rule's use count is bumped once per transaction it fired on; counter
// failures are logged and swallowed since they must not block an import.
func (e *Engine) ApplyAll(ctx context.Context, txs []domain.CanonicalTransaction) ([]domain.CanonicalTransaction, error) {
	ruleSet, err := e.store.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("ApplyAll: %w", err)
	}

	out := make([]domain.CanonicalTransaction, 0, len(txs))
	now := time.Now().UTC()
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ApplyAll: %w", err)
		}
		applied, matchedID := Evaluate(ruleSet, tx)
		if matchedID != "" {
			if err := e.store.RecordRuleUse(ctx, matchedID, now); err != nil {
				e.log.Warn().Err(err).Str("rule", matchedID).Msg("use count update failed")
			}
		}
		out = append(out, applied)
	}
	return out, nil
}
