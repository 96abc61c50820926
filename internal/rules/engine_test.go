package rules

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/prefs"
)

// mockRuleStore records calls for assertions.
type mockRuleStore struct {
	rules       []domain.ImportRule
	useCounts   map[string]int
	corrections map[string]int
	added       []domain.ImportRule
}

func newMockRuleStore(rules ...domain.ImportRule) *mockRuleStore {
	return &mockRuleStore{
		rules:       rules,
		useCounts:   make(map[string]int),
		corrections: make(map[string]int),
	}
}

func (m *mockRuleStore) ListRules(ctx context.Context) ([]domain.ImportRule, error) {
	return append([]domain.ImportRule(nil), m.rules...), nil
}

func (m *mockRuleStore) AddRule(ctx context.Context, rule domain.ImportRule) (domain.ImportRule, error) {
	m.added = append(m.added, rule)
	m.rules = append(m.rules, rule)
	return rule, nil
}

func (m *mockRuleStore) UpdateRule(ctx context.Context, id string, patch prefs.RulePatch) error {
	return nil
}

func (m *mockRuleStore) DeleteRule(ctx context.Context, id string) error { return nil }

func (m *mockRuleStore) RecordRuleUse(ctx context.Context, id string, at time.Time) error {
	m.useCounts[id]++
	return nil
}

func (m *mockRuleStore) RecordCorrection(ctx context.Context, key, category string) (int, error) {
	m.corrections[key+"|"+category]++
	return m.corrections[key+"|"+category], nil
}

func TestApplyAllRecordsOneUsePerFire(t *testing.T) {
	store := newMockRuleStore(containsRule("r1", 10, "starbucks", "Coffee"))
	engine := NewEngine(store, DefaultLearningPolicy(), zerolog.Nop())

	batch := []domain.CanonicalTransaction{coffeeTx(), coffeeTx(), {ID: "tx-3", PayeeName: "Grocer"}}
	out, err := engine.ApplyAll(context.Background(), batch)
	if err != nil {
		t.Fatalf("ApplyAll failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("out = %d transactions", len(out))
	}
	if store.useCounts["r1"] != 2 {
		t.Errorf("use count = %d, want 2", store.useCounts["r1"])
	}
	if out[2].Category != "" {
		t.Errorf("unmatched tx got category %q", out[2].Category)
	}
}

func TestApplyAllHonorsCancellation(t *testing.T) {
	store := newMockRuleStore()
	engine := NewEngine(store, DefaultLearningPolicy(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.ApplyAll(ctx, []domain.CanonicalTransaction{coffeeTx()}); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestLearnFromCorrectionThreshold(t *testing.T) {
	store := newMockRuleStore()
	engine := NewEngine(store, LearningPolicy{Threshold: 3, Strategy: MatchPayeeSubstring}, zerolog.Nop())
	ctx := context.Background()
	tx := coffeeTx()

	for i := 1; i <= 2; i++ {
		rule, err := engine.LearnFromCorrection(ctx, tx, "Coffee")
		if err != nil {
			t.Fatalf("correction %d failed: %v", i, err)
		}
		if rule != nil {
			t.Fatalf("rule created after %d corrections", i)
		}
	}

	rule, err := engine.LearnFromCorrection(ctx, tx, "Coffee")
	if err != nil {
		t.Fatalf("third correction failed: %v", err)
	}
	if rule == nil {
		t.Fatal("no rule created at threshold")
	}
	if rule.Priority != learnedRulePriority {
		t.Errorf("priority = %d", rule.Priority)
	}
	if rule.Conditions[0].Value != "starbucks coffee #123" {
		t.Errorf("condition value = %q", rule.Conditions[0].Value)
	}

	// Past the threshold nothing more is created.
	rule, err = engine.LearnFromCorrection(ctx, tx, "Coffee")
	if err != nil {
		t.Fatalf("fourth correction failed: %v", err)
	}
	if rule != nil {
		t.Error("duplicate rule created past threshold")
	}
	if len(store.added) != 1 {
		t.Errorf("rules added = %d, want 1", len(store.added))
	}
}

func TestLearnFromCorrectionSeparatesCategories(t *testing.T) {
	store := newMockRuleStore()
	engine := NewEngine(store, LearningPolicy{Threshold: 2, Strategy: MatchPayeeSubstring}, zerolog.Nop())
	ctx := context.Background()
	tx := coffeeTx()

	if _, err := engine.LearnFromCorrection(ctx, tx, "Coffee"); err != nil {
		t.Fatal(err)
	}
	rule, err := engine.LearnFromCorrection(ctx, tx, "Dining")
	if err != nil {
		t.Fatal(err)
	}
	if rule != nil {
		t.Error("corrections to different categories should not pool")
	}
}
