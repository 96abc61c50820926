package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/ledger"
	"github.com/ledgerflow/ledgerflow/internal/normalize"
	"github.com/ledgerflow/ledgerflow/internal/prefs"
	"github.com/ledgerflow/ledgerflow/internal/provider"
	"github.com/ledgerflow/ledgerflow/internal/reconcile"
	"github.com/ledgerflow/ledgerflow/internal/rules"
)

type fakeClassifier struct {
	labels map[string]string
	score  float64
	calls  []string
}

func (c *fakeClassifier) Classify(ctx context.Context, text, txType string) (string, float64, error) {
	c.calls = append(c.calls, text)
	label, ok := c.labels[strings.ToLower(text)]
	if !ok {
		return "", 0, nil
	}
	return label, c.score, nil
}

type testEnv struct {
	svc        *Service
	store      *ledger.MemoryStore
	rules      *prefs.MemoryStore
	classifier *fakeClassifier
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	log := zerolog.Nop()
	store := ledger.NewMemoryStore()
	ruleStore := prefs.NewMemoryStore()
	classifier := &fakeClassifier{labels: map[string]string{}, score: 0.9}

	svc := New(Deps{
		Normalizer: normalize.New(store, log),
		Engine:     rules.NewEngine(ruleStore, rules.DefaultLearningPolicy(), log),
		Reconciler: reconcile.New(store, log),
		Ledger:     store,
		Rules:      ruleStore,
		Classifier: classifier,
		MaxUpload:  maxUpload,
	}, log)

	return &testEnv{svc: svc, store: store, rules: ruleStore, classifier: classifier}
}

const statementCSV = `Date,Description,Amount
2024-01-15,Starbucks Coffee #123,-4.50
2024-01-16,Acme Payroll,1250.00
`

func TestImportFileCSV(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	file := provider.File{Name: "statement.csv", MIME: "text/csv", Data: []byte(statementCSV)}

	res, err := env.svc.ImportFile(ctx, file, ImportOptions{AccountID: "acc-1", SourceTag: "chase"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.DuplicatesSkipped)
	assert.Empty(t, res.Errors)

	txs, err := env.store.GetTransactions(ctx, ledger.TransactionFilter{AccountID: "acc-1"})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, "chase", tx.SourceTag)
	}
}

func TestImportFileIdempotent(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	file := provider.File{Name: "statement.csv", MIME: "text/csv", Data: []byte(statementCSV)}
	opts := ImportOptions{AccountID: "acc-1"}

	_, err := env.svc.ImportFile(ctx, file, opts)
	require.NoError(t, err)

	res, err := env.svc.ImportFile(ctx, file, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 2, res.DuplicatesSkipped)

	txs, _ := env.store.GetTransactions(ctx, ledger.TransactionFilter{AccountID: "acc-1"})
	assert.Len(t, txs, 2)
}

func TestImportFileRejectsOversized(t *testing.T) {
	env := newTestEnv(t, 10)
	file := provider.File{Name: "big.csv", MIME: "text/csv", Data: []byte(statementCSV)}

	_, err := env.svc.ImportFile(context.Background(), file, ImportOptions{AccountID: "acc-1"})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestImportFileRequiresAccount(t *testing.T) {
	env := newTestEnv(t, 0)
	file := provider.File{Name: "statement.csv", MIME: "text/csv", Data: []byte(statementCSV)}

	_, err := env.svc.ImportFile(context.Background(), file, ImportOptions{})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestImportFileRulesWinOverClassifier(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	_, err := env.rules.AddRule(ctx, domain.ImportRule{
		Name:       "coffee shops",
		Priority:   100,
		Enabled:    true,
		Conditions: []domain.Condition{{Field: domain.FieldPayee, Operator: domain.OpContains, Value: "starbucks"}},
		Actions:    []domain.Action{{Type: domain.ActionSetCategory, Value: "Coffee"}},
	})
	require.NoError(t, err)
	env.classifier.labels["starbucks coffee #123"] = "Restaurants"
	env.classifier.labels["acme payroll"] = "Salary"

	file := provider.File{Name: "statement.csv", MIME: "text/csv", Data: []byte(statementCSV)}
	_, err = env.svc.ImportFile(ctx, file, ImportOptions{AccountID: "acc-1"})
	require.NoError(t, err)

	txs, _ := env.store.GetTransactions(ctx, ledger.TransactionFilter{AccountID: "acc-1"})
	byPayee := map[string]domain.CanonicalTransaction{}
	for _, tx := range txs {
		byPayee[tx.PayeeName] = tx
	}

	// The rule categorized the coffee purchase, so the classifier is only
	// consulted for the uncategorized payroll row.
	assert.Equal(t, "Coffee", byPayee["Starbucks Coffee #123"].Category)
	assert.Equal(t, "Salary", byPayee["Acme Payroll"].Category)
	assert.Equal(t, []string{"Acme Payroll"}, env.classifier.calls)
	assert.Contains(t, byPayee["Acme Payroll"].Tags, rules.TagAutoCategorized)
}

func TestImportFileClassifierLowScoreIgnored(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	env.classifier.score = 0.3
	env.classifier.labels["starbucks coffee #123"] = "Coffee"
	env.classifier.labels["acme payroll"] = "Salary"

	file := provider.File{Name: "statement.csv", MIME: "text/csv", Data: []byte(statementCSV)}
	_, err := env.svc.ImportFile(ctx, file, ImportOptions{AccountID: "acc-1"})
	require.NoError(t, err)

	txs, _ := env.store.GetTransactions(ctx, ledger.TransactionFilter{AccountID: "acc-1"})
	for _, tx := range txs {
		assert.Empty(t, tx.Category, "low confidence label must not stick to %s", tx.PayeeName)
	}
}

func TestCorrectCategoryLearnsRule(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	csv := `Date,Description,Amount
2024-01-01,Starbucks Coffee,-4.50
2024-01-08,Starbucks Coffee,-5.25
2024-01-15,Starbucks Coffee,-3.75
`
	_, err := env.svc.ImportFile(ctx, provider.File{Name: "s.csv", MIME: "text/csv", Data: []byte(csv)}, ImportOptions{AccountID: "acc-1"})
	require.NoError(t, err)

	txs, err := env.store.GetTransactions(ctx, ledger.TransactionFilter{AccountID: "acc-1"})
	require.NoError(t, err)
	require.Len(t, txs, 3)

	var learned *domain.ImportRule
	for _, tx := range txs {
		learned, err = env.svc.CorrectCategory(ctx, "acc-1", tx.ID, "Coffee")
		require.NoError(t, err)
	}
	require.NotNil(t, learned, "third correction crosses the threshold")
	assert.Equal(t, []domain.Action{{Type: domain.ActionSetCategory, Value: "Coffee"}}, learned.Actions)

	txs, _ = env.store.GetTransactions(ctx, ledger.TransactionFilter{AccountID: "acc-1"})
	for _, tx := range txs {
		assert.Equal(t, "Coffee", tx.Category)
	}

	stored, err := env.rules.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, learned.ID, stored[0].ID)
}

func TestCorrectCategoryUnknownTransaction(t *testing.T) {
	env := newTestEnv(t, 0)

	_, err := env.svc.CorrectCategory(context.Background(), "acc-1", "missing", "Coffee")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}
