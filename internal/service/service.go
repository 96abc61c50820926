// Package service is the facade the HTTP API, CLI and worker call into.
// It composes extraction, normalization, rules, reconciliation and sync
// behind a small set of operations.
package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/docstore"
	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/extract"
	"github.com/ledgerflow/ledgerflow/internal/ledger"
	"github.com/ledgerflow/ledgerflow/internal/logger"
	"github.com/ledgerflow/ledgerflow/internal/normalize"
	"github.com/ledgerflow/ledgerflow/internal/prefs"
	"github.com/ledgerflow/ledgerflow/internal/provider"
	"github.com/ledgerflow/ledgerflow/internal/reconcile"
	"github.com/ledgerflow/ledgerflow/internal/rules"
	syncpkg "github.com/ledgerflow/ledgerflow/internal/sync"
)

// Classifier is the optional text-classification fallback used when no
// rule categorized a transaction.
type Classifier interface {
	Classify(ctx context.Context, text, txType string) (string, float64, error)
}

// classifierMinScore is the confidence floor below which a model label is
// discarded rather than written to the ledger.
const classifierMinScore = 0.5

// ImportOptions carries per-request import settings through the facade.
type ImportOptions struct {
	AccountID     string
	SourceTag     string
	NegateAmounts bool
}

// Service wires the pipeline components together. Docs and classifier
// are optional; nil disables archiving and model fallback respectively.
type Service struct {
	orch       *extract.Orchestrator
	normalizer *normalize.Normalizer
	engine     *rules.Engine
	reconciler *reconcile.Reconciler
	coord      *syncpkg.Coordinator
	store      ledger.Store
	ruleStore  prefs.RuleStore
	docs       docstore.Store
	classifier Classifier
	maxUpload  int64
	log        zerolog.Logger
}

type Deps struct {
	Orchestrator *extract.Orchestrator
	Normalizer   *normalize.Normalizer
	Engine       *rules.Engine
	Reconciler   *reconcile.Reconciler
	Coordinator  *syncpkg.Coordinator
	Ledger       ledger.Store
	Rules        prefs.RuleStore
	Docs         docstore.Store
	Classifier   Classifier
	MaxUpload    int64
}

func New(deps Deps, log zerolog.Logger) *Service {
	return &Service{
		orch:       deps.Orchestrator,
		normalizer: deps.Normalizer,
		engine:     deps.Engine,
		reconciler: deps.Reconciler,
		coord:      deps.Coordinator,
		store:      deps.Ledger,
		ruleStore:  deps.Rules,
		docs:       deps.Docs,
		classifier: deps.Classifier,
		maxUpload:  deps.MaxUpload,
		log:        logger.Component(log, "service"),
	}
}

// ImportFile runs one uploaded document through the whole pipeline:
// archive, extract (or parse directly for CSV), normalize, categorize,
// reconcile. The returned result accounts for every row in the file.
func (s *Service) ImportFile(ctx context.Context, file provider.File, opts ImportOptions) (*domain.SyncResult, error) {
	if s.maxUpload > 0 && int64(len(file.Data)) > s.maxUpload {
		return nil, domain.NewFileError("file %q exceeds the %d byte upload limit", file.Name, s.maxUpload)
	}
	if opts.AccountID == "" {
		return nil, domain.NewFileError("account id is required")
	}

	s.archive(ctx, file)

	normOpts := normalize.Options{
		AccountID:     opts.AccountID,
		SourceTag:     opts.SourceTag,
		NegateAmounts: opts.NegateAmounts,
	}

	var (
		norm *normalize.Result
		err  error
	)
	if extract.ClassifyFile(file.Name, file.MIME) == extract.KindCSV {
		norm, err = s.normalizer.NormalizeCSV(ctx, file.Data, normOpts)
	} else {
		var ex *domain.RawExtraction
		ex, err = s.orch.Extract(ctx, file)
		if err == nil {
			norm, err = s.normalizer.NormalizeExtraction(ctx, ex, normOpts)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("ImportFile %q: %w", file.Name, err)
	}

	candidates, err := s.engine.ApplyAll(ctx, norm.Candidates)
	if err != nil {
		return nil, fmt.Errorf("ImportFile %q: %w", file.Name, err)
	}
	candidates = s.classifyFallback(ctx, candidates)

	outcome, err := s.reconciler.Reconcile(ctx, opts.AccountID, candidates)
	if err != nil {
		return nil, fmt.Errorf("ImportFile %q: %w", file.Name, err)
	}

	result := &domain.SyncResult{
		Success:           len(outcome.Errors) == 0,
		Imported:          len(outcome.Imported),
		DuplicatesSkipped: outcome.Duplicates,
		SkippedRows:       norm.Skipped,
		NewTransactions:   outcome.Imported,
	}
	for _, e := range append(norm.RowErrors, outcome.Errors...) {
		result.Errors = append(result.Errors, e.Error())
	}
	return result, nil
}

// archive is best effort: a bucket outage must not block an import.
func (s *Service) archive(ctx context.Context, file provider.File) {
	if s.docs == nil {
		return
	}
	uri, err := s.docs.Archive(ctx, file.Name, file.Data)
	if err != nil {
		s.log.Warn().Err(err).Str("file", file.Name).Msg("document archive failed")
		return
	}
	s.log.Debug().Str("uri", uri).Msg("document archived")
}

// classifyFallback asks the model for a category on transactions no rule
// touched. Failures and low-confidence labels leave the transaction
// uncategorized.
func (s *Service) classifyFallback(ctx context.Context, txs []domain.CanonicalTransaction) []domain.CanonicalTransaction {
	if s.classifier == nil {
		return txs
	}
	for i, tx := range txs {
		if tx.Category != "" || tx.PayeeName == "" {
			continue
		}
		txType := "expense"
		if tx.AmountMinor > 0 {
			txType = "income"
		}
		label, score, err := s.classifier.Classify(ctx, tx.PayeeName, txType)
		if err != nil {
			s.log.Warn().Err(err).Str("payee", tx.PayeeName).Msg("classifier fallback failed")
			continue
		}
		if label == "" || score < classifierMinScore {
			continue
		}
		txs[i].Category = label
		if !txs[i].HasTag(rules.TagAutoCategorized) {
			txs[i].Tags = append(txs[i].Tags, rules.TagAutoCategorized)
		}
	}
	return txs
}

// CorrectCategory applies a human recategorization to a stored
// transaction and feeds the correction into rule learning. The learned
// rule, when the correction crossed the threshold, is returned.
func (s *Service) CorrectCategory(ctx context.Context, accountID, txID, category string) (*domain.ImportRule, error) {
	txs, err := s.store.GetTransactions(ctx, ledger.TransactionFilter{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("CorrectCategory: %w", err)
	}
	var target *domain.CanonicalTransaction
	for i := range txs {
		if txs[i].ID == txID {
			target = &txs[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("CorrectCategory: %w", ledger.ErrNotFound)
	}

	if err := s.store.UpdateTransaction(ctx, txID, ledger.TransactionPatch{Category: &category}); err != nil {
		return nil, fmt.Errorf("CorrectCategory: %w", err)
	}
	return s.engine.LearnFromCorrection(ctx, *target, category)
}

// SyncConnection syncs one linked connection.
func (s *Service) SyncConnection(ctx context.Context, connID string) (*domain.SyncResult, error) {
	return s.coord.SyncOne(ctx, connID)
}

// SyncAll syncs every connected connection.
func (s *Service) SyncAll(ctx context.Context) (map[string]*domain.SyncResult, error) {
	return s.coord.SyncAll(ctx)
}

// Connection management pass-throughs.

func (s *Service) Connections(ctx context.Context) ([]domain.Connection, error) {
	return s.coord.Connections(ctx)
}

func (s *Service) AddConnection(ctx context.Context, conn domain.Connection) (domain.Connection, error) {
	return s.coord.AddConnection(ctx, conn)
}

func (s *Service) RemoveConnection(ctx context.Context, id string) error {
	return s.coord.RemoveConnection(ctx, id)
}

// Rule management pass-throughs.

func (s *Service) Rules(ctx context.Context) ([]domain.ImportRule, error) {
	return s.ruleStore.ListRules(ctx)
}

func (s *Service) AddRule(ctx context.Context, rule domain.ImportRule) (domain.ImportRule, error) {
	return s.ruleStore.AddRule(ctx, rule)
}

func (s *Service) UpdateRule(ctx context.Context, id string, patch prefs.RulePatch) error {
	return s.ruleStore.UpdateRule(ctx, id, patch)
}

func (s *Service) DeleteRule(ctx context.Context, id string) error {
	return s.ruleStore.DeleteRule(ctx, id)
}

// Ledger pass-throughs used by the API and CLI surfaces.

func (s *Service) Accounts(ctx context.Context) ([]ledger.Account, error) {
	return s.store.GetAccounts(ctx)
}

func (s *Service) CreateAccount(ctx context.Context, acc ledger.Account) (ledger.Account, error) {
	return s.store.CreateAccount(ctx, acc)
}

func (s *Service) Transactions(ctx context.Context, filter ledger.TransactionFilter) ([]domain.CanonicalTransaction, error) {
	return s.store.GetTransactions(ctx, filter)
}
