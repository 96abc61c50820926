// Package app assembles the component graph shared by the api, worker
// and cli binaries.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/config"
	"github.com/ledgerflow/ledgerflow/internal/docstore"
	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/extract"
	"github.com/ledgerflow/ledgerflow/internal/jobs"
	jobsmem "github.com/ledgerflow/ledgerflow/internal/jobs/inmemory"
	"github.com/ledgerflow/ledgerflow/internal/ledger"
	"github.com/ledgerflow/ledgerflow/internal/normalize"
	"github.com/ledgerflow/ledgerflow/internal/prefs"
	"github.com/ledgerflow/ledgerflow/internal/provider"
	"github.com/ledgerflow/ledgerflow/internal/reconcile"
	"github.com/ledgerflow/ledgerflow/internal/rules"
	"github.com/ledgerflow/ledgerflow/internal/service"
	syncpkg "github.com/ledgerflow/ledgerflow/internal/sync"
)

const httpClientTimeout = 60 * time.Second

// App is the assembled application. Close releases pooled resources.
type App struct {
	Cfg     *config.Config
	Log     zerolog.Logger
	Ledger  ledger.Store
	Service *service.Service
	Queue   *jobsmem.Queue
	Jobs    jobs.Store
	Docs    docstore.Store

	pool *pgxpool.Pool
}

// New builds the full graph from configuration. Without POSTGRES_DSN the
// stores run in memory; without GCS_BUCKET document archiving is off.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: log}
	hc := &http.Client{Timeout: httpClientTimeout}

	var (
		store     ledger.Store
		ruleStore prefs.RuleStore
		connStore prefs.ConnectionStore
	)
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool

		pgLedger := ledger.NewPostgresStore(pool)
		if err := pgLedger.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate ledger: %w", err)
		}
		pgPrefs := prefs.NewPostgresStore(pool)
		if err := pgPrefs.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate prefs: %w", err)
		}
		store, ruleStore, connStore = pgLedger, pgPrefs, pgPrefs
	} else {
		log.Warn().Msg("POSTGRES_DSN not set, using in-memory stores")
		memLedger := ledger.NewMemoryStore()
		memPrefs := prefs.NewMemoryStore()
		store, ruleStore, connStore = memLedger, memPrefs, memPrefs
	}
	a.Ledger = store

	if cfg.GCSBucket != "" {
		docs, err := docstore.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("document store: %w", err)
		}
		a.Docs = docs
	}

	// Extraction cascade: OCR first, then the generative extractor, then
	// the local text layer, then upload-and-convert.
	var strategies []extract.Strategy
	if cfg.OCRBaseURL != "" && !cfg.OCRCreds.Empty() {
		strategies = append(strategies, &extract.OCRStrategy{
			Client: provider.NewOCRClient(cfg.OCRBaseURL, cfg.OCRCreds, hc, log),
			Log:    log,
		})
	}
	if cfg.GeminiAPIKey != "" {
		strategies = append(strategies, &extract.GeminiStrategy{
			Client: provider.NewGeminiExtractor(provider.DefaultGeminiModel, log),
		})
	}
	strategies = append(strategies, &extract.LocalPDFStrategy{})

	var splitter extract.Splitter
	if cfg.SplitterBaseURL != "" {
		sp := provider.NewSplitterClient(cfg.SplitterBaseURL, cfg.SplitterAPIKey, hc, log)
		splitter = sp
		strategies = append(strategies, &extract.ConvertStrategy{Client: sp})
	}
	orch := extract.New(strategies, splitter, cfg.SplitThresholdPages, log)

	normalizer := normalize.New(store, log)
	policy := rules.DefaultLearningPolicy()
	if cfg.LearnThreshold > 0 {
		policy.Threshold = cfg.LearnThreshold
	}
	engine := rules.NewEngine(ruleStore, policy, log)
	reconciler := reconcile.New(store, log)

	var clients []provider.BankClient
	if cfg.RequireProvider(domain.ProviderPlaid) == nil {
		clients = append(clients, provider.NewPlaidClient(cfg.PlaidBaseURL, cfg.PlaidClientID, cfg.PlaidSecret, hc, log))
	}
	if cfg.RequireProvider(domain.ProviderOpenFinance) == nil {
		clients = append(clients, provider.NewOpenFinanceClient(cfg.OpenFinanceURL, cfg.OpenFinanceToken, hc, log))
	}
	if cfg.RequireProvider(domain.ProviderGoCardless) == nil {
		clients = append(clients, provider.NewGoCardlessClient(cfg.GoCardlessURL, cfg.GoCardlessID, cfg.GoCardlessKey, hc, log))
	}
	coord := syncpkg.NewCoordinator(connStore, clients, normalizer, engine, reconciler, cfg.SyncFanOut, log)

	var classifier service.Classifier
	if cfg.ClassifierURL != "" {
		classifier = provider.NewClassifierClient(cfg.ClassifierURL, hc, log)
	}

	a.Service = service.New(service.Deps{
		Orchestrator: orch,
		Normalizer:   normalizer,
		Engine:       engine,
		Reconciler:   reconciler,
		Coordinator:  coord,
		Ledger:       store,
		Rules:        ruleStore,
		Docs:         a.Docs,
		Classifier:   classifier,
		MaxUpload:    cfg.MaxUploadBytes,
	}, log)

	jobStore := jobsmem.NewStore()
	a.Jobs = jobStore
	a.Queue = jobsmem.NewQueue(100, jobStore)

	return a, nil
}

// ImportJobHandler returns the queue handler that replays an archived
// document through the import pipeline.
func (a *App) ImportJobHandler() jobs.Handler {
	return func(ctx context.Context, job *jobs.ImportDocumentJob) error {
		if a.Docs == nil {
			return fmt.Errorf("document store is not configured")
		}
		data, err := a.Docs.Fetch(ctx, job.DocURI)
		if err != nil {
			return fmt.Errorf("fetch document: %w", err)
		}
		_, err = a.Service.ImportFile(ctx, provider.File{
			Name: job.FileName,
			MIME: job.MIME,
			Data: data,
		}, service.ImportOptions{
			AccountID:     job.AccountID,
			SourceTag:     job.SourceTag,
			NegateAmounts: job.NegateAmounts,
		})
		return err
	}
}

func (a *App) Close() {
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	if closer, ok := a.Docs.(interface{ Close() error }); ok && closer != nil {
		_ = closer.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
