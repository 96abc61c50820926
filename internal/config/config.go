package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// Defaults for tunables the environment may override.
const (
	DefaultSplitThresholdPages = 5
	DefaultMaxUploadBytes      = 20 << 20 // 20 MiB
	DefaultSyncFanOut          = 4
	DefaultLearnThreshold      = 3
	DefaultHTTPPort            = "8080"
)

// ProviderCreds holds the credential material for one HTTP provider. The
// same endpoint may accept several schemes; which one works is discovered
// at call time by the extraction orchestrator.
type ProviderCreds struct {
	BearerToken string
	APIKey      string
	BasicUser   string
	BasicPass   string
}

// Empty reports whether no credential of any scheme is configured.
func (c ProviderCreds) Empty() bool {
	return c.BearerToken == "" && c.APIKey == "" && c.BasicUser == ""
}

// Config is the full runtime configuration, loaded from .env (if present)
// and the process environment.
type Config struct {
	HTTPPort    string
	PostgresDSN string
	GCSBucket   string

	OCRBaseURL      string
	OCRCreds        ProviderCreds
	SplitterBaseURL string
	SplitterAPIKey  string
	GeminiAPIKey    string
	ClassifierURL   string

	PlaidBaseURL      string
	PlaidClientID     string
	PlaidSecret       string
	OpenFinanceURL    string
	OpenFinanceToken  string
	GoCardlessURL     string
	GoCardlessID      string
	GoCardlessKey     string

	SplitThresholdPages int
	MaxUploadBytes      int64
	SyncFanOut          int
	LearnThreshold      int
	SyncIntervalMinutes int
}

// Load reads .env (ignored when absent) and the environment. Tunables get
// defaults; provider credentials are validated lazily by RequireProvider so
// a deployment only needs keys for the providers it actually uses.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:    envOr("HTTP_PORT", DefaultHTTPPort),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		GCSBucket:   os.Getenv("GCS_BUCKET"),

		OCRBaseURL: os.Getenv("OCR_BASE_URL"),
		OCRCreds: ProviderCreds{
			BearerToken: os.Getenv("OCR_BEARER_TOKEN"),
			APIKey:      os.Getenv("OCR_API_KEY"),
			BasicUser:   os.Getenv("OCR_BASIC_USER"),
			BasicPass:   os.Getenv("OCR_BASIC_PASS"),
		},
		SplitterBaseURL: os.Getenv("SPLITTER_BASE_URL"),
		SplitterAPIKey:  os.Getenv("SPLITTER_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		ClassifierURL:   os.Getenv("CLASSIFIER_URL"),

		PlaidBaseURL:     os.Getenv("PLAID_BASE_URL"),
		PlaidClientID:    os.Getenv("PLAID_CLIENT_ID"),
		PlaidSecret:      os.Getenv("PLAID_SECRET"),
		OpenFinanceURL:   os.Getenv("OPENFINANCE_BASE_URL"),
		OpenFinanceToken: os.Getenv("OPENFINANCE_TOKEN"),
		GoCardlessURL:    os.Getenv("GOCARDLESS_BASE_URL"),
		GoCardlessID:     os.Getenv("GOCARDLESS_ID"),
		GoCardlessKey:    os.Getenv("GOCARDLESS_KEY"),

		SplitThresholdPages: envInt("SPLIT_THRESHOLD_PAGES", DefaultSplitThresholdPages),
		MaxUploadBytes:      int64(envInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
		SyncFanOut:          envInt("SYNC_FAN_OUT", DefaultSyncFanOut),
		LearnThreshold:      envInt("LEARN_THRESHOLD", DefaultLearnThreshold),
		SyncIntervalMinutes: envInt("SYNC_INTERVAL_MINUTES", 0),
	}

	if cfg.SplitThresholdPages < 1 {
		return nil, &domain.ConfigurationError{Setting: "SPLIT_THRESHOLD_PAGES", Reason: "must be >= 1"}
	}
	if cfg.SyncFanOut < 1 {
		return nil, &domain.ConfigurationError{Setting: "SYNC_FAN_OUT", Reason: "must be >= 1"}
	}
	return cfg, nil
}

// RequireProvider validates that the named provider has usable credentials.
// Returns a ConfigurationError rather than letting a client crash later
// with an opaque auth failure.
func (c *Config) RequireProvider(kind domain.ProviderKind) error {
	switch kind {
	case domain.ProviderOCRExtractor:
		if c.OCRBaseURL == "" {
			return &domain.ConfigurationError{Setting: "OCR_BASE_URL"}
		}
		if c.OCRCreds.Empty() {
			return &domain.ConfigurationError{Setting: "OCR_BEARER_TOKEN/OCR_API_KEY/OCR_BASIC_USER", Reason: "no credential scheme configured"}
		}
	case domain.ProviderPlaid:
		if c.PlaidClientID == "" || c.PlaidSecret == "" {
			return &domain.ConfigurationError{Setting: "PLAID_CLIENT_ID/PLAID_SECRET"}
		}
	case domain.ProviderOpenFinance:
		if c.OpenFinanceToken == "" {
			return &domain.ConfigurationError{Setting: "OPENFINANCE_TOKEN"}
		}
	case domain.ProviderGoCardless:
		if c.GoCardlessID == "" || c.GoCardlessKey == "" {
			return &domain.ConfigurationError{Setting: "GOCARDLESS_ID/GOCARDLESS_KEY"}
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
