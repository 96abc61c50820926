package normalize

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/ledger"
	"github.com/ledgerflow/ledgerflow/internal/logger"
)

// Options carries the per-import settings for a normalization run.
type Options struct {
	AccountID string
	SourceTag string

	// NegateAmounts flips the sign of every parsed amount. By default the
	// sign the source gives is kept as-is; set this for exports that
	// report outflows as positive numbers.
	NegateAmounts bool
}

// Result is the outcome of normalizing one file or record batch. The
// candidate and skipped counts always add up to the number of data rows
// seen, so callers can account for every row.
type Result struct {
	Candidates []domain.CanonicalTransaction
	Skipped    int
	RowErrors  []error
}

// Total returns the number of data rows the run saw.
func (r *Result) Total() int {
	return len(r.Candidates) + r.Skipped
}

// Normalizer turns raw source rows into canonical transactions and keeps
// the payee list in the ledger up to date as it goes.
type Normalizer struct {
	store ledger.Store
	log   zerolog.Logger
}

func New(store ledger.Store, log zerolog.Logger) *Normalizer {
	return &Normalizer{store: store, log: logger.Component(log, "normalize")}
}

// NormalizeCSV parses a delimited file. The header row is resolved
// against known column synonyms; an unresolvable header fails the whole
// file, while individual bad rows are skipped and counted.
func (n *Normalizer) NormalizeCSV(ctx context.Context, data []byte, opts Options) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, domain.NewFileError("reading header: %v", err)
	}
	cm, err := BuildColumnMap(header)
	if err != nil {
		return nil, fmt.Errorf("NormalizeCSV: %w", err)
	}

	res := &Result{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.skip(fmt.Errorf("malformed row: %w", err))
			continue
		}
		if blankRow(row) {
			continue
		}
		rec := recordFromRow(row, cm)
		n.appendRecord(ctx, res, rec, opts)
	}

	n.log.Info().
		Int("candidates", len(res.Candidates)).
		Int("skipped", res.Skipped).
		Str("account", opts.AccountID).
		Msg("csv normalized")
	return res, nil
}

// NormalizeExtraction handles extractor output. Structured records are
// used when present, otherwise the raw text is scanned for transaction
// lines.
func (n *Normalizer) NormalizeExtraction(ctx context.Context, ex *domain.RawExtraction, opts Options) (*Result, error) {
	records := ex.Records
	if len(records) == 0 {
		records = RecordsFromText(ex.Text)
	}
	if opts.SourceTag == "" {
		opts.SourceTag = ex.SourceTag
	}
	return n.NormalizeRecords(ctx, records, opts)
}

// NormalizeRecords converts pre-structured records, skipping and counting
// any that fail to parse.
func (n *Normalizer) NormalizeRecords(ctx context.Context, records []domain.RawRecord, opts Options) (*Result, error) {
	res := &Result{}
	for _, rec := range records {
		n.appendRecord(ctx, res, rec, opts)
	}
	return res, nil
}

func (n *Normalizer) appendRecord(ctx context.Context, res *Result, rec domain.RawRecord, opts Options) {
	tx, err := n.toCanonical(ctx, rec, opts)
	if err != nil {
		n.log.Warn().Err(err).Msg("row skipped")
		res.skip(err)
		return
	}
	res.Candidates = append(res.Candidates, tx)
}

func (n *Normalizer) toCanonical(ctx context.Context, rec domain.RawRecord, opts Options) (domain.CanonicalTransaction, error) {
	date, err := ParseDate(cleanCell(rec.Date))
	if err != nil {
		return domain.CanonicalTransaction{}, err
	}
	minor, err := ParseAmountMinor(cleanCell(rec.Amount))
	if err != nil {
		return domain.CanonicalTransaction{}, err
	}
	if opts.NegateAmounts {
		minor = -minor
	}

	payee := cleanCell(rec.Description)
	if payee != "" {
		if resolved, err := n.resolvePayee(ctx, payee); err != nil {
			n.log.Warn().Err(err).Str("payee", payee).Msg("payee resolution failed")
		} else {
			payee = resolved
		}
	}

	return domain.CanonicalTransaction{
		ID:          uuid.NewString(),
		ExternalID:  rec.ExternalID,
		AccountID:   opts.AccountID,
		Date:        date,
		AmountMinor: minor,
		PayeeName:   payee,
		Cleared:     !rec.Pending,
		SourceTag:   opts.SourceTag,
	}, nil
}

// resolvePayee returns the canonical name for a payee, creating it on
// first sight.
func (n *Normalizer) resolvePayee(ctx context.Context, name string) (string, error) {
	existing, err := n.store.FindPayee(ctx, name)
	if err != nil {
		return name, fmt.Errorf("resolvePayee: %w", err)
	}
	if existing != nil {
		return existing.Name, nil
	}
	created, err := n.store.CreatePayee(ctx, name)
	if err != nil {
		return name, fmt.Errorf("resolvePayee: %w", err)
	}
	return created.Name, nil
}

func recordFromRow(row []string, cm ColumnMap) domain.RawRecord {
	rec := domain.RawRecord{
		Date:   cell(row, cm.Date),
		Amount: cell(row, cm.Amount),
	}
	if cm.Description >= 0 {
		rec.Description = cell(row, cm.Description)
	}
	return rec
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (r *Result) skip(err error) {
	r.Skipped++
	r.RowErrors = append(r.RowErrors, err)
}
