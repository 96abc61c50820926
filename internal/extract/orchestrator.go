// Package extract drives one uploaded file through the provider fallback
// cascade and produces the best-available raw extraction.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/provider"
)

// FileKind is the coarse classification driving the cascade.
type FileKind string

const (
	KindPDF     FileKind = "pdf"
	KindCSV     FileKind = "csv"
	KindImage   FileKind = "image"
	KindUnknown FileKind = "unknown"
)

// ClassifyFile decides the kind from the declared MIME type first, then
// the filename extension.
func ClassifyFile(name, mime string) FileKind {
	switch {
	case strings.Contains(mime, "pdf"):
		return KindPDF
	case strings.Contains(mime, "csv"), mime == "text/plain" && strings.HasSuffix(strings.ToLower(name), ".csv"):
		return KindCSV
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".csv":
		return KindCSV
	case ".png", ".jpg", ".jpeg", ".heic", ".webp":
		return KindImage
	}
	return KindUnknown
}

// Strategy is one extraction approach. The orchestrator tries strategies
// in order and stops at the first that yields a non-empty extraction.
type Strategy interface {
	Name() string
	CanHandle(kind FileKind) bool
	Extract(ctx context.Context, file provider.File) (*domain.RawExtraction, error)
}

// Splitter is the slice of the converter service the orchestrator needs.
type Splitter interface {
	SplitPDF(ctx context.Context, data []byte, maxPages int) ([][]byte, error)
}

// Orchestrator owns the fallback cascade and the oversized-PDF split path.
// It performs no persistence: pure transformation plus network I/O.
type Orchestrator struct {
	strategies     []Strategy
	splitter       Splitter
	splitThreshold int
	pageCount      func([]byte) (int, error)
	log            zerolog.Logger
}

// New builds an orchestrator. splitter may be nil, in which case oversized
// PDFs are processed whole. splitThreshold is the max pages per chunk.
func New(strategies []Strategy, splitter Splitter, splitThreshold int, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		strategies:     strategies,
		splitter:       splitter,
		splitThreshold: splitThreshold,
		pageCount:      PageCount,
		log:            log,
	}
}

// WithPageCounter overrides the PDF page probe. Tests use this to avoid
// crafting real PDFs.
func (o *Orchestrator) WithPageCounter(fn func([]byte) (int, error)) *Orchestrator {
	o.pageCount = fn
	return o
}

// Extract runs the cascade for one file. CSV never reaches this point;
// the caller routes it straight to the normalizer's CSV path.
func (o *Orchestrator) Extract(ctx context.Context, file provider.File) (*domain.RawExtraction, error) {
	kind := ClassifyFile(file.Name, file.MIME)
	if kind == KindCSV {
		return nil, fmt.Errorf("extract: csv files bypass extraction")
	}

	if kind == KindPDF && o.splitter != nil && o.splitThreshold > 0 {
		pages, err := o.pageCount(file.Data)
		if err != nil {
			o.log.Debug().Err(err).Str("file", file.Name).Msg("page probe failed, processing whole")
		} else if pages > o.splitThreshold {
			return o.extractChunked(ctx, file, pages)
		}
	}

	return o.runCascade(ctx, file, kind)
}

// extractChunked splits an oversized PDF and extracts each chunk
// independently, concatenating results in chunk order. A split failure
// aborts the whole file: no partial silent success.
func (o *Orchestrator) extractChunked(ctx context.Context, file provider.File, pages int) (*domain.RawExtraction, error) {
	chunks, err := o.splitter.SplitPDF(ctx, file.Data, o.splitThreshold)
	if err != nil {
		return nil, fmt.Errorf("extract: splitting %d-page pdf: %w", pages, err)
	}
	o.log.Info().Str("file", file.Name).Int("pages", pages).Int("chunks", len(chunks)).Msg("split oversized pdf")

	combined := &domain.RawExtraction{}
	for i, chunk := range chunks {
		part := provider.File{
			Name: fmt.Sprintf("%s.part%d", file.Name, i+1),
			MIME: "application/pdf",
			Data: chunk,
		}
		result, err := o.runCascade(ctx, part, KindPDF)
		if err != nil {
			return nil, fmt.Errorf("extract: chunk %d/%d: %w", i+1, len(chunks), err)
		}
		combined.Records = append(combined.Records, result.Records...)
		if result.Text != "" {
			if combined.Text != "" {
				combined.Text += "\n"
			}
			combined.Text += result.Text
		}
		if combined.SourceTag == "" {
			combined.SourceTag = result.SourceTag
		}
	}
	return combined, nil
}

// runCascade tries each applicable strategy in order. Every failed
// attempt is retained in the terminal error for diagnostics.
func (o *Orchestrator) runCascade(ctx context.Context, file provider.File, kind FileKind) (*domain.RawExtraction, error) {
	var attempts []string
	for _, strat := range o.strategies {
		if !strat.CanHandle(kind) {
			continue
		}
		result, err := strat.Extract(ctx, file)
		if err != nil {
			o.log.Debug().Err(err).Str("strategy", strat.Name()).Str("file", file.Name).Msg("extraction strategy failed")
			attempts = append(attempts, fmt.Sprintf("%s: %v", strat.Name(), err))
			continue
		}
		if result.Empty() {
			attempts = append(attempts, fmt.Sprintf("%s: empty result", strat.Name()))
			continue
		}
		o.log.Info().Str("strategy", strat.Name()).Str("file", file.Name).
			Int("records", len(result.Records)).Msg("extraction succeeded")
		return result, nil
	}
	if len(attempts) == 0 {
		return nil, fmt.Errorf("extract: no strategy can handle %s file %q", kind, file.Name)
	}
	return nil, fmt.Errorf("extract: all strategies failed for %q: %s", file.Name, strings.Join(attempts, "; "))
}
