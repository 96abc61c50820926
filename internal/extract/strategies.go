package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/provider"
)

// OCRStrategy calls the primary OCR provider. Because the deployment's
// credential scheme is not known a priori, a non-2xx response is retried
// with the remaining auth schemes against the same endpoint before the
// strategy reports failure; each attempt's outcome is retained.
type OCRStrategy struct {
	Client *provider.OCRClient
	Log    zerolog.Logger
}

func (s *OCRStrategy) Name() string { return "ocr" }

func (s *OCRStrategy) CanHandle(kind FileKind) bool {
	return kind == KindPDF || kind == KindImage || kind == KindUnknown
}

func (s *OCRStrategy) Extract(ctx context.Context, file provider.File) (*domain.RawExtraction, error) {
	schemes := s.Client.Schemes()
	if len(schemes) == 0 {
		return nil, &domain.ConfigurationError{Setting: "ocr credentials", Reason: "no auth scheme configured"}
	}

	var attempts []string
	for _, scheme := range schemes {
		result, err := s.Client.ExtractWith(ctx, file, scheme)
		if err == nil {
			return result, nil
		}
		attempts = append(attempts, fmt.Sprintf("%s: %v", scheme, err))

		// Deployments reject the wrong scheme with anything from 400 to
		// 429, not just 401, so every status-shaped failure rotates.
		// Transport errors stop the rotation; different credentials will
		// not fix those.
		if !statusRejection(err) {
			break
		}
		s.Log.Debug().Str("scheme", string(scheme)).Str("file", file.Name).Msg("ocr scheme rejected, rotating")
	}
	return nil, fmt.Errorf("ocr provider failed (%s)", strings.Join(attempts, "; "))
}

// statusRejection reports whether err came from a provider response rather
// than from transport.
func statusRejection(err error) bool {
	var (
		authErr     *domain.AuthError
		rateErr     *domain.RateLimitedError
		upstreamErr *domain.UpstreamError
	)
	return errors.As(err, &authErr) || errors.As(err, &rateErr) || errors.As(err, &upstreamErr)
}

// GeminiStrategy delegates to the model-based extractor.
type GeminiStrategy struct {
	Client *provider.GeminiExtractor
}

func (s *GeminiStrategy) Name() string { return "gemini" }

func (s *GeminiStrategy) CanHandle(kind FileKind) bool {
	return kind == KindPDF || kind == KindImage
}

func (s *GeminiStrategy) Extract(ctx context.Context, file provider.File) (*domain.RawExtraction, error) {
	return s.Client.Extract(ctx, file)
}

// LocalPDFStrategy extracts embedded text from a PDF with no network
// call. It only succeeds when the document actually carries a text layer.
type LocalPDFStrategy struct {
	// ExtractText defaults to the package-level extractor; tests inject
	// their own.
	ExtractText func([]byte) (string, error)
}

func (s *LocalPDFStrategy) Name() string { return "local-pdf" }

func (s *LocalPDFStrategy) CanHandle(kind FileKind) bool { return kind == KindPDF }

func (s *LocalPDFStrategy) Extract(ctx context.Context, file provider.File) (*domain.RawExtraction, error) {
	fn := s.ExtractText
	if fn == nil {
		fn = ExtractText
	}
	text, err := fn(file.Data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("local-pdf: no embedded text")
	}
	return &domain.RawExtraction{Text: text, SourceTag: "local-pdf"}, nil
}

// ConvertStrategy is the secondary network chain: upload the file to the
// converter service, then request OCR-to-text. The returned text is
// unstructured and needs the normalizer's line parser.
type ConvertStrategy struct {
	Client *provider.SplitterClient
}

func (s *ConvertStrategy) Name() string { return "upload-convert" }

func (s *ConvertStrategy) CanHandle(kind FileKind) bool { return kind != KindCSV }

func (s *ConvertStrategy) Extract(ctx context.Context, file provider.File) (*domain.RawExtraction, error) {
	url, err := s.Client.Upload(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("upload-convert: %w", err)
	}
	text, err := s.Client.ConvertToText(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("upload-convert: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("upload-convert: conversion yielded no text")
	}
	return &domain.RawExtraction{Text: text, SourceTag: "convert"}, nil
}
