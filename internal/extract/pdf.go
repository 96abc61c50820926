package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageCount returns the number of pages in a PDF. The underlying library
// can panic on malformed files, so the call is fenced.
func PageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf page count: library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	return r.NumPage(), nil
}

// ExtractText pulls plain text out of a PDF without any network call.
// Row-based extraction is tried first because it preserves statement
// layout; whole-document plain text is the fallback.
func ExtractText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf text extraction: library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf text extraction: %w", err)
	}
	numPages := r.NumPage()
	if numPages == 0 {
		return "", fmt.Errorf("pdf text extraction: document has no pages")
	}

	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			pages = append(pages, strings.Join(lines, "\n"))
		}
	}
	if len(pages) > 0 {
		return strings.Join(pages, "\n"), nil
	}

	// Fallback: whole-document extraction path.
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf text extraction: %w", err)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("pdf text extraction: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
