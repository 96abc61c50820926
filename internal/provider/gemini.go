package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// DefaultGeminiModel is the model used for statement extraction.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiExtractor extracts statement line items with a vision model. It
// expects the model to return a strict JSON array of transactions and
// maps that into RawRecords; amounts and dates stay strings for the
// normalizer to parse.
type GeminiExtractor struct {
	model string
	log   zerolog.Logger
}

// NewGeminiExtractor builds an extractor. The API key is read by the genai
// client from the environment; callers validate it up front via config.
func NewGeminiExtractor(model string, log zerolog.Logger) *GeminiExtractor {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiExtractor{model: model, log: log}
}

const geminiPrompt = "You are a financial statement parser.\n\n" +
	"Task:\n" +
	"- Parse ALL transactions in the attached statement.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a JSON array of objects.\n\n" +
	"Each object must have these fields:\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"description\": string\n" +
	"- \"amount\": string, signed decimal (negative for money OUT)\n\n" +
	"Rules:\n" +
	"- If the statement has separate \"paid out\" / \"paid in\" columns, convert to a single signed \"amount\".\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"[\" and end with \"]\".\n"

// Extract implements Extractor.
func (g *GeminiExtractor) Extract(ctx context.Context, file File) (*domain.RawExtraction, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: geminiPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: file.MIME,
						Data:     file.Data,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("gemini: empty response from model")
	}

	var items []struct {
		Date        string `json:"date"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
	}
	clean := cleanModelJSON(rawText)
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		return nil, fmt.Errorf("gemini: unmarshal JSON: %w", err)
	}

	out := &domain.RawExtraction{SourceTag: "gemini"}
	for _, item := range items {
		out.Records = append(out.Records, domain.RawRecord{
			Date:        item.Date,
			Description: item.Description,
			Amount:      item.Amount,
		})
	}
	return out, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores formatting instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

var _ Extractor = (*GeminiExtractor)(nil)
