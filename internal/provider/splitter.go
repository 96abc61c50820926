package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"
)

// SplitterClient talks to the file conversion service: upload, PDF split
// into page chunks, and OCR-to-text conversion of an uploaded file.
type SplitterClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	log     zerolog.Logger
}

// NewSplitterClient builds a client for the splitter/converter service.
func NewSplitterClient(baseURL, apiKey string, hc *http.Client, log zerolog.Logger) *SplitterClient {
	return &SplitterClient{baseURL: baseURL, apiKey: apiKey, hc: defaultClient(hc), log: log}
}

// Upload pushes file bytes to the service and returns the hosted URL used
// by subsequent convert calls.
func (c *SplitterClient) Upload(ctx context.Context, file File) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return "", fmt.Errorf("splitter: build multipart: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return "", fmt.Errorf("splitter: write multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("splitter: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/file/upload", &body)
	if err != nil {
		return "", fmt.Errorf("splitter: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("splitter: upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError("splitter", resp)
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("splitter: decode upload response: %w", err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("splitter: upload returned no url")
	}
	return parsed.URL, nil
}

// ConvertToText asks the service to OCR a previously uploaded file.
func (c *SplitterClient) ConvertToText(ctx context.Context, fileURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{"url": fileURL})
	if err != nil {
		return "", fmt.Errorf("splitter: encode convert request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert/to/text", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("splitter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("splitter: convert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError("splitter", resp)
	}

	var parsed struct {
		Body string `json:"body"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("splitter: decode convert response: %w", err)
	}
	if parsed.Text != "" {
		return parsed.Text, nil
	}
	return parsed.Body, nil
}

// SplitPDF splits a PDF into sequential chunks of at most maxPages pages.
// Chunks come back in original page order.
func (c *SplitterClient) SplitPDF(ctx context.Context, data []byte, maxPages int) ([][]byte, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"file":      base64.StdEncoding.EncodeToString(data),
		"max_pages": maxPages,
	})
	if err != nil {
		return nil, fmt.Errorf("splitter: encode split request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pdf/split", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("splitter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("splitter: split: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError("splitter", resp)
	}

	var parsed struct {
		Chunks []string `json:"chunks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("splitter: decode split response: %w", err)
	}
	if len(parsed.Chunks) == 0 {
		return nil, fmt.Errorf("splitter: split returned no chunks")
	}

	out := make([][]byte, 0, len(parsed.Chunks))
	for i, chunk := range parsed.Chunks {
		raw, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			return nil, fmt.Errorf("splitter: decode chunk %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}
