package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/config"
	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// OCRClient talks to the primary document extraction service. The endpoint
// accepts the same request under several auth schemes; which one the
// deployment expects is not known a priori, so the orchestrator rotates
// schemes via ExtractWith.
type OCRClient struct {
	baseURL string
	creds   config.ProviderCreds
	hc      *http.Client
	log     zerolog.Logger
}

// NewOCRClient builds a client for the /extract endpoint.
func NewOCRClient(baseURL string, creds config.ProviderCreds, hc *http.Client, log zerolog.Logger) *OCRClient {
	return &OCRClient{baseURL: baseURL, creds: creds, hc: defaultClient(hc), log: log}
}

// Schemes lists the auth schemes this client has credentials for, in the
// order they should be attempted.
func (c *OCRClient) Schemes() []AuthScheme {
	var out []AuthScheme
	if c.creds.BearerToken != "" {
		out = append(out, AuthBearer)
	}
	if c.creds.APIKey != "" {
		out = append(out, AuthAPIKey)
	}
	if c.creds.BasicUser != "" {
		out = append(out, AuthBasic)
	}
	return out
}

// ocrResponse is the provider-native shape. Either a structured list of
// line items or a single content blob.
type ocrResponse struct {
	Content string `json:"content"`
	Items   []struct {
		ID          string `json:"id"`
		Date        string `json:"date"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
	} `json:"items"`
}

// ExtractWith performs one extraction attempt under the given auth scheme.
// No retries happen here.
func (c *OCRClient) ExtractWith(ctx context.Context, file File, scheme AuthScheme) (*domain.RawExtraction, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, fmt.Errorf("ocr: build multipart: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, fmt.Errorf("ocr: write multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("ocr: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &body)
	if err != nil {
		return nil, fmt.Errorf("ocr: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.applyAuth(req, scheme)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError("ocr", resp)
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ocr: decode response: %w", err)
	}

	out := &domain.RawExtraction{SourceTag: "ocr"}
	for _, item := range parsed.Items {
		out.Records = append(out.Records, domain.RawRecord{
			ExternalID:  item.ID,
			Date:        item.Date,
			Description: item.Description,
			Amount:      item.Amount,
		})
	}
	out.Text = parsed.Content
	return out, nil
}

func (c *OCRClient) applyAuth(req *http.Request, scheme AuthScheme) {
	switch scheme {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+c.creds.BearerToken)
	case AuthAPIKey:
		req.Header.Set("X-Api-Key", c.creds.APIKey)
	case AuthBasic:
		req.SetBasicAuth(c.creds.BasicUser, c.creds.BasicPass)
	}
}
