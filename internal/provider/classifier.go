package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// ClassifierClient fronts the text-classification sidecar used as a
// categorization fallback for transactions no rule matched. The service
// takes a description plus an income/expense hint and returns a label.
type ClassifierClient struct {
	baseURL string
	hc      *http.Client
	log     zerolog.Logger
}

// NewClassifierClient builds a client for the classifier service.
func NewClassifierClient(baseURL string, hc *http.Client, log zerolog.Logger) *ClassifierClient {
	return &ClassifierClient{baseURL: baseURL, hc: defaultClient(hc), log: log}
}

// Classify returns the predicted category label and its confidence score.
func (c *ClassifierClient) Classify(ctx context.Context, text, txType string) (string, float64, error) {
	payload, err := json.Marshal(map[string]string{
		"text": text,
		"type": txType,
	})
	if err != nil {
		return "", 0, fmt.Errorf("classifier: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai/hf-classify", bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("classifier: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, statusError("classifier", resp)
	}

	var parsed struct {
		LabelName string  `json:"label_name"`
		Score     float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, fmt.Errorf("classifier: decode response: %w", err)
	}
	return parsed.LabelName, parsed.Score, nil
}
