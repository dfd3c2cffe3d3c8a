// Package mlscore is the client for the external opportunity scoring
// service.
package mlscore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is the REST client for the scoring service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a scoring client. baseURL is the service root, e.g.
// "http://localhost:8100".
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Request carries the features the model scores on.
type Request struct {
	Token            string  `json:"token"`
	ChainFrom        string  `json:"chainFrom"`
	ChainTo          string  `json:"chainTo"`
	PriceDiffPercent float64 `json:"priceDiffPercent"`
	GrossProfitUSD   float64 `json:"grossProfitUsd"`
	NetProfitUSD     float64 `json:"netProfitUsd"`
	GasCostUSD       float64 `json:"gasCostUsd"`
	ROIPercent       float64 `json:"roiPercent"`
	TradeVolumeUSD   float64 `json:"tradeVolumeUsd"`
}

// Score submits features for prediction and returns the raw model score.
// Callers are expected to clamp the result to [0, 1].
func (c *Client) Score(ctx context.Context, req Request) (float64, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("mlscore: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("mlscore: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("mlscore: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("mlscore: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("mlscore: decode response: %w", err)
	}

	return body.Score, nil
}

// Healthy probes the scoring service's health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("mlscore: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mlscore: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mlscore: unexpected status %d", resp.StatusCode)
	}
	return nil
}
