// Package generator provides the HTTP client for the external AI
// generation provider. The provider exposes a submit/poll pair for slow
// generations and a synchronous rewrite endpoint for short ones.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/storesmith/storesmith/internal/config"
	"github.com/storesmith/storesmith/internal/service/processor"
)

type Client struct {
	config *config.GeneratorConfig
	client *http.Client
	logger *zap.Logger
}

func NewClient(cfg *config.GeneratorConfig, logger *zap.Logger) *Client {
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Submit hands a generation request to the provider and returns its
// correlation id.
func (c *Client) Submit(ctx context.Context, payload string) (string, error) {
	var response struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/generations", payload, &response); err != nil {
		return "", err
	}
	if response.ID == "" {
		return "", fmt.Errorf("provider returned an empty generation id")
	}

	c.logger.Debug("Generation submitted", zap.String("correlation_id", response.ID))
	return response.ID, nil
}

// Poll asks the provider for the status of a previously submitted
// generation.
func (c *Client) Poll(ctx context.Context, correlationID string) (*processor.GenerationStatus, error) {
	url := fmt.Sprintf("%s/v1/generations/%s", c.config.BaseURL, correlationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("generator API returned status %d: %s", resp.StatusCode, string(body))
	}

	var status processor.GenerationStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &status, nil
}

// Rewrite runs the synchronous optimization endpoint.
func (c *Client) Rewrite(ctx context.Context, payload string) (string, error) {
	var response struct {
		Result string `json:"result"`
	}
	if err := c.post(ctx, "/v1/rewrites", payload, &response); err != nil {
		return "", err
	}
	return response.Result, nil
}

func (c *Client) post(ctx context.Context, path, payload string, out interface{}) error {
	url := c.config.BaseURL + path

	body := map[string]any{"input": json.RawMessage(payload)}
	if !json.Valid([]byte(payload)) {
		body["input"] = payload
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("generator API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Generator-Version", c.config.APIVersion)
}
