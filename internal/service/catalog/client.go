// Package catalog provides the HTTP client that commits item results to
// the external catalog/CMS. The result payload is opaque to this client.
package catalog

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
	"github.com/storesmith/storesmith/internal/models"
)

type Client struct {
	config *config.CatalogConfig
	client *http.Client
	logger *zap.Logger
}

func NewClient(cfg *config.CatalogConfig, logger *zap.Logger) *Client {
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// PushResult writes one completed result to the catalog and returns the
// catalog's reference for it.
func (c *Client) PushResult(ctx context.Context, item *models.JobItem) (string, error) {
	url := c.config.BaseURL + "/v1/contents"

	body := map[string]any{
		"unit_key": item.UnitKey,
		"result":   item.Result,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("catalog API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var response struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("Result pushed to catalog",
		zap.Uint("item_id", item.ID),
		zap.String("ref", response.Ref))

	return response.Ref, nil
}
