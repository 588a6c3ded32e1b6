package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clipforge/internal/config"
)

// StockClient queries a stock-footage provider for downloadable video files.
type StockClient struct {
	cfg        config.Stock
	httpClient *http.Client
}

// StockOption customizes the client.
type StockOption func(*StockClient)

// WithStockHTTPClient overrides the default HTTP client.
func WithStockHTTPClient(client *http.Client) StockOption {
	return func(c *StockClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewStockClient constructs a stock-footage search client from configuration.
func NewStockClient(cfg config.Stock, opts ...StockOption) *StockClient {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &StockClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type stockSearchResponse struct {
	Videos []struct {
		ID         int64 `json:"id"`
		Duration   int   `json:"duration"`
		VideoFiles []struct {
			Link    string `json:"link"`
			Quality string `json:"quality"`
			Width   int    `json:"width"`
			Height  int    `json:"height"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Search returns the download URL of the best match for a search phrase, or
// an empty string when the provider has nothing for it.
func (c *StockClient) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("stock search: query required")
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", errors.New("stock search: api key required")
	}

	endpoint, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("stock search: parse base url: %w", err)
	}
	values := endpoint.Query()
	values.Set("query", query)
	values.Set("per_page", "1")
	if c.cfg.Orientation != "" {
		values.Set("orientation", c.cfg.Orientation)
	}
	endpoint.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("stock search: new request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stock search: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("stock search: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed stockSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("stock search: decode response: %w", err)
	}
	if len(parsed.Videos) == 0 {
		return "", nil
	}

	files := parsed.Videos[0].VideoFiles
	if len(files) == 0 {
		return "", nil
	}
	// Prefer the provider's HD rendition; fall back to the first file.
	for _, file := range files {
		if strings.EqualFold(file.Quality, "hd") && file.Link != "" {
			return file.Link, nil
		}
	}
	return files[0].Link, nil
}
