package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"clipforge/internal/config"
)

const (
	jsonResponseType      = "json_object"
	defaultHTTPTimeout    = 15 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

const keywordPrompt = `You turn a short video description into stock footage search phrases.
Respond with JSON only: {"keywords": ["phrase", ...]}.
Each phrase is 1-3 words describing a concrete visual scene.
Return at most %d phrases, ordered by relevance.`

// KeywordsClient extracts stock-footage search phrases from free text via a
// JSON-only chat completion API.
type KeywordsClient struct {
	cfg        config.Keywords
	httpClient *http.Client

	retryAttempts  int
	retryBaseDelay time.Duration
	sleeper        func(time.Duration)
}

// KeywordsOption customizes the client.
type KeywordsOption func(*KeywordsClient)

// WithKeywordsHTTPClient overrides the default HTTP client.
func WithKeywordsHTTPClient(client *http.Client) KeywordsOption {
	return func(c *KeywordsClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithKeywordsRetry overrides retry behaviour (primarily for tests).
func WithKeywordsRetry(attempts int, baseDelay time.Duration, sleeper func(time.Duration)) KeywordsOption {
	return func(c *KeywordsClient) {
		if attempts > 0 {
			c.retryAttempts = attempts
		}
		if baseDelay >= 0 {
			c.retryBaseDelay = baseDelay
		}
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewKeywordsClient constructs a keywords client from configuration.
func NewKeywordsClient(cfg config.Keywords, opts ...KeywordsOption) *KeywordsClient {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &KeywordsClient{
		cfg:            cfg,
		httpClient:     &http.Client{Timeout: timeout},
		retryAttempts:  defaultRetryAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("keywords request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Extract returns up to cfg.MaxKeywords search phrases for the given text.
func (c *KeywordsClient) Extract(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("keywords extract: text required")
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, errors.New("keywords extract: api key required")
	}

	maxKeywords := c.cfg.MaxKeywords
	if maxKeywords <= 0 {
		maxKeywords = 5
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(keywordPrompt, maxKeywords)},
			{Role: "user", Content: text},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}

	content, err := c.completeWithRetry(ctx, payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	if err := decodeModelJSON(content, &parsed); err != nil {
		return nil, fmt.Errorf("keywords extract: parse payload: %w", err)
	}

	keywords := make([]string, 0, maxKeywords)
	for _, keyword := range parsed.Keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		keywords = append(keywords, keyword)
		if len(keywords) == maxKeywords {
			break
		}
	}
	if len(keywords) == 0 {
		return nil, errors.New("keywords extract: model returned no phrases")
	}
	return keywords, nil
}

func (c *KeywordsClient) completeWithRetry(ctx context.Context, payload chatCompletionRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		content, err := c.completeOnce(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable(ctx, err) || attempt == c.retryAttempts {
			return "", err
		}
		if err := c.sleep(ctx, c.backoffDelay(attempt)); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("keywords extract: failed after %d attempts: %w", c.retryAttempts, lastErr)
}

func (c *KeywordsClient) completeOnce(ctx context.Context, payload chatCompletionRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("keywords request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("keywords request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("keywords request: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("keywords request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("keywords request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("keywords request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", errors.New("keywords request: empty content")
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *KeywordsClient) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > defaultRetryMaxDelay/2 {
			return defaultRetryMaxDelay
		}
		delay *= 2
	}
	return delay
}

func (c *KeywordsClient) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// decodeModelJSON decodes JSON from a model response, tolerating code fences
// and leading prose.
func decodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}

	sanitized := trimmed
	if strings.HasPrefix(sanitized, "```") {
		sanitized = strings.TrimPrefix(sanitized, "```")
		sanitized = strings.TrimSpace(strings.TrimPrefix(sanitized, "json"))
		if idx := strings.LastIndex(sanitized, "```"); idx >= 0 {
			sanitized = sanitized[:idx]
		}
	}
	if start := strings.Index(sanitized, "{"); start >= 0 {
		if end := strings.LastIndex(sanitized, "}"); end > start {
			sanitized = sanitized[start : end+1]
		}
	}
	return json.Unmarshal([]byte(strings.TrimSpace(sanitized)), target)
}
