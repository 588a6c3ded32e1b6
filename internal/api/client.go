package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides HTTP access to the daemon API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient constructs an API client for the daemon at baseURL. token may be
// empty when the daemon runs without authentication.
func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("daemon base url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Status retrieves daemon runtime information.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateJob submits a clip assembly job.
func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*JobView, error) {
	var resp JobResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// MarkUploaded confirms a pending upload completed.
func (c *Client) MarkUploaded(ctx context.Context, userID, jobID string) (*JobView, error) {
	var resp JobResponse
	path := "/api/jobs/" + url.PathEscape(jobID) + "/uploaded"
	if err := c.doJSON(ctx, http.MethodPost, path, MarkUploadedRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// GetJob fetches one job owned by userID.
func (c *Client) GetJob(ctx context.Context, userID, jobID string) (*JobView, error) {
	var resp JobResponse
	path := "/api/jobs/" + url.PathEscape(jobID) + "?userId=" + url.QueryEscape(userID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// ListJobs fetches jobs. With a userID only that user's jobs are returned.
func (c *Client) ListJobs(ctx context.Context, userID string) ([]JobView, error) {
	var resp JobListResponse
	path := "/api/jobs"
	if strings.TrimSpace(userID) != "" {
		path += "?userId=" + url.QueryEscape(userID)
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Generate runs the synchronous text-to-video flow. A failed generation
// still returns the job record alongside the error so callers can inspect
// its failure message.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*JobView, error) {
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("daemon request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	switch {
	case httpResp.StatusCode < 400:
		var resp JobResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &resp.Job, nil
	case httpResp.StatusCode == http.StatusUnprocessableEntity:
		var resp JobResponse
		if json.Unmarshal(data, &resp) == nil && resp.Job.ID != "" {
			message := strings.TrimSpace(resp.Job.ErrorMessage)
			if message == "" {
				message = "generation failed"
			}
			return &resp.Job, fmt.Errorf("%s", message)
		}
		fallthrough
	default:
		var payload ErrorResponse
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			return nil, fmt.Errorf("daemon returned %d: %s", httpResp.StatusCode, payload.Error)
		}
		return nil, fmt.Errorf("daemon returned %d", httpResp.StatusCode)
	}
}

// Broll returns stock footage candidates for the text without assembling.
func (c *Client) Broll(ctx context.Context, text string) ([]BrollCandidate, error) {
	var resp BrollResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/broll", BrollRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Candidates, nil
}

// Credits retrieves a user's balance.
func (c *Client) Credits(ctx context.Context, userID string) (*CreditsResponse, error) {
	var resp CreditsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/credits/"+url.PathEscape(userID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddCredits tops up a user's balance.
func (c *Client) AddCredits(ctx context.Context, userID string, amount int64) (*CreditsResponse, error) {
	var resp CreditsResponse
	path := "/api/credits/" + url.PathEscape(userID)
	if err := c.doJSON(ctx, http.MethodPost, path, AddCreditsRequest{Amount: amount}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueHealth reports aggregated job counts by lifecycle state.
func (c *Client) QueueHealth(ctx context.Context) (*QueueHealthResponse, error) {
	var resp QueueHealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/queue/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetryFailed resubmits failed jobs, optionally a subset by id.
func (c *Client) RetryFailed(ctx context.Context, ids []string) (int64, error) {
	var resp CountResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/queue/retry", RetryRequest{IDs: ids}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// RemoveJob deletes a job record.
func (c *Client) RemoveJob(ctx context.Context, jobID string) (int64, error) {
	var resp CountResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/api/queue/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// ClearQueue removes job records for the given scope: "all", "completed",
// or "failed".
func (c *Client) ClearQueue(ctx context.Context, scope string) (int64, error) {
	var resp CountResponse
	path := "/api/queue/clear"
	if scope = strings.TrimSpace(scope); scope != "" {
		path += "?scope=" + url.QueryEscape(scope)
	}
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/notify/test", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
