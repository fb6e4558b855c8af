package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/tally/internal/domain/types"
)

// maxErrorBody bounds the response body quoted in errors.
const maxErrorBody = 512

// HTTPClient talks to the tally API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// StatusError is returned for unexpected response codes.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// submitResult classifies one event submission.
type submitResult int

const (
	submitAccepted submitResult = iota
	submitDuplicate
	submitThrottled
	submitInFlight
	submitFailed
)

type ackResponse struct {
	Duplicate bool `json:"duplicate"`
}

// submit posts one task event.
func (c *HTTPClient) submit(ctx context.Context, e Event) (submitResult, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return submitFailed, fmt.Errorf("failed to marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/update", bytes.NewReader(body))
	if err != nil {
		return submitFailed, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return submitFailed, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var ack ackResponse
		if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
			return submitFailed, fmt.Errorf("failed to parse response: %w", err)
		}
		if ack.Duplicate {
			return submitDuplicate, nil
		}
		return submitAccepted, nil
	case http.StatusTooManyRequests:
		return submitThrottled, nil
	case http.StatusConflict:
		// the same event id is still being applied
		return submitInFlight, nil
	default:
		return submitFailed, statusError(resp)
	}
}

// health checks /healthz.
func (c *HTTPClient) health(ctx context.Context) error {
	resp, err := c.get(ctx, "/healthz")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// summary fetches the points summary of one user.
func (c *HTTPClient) summary(ctx context.Context, userID string) (types.UserSummary, error) {
	var out types.UserSummary
	err := c.getJSON(ctx, "/users/dashboard/summary?userId="+url.QueryEscape(userID), &out)
	return out, err
}

// leaderboard fetches the top n entries.
func (c *HTTPClient) leaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	var out []types.Entry
	err := c.getJSON(ctx, fmt.Sprintf("/leaderboard?limit=%d", n), &out)
	return out, err
}

func (c *HTTPClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}
