// Package dashboardapi is a client for a remote argus dashboard API. Every
// request carries a JSON content type and the dashboard's CSRF token;
// non-2xx responses become *HTTPError and server errors are retried.
package dashboardapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rewired-gh/argus/internal/logger"
	"github.com/rewired-gh/argus/internal/risk"
)

// CSRFHeader is the header carrying the CSRF token.
const CSRFHeader = "X-CSRFToken"

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// ClientConfig holds retry configuration for the HTTP client
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// Client provides access to a dashboard API
type Client struct {
	baseURL        string
	csrfToken      string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// SessionSummary is the summary of one analysis as served by the dashboard.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	risk.Summary
}

// NewClient creates a new dashboard client
func NewClient(baseURL, csrfToken string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		csrfToken:      csrfToken,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// Call sends a request to path and decodes the JSON response into out. A
// nil body sends no payload; a nil out discards the response.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := c.doRequest(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// FetchSummary retrieves the summary of an analysis session.
func (c *Client) FetchSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	var s SessionSummary
	if err := c.Call(ctx, http.MethodGet, "/api/v1/analyses/"+url.PathEscape(sessionID)+"/summary", nil, &s); err != nil {
		return nil, fmt.Errorf("failed to fetch summary: %w", err)
	}
	return &s, nil
}

// FetchReport retrieves the risk report the dashboard built for a session.
func (c *Client) FetchReport(ctx context.Context, sessionID string) (*risk.Report, error) {
	var r risk.Report
	if err := c.Call(ctx, http.MethodGet, "/api/v1/analyses/"+url.PathEscape(sessionID)+"/report", nil, &r); err != nil {
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}
	return &r, nil
}

// Assess asks the dashboard to classify a probability.
func (c *Client) Assess(ctx context.Context, probability float64) (*risk.Assessment, error) {
	var a risk.Assessment
	body := map[string]float64{"probability": probability}
	if err := c.Call(ctx, http.MethodPost, "/api/v1/risk/assess", body, &a); err != nil {
		return nil, fmt.Errorf("failed to assess probability: %w", err)
	}
	return &a, nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, method, target string, payload []byte) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			if err := c.wait(ctx, i); err != nil {
				return nil, err
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set(CSRFHeader, c.csrfToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Warn("Dashboard request %s %s failed (attempt %d/%d): %v", method, target, i+1, c.maxRetries, err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		if resp.StatusCode < 500 {
			return nil, httpErr
		}
		lastErr = httpErr
		logger.Warn("Dashboard request %s %s returned %d (attempt %d/%d)", method, target, resp.StatusCode, i+1, c.maxRetries)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(c.retryDelayBase * time.Duration(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsNotFound reports whether err is a 404 from the dashboard.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
