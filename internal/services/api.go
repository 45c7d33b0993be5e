// Raw JSON transport shared by API clients
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

const maxResponseBytes = 4 << 20

// APIClient performs JSON GET requests against an HTTP API, retrying transient failures.
type APIClient struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewAPIClient creates an [APIClient] rooted at baseURL. Retry attempts are logged at debug level
// when logger is non-nil.
func NewAPIClient(baseURL string, logger *log.Logger) *APIClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 4 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = nil
	if logger != nil {
		client.Logger = leveledLogger{logger}
	}

	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// IsJSON reports whether the body is a valid JSON document.
func (r *APIResponse) IsJSON() bool {
	return gjson.ValidBytes(r.Body)
}

// JSON parses the body for path lookups.
func (r *APIResponse) JSON() gjson.Result {
	return gjson.ParseBytes(r.Body)
}

// Err maps a non-2xx status to a sentinel error.
func (r *APIResponse) Err() error {
	switch code := r.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrNotAuthenticated, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", shared.ErrNotFound, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", shared.ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, code)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, code, snippet(r.Body))
	}
}

// Get performs a GET request. path is joined to the base URL unless it is already absolute.
// A non-empty token is sent in the Authorization header.
func (a *APIClient) Get(ctx context.Context, path string, query url.Values, token string) (*APIResponse, error) {
	fullURL := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		fullURL = a.baseURL + path
	}
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json; charset=utf-8")
	if token != "" {
		req.Header.Set("Authorization", "OAuth "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// leveledLogger adapts charmbracelet/log to retryablehttp's LeveledLogger.
type leveledLogger struct {
	l *log.Logger
}

func (l leveledLogger) Error(msg string, kv ...any) { l.l.Error(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.l.Debug(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.l.Debug(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.l.Warn(msg, kv...) }
