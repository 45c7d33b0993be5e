package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/moodtape/internal/shared"
	tu "github.com/desertthunder/moodtape/internal/testing"
)

func newTestAPIClient(baseURL string) *APIClient {
	client := NewAPIClient(baseURL, nil)
	client.client.RetryMax = 0
	return client
}

func TestAPIClient(t *testing.T) {
	t.Run("New trims trailing slash", func(t *testing.T) {
		client := NewAPIClient("https://api.example.com/", nil)
		if client.baseURL != "https://api.example.com" {
			t.Errorf("expected trimmed base URL, got %s", client.baseURL)
		}
		if client.client.RetryMax != 3 {
			t.Errorf("expected 3 retries, got %d", client.client.RetryMax)
		}
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("JSON response with query and token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.URL.Path != "/tracks" {
					t.Errorf("expected path '/tracks', got %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("q"); got != "lo fi" {
					t.Errorf("expected q 'lo fi', got %q", got)
				}
				if got := r.Header.Get("Authorization"); got != "OAuth secret" {
					t.Errorf("expected OAuth authorization header, got %q", got)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"status":"success"}`))
			}))
			defer server.Close()

			resp, err := newTestAPIClient(server.URL).Get(context.Background(), "/tracks", url.Values{"q": {"lo fi"}}, "secret")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.IsJSON() {
				t.Error("expected response to be JSON")
			}
			if got := resp.JSON().Get("status").String(); got != "success" {
				t.Errorf("expected status success, got %q", got)
			}
			if err := resp.Err(); err != nil {
				t.Errorf("expected no status error, got %v", err)
			}
		})

		t.Run("Non-JSON response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("plain text"))
			}))
			defer server.Close()

			resp, err := newTestAPIClient(server.URL).Get(context.Background(), "/text", nil, "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON() {
				t.Error("expected response not to be JSON")
			}
			if string(resp.Body) != "plain text" {
				t.Errorf("unexpected body %q", resp.Body)
			}
		})

		t.Run("Absolute URL bypasses base", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "" {
					t.Error("expected no authorization header without a token")
				}
				w.Write([]byte(`{}`))
			}))
			defer server.Close()

			resp, err := newTestAPIClient("https://unused.invalid").Get(context.Background(), server.URL+"/wave.json", nil, "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200, got %d", resp.StatusCode)
			}
		})

		t.Run("Transport error", func(t *testing.T) {
			client := newTestAPIClient("https://api.example.com")
			client.client.HTTPClient.Transport = tu.NewMockRoundTripper(nil, errors.New("connection refused"))

			_, err := client.Get(context.Background(), "/me", nil, "")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Body read error", func(t *testing.T) {
			client := newTestAPIClient("https://api.example.com")
			client.client.HTTPClient.Transport = tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{},
				Body:       &tu.FCloser{},
			}, nil)

			if _, err := client.Get(context.Background(), "/me", nil, ""); err == nil {
				t.Error("expected read error")
			}
		})

		t.Run("Retries server errors", func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer server.Close()

			client := NewAPIClient(server.URL, nil)
			client.client.RetryMax = 2
			client.client.RetryWaitMin = time.Millisecond
			client.client.RetryWaitMax = time.Millisecond

			resp, err := client.Get(context.Background(), "/tracks", nil, "")
			if err != nil {
				t.Fatalf("expected final response to pass through, got %v", err)
			}
			if hits.Load() != 3 {
				t.Errorf("expected 3 attempts, got %d", hits.Load())
			}
			if !errors.Is(resp.Err(), shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", resp.Err())
			}
		})
	})
}

func TestAPIResponseErr(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusOK, nil},
		{http.StatusCreated, nil},
		{http.StatusUnauthorized, shared.ErrNotAuthenticated},
		{http.StatusForbidden, shared.ErrNotAuthenticated},
		{http.StatusNotFound, shared.ErrNotFound},
		{http.StatusTooManyRequests, shared.ErrRateLimited},
		{http.StatusBadGateway, shared.ErrServiceUnavailable},
		{http.StatusBadRequest, shared.ErrAPIRequest},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := (&APIResponse{StatusCode: tt.status, Body: []byte("oops")}).Err()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
