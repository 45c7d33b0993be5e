// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
	"golang.org/x/oauth2"
)

// MockCatalog is a test double for [services.Catalog] that serves a fixed set of tracks.
type MockCatalog struct {
	mu       sync.Mutex
	Tracks   []models.Track
	Stream   string
	Waves    models.Waveform
	Err      error
	Resolved []string
}

func (m *MockCatalog) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Track
	for _, t := range m.Tracks {
		if strings.Contains(strings.ToLower(t.Title), strings.ToLower(query)) {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockCatalog) Track(ctx context.Context, id string) (*models.Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, t := range m.Tracks {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, shared.ErrTrackNotFound
}

func (m *MockCatalog) StreamURL(ctx context.Context, id string) (string, error) {
	if _, err := m.Track(ctx, id); err != nil {
		return "", err
	}
	return m.Stream, nil
}

// Resolve records the URL and matches it against each track's permalink.
func (m *MockCatalog) Resolve(ctx context.Context, url string) (*models.Track, error) {
	m.mu.Lock()
	m.Resolved = append(m.Resolved, url)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	for _, t := range m.Tracks {
		if t.PermalinkURL == url {
			return &t, nil
		}
	}
	return nil, shared.ErrTrackNotFound
}

func (m *MockCatalog) Waveform(ctx context.Context, waveformURL string) (*models.Waveform, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	w := m.Waves
	return &w, nil
}

// ResolvedURLs returns a copy of every URL passed to Resolve.
func (m *MockCatalog) ResolvedURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Resolved...)
}

// MockIdentityProvider is a test double for [services.IdentityProvider]. Exchange accepts only Code.
type MockIdentityProvider struct {
	Code        string
	Profile     models.Identity
	ExchangeErr error
	IdentityErr error

	mu        sync.Mutex
	verifiers []string
}

func (m *MockIdentityProvider) Name() string { return "soundcloud" }

func (m *MockIdentityProvider) AuthCodeURL(state, verifier string) string {
	return "https://secure.soundcloud.com/authorize?state=" + state + "&code_challenge=" + oauth2.S256ChallengeFromVerifier(verifier)
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	m.mu.Lock()
	m.verifiers = append(m.verifiers, verifier)
	m.mu.Unlock()

	if m.ExchangeErr != nil {
		return nil, m.ExchangeErr
	}
	if code != m.Code {
		return nil, shared.ErrAuthFailed
	}
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code}, nil
}

func (m *MockIdentityProvider) Identity(ctx context.Context, token *oauth2.Token) (*models.Identity, error) {
	if m.IdentityErr != nil {
		return nil, m.IdentityErr
	}
	id := m.Profile
	id.Provider = m.Name()
	return &id, nil
}

// Verifiers returns the PKCE verifiers passed to Exchange.
func (m *MockIdentityProvider) Verifiers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.verifiers...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
