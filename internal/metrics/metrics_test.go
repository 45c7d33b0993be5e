package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/api/search", "/api/search"},
		{"/api/tracks/12345/stream", "/api/tracks/:id/stream"},
		{"/api/playlists/abc-def/tags", "/api/playlists/:id/tags"},
		{"/auth/soundcloud/callback", "/auth/soundcloud/callback"},
		{"/icons/icon-192.png", "/icons"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CanonicalPath(tt.in); got != tt.want {
				t.Errorf("CanonicalPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInstrumentHandler(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tracks/1/stream", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status to pass through, got %d", rec.Code)
	}

	RecordRateLimited("search")
	RecordPush("sent")
	RecordMail("", true)

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`moodtape_http_requests_total{method="GET",path="/api/tracks/:id/stream",status="418"}`,
		`moodtape_ratelimit_denied_total{bucket="search"}`,
		`moodtape_push_deliveries_total{outcome="sent"}`,
		`moodtape_mail_deliveries_total{mailer="unknown",success="true"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected metrics output to contain %s", want)
		}
	}
}
