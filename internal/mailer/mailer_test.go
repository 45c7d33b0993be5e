package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
)

func newTestResend(t *testing.T, handler http.HandlerFunc) *ResendDelivery {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	d, err := NewResendDelivery("re_test_key", nil)
	if err != nil {
		t.Fatalf("failed to create delivery: %v", err)
	}
	d.endpoint = server.URL + "/emails"
	return d
}

func testMessage() *Message {
	return &Message{
		From:     "moodtape <hello@moodtape.app>",
		To:       []string{"ada@example.com"},
		Subject:  "Hello",
		HTMLBody: "<p>Hi</p>",
		TextBody: "Hi",
	}
}

func TestBuildPayload(t *testing.T) {
	t.Run("prefers html", func(t *testing.T) {
		p := buildPayload(testMessage())
		if p.HTML != "<p>Hi</p>" || p.Text != "" {
			t.Errorf("expected html only, got html=%q text=%q", p.HTML, p.Text)
		}
	})

	t.Run("falls back to text", func(t *testing.T) {
		msg := testMessage()
		msg.HTMLBody = ""
		p := buildPayload(msg)
		if p.HTML != "" || p.Text != "Hi" {
			t.Errorf("expected text only, got html=%q text=%q", p.HTML, p.Text)
		}
	})

	t.Run("filters envelope headers", func(t *testing.T) {
		msg := testMessage()
		msg.Headers = map[string]string{
			"X-Entity-Ref-ID":           "abc",
			"list-unsubscribe":          "<https://moodtape.app/settings>",
			"From":                      "spoof@example.com",
			"reply-to":                  "x@example.com",
			"MIME-Version":              "1.0",
			"Message-ID":                "<id@example.com>",
			"content-transfer-encoding": "base64",
		}

		p := buildPayload(msg)
		if len(p.Headers) != 2 {
			t.Fatalf("expected 2 custom headers, got %v", p.Headers)
		}
		if p.Headers["X-Entity-Ref-Id"] != "abc" || p.Headers["List-Unsubscribe"] == "" {
			t.Errorf("unexpected headers %v", p.Headers)
		}
	})

	t.Run("no headers omits field", func(t *testing.T) {
		body, err := json.Marshal(buildPayload(testMessage()))
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		for _, key := range []string{`"headers"`, `"attachments"`, `"cc"`, `"bcc"`, `"text"`} {
			if strings.Contains(string(body), key) {
				t.Errorf("expected %s to be omitted from %s", key, body)
			}
		}
	})

	t.Run("encodes attachments", func(t *testing.T) {
		msg := testMessage()
		msg.Attachments = []Attachment{{Filename: "log.csv", Content: []byte("a,b\n"), ContentType: "text/csv"}}

		p := buildPayload(msg)
		if len(p.Attachments) != 1 {
			t.Fatalf("expected 1 attachment, got %d", len(p.Attachments))
		}
		a := p.Attachments[0]
		if a.Filename != "log.csv" || a.Content != "YSxiCg==" || a.Type != "text/csv" {
			t.Errorf("unexpected attachment %+v", a)
		}
	})
}

func TestResendDelivery(t *testing.T) {
	t.Run("NewResendDelivery requires key", func(t *testing.T) {
		if _, err := NewResendDelivery(" ", nil); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("posts payload", func(t *testing.T) {
		d := newTestResend(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/emails" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer re_test_key" {
				t.Errorf("unexpected authorization %q", got)
			}

			var p map[string]any
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				t.Errorf("failed to decode body: %v", err)
				return
			}
			if p["from"] != "moodtape <hello@moodtape.app>" || p["subject"] != "Hello" {
				t.Errorf("unexpected payload %v", p)
			}
			if to, _ := p["to"].([]any); len(to) != 1 || to[0] != "ada@example.com" {
				t.Errorf("unexpected recipients %v", p["to"])
			}
			if _, ok := p["cc"]; !ok {
				t.Error("expected cc to be present")
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
		})

		msg := testMessage()
		msg.Cc = []string{"grace@example.com"}
		if err := d.Deliver(context.Background(), msg); err != nil {
			t.Fatalf("Deliver failed: %v", err)
		}
	})

	t.Run("non-2xx is an error without retry", func(t *testing.T) {
		var hits atomic.Int32
		d := newTestResend(t, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"name":"validation_error","message":"Invalid from"}`))
		})

		err := d.Deliver(context.Background(), testMessage())
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if !strings.Contains(err.Error(), "validation_error") {
			t.Errorf("expected response body in error, got %v", err)
		}
		if hits.Load() != 1 {
			t.Errorf("expected a single attempt, got %d", hits.Load())
		}
	})

	t.Run("invalid message is rejected before sending", func(t *testing.T) {
		d := newTestResend(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("request should not be sent")
		})

		msg := testMessage()
		msg.To = nil
		if err := d.Deliver(context.Background(), msg); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		d := newTestResend(t, func(w http.ResponseWriter, r *http.Request) {})
		d.endpoint = "http://127.0.0.1:1/emails"

		if err := d.Deliver(context.Background(), testMessage()); !errors.Is(err, shared.ErrDeliveryFailed) {
			t.Errorf("expected ErrDeliveryFailed, got %v", err)
		}
	})
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Message)
	}{
		{"bad from", func(m *Message) { m.From = "nobody" }},
		{"no recipients", func(m *Message) { m.To = nil }},
		{"bad bcc", func(m *Message) { m.Bcc = []string{"not an address"} }},
		{"no subject", func(m *Message) { m.Subject = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testMessage()
			tt.modify(msg)
			if err := msg.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestMailers(t *testing.T) {
	user := models.NewUser(1, "ada@example.com", "Ada <Lovelace>")
	user.SetID("user-1")

	recorder := NewRecordingDeliverer(nil)
	m := New(recorder, "moodtape <hello@moodtape.app>", "https://moodtape.app/", nil)

	t.Run("WelcomeMail", func(t *testing.T) {
		msg, err := m.WelcomeMail(user)
		if err != nil {
			t.Fatalf("WelcomeMail failed: %v", err)
		}
		if msg.To[0] != "ada@example.com" || msg.Subject != "Welcome to moodtape" {
			t.Errorf("unexpected message %+v", msg)
		}
		if !strings.Contains(msg.HTMLBody, "Ada &lt;Lovelace&gt;") {
			t.Errorf("expected escaped name in html body:\n%s", msg.HTMLBody)
		}
		if !strings.Contains(msg.TextBody, "Ada <Lovelace>") {
			t.Errorf("expected raw name in text body:\n%s", msg.TextBody)
		}
		if !strings.Contains(msg.TextBody, "https://moodtape.app/") {
			t.Errorf("expected base URL in text body:\n%s", msg.TextBody)
		}
	})

	t.Run("ReminderMail", func(t *testing.T) {
		date := time.Date(2026, 10, 15, 21, 0, 0, 0, time.UTC)

		msg, err := m.ReminderMail(user, date, 12)
		if err != nil {
			t.Fatalf("ReminderMail failed: %v", err)
		}
		if !strings.Contains(msg.TextBody, "Thursday, October 15") {
			t.Errorf("expected formatted date:\n%s", msg.TextBody)
		}
		if !strings.Contains(msg.TextBody, "logged 12 entries so far") {
			t.Errorf("expected entry count:\n%s", msg.TextBody)
		}
		if !strings.Contains(msg.HTMLBody, "logged 12 entries so far") {
			t.Errorf("expected entry count in html:\n%s", msg.HTMLBody)
		}
		if msg.Headers["List-Unsubscribe"] != "<https://moodtape.app/settings>" {
			t.Errorf("unexpected headers %v", msg.Headers)
		}

		first, err := m.ReminderMail(user, date, 0)
		if err != nil {
			t.Fatalf("ReminderMail failed: %v", err)
		}
		if strings.Contains(first.TextBody, "entries so far") {
			t.Errorf("expected no count for a new user:\n%s", first.TextBody)
		}
	})

	t.Run("Send records delivery", func(t *testing.T) {
		msg, _ := m.WelcomeMail(user)
		if err := m.Send(context.Background(), "welcome", msg); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if got := recorder.Messages(); len(got) != 1 || got[0] != msg {
			t.Errorf("expected message to be recorded, got %v", got)
		}
	})
}

func TestNewDeliverer(t *testing.T) {
	if _, ok := NewDeliverer("", nil).(*RecordingDeliverer); !ok {
		t.Error("expected recording deliverer without an api key")
	}
	if _, ok := NewDeliverer("re_key", nil).(*ResendDelivery); !ok {
		t.Error("expected resend deliverer with an api key")
	}
}

