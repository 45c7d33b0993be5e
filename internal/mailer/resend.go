package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/shared"
)

const (
	resendEndpoint = "https://api.resend.com/emails"
	userAgent      = "moodtape/0.1"
)

// envelopeHeaders are derived from payload fields and never copied into headers.
var envelopeHeaders = map[string]bool{
	"From":                      true,
	"To":                        true,
	"Cc":                        true,
	"Bcc":                       true,
	"Subject":                   true,
	"Reply-To":                  true,
	"Content-Type":              true,
	"Mime-Version":              true,
	"Date":                      true,
	"Message-Id":                true,
	"Content-Transfer-Encoding": true,
}

type resendPayload struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Cc          []string           `json:"cc,omitempty"`
	Bcc         []string           `json:"bcc,omitempty"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html,omitempty"`
	Text        string             `json:"text,omitempty"`
	Headers     map[string]string  `json:"headers,omitempty"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

type resendAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Type     string `json:"type,omitempty"`
}

// ResendDelivery delivers messages through the Resend HTTP API.
type ResendDelivery struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

// NewResendDelivery creates a [ResendDelivery] authenticated with apiKey.
func NewResendDelivery(apiKey string, logger *log.Logger) (*ResendDelivery, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: resend api key", shared.ErrMissingCredentials)
	}
	return &ResendDelivery{
		apiKey:   apiKey,
		endpoint: resendEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}, nil
}

// Deliver posts msg to Resend. Any non-2xx status is returned as an error wrapping [shared.ErrAPIRequest].
func (d *ResendDelivery) Deliver(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(buildPayload(msg))
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: resend returned %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if d.logger != nil {
		var result struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(respBody, &result)
		d.logger.Debug("email delivered", "id", result.ID, "to", strings.Join(msg.To, ","), "subject", msg.Subject)
	}
	return nil
}

func buildPayload(msg *Message) resendPayload {
	p := resendPayload{
		From:    msg.From,
		To:      msg.To,
		Cc:      msg.Cc,
		Bcc:     msg.Bcc,
		Subject: msg.Subject,
	}

	if msg.HTMLBody != "" {
		p.HTML = msg.HTMLBody
	} else {
		p.Text = msg.TextBody
	}

	for name, value := range msg.Headers {
		key := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
		if key == "" || envelopeHeaders[key] {
			continue
		}
		if p.Headers == nil {
			p.Headers = make(map[string]string)
		}
		p.Headers[key] = value
	}

	for _, a := range msg.Attachments {
		p.Attachments = append(p.Attachments, resendAttachment{
			Filename: a.Filename,
			Content:  base64.StdEncoding.EncodeToString(a.Content),
			Type:     a.ContentType,
		})
	}
	return p
}
