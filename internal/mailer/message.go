package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/desertthunder/moodtape/internal/shared"
)

// Deliverer sends a composed [Message].
type Deliverer interface {
	Deliver(ctx context.Context, msg *Message) error
}

// Message is a composed email.
type Message struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	HTMLBody    string
	TextBody    string
	Headers     map[string]string
	Attachments []Attachment
}

// Attachment is a file sent with a [Message].
type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

// Validate requires a parseable sender, at least one recipient and a subject.
func (m *Message) Validate() error {
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("%w: invalid from address %q", shared.ErrInvalidInput, m.From)
	}
	if len(m.To) == 0 {
		return fmt.Errorf("%w: no recipients", shared.ErrInvalidInput)
	}
	for _, addr := range append(append(append([]string{}, m.To...), m.Cc...), m.Bcc...) {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("%w: invalid recipient %q", shared.ErrInvalidInput, addr)
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", shared.ErrInvalidInput)
	}
	return nil
}
