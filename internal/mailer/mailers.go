package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/metrics"
	"github.com/desertthunder/moodtape/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl"))
)

// Mailer composes moodtape's transactional emails and hands them to a [Deliverer].
type Mailer struct {
	From      string
	BaseURL   string
	deliverer Deliverer
	logger    *log.Logger
}

// New creates a [Mailer] sending from from with links rooted at baseURL.
func New(deliverer Deliverer, from, baseURL string, logger *log.Logger) *Mailer {
	return &Mailer{
		From:      from,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		deliverer: deliverer,
		logger:    logger,
	}
}

type viewData struct {
	Name         string
	BaseURL      string
	Date         string
	TotalEntries int
}

// WelcomeMail composes the message sent after a user's first sign-in.
func (m *Mailer) WelcomeMail(user *models.User) (*Message, error) {
	data := viewData{Name: user.Name, BaseURL: m.BaseURL}
	return m.compose("welcome", user, "Welcome to moodtape", data, map[string]string{"X-Entity-Ref-ID": "welcome-" + user.ID()})
}

// ReminderMail composes the daily nudge for a user who hasn't logged on date. total is the
// user's lifetime entry count and is omitted from the body when zero.
func (m *Mailer) ReminderMail(user *models.User, date time.Time, total int) (*Message, error) {
	data := viewData{Name: user.Name, BaseURL: m.BaseURL, Date: date.Format("Monday, January 2"), TotalEntries: total}
	headers := map[string]string{
		"List-Unsubscribe": "<" + m.BaseURL + "/settings>",
		"X-Entity-Ref-ID":  "reminder-" + user.ID() + "-" + date.Format("2006-01-02"),
	}
	return m.compose("reminder", user, "How did today sound?", data, headers)
}

// Send delivers msg, recording the outcome under name.
func (m *Mailer) Send(ctx context.Context, name string, msg *Message) error {
	err := m.deliverer.Deliver(ctx, msg)
	metrics.RecordMail(name, err == nil)
	if err != nil {
		if m.logger != nil {
			m.logger.Error("email delivery failed", "mailer", name, "to", strings.Join(msg.To, ","), "error", err)
		}
		return err
	}
	if m.logger != nil {
		m.logger.Info("email sent", "mailer", name, "to", strings.Join(msg.To, ","))
	}
	return nil
}

func (m *Mailer) compose(name string, user *models.User, subject string, data viewData, headers map[string]string) (*Message, error) {
	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html.tmpl", data); err != nil {
		return nil, fmt.Errorf("failed to render %s html: %w", name, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, name+".txt.tmpl", data); err != nil {
		return nil, fmt.Errorf("failed to render %s text: %w", name, err)
	}

	return &Message{
		From:     m.From,
		To:       []string{user.Email},
		Subject:  subject,
		HTMLBody: html.String(),
		TextBody: text.String(),
		Headers:  headers,
	}, nil
}
