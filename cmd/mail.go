package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/moodtape/internal/mailer"
	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// MailTest composes a welcome or reminder email for --to and sends it through the configured deliverer.
func (r *Runner) MailTest(ctx context.Context, cmd *cli.Command) error {
	user := models.NewUser(0, strings.TrimSpace(cmd.String("to")), cmd.String("name"))
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	m := r.mailer()
	kind := cmd.String("kind")

	var (
		msg *mailer.Message
		err error
	)
	switch kind {
	case "welcome":
		msg, err = m.WelcomeMail(user)
	case "reminder":
		msg, err = m.ReminderMail(user, time.Now(), 0)
	default:
		return fmt.Errorf("%w: unknown mail kind %q (want welcome or reminder)", shared.ErrInvalidArgument, kind)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("dry-run") {
		r.writePlainHeader(msg.Subject)
		r.writePlain("From: %s\nTo: %s\n\n%s\n", msg.From, strings.Join(msg.To, ", "), msg.TextBody)
		return nil
	}

	if err := m.Send(ctx, kind, msg); err != nil {
		return err
	}

	if _, ok := r.deliverer.(*mailer.RecordingDeliverer); ok {
		r.writePlain("! No Resend API key set (%s); the message was only logged\n", shared.EnvResendAPIKey)
		return nil
	}
	r.writePlain("✓ Sent %s email to %s\n", kind, user.Email)
	return nil
}
