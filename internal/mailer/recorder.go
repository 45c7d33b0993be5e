package mailer

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// RecordingDeliverer keeps delivered messages in memory and logs them instead of sending.
type RecordingDeliverer struct {
	mu       sync.Mutex
	messages []*Message
	logger   *log.Logger
}

// NewRecordingDeliverer creates a [RecordingDeliverer]. logger may be nil.
func NewRecordingDeliverer(logger *log.Logger) *RecordingDeliverer {
	return &RecordingDeliverer{logger: logger}
}

func (r *RecordingDeliverer) Deliver(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info("email recorded", "to", strings.Join(msg.To, ","), "subject", msg.Subject)
	}
	return nil
}

// Messages returns a snapshot of the recorded messages in delivery order.
func (r *RecordingDeliverer) Messages() []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Message(nil), r.messages...)
}

// NewDeliverer returns a Resend deliverer when apiKey is set, and a [RecordingDeliverer] that only
// logs otherwise.
func NewDeliverer(apiKey string, logger *log.Logger) Deliverer {
	if strings.TrimSpace(apiKey) == "" {
		return NewRecordingDeliverer(logger)
	}

	d, err := NewResendDelivery(apiKey, logger)
	if err != nil {
		return NewRecordingDeliverer(logger)
	}
	return d
}
