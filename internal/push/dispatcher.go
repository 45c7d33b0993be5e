package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/metrics"
	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
)

// Sender delivers a payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error
}

// NewSender returns a VAPID [Dispatcher] when keys are configured, and a sender that drops every
// payload otherwise.
func NewSender(cfg shared.PushConfig, logger *log.Logger) Sender {
	d, err := NewDispatcher(cfg, logger)
	if err != nil {
		if logger != nil {
			logger.Warn("push disabled", "reason", err)
		}
		return noopSender{}
	}
	return d
}

// Dispatcher signs and encrypts payloads with webpush-go.
type Dispatcher struct {
	options  webpush.Options
	defaults Defaults
	logger   *log.Logger
}

// NewDispatcher creates a [Dispatcher] from the push configuration.
func NewDispatcher(cfg shared.PushConfig, logger *log.Logger) (*Dispatcher, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("%w: vapid key pair", shared.ErrMissingCredentials)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60
	}

	defaults := StandardDefaults
	if cfg.Icon != "" {
		defaults.Icon = cfg.Icon
	}
	if cfg.Badge != "" {
		defaults.Badge = cfg.Badge
	}
	if cfg.Tag != "" {
		defaults.Tag = cfg.Tag
	}

	return &Dispatcher{
		options: webpush.Options{
			HTTPClient:      &http.Client{Timeout: 10 * time.Second},
			Subscriber:      cfg.Subscriber,
			TTL:             ttl,
			Urgency:         webpush.UrgencyNormal,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		},
		defaults: defaults,
		logger:   logger,
	}, nil
}

// PublicKey returns the VAPID application server key browsers subscribe with.
func (d *Dispatcher) PublicKey() string {
	return d.options.VAPIDPublicKey
}

// Defaults returns the notification defaults forced onto every payload.
func (d *Dispatcher) Defaults() Defaults {
	return d.defaults
}

// Send normalizes payload with [Defaults.Parse] and delivers it. A 404 or 410 from the push
// service returns [shared.ErrSubscriptionGone]; callers should delete the subscription.
func (d *Dispatcher) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error {
	body, err := d.defaults.Parse(payload).Encode()
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}

	opts := d.options
	resp, err := webpush.SendNotificationWithContext(ctx, body, target, &opts)
	if err != nil {
		metrics.RecordPush("failed")
		return fmt.Errorf("%w: %v", shared.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.RecordPush("sent")
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		metrics.RecordPush("gone")
		return fmt.Errorf("%w: %s returned %d", shared.ErrSubscriptionGone, endpointHost(sub.Endpoint), resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RecordPush("failed")
		return fmt.Errorf("%w: push service throttled", shared.ErrRateLimited)
	default:
		metrics.RecordPush("failed")
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: push service returned %d: %s", shared.ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

// GenerateKeys creates a new VAPID key pair.
func GenerateKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate vapid keys: %w", err)
	}
	return publicKey, privateKey, nil
}

// endpointHost keeps the per-subscription token out of error messages.
func endpointHost(endpoint string) string {
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	host, _, _ := strings.Cut(endpoint, "/")
	return host
}

type noopSender struct{}

func (noopSender) Send(context.Context, *models.PushSubscription, []byte) error { return nil }
