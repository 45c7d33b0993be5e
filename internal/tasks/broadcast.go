package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/push"
	"github.com/desertthunder/moodtape/internal/shared"
	"golang.org/x/time/rate"
)

// BroadcastOpts contains configuration for push fan-out.
type BroadcastOpts struct {
	NumWorkers int     // Concurrent deliveries (default: 5, max: 10)
	RateLimit  float64 // Deliveries per second across all workers (default: 20)
}

// DeliveryResult is the outcome of delivering to one subscription.
type DeliveryResult struct {
	SubscriptionID string
	UserID         string
	Host           string
	Sent           bool
	Gone           bool
	Error          error
}

// BroadcastResult summarizes a broadcast.
type BroadcastResult struct {
	Total   int
	Sent    int
	Failed  int
	Pruned  int
	Results []DeliveryResult
}

// PushBroadcaster delivers a notification to many subscriptions.
type PushBroadcaster struct {
	sender push.Sender
	store  SubscriptionStore
	opts   BroadcastOpts
	logger *log.Logger
}

// NewPushBroadcaster creates a broadcaster. store may be nil, in which case gone subscriptions are
// reported but kept.
func NewPushBroadcaster(sender push.Sender, store SubscriptionStore, opts BroadcastOpts, logger *log.Logger) *PushBroadcaster {
	opts.NumWorkers = clampWorkers(opts.NumWorkers)
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PushBroadcaster{sender: sender, store: store, opts: opts, logger: shared.WithLogger(logger, "task", "broadcast")}
}

type deliveryJob struct {
	sub *models.PushSubscription
}

// Broadcast sends n to every subscription in subs.
//
// Deliveries are paced by a shared rate limiter and spread over a worker pool. Failures are recorded
// per subscription rather than aborting the broadcast. A cancelled context stops handing out work and
// returns the partial result with the context's error.
func (b *PushBroadcaster) Broadcast(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	subs []*models.PushSubscription,
	n push.Notification,
) (*BroadcastResult, error) {
	if b.sender == nil {
		return nil, fmt.Errorf("%w: push sender not initialized", shared.ErrServiceUnavailable)
	}

	payload, err := n.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}

	result := &BroadcastResult{Total: len(subs), Results: make([]DeliveryResult, 0, len(subs))}
	if len(subs) == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(rate.Limit(b.opts.RateLimit), 1)
	jobs := make(chan deliveryJob, len(subs))
	results := make(chan DeliveryResult, len(subs))

	var wg sync.WaitGroup
	for range b.opts.NumWorkers {
		wg.Add(1)
		go b.deliveryWorker(ctx, &wg, jobs, results, payload)
	}

	go func() {
		defer close(jobs)
		sendProgress(progress, deliveryStartedUpdate(len(subs)))
		for _, sub := range subs {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- deliveryJob{sub: sub}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Gone {
			b.prune(progress, res, result)
		}
		if res.Sent {
			result.Sent++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, res)
		sendProgress(progress, deliveryUpdate(completed, len(subs), res))
	}

	b.logger.Info("broadcast finished", "total", result.Total, "sent", result.Sent, "failed", result.Failed,
		"pruned", result.Pruned)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (b *PushBroadcaster) deliveryWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan deliveryJob,
	results chan<- DeliveryResult,
	payload []byte,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res := DeliveryResult{SubscriptionID: job.sub.ID(), UserID: job.sub.UserID, Host: host(job.sub.Endpoint)}
		if err := b.sender.Send(ctx, job.sub, payload); err != nil {
			res.Error = err
			res.Gone = errors.Is(err, shared.ErrSubscriptionGone)
		} else {
			res.Sent = true
		}
		results <- res
	}
}

func (b *PushBroadcaster) prune(progress chan<- ProgressUpdate, res DeliveryResult, result *BroadcastResult) {
	if b.store == nil {
		return
	}
	if err := b.store.Delete(res.SubscriptionID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		b.logger.Error("failed to prune subscription", "subscription_id", res.SubscriptionID, "error", err)
		return
	}
	result.Pruned++
	sendProgress(progress, prunedUpdate(result.Pruned, result.Total, res.SubscriptionID))
}

// BroadcastToUser sends n to every subscription belonging to userID.
func (b *PushBroadcaster) BroadcastToUser(ctx context.Context, progress chan<- ProgressUpdate, userID string, n push.Notification) (*BroadcastResult, error) {
	return b.broadcastMatching(ctx, progress, map[string]any{"user_id": userID}, n)
}

// BroadcastAll sends n to every stored subscription.
func (b *PushBroadcaster) BroadcastAll(ctx context.Context, progress chan<- ProgressUpdate, n push.Notification) (*BroadcastResult, error) {
	return b.broadcastMatching(ctx, progress, nil, n)
}

func (b *PushBroadcaster) broadcastMatching(ctx context.Context, progress chan<- ProgressUpdate, criteria map[string]any, n push.Notification) (*BroadcastResult, error) {
	if b.store == nil {
		return nil, fmt.Errorf("%w: subscription store not initialized", shared.ErrServiceUnavailable)
	}
	subs, err := b.store.List(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return b.Broadcast(ctx, progress, subs, n)
}

func host(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}
