package tasks

import (
	"github.com/desertthunder/moodtape/internal/models"
)

const (
	defaultWorkers = 5
	maxWorkers     = 10
)

// SubscriptionStore is the part of the push subscription repository the broadcaster needs.
type SubscriptionStore interface {
	List(criteria map[string]any) ([]*models.PushSubscription, error)
	Delete(id string) error
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func clampWorkers(n int) int {
	if n <= 0 {
		return defaultWorkers
	}
	return min(n, maxWorkers)
}
