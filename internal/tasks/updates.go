package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	DeliverPush Phase = iota
	PruneSubscriptions
	FindUsers
	SendReminders
	ExportJournal
)

func (p Phase) String() string {
	switch p {
	case DeliverPush:
		return "deliver_push"
	case PruneSubscriptions:
		return "prune_subscriptions"
	case FindUsers:
		return "find_users"
	case SendReminders:
		return "send_reminders"
	case ExportJournal:
		return "export_journal"
	default:
		return ""
	}
}

func deliveryStartedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DeliverPush,
		Total:   total,
		Message: fmt.Sprintf("Delivering to %d subscriptions...", total),
	}
}

func deliveryUpdate(step, total int, res DeliveryResult) ProgressUpdate {
	mark := "✓"
	if !res.Sent {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   DeliverPush,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, res.Host),
		Data:    res,
	}
}

func prunedUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PruneSubscriptions,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Removed expired subscription %s", id),
	}
}

func foundUsersUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FindUsers,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d users without an entry today", count),
	}
}

func reminderUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SendReminders,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reminding %s", step, total, name),
	}
}

func exportingUpdate(step, total int, userID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportJournal,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, userID),
	}
}

func exportCompletedUpdate(step, total int, res ExportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportJournal,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d entries)", step, total, res.Name, res.Entries),
		Data:    res,
	}
}

func exportFailedUpdate(step, total int, res ExportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportJournal,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.UserID, res.Error),
		Data:    res,
	}
}
