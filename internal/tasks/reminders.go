package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/mailer"
	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/push"
	"github.com/desertthunder/moodtape/internal/repositories"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/robfig/cron/v3"
)

// DefaultReminderSchedule runs the reminder every evening at 21:00.
const DefaultReminderSchedule = "0 21 * * *"

// ReminderLogs is the part of the emotion log repository reminders read from.
type ReminderLogs interface {
	UsersWithoutLogSince(since time.Time) ([]*models.User, error)
	CountByEmotion(userID string) (map[models.Emotion]int, error)
}

// ReminderResult summarizes one reminder run.
type ReminderResult struct {
	Users      int
	Pushed     int
	Pruned     int
	Mailed     int
	MailFailed int
}

// Reminders nudges users who haven't logged an emotion today, by push and by mail.
type Reminders struct {
	schedule    string
	logs        ReminderLogs
	subs        SubscriptionStore
	broadcaster *PushBroadcaster
	mailer      *mailer.Mailer
	logger      *log.Logger
	location    *time.Location
	now         func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReminders validates schedule (standard five-field cron syntax) and builds the job. broadcaster or
// mail may be nil to skip that channel.
func NewReminders(
	schedule string,
	logs ReminderLogs,
	subs SubscriptionStore,
	broadcaster *PushBroadcaster,
	mail *mailer.Mailer,
	logger *log.Logger,
) (*Reminders, error) {
	if schedule == "" {
		schedule = DefaultReminderSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("%w: reminder schedule %q: %v", shared.ErrInvalidConfig, schedule, err)
	}
	if logs == nil {
		return nil, fmt.Errorf("%w: reminders need the emotion log repository", shared.ErrMissingConfig)
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Reminders{
		schedule:    schedule,
		logs:        logs,
		subs:        subs,
		broadcaster: broadcaster,
		mailer:      mail,
		logger:      shared.WithLogger(logger, "task", "reminders"),
		location:    time.Local,
		now:         time.Now,
	}, nil
}

// Start runs the reminder on schedule until ctx is cancelled or Stop is called.
func (r *Reminders) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return fmt.Errorf("reminders already started")
	}

	c := cron.New(cron.WithLocation(r.location), cron.WithLogger(cronLogger{r.logger}))
	if _, err := c.AddFunc(r.schedule, func() { r.run(ctx) }); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	c.Start()
	r.cron = c

	r.logger.Info("reminders scheduled", "schedule", r.schedule, "next", r.next(c))

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running reminder to finish.
func (r *Reminders) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// Next returns when the reminder will next run, or the zero time when stopped.
func (r *Reminders) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil {
		return time.Time{}
	}
	return r.next(r.cron)
}

func (r *Reminders) next(c *cron.Cron) time.Time {
	entries := c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (r *Reminders) run(ctx context.Context) {
	res, err := r.RunOnce(ctx, nil)
	if err != nil {
		r.logger.Error("reminder run failed", "error", err)
		return
	}
	r.logger.Info("reminders sent", "users", res.Users, "pushed", res.Pushed, "mailed", res.Mailed)
}

// ReminderNotification is the push sent to users who haven't logged today.
func ReminderNotification() push.Notification {
	data, _ := json.Marshal(map[string]string{"url": "/emotion_logs/new"})
	return push.Notification{
		Title: "How did today sound?",
		Options: push.Options{
			Body: "Take a moment to log how your music made you feel.",
			Data: data,
		},
	}
}

// RunOnce reminds every user without an entry since the start of today.
func (r *Reminders) RunOnce(ctx context.Context, progress chan<- ProgressUpdate) (*ReminderResult, error) {
	now := r.now().In(r.location)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.location)

	users, err := r.logs.UsersWithoutLogSince(startOfDay)
	if err != nil {
		return nil, fmt.Errorf("failed to find users to remind: %w", err)
	}
	sendProgress(progress, foundUsersUpdate(len(users)))

	result := &ReminderResult{Users: len(users)}
	var subs []*models.PushSubscription

	for i, user := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sendProgress(progress, reminderUpdate(i+1, len(users), user.Name))

		if r.broadcaster != nil && r.subs != nil {
			userSubs, err := r.subs.List(map[string]any{"user_id": user.ID()})
			if err != nil {
				r.logger.Error("failed to list subscriptions", "user_id", user.ID(), "error", err)
			}
			subs = append(subs, userSubs...)
		}

		r.mail(ctx, user, now, result)
	}

	if len(subs) > 0 {
		br, err := r.broadcaster.Broadcast(ctx, progress, subs, ReminderNotification())
		if br != nil {
			result.Pushed, result.Pruned = br.Sent, br.Pruned
		}
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

func (r *Reminders) mail(ctx context.Context, user *models.User, date time.Time, result *ReminderResult) {
	if r.mailer == nil || repositories.IsPlaceholderEmail(user.Email) {
		return
	}

	total := 0
	if counts, err := r.logs.CountByEmotion(user.ID()); err == nil {
		for _, n := range counts {
			total += n
		}
	}

	msg, err := r.mailer.ReminderMail(user, date, total)
	if err == nil {
		err = r.mailer.Send(ctx, "reminder", msg)
	}
	if err != nil {
		result.MailFailed++
		r.logger.Error("failed to mail reminder", "user_id", user.ID(), "error", err)
		return
	}
	result.Mailed++
}

// cronLogger adapts a charm logger to cron's logger interface.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, kv ...any) { c.l.Debug(msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(msg, append(kv, "error", err)...)
}
