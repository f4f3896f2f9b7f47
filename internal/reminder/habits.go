package reminder

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"progress/internal/logger"
	"progress/internal/models"
	"progress/internal/push"
)

// DefaultHabitSchedule checks habit reminders every minute.
const DefaultHabitSchedule = "* * * * *"

const reminderTimeLayout = "15:04"

// HabitStore is what the habit reminder job reads and stamps.
type HabitStore interface {
	HabitReminderCandidates(ctx context.Context) ([]models.Habit, error)
	MarkHabitReminded(ctx context.Context, habitID int, at time.Time) error
}

type HabitSummary struct {
	HabitsChecked int `json:"habitsChecked"`
	Due           int `json:"due"`
	Sent          int `json:"sent"`
}

// HabitReminders pushes a nudge for each habit whose reminder time has
// passed today and that has not been done yet. A habit is stamped only
// after a push reached at least one device.
type HabitReminders struct {
	Store    HabitStore
	Push     Notifier
	Location *time.Location
	AppURL   string

	running atomic.Bool
}

// HabitDue reports whether h should be reminded at now. Daily habits are
// done once completed today; weekly habits once completed in the last
// seven days.
func HabitDue(h models.Habit, now time.Time, loc *time.Location) bool {
	if !h.Reminder.Enabled {
		return false
	}
	clock, err := time.Parse(reminderTimeLayout, h.Reminder.Time)
	if err != nil {
		return false
	}
	today := startOfDay(now, loc)
	remindAt := time.Date(today.Year(), today.Month(), today.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	if now.Before(remindAt) {
		return false
	}
	if h.LastRemindedAt != nil && !h.LastRemindedAt.Before(remindAt) {
		return false
	}

	since := today
	if h.Frequency == models.FrequencyWeekly {
		since = today.AddDate(0, 0, -6)
	}
	for _, c := range h.Completions {
		if !c.CompletedAt.Before(since) {
			return false
		}
	}
	return true
}

func (r *HabitReminders) Run(ctx context.Context, now time.Time) (HabitSummary, error) {
	var summary HabitSummary
	if !r.running.CompareAndSwap(false, true) {
		return summary, ErrSweepInProgress
	}
	defer r.running.Store(false)
	if r.Push == nil {
		return summary, nil
	}

	habits, err := r.Store.HabitReminderCandidates(ctx)
	if err != nil {
		return summary, fmt.Errorf("load habits: %w", err)
	}

	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	log := logger.With("component", "habit-reminder")
	for _, h := range habits {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.HabitsChecked++
		if !HabitDue(h, now, loc) {
			continue
		}
		summary.Due++

		res, err := r.Push.SendToUser(ctx, h.UserID, push.Payload{
			Title: "Habit reminder",
			Body:  fmt.Sprintf("Time for %q", h.Title),
			Icon:  h.Icon,
			Tag:   fmt.Sprintf("habit-%d", h.ID),
			Data:  map[string]any{"url": r.AppURL + "/habits"},
		})
		if err != nil || res.Sent == 0 {
			log.Debug("habit reminder not delivered", "habit", h.ID, "user", h.UserID, "err", err)
			continue
		}
		if err := r.Store.MarkHabitReminded(ctx, h.ID, now); err != nil {
			return summary, fmt.Errorf("mark habit %d: %w", h.ID, err)
		}
		summary.Sent++
	}
	return summary, nil
}
