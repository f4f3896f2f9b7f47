package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"progress/internal/logger"
	"progress/internal/mailer"
	"progress/internal/models"
	"progress/internal/push"
)

// ErrSweepInProgress is returned when Run is called while another run is
// still going.
var ErrSweepInProgress = errors.New("reminder sweep already in progress")

// guardWindow is how long a sent reminder suppresses the next one.
const guardWindow = 24 * time.Hour

// Store is what the sweep reads and marks.
type Store interface {
	ReminderRecipients(ctx context.Context) ([]models.ReminderRecipient, error)
	OpenGoalsWithDeadline(ctx context.Context, userID int) ([]models.Goal, error)
	MarkGoalsReminded(ctx context.Context, ids []int, at time.Time) error
}

// Notifier sends the follow-up push after an email went out.
type Notifier interface {
	SendToUser(ctx context.Context, userID int, payload push.Payload) (push.Result, error)
}

type Result struct {
	User       string `json:"user"`
	Email      string `json:"email"`
	GoalsFound int    `json:"goalsFound"`
	Sent       bool   `json:"sent"`
	MessageID  string `json:"messageId,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Summary struct {
	UsersChecked   int      `json:"usersChecked"`
	TotalReminders int      `json:"totalReminders"`
	Results        []Result `json:"results"`
}

// Sweeper emails each opted-in user one digest of their goals that are due
// soon and marks those goals so they are not repeated within 24 hours.
type Sweeper struct {
	Store      Store
	Dispatcher mailer.Dispatcher
	// Push is optional.
	Push     Notifier
	Location *time.Location
	AppURL   string

	running atomic.Bool
}

func (s *Sweeper) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Qualifies reports whether g belongs in a reminder sent at now. The goal
// must be open, its target day must fall within [today, today+days], and it
// must not have been reminded in the 24 hours before now.
func Qualifies(g models.Goal, today time.Time, days int, now time.Time) bool {
	if g.Status == models.GoalCompleted || g.TargetDate == nil {
		return false
	}
	target := startOfDay(*g.TargetDate, today.Location())
	if target.Before(today) || target.After(today.AddDate(0, 0, days)) {
		return false
	}
	if !g.ReminderSent || g.LastReminderDate == nil {
		return true
	}
	return !g.LastReminderDate.After(now.Add(-guardWindow))
}

// Run performs one sweep at now. Users are processed in order; a failed email
// is recorded and the sweep moves on, leaving that user's goals unmarked. A
// store failure aborts the run.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Summary{}, ErrSweepInProgress
	}
	defer s.running.Store(false)

	log := logger.With("component", "reminder")
	loc := s.location()
	today := startOfDay(now, loc)
	summary := Summary{Results: []Result{}}

	recipients, err := s.Store.ReminderRecipients(ctx)
	if err != nil {
		return summary, fmt.Errorf("load recipients: %w", err)
	}

	for _, r := range recipients {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.UsersChecked++

		goals, err := s.Store.OpenGoalsWithDeadline(ctx, r.UserID)
		if err != nil {
			return summary, fmt.Errorf("load goals for %s: %w", r.Username, err)
		}
		var due []models.Goal
		for _, g := range goals {
			if Qualifies(g, today, r.ReminderDaysBefore, now) {
				due = append(due, g)
			}
		}

		res := Result{User: r.Username, Email: r.Email, GoalsFound: len(due)}
		summary.TotalReminders += len(due)
		if len(due) == 0 {
			summary.Results = append(summary.Results, res)
			continue
		}

		receipt, err := s.deliver(ctx, r, due, today)
		if err != nil {
			log.Error("failed to send reminder", "user", r.Username, "err", err)
			res.Error = err.Error()
			summary.Results = append(summary.Results, res)
			continue
		}
		res.Sent = true
		res.MessageID = receipt.MessageID
		summary.Results = append(summary.Results, res)

		ids := make([]int, len(due))
		for i, g := range due {
			ids[i] = g.ID
		}
		if err := s.Store.MarkGoalsReminded(ctx, ids, now); err != nil {
			return summary, fmt.Errorf("mark goals for %s: %w", r.Username, err)
		}
		log.Info("reminder sent", "user", r.Username, "goals", len(due))

		s.notify(ctx, r, due)
	}

	log.Info("sweep finished", "users", summary.UsersChecked, "reminders", summary.TotalReminders)
	return summary, nil
}

func (s *Sweeper) deliver(ctx context.Context, r models.ReminderRecipient, due []models.Goal, today time.Time) (mailer.Receipt, error) {
	msg, err := RenderEmail(r, due, today, s.AppURL)
	if err != nil {
		return mailer.Receipt{}, err
	}
	return s.Dispatcher.Send(ctx, msg)
}

func (s *Sweeper) notify(ctx context.Context, r models.ReminderRecipient, due []models.Goal) {
	if s.Push == nil {
		return
	}
	body := fmt.Sprintf("%q is due soon", due[0].Title)
	if len(due) > 1 {
		body = fmt.Sprintf("%d goals are due soon", len(due))
	}
	_, err := s.Push.SendToUser(ctx, r.UserID, push.Payload{
		Title: "Goal reminder",
		Body:  body,
		Tag:   "goal-reminder",
		Data:  map[string]any{"url": s.AppURL + "/goals"},
	})
	if err != nil {
		logger.Debug("reminder push skipped", "user", r.Username, "err", err)
	}
}
