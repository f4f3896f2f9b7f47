package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"progress/internal/database"
	"progress/internal/mailer"
	"progress/internal/models"
	"progress/internal/push"
	"progress/internal/store"
)

// day0 is 09:00 on the first day of every scenario.
var day0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail map[string]error
}

func (d *recordingDispatcher) Send(_ context.Context, msg mailer.Message) (mailer.Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail[msg.To]; err != nil {
		return mailer.Receipt{}, err
	}
	d.sent = append(d.sent, msg)
	return mailer.Receipt{MessageID: "<test@progress>"}, nil
}

type recordingNotifier struct {
	users []int
}

func (n *recordingNotifier) SendToUser(_ context.Context, userID int, _ push.Payload) (push.Result, error) {
	n.users = append(n.users, userID)
	return push.Result{Subscriptions: 1, Sent: 1}, nil
}

type fixture struct {
	store      *store.Store
	dispatcher *recordingDispatcher
	notifier   *recordingNotifier
	sweeper    *Sweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Initialize(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		store:      store.New(db),
		dispatcher: &recordingDispatcher{fail: map[string]error{}},
		notifier:   &recordingNotifier{},
	}
	f.sweeper = &Sweeper{
		Store:      f.store,
		Dispatcher: f.dispatcher,
		Push:       f.notifier,
		Location:   time.UTC,
		AppURL:     "https://progress.example.com",
	}
	return f
}

func (f *fixture) user(t *testing.T, name string, mutate func(*models.Preferences)) models.User {
	t.Helper()
	u := models.User{Username: name, Email: name + "@example.com", PasswordHash: "x", Preferences: models.DefaultPreferences()}
	if mutate != nil {
		mutate(&u.Preferences)
	}
	require.NoError(t, f.store.CreateUser(context.Background(), &u))
	return u
}

func (f *fixture) goal(t *testing.T, userID int, title string, target time.Time, status models.GoalStatus) models.Goal {
	t.Helper()
	g := models.Goal{UserID: userID, Title: title, TargetDate: &target, Status: status}
	require.NoError(t, f.store.CreateGoal(context.Background(), &g))
	return g
}

func TestSweepDailyScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", nil)
	g := f.goal(t, alice.ID, "Finish thesis draft", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), models.GoalPending)

	summary, err := f.sweeper.Run(ctx, day0)
	require.NoError(t, err)
	require.Equal(t, 1, summary.UsersChecked)
	require.Equal(t, 1, summary.TotalReminders)
	require.Equal(t, Result{User: "alice", Email: "alice@example.com", GoalsFound: 1, Sent: true, MessageID: "<test@progress>"}, summary.Results[0])

	require.Len(t, f.dispatcher.sent, 1)
	msg := f.dispatcher.sent[0]
	require.Equal(t, "alice@example.com", msg.To)
	require.Equal(t, "Goal reminder: 1 goal(s) due soon", msg.Subject)
	require.Contains(t, msg.HTML, "Finish thesis draft")
	require.Contains(t, msg.HTML, "Due in 2 days")
	require.Equal(t, []int{alice.ID}, f.notifier.users)

	stored, err := f.store.GetGoal(ctx, alice.ID, g.ID)
	require.NoError(t, err)
	require.True(t, stored.ReminderSent)
	require.True(t, stored.LastReminderDate.Equal(day0))

	// Same day: suppressed.
	summary, err = f.sweeper.Run(ctx, day0.Add(3*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 0, summary.TotalReminders)
	require.Len(t, f.dispatcher.sent, 1)

	// Next day: the guard has expired.
	summary, err = f.sweeper.Run(ctx, day0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, summary.TotalReminders)
	require.Len(t, f.dispatcher.sent, 2)
}

func TestSweepWindowBoundaries(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", nil)
	f.goal(t, alice.ID, "Today", time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC), models.GoalInProgress)
	f.goal(t, alice.ID, "Last day", time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC), models.GoalPending)
	f.goal(t, alice.ID, "Too far", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), models.GoalPending)
	f.goal(t, alice.ID, "Overdue", time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC), models.GoalPending)
	f.goal(t, alice.ID, "Done", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), models.GoalCompleted)

	summary, err := f.sweeper.Run(context.Background(), day0)
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalReminders)

	html := f.dispatcher.sent[0].HTML
	require.Contains(t, html, "Today")
	require.Contains(t, html, "Last day")
	require.NotContains(t, html, "Too far")
	require.NotContains(t, html, "Overdue")
	require.Contains(t, html, ColorUrgent)
	require.Contains(t, html, ColorWarning)
}

func TestSweepSkipsOptedOutUsers(t *testing.T) {
	f := newFixture(t)
	noEmail := f.user(t, "bob", func(p *models.Preferences) { p.EmailNotifications = false })
	noGoals := f.user(t, "carol", func(p *models.Preferences) { p.GoalReminders = false })
	f.goal(t, noEmail.ID, "Bob goal", day0.AddDate(0, 0, 1), models.GoalPending)
	f.goal(t, noGoals.ID, "Carol goal", day0.AddDate(0, 0, 1), models.GoalPending)

	summary, err := f.sweeper.Run(context.Background(), day0)
	require.NoError(t, err)
	require.Equal(t, 0, summary.UsersChecked)
	require.Equal(t, 0, summary.TotalReminders)
	require.Empty(t, f.dispatcher.sent)
}

func TestSweepUsesPerUserLeadTime(t *testing.T) {
	f := newFixture(t)
	seven := 7
	wide := f.user(t, "wide", func(p *models.Preferences) { p.ReminderDaysBefore = &seven })
	unset := f.user(t, "unset", func(p *models.Preferences) { p.ReminderDaysBefore = nil })
	f.goal(t, wide.ID, "Wide goal", day0.AddDate(0, 0, 6), models.GoalPending)
	f.goal(t, unset.ID, "Unset goal", day0.AddDate(0, 0, 6), models.GoalPending)

	summary, err := f.sweeper.Run(context.Background(), day0)
	require.NoError(t, err)
	require.Equal(t, 2, summary.UsersChecked)
	require.Equal(t, 1, summary.TotalReminders)
	require.Equal(t, 1, summary.Results[0].GoalsFound)
	require.Equal(t, 0, summary.Results[1].GoalsFound)
	require.Contains(t, f.dispatcher.sent[0].HTML, ColorInfo)
}

func TestSweepContinuesAfterDispatchFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", nil)
	bob := f.user(t, "bob", nil)
	ga := f.goal(t, alice.ID, "Alice goal", day0.AddDate(0, 0, 1), models.GoalPending)
	gb := f.goal(t, bob.ID, "Bob goal", day0.AddDate(0, 0, 1), models.GoalPending)
	f.dispatcher.fail["alice@example.com"] = errors.New("relay down")

	summary, err := f.sweeper.Run(ctx, day0)
	require.NoError(t, err)
	require.Equal(t, 2, summary.UsersChecked)
	require.Equal(t, 2, summary.TotalReminders)
	require.False(t, summary.Results[0].Sent)
	require.Equal(t, "relay down", summary.Results[0].Error)
	require.True(t, summary.Results[1].Sent)

	stored, err := f.store.GetGoal(ctx, alice.ID, ga.ID)
	require.NoError(t, err)
	require.False(t, stored.ReminderSent)
	stored, err = f.store.GetGoal(ctx, bob.ID, gb.ID)
	require.NoError(t, err)
	require.True(t, stored.ReminderSent)
	require.Equal(t, []int{bob.ID}, f.notifier.users)

	// The failed user is retried on the next run.
	delete(f.dispatcher.fail, "alice@example.com")
	summary, err = f.sweeper.Run(ctx, day0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, summary.TotalReminders)
	require.True(t, summary.Results[0].Sent)
}

type failingStore struct {
	Store
	err error
}

func (s failingStore) OpenGoalsWithDeadline(context.Context, int) ([]models.Goal, error) {
	return nil, s.err
}

func TestSweepAbortsOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice", nil)
	f.sweeper.Store = failingStore{Store: f.store, err: errors.New("disk I/O error")}

	_, err := f.sweeper.Run(context.Background(), day0)
	require.ErrorContains(t, err, "disk I/O error")
	require.Empty(t, f.dispatcher.sent)
}

type blockingStore struct {
	Store
	entered chan struct{}
	release chan struct{}
}

func (s blockingStore) ReminderRecipients(context.Context) ([]models.ReminderRecipient, error) {
	close(s.entered)
	<-s.release
	return nil, nil
}

func TestSweepRejectsOverlappingRuns(t *testing.T) {
	f := newFixture(t)
	bs := blockingStore{Store: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	f.sweeper.Store = bs

	done := make(chan error, 1)
	go func() {
		_, err := f.sweeper.Run(context.Background(), day0)
		done <- err
	}()
	<-bs.entered

	_, err := f.sweeper.Run(context.Background(), day0)
	require.ErrorIs(t, err, ErrSweepInProgress)

	close(bs.release)
	require.NoError(t, <-done)

	f.sweeper.Store = f.store
	_, err = f.sweeper.Run(context.Background(), day0)
	require.NoError(t, err)
}

func TestQualifiesGuard(t *testing.T) {
	today := startOfDay(day0, time.UTC)
	target := day0.AddDate(0, 0, 1)
	sent := day0.Add(-24 * time.Hour)
	recent := day0.Add(-23 * time.Hour)

	require.True(t, Qualifies(models.Goal{TargetDate: &target}, today, 3, day0))
	require.True(t, Qualifies(models.Goal{TargetDate: &target, ReminderSent: true, LastReminderDate: &sent}, today, 3, day0))
	require.False(t, Qualifies(models.Goal{TargetDate: &target, ReminderSent: true, LastReminderDate: &recent}, today, 3, day0))
	require.False(t, Qualifies(models.Goal{TargetDate: nil}, today, 3, day0))
	require.False(t, Qualifies(models.Goal{TargetDate: &target}, today, 0, day0))
}

func TestUrgencyColor(t *testing.T) {
	require.Equal(t, ColorUrgent, UrgencyColor(0))
	require.Equal(t, ColorUrgent, UrgencyColor(1))
	require.Equal(t, ColorWarning, UrgencyColor(2))
	require.Equal(t, ColorWarning, UrgencyColor(3))
	require.Equal(t, ColorInfo, UrgencyColor(4))
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler(&Sweeper{}, "not a cron", time.UTC)
	require.Error(t, err)

	s, err := NewScheduler(&Sweeper{}, "", time.UTC)
	require.NoError(t, err)
	s.Start()
	require.False(t, s.Next().IsZero())
	require.NoError(t, s.Stop(context.Background()))
}

func TestHabitDue(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		v := day0.Add(d)
		return &v
	}
	base := models.Habit{Frequency: models.FrequencyDaily, Reminder: models.HabitReminder{Enabled: true, Time: "08:00"}}

	cases := []struct {
		name   string
		mutate func(*models.Habit)
		want   bool
	}{
		{"past reminder time", func(*models.Habit) {}, true},
		{"disabled", func(h *models.Habit) { h.Reminder.Enabled = false }, false},
		{"unparseable time", func(h *models.Habit) { h.Reminder.Time = "8am" }, false},
		{"later today", func(h *models.Habit) { h.Reminder.Time = "18:00" }, false},
		{"already reminded today", func(h *models.Habit) { h.LastRemindedAt = at(-30 * time.Minute) }, false},
		{"reminded yesterday", func(h *models.Habit) { h.LastRemindedAt = at(-24 * time.Hour) }, true},
		{"completed today", func(h *models.Habit) {
			h.Completions = []models.Completion{{CompletedAt: day0.Add(-2 * time.Hour)}}
		}, false},
		{"completed yesterday", func(h *models.Habit) {
			h.Completions = []models.Completion{{CompletedAt: day0.Add(-20 * time.Hour)}}
		}, true},
		{"weekly done this week", func(h *models.Habit) {
			h.Frequency = models.FrequencyWeekly
			h.Completions = []models.Completion{{CompletedAt: day0.AddDate(0, 0, -4)}}
		}, false},
		{"weekly overdue", func(h *models.Habit) {
			h.Frequency = models.FrequencyWeekly
			h.Completions = []models.Completion{{CompletedAt: day0.AddDate(0, 0, -8)}}
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := base
			tc.mutate(&h)
			require.Equal(t, tc.want, HabitDue(h, day0, time.UTC))
		})
	}
}

func TestHabitRemindersRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := &HabitReminders{Store: f.store, Push: f.notifier, Location: time.UTC, AppURL: "https://progress.example.com"}

	habit := func(userID int, title, clock string) models.Habit {
		h := models.Habit{UserID: userID, Title: title, Frequency: models.FrequencyDaily,
			Reminder: models.HabitReminder{Enabled: true, Time: clock}}
		require.NoError(t, f.store.CreateHabit(ctx, &h))
		return h
	}
	subscribe := func(userID int) {
		require.NoError(t, f.store.SavePushSubscription(ctx, &models.PushSubscription{
			UserID: userID, Endpoint: fmt.Sprintf("https://push.example.com/%d", userID), P256dh: "k", Auth: "a",
		}))
	}

	alice := f.user(t, "alice", nil)
	bob := f.user(t, "bob", func(p *models.Preferences) { p.HabitReminders = false })
	carol := f.user(t, "carol", nil)
	subscribe(alice.ID)
	subscribe(bob.ID)

	walk := habit(alice.ID, "Walk", "08:00")
	read := habit(alice.ID, "Read", "08:30")
	habit(alice.ID, "Stretch", "21:00")
	habit(bob.ID, "Walk", "08:00")
	habit(carol.ID, "Walk", "08:00") // no subscription
	_, err := f.store.AddCompletion(ctx, read.ID, day0.Add(-time.Hour), 1)
	require.NoError(t, err)

	summary, err := job.Run(ctx, day0)
	require.NoError(t, err)
	require.Equal(t, HabitSummary{HabitsChecked: 3, Due: 1, Sent: 1}, summary)
	require.Equal(t, []int{alice.ID}, f.notifier.users)

	stored, err := f.store.GetHabit(ctx, alice.ID, walk.ID)
	require.NoError(t, err)
	require.True(t, stored.LastRemindedAt.Equal(day0))

	// Once per day.
	summary, err = job.Run(ctx, day0.Add(time.Hour))
	require.NoError(t, err)
	require.Zero(t, summary.Sent)

	// The next morning it is due again.
	summary, err = job.Run(ctx, day0.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Sent)
}

func TestSchedulerAcceptsHabitReminders(t *testing.T) {
	s, err := NewScheduler(&Sweeper{}, "", time.UTC)
	require.NoError(t, err)
	require.Error(t, s.AddHabitReminders(&HabitReminders{}, "not a cron"))
	require.NoError(t, s.AddHabitReminders(&HabitReminders{}, ""))
}
