package reminder

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"progress/internal/logger"
)

// DefaultSchedule fires once a day at 09:00.
const DefaultSchedule = "0 9 * * *"

const sweepTimeout = 10 * time.Minute

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}

// Scheduler runs the sweep on a cron schedule in the configured location,
// and optionally the habit reminder job on its own schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	habits  *HabitReminders
	clock   func() time.Time
}

func NewScheduler(sweeper *Sweeper, schedule string, loc *time.Location) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if loc == nil {
		loc = time.Local
	}
	l := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		sweeper: sweeper,
		clock:   time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	summary, err := s.sweeper.Run(ctx, s.clock())
	if err != nil {
		logger.Error("scheduled reminder sweep failed", "err", err)
		return
	}
	logger.Info("scheduled reminder sweep complete", "users", summary.UsersChecked, "reminders", summary.TotalReminders)
}

// AddHabitReminders schedules the habit reminder job. Call before Start.
func (s *Scheduler) AddHabitReminders(h *HabitReminders, schedule string) error {
	if schedule == "" {
		schedule = DefaultHabitSchedule
	}
	s.habits = h
	_, err := s.cron.AddFunc(schedule, s.habitTick)
	return err
}

func (s *Scheduler) habitTick() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	summary, err := s.habits.Run(ctx, s.clock())
	if err != nil {
		logger.Error("habit reminder run failed", "err", err)
		return
	}
	if summary.Sent > 0 {
		logger.Info("habit reminders sent", "due", summary.Due, "sent", summary.Sent)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	if next := s.Next(); !next.IsZero() {
		logger.Info("reminder scheduler started", "next", next)
	}
}

// Next returns the next planned goal sweep, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts scheduling and waits for a running sweep until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
