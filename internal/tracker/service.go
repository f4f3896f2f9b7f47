package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"progress/internal/gamification"
	"progress/internal/logger"
	"progress/internal/models"
	"progress/internal/store"
)

var (
	ErrInvalidDependency = errors.New("dependencies must reference your other goals")
	ErrInvalidProgress   = errors.New("progress must be between 0 and 100")
	ErrInvalidStatus     = errors.New("invalid goal status")
	ErrSubGoalNotFound   = errors.New("sub-goal not found")
)

const perfectWeekCooldown = 7 * 24 * time.Hour

// Service applies habit, goal and journal actions together with the XP,
// achievements and activity entries they earn. Each action commits in one
// transaction.
type Service struct {
	Store    *store.Store
	Location *time.Location
	Now      func() time.Time
}

func NewService(st *store.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{Store: st, Location: loc, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// rewarder accumulates rewards for one action inside a transaction.
type rewarder struct {
	ctx     context.Context
	tx      *store.Store
	user    *models.User
	now     time.Time
	rewards models.Rewards
}

func (s *Service) newRewarder(ctx context.Context, tx *store.Store, userID int, now time.Time) (*rewarder, error) {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &rewarder{ctx: ctx, tx: tx, user: &u, now: now}, nil
}

func (r *rewarder) activity(t models.ActivityType, title, description string, meta models.ActivityMetadata) error {
	return r.tx.AddActivity(r.ctx, &models.Activity{
		UserID:      r.user.ID,
		Type:        t,
		Title:       title,
		Description: description,
		Metadata:    meta,
		CreatedAt:   r.now,
	})
}

func (r *rewarder) award(xp int) error {
	lu := gamification.Award(r.user, xp)
	if lu == nil {
		return nil
	}
	if err := r.tx.SaveXP(r.ctx, r.user.ID, r.user.XP, r.user.Level); err != nil {
		return err
	}
	if lu.LeveledUp {
		if err := r.activity(models.ActivityLevelUp,
			fmt.Sprintf("Reached level %d", lu.Level), "",
			models.ActivityMetadata{Icon: "⬆️", Value: lu.Level},
		); err != nil {
			return err
		}
	}
	if prev := r.rewards.LevelUp; prev != nil {
		lu.XPAwarded += prev.XPAwarded
		lu.PreviousLevel = prev.PreviousLevel
		lu.LeveledUp = lu.Level > lu.PreviousLevel
	}
	r.rewards.LevelUp = lu
	return nil
}

func (r *rewarder) earn(t models.AchievementType) error {
	a := NewAchievement(r.user.ID, t)
	a.CreatedAt = r.now
	if err := r.tx.CreateAchievement(r.ctx, &a); err != nil {
		return err
	}
	r.rewards.Achievements = append(r.rewards.Achievements, a)
	if err := r.activity(models.ActivityAchievementEarned, a.Title, a.Description,
		models.ActivityMetadata{RefID: a.ID, Icon: a.Icon}); err != nil {
		return err
	}
	logger.Debug("achievement earned", "user", r.user.Username, "type", t)
	return r.award(gamification.XPAchievement)
}

func (r *rewarder) earnIfFirst(t models.AchievementType, count func(context.Context, int) (int, error)) error {
	n, err := count(r.ctx, r.user.ID)
	if err != nil {
		return err
	}
	if n == 1 {
		return r.earn(t)
	}
	return nil
}

func (r *rewarder) earnOnce(t models.AchievementType) error {
	n, err := r.tx.CountAchievementsOfType(r.ctx, r.user.ID, t)
	if err != nil {
		return err
	}
	if n == 0 {
		return r.earn(t)
	}
	return nil
}

// CreateHabit stores a new habit. The user's first habit earns first_habit.
func (s *Service) CreateHabit(ctx context.Context, h *models.Habit) (models.Rewards, error) {
	var rewards models.Rewards
	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		r, err := s.newRewarder(ctx, tx, h.UserID, s.now())
		if err != nil {
			return err
		}
		if err := tx.CreateHabit(ctx, h); err != nil {
			return err
		}
		if err := r.activity(models.ActivityHabitCreated, "Started a new habit", h.Title,
			models.ActivityMetadata{RefID: h.ID, Icon: h.Icon}); err != nil {
			return err
		}
		if err := r.earnIfFirst(models.AchievementFirstHabit, tx.CountHabits); err != nil {
			return err
		}
		rewards = r.rewards
		return nil
	})
	return rewards, err
}

// CheckIn toggles today's completion of a habit. Completing awards XP, logs
// activity and may earn streak or perfect week achievements.
func (s *Service) CheckIn(ctx context.Context, userID, habitID int) (models.CheckInResponse, error) {
	var resp models.CheckInResponse
	now := s.now()
	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		h, err := tx.GetHabit(ctx, userID, habitID)
		if err != nil {
			return err
		}
		toggle := ToggleCompletion(&h, now, s.Location)
		if !toggle.Completed {
			if err := tx.RemoveCompletion(ctx, h.ID, toggle.RemovedID, h.Streak); err != nil {
				return err
			}
			resp = models.CheckInResponse{Habit: h}
			return nil
		}

		c, err := tx.AddCompletion(ctx, h.ID, now, h.Streak)
		if err != nil {
			return err
		}
		h.Completions[len(h.Completions)-1] = c

		r, err := s.newRewarder(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if err := r.activity(models.ActivityHabitCompleted, "Completed a habit", h.Title,
			models.ActivityMetadata{RefID: h.ID, Icon: h.Icon, Value: h.Streak}); err != nil {
			return err
		}
		if err := r.award(gamification.XPHabitCompleted); err != nil {
			return err
		}
		if toggle.Milestone != "" {
			if err := r.earn(toggle.Milestone); err != nil {
				return err
			}
		}
		if err := s.checkPerfectWeek(r, now); err != nil {
			return err
		}
		resp = models.CheckInResponse{Habit: h, CompletedToday: true, Rewards: r.rewards}
		return nil
	})
	return resp, err
}

func (s *Service) checkPerfectWeek(r *rewarder, now time.Time) error {
	habits, err := r.tx.ListHabits(r.ctx, r.user.ID, false)
	if err != nil {
		return err
	}
	if !PerfectWeek(habits, now, s.Location) {
		return nil
	}
	latest, err := r.tx.LatestAchievement(r.ctx, r.user.ID, models.AchievementPerfectWeek)
	if err != nil {
		return err
	}
	if latest != nil && now.Sub(*latest) < perfectWeekCooldown {
		return nil
	}
	return r.earn(models.AchievementPerfectWeek)
}

func (s *Service) validateDependencies(ctx context.Context, tx *store.Store, g *models.Goal) error {
	if len(g.Dependencies) == 0 {
		return nil
	}
	owned, err := tx.OwnedGoalIDs(ctx, g.UserID, g.Dependencies)
	if err != nil {
		return err
	}
	for _, id := range g.Dependencies {
		if id == g.ID || !owned[id] {
			return fmt.Errorf("goal %d: %w", id, ErrInvalidDependency)
		}
	}
	return nil
}

// CreateGoal stores a new goal. The user's first goal earns first_goal.
func (s *Service) CreateGoal(ctx context.Context, g *models.Goal) (models.Rewards, error) {
	var rewards models.Rewards
	now := s.now()
	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		if err := s.validateDependencies(ctx, tx, g); err != nil {
			return err
		}
		r, err := s.newRewarder(ctx, tx, g.UserID, now)
		if err != nil {
			return err
		}
		if err := tx.CreateGoal(ctx, g); err != nil {
			return err
		}
		if err := r.activity(models.ActivityGoalCreated, "Set a new goal", g.Title,
			models.ActivityMetadata{RefID: g.ID}); err != nil {
			return err
		}
		if err := r.earnIfFirst(models.AchievementFirstGoal, tx.CountGoals); err != nil {
			return err
		}
		rewards = r.rewards
		return nil
	})
	return rewards, err
}

// goalMutation loads a goal, applies fn and saves it, awarding the goal
// completion rewards the first time the goal moves into completed.
func (s *Service) goalMutation(ctx context.Context, userID, goalID int, replaceChildren bool,
	fn func(tx *store.Store, g *models.Goal, r *rewarder) error,
) (models.GoalResponse, error) {
	var resp models.GoalResponse
	now := s.now()
	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		g, err := tx.GetGoal(ctx, userID, goalID)
		if err != nil {
			return err
		}
		r, err := s.newRewarder(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		wasCompleted := g.Status == models.GoalCompleted
		if err := fn(tx, &g, r); err != nil {
			return err
		}
		// Only a goal's first completion is rewarded.
		firstCompletion := !wasCompleted && g.Status == models.GoalCompleted && g.FirstCompletedAt == nil
		if firstCompletion {
			g.FirstCompletedAt = g.CompletedAt
		}
		if replaceChildren {
			err = tx.SaveGoal(ctx, &g)
		} else {
			err = tx.SaveGoalState(ctx, &g)
		}
		if err != nil {
			return err
		}
		if firstCompletion {
			if err := s.goalCompleted(r, &g); err != nil {
				return err
			}
		}
		resp = models.GoalResponse{Goal: g, Rewards: r.rewards}
		return nil
	})
	return resp, err
}

func (s *Service) goalCompleted(r *rewarder, g *models.Goal) error {
	if err := r.activity(models.ActivityGoalCompleted, "Completed a goal", g.Title,
		models.ActivityMetadata{RefID: g.ID, Icon: "🎉", Value: 100}); err != nil {
		return err
	}
	if err := r.award(gamification.XPGoalCompleted); err != nil {
		return err
	}
	return r.earnOnce(models.AchievementGoalCompleted)
}

// UpdateGoal applies an edit. A new target date re-arms the reminder; a new
// sub-goal list re-derives progress.
func (s *Service) UpdateGoal(ctx context.Context, userID, goalID int, req models.UpdateGoalRequest) (models.GoalResponse, error) {
	now := s.now()
	return s.goalMutation(ctx, userID, goalID, true, func(tx *store.Store, g *models.Goal, _ *rewarder) error {
		if req.Title != nil {
			g.Title = *req.Title
		}
		if req.Description != nil {
			g.Description = *req.Description
		}
		if req.TargetDate != nil && (g.TargetDate == nil || !g.TargetDate.Equal(req.TargetDate.Time)) {
			t := req.TargetDate.UTC()
			g.TargetDate = &t
			g.ReminderSent = false
			g.LastReminderDate = nil
		}
		if req.Dependencies != nil {
			g.Dependencies = req.Dependencies
			if err := s.validateDependencies(ctx, tx, g); err != nil {
				return err
			}
		}
		if req.SubGoals != nil {
			g.SubGoals = req.SubGoals
			DeriveProgress(g, now)
		}
		return nil
	})
}

// ToggleSubGoal flips one checklist item and re-derives the goal.
func (s *Service) ToggleSubGoal(ctx context.Context, userID, goalID, subGoalID int) (models.GoalResponse, error) {
	now := s.now()
	return s.goalMutation(ctx, userID, goalID, false, func(_ *store.Store, g *models.Goal, r *rewarder) error {
		for i := range g.SubGoals {
			if g.SubGoals[i].ID != subGoalID {
				continue
			}
			g.SubGoals[i].Completed = !g.SubGoals[i].Completed
			DeriveProgress(g, now)
			if g.SubGoals[i].Completed {
				return r.award(gamification.XPSubGoalCompleted)
			}
			return nil
		}
		return ErrSubGoalNotFound
	})
}

func (s *Service) SetGoalStatus(ctx context.Context, userID, goalID int, status models.GoalStatus) (models.GoalResponse, error) {
	if !status.Valid() {
		return models.GoalResponse{}, ErrInvalidStatus
	}
	now := s.now()
	return s.goalMutation(ctx, userID, goalID, false, func(_ *store.Store, g *models.Goal, _ *rewarder) error {
		ApplyStatus(g, status, now)
		return nil
	})
}

func (s *Service) SetGoalProgress(ctx context.Context, userID, goalID, progress int) (models.GoalResponse, error) {
	if progress < 0 || progress > 100 {
		return models.GoalResponse{}, ErrInvalidProgress
	}
	now := s.now()
	return s.goalMutation(ctx, userID, goalID, false, func(_ *store.Store, g *models.Goal, _ *rewarder) error {
		ApplyProgress(g, progress, now)
		return nil
	})
}

// CreateJournalEntry stores an entry, awards XP and earns journal_entry for
// the first one.
func (s *Service) CreateJournalEntry(ctx context.Context, e *models.JournalEntry) (models.Rewards, error) {
	var rewards models.Rewards
	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		r, err := s.newRewarder(ctx, tx, e.UserID, s.now())
		if err != nil {
			return err
		}
		if err := tx.CreateJournalEntry(ctx, e); err != nil {
			return err
		}
		if err := r.activity(models.ActivityJournalEntry, "Wrote in the journal", string(e.Mood),
			models.ActivityMetadata{RefID: e.ID}); err != nil {
			return err
		}
		if err := r.award(gamification.XPJournalEntry); err != nil {
			return err
		}
		if err := r.earnIfFirst(models.AchievementJournalEntry, tx.CountJournalEntries); err != nil {
			return err
		}
		rewards = r.rewards
		return nil
	})
	return rewards, err
}

// Dashboard aggregates the user's statistics.
func (s *Service) Dashboard(ctx context.Context, userID int) (models.Dashboard, error) {
	now := s.now()
	var d models.Dashboard

	u, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return d, err
	}
	habits, err := s.Store.ListHabits(ctx, userID, false)
	if err != nil {
		return d, err
	}
	goals, err := s.Store.ListGoals(ctx, userID, "")
	if err != nil {
		return d, err
	}
	today, _ := DayBounds(now, s.Location)
	recent, err := s.Store.CompletionsSince(ctx, userID, today.AddDate(0, 0, -6))
	if err != nil {
		return d, err
	}
	if d.JournalEntries, err = s.Store.CountJournalEntries(ctx, userID); err != nil {
		return d, err
	}
	if d.MoodDistribution, err = s.Store.MoodCounts(ctx, userID); err != nil {
		return d, err
	}
	if d.Achievements, err = s.Store.CountAchievements(ctx, userID); err != nil {
		return d, err
	}

	d.TotalHabits = len(habits)
	for i := range habits {
		if CompletedToday(&habits[i], now, s.Location) {
			d.CompletedToday++
		}
		if habits[i].Streak > d.BestStreak {
			d.BestStreak = habits[i].Streak
		}
		d.CurrentStreakTotal += habits[i].Streak
	}
	d.WeeklyCompletionRate = WeeklyCompletionRate(habits, now, s.Location)
	d.DailyCompletions = DailyCounts(recent, 7, now, s.Location)
	d.GoalsByStatus, d.AverageGoalProgress = GoalSummary(goals)
	d.XP = u.XP
	d.Level = u.Level
	d.NextLevelXP = gamification.Threshold(u.Level)
	return d, nil
}
