package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"progress/internal/database"
	"progress/internal/models"
	"progress/internal/store"
)

func newTestService(t *testing.T) (*Service, models.User) {
	t.Helper()
	db, err := database.Initialize(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	u := models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", Preferences: models.DefaultPreferences()}
	require.NoError(t, st.CreateUser(context.Background(), &u))

	svc := NewService(st, time.UTC)
	svc.Now = func() time.Time { return noon }
	return svc, u
}

func countAchievements(t *testing.T, svc *Service, userID int, kind models.AchievementType) int {
	t.Helper()
	n, err := svc.Store.CountAchievementsOfType(context.Background(), userID, kind)
	require.NoError(t, err)
	return n
}

func TestCreateHabitEarnsFirstHabitOnce(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	h := models.Habit{UserID: u.ID, Title: "Read", Frequency: models.FrequencyDaily}
	rewards, err := svc.CreateHabit(ctx, &h)
	require.NoError(t, err)
	require.Len(t, rewards.Achievements, 1)
	require.Equal(t, models.AchievementFirstHabit, rewards.Achievements[0].Type)

	second := models.Habit{UserID: u.ID, Title: "Walk", Frequency: models.FrequencyDaily}
	rewards, err = svc.CreateHabit(ctx, &second)
	require.NoError(t, err)
	require.Empty(t, rewards.Achievements)
	require.Equal(t, 1, countAchievements(t, svc, u.ID, models.AchievementFirstHabit))
}

func TestCheckInToggleAwardsXP(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	h := models.Habit{UserID: u.ID, Title: "Read", Frequency: models.FrequencyWeekly}
	_, err := svc.CreateHabit(ctx, &h)
	require.NoError(t, err)

	resp, err := svc.CheckIn(ctx, u.ID, h.ID)
	require.NoError(t, err)
	require.True(t, resp.CompletedToday)
	require.Equal(t, 1, resp.Habit.Streak)
	require.NotNil(t, resp.LevelUp)
	require.Equal(t, 10, resp.LevelUp.XPAwarded)

	resp, err = svc.CheckIn(ctx, u.ID, h.ID)
	require.NoError(t, err)
	require.False(t, resp.CompletedToday)
	require.Equal(t, 0, resp.Habit.Streak)

	stored, err := svc.Store.GetHabit(ctx, u.ID, h.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Streak)
	require.Empty(t, stored.Completions)

	// 20 for first_habit, 10 for the check-in
	user, err := svc.Store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 30, user.XP)
}

func TestWeekStreakAchievementRetriggers(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	h := models.Habit{UserID: u.ID, Title: "Read", Frequency: models.FrequencyWeekly}
	_, err := svc.CreateHabit(ctx, &h)
	require.NoError(t, err)
	_, err = svc.Store.AddCompletion(ctx, h.ID, noon.AddDate(0, 0, -1), 6)
	require.NoError(t, err)

	resp, err := svc.CheckIn(ctx, u.ID, h.ID)
	require.NoError(t, err)
	require.Equal(t, 7, resp.Habit.Streak)
	require.Len(t, resp.Achievements, 1)
	require.Equal(t, models.AchievementWeekStreak, resp.Achievements[0].Type)
	require.Equal(t, 1, countAchievements(t, svc, u.ID, models.AchievementWeekStreak))

	_, err = svc.CheckIn(ctx, u.ID, h.ID)
	require.NoError(t, err)
	require.Equal(t, 1, countAchievements(t, svc, u.ID, models.AchievementWeekStreak))

	_, err = svc.CheckIn(ctx, u.ID, h.ID)
	require.NoError(t, err)
	require.Equal(t, 2, countAchievements(t, svc, u.ID, models.AchievementWeekStreak))
}

func TestMonthStreakAchievement(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	h := models.Habit{UserID: u.ID, Title: "Read", Frequency: models.FrequencyWeekly}
	_, err := svc.CreateHabit(ctx, &h)
	require.NoError(t, err)
	_, err = svc.Store.AddCompletion(ctx, h.ID, noon.AddDate(0, 0, -1), 29)
	require.NoError(t, err)

	resp, err := svc.CheckIn(ctx, u.ID, h.ID)
	require.NoError(t, err)
	require.Equal(t, 30, resp.Habit.Streak)
	require.Equal(t, 1, countAchievements(t, svc, u.ID, models.AchievementMonthStreak))
	require.Equal(t, 0, countAchievements(t, svc, u.ID, models.AchievementWeekStreak))
}

func TestPerfectWeekEarnedOnce(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	h := models.Habit{UserID: u.ID, Title: "Read", Frequency: models.FrequencyDaily}
	_, err := svc.CreateHabit(ctx, &h)
	require.NoError(t, err)
	for d := 1; d <= 6; d++ {
		_, err = svc.Store.AddCompletion(ctx, h.ID, noon.AddDate(0, 0, -d), 0)
		require.NoError(t, err)
	}

	_, err = svc.CheckIn(ctx, u.ID, h.ID)
	require.NoError(t, err)
	require.Equal(t, 1, countAchievements(t, svc, u.ID, models.AchievementPerfectWeek))

	_, err = svc.CheckIn(ctx, u.ID, h.ID)
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, u.ID, h.ID)
	require.NoError(t, err)
	require.Equal(t, 1, countAchievements(t, svc, u.ID, models.AchievementPerfectWeek))
}

func TestGoalLifecycle(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	g := models.Goal{
		UserID:   u.ID,
		Title:    "Ship",
		SubGoals: []models.SubGoal{{Title: "a"}, {Title: "b"}, {Title: "c"}},
	}
	rewards, err := svc.CreateGoal(ctx, &g)
	require.NoError(t, err)
	require.Len(t, rewards.Achievements, 1)
	require.Equal(t, models.AchievementFirstGoal, rewards.Achievements[0].Type)
	require.Equal(t, models.GoalPending, g.Status)

	resp, err := svc.ToggleSubGoal(ctx, u.ID, g.ID, g.SubGoals[0].ID)
	require.NoError(t, err)
	require.Equal(t, 33, resp.Goal.Progress)
	require.Equal(t, models.GoalInProgress, resp.Goal.Status)

	_, err = svc.ToggleSubGoal(ctx, u.ID, g.ID, g.SubGoals[1].ID)
	require.NoError(t, err)
	resp, err = svc.ToggleSubGoal(ctx, u.ID, g.ID, g.SubGoals[2].ID)
	require.NoError(t, err)
	require.Equal(t, 100, resp.Goal.Progress)
	require.Equal(t, models.GoalCompleted, resp.Goal.Status)
	require.NotNil(t, resp.Goal.CompletedAt)
	require.Len(t, resp.Achievements, 1)
	require.Equal(t, models.AchievementGoalCompleted, resp.Achievements[0].Type)

	resp, err = svc.ToggleSubGoal(ctx, u.ID, g.ID, g.SubGoals[2].ID)
	require.NoError(t, err)
	require.Equal(t, 67, resp.Goal.Progress)
	require.Equal(t, models.GoalInProgress, resp.Goal.Status)

	_, err = svc.ToggleSubGoal(ctx, u.ID, g.ID, 9999)
	require.ErrorIs(t, err, ErrSubGoalNotFound)
}

func TestGoalCompletionRewardedOnce(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	g := models.Goal{UserID: u.ID, Title: "Ship"}
	_, err := svc.CreateGoal(ctx, &g)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		resp, err := svc.SetGoalStatus(ctx, u.ID, g.ID, models.GoalCompleted)
		require.NoError(t, err)
		require.NotNil(t, resp.Goal.FirstCompletedAt)
		if i == 0 {
			require.NotNil(t, resp.LevelUp)
			require.Len(t, resp.Achievements, 1)
		} else {
			require.Nil(t, resp.LevelUp)
			require.Empty(t, resp.Achievements)
		}

		resp, err = svc.SetGoalStatus(ctx, u.ID, g.ID, models.GoalPending)
		require.NoError(t, err)
		require.Nil(t, resp.Goal.CompletedAt)
		require.NotNil(t, resp.Goal.FirstCompletedAt)
	}

	require.Equal(t, 1, countAchievements(t, svc, u.ID, models.AchievementGoalCompleted))
	user, err := svc.Store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	// first_goal (20) + goal completion (50) + goal_completed achievement (20).
	require.Equal(t, 90, user.XP)

	// A second goal completes without a second goal_completed achievement.
	other := models.Goal{UserID: u.ID, Title: "Ship again"}
	_, err = svc.CreateGoal(ctx, &other)
	require.NoError(t, err)
	resp, err := svc.SetGoalStatus(ctx, u.ID, other.ID, models.GoalCompleted)
	require.NoError(t, err)
	require.Empty(t, resp.Achievements)
	require.Equal(t, 1, countAchievements(t, svc, u.ID, models.AchievementGoalCompleted))
}

func TestGoalDependenciesMustBeOwned(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	other := models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", Preferences: models.DefaultPreferences()}
	require.NoError(t, svc.Store.CreateUser(ctx, &other))
	foreign := models.Goal{UserID: other.ID, Title: "Theirs"}
	_, err := svc.CreateGoal(ctx, &foreign)
	require.NoError(t, err)

	g := models.Goal{UserID: u.ID, Title: "Mine", Dependencies: []int{foreign.ID}}
	_, err = svc.CreateGoal(ctx, &g)
	require.ErrorIs(t, err, ErrInvalidDependency)

	count, err := svc.Store.CountGoals(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestUpdateGoalTargetDateResetsReminder(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	target := noon.AddDate(0, 0, 2)
	g := models.Goal{UserID: u.ID, Title: "Ship", TargetDate: &target}
	_, err := svc.CreateGoal(ctx, &g)
	require.NoError(t, err)
	require.NoError(t, svc.Store.MarkGoalsReminded(ctx, []int{g.ID}, noon))

	resp, err := svc.UpdateGoal(ctx, u.ID, g.ID, models.UpdateGoalRequest{TargetDate: &models.Date{Time: target}})
	require.NoError(t, err)
	require.True(t, resp.Goal.ReminderSent)

	later := noon.AddDate(0, 0, 5)
	resp, err = svc.UpdateGoal(ctx, u.ID, g.ID, models.UpdateGoalRequest{TargetDate: &models.Date{Time: later}})
	require.NoError(t, err)
	require.False(t, resp.Goal.ReminderSent)
	require.Nil(t, resp.Goal.LastReminderDate)
}

func TestSetGoalStatusAndProgress(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	g := models.Goal{UserID: u.ID, Title: "Ship"}
	_, err := svc.CreateGoal(ctx, &g)
	require.NoError(t, err)

	resp, err := svc.SetGoalProgress(ctx, u.ID, g.ID, 40)
	require.NoError(t, err)
	require.Equal(t, models.GoalInProgress, resp.Goal.Status)

	_, err = svc.SetGoalProgress(ctx, u.ID, g.ID, 140)
	require.ErrorIs(t, err, ErrInvalidProgress)

	resp, err = svc.SetGoalStatus(ctx, u.ID, g.ID, models.GoalCompleted)
	require.NoError(t, err)
	require.Equal(t, 100, resp.Goal.Progress)
	require.Len(t, resp.Achievements, 1)

	_, err = svc.SetGoalStatus(ctx, u.ID, g.ID, "done")
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.SetGoalStatus(ctx, u.ID+1, g.ID, models.GoalPending)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGamificationDisabledSkipsXP(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	prefs := models.DefaultPreferences()
	prefs.Gamification = false
	require.NoError(t, svc.Store.UpdatePreferences(ctx, u.ID, prefs))

	e := models.JournalEntry{UserID: u.ID, Content: "hello", Mood: models.MoodGood}
	rewards, err := svc.CreateJournalEntry(ctx, &e)
	require.NoError(t, err)
	require.Nil(t, rewards.LevelUp)
	require.Len(t, rewards.Achievements, 1)

	user, err := svc.Store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, user.XP)
	require.Equal(t, 1, user.Level)
}

func TestDashboard(t *testing.T) {
	svc, u := newTestService(t)
	ctx := context.Background()

	h := models.Habit{UserID: u.ID, Title: "Read", Frequency: models.FrequencyDaily}
	_, err := svc.CreateHabit(ctx, &h)
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, u.ID, h.ID)
	require.NoError(t, err)

	g := models.Goal{UserID: u.ID, Title: "Ship"}
	_, err = svc.CreateGoal(ctx, &g)
	require.NoError(t, err)

	d, err := svc.Dashboard(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, d.TotalHabits)
	require.Equal(t, 1, d.CompletedToday)
	require.Equal(t, 1, d.BestStreak)
	require.Equal(t, 14, d.WeeklyCompletionRate)
	require.Equal(t, 1, d.GoalsByStatus[models.GoalPending])
	require.Len(t, d.DailyCompletions, 7)
	require.Equal(t, 1, d.DailyCompletions[6].Count)
	require.Equal(t, 2, d.Achievements)
}
