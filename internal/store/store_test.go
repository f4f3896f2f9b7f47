package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"progress/internal/database"
	"progress/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Initialize(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func createUser(t *testing.T, s *Store, username string) models.User {
	t.Helper()
	u := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Preferences:  models.DefaultPreferences(),
	}
	require.NoError(t, s.CreateUser(context.Background(), &u))
	return u
}

func TestCreateUserDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, "alice")

	dup := models.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"}
	err := s.CreateUser(ctx, &dup)
	require.ErrorIs(t, err, ErrConflict)

	_, err = s.GetUser(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPreferencesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "alice")

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Level)
	require.Equal(t, 3, got.Preferences.LeadDays())

	prefs := got.Preferences
	prefs.ReminderDaysBefore = nil
	prefs.DarkMode = true
	require.NoError(t, s.UpdatePreferences(ctx, u.ID, prefs))

	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.Preferences.DarkMode)
	require.Nil(t, got.Preferences.ReminderDaysBefore)
	require.Equal(t, models.DefaultReminderDaysBefore, got.Preferences.LeadDays())
}

func TestReminderRecipientsFiltersPreferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	carol := createUser(t, s, "carol")
	dave := createUser(t, s, "dave")

	prefs := models.DefaultPreferences()
	prefs.EmailNotifications = false
	require.NoError(t, s.UpdatePreferences(ctx, bob.ID, prefs))

	prefs = models.DefaultPreferences()
	prefs.GoalReminders = false
	require.NoError(t, s.UpdatePreferences(ctx, carol.ID, prefs))

	require.NoError(t, s.UpdateEmail(ctx, dave.ID, ""))

	recipients, err := s.ReminderRecipients(ctx)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	require.Equal(t, alice.ID, recipients[0].UserID)
	require.Equal(t, "alice@example.com", recipients[0].Email)
	require.Equal(t, 3, recipients[0].ReminderDaysBefore)
}

func TestFollowIsSymmetric(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	require.ErrorIs(t, s.Follow(ctx, alice.ID, alice.ID), ErrSelfFollow)
	require.NoError(t, s.Follow(ctx, alice.ID, bob.ID))
	require.ErrorIs(t, s.Follow(ctx, alice.ID, bob.ID), ErrConflict)

	following, err := s.Following(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	require.Equal(t, "bob", following[0].Username)

	followers, err := s.Followers(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	require.Equal(t, "alice", followers[0].Username)

	require.NoError(t, s.Unfollow(ctx, alice.ID, bob.ID))
	require.ErrorIs(t, s.Unfollow(ctx, alice.ID, bob.ID), ErrNotFollowing)

	following, err = s.Following(ctx, alice.ID)
	require.NoError(t, err)
	require.Empty(t, following)
	followers, err = s.Followers(ctx, bob.ID)
	require.NoError(t, err)
	require.Empty(t, followers)
}

func TestHabitCompletions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "alice")

	h := models.Habit{UserID: u.ID, Title: "Read", Frequency: models.FrequencyDaily, Tags: []string{"books"}}
	require.NoError(t, s.CreateHabit(ctx, &h))

	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c, err := s.AddCompletion(ctx, h.ID, at, 1)
	require.NoError(t, err)

	got, err := s.GetHabit(ctx, u.ID, h.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Streak)
	require.Len(t, got.Completions, 1)
	require.True(t, got.Completions[0].CompletedAt.Equal(at))
	require.Equal(t, []string{"books"}, got.Tags)

	since, err := s.CompletionsSince(ctx, u.ID, at.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, since, 1)

	require.NoError(t, s.RemoveCompletion(ctx, h.ID, c.ID, 0))
	got, err = s.GetHabit(ctx, u.ID, h.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.Streak)
	require.Empty(t, got.Completions)

	other := createUser(t, s, "bob")
	_, err = s.GetHabit(ctx, other.ID, h.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGoalChildrenAndReminderGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "alice")

	target := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	first := models.Goal{UserID: u.ID, Title: "Base"}
	require.NoError(t, s.CreateGoal(ctx, &first))

	g := models.Goal{
		UserID:       u.ID,
		Title:        "Ship",
		TargetDate:   &target,
		SubGoals:     []models.SubGoal{{Title: "a"}, {Title: "b"}},
		Dependencies: []int{first.ID},
	}
	require.NoError(t, s.CreateGoal(ctx, &g))
	require.Equal(t, models.GoalPending, g.Status)

	got, err := s.GetGoal(ctx, u.ID, g.ID)
	require.NoError(t, err)
	require.Len(t, got.SubGoals, 2)
	require.Equal(t, "a", got.SubGoals[0].Title)
	require.Equal(t, []int{first.ID}, got.Dependencies)

	open, err := s.OpenGoalsWithDeadline(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, g.ID, open[0].ID)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkGoalsReminded(ctx, []int{g.ID}, at))
	got, err = s.GetGoal(ctx, u.ID, g.ID)
	require.NoError(t, err)
	require.True(t, got.ReminderSent)
	require.NotNil(t, got.LastReminderDate)
	require.True(t, got.LastReminderDate.Equal(at))

	got.SubGoals[0].Completed = true
	got.Progress = 50
	got.Status = models.GoalInProgress
	require.NoError(t, s.SaveGoalState(ctx, &got))
	again, err := s.GetGoal(ctx, u.ID, g.ID)
	require.NoError(t, err)
	require.True(t, again.SubGoals[0].Completed)
	require.Equal(t, got.SubGoals[0].ID, again.SubGoals[0].ID)
	require.Equal(t, 50, again.Progress)

	owned, err := s.OwnedGoalIDs(ctx, u.ID, []int{first.ID, 999})
	require.NoError(t, err)
	require.True(t, owned[first.ID])
	require.False(t, owned[999])
}

func TestJournalFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "alice")

	for _, e := range []models.JournalEntry{
		{UserID: u.ID, Content: "great run", Mood: models.MoodGreat, Tags: []string{"run"}},
		{UserID: u.ID, Content: "meh", Mood: models.MoodNeutral, Tags: []string{"work"}},
		{UserID: u.ID, Content: "good run", Mood: models.MoodGood, Tags: []string{"run", "park"}},
	} {
		require.NoError(t, s.CreateJournalEntry(ctx, &e))
	}

	byTag, err := s.ListJournalEntries(ctx, u.ID, JournalFilter{Tag: "run"})
	require.NoError(t, err)
	require.Len(t, byTag, 2)

	byMood, err := s.ListJournalEntries(ctx, u.ID, JournalFilter{Mood: models.MoodNeutral})
	require.NoError(t, err)
	require.Len(t, byMood, 1)
	require.Equal(t, "meh", byMood[0].Content)

	counts, err := s.MoodCounts(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, counts[models.MoodGreat])
	require.Equal(t, 0, counts[models.MoodTerrible])
}

func TestFeedIncludesFollowedUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	carol := createUser(t, s, "carol")
	require.NoError(t, s.Follow(ctx, alice.ID, bob.ID))

	for _, u := range []models.User{alice, bob, carol} {
		a := models.Activity{UserID: u.ID, Type: models.ActivityHabitCreated, Title: u.Username}
		require.NoError(t, s.AddActivity(ctx, &a))
	}

	feed, err := s.Feed(ctx, alice.ID, 20)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	names := []string{feed[0].Username, feed[1].Username}
	require.ElementsMatch(t, []string{"alice", "bob"}, names)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "alice")

	require.NoError(t, s.SaveRefreshToken(ctx, u.ID, "tok", time.Now().Add(time.Hour), 7))
	require.NoError(t, s.SaveRefreshToken(ctx, u.ID, "tok", time.Now().Add(2*time.Hour), 30))

	id, days, err := s.ValidateRefreshToken(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, u.ID, id)
	require.Equal(t, 30, days)

	require.NoError(t, s.RevokeRefreshToken(ctx, "tok"))
	_, _, err = s.ValidateRefreshToken(ctx, "tok")
	require.ErrorIs(t, err, ErrRefreshTokenRevoked)

	require.NoError(t, s.SaveRefreshToken(ctx, u.ID, "old", time.Now().Add(-time.Hour), 7))
	_, _, err = s.ValidateRefreshToken(ctx, "old")
	require.ErrorIs(t, err, ErrRefreshTokenExpired)

	_, _, err = s.ValidateRefreshToken(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTemplatesSeededAndPopularity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, database.SeedTemplates(s.DB()))

	templates, err := s.ListGoalTemplates(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, templates)
	last := templates[len(templates)-1]

	require.NoError(t, s.IncrementGoalTemplatePopularity(ctx, last.ID))
	templates, err = s.ListGoalTemplates(ctx)
	require.NoError(t, err)
	require.Equal(t, last.ID, templates[0].ID)
	require.NotEmpty(t, templates[0].SubGoals)
}

func TestGoalCollaborators(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "olga")
	fred := createUser(t, s, "fred")
	ann := createUser(t, s, "ann")

	g := models.Goal{UserID: owner.ID, Title: "Climb"}
	require.NoError(t, s.CreateGoal(ctx, &g))

	require.ErrorIs(t, s.AddGoalCollaborator(ctx, owner.ID, g.ID, owner.ID), ErrSelfCollaborator)
	require.NoError(t, s.AddGoalCollaborator(ctx, owner.ID, g.ID, fred.ID))
	require.NoError(t, s.AddGoalCollaborator(ctx, owner.ID, g.ID, ann.ID))
	require.ErrorIs(t, s.AddGoalCollaborator(ctx, owner.ID, g.ID, fred.ID), ErrConflict)

	got, err := s.GetGoal(ctx, owner.ID, g.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"ann", "fred"}, got.Collaborators)

	shared, err := s.ListSharedGoals(ctx, fred.ID)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	require.Equal(t, g.ID, shared[0].ID)

	require.NoError(t, s.RemoveGoalCollaborator(ctx, g.ID, fred.ID))
	require.ErrorIs(t, s.RemoveGoalCollaborator(ctx, g.ID, fred.ID), ErrNotFound)

	require.NoError(t, s.DeleteGoal(ctx, owner.ID, g.ID))
	shared, err = s.ListSharedGoals(ctx, ann.ID)
	require.NoError(t, err)
	require.Empty(t, shared)
}
