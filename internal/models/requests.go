package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date accepts either RFC 3339 or a bare YYYY-MM-DD, as sent by an HTML
// date input. Bare dates are pinned to noon UTC so they land on the same
// calendar day in every zone within twelve hours of UTC.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", raw)
	}
	d.Time = t.Add(12 * time.Hour)
	return nil
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type VerifyRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type UpdateProfileRequest struct {
	Bio      *string `json:"bio,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Location *string `json:"location,omitempty"`
	Website  *string `json:"website,omitempty"`
}

type UpdatePreferencesRequest struct {
	DarkMode           *bool `json:"darkMode,omitempty"`
	EmailNotifications *bool `json:"emailNotifications,omitempty"`
	HabitReminders     *bool `json:"habitReminders,omitempty"`
	GoalReminders      *bool `json:"goalReminders,omitempty"`
	ReminderDaysBefore *int  `json:"reminderDaysBefore,omitempty"`
	Gamification       *bool `json:"gamification,omitempty"`
}

type CreateHabitRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Frequency   Frequency      `json:"frequency"`
	Icon        string         `json:"icon"`
	Color       string         `json:"color"`
	Category    string         `json:"category"`
	Tags        []string       `json:"tags"`
	Reminder    *HabitReminder `json:"reminder,omitempty"`
	IsPublic    bool           `json:"is_public"`
}

type UpdateHabitRequest struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Frequency   *Frequency     `json:"frequency,omitempty"`
	Icon        *string        `json:"icon,omitempty"`
	Color       *string        `json:"color,omitempty"`
	Category    *string        `json:"category,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Reminder    *HabitReminder `json:"reminder,omitempty"`
	IsPublic    *bool          `json:"is_public,omitempty"`
}

type CreateHabitNoteRequest struct {
	Content string `json:"content"`
}

// Rewards collects what a single action earned.
type Rewards struct {
	Achievements []Achievement `json:"achievements,omitempty"`
	LevelUp      *LevelUp      `json:"level_up,omitempty"`
}

type HabitResponse struct {
	Habit Habit `json:"habit"`
	Rewards
}

type CheckInResponse struct {
	Habit          Habit `json:"habit"`
	CompletedToday bool  `json:"completed_today"`
	Rewards
}

type CreateGoalRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	TargetDate   *Date      `json:"target_date,omitempty"`
	SubGoals     []string   `json:"sub_goals"`
	Dependencies []int      `json:"dependencies"`
}

type UpdateGoalRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	TargetDate   *Date      `json:"target_date,omitempty"`
	SubGoals     []SubGoal  `json:"sub_goals,omitempty"`
	Dependencies []int      `json:"dependencies,omitempty"`
}

type UpdateGoalStatusRequest struct {
	Status GoalStatus `json:"status"`
}

type UpdateGoalProgressRequest struct {
	Progress int `json:"progress"`
}

type GoalResponse struct {
	Goal Goal `json:"goal"`
	Rewards
}

type CreateJournalRequest struct {
	Content string   `json:"content"`
	Mood    Mood     `json:"mood"`
	Tags    []string `json:"tags"`
}

type JournalResponse struct {
	Entry JournalEntry `json:"entry"`
	Rewards
}

type UpdateJournalRequest struct {
	Content *string  `json:"content,omitempty"`
	Mood    *Mood    `json:"mood,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type UpdateEmailRequest struct {
	Email *string `json:"email"`
}

// LevelUp reports the outcome of an XP award.
type LevelUp struct {
	XPAwarded     int  `json:"xp_awarded"`
	TotalXP       int  `json:"total_xp"`
	PreviousLevel int  `json:"previous_level"`
	Level         int  `json:"level"`
	LeveledUp     bool `json:"leveled_up"`
	NextLevelXP   int  `json:"next_level_xp"`
}

type PublicProfile struct {
	ID             int           `json:"id"`
	Username       string        `json:"username"`
	Profile        Profile       `json:"profile"`
	Level          int           `json:"level"`
	XP             int           `json:"xp"`
	FollowersCount int           `json:"followers_count"`
	FollowingCount int           `json:"following_count"`
	IsFollowing    bool          `json:"is_following"`
	PublicHabits   []Habit       `json:"public_habits"`
	Achievements   []Achievement `json:"achievements"`
	JoinedAt       time.Time     `json:"joined_at"`
}

type Dashboard struct {
	TotalHabits          int                `json:"total_habits"`
	CompletedToday       int                `json:"completed_today"`
	WeeklyCompletionRate int                `json:"weekly_completion_rate"`
	BestStreak           int                `json:"best_streak"`
	CurrentStreakTotal   int                `json:"current_streak_total"`
	GoalsByStatus        map[GoalStatus]int `json:"goals_by_status"`
	AverageGoalProgress  int                `json:"average_goal_progress"`
	JournalEntries       int                `json:"journal_entries"`
	MoodDistribution     map[Mood]int       `json:"mood_distribution"`
	Achievements         int                `json:"achievements"`
	XP                   int                `json:"xp"`
	Level                int                `json:"level"`
	NextLevelXP          int                `json:"next_level_xp"`
	DailyCompletions     []DayCount         `json:"daily_completions"`
}

type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}
