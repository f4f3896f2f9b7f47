package models

import "time"

// DefaultReminderDaysBefore applies when a user never set a lead time.
const DefaultReminderDaysBefore = 3

type Preferences struct {
	DarkMode           bool `json:"darkMode"`
	EmailNotifications bool `json:"emailNotifications"`
	HabitReminders     bool `json:"habitReminders"`
	GoalReminders      bool `json:"goalReminders"`
	ReminderDaysBefore *int `json:"reminderDaysBefore,omitempty"`
	Gamification       bool `json:"gamification"`
}

// LeadDays returns the reminder lead time, defaulting when unset.
func (p Preferences) LeadDays() int {
	if p.ReminderDaysBefore == nil {
		return DefaultReminderDaysBefore
	}
	return *p.ReminderDaysBefore
}

// DefaultPreferences are applied at registration.
func DefaultPreferences() Preferences {
	days := DefaultReminderDaysBefore
	return Preferences{
		EmailNotifications: true,
		HabitReminders:     true,
		GoalReminders:      true,
		ReminderDaysBefore: &days,
		Gamification:       true,
	}
}

type Profile struct {
	Bio      string `json:"bio"`
	Avatar   string `json:"avatar"`
	Location string `json:"location"`
	Website  string `json:"website"`
}

type User struct {
	ID                    int         `json:"id"`
	Username              string      `json:"username"`
	Email                 string      `json:"email,omitempty"`
	PasswordHash          string      `json:"-"`
	Verified              bool        `json:"verified"`
	VerificationCode      string      `json:"-"`
	VerificationExpiresAt *time.Time  `json:"-"`
	Profile               Profile     `json:"profile"`
	Preferences           Preferences `json:"preferences"`
	XP                    int         `json:"xp"`
	Level                 int         `json:"level"`
	Followers             []UserRef   `json:"followers,omitempty"`
	Following             []UserRef   `json:"following,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// UserRef is the public handle of another user.
type UserRef struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

type Completion struct {
	ID          int       `json:"id"`
	CompletedAt time.Time `json:"completed_at"`
}

type HabitNote struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type HabitReminder struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time,omitempty"` // HH:MM
}

type Habit struct {
	ID          int           `json:"id"`
	UserID      int           `json:"user_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Frequency   Frequency     `json:"frequency"`
	Streak      int           `json:"streak"`
	Completions []Completion  `json:"completions"`
	Icon        string        `json:"icon"`
	Color       string        `json:"color"`
	Category    string        `json:"category"`
	Tags        []string      `json:"tags"`
	Reminder    HabitReminder `json:"reminder"`
	IsPublic    bool          `json:"is_public"`
	Notes       []HabitNote   `json:"notes"`
	// LastRemindedAt is when the last habit reminder push went out.
	LastRemindedAt *time.Time `json:"last_reminded_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type GoalStatus string

const (
	GoalPending    GoalStatus = "pending"
	GoalInProgress GoalStatus = "in-progress"
	GoalCompleted  GoalStatus = "completed"
)

func (s GoalStatus) Valid() bool {
	return s == GoalPending || s == GoalInProgress || s == GoalCompleted
}

type SubGoal struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type Goal struct {
	ID               int        `json:"id"`
	UserID           int        `json:"user_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	TargetDate       *time.Time `json:"target_date,omitempty"`
	Status           GoalStatus `json:"status"`
	Progress         int        `json:"progress"`
	SubGoals         []SubGoal  `json:"sub_goals"`
	Dependencies     []int      `json:"dependencies"`
	Collaborators    []string   `json:"collaborators"`
	ReminderSent     bool       `json:"reminder_sent"`
	LastReminderDate *time.Time `json:"last_reminder_date,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	FirstCompletedAt *time.Time `json:"first_completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type Mood string

const (
	MoodTerrible Mood = "terrible"
	MoodBad      Mood = "bad"
	MoodNeutral  Mood = "neutral"
	MoodGood     Mood = "good"
	MoodGreat    Mood = "great"
)

// Moods lists every mood from worst to best.
var Moods = []Mood{MoodTerrible, MoodBad, MoodNeutral, MoodGood, MoodGreat}

func (m Mood) Valid() bool {
	for _, v := range Moods {
		if m == v {
			return true
		}
	}
	return false
}

type JournalEntry struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Content   string    `json:"content"`
	Mood      Mood      `json:"mood"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AchievementType string

const (
	AchievementFirstHabit    AchievementType = "first_habit"
	AchievementWeekStreak    AchievementType = "week_streak"
	AchievementMonthStreak   AchievementType = "month_streak"
	AchievementFirstGoal     AchievementType = "first_goal"
	AchievementGoalCompleted AchievementType = "goal_completed"
	AchievementJournalEntry  AchievementType = "journal_entry"
	AchievementPerfectWeek   AchievementType = "perfect_week"
)

type Achievement struct {
	ID          int             `json:"id"`
	UserID      int             `json:"user_id"`
	Type        AchievementType `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Icon        string          `json:"icon"`
	Shared      bool            `json:"shared"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ActivityType string

const (
	ActivityHabitCreated      ActivityType = "habit_created"
	ActivityHabitCompleted    ActivityType = "habit_completed"
	ActivityGoalCreated       ActivityType = "goal_created"
	ActivityGoalCompleted     ActivityType = "goal_completed"
	ActivityJournalEntry      ActivityType = "journal_entry"
	ActivityAchievementEarned ActivityType = "achievement_earned"
	ActivityLevelUp           ActivityType = "level_up"
)

type ActivityMetadata struct {
	RefID int    `json:"ref_id,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Value int    `json:"value,omitempty"`
}

type Activity struct {
	ID          int              `json:"id"`
	UserID      int              `json:"user_id"`
	Username    string           `json:"username,omitempty"`
	Type        ActivityType     `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Metadata    ActivityMetadata `json:"metadata"`
	CreatedAt   time.Time        `json:"created_at"`
}

type HabitTemplate struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Frequency   Frequency `json:"frequency"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	Category    string    `json:"category"`
	Popularity  int       `json:"popularity"`
}

type GoalTemplate struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	SubGoals    []string `json:"sub_goals"`
	Popularity  int      `json:"popularity"`
}

type PushSubscription struct {
	ID       int    `json:"id"`
	UserID   int    `json:"user_id"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// ReminderRecipient is a user who opted into goal reminder emails.
type ReminderRecipient struct {
	UserID             int
	Username           string
	Email              string
	ReminderDaysBefore int
}
