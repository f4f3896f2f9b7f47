package tracker

import "progress/internal/models"

type badge struct {
	title, description, icon string
}

var badges = map[models.AchievementType]badge{
	models.AchievementFirstHabit:    {"First Step", "Created your first habit", "🌱"},
	models.AchievementWeekStreak:    {"Week Warrior", "Kept a habit going for 7 days", "🔥"},
	models.AchievementMonthStreak:   {"Monthly Master", "Kept a habit going for 30 days", "🏆"},
	models.AchievementFirstGoal:     {"Goal Setter", "Created your first goal", "🎯"},
	models.AchievementGoalCompleted: {"Achiever", "Completed your first goal", "✅"},
	models.AchievementJournalEntry:  {"Dear Diary", "Wrote your first journal entry", "📓"},
	models.AchievementPerfectWeek:   {"Perfect Week", "Completed every daily habit for seven days", "⭐"},
}

// NewAchievement builds an unsaved achievement of type t for the user.
func NewAchievement(userID int, t models.AchievementType) models.Achievement {
	b := badges[t]
	return models.Achievement{
		UserID:      userID,
		Type:        t,
		Title:       b.title,
		Description: b.description,
		Icon:        b.icon,
	}
}
