package gamification

import (
	"math"

	"progress/internal/models"
)

// XP awarded per action.
const (
	XPHabitCompleted   = 10
	XPSubGoalCompleted = 5
	XPGoalCompleted    = 50
	XPJournalEntry     = 5
	XPAchievement      = 20
)

// Threshold is the cumulative XP needed to leave level L.
func Threshold(level int) int {
	if level < 1 {
		level = 1
	}
	return int(math.Floor(100 * math.Pow(float64(level), 1.5)))
}

// Award adds xp to the user's cumulative total and applies every level-up it
// crosses. It returns nil without touching the user when gamification is off.
func Award(user *models.User, xp int) *models.LevelUp {
	if !user.Preferences.Gamification || xp <= 0 {
		return nil
	}
	if user.Level < 1 {
		user.Level = 1
	}

	previous := user.Level
	user.XP += xp
	for user.XP >= Threshold(user.Level) {
		user.Level++
	}

	return &models.LevelUp{
		XPAwarded:     xp,
		TotalXP:       user.XP,
		PreviousLevel: previous,
		Level:         user.Level,
		LeveledUp:     user.Level > previous,
		NextLevelXP:   Threshold(user.Level),
	}
}
