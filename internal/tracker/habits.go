package tracker

import (
	"time"

	"progress/internal/models"
)

// DayBounds returns the local midnight that starts t's day and the midnight
// that ends it.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// completionOn returns the index of the first completion inside [start, end),
// or -1.
func completionOn(h *models.Habit, start, end time.Time) int {
	for i, c := range h.Completions {
		if !c.CompletedAt.Before(start) && c.CompletedAt.Before(end) {
			return i
		}
	}
	return -1
}

// CompletedToday reports whether h has a completion in now's local day.
func CompletedToday(h *models.Habit, now time.Time, loc *time.Location) bool {
	start, end := DayBounds(now, loc)
	return completionOn(h, start, end) >= 0
}

// Toggle is the outcome of ToggleCompletion.
type Toggle struct {
	// Completed is true when a completion was added.
	Completed bool
	// RemovedID is the id of the completion removed when Completed is false.
	RemovedID int
	// Milestone is set when the streak landed exactly on 7 or 30.
	Milestone models.AchievementType
}

// ToggleCompletion flips today's completion of h in place. Adding a
// completion increments the streak; removing one decrements it, never below
// zero. The streak is a running counter and is not recomputed from the
// completion list.
func ToggleCompletion(h *models.Habit, now time.Time, loc *time.Location) Toggle {
	start, end := DayBounds(now, loc)
	if i := completionOn(h, start, end); i >= 0 {
		removed := h.Completions[i]
		h.Completions = append(h.Completions[:i:i], h.Completions[i+1:]...)
		if h.Streak > 0 {
			h.Streak--
		}
		return Toggle{RemovedID: removed.ID}
	}

	h.Completions = append(h.Completions, models.Completion{CompletedAt: now.UTC()})
	h.Streak++

	t := Toggle{Completed: true}
	switch h.Streak {
	case 7:
		t.Milestone = models.AchievementWeekStreak
	case 30:
		t.Milestone = models.AchievementMonthStreak
	}
	return t
}

// PerfectWeek reports whether the user has at least one daily habit and every
// daily habit has a completion on each of the seven days ending today.
func PerfectWeek(habits []models.Habit, now time.Time, loc *time.Location) bool {
	daily := 0
	today, _ := DayBounds(now, loc)
	for i := range habits {
		if habits[i].Frequency != models.FrequencyDaily {
			continue
		}
		daily++
		for d := 0; d < 7; d++ {
			start := today.AddDate(0, 0, -d)
			if completionOn(&habits[i], start, start.AddDate(0, 0, 1)) < 0 {
				return false
			}
		}
	}
	return daily > 0
}
