package tracker

import (
	"math"
	"time"

	"progress/internal/models"
)

const dateLayout = "2006-01-02"

// WeeklyCompletionRate is the percentage of expected check-ins done over the
// seven days ending today. A daily habit expects one per day, a weekly habit
// one per week.
func WeeklyCompletionRate(habits []models.Habit, now time.Time, loc *time.Location) int {
	today, end := DayBounds(now, loc)
	start := today.AddDate(0, 0, -6)

	expected, actual := 0, 0
	for i := range habits {
		h := &habits[i]
		if h.Frequency == models.FrequencyWeekly {
			expected++
			if completionOn(h, start, end) >= 0 {
				actual++
			}
			continue
		}
		for d := 0; d < 7; d++ {
			dayStart := start.AddDate(0, 0, d)
			expected++
			if completionOn(h, dayStart, dayStart.AddDate(0, 0, 1)) >= 0 {
				actual++
			}
		}
	}
	if expected == 0 {
		return 0
	}
	return int(math.Round(100 * float64(actual) / float64(expected)))
}

// DailyCounts buckets completion times into the last days local days, oldest
// first.
func DailyCounts(completions []time.Time, days int, now time.Time, loc *time.Location) []models.DayCount {
	today, _ := DayBounds(now, loc)
	out := make([]models.DayCount, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := today.AddDate(0, 0, i-days+1).Format(dateLayout)
		out[i] = models.DayCount{Date: key}
		index[key] = i
	}
	for _, c := range completions {
		if i, ok := index[c.In(loc).Format(dateLayout)]; ok {
			out[i].Count++
		}
	}
	return out
}

// GoalSummary counts goals by status and averages their progress.
func GoalSummary(goals []models.Goal) (map[models.GoalStatus]int, int) {
	byStatus := map[models.GoalStatus]int{
		models.GoalPending:    0,
		models.GoalInProgress: 0,
		models.GoalCompleted:  0,
	}
	if len(goals) == 0 {
		return byStatus, 0
	}
	total := 0
	for _, g := range goals {
		byStatus[g.Status]++
		total += g.Progress
	}
	return byStatus, int(math.Round(float64(total) / float64(len(goals))))
}
