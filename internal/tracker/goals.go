package tracker

import (
	"math"
	"time"

	"progress/internal/models"
)

// DeriveProgress recomputes progress and status from the sub-goal checklist:
// progress is round(100*done/total) and the goal is completed exactly when
// progress reaches 100. Goals without sub-goals are left alone and false is
// returned.
func DeriveProgress(g *models.Goal, now time.Time) bool {
	if len(g.SubGoals) == 0 {
		return false
	}
	done := 0
	for _, sg := range g.SubGoals {
		if sg.Completed {
			done++
		}
	}
	g.Progress = int(math.Round(100 * float64(done) / float64(len(g.SubGoals))))
	if g.Progress == 100 {
		setStatus(g, models.GoalCompleted, now)
	} else {
		setStatus(g, models.GoalInProgress, now)
	}
	return true
}

// ApplyStatus sets the status directly. Completed forces progress to 100,
// anything else resets it to 0.
func ApplyStatus(g *models.Goal, status models.GoalStatus, now time.Time) {
	setStatus(g, status, now)
	if status == models.GoalCompleted {
		g.Progress = 100
	} else {
		g.Progress = 0
	}
}

// ApplyProgress sets a manual progress value and the matching status.
func ApplyProgress(g *models.Goal, progress int, now time.Time) {
	g.Progress = progress
	switch {
	case progress >= 100:
		setStatus(g, models.GoalCompleted, now)
	case progress > 0:
		setStatus(g, models.GoalInProgress, now)
	default:
		setStatus(g, models.GoalPending, now)
	}
}

func setStatus(g *models.Goal, status models.GoalStatus, now time.Time) {
	if status == models.GoalCompleted && g.Status != models.GoalCompleted {
		t := now.UTC()
		g.CompletedAt = &t
	}
	if status != models.GoalCompleted {
		g.CompletedAt = nil
	}
	g.Status = status
}
