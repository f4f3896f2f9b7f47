package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"progress/internal/models"
)

const goalColumns = `id, user_id, title, description, target_date, status, progress,
	reminder_sent, last_reminder_date, completed_at, first_completed_at, created_at, updated_at`

func scanGoal(row scanner) (models.Goal, error) {
	var g models.Goal
	var target, lastReminder, completed, firstCompleted sql.NullTime
	err := row.Scan(
		&g.ID, &g.UserID, &g.Title, &g.Description, &target, &g.Status, &g.Progress,
		&g.ReminderSent, &lastReminder, &completed, &firstCompleted, &g.CreatedAt, &g.UpdatedAt,
	)
	g.TargetDate = timePtr(target)
	g.LastReminderDate = timePtr(lastReminder)
	g.CompletedAt = timePtr(completed)
	g.FirstCompletedAt = timePtr(firstCompleted)
	g.SubGoals = []models.SubGoal{}
	g.Dependencies = []int{}
	g.Collaborators = []string{}
	return g, err
}

// CreateGoal inserts a goal with its sub-goals and dependencies.
func (s *Store) CreateGoal(ctx context.Context, g *models.Goal) error {
	return s.WithTx(ctx, func(tx *Store) error {
		ts := now()
		if g.Status == "" {
			g.Status = models.GoalPending
		}
		res, err := tx.q.ExecContext(ctx,
			`INSERT INTO goals (user_id, title, description, target_date, status, progress, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			g.UserID, g.Title, g.Description, nullTime(g.TargetDate), g.Status, g.Progress, ts, ts,
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		g.ID = int(id)
		g.CreatedAt, g.UpdatedAt = ts, ts
		if err := tx.replaceSubGoals(ctx, g); err != nil {
			return err
		}
		return tx.replaceDependencies(ctx, g)
	})
}

func (s *Store) GetGoal(ctx context.Context, userID, goalID int) (models.Goal, error) {
	g, err := scanGoal(s.q.QueryRowContext(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE id = ? AND user_id = ?", goalID, userID))
	if err != nil {
		return g, notFound(err, "goal")
	}
	return g, s.loadGoalChildren(ctx, &g)
}

// ListGoals returns the user's goals ordered by target date (undated last).
// An empty status lists every goal.
func (s *Store) ListGoals(ctx context.Context, userID int, status models.GoalStatus) ([]models.Goal, error) {
	query := "SELECT " + goalColumns + " FROM goals WHERE user_id = ?"
	args := []any{userID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY target_date IS NULL, target_date ASC, created_at DESC"
	return s.queryGoals(ctx, query, args...)
}

// OpenGoalsWithDeadline returns the user's goals that are not completed and
// have a target date, in target date order.
func (s *Store) OpenGoalsWithDeadline(ctx context.Context, userID int) ([]models.Goal, error) {
	return s.queryGoals(ctx,
		"SELECT "+goalColumns+` FROM goals
		WHERE user_id = ? AND status != 'completed' AND target_date IS NOT NULL
		ORDER BY target_date ASC, id ASC`, userID)
}

func (s *Store) queryGoals(ctx context.Context, query string, args ...any) ([]models.Goal, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	goals := []models.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range goals {
		if err := s.loadGoalChildren(ctx, &goals[i]); err != nil {
			return nil, err
		}
	}
	return goals, nil
}

func (s *Store) loadGoalChildren(ctx context.Context, g *models.Goal) error {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, title, completed FROM sub_goals WHERE goal_id = ? ORDER BY position ASC, id ASC", g.ID)
	if err != nil {
		return err
	}
	g.SubGoals = []models.SubGoal{}
	for rows.Next() {
		var sg models.SubGoal
		if err := rows.Scan(&sg.ID, &sg.Title, &sg.Completed); err != nil {
			rows.Close()
			return err
		}
		g.SubGoals = append(g.SubGoals, sg)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	deps, err := s.q.QueryContext(ctx,
		"SELECT depends_on_id FROM goal_dependencies WHERE goal_id = ? ORDER BY depends_on_id", g.ID)
	if err != nil {
		return err
	}
	g.Dependencies = []int{}
	for deps.Next() {
		var id int
		if err := deps.Scan(&id); err != nil {
			deps.Close()
			return err
		}
		g.Dependencies = append(g.Dependencies, id)
	}
	if err := deps.Err(); err != nil {
		deps.Close()
		return err
	}
	deps.Close()

	g.Collaborators, err = s.goalCollaborators(ctx, g.ID)
	return err
}

func (s *Store) replaceSubGoals(ctx context.Context, g *models.Goal) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM sub_goals WHERE goal_id = ?", g.ID); err != nil {
		return err
	}
	for i := range g.SubGoals {
		res, err := s.q.ExecContext(ctx,
			"INSERT INTO sub_goals (goal_id, title, completed, position) VALUES (?, ?, ?, ?)",
			g.ID, g.SubGoals[i].Title, g.SubGoals[i].Completed, i,
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		g.SubGoals[i].ID = int(id)
	}
	if g.SubGoals == nil {
		g.SubGoals = []models.SubGoal{}
	}
	return nil
}

func (s *Store) replaceDependencies(ctx context.Context, g *models.Goal) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM goal_dependencies WHERE goal_id = ?", g.ID); err != nil {
		return err
	}
	for _, dep := range g.Dependencies {
		if _, err := s.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO goal_dependencies (goal_id, depends_on_id) VALUES (?, ?)", g.ID, dep,
		); err != nil {
			return err
		}
	}
	if g.Dependencies == nil {
		g.Dependencies = []int{}
	}
	return nil
}

// SaveGoal writes every mutable field of g, replacing sub-goals and
// dependencies. Sub-goal ids are reassigned.
func (s *Store) SaveGoal(ctx context.Context, g *models.Goal) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.saveGoalRow(ctx, g); err != nil {
			return err
		}
		if err := tx.replaceSubGoals(ctx, g); err != nil {
			return err
		}
		return tx.replaceDependencies(ctx, g)
	})
}

// SaveGoalState writes status/progress/completion fields and the completed
// flag of each existing sub-goal, keeping sub-goal ids stable.
func (s *Store) SaveGoalState(ctx context.Context, g *models.Goal) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.saveGoalRow(ctx, g); err != nil {
			return err
		}
		for _, sg := range g.SubGoals {
			if _, err := tx.q.ExecContext(ctx,
				"UPDATE sub_goals SET completed = ? WHERE id = ? AND goal_id = ?", sg.Completed, sg.ID, g.ID,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) saveGoalRow(ctx context.Context, g *models.Goal) error {
	g.UpdatedAt = now()
	res, err := s.q.ExecContext(ctx,
		`UPDATE goals SET title = ?, description = ?, target_date = ?, status = ?, progress = ?,
			reminder_sent = ?, last_reminder_date = ?, completed_at = ?, first_completed_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		g.Title, g.Description, nullTime(g.TargetDate), g.Status, g.Progress,
		g.ReminderSent, nullTime(g.LastReminderDate), nullTime(g.CompletedAt), nullTime(g.FirstCompletedAt),
		g.UpdatedAt, g.ID, g.UserID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, "goal")
}

func (s *Store) DeleteGoal(ctx context.Context, userID, goalID int) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM goals WHERE id = ? AND user_id = ?", goalID, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "goal")
}

func (s *Store) CountGoals(ctx context.Context, userID int) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT count(*) FROM goals WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

// OwnedGoalIDs returns which of ids belong to userID.
func (s *Store) OwnedGoalIDs(ctx context.Context, userID int, ids []int) (map[int]bool, error) {
	owned := map[int]bool{}
	if len(ids) == 0 {
		return owned, nil
	}
	args := append([]any{userID}, intArgs(ids)...)
	rows, err := s.q.QueryContext(ctx,
		fmt.Sprintf("SELECT id FROM goals WHERE user_id = ? AND id IN (%s)", placeholders(len(ids))), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owned[id] = true
	}
	return owned, rows.Err()
}

// MarkGoalsReminded sets the reminder guard on every goal in ids with a
// single statement.
func (s *Store) MarkGoalsReminded(ctx context.Context, ids []int, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{at.UTC()}, intArgs(ids)...)
	_, err := s.q.ExecContext(ctx,
		fmt.Sprintf("UPDATE goals SET reminder_sent = 1, last_reminder_date = ? WHERE id IN (%s)", placeholders(len(ids))),
		args...,
	)
	return err
}
