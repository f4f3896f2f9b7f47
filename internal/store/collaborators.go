package store

import (
	"context"
	"errors"
	"fmt"

	"progress/internal/models"
)

var ErrSelfCollaborator = errors.New("owner cannot be a collaborator")

// AddGoalCollaborator shares the goal with userID. The caller checks that
// the goal belongs to ownerID.
func (s *Store) AddGoalCollaborator(ctx context.Context, ownerID, goalID, userID int) error {
	if ownerID == userID {
		return ErrSelfCollaborator
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO goal_collaborators (goal_id, user_id, created_at) VALUES (?, ?, ?)", goalID, userID, now())
	if isUniqueViolation(err) {
		return fmt.Errorf("already a collaborator: %w", ErrConflict)
	}
	return err
}

func (s *Store) RemoveGoalCollaborator(ctx context.Context, goalID, userID int) error {
	res, err := s.q.ExecContext(ctx,
		"DELETE FROM goal_collaborators WHERE goal_id = ? AND user_id = ?", goalID, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "collaborator")
}

// ListSharedGoals returns goals other users shared with userID, by target
// date.
func (s *Store) ListSharedGoals(ctx context.Context, userID int) ([]models.Goal, error) {
	return s.queryGoals(ctx,
		"SELECT "+goalColumns+` FROM goals
		WHERE id IN (SELECT goal_id FROM goal_collaborators WHERE user_id = ?)
		ORDER BY target_date IS NULL, target_date ASC, created_at DESC`, userID)
}

func (s *Store) goalCollaborators(ctx context.Context, goalID int) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT u.username FROM goal_collaborators c JOIN users u ON u.id = c.user_id
		WHERE c.goal_id = ? ORDER BY u.username`, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
