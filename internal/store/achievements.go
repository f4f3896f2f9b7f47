package store

import (
	"context"
	"database/sql"
	"time"

	"progress/internal/models"
)

const achievementColumns = "id, user_id, type, title, description, icon, shared, created_at"

func scanAchievement(row scanner) (models.Achievement, error) {
	var a models.Achievement
	err := row.Scan(&a.ID, &a.UserID, &a.Type, &a.Title, &a.Description, &a.Icon, &a.Shared, &a.CreatedAt)
	return a, err
}

func (s *Store) CreateAchievement(ctx context.Context, a *models.Achievement) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO achievements (user_id, type, title, description, icon, shared, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Type, a.Title, a.Description, a.Icon, a.Shared, a.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	a.ID = int(id)
	return err
}

// ListAchievements returns the user's achievements, newest first.
func (s *Store) ListAchievements(ctx context.Context, userID int, sharedOnly bool) ([]models.Achievement, error) {
	query := "SELECT " + achievementColumns + " FROM achievements WHERE user_id = ?"
	if sharedOnly {
		query += " AND shared = 1"
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Achievement{}
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SetAchievementShared(ctx context.Context, userID, achievementID int, shared bool) (models.Achievement, error) {
	res, err := s.q.ExecContext(ctx,
		"UPDATE achievements SET shared = ? WHERE id = ? AND user_id = ?", shared, achievementID, userID)
	if err != nil {
		return models.Achievement{}, err
	}
	if err := rowsAffected(res, "achievement"); err != nil {
		return models.Achievement{}, err
	}
	a, err := scanAchievement(s.q.QueryRowContext(ctx,
		"SELECT "+achievementColumns+" FROM achievements WHERE id = ?", achievementID))
	return a, notFound(err, "achievement")
}

// LatestAchievement returns when the user last earned an achievement of type t.
func (s *Store) LatestAchievement(ctx context.Context, userID int, t models.AchievementType) (*time.Time, error) {
	var latest sql.NullTime
	err := s.q.QueryRowContext(ctx,
		"SELECT created_at FROM achievements WHERE user_id = ? AND type = ? ORDER BY created_at DESC LIMIT 1",
		userID, t,
	).Scan(&latest)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return timePtr(latest), nil
}

func (s *Store) CountAchievements(ctx context.Context, userID int) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT count(*) FROM achievements WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

// CountAchievementsOfType is used by tests and the dashboard.
func (s *Store) CountAchievementsOfType(ctx context.Context, userID int, t models.AchievementType) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		"SELECT count(*) FROM achievements WHERE user_id = ? AND type = ?", userID, t).Scan(&n)
	return n, err
}
