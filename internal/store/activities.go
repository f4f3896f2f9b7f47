package store

import (
	"context"
	"database/sql"

	"progress/internal/models"
)

func scanActivity(row scanner) (models.Activity, error) {
	var a models.Activity
	var refID, value sql.NullInt64
	err := row.Scan(&a.ID, &a.UserID, &a.Username, &a.Type, &a.Title, &a.Description,
		&refID, &a.Metadata.Icon, &value, &a.CreatedAt)
	a.Metadata.RefID = int(refID.Int64)
	a.Metadata.Value = int(value.Int64)
	return a, err
}

// AddActivity appends a feed entry.
func (s *Store) AddActivity(ctx context.Context, a *models.Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	var refID, value any
	if a.Metadata.RefID != 0 {
		refID = a.Metadata.RefID
	}
	if a.Metadata.Value != 0 {
		value = a.Metadata.Value
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO activities (user_id, type, title, description, ref_id, icon, value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Type, a.Title, a.Description, refID, a.Metadata.Icon, value, a.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	a.ID = int(id)
	return err
}

func (s *Store) listActivities(ctx context.Context, where string, args ...any) ([]models.Activity, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT a.id, a.user_id, u.username, a.type, a.title, a.description, a.ref_id, a.icon, a.value, a.created_at
		FROM activities a JOIN users u ON u.id = a.user_id
		WHERE `+where+`
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListActivities returns the user's own activity, newest first.
func (s *Store) ListActivities(ctx context.Context, userID, limit int) ([]models.Activity, error) {
	return s.listActivities(ctx, "a.user_id = ?", userID, limit)
}

// Feed returns activity from the user and everyone they follow.
func (s *Store) Feed(ctx context.Context, userID, limit int) ([]models.Activity, error) {
	return s.listActivities(ctx,
		"(a.user_id = ? OR a.user_id IN (SELECT followee_id FROM follows WHERE follower_id = ?))",
		userID, userID, limit)
}
