package store

import (
	"context"
	"database/sql"
	"time"

	"progress/internal/models"
)

const habitColumns = `id, user_id, title, description, frequency, streak, icon, color, category, tags,
	reminder_enabled, reminder_time, last_reminded_at, is_public, created_at, updated_at`

func scanHabit(row scanner) (models.Habit, error) {
	var h models.Habit
	var tags string
	var reminded sql.NullTime
	err := row.Scan(
		&h.ID, &h.UserID, &h.Title, &h.Description, &h.Frequency, &h.Streak, &h.Icon, &h.Color, &h.Category, &tags,
		&h.Reminder.Enabled, &h.Reminder.Time, &reminded, &h.IsPublic, &h.CreatedAt, &h.UpdatedAt,
	)
	h.LastRemindedAt = timePtr(reminded)
	h.Tags = decodeList(tags)
	h.Completions = []models.Completion{}
	h.Notes = []models.HabitNote{}
	return h, err
}

func (s *Store) CreateHabit(ctx context.Context, h *models.Habit) error {
	ts := now()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO habits (user_id, title, description, frequency, streak, icon, color, category, tags,
			reminder_enabled, reminder_time, is_public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.UserID, h.Title, h.Description, h.Frequency, h.Streak, h.Icon, h.Color, h.Category, encodeList(h.Tags),
		h.Reminder.Enabled, h.Reminder.Time, h.IsPublic, ts, ts,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = int(id)
	h.CreatedAt, h.UpdatedAt = ts, ts
	if h.Tags == nil {
		h.Tags = []string{}
	}
	if h.Completions == nil {
		h.Completions = []models.Completion{}
	}
	if h.Notes == nil {
		h.Notes = []models.HabitNote{}
	}
	return nil
}

// GetHabit loads a habit owned by userID together with its completions and notes.
func (s *Store) GetHabit(ctx context.Context, userID, habitID int) (models.Habit, error) {
	h, err := scanHabit(s.q.QueryRowContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE id = ? AND user_id = ?", habitID, userID))
	if err != nil {
		return h, notFound(err, "habit")
	}
	if h.Completions, err = s.completions(ctx, habitID); err != nil {
		return h, err
	}
	h.Notes, err = s.notes(ctx, habitID)
	return h, err
}

// ListHabits returns the user's habits, newest first. publicOnly restricts the
// result to habits shown on the public profile.
func (s *Store) ListHabits(ctx context.Context, userID int, publicOnly bool) ([]models.Habit, error) {
	query := "SELECT " + habitColumns + " FROM habits WHERE user_id = ?"
	if publicOnly {
		query += " AND is_public = 1"
	}
	query += " ORDER BY created_at DESC, id DESC"
	return s.queryHabits(ctx, query, userID)
}

// HabitReminderCandidates returns habits with a reminder time whose owners
// want habit reminders and have at least one push subscription.
func (s *Store) HabitReminderCandidates(ctx context.Context) ([]models.Habit, error) {
	return s.queryHabits(ctx, `SELECT `+habitColumns+` FROM habits
		WHERE reminder_enabled = 1 AND reminder_time != ''
			AND user_id IN (SELECT id FROM users WHERE pref_habit_reminders = 1)
			AND user_id IN (SELECT user_id FROM push_subscriptions)
		ORDER BY user_id, id`)
}

// MarkHabitReminded stamps the habit's last reminder time.
func (s *Store) MarkHabitReminded(ctx context.Context, habitID int, at time.Time) error {
	res, err := s.q.ExecContext(ctx, "UPDATE habits SET last_reminded_at = ? WHERE id = ?", at.UTC(), habitID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "habit")
}

func (s *Store) queryHabits(ctx context.Context, query string, args ...any) ([]models.Habit, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range habits {
		if habits[i].Completions, err = s.completions(ctx, habits[i].ID); err != nil {
			return nil, err
		}
		if habits[i].Notes, err = s.notes(ctx, habits[i].ID); err != nil {
			return nil, err
		}
	}
	return habits, nil
}

func (s *Store) completions(ctx context.Context, habitID int) ([]models.Completion, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, completed_at FROM habit_completions WHERE habit_id = ? ORDER BY completed_at ASC, id ASC", habitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Completion{}
	for rows.Next() {
		var c models.Completion
		if err := rows.Scan(&c.ID, &c.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) notes(ctx context.Context, habitID int) ([]models.HabitNote, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, content, created_at FROM habit_notes WHERE habit_id = ? ORDER BY created_at ASC, id ASC", habitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.HabitNote{}
	for rows.Next() {
		var n models.HabitNote
		if err := rows.Scan(&n.ID, &n.Content, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpdateHabit saves the editable fields of h.
func (s *Store) UpdateHabit(ctx context.Context, h *models.Habit) error {
	h.UpdatedAt = now()
	res, err := s.q.ExecContext(ctx,
		`UPDATE habits SET title = ?, description = ?, frequency = ?, icon = ?, color = ?, category = ?, tags = ?,
			reminder_enabled = ?, reminder_time = ?, is_public = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		h.Title, h.Description, h.Frequency, h.Icon, h.Color, h.Category, encodeList(h.Tags),
		h.Reminder.Enabled, h.Reminder.Time, h.IsPublic, h.UpdatedAt, h.ID, h.UserID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, "habit")
}

func (s *Store) DeleteHabit(ctx context.Context, userID, habitID int) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM habits WHERE id = ? AND user_id = ?", habitID, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "habit")
}

func (s *Store) CountHabits(ctx context.Context, userID int) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT count(*) FROM habits WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

// AddCompletion records a completion and the resulting streak.
func (s *Store) AddCompletion(ctx context.Context, habitID int, at time.Time, streak int) (models.Completion, error) {
	c := models.Completion{CompletedAt: at.UTC()}
	err := s.WithTx(ctx, func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx,
			"INSERT INTO habit_completions (habit_id, completed_at) VALUES (?, ?)", habitID, c.CompletedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		c.ID = int(id)
		return tx.setStreak(ctx, habitID, streak)
	})
	return c, err
}

// RemoveCompletion deletes a completion and records the resulting streak.
func (s *Store) RemoveCompletion(ctx context.Context, habitID, completionID int, streak int) error {
	return s.WithTx(ctx, func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx,
			"DELETE FROM habit_completions WHERE id = ? AND habit_id = ?", completionID, habitID)
		if err != nil {
			return err
		}
		if err := rowsAffected(res, "completion"); err != nil {
			return err
		}
		return tx.setStreak(ctx, habitID, streak)
	})
}

func (s *Store) setStreak(ctx context.Context, habitID, streak int) error {
	res, err := s.q.ExecContext(ctx, "UPDATE habits SET streak = ?, updated_at = ? WHERE id = ?", streak, now(), habitID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "habit")
}

func (s *Store) AddHabitNote(ctx context.Context, habitID int, content string) (models.HabitNote, error) {
	n := models.HabitNote{Content: content, CreatedAt: now()}
	res, err := s.q.ExecContext(ctx,
		"INSERT INTO habit_notes (habit_id, content, created_at) VALUES (?, ?, ?)", habitID, content, n.CreatedAt)
	if err != nil {
		return n, err
	}
	id, err := res.LastInsertId()
	n.ID = int(id)
	return n, err
}

func (s *Store) DeleteHabitNote(ctx context.Context, habitID, noteID int) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM habit_notes WHERE id = ? AND habit_id = ?", noteID, habitID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "note")
}

// CompletionsSince returns completion times of the user's habits at or after since.
func (s *Store) CompletionsSince(ctx context.Context, userID int, since time.Time) ([]time.Time, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT c.completed_at FROM habit_completions c JOIN habits h ON h.id = c.habit_id
		WHERE h.user_id = ? AND c.completed_at >= ? ORDER BY c.completed_at`, userID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
