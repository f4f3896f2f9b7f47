package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"progress/internal/models"
)

const userColumns = `id, username, COALESCE(email, ''), password_hash, verified, verification_code,
	verification_expires_at, bio, avatar, location, website,
	pref_dark_mode, pref_email_notifications, pref_habit_reminders, pref_goal_reminders,
	pref_reminder_days_before, pref_gamification, xp, level, created_at, updated_at`

func scanUser(row scanner) (models.User, error) {
	var u models.User
	var code sql.NullString
	var expires sql.NullTime
	var days sql.NullInt64
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Verified, &code,
		&expires, &u.Profile.Bio, &u.Profile.Avatar, &u.Profile.Location, &u.Profile.Website,
		&u.Preferences.DarkMode, &u.Preferences.EmailNotifications, &u.Preferences.HabitReminders, &u.Preferences.GoalReminders,
		&days, &u.Preferences.Gamification, &u.XP, &u.Level, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return u, err
	}
	u.VerificationCode = code.String
	u.VerificationExpiresAt = timePtr(expires)
	if days.Valid {
		d := int(days.Int64)
		u.Preferences.ReminderDaysBefore = &d
	}
	return u, nil
}

// CreateUser inserts a new unverified user. Duplicate username or email
// yields ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	ts := now()
	p := u.Preferences
	var days any
	if p.ReminderDaysBefore != nil {
		days = *p.ReminderDaysBefore
	}
	var email any
	if u.Email != "" {
		email = u.Email
	}
	if u.Level < 1 {
		u.Level = 1
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, verified, verification_code, verification_expires_at,
			pref_dark_mode, pref_email_notifications, pref_habit_reminders, pref_goal_reminders,
			pref_reminder_days_before, pref_gamification, xp, level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, email, u.PasswordHash, u.Verified, u.VerificationCode, nullTime(u.VerificationExpiresAt),
		p.DarkMode, p.EmailNotifications, p.HabitReminders, p.GoalReminders,
		days, p.Gamification, u.XP, u.Level, ts, ts,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("username or email already exists: %w", ErrConflict)
	}
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = int(id)
	u.CreatedAt, u.UpdatedAt = ts, ts
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int) (models.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	return u, notFound(err, "user")
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username))
	return u, notFound(err, "user")
}

func (s *Store) UpdateProfile(ctx context.Context, userID int, p models.Profile) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE users SET bio = ?, avatar = ?, location = ?, website = ?, updated_at = ? WHERE id = ?",
		p.Bio, p.Avatar, p.Location, p.Website, now(), userID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, "user")
}

func (s *Store) UpdatePreferences(ctx context.Context, userID int, p models.Preferences) error {
	var days any
	if p.ReminderDaysBefore != nil {
		days = *p.ReminderDaysBefore
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE users SET pref_dark_mode = ?, pref_email_notifications = ?, pref_habit_reminders = ?,
			pref_goal_reminders = ?, pref_reminder_days_before = ?, pref_gamification = ?, updated_at = ?
		WHERE id = ?`,
		p.DarkMode, p.EmailNotifications, p.HabitReminders, p.GoalReminders, days, p.Gamification, now(), userID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, "user")
}

// UpdateEmail sets or clears (empty string) the user's email.
func (s *Store) UpdateEmail(ctx context.Context, userID int, email string) error {
	var value any
	if email != "" {
		value = email
	}
	res, err := s.q.ExecContext(ctx, "UPDATE users SET email = ?, updated_at = ? WHERE id = ?", value, now(), userID)
	if isUniqueViolation(err) {
		return fmt.Errorf("email already in use: %w", ErrConflict)
	}
	if err != nil {
		return err
	}
	return rowsAffected(res, "user")
}

func (s *Store) SetVerificationCode(ctx context.Context, userID int, code string, expiresAt time.Time) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE users SET verification_code = ?, verification_expires_at = ?, updated_at = ? WHERE id = ?",
		code, expiresAt.UTC(), now(), userID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, "user")
}

func (s *Store) MarkVerified(ctx context.Context, userID int) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE users SET verified = 1, verification_code = NULL, verification_expires_at = NULL, updated_at = ? WHERE id = ?",
		now(), userID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, "user")
}

// SaveXP persists the gamification counters.
func (s *Store) SaveXP(ctx context.Context, userID, xp, level int) error {
	res, err := s.q.ExecContext(ctx, "UPDATE users SET xp = ?, level = ?, updated_at = ? WHERE id = ?", xp, level, now(), userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "user")
}

// ReminderRecipients returns users opted into both goal reminders and email
// notifications that have an address to send to.
func (s *Store) ReminderRecipients(ctx context.Context) ([]models.ReminderRecipient, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, username, email, COALESCE(pref_reminder_days_before, ?)
		FROM users
		WHERE pref_goal_reminders = 1 AND pref_email_notifications = 1
			AND email IS NOT NULL AND email != ''
		ORDER BY id`,
		models.DefaultReminderDaysBefore,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []models.ReminderRecipient{}
	for rows.Next() {
		var r models.ReminderRecipient
		if err := rows.Scan(&r.UserID, &r.Username, &r.Email, &r.ReminderDaysBefore); err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}
