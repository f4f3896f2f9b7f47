package store

import (
	"context"

	"progress/internal/models"
)

const journalColumns = "id, user_id, content, mood, tags, created_at, updated_at"

func scanJournal(row scanner) (models.JournalEntry, error) {
	var e models.JournalEntry
	var tags string
	err := row.Scan(&e.ID, &e.UserID, &e.Content, &e.Mood, &tags, &e.CreatedAt, &e.UpdatedAt)
	e.Tags = decodeList(tags)
	return e, err
}

func (s *Store) CreateJournalEntry(ctx context.Context, e *models.JournalEntry) error {
	ts := now()
	res, err := s.q.ExecContext(ctx,
		"INSERT INTO journal_entries (user_id, content, mood, tags, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		e.UserID, e.Content, e.Mood, encodeList(e.Tags), ts, ts,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = int(id)
	e.CreatedAt, e.UpdatedAt = ts, ts
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return nil
}

func (s *Store) GetJournalEntry(ctx context.Context, userID, entryID int) (models.JournalEntry, error) {
	e, err := scanJournal(s.q.QueryRowContext(ctx,
		"SELECT "+journalColumns+" FROM journal_entries WHERE id = ? AND user_id = ?", entryID, userID))
	return e, notFound(err, "journal entry")
}

// JournalFilter narrows ListJournalEntries. Zero values match everything.
type JournalFilter struct {
	Mood models.Mood
	Tag  string
}

func (s *Store) ListJournalEntries(ctx context.Context, userID int, f JournalFilter) ([]models.JournalEntry, error) {
	query := "SELECT " + journalColumns + " FROM journal_entries WHERE user_id = ?"
	args := []any{userID}
	if f.Mood != "" {
		query += " AND mood = ?"
		args = append(args, f.Mood)
	}
	if f.Tag != "" {
		query += " AND EXISTS (SELECT 1 FROM json_each(journal_entries.tags) WHERE json_each.value = ?)"
		args = append(args, f.Tag)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.JournalEntry{}
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) UpdateJournalEntry(ctx context.Context, e *models.JournalEntry) error {
	e.UpdatedAt = now()
	res, err := s.q.ExecContext(ctx,
		"UPDATE journal_entries SET content = ?, mood = ?, tags = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		e.Content, e.Mood, encodeList(e.Tags), e.UpdatedAt, e.ID, e.UserID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, "journal entry")
}

func (s *Store) DeleteJournalEntry(ctx context.Context, userID, entryID int) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM journal_entries WHERE id = ? AND user_id = ?", entryID, userID)
	if err != nil {
		return err
	}
	return rowsAffected(res, "journal entry")
}

func (s *Store) CountJournalEntries(ctx context.Context, userID int) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT count(*) FROM journal_entries WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

// MoodCounts returns the number of entries per mood.
func (s *Store) MoodCounts(ctx context.Context, userID int) (map[models.Mood]int, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT mood, count(*) FROM journal_entries WHERE user_id = ? GROUP BY mood", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[models.Mood]int{}
	for _, m := range models.Moods {
		counts[m] = 0
	}
	for rows.Next() {
		var mood models.Mood
		var n int
		if err := rows.Scan(&mood, &n); err != nil {
			return nil, err
		}
		counts[mood] = n
	}
	return counts, rows.Err()
}
