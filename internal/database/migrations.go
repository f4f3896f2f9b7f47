package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// columnExists checks if a column exists on a given table (SQLite PRAGMA table_info)
func columnExists(db *sql.DB, table string, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var cid int
	var name string
	var ctype string
	var notnull int
	var dflt sql.NullString
	var pk int

	for rows.Next() {
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

type columnDef struct {
	table  string
	column string
	ddl    string
}

func addMissingColumns(db *sql.DB, defs []columnDef) error {
	for _, d := range defs {
		exists, err := columnExists(db, d.table, d.column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.table, d.column, d.ddl)); err != nil {
			return fmt.Errorf("add %s.%s: %w", d.table, d.column, err)
		}
	}
	return nil
}

// MigrateAddReminderGuard ensures goals carry the reminder idempotency
// columns (idempotent).
func MigrateAddReminderGuard(db *sql.DB) error {
	return addMissingColumns(db, []columnDef{
		{"goals", "reminder_sent", "BOOLEAN NOT NULL DEFAULT 0"},
		{"goals", "last_reminder_date", "DATETIME"},
	})
}

// MigrateAddHabitReminderStamp ensures habits record their last reminder
// push (idempotent).
func MigrateAddHabitReminderStamp(db *sql.DB) error {
	return addMissingColumns(db, []columnDef{
		{"habits", "last_reminded_at", "DATETIME"},
	})
}

// MigrateAddFirstCompletion ensures goals remember when they were first
// completed (idempotent). Goals completed before the column existed are
// backfilled from completed_at.
func MigrateAddFirstCompletion(db *sql.DB) error {
	exists, err := columnExists(db, "goals", "first_completed_at")
	if err != nil || exists {
		return err
	}
	if err := addMissingColumns(db, []columnDef{{"goals", "first_completed_at", "DATETIME"}}); err != nil {
		return err
	}
	_, err = db.Exec(`UPDATE goals SET first_completed_at = completed_at WHERE completed_at IS NOT NULL`)
	return err
}

// MigrateAddGamification ensures users carry xp/level counters and the
// gamification preference (idempotent).
func MigrateAddGamification(db *sql.DB) error {
	return addMissingColumns(db, []columnDef{
		{"users", "xp", "INTEGER NOT NULL DEFAULT 0"},
		{"users", "level", "INTEGER NOT NULL DEFAULT 1"},
		{"users", "pref_gamification", "BOOLEAN NOT NULL DEFAULT 1"},
	})
}

// MigrateCaseInsensitiveUsers rejects usernames and emails that differ
// only by case. Tables created before the NOCASE columns get unique
// indexes instead (idempotent). Existing case-variant duplicates make this
// fail and must be resolved by hand.
func MigrateCaseInsensitiveUsers(db *sql.DB) error {
	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_nocase ON users(username COLLATE NOCASE)`); err != nil {
		return fmt.Errorf("username index: %w", err)
	}
	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_nocase ON users(email COLLATE NOCASE)`); err != nil {
		return fmt.Errorf("email index: %w", err)
	}
	return nil
}

type habitSeed struct {
	Title, Description, Frequency, Icon, Color, Category string
}

type goalSeed struct {
	Title, Description, Category string
	SubGoals                     []string
}

var habitSeeds = []habitSeed{
	{"Drink water", "Eight glasses a day", "daily", "💧", "#3b82f6", "health"},
	{"Morning walk", "Twenty minutes outside before work", "daily", "🚶", "#22c55e", "health"},
	{"Read", "Read at least ten pages", "daily", "📚", "#a855f7", "learning"},
	{"Meditate", "Ten minutes of quiet", "daily", "🧘", "#14b8a6", "mindfulness"},
	{"Weekly review", "Review the week and plan the next", "weekly", "🗓️", "#f59e0b", "productivity"},
	{"Call family", "Catch up with someone you love", "weekly", "📞", "#ef4444", "social"},
}

var goalSeeds = []goalSeed{
	{"Run a 5K", "Build up to running five kilometres without stopping", "health",
		[]string{"Run 1K", "Run 2K", "Run 3K", "Run 5K"}},
	{"Learn a new language", "Reach conversational level", "learning",
		[]string{"Pick a course", "Finish the basics", "Hold a 10 minute conversation"}},
	{"Build an emergency fund", "Save three months of expenses", "finance",
		[]string{"Calculate monthly expenses", "Open a savings account", "Save one month", "Save three months"}},
}

// SeedTemplates inserts the built-in habit and goal templates. Existing
// templates (matched by title) are left untouched.
func SeedTemplates(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, h := range habitSeeds {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO habit_templates (title, description, frequency, icon, color, category)
			VALUES (?, ?, ?, ?, ?, ?)`,
			h.Title, h.Description, h.Frequency, h.Icon, h.Color, h.Category,
		); err != nil {
			return err
		}
	}

	for _, g := range goalSeeds {
		subGoals, err := json.Marshal(g.SubGoals)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO goal_templates (title, description, category, sub_goals) VALUES (?, ?, ?, ?)`,
			g.Title, g.Description, g.Category, string(subGoals),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Migrate runs every migration and seeds templates.
func Migrate(db *sql.DB) error {
	if err := MigrateAddReminderGuard(db); err != nil {
		return fmt.Errorf("reminder guard: %w", err)
	}
	if err := MigrateAddGamification(db); err != nil {
		return fmt.Errorf("gamification: %w", err)
	}
	if err := MigrateAddFirstCompletion(db); err != nil {
		return fmt.Errorf("first completion: %w", err)
	}
	if err := MigrateAddHabitReminderStamp(db); err != nil {
		return fmt.Errorf("habit reminder stamp: %w", err)
	}
	if err := MigrateCaseInsensitiveUsers(db); err != nil {
		return fmt.Errorf("case-insensitive users: %w", err)
	}
	if err := SeedTemplates(db); err != nil {
		return fmt.Errorf("seed templates: %w", err)
	}
	return nil
}
