package database

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// sqliteHeader starts every unencrypted sqlite file.
var sqliteHeader = []byte("SQLite format 3\x00")

// Initialize opens (creating if needed) an unencrypted sqlite database at
// dbPath and ensures the schema exists. ":memory:" yields a private
// in-memory database.
func Initialize(dbPath string) (*sql.DB, error) {
	return Open(dbPath, "")
}

// Open is Initialize with an optional SQLCipher key. The key is applied on
// every pooled connection and only takes effect when the binary is linked
// against SQLCipher.
func Open(dbPath, encryptionKey string) (*sql.DB, error) {
	inMemory := dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")

	if !inMemory {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		// An existing file that is not plain sqlite cannot be opened without a key.
		if encryptionKey == "" {
			encrypted, err := looksEncrypted(dbPath)
			if err != nil {
				return nil, err
			}
			if encrypted {
				return nil, fmt.Errorf("existing database at %s is encrypted: DB_ENCRYPTION_KEY must be set to open it", dbPath)
			}
		}
	}

	// Connection pragmas go in the DSN so that every pooled connection gets them.
	drv := &sqlite3.SQLiteDriver{ConnectHook: connectHook(encryptionKey, !inMemory)}
	db := sql.OpenDB(connector{dsn: withParams(dbPath, "_foreign_keys=on", "_busy_timeout=5000"), drv: drv})

	// Every new connection to ":memory:" is a fresh empty database.
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	// Fails when the key is wrong or the file is not a database.
	var count int
	if err := db.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&count); err != nil {
		db.Close()
		if encryptionKey != "" {
			return nil, fmt.Errorf("database inaccessible with provided encryption key: %w", err)
		}
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func connectHook(key string, wal bool) func(*sqlite3.SQLiteConn) error {
	return func(conn *sqlite3.SQLiteConn) error {
		if key != "" {
			esc := strings.ReplaceAll(key, "'", "''")
			if _, err := conn.Exec(fmt.Sprintf("PRAGMA key = '%s'", esc), nil); err != nil {
				return fmt.Errorf("failed to set database encryption key: %w", err)
			}
			_, _ = conn.Exec("PRAGMA cipher_compatibility = 4", nil)
		}
		if wal {
			_, _ = conn.Exec("PRAGMA journal_mode = WAL", nil)
		}
		return nil
	}
}

// connector lets database/sql open connections through a driver value
// carrying the connect hook, without registering a global driver name.
type connector struct {
	dsn string
	drv *sqlite3.SQLiteDriver
}

func (c connector) Connect(context.Context) (driver.Conn, error) {
	return c.drv.Open(c.dsn)
}

func (c connector) Driver() driver.Driver {
	return c.drv
}

func withParams(dsn string, params ...string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func looksEncrypted(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, len(sqliteHeader))
	n, err := io.ReadFull(f, header)
	if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
		return false, nil
	}
	if err != nil {
		return true, nil
	}
	return !bytes.Equal(header, sqliteHeader), nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL COLLATE NOCASE,
		email TEXT UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT 0,
		verification_code TEXT,
		verification_expires_at DATETIME,
		bio TEXT NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		pref_dark_mode BOOLEAN NOT NULL DEFAULT 0,
		pref_email_notifications BOOLEAN NOT NULL DEFAULT 1,
		pref_habit_reminders BOOLEAN NOT NULL DEFAULT 1,
		pref_goal_reminders BOOLEAN NOT NULL DEFAULT 1,
		pref_reminder_days_before INTEGER,
		pref_gamification BOOLEAN NOT NULL DEFAULT 1,
		xp INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS follows (
		follower_id INTEGER NOT NULL,
		followee_id INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (follower_id, followee_id),
		CHECK (follower_id != followee_id),
		FOREIGN KEY (follower_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (followee_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS habits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL DEFAULT 'daily' CHECK (frequency IN ('daily', 'weekly')),
		streak INTEGER NOT NULL DEFAULT 0,
		icon TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		reminder_enabled BOOLEAN NOT NULL DEFAULT 0,
		reminder_time TEXT NOT NULL DEFAULT '',
		last_reminded_at DATETIME,
		is_public BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS habit_completions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		habit_id INTEGER NOT NULL,
		completed_at DATETIME NOT NULL,
		FOREIGN KEY (habit_id) REFERENCES habits(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS habit_notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		habit_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (habit_id) REFERENCES habits(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS goals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		target_date DATETIME,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in-progress', 'completed')),
		progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
		reminder_sent BOOLEAN NOT NULL DEFAULT 0,
		last_reminder_date DATETIME,
		completed_at DATETIME,
		first_completed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sub_goals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		goal_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (goal_id) REFERENCES goals(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS goal_dependencies (
		goal_id INTEGER NOT NULL,
		depends_on_id INTEGER NOT NULL,
		PRIMARY KEY (goal_id, depends_on_id),
		FOREIGN KEY (goal_id) REFERENCES goals(id) ON DELETE CASCADE,
		FOREIGN KEY (depends_on_id) REFERENCES goals(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS goal_collaborators (
		goal_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (goal_id, user_id),
		FOREIGN KEY (goal_id) REFERENCES goals(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		mood TEXT NOT NULL CHECK (mood IN ('terrible', 'bad', 'neutral', 'good', 'great')),
		tags TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS achievements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		shared BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		ref_id INTEGER,
		icon TEXT NOT NULL DEFAULT '',
		value INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS habit_templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL DEFAULT 'daily',
		icon TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		popularity INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS goal_templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		sub_goals TEXT NOT NULL DEFAULT '[]',
		popularity INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS push_subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		endpoint TEXT NOT NULL,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, endpoint),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	-- Server-side refresh token store for rotating refresh tokens
	CREATE TABLE IF NOT EXISTS refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		ttl_days INTEGER NOT NULL DEFAULT 7,
		revoked BOOLEAN DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_habits_user_id ON habits(user_id);
	CREATE INDEX IF NOT EXISTS idx_habit_completions_habit_id ON habit_completions(habit_id);
	CREATE INDEX IF NOT EXISTS idx_goals_user_id ON goals(user_id);
	CREATE INDEX IF NOT EXISTS idx_goals_target_date ON goals(target_date);
	CREATE INDEX IF NOT EXISTS idx_sub_goals_goal_id ON sub_goals(goal_id);
	CREATE INDEX IF NOT EXISTS idx_goal_collaborators_user_id ON goal_collaborators(user_id);
	CREATE INDEX IF NOT EXISTS idx_journal_entries_user_id ON journal_entries(user_id);
	CREATE INDEX IF NOT EXISTS idx_achievements_user_id ON achievements(user_id);
	CREATE INDEX IF NOT EXISTS idx_activities_user_id ON activities(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_follows_followee_id ON follows(followee_id);
	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
	`

	_, err := db.Exec(schema)
	return err
}
