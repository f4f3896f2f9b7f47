package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, env := range []string{"PORT", "JWT_SECRET", "JWT_REFRESH_SECRET", "SMTP_HOST", "ENABLE_WORKERS", "REMINDER_SCHEDULE", "SMTP_PORT"} {
		t.Setenv(env, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 3000, cfg.Server.Port)
	require.Equal(t, "0 9 * * *", cfg.Reminders.Schedule)
	require.Equal(t, "* * * * *", cfg.Reminders.HabitSchedule)
	require.True(t, cfg.Reminders.Enabled)
	require.Equal(t, 587, cfg.SMTP.Port)
	require.False(t, cfg.SMTP.Configured())
	require.Equal(t, "-refresh", cfg.Auth.RefreshSecret)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  port: 8080\nsmtp:\n  host: mail.example.com\nadmin:\n  usernames: \"alice, bob\"\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , https://b.example ")
	t.Setenv("DB_ENCRYPTION_KEY", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "mail.example.com", cfg.SMTP.Host)
	require.Equal(t, "s3cret", cfg.Database.EncryptionKey)
	require.Equal(t, "https://a.example,https://b.example", cfg.Server.AllowedOrigins)
	require.True(t, cfg.IsAdmin("alice"))
	require.False(t, cfg.IsAdmin("Alice"))
	require.False(t, cfg.IsAdmin("carol"))
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "short"
	require.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = strings.Repeat("x", 32)
	cfg.Reminders.Timezone = "Not/AZone"
	require.Error(t, cfg.Validate())

	cfg.Reminders.Timezone = "UTC"
	require.NoError(t, cfg.Validate())
}
