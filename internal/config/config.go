package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Values come from defaults, an
// optional config.yaml and the environment, in increasing priority.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	SMTP         SMTPConfig
	Push         PushConfig
	Reminders    ReminderConfig
	Log          LogConfig
	AppURL       string
	AdminUsers   []string
	Registration RegistrationConfig
}

type ServerConfig struct {
	Port           int
	AllowedOrigins string
}

type DatabaseConfig struct {
	Path          string
	EncryptionKey string
}

type AuthConfig struct {
	JWTSecret           string
	RefreshSecret       string
	AccessTokenMinutes  int
	RefreshTokenDays    int
	RememberRefreshDays int
	CookieSecure        bool
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// Configured reports whether an SMTP host has been set.
func (c SMTPConfig) Configured() bool {
	return c.Host != ""
}

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
}

type ReminderConfig struct {
	Enabled       bool
	Schedule      string
	HabitSchedule string
	Timezone      string
}

// Location resolves the configured timezone, falling back to the server's local zone.
func (c ReminderConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

type LogConfig struct {
	Debug bool
	Dir   string
}

type RegistrationConfig struct {
	Disabled            bool
	RequireVerification bool
}

var envBindings = map[string]string{
	"server.port":                       "PORT",
	"server.allowed_origins":            "ALLOWED_ORIGINS",
	"database.path":                     "DB_PATH",
	"database.encryption_key":           "DB_ENCRYPTION_KEY",
	"auth.jwt_secret":                   "JWT_SECRET",
	"auth.jwt_refresh_secret":           "JWT_REFRESH_SECRET",
	"auth.access_token_minutes":         "ACCESS_TOKEN_MINUTES",
	"auth.refresh_token_days":           "REFRESH_TOKEN_DAYS",
	"auth.remember_refresh_days":        "REMEMBER_REFRESH_DAYS",
	"auth.cookie_secure":                "COOKIE_SECURE",
	"smtp.host":                         "SMTP_HOST",
	"smtp.port":                         "SMTP_PORT",
	"smtp.user":                         "SMTP_USER",
	"smtp.pass":                         "SMTP_PASS",
	"smtp.from":                         "SMTP_FROM",
	"smtp.use_tls":                      "SMTP_USE_TLS",
	"push.vapid_public_key":             "VAPID_PUBLIC_KEY",
	"push.vapid_private_key":            "VAPID_PRIVATE_KEY",
	"push.vapid_subject":                "VAPID_SUBJECT",
	"reminders.enabled":                 "ENABLE_WORKERS",
	"reminders.schedule":                "REMINDER_SCHEDULE",
	"reminders.habit_schedule":          "HABIT_REMINDER_SCHEDULE",
	"reminders.timezone":                "REMINDER_TIMEZONE",
	"log.debug":                         "LOG_DEBUG",
	"log.dir":                           "LOG_DIR",
	"app.url":                           "APP_URL",
	"admin.usernames":                   "ADMIN_USERNAMES",
	"registration.disabled":             "DISABLE_REGISTRATION",
	"registration.require_verification": "REQUIRE_VERIFICATION",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.allowed_origins", "http://localhost:80,http://localhost:5173")
	v.SetDefault("database.path", "./data/progress.db")
	v.SetDefault("auth.access_token_minutes", 15)
	v.SetDefault("auth.refresh_token_days", 7)
	v.SetDefault("auth.remember_refresh_days", 30)
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "noreply@progress.app")
	v.SetDefault("smtp.use_tls", true)
	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.schedule", "0 9 * * *")
	v.SetDefault("reminders.habit_schedule", "* * * * *")
	v.SetDefault("app.url", "http://localhost:3000")
}

// Load reads configuration. An empty path searches for config.yaml in the
// working directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetInt("server.port"),
			AllowedOrigins: normalizeOrigins(v.GetString("server.allowed_origins")),
		},
		Database: DatabaseConfig{
			Path:          v.GetString("database.path"),
			EncryptionKey: v.GetString("database.encryption_key"),
		},
		Auth: AuthConfig{
			JWTSecret:           v.GetString("auth.jwt_secret"),
			RefreshSecret:       v.GetString("auth.jwt_refresh_secret"),
			AccessTokenMinutes:  v.GetInt("auth.access_token_minutes"),
			RefreshTokenDays:    v.GetInt("auth.refresh_token_days"),
			RememberRefreshDays: v.GetInt("auth.remember_refresh_days"),
			CookieSecure:        v.GetBool("auth.cookie_secure"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			Username: v.GetString("smtp.user"),
			Password: v.GetString("smtp.pass"),
			From:     v.GetString("smtp.from"),
			UseTLS:   v.GetBool("smtp.use_tls"),
		},
		Push: PushConfig{
			VAPIDPublicKey:  v.GetString("push.vapid_public_key"),
			VAPIDPrivateKey: v.GetString("push.vapid_private_key"),
			VAPIDSubject:    v.GetString("push.vapid_subject"),
		},
		Reminders: ReminderConfig{
			Enabled:  v.GetBool("reminders.enabled"),
			Schedule:      v.GetString("reminders.schedule"),
			HabitSchedule: v.GetString("reminders.habit_schedule"),
			Timezone:      v.GetString("reminders.timezone"),
		},
		Log: LogConfig{
			Debug: v.GetBool("log.debug"),
			Dir:   v.GetString("log.dir"),
		},
		AppURL:     strings.TrimRight(v.GetString("app.url"), "/"),
		AdminUsers: splitList(v.GetString("admin.usernames")),
		Registration: RegistrationConfig{
			Disabled:            v.GetBool("registration.disabled"),
			RequireVerification: v.GetBool("registration.require_verification"),
		},
	}

	if cfg.Auth.RefreshSecret == "" {
		cfg.Auth.RefreshSecret = cfg.Auth.JWTSecret + "-refresh"
	}

	return cfg, nil
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required and must not be empty")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters long")
	}
	if _, err := c.Reminders.Location(); err != nil {
		return fmt.Errorf("invalid reminder timezone %q: %w", c.Reminders.Timezone, err)
	}
	return nil
}

// IsAdmin reports whether username is listed in admin.usernames. The match
// is exact.
func (c *Config) IsAdmin(username string) bool {
	for _, u := range c.AdminUsers {
		if u == username {
			return true
		}
	}
	return false
}

func normalizeOrigins(raw string) string {
	origins := strings.TrimSpace(raw)
	if origins == "" || origins == "*" {
		return origins
	}
	return strings.Join(splitList(origins), ",")
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
