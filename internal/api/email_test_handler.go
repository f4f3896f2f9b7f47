package api

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"progress/internal/logger"
	"progress/internal/mailer"

	"github.com/gofiber/fiber/v2"
)

const testEmailInterval = 10 * time.Minute

// RateLimiter allows one event per interval across the whole server.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval, now: time.Now}
}

// Allow records an event if the interval has passed since the last one.
// Otherwise it reports how long the caller has to wait.
func (l *RateLimiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.last.IsZero() {
		if since := now.Sub(l.last); since < l.interval {
			return false, l.interval - since
		}
	}
	l.last = now
	return true, 0
}

// TestEmailHandler sends a test email to the current user.
// Rate limited to once per 10 minutes per server.
func TestEmailHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)

		ok, remaining := d.EmailLimiter.Allow()
		if !ok {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":               "Email test rate limited",
				"retry_after_seconds": int(remaining.Seconds()),
				"message":             fmt.Sprintf("Please wait %s before testing again", formatDuration(remaining)),
			})
		}

		user, err := d.Store.GetUser(c.UserContext(), userID)
		if err != nil {
			return mapError(err, "User")
		}
		if user.Email == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Your account does not have an email address set")
		}

		msg, err := mailer.TestEmail(user.Email, user.Username, d.Config.AppURL)
		if err != nil {
			return err
		}
		receipt, err := d.Mailer.Send(c.UserContext(), msg)
		if errors.Is(err, mailer.ErrNotConfigured) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "SMTP not configured")
		}
		if err != nil {
			logger.Error("test email failed", "user", user.Username, "err", err)
			return fiber.NewError(fiber.StatusBadGateway, "Failed to send test email: "+err.Error())
		}

		smtp := d.Config.SMTP
		return c.JSON(fiber.Map{
			"success":   true,
			"message":   fmt.Sprintf("Test email sent successfully to %s", user.Email),
			"messageId": receipt.MessageID,
			"smtp_config": fiber.Map{
				"host": smtp.Host,
				"port": smtp.Port,
				"from": smtp.From,
				"tls":  smtp.UseTLS,
			},
		})
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) - (minutes * 60)
	if seconds > 0 {
		return fmt.Sprintf("%d minutes %d seconds", minutes, seconds)
	}
	return fmt.Sprintf("%d minutes", minutes)
}
