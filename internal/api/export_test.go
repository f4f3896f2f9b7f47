package api

import "time"

// SetLimiterClock replaces the limiter's clock in tests.
func SetLimiterClock(l *RateLimiter, now func() time.Time) {
	l.now = now
}
