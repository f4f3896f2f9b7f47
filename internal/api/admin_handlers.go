package api

import (
	"errors"
	"time"

	"progress/internal/logger"
	"progress/internal/reminder"

	"github.com/gofiber/fiber/v2"
)

// RunRemindersHandler runs the goal reminder sweep now and returns its
// summary.
func RunRemindersHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d.Sweeper == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Reminder sweep not available")
		}

		summary, err := d.Sweeper.Run(c.UserContext(), time.Now())
		if errors.Is(err, reminder.ErrSweepInProgress) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		if err != nil {
			logger.Error("manual reminder sweep failed", "err", err)
			return fiber.NewError(fiber.StatusInternalServerError, "Reminder sweep failed")
		}

		logger.Info("manual reminder sweep complete",
			"by", c.Locals("username"), "users", summary.UsersChecked, "reminders", summary.TotalReminders)
		return c.JSON(summary)
	}
}
