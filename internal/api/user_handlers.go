package api

import (
	"strings"

	"progress/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetUserProfileHandler returns the current user with both follow lists.
func GetUserProfileHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)
		ctx := c.UserContext()

		user, err := d.Store.GetUser(ctx, userID)
		if err != nil {
			return mapError(err, "User")
		}
		if user.Followers, err = d.Store.Followers(ctx, userID); err != nil {
			return err
		}
		if user.Following, err = d.Store.Following(ctx, userID); err != nil {
			return err
		}
		return c.JSON(user)
	}
}

func UpdateUserProfileHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)

		var req models.UpdateProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		user, err := d.Store.GetUser(c.UserContext(), userID)
		if err != nil {
			return mapError(err, "User")
		}
		p := user.Profile
		if req.Bio != nil {
			p.Bio = *req.Bio
		}
		if req.Avatar != nil {
			p.Avatar = *req.Avatar
		}
		if req.Location != nil {
			p.Location = *req.Location
		}
		if req.Website != nil {
			p.Website = *req.Website
		}
		if len(p.Bio) > 500 {
			return fiber.NewError(fiber.StatusBadRequest, "Bio must be at most 500 characters")
		}

		if err := d.Store.UpdateProfile(c.UserContext(), userID, p); err != nil {
			return mapError(err, "User")
		}
		return c.JSON(p)
	}
}

// UpdatePreferencesHandler merges the provided toggles into the stored
// preferences.
func UpdatePreferencesHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)

		var req models.UpdatePreferencesRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if req.ReminderDaysBefore != nil && *req.ReminderDaysBefore < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "reminderDaysBefore must not be negative")
		}

		user, err := d.Store.GetUser(c.UserContext(), userID)
		if err != nil {
			return mapError(err, "User")
		}
		p := user.Preferences
		if req.DarkMode != nil {
			p.DarkMode = *req.DarkMode
		}
		if req.EmailNotifications != nil {
			p.EmailNotifications = *req.EmailNotifications
		}
		if req.HabitReminders != nil {
			p.HabitReminders = *req.HabitReminders
		}
		if req.GoalReminders != nil {
			p.GoalReminders = *req.GoalReminders
		}
		if req.ReminderDaysBefore != nil {
			p.ReminderDaysBefore = req.ReminderDaysBefore
		}
		if req.Gamification != nil {
			p.Gamification = *req.Gamification
		}

		if err := d.Store.UpdatePreferences(c.UserContext(), userID, p); err != nil {
			return mapError(err, "User")
		}
		return c.JSON(p)
	}
}

// UpdateUserEmailHandler updates the user's email address. An empty value
// clears it.
func UpdateUserEmailHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)

		var req models.UpdateEmailRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		email := ""
		if req.Email != nil {
			email = strings.TrimSpace(*req.Email)
		}
		if email != "" && !isValidEmail(email) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid email format")
		}

		if err := d.Store.UpdateEmail(c.UserContext(), userID, email); err != nil {
			return mapError(err, "User")
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Email updated successfully",
		})
	}
}
