package api

import (
	"github.com/gofiber/fiber/v2"
)

func DashboardHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dashboard, err := d.Tracker.Dashboard(c.UserContext(), currentUserID(c))
		if err != nil {
			return mapError(err, "User")
		}
		return c.JSON(dashboard)
	}
}

func ListAchievementsHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		achievements, err := d.Store.ListAchievements(c.UserContext(), currentUserID(c), false)
		if err != nil {
			return err
		}
		return c.JSON(achievements)
	}
}

// ShareAchievementHandler toggles whether an achievement shows on the public
// profile. The body may set {"shared": bool}; without it the flag is set.
func ShareAchievementHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		achievementID, err := paramID(c, "id", "achievement")
		if err != nil {
			return err
		}

		body := struct {
			Shared *bool `json:"shared"`
		}{}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
		}
		shared := body.Shared == nil || *body.Shared

		a, err := d.Store.SetAchievementShared(c.UserContext(), currentUserID(c), achievementID, shared)
		if err != nil {
			return mapError(err, "Achievement")
		}
		return c.JSON(a)
	}
}
