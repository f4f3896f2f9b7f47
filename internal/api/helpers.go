package api

import (
	"errors"
	"regexp"
	"strconv"

	"progress/internal/store"
	"progress/internal/tracker"

	"github.com/gofiber/fiber/v2"
)

func currentUserID(c *fiber.Ctx) int {
	return c.Locals("userID").(int)
}

func paramID(c *fiber.Ctx, name, label string) (int, error) {
	id, err := strconv.Atoi(c.Params(name))
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+label+" ID")
	}
	return id, nil
}

// mapError turns store and tracker errors into HTTP errors. Resources owned
// by someone else are reported as missing.
func mapError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tracker.ErrSubGoalNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Sub-goal not found")
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, what+" not found")
	case errors.Is(err, store.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, tracker.ErrInvalidDependency),
		errors.Is(err, tracker.ErrInvalidProgress),
		errors.Is(err, tracker.ErrInvalidStatus):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// isValidEmail is a permissive shape check, not full RFC 5322.
func isValidEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}
