package api

import (
	"strings"
	"time"

	"progress/internal/models"

	"github.com/gofiber/fiber/v2"
)

func validReminder(r models.HabitReminder) bool {
	if !r.Enabled && r.Time == "" {
		return true
	}
	_, err := time.Parse("15:04", r.Time)
	return err == nil
}

func CreateHabitHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)

		var req models.CreateHabitRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Title is required")
		}
		if req.Frequency == "" {
			req.Frequency = models.FrequencyDaily
		}
		if !req.Frequency.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Frequency must be daily or weekly")
		}

		habit := models.Habit{
			UserID:      userID,
			Title:       req.Title,
			Description: req.Description,
			Frequency:   req.Frequency,
			Icon:        req.Icon,
			Color:       req.Color,
			Category:    req.Category,
			Tags:        req.Tags,
			IsPublic:    req.IsPublic,
		}
		if req.Reminder != nil {
			if !validReminder(*req.Reminder) {
				return fiber.NewError(fiber.StatusBadRequest, "Reminder time must be HH:MM")
			}
			habit.Reminder = *req.Reminder
		}

		rewards, err := d.Tracker.CreateHabit(c.UserContext(), &habit)
		if err != nil {
			return mapError(err, "User")
		}
		return c.Status(fiber.StatusCreated).JSON(models.HabitResponse{Habit: habit, Rewards: rewards})
	}
}

func ListHabitsHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		habits, err := d.Store.ListHabits(c.UserContext(), currentUserID(c), false)
		if err != nil {
			return err
		}
		return c.JSON(habits)
	}
}

func GetHabitHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		habitID, err := paramID(c, "id", "habit")
		if err != nil {
			return err
		}
		habit, err := d.Store.GetHabit(c.UserContext(), currentUserID(c), habitID)
		if err != nil {
			return mapError(err, "Habit")
		}
		return c.JSON(habit)
	}
}

func UpdateHabitHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		habitID, err := paramID(c, "id", "habit")
		if err != nil {
			return err
		}

		var req models.UpdateHabitRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		habit, err := d.Store.GetHabit(c.UserContext(), currentUserID(c), habitID)
		if err != nil {
			return mapError(err, "Habit")
		}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Title is required")
			}
			habit.Title = title
		}
		if req.Description != nil {
			habit.Description = *req.Description
		}
		if req.Frequency != nil {
			if !req.Frequency.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Frequency must be daily or weekly")
			}
			habit.Frequency = *req.Frequency
		}
		if req.Icon != nil {
			habit.Icon = *req.Icon
		}
		if req.Color != nil {
			habit.Color = *req.Color
		}
		if req.Category != nil {
			habit.Category = *req.Category
		}
		if req.Tags != nil {
			habit.Tags = req.Tags
		}
		if req.Reminder != nil {
			if !validReminder(*req.Reminder) {
				return fiber.NewError(fiber.StatusBadRequest, "Reminder time must be HH:MM")
			}
			habit.Reminder = *req.Reminder
		}
		if req.IsPublic != nil {
			habit.IsPublic = *req.IsPublic
		}

		if err := d.Store.UpdateHabit(c.UserContext(), &habit); err != nil {
			return mapError(err, "Habit")
		}
		return c.JSON(habit)
	}
}

func DeleteHabitHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		habitID, err := paramID(c, "id", "habit")
		if err != nil {
			return err
		}
		if err := d.Store.DeleteHabit(c.UserContext(), currentUserID(c), habitID); err != nil {
			return mapError(err, "Habit")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// CheckInHandler toggles today's completion.
func CheckInHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		habitID, err := paramID(c, "id", "habit")
		if err != nil {
			return err
		}
		resp, err := d.Tracker.CheckIn(c.UserContext(), currentUserID(c), habitID)
		if err != nil {
			return mapError(err, "Habit")
		}
		return c.JSON(resp)
	}
}

func AddHabitNoteHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		habitID, err := paramID(c, "id", "habit")
		if err != nil {
			return err
		}

		var req models.CreateHabitNoteRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		content := strings.TrimSpace(req.Content)
		if content == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Content is required")
		}

		if _, err := d.Store.GetHabit(c.UserContext(), currentUserID(c), habitID); err != nil {
			return mapError(err, "Habit")
		}
		note, err := d.Store.AddHabitNote(c.UserContext(), habitID, content)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(note)
	}
}

func DeleteHabitNoteHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		habitID, err := paramID(c, "id", "habit")
		if err != nil {
			return err
		}
		noteID, err := paramID(c, "noteId", "note")
		if err != nil {
			return err
		}

		if _, err := d.Store.GetHabit(c.UserContext(), currentUserID(c), habitID); err != nil {
			return mapError(err, "Habit")
		}
		if err := d.Store.DeleteHabitNote(c.UserContext(), habitID, noteID); err != nil {
			return mapError(err, "Note")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
