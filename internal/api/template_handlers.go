package api

import (
	"progress/internal/logger"
	"progress/internal/models"

	"github.com/gofiber/fiber/v2"
)

func ListHabitTemplatesHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		templates, err := d.Store.ListHabitTemplates(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(templates)
	}
}

func ListGoalTemplatesHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		templates, err := d.Store.ListGoalTemplates(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(templates)
	}
}

// UseHabitTemplateHandler creates a habit from a template.
func UseHabitTemplateHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		templateID, err := paramID(c, "id", "template")
		if err != nil {
			return err
		}
		ctx := c.UserContext()

		t, err := d.Store.GetHabitTemplate(ctx, templateID)
		if err != nil {
			return mapError(err, "Template")
		}
		habit := models.Habit{
			UserID:      currentUserID(c),
			Title:       t.Title,
			Description: t.Description,
			Frequency:   t.Frequency,
			Icon:        t.Icon,
			Color:       t.Color,
			Category:    t.Category,
		}
		rewards, err := d.Tracker.CreateHabit(ctx, &habit)
		if err != nil {
			return mapError(err, "User")
		}
		if err := d.Store.IncrementHabitTemplatePopularity(ctx, t.ID); err != nil {
			logger.Warn("failed to bump template popularity", "template", t.ID, "err", err)
		}
		return c.Status(fiber.StatusCreated).JSON(models.HabitResponse{Habit: habit, Rewards: rewards})
	}
}

// UseGoalTemplateHandler creates a goal with the template's sub-goals.
func UseGoalTemplateHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		templateID, err := paramID(c, "id", "template")
		if err != nil {
			return err
		}
		ctx := c.UserContext()

		t, err := d.Store.GetGoalTemplate(ctx, templateID)
		if err != nil {
			return mapError(err, "Template")
		}
		goal := models.Goal{
			UserID:      currentUserID(c),
			Title:       t.Title,
			Description: t.Description,
		}
		for _, title := range t.SubGoals {
			goal.SubGoals = append(goal.SubGoals, models.SubGoal{Title: title})
		}
		rewards, err := d.Tracker.CreateGoal(ctx, &goal)
		if err != nil {
			return mapError(err, "User")
		}
		if err := d.Store.IncrementGoalTemplatePopularity(ctx, t.ID); err != nil {
			logger.Warn("failed to bump template popularity", "template", t.ID, "err", err)
		}
		return c.Status(fiber.StatusCreated).JSON(models.GoalResponse{Goal: goal, Rewards: rewards})
	}
}
