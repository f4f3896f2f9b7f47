package api

import (
	"errors"
	"strings"

	"progress/internal/models"
	"progress/internal/store"

	"github.com/gofiber/fiber/v2"
)

func CreateGoalHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)

		var req models.CreateGoalRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Title is required")
		}

		goal := models.Goal{
			UserID:       userID,
			Title:        req.Title,
			Description:  req.Description,
			Dependencies: req.Dependencies,
		}
		if req.TargetDate != nil {
			t := req.TargetDate.UTC()
			goal.TargetDate = &t
		}
		for _, title := range req.SubGoals {
			if title = strings.TrimSpace(title); title != "" {
				goal.SubGoals = append(goal.SubGoals, models.SubGoal{Title: title})
			}
		}

		rewards, err := d.Tracker.CreateGoal(c.UserContext(), &goal)
		if err != nil {
			return mapError(err, "Goal")
		}
		return c.Status(fiber.StatusCreated).JSON(models.GoalResponse{Goal: goal, Rewards: rewards})
	}
}

// ListGoalsHandler lists the user's goals, optionally filtered by ?status=.
func ListGoalsHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := models.GoalStatus(c.Query("status"))
		if status != "" && !status.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid status")
		}

		goals, err := d.Store.ListGoals(c.UserContext(), currentUserID(c), status)
		if err != nil {
			return err
		}
		return c.JSON(goals)
	}
}

func GetGoalHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		goalID, err := paramID(c, "id", "goal")
		if err != nil {
			return err
		}
		goal, err := d.Store.GetGoal(c.UserContext(), currentUserID(c), goalID)
		if err != nil {
			return mapError(err, "Goal")
		}
		return c.JSON(goal)
	}
}

func UpdateGoalHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		goalID, err := paramID(c, "id", "goal")
		if err != nil {
			return err
		}

		var req models.UpdateGoalRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Title is required")
		}

		resp, err := d.Tracker.UpdateGoal(c.UserContext(), currentUserID(c), goalID, req)
		if err != nil {
			return mapError(err, "Goal")
		}
		return c.JSON(resp)
	}
}

func DeleteGoalHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		goalID, err := paramID(c, "id", "goal")
		if err != nil {
			return err
		}
		if err := d.Store.DeleteGoal(c.UserContext(), currentUserID(c), goalID); err != nil {
			return mapError(err, "Goal")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// UpdateGoalStatusHandler sets the status; progress follows as 100 or 0.
func UpdateGoalStatusHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		goalID, err := paramID(c, "id", "goal")
		if err != nil {
			return err
		}

		var req models.UpdateGoalStatusRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		resp, err := d.Tracker.SetGoalStatus(c.UserContext(), currentUserID(c), goalID, req.Status)
		if err != nil {
			return mapError(err, "Goal")
		}
		return c.JSON(resp)
	}
}

// UpdateGoalProgressHandler sets progress manually; status follows.
func UpdateGoalProgressHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		goalID, err := paramID(c, "id", "goal")
		if err != nil {
			return err
		}

		var req models.UpdateGoalProgressRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		resp, err := d.Tracker.SetGoalProgress(c.UserContext(), currentUserID(c), goalID, req.Progress)
		if err != nil {
			return mapError(err, "Goal")
		}
		return c.JSON(resp)
	}
}

func ToggleSubGoalHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		goalID, err := paramID(c, "id", "goal")
		if err != nil {
			return err
		}
		subID, err := paramID(c, "subId", "sub-goal")
		if err != nil {
			return err
		}

		resp, err := d.Tracker.ToggleSubGoal(c.UserContext(), currentUserID(c), goalID, subID)
		if err != nil {
			return mapError(err, "Goal")
		}
		return c.JSON(resp)
	}
}

// ListSharedGoalsHandler lists goals other users added the caller to.
func ListSharedGoalsHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		goals, err := d.Store.ListSharedGoals(c.UserContext(), currentUserID(c))
		if err != nil {
			return err
		}
		return c.JSON(goals)
	}
}

// AddGoalCollaboratorHandler shares one of the caller's goals with another user.
func AddGoalCollaboratorHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		goalID, err := paramID(c, "id", "goal")
		if err != nil {
			return err
		}
		var body struct {
			Username string `json:"username"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.Username = strings.TrimSpace(body.Username); body.Username == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Username is required")
		}

		ctx := c.UserContext()
		userID := currentUserID(c)
		if _, err := d.Store.GetGoal(ctx, userID, goalID); err != nil {
			return mapError(err, "Goal")
		}
		collaborator, err := d.Store.GetUserByUsername(ctx, body.Username)
		if err != nil {
			return mapError(err, "User")
		}

		err = d.Store.AddGoalCollaborator(ctx, userID, goalID, collaborator.ID)
		switch {
		case errors.Is(err, store.ErrSelfCollaborator):
			return fiber.NewError(fiber.StatusBadRequest, "You already own this goal")
		case errors.Is(err, store.ErrConflict):
			return fiber.NewError(fiber.StatusConflict, "User is already a collaborator")
		case err != nil:
			return err
		}

		goal, err := d.Store.GetGoal(ctx, userID, goalID)
		if err != nil {
			return mapError(err, "Goal")
		}
		return c.Status(fiber.StatusCreated).JSON(goal)
	}
}

func RemoveGoalCollaboratorHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		goalID, err := paramID(c, "id", "goal")
		if err != nil {
			return err
		}
		ctx := c.UserContext()
		if _, err := d.Store.GetGoal(ctx, currentUserID(c), goalID); err != nil {
			return mapError(err, "Goal")
		}
		collaborator, err := userByParam(c, d)
		if err != nil {
			return err
		}
		if err := d.Store.RemoveGoalCollaborator(ctx, goalID, collaborator.ID); err != nil {
			return mapError(err, "Collaborator")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
