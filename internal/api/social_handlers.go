package api

import (
	"errors"

	"progress/internal/models"
	"progress/internal/store"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 200
)

func feedLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", defaultFeedLimit)
	if limit <= 0 || limit > maxFeedLimit {
		return defaultFeedLimit
	}
	return limit
}

func userByParam(c *fiber.Ctx, d *Deps) (models.User, error) {
	user, err := d.Store.GetUserByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return user, mapError(err, "User")
	}
	return user, nil
}

// PublicProfileHandler shows another user's public habits and shared
// achievements.
func PublicProfileHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		user, err := userByParam(c, d)
		if err != nil {
			return err
		}

		profile := models.PublicProfile{
			ID:       user.ID,
			Username: user.Username,
			Profile:  user.Profile,
			Level:    user.Level,
			XP:       user.XP,
			JoinedAt: user.CreatedAt,
		}
		if profile.FollowersCount, profile.FollowingCount, err = d.Store.FollowCounts(ctx, user.ID); err != nil {
			return err
		}
		if profile.IsFollowing, err = d.Store.IsFollowing(ctx, currentUserID(c), user.ID); err != nil {
			return err
		}
		if profile.PublicHabits, err = d.Store.ListHabits(ctx, user.ID, true); err != nil {
			return err
		}
		if profile.Achievements, err = d.Store.ListAchievements(ctx, user.ID, true); err != nil {
			return err
		}
		return c.JSON(profile)
	}
}

func FollowHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		target, err := userByParam(c, d)
		if err != nil {
			return err
		}

		err = d.Store.Follow(c.UserContext(), currentUserID(c), target.ID)
		switch {
		case errors.Is(err, store.ErrSelfFollow):
			return fiber.NewError(fiber.StatusBadRequest, "You cannot follow yourself")
		case errors.Is(err, store.ErrConflict):
			return fiber.NewError(fiber.StatusConflict, "Already following this user")
		case err != nil:
			return err
		}
		return c.JSON(fiber.Map{"success": true, "following": target.Username})
	}
}

func UnfollowHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		target, err := userByParam(c, d)
		if err != nil {
			return err
		}

		err = d.Store.Unfollow(c.UserContext(), currentUserID(c), target.ID)
		if errors.Is(err, store.ErrNotFollowing) {
			return fiber.NewError(fiber.StatusBadRequest, "Not following this user")
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

func FollowersHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := userByParam(c, d)
		if err != nil {
			return err
		}
		refs, err := d.Store.Followers(c.UserContext(), user.ID)
		if err != nil {
			return err
		}
		return c.JSON(refs)
	}
}

func FollowingHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := userByParam(c, d)
		if err != nil {
			return err
		}
		refs, err := d.Store.Following(c.UserContext(), user.ID)
		if err != nil {
			return err
		}
		return c.JSON(refs)
	}
}

// FeedHandler returns the user's and followed users' activity, newest first.
func FeedHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		activities, err := d.Store.Feed(c.UserContext(), currentUserID(c), feedLimit(c))
		if err != nil {
			return err
		}
		return c.JSON(activities)
	}
}

func ListActivitiesHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		activities, err := d.Store.ListActivities(c.UserContext(), currentUserID(c), feedLimit(c))
		if err != nil {
			return err
		}
		return c.JSON(activities)
	}
}
