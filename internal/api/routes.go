package api

import (
	"errors"

	"progress/internal/auth"
	"progress/internal/config"
	"progress/internal/logger"
	"progress/internal/mailer"
	"progress/internal/push"
	"progress/internal/reminder"
	"progress/internal/store"
	"progress/internal/tracker"

	"github.com/gofiber/fiber/v2"
)

// Deps are the services the handlers share.
type Deps struct {
	Config       *config.Config
	Store        *store.Store
	Auth         *auth.Manager
	Tracker      *tracker.Service
	Mailer       mailer.Dispatcher
	Push         *push.Sender
	Sweeper      *reminder.Sweeper
	EmailLimiter *RateLimiter
}

// ErrorHandler renders every error as {"error": msg}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var e *fiber.Error
	if errors.As(err, &e) {
		return c.Status(e.Code).JSON(fiber.Map{
			"error": e.Message,
		})
	}
	// Unmapped errors come from the store or other internals.
	logger.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

func SetupRoutes(app *fiber.App, d *Deps) {
	if d.EmailLimiter == nil {
		d.EmailLimiter = NewRateLimiter(testEmailInterval)
	}
	api := app.Group("/api")

	// Configuration endpoint (public)
	api.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"disableRegistration": d.Config.Registration.Disabled,
			"requireVerification": d.Config.Registration.RequireVerification,
			"pushEnabled":         d.Push != nil && d.Push.Configured(),
		})
	})

	// Auth routes
	authGroup := api.Group("/auth")
	if !d.Config.Registration.Disabled {
		authGroup.Post("/register", RegisterHandler(d))
	}
	authGroup.Post("/verify", VerifyHandler(d))
	authGroup.Post("/resend", ResendVerificationHandler(d))
	authGroup.Post("/login", LoginHandler(d))
	authGroup.Post("/refresh", RefreshTokenHandler(d))
	authGroup.Post("/logout", LogoutHandler(d))

	// VAPID public key endpoint (public, registered before the protected group)
	api.Get("/push/vapid-public-key", VapidPublicKeyHandler(d))

	// Template catalogs are public
	templates := api.Group("/templates")
	templates.Get("/habits", ListHabitTemplatesHandler(d))
	templates.Get("/goals", ListGoalTemplatesHandler(d))

	// Protected routes
	protected := api.Group("/", AuthMiddleware(d.Auth))

	protected.Post("/templates/habits/:id/use", UseHabitTemplateHandler(d))
	protected.Post("/templates/goals/:id/use", UseGoalTemplateHandler(d))

	habits := protected.Group("/habits")
	habits.Post("/", CreateHabitHandler(d))
	habits.Get("/", ListHabitsHandler(d))
	habits.Get("/:id", GetHabitHandler(d))
	habits.Put("/:id", UpdateHabitHandler(d))
	habits.Delete("/:id", DeleteHabitHandler(d))
	habits.Post("/:id/check-in", CheckInHandler(d))
	habits.Post("/:id/notes", AddHabitNoteHandler(d))
	habits.Delete("/:id/notes/:noteId", DeleteHabitNoteHandler(d))

	goals := protected.Group("/goals")
	goals.Post("/", CreateGoalHandler(d))
	goals.Get("/", ListGoalsHandler(d))
	goals.Get("/shared", ListSharedGoalsHandler(d))
	goals.Get("/:id", GetGoalHandler(d))
	goals.Post("/:id/collaborators", AddGoalCollaboratorHandler(d))
	goals.Delete("/:id/collaborators/:username", RemoveGoalCollaboratorHandler(d))
	goals.Put("/:id/status", UpdateGoalStatusHandler(d))
	goals.Put("/:id/progress", UpdateGoalProgressHandler(d))
	goals.Put("/:id/subgoals/:subId/toggle", ToggleSubGoalHandler(d))
	goals.Put("/:id", UpdateGoalHandler(d))
	goals.Delete("/:id", DeleteGoalHandler(d))

	journal := protected.Group("/journal")
	journal.Post("/", CreateJournalHandler(d))
	journal.Get("/", ListJournalHandler(d))
	journal.Get("/:id", GetJournalHandler(d))
	journal.Put("/:id", UpdateJournalHandler(d))
	journal.Delete("/:id", DeleteJournalHandler(d))

	protected.Get("/stats/dashboard", DashboardHandler(d))
	protected.Get("/activities", ListActivitiesHandler(d))
	protected.Get("/feed", FeedHandler(d))

	achievements := protected.Group("/achievements")
	achievements.Get("/", ListAchievementsHandler(d))
	achievements.Put("/:id/share", ShareAchievementHandler(d))

	users := protected.Group("/users")
	users.Get("/:username", PublicProfileHandler(d))
	users.Post("/:username/follow", FollowHandler(d))
	users.Delete("/:username/follow", UnfollowHandler(d))
	users.Get("/:username/followers", FollowersHandler(d))
	users.Get("/:username/following", FollowingHandler(d))

	// Push subscription routes
	pushGroup := protected.Group("/push")
	pushGroup.Post("/subscribe", SubscribePushHandler(d))
	pushGroup.Delete("/unsubscribe", UnsubscribePushHandler(d))
	pushGroup.Post("/test", SendTestPushHandler(d))

	// User profile routes
	user := protected.Group("/user")
	user.Get("/profile", GetUserProfileHandler(d))
	user.Put("/profile", UpdateUserProfileHandler(d))
	user.Put("/preferences", UpdatePreferencesHandler(d))
	user.Put("/email", UpdateUserEmailHandler(d))
	user.Post("/test-email", TestEmailHandler(d))

	admin := protected.Group("/admin", AdminMiddleware(d.Config))
	admin.Post("/reminders/run", RunRemindersHandler(d))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
