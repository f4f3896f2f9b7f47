package api

import (
	"fmt"
	"time"

	"progress/internal/logger"
	"progress/internal/models"
	"progress/internal/push"

	"github.com/gofiber/fiber/v2"
)

// VapidPublicKeyHandler returns the VAPID public key for client subscription
func VapidPublicKeyHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d.Push == nil || d.Push.PublicKey() == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Push notifications not configured")
		}
		return c.JSON(fiber.Map{
			"publicKey": d.Push.PublicKey(),
		})
	}
}

func SubscribePushHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var sub models.PushSubscription
		if err := c.BodyParser(&sub); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Missing subscription fields")
		}

		sub.UserID = currentUserID(c)
		if err := d.Store.SavePushSubscription(c.UserContext(), &sub); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

func UnsubscribePushHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Endpoint string `json:"endpoint"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if err := d.Store.DeletePushSubscription(c.UserContext(), currentUserID(c), body.Endpoint); err != nil {
			return mapError(err, "Subscription")
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

// SendTestPushHandler sends an actual push notification for testing
func SendTestPushHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)

		if d.Push == nil || !d.Push.Configured() {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Push notifications not configured. Set VAPID_PUBLIC_KEY, VAPID_PRIVATE_KEY, and VAPID_SUBJECT environment variables.")
		}

		payload := push.Payload{
			Title: "Progress test notification",
			Body:  "Notifications are working. Keep the streak going!",
			Tag:   fmt.Sprintf("progress-test-%d", time.Now().Unix()),
		}
		res, err := d.Push.SendToUser(c.UserContext(), userID, payload)
		if err != nil {
			logger.Warn("test push failed", "user", userID, "err", err)
			return fiber.NewError(fiber.StatusBadGateway, "Failed to send test notification: "+err.Error())
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Test notification sent",
			"result":  res,
		})
	}
}
