package api

import (
	"strings"

	"progress/internal/auth"
	"progress/internal/config"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware accepts the access token from a Bearer header or, failing
// that, the token cookie.
func AuthMiddleware(m *auth.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies("token")
		if authHeader := c.Get("Authorization"); authHeader != "" {
			// Extract token from "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header format")
			}
			token = parts[1]
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing authorization header")
		}

		claims, err := m.ValidateToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		// Store user info in context
		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)

		return c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, _ := c.Locals("username").(string)
		if !cfg.IsAdmin(username) {
			return fiber.NewError(fiber.StatusForbidden, "Admin access required")
		}
		return c.Next()
	}
}
