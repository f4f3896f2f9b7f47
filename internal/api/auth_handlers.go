package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"progress/internal/auth"
	"progress/internal/logger"
	"progress/internal/mailer"
	"progress/internal/models"
	"progress/internal/store"

	"github.com/gofiber/fiber/v2"
)

const (
	refreshCookie     = "refresh_token"
	minPasswordLength = 8
)

func setRefreshCookie(c *fiber.Ctx, m *auth.Manager, value string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    value,
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   m.CookieSecure,
		SameSite: "Lax",
		Path:     "/api/auth",
	})
}

// startSession issues an access token and a persisted refresh token cookie.
func startSession(c *fiber.Ctx, d *Deps, user models.User, remember bool) (string, error) {
	accessToken, err := d.Auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate token")
	}

	days := d.Auth.RefreshDays(remember)
	refreshToken, err := d.Auth.GenerateRefreshToken(user.ID, user.Username, days)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate refresh token")
	}

	expiresAt := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	if err := d.Store.SaveRefreshToken(c.UserContext(), user.ID, refreshToken, expiresAt, days); err != nil {
		logger.Error("failed to store refresh token", "user", user.Username, "err", err)
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to store refresh token")
	}
	setRefreshCookie(c, d.Auth, refreshToken, expiresAt)
	return accessToken, nil
}

// sendVerificationCode emails the code. Delivery failures are logged only so
// that registration does not depend on SMTP.
func sendVerificationCode(ctx context.Context, d *Deps, user models.User, code string) {
	msg, err := mailer.VerificationEmail(user.Email, user.Username, code)
	if err != nil {
		logger.Error("failed to render verification email", "err", err)
		return
	}
	if _, err := d.Mailer.Send(ctx, msg); err != nil {
		logger.Warn("verification email not sent", "user", user.Username, "err", err)
	}
}

func RegisterHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.TrimSpace(req.Email)
		if req.Username == "" || req.Password == "" || req.Email == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Username, email and password are required")
		}
		if len(req.Password) < minPasswordLength {
			return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 8 characters")
		}
		if !isValidEmail(req.Email) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid email format")
		}

		// Hash password
		hashedPassword, err := auth.HashPassword(req.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to hash password")
		}
		code, err := auth.GenerateVerificationCode()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to generate verification code")
		}
		expires := time.Now().Add(auth.VerificationTTL)

		user := models.User{
			Username:              req.Username,
			Email:                 req.Email,
			PasswordHash:          hashedPassword,
			VerificationCode:      code,
			VerificationExpiresAt: &expires,
			Preferences:           models.DefaultPreferences(),
		}
		if err := d.Store.CreateUser(c.UserContext(), &user); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fiber.NewError(fiber.StatusConflict, "Username or email already exists")
			}
			return err
		}
		sendVerificationCode(c.UserContext(), d, user, code)

		if d.Config.Registration.RequireVerification {
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{
				"user":                 user,
				"verificationRequired": true,
			})
		}

		accessToken, err := startSession(c, d, user, req.Remember)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{
			Token: accessToken,
			User:  user,
		})
	}
}

// VerifyHandler confirms the emailed code and signs the user in.
func VerifyHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.VerifyRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if req.Username == "" || req.Code == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Username and code are required")
		}

		user, err := d.Store.GetUserByUsername(c.UserContext(), req.Username)
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid verification code")
		}
		if err != nil {
			return err
		}
		if !user.Verified {
			if user.VerificationCode == "" || user.VerificationCode != req.Code {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid verification code")
			}
			if user.VerificationExpiresAt == nil || time.Now().After(*user.VerificationExpiresAt) {
				return fiber.NewError(fiber.StatusBadRequest, "Verification code expired")
			}
			if err := d.Store.MarkVerified(c.UserContext(), user.ID); err != nil {
				return err
			}
			user.Verified = true
		}

		accessToken, err := startSession(c, d, user, false)
		if err != nil {
			return err
		}
		return c.JSON(models.AuthResponse{
			Token: accessToken,
			User:  user,
		})
	}
}

// ResendVerificationHandler issues a fresh code. Unknown and already verified
// users get the same response.
func ResendVerificationHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Username string `json:"username"`
		}
		if err := c.BodyParser(&body); err != nil || body.Username == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Username is required")
		}

		resp := fiber.Map{"message": "If the account exists and is unverified, a new code has been sent"}
		user, err := d.Store.GetUserByUsername(c.UserContext(), body.Username)
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(resp)
		}
		if err != nil {
			return err
		}
		if user.Verified || user.Email == "" {
			return c.JSON(resp)
		}

		code, err := auth.GenerateVerificationCode()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to generate verification code")
		}
		if err := d.Store.SetVerificationCode(c.UserContext(), user.ID, code, time.Now().Add(auth.VerificationTTL)); err != nil {
			return err
		}
		sendVerificationCode(c.UserContext(), d, user, code)
		return c.JSON(resp)
	}
}

func LoginHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		user, err := d.Store.GetUserByUsername(c.UserContext(), req.Username)
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid username or password")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}

		// Check password
		if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid username or password")
		}
		if d.Config.Registration.RequireVerification && !user.Verified {
			return fiber.NewError(fiber.StatusForbidden, "Email address not verified")
		}

		accessToken, err := startSession(c, d, user, req.Remember)
		if err != nil {
			return err
		}
		return c.JSON(models.AuthResponse{
			Token: accessToken,
			User:  user,
		})
	}
}

// RefreshTokenHandler generates a new access token from a valid refresh token cookie
func RefreshTokenHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		refreshToken := c.Cookies(refreshCookie)
		if refreshToken == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not found")
		}

		// Validate refresh token signature
		claims, err := d.Auth.ValidateRefreshToken(refreshToken)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired refresh token")
		}

		// Check token presence in DB and get its TTL
		dbUserID, ttlDays, err := d.Store.ValidateRefreshToken(c.UserContext(), refreshToken)
		if err != nil {
			logger.Warn("refresh token rejected", "user", claims.Username, "err", err)
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not valid")
		}
		if dbUserID != claims.UserID {
			return fiber.NewError(fiber.StatusUnauthorized, "Token user mismatch")
		}

		accessToken, err := d.Auth.GenerateToken(claims.UserID, claims.Username)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to generate access token")
		}

		// Rotate refresh token: create new token with same TTL, store and revoke old
		newRefreshToken, err := d.Auth.GenerateRefreshToken(claims.UserID, claims.Username, ttlDays)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to generate new refresh token")
		}
		expiresAt := time.Now().Add(time.Duration(ttlDays) * 24 * time.Hour)
		if err := d.Store.SaveRefreshToken(c.UserContext(), claims.UserID, newRefreshToken, expiresAt, ttlDays); err != nil {
			logger.Error("failed to store rotated refresh token", "user", claims.Username, "err", err)
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to store new refresh token")
		}
		if err := d.Store.RevokeRefreshToken(c.UserContext(), refreshToken); err != nil {
			logger.Warn("failed to revoke old refresh token", "user", claims.Username, "err", err)
		}

		setRefreshCookie(c, d.Auth, newRefreshToken, expiresAt)
		return c.JSON(fiber.Map{
			"token": accessToken,
		})
	}
}

// LogoutHandler revokes and clears the refresh token cookie
func LogoutHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if old := c.Cookies(refreshCookie); old != "" {
			_ = d.Store.RevokeRefreshToken(c.UserContext(), old)
		}
		setRefreshCookie(c, d.Auth, "", time.Now().Add(-1*time.Hour))

		return c.JSON(fiber.Map{
			"message": "Logged out successfully",
		})
	}
}
