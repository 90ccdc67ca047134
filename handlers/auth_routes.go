// handlers/auth_routes.go
package handlers

import (
	"time"

	"referral-points-system/middleware"
	"referral-points-system/services"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Auth          *services.AuthService
	SecureCookies bool
}

func SetupAuthRoutes(app *fiber.App, auth *services.AuthService, loginLimiter fiber.Handler, secureCookies bool) {
	h := &AuthHandler{Auth: auth, SecureCookies: secureCookies}

	app.Post("/register", h.Register)
	app.Post("/login", loginLimiter, h.Login)
	app.Post("/refresh", h.Refresh)
	app.Post("/logout", h.Logout)
}

// Register reads email and password from the body and an optional
// ?referral_code= query parameter.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return services.ValidationError("invalid request body")
	}
	if code := c.Query("referral_code"); code != "" {
		in.ReferralCode = code
	}

	user, err := h.Auth.Register(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": "user registered",
		"user":    user,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in services.LoginInput
	if err := c.BodyParser(&in); err != nil {
		return services.ValidationError("invalid request body")
	}

	session, err := h.Auth.Login(c.UserContext(), in)
	if err != nil {
		return err
	}
	h.setSessionCookies(c, session)
	return c.JSON(fiber.Map{"status": "success", "user": session.User})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(middleware.RefreshTokenCookie)
	if token == "" {
		return services.UnauthorizedError("no refresh token provided", nil)
	}

	session, err := h.Auth.Refresh(c.UserContext(), token)
	if err != nil {
		return err
	}
	h.setSessionCookies(c, session)
	return c.JSON(fiber.Map{"status": "success", "message": "access token refreshed successfully"})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.Auth.Logout(c.UserContext(), c.Cookies(middleware.RefreshTokenCookie)); err != nil {
		return err
	}
	c.ClearCookie(middleware.AccessTokenCookie, middleware.RefreshTokenCookie)
	return c.JSON(fiber.Map{"status": "success", "message": "logged out"})
}

func (h *AuthHandler) setSessionCookies(c *fiber.Ctx, s *services.Session) {
	c.Cookie(h.cookie(middleware.AccessTokenCookie, s.Access.Token, s.Access.ExpiresAt))
	c.Cookie(h.cookie(middleware.RefreshTokenCookie, s.Refresh.Token, s.Refresh.ExpiresAt))
}

func (h *AuthHandler) cookie(name, value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}
