// middleware/auth.go
package middleware

import (
	"strings"

	"referral-points-system/models"
	"referral-points-system/services"

	"github.com/gofiber/fiber/v2"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	userIDKey = "user_id"
	userKey   = "user"
)

// RequireAuth verifies the access token from the access_token cookie, or an
// Authorization: Bearer header, and stores the user on the request.
func RequireAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := AccessToken(c)
		if token == "" {
			return services.UnauthorizedError("authentication required", nil)
		}

		user, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals(userIDKey, user.ID)
		c.Locals(userKey, user)
		return c.Next()
	}
}

// AccessToken returns the presented access token, preferring the cookie.
func AccessToken(c *fiber.Ctx) string {
	if tok := c.Cookies(AccessTokenCookie); tok != "" {
		return tok
	}
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// UserID is the authenticated user's id, or "" outside RequireAuth.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

// CurrentUser is the user loaded by RequireAuth.
func CurrentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(userKey).(*models.User)
	return u
}
