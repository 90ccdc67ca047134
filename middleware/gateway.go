// middleware/gateway.go
package middleware

import (
	"crypto/subtle"

	"referral-points-system/logging"
	"referral-points-system/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminGate guards CMS writes with a shared operator token. With an empty
// token configured every request passes.
func AdminGate(expected string, log *logging.Logger) fiber.Handler {
	log = log.Named("admin_gate")
	if expected == "" {
		log.Warn("ADMIN_TOKEN is not set, CMS writes are open to any authenticated user")
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		token := c.Get(AdminTokenHeader)
		if token == "" {
			log.Info("admin token missing", zap.String("path", c.Path()))
			return services.ForbiddenError("admin token required")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			log.Warn("invalid admin token", zap.String("path", c.Path()), zap.String("ip", c.IP()))
			return services.ForbiddenError("invalid admin token")
		}
		return c.Next()
	}
}
