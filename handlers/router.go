// handlers/router.go
package handlers

import (
	"slices"
	"strings"

	"referral-points-system/logging"
	"referral-points-system/middleware"
	"referral-points-system/services"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps is everything the routes need.
type Deps struct {
	DB        *gorm.DB
	Auth      *services.AuthService
	Referrals *services.ReferralService
	Ledger    *services.LedgerService
	Settings  *services.SettingsService
	Gatherer  prometheus.Gatherer

	LoginLimiter  *middleware.RateLimiter
	AdminToken    string
	SecureCookies bool
}

// NewApp builds the fiber app with the JSON codec, error handler, panic
// recovery and CORS.
func NewApp(log *logging.Logger, development bool, allowedOrigins []string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "referral-points-system",
		BodyLimit:    1 * 1024 * 1024,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: ErrorHandler(log, development),
	})

	// fiber refuses credentials with a wildcard, which is also its default for an empty list
	credentials := len(allowedOrigins) > 0 && !slices.Contains(allowedOrigins, "*")
	if !credentials {
		log.Warn("CORS origins are not explicit, cross-origin cookies disabled", zap.Strings("origins", allowedOrigins))
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: development}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + middleware.AdminTokenHeader,
		AllowCredentials: credentials,
		MaxAge:           86400,
	}))
	return app
}

func SetupRoutes(app *fiber.App, log *logging.Logger, d Deps) {
	requireAuth := middleware.RequireAuth(d.Auth)
	adminGate := middleware.AdminGate(d.AdminToken, log)

	loginLimiter := func(c *fiber.Ctx) error { return c.Next() }
	if d.LoginLimiter != nil {
		loginLimiter = d.LoginLimiter.Handler()
	}

	SetupHealthRoutes(app, d.DB, d.Gatherer)
	SetupAuthRoutes(app, d.Auth, loginLimiter, d.SecureCookies)
	SetupReferralRoutes(app, requireAuth, d.Referrals)
	SetupGameRoutes(app, requireAuth, d.Ledger)
	SetupCMSRoutes(app, requireAuth, adminGate, d.Settings, d.Ledger)
}
