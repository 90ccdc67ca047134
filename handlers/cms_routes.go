// handlers/cms_routes.go
package handlers

import (
	"referral-points-system/models"
	"referral-points-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type settingsRequest struct {
	NewReferralPoints      *decimal.Decimal `json:"new_referral_points" validate:"required"`
	PlatformEarnPercentage *decimal.Decimal `json:"platform_earn_percentage" validate:"required"`
	ReferralEarnPercentage *decimal.Decimal `json:"referral_earn_percentage" validate:"required"`
	DurationFilterData     []int            `json:"duration_filter_data"`
}

type depositRequest struct {
	Balance *decimal.Decimal `json:"balance" validate:"required"`
}

func SetupCMSRoutes(app *fiber.App, requireAuth, adminGate fiber.Handler, settings *services.SettingsService, ledger *services.LedgerService) {
	cms := app.Group("/cms", requireAuth)

	cms.Get("/settings", func(c *fiber.Ctx) error {
		s, err := settings.Get(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(s)
	})

	cms.Put("/settings", adminGate, func(c *fiber.Ctx) error {
		var req settingsRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}

		updated, err := settings.Update(c.UserContext(), models.Setting{
			NewReferralPoints:      *req.NewReferralPoints,
			PlatformEarnPercentage: *req.PlatformEarnPercentage,
			ReferralEarnPercentage: *req.ReferralEarnPercentage,
			DurationFilterData:     datatypes.JSONSlice[int](req.DurationFilterData),
		})
		if err != nil {
			return err
		}
		return c.JSON(updated)
	})

	// operator credit of points to a user's own ledger
	cms.Post("/balance/:userId", adminGate, func(c *fiber.Ctx) error {
		var req depositRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if !req.Balance.IsPositive() {
			return services.ValidationError("balance must be a positive amount")
		}

		entry, err := ledger.RecordPlayerEarning(c.UserContext(), c.Params("userId"), models.EarningTypeDeposit, *req.Balance)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status":  "success",
			"message": "deposit recorded",
			"earning": entry,
		})
	})
}
