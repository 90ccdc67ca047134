// handlers/referral_routes.go
package handlers

import (
	"strconv"

	"referral-points-system/middleware"
	"referral-points-system/models"
	"referral-points-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupReferralRoutes(app *fiber.App, requireAuth fiber.Handler, referrals *services.ReferralService) {
	r := app.Group("/referral", requireAuth)

	r.Post("/generate", func(c *fiber.Ctx) error {
		code, created, err := referrals.EnsureReferralCode(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return err
		}
		message := "user already has a referral code"
		if created {
			message = "referral code generated"
		}
		return c.JSON(fiber.Map{"status": "success", "message": message, "referral_code": code})
	})

	r.Get("/validate/:code", func(c *fiber.Ctx) error {
		code := c.Params("code")
		if err := referrals.ValidateReferralCode(c.UserContext(), code); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "success", "message": "valid referral code", "referral_code": code})
	})

	r.Get("/history/:userId", func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		if err := requireSelf(c, userID); err != nil {
			return err
		}

		filter := services.HistoryFilter{Kind: models.ReferralEarningType(c.Query("filter"))}
		if raw := c.Query("days"); raw != "" {
			days, err := strconv.Atoi(raw)
			if err != nil || days <= 0 {
				return services.ValidationError("days must be a positive whole number")
			}
			filter.Days = days
		}

		history, err := referrals.ReferralHistory(c.UserContext(), userID, filter)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "success", "referral_history": history})
	})

	r.Get("/mine/:userId", func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		if err := requireSelf(c, userID); err != nil {
			return err
		}

		mine, err := referrals.MyReferrals(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"status":       "success",
			"referrals":    mine.Referrals,
			"total_points": mine.TotalPoints,
		})
	})

	r.Get("/top", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 10)
		if limit < 1 || limit > 100 {
			return services.ValidationError("limit must be between 1 and 100")
		}

		top, err := referrals.TopReferrers(c.UserContext(), limit)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "success", "top_referrals": top})
	})
}

// requireSelf stops users from reading or writing another user's ledgers.
func requireSelf(c *fiber.Ctx, userID string) error {
	if userID == "" {
		return services.ValidationError("user id is required")
	}
	if middleware.UserID(c) != userID {
		return services.ForbiddenError("you can only access your own account")
	}
	return nil
}
