// handlers/game_routes.go
package handlers

import (
	"referral-points-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type playRequest struct {
	Balance *decimal.Decimal `json:"balance" validate:"required"`
}

type decisionRequest struct {
	Decision    services.Decision `json:"decision" validate:"required,oneof=win lose"`
	StakeAmount *decimal.Decimal  `json:"stake_amount" validate:"required"`
}

func SetupGameRoutes(app *fiber.App, requireAuth fiber.Handler, ledger *services.LedgerService) {
	g := app.Group("/game", requireAuth)

	// stake is debited when the game starts
	g.Post("/play/:userId", func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		if err := requireSelf(c, userID); err != nil {
			return err
		}
		var req playRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}

		entry, err := ledger.RecordGamePlay(c.UserContext(), userID, *req.Balance)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status":  "success",
			"message": "game play recorded",
			"earning": entry,
		})
	})

	g.Post("/decision/:userId", func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		if err := requireSelf(c, userID); err != nil {
			return err
		}
		var req decisionRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}

		settlement, err := ledger.SettleGameOutcome(c.UserContext(), userID, req.Decision, *req.StakeAmount)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status":     "success",
			"message":    "game outcome settled",
			"settlement": settlement,
		})
	})

	g.Get("/balance/:userId", func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		if err := requireSelf(c, userID); err != nil {
			return err
		}

		balance, err := ledger.RecomputeBalance(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "success", "current_balance": balance})
	})

	g.Get("/history/:userId", func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		if err := requireSelf(c, userID); err != nil {
			return err
		}

		earnings, err := ledger.ListEarnings(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "success", "earnings": earnings})
	})
}
