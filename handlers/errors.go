// handlers/errors.go
package handlers

import (
	"errors"

	"referral-points-system/logging"
	"referral-points-system/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler turns every error returned by a route into
// {"status": "fail"|"error", "message": ...}. Client errors are "fail".
// Unexpected errors are logged and, outside development, hidden.
func ErrorHandler(log *logging.Logger, development bool) fiber.ErrorHandler {
	log = log.Named("http")

	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "something went wrong"
		expected := false

		var fiberErr *fiber.Error
		if appErr, ok := services.AsAppError(err); ok {
			code = appErr.StatusCode()
			expected = code < fiber.StatusInternalServerError
			if expected || development {
				message = appErr.Message
			}
		} else if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			expected = code < fiber.StatusInternalServerError
			if expected || development {
				message = fiberErr.Message
			}
		} else if development {
			message = err.Error()
		}

		if !expected {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		status := "error"
		if code < fiber.StatusInternalServerError {
			status = "fail"
		}
		body := fiber.Map{"status": status, "message": message}
		if development {
			body["error_trace"] = err.Error()
		}
		return c.Status(code).JSON(body)
	}
}

// parseBody decodes the JSON body into dst and runs struct validation.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return services.ValidationError("invalid request body")
	}
	return services.Validate(dst)
}
