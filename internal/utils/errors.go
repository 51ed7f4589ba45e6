package utils

import (
	"errors"

	"github.com/gofiber/fiber/v3"
)

// APIError is the JSON shape of an error response.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandler is the app-level fiber error handler: fiber errors keep
// their status, everything else becomes a 500 without leaking internals.
func ErrorHandler(c fiber.Ctx, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.StatusCode).JSON(apiErr)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"code":    "ERROR",
			"message": fiberErr.Message,
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"code":    "INTERNAL_ERROR",
		"message": "an internal error occurred",
	})
}
