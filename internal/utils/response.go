package utils

import "github.com/gofiber/fiber/v3"

// SuccessResponse sends a standardized success envelope.
func SuccessResponse(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// ErrorResponse sends a standardized error envelope.
func ErrorResponse(c fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// PaginatedResponse sends a page of data plus paging metadata.
func PaginatedResponse(c fiber.Ctx, data any, page, pageSize, total int) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
			"pages":     (total + pageSize - 1) / pageSize,
		},
	})
}
