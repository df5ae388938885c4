package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// SuccessResponse sends data as JSON with status
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// MessageResponse sends a mutation acknowledgement
func MessageResponse(c *fiber.Ctx, message string, status int) error {
	return c.Status(status).JSON(fiber.Map{
		"message": message,
	})
}

// ErrorResponse sends the standard error envelope
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(errorBody(c, message, status, errorType))
}

// PartialFailureResponse reports a bulk operation where some ids failed
func PartialFailureResponse(c *fiber.Ctx, message string, failedIDs []string) error {
	body := errorBody(c, message, fiber.StatusMultiStatus, "partial")
	body["failedIds"] = failedIDs
	return c.Status(fiber.StatusMultiStatus).JSON(body)
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, message, fiber.StatusNotFound, "notfound")
}

func errorBody(c *fiber.Ctx, message string, status int, errorType string) fiber.Map {
	return fiber.Map{
		"status":    status,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	}
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status    int      `json:"status"`
	Message   string   `json:"message"`
	Ok        bool     `json:"ok"`
	Timestamp string   `json:"timestamp"`
	URL       string   `json:"url"`
	Type      string   `json:"type,omitempty"`
	FailedIDs []string `json:"failedIds,omitempty"`
}

// MessageResponseStruct defines the schema for mutation acknowledgements
type MessageResponseStruct struct {
	Message string `json:"message"`
}
