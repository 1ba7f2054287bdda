package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrorDetail points a validation failure at a request field
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status    int           `json:"status"`
	Message   string        `json:"message"`
	Ok        bool          `json:"ok"`
	Timestamp string        `json:"timestamp"`
	URL       string        `json:"url"`
	Type      string        `json:"type,omitempty"`
	Detail    []ErrorDetail `json:"detail,omitempty"`
	IDs       []string      `json:"ids,omitempty"`
}

// MessageResponseStruct defines the schema for plain acknowledgements
type MessageResponseStruct struct {
	Message string `json:"message"`
	Ok      bool   `json:"ok"`
}

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// MessageResponse sends an acknowledgement with a message
func MessageResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusOK).JSON(MessageResponseStruct{Message: message, Ok: true})
}

// ErrorResponse sends the error envelope. field, when set, becomes the single detail entry.
func ErrorResponse(c *fiber.Ctx, status int, message, errorType, field string, ids []string) error {
	body := ErrorResponseStruct{
		Status:    status,
		Message:   message,
		Ok:        false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		URL:       c.OriginalURL(),
		Type:      errorType,
		IDs:       ids,
	}
	if field != "" {
		body.Detail = []ErrorDetail{{Field: field, Message: message}}
	}
	return c.Status(status).JSON(body)
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, fiber.StatusNotFound, message, "not_found", "", nil)
}
