package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope for status-style responses. Endpoints
// that return a resource body (Get, Export) serialize it directly.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SendSuccess sends a success envelope with the given status code.
func SendSuccess(c *fiber.Ctx, status int, message string) error {
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Message: message,
	})
}

// SendError sends an error envelope. Messages are generic by policy;
// internal detail stays in the server logs.
func SendError(c *fiber.Ctx, status int, message string) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
	})
}
