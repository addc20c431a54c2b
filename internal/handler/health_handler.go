package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/anama-app/personal-data-api/internal/config"
)

// HealthResponse reports service liveness and, for residency
// compliance, the region the data is stored in.
type HealthResponse struct {
	Status    string    `json:"status"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck returns a handler that reports application health.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(HealthResponse{
			Status:    "ok",
			Location:  cfg.AppRegion,
			Timestamp: time.Now().UTC(),
		})
	}
}
