package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/anama-app/personal-data-api/internal/config"
	"github.com/anama-app/personal-data-api/internal/handler"
)

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{
		AppName:   "Anama Personal Data API",
		AppEnv:    "test",
		AppRegion: "Kazakhstan",
	}

	app := fiber.New()
	app.Get("/health", handler.HealthCheck(cfg))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload handler.HealthResponse
	err = json.NewDecoder(resp.Body).Decode(&payload)
	assert.NoError(t, err)
	assert.Equal(t, "ok", payload.Status)
	assert.Equal(t, "Kazakhstan", payload.Location)
	assert.WithinDuration(t, time.Now().UTC(), payload.Timestamp, 2*time.Second)
}
