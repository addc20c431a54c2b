package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/anama-app/personal-data-api/internal/dto"
	"github.com/anama-app/personal-data-api/internal/service"
	"github.com/anama-app/personal-data-api/internal/utils"
)

// PersonalDataHandler exposes the personal data lifecycle endpoints.
type PersonalDataHandler struct {
	service service.PersonalDataService
	logger  zerolog.Logger
}

// NewPersonalDataHandler constructs the handler.
func NewPersonalDataHandler(service service.PersonalDataService, logger zerolog.Logger) *PersonalDataHandler {
	return &PersonalDataHandler{
		service: service,
		logger:  logger.With().Str("component", "personal_data_handler").Logger(),
	}
}

// Register attaches routes.
func (h *PersonalDataHandler) Register(router fiber.Router) {
	router.Post("", h.save)
	router.Get("/:visitorId", h.get)
	router.Delete("/:visitorId", h.delete)
	router.Patch("/:visitorId/anonymize", h.anonymize)
	router.Get("/:visitorId/export", h.export)
}

func (h *PersonalDataHandler) save(c *fiber.Ctx) error {
	var req dto.SavePersonalDataRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.Save(c.Context(), req, c.IP()); err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid personal data payload")
		}
		h.logger.Error().Err(err).Str("visitor_id", req.VisitorID).Msg("failed to save personal data")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, fiber.StatusCreated, "")
}

func (h *PersonalDataHandler) get(c *fiber.Ctx) error {
	visitorID, err := visitorIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "visitor id is required")
	}

	record, err := h.service.Get(c.Context(), visitorID, c.IP())
	if err != nil {
		if errors.Is(err, service.ErrPersonalDataNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "not found")
		}
		h.logger.Error().Err(err).Str("visitor_id", visitorID).Msg("failed to get personal data")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return c.JSON(record)
}

func (h *PersonalDataHandler) delete(c *fiber.Ctx) error {
	visitorID, err := visitorIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "visitor id is required")
	}

	if err := h.service.Delete(c.Context(), visitorID, c.IP()); err != nil {
		h.logger.Error().Err(err).Str("visitor_id", visitorID).Msg("failed to delete personal data")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, fiber.StatusOK, "Data deleted successfully")
}

func (h *PersonalDataHandler) anonymize(c *fiber.Ctx) error {
	visitorID, err := visitorIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "visitor id is required")
	}

	if err := h.service.Anonymize(c.Context(), visitorID, c.IP()); err != nil {
		h.logger.Error().Err(err).Str("visitor_id", visitorID).Msg("failed to anonymize personal data")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, fiber.StatusOK, "")
}

func (h *PersonalDataHandler) export(c *fiber.Ctx) error {
	visitorID, err := visitorIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "visitor id is required")
	}

	payload, err := h.service.Export(c.Context(), visitorID, c.IP())
	if err != nil {
		h.logger.Error().Err(err).Str("visitor_id", visitorID).Msg("failed to export personal data")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return c.JSON(payload)
}

func visitorIDParam(c *fiber.Ctx) (string, error) {
	visitorID := strings.TrimSpace(c.Params("visitorId"))
	if visitorID == "" {
		return "", errors.New("visitor id is required")
	}
	return visitorID, nil
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
