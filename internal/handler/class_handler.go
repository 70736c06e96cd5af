package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/utils"
)

// ClassHandler lists and creates classes.
type ClassHandler struct {
	service service.ClassService
	logger  zerolog.Logger
}

// NewClassHandler constructs the class handler.
func NewClassHandler(service service.ClassService, logger zerolog.Logger) *ClassHandler {
	return &ClassHandler{
		service: service,
		logger:  logger.With().Str("component", "class_handler").Logger(),
	}
}

// RegisterPublic binds the class listing used by registration forms.
func (h *ClassHandler) RegisterPublic(router fiber.Router) {
	router.Get("/classes", h.list)
}

// RegisterAdmin binds class management on an AdminGate group.
func (h *ClassHandler) RegisterAdmin(router fiber.Router) {
	router.Get("/classes", h.list)
	router.Post("/classes", h.create)
}

func (h *ClassHandler) list(c *fiber.Ctx) error {
	classes, err := h.service.List(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list classes")
	}
	return utils.SendSuccess(c, "classes retrieved", classes)
}

func (h *ClassHandler) create(c *fiber.Ctx) error {
	var payload dto.ClassCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	class, err := h.service.Create(c.UserContext(), activityActorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create class")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "class created", class)
}
