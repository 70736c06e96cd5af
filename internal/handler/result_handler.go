package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/utils"
)

// ResultHandler publishes exam results and serves them back to students.
type ResultHandler struct {
	service service.ResultService
	logger  zerolog.Logger
}

// NewResultHandler constructs the result handler.
func NewResultHandler(service service.ResultService, logger zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		service: service,
		logger:  logger.With().Str("component", "result_handler").Logger(),
	}
}

// RegisterAdmin binds publishing and listing on an AdminGate group.
func (h *ResultHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/results/publish", h.publish)
	router.Get("/results", h.list)
}

// RegisterStudent binds the student's own results.
func (h *ResultHandler) RegisterStudent(router fiber.Router) {
	router.Get("/results", h.studentResults)
	router.Get("/results/:id", h.studentResult)
}

func (h *ResultHandler) publish(c *fiber.Ctx) error {
	var payload dto.ResultPublishRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	publication, err := h.service.Publish(c.UserContext(), activityActorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to publish results")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "results published", publication)
}

func (h *ResultHandler) list(c *fiber.Ctx) error {
	window, err := parsePageWindow(c, 0, 0)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	classID, err := parseQueryID(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.List(c.UserContext(), dto.ResultListRequest{
		ClassID:  classID,
		Page:     window.Page,
		PageSize: window.PageSize,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list results")
	}
	return utils.SendSuccess(c, "results retrieved", response)
}

func (h *ResultHandler) studentResults(c *fiber.Ctx) error {
	results, err := h.service.ListForStudent(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list results")
	}
	return utils.SendSuccess(c, "results retrieved", results)
}

func (h *ResultHandler) studentResult(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid result id")
	}

	detail, err := h.service.DetailForStudent(c.UserContext(), userIDFromContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load result")
	}
	return utils.SendSuccess(c, "result retrieved", detail)
}
