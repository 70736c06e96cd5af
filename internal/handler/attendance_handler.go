package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/utils"
)

// AttendanceHandler records and reports class attendance.
type AttendanceHandler struct {
	service service.AttendanceService
	logger  zerolog.Logger
}

// NewAttendanceHandler constructs the attendance handler.
func NewAttendanceHandler(service service.AttendanceService, logger zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		logger:  logger.With().Str("component", "attendance_handler").Logger(),
	}
}

// RegisterAdmin binds marking and class reports on an AdminGate group.
func (h *AttendanceHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/attendance/mark", h.mark)
	router.Get("/attendance/class/:classId/date/:date", h.classReport)
}

// RegisterStudent binds the student's own attendance history.
func (h *AttendanceHandler) RegisterStudent(router fiber.Router) {
	router.Get("/attendance", h.studentHistory)
}

func (h *AttendanceHandler) mark(c *fiber.Ctx) error {
	var payload dto.AttendanceMarkRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.Mark(c.UserContext(), activityActorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to mark attendance")
	}
	return utils.SendSuccess(c, "attendance marked", record)
}

func (h *AttendanceHandler) classReport(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid class id")
	}

	report, err := h.service.ListByClassAndDate(c.UserContext(), classID, c.Params("date"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load attendance")
	}
	return utils.SendSuccess(c, "attendance retrieved", report)
}

func (h *AttendanceHandler) studentHistory(c *fiber.Ctx) error {
	history, err := h.service.ListForStudent(c.UserContext(), userIDFromContext(c), c.Query("from"), c.Query("to"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load attendance")
	}
	return utils.SendSuccess(c, "attendance retrieved", history)
}
