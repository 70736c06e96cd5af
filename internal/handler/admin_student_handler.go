package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/utils"
)

// AdminStudentHandler serves the admin roster.
type AdminStudentHandler struct {
	students service.StudentService
	logger   zerolog.Logger
}

// NewAdminStudentHandler builds the roster handler.
func NewAdminStudentHandler(students service.StudentService, logger zerolog.Logger) *AdminStudentHandler {
	return &AdminStudentHandler{
		students: students,
		logger:   logger.With().Str("component", "admin_student_handler").Logger(),
	}
}

// Register mounts GET / on the admin students group.
func (h *AdminStudentHandler) Register(router fiber.Router) {
	router.Get("", h.roster)
}

// roster answers ?search=&classId=&sort=&page=&page_size=.
func (h *AdminStudentHandler) roster(c *fiber.Ctx) error {
	window, err := parsePageWindow(c, 20, 100)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	classID, err := parseQueryID(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	roster, err := h.students.AdminList(c.UserContext(), dto.AdminStudentListRequest{
		Search:   c.Query("search"),
		ClassID:  classID,
		Sort:     c.Query("sort"),
		Page:     window.Page,
		PageSize: window.PageSize,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list students")
	}
	return utils.SendSuccess(c, "students retrieved", roster)
}
