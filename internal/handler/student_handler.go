package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/session"
	"github.com/noah-isme/coaching-api/internal/utils"
)

const avatarFormField = "avatar"

// StudentHandler serves the signed-in student's profile.
type StudentHandler struct {
	students service.StudentService
	sessions *session.Manager
	logger   zerolog.Logger
}

// NewStudentHandler constructs the profile handler.
func NewStudentHandler(students service.StudentService, sessions *session.Manager, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		students: students,
		sessions: sessions,
		logger:   logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register binds profile routes on a StudentGate group.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Get("/profile", h.getProfile)
	router.Put("/profile", h.updateProfile)
	router.Post("/complete-profile", h.completeProfile)
	router.Put("/profile/avatar", h.uploadAvatar)
}

func (h *StudentHandler) getProfile(c *fiber.Ctx) error {
	student, err := h.students.GetProfile(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load profile")
	}
	return utils.SendSuccess(c, "profile retrieved", dto.NewStudentResponse(student))
}

func (h *StudentHandler) updateProfile(c *fiber.Ctx) error {
	var payload dto.ProfileUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.students.UpdateProfile(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update profile")
	}

	h.refreshSession(c, student)
	return utils.SendSuccess(c, "profile updated", dto.NewStudentResponse(student))
}

func (h *StudentHandler) completeProfile(c *fiber.Ctx) error {
	var payload dto.CompleteProfileRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.students.CompleteProfile(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to complete profile")
	}

	h.refreshSession(c, student)
	return utils.SendSuccess(c, "profile completed", dto.StudentAuthResponse{
		User:             dto.NewStudentResponse(student),
		ProfileCompleted: student.ProfileCompleted,
	})
}

func (h *StudentHandler) uploadAvatar(c *fiber.Ctx) error {
	file, err := c.FormFile(avatarFormField)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "avatar file required")
	}

	reader, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read avatar")
	}
	defer reader.Close()

	student, err := h.students.UploadAvatar(c.UserContext(), userIDFromContext(c), reader)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to upload avatar")
	}

	h.refreshSession(c, student)
	return utils.SendSuccess(c, "avatar updated", dto.NewStudentResponse(student))
}

// refreshSession keeps the session principal in step with profile edits.
func (h *StudentHandler) refreshSession(c *fiber.Ctx, student models.Student) {
	if h.sessions == nil {
		return
	}
	principal := student.Principal()
	if err := h.sessions.Update(c, models.SessionData{Student: &principal}); err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Uint("student_id", student.ID).Msg("failed to refresh session")
	}
}
