package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/middleware"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/session"
	"github.com/noah-isme/coaching-api/internal/utils"
)

// Client routes the frontend navigates to after sign-in.
const (
	studentDashboardPath = "/dashboard"
	completeProfilePath  = "/complete-profile"
	adminDashboardPath   = "/admin/dashboard"
)

// AuthHandler serves the student and admin sign-in flows.
type AuthHandler struct {
	auth     service.AuthService
	sessions *session.Manager
	logger   zerolog.Logger
}

// NewAuthHandler constructs the auth handler.
func NewAuthHandler(auth service.AuthService, sessions *session.Manager, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		logger:   logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterStudent binds the public student auth routes. verifyLimit guards code verification.
func (h *AuthHandler) RegisterStudent(router fiber.Router, verifyLimit fiber.Handler) {
	router.Post("/request-otp", h.requestOTP)
	if verifyLimit != nil {
		router.Post("/verify-otp", verifyLimit, h.verifyOTP)
	} else {
		router.Post("/verify-otp", h.verifyOTP)
	}
	router.Post("/check-email", h.checkEmail)
	router.Post("/email-login", h.emailLogin)
	router.Post("/email-register", h.emailRegister)
	router.Post("/logout", h.logout)
}

// RegisterAdmin binds the public admin auth routes.
func (h *AuthHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/login", h.adminLogin)
	router.Post("/logout", h.logout)
}

func (h *AuthHandler) requestOTP(c *fiber.Ctx) error {
	var payload dto.RequestOTPRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.auth.RequestOTP(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to send verification code")
	}

	return utils.SendSuccess(c, response.Message, response)
}

func (h *AuthHandler) verifyOTP(c *fiber.Ctx) error {
	var payload dto.VerifyOTPRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.auth.VerifyOTP(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to verify code")
	}

	if err := h.startStudentSession(c, student); err != nil {
		return h.sessionFailed(c, err)
	}

	return utils.SendSuccess(c, "signed in", dto.StudentAuthResponse{
		User:             dto.NewStudentResponse(student),
		ProfileCompleted: student.ProfileCompleted,
	})
}

func (h *AuthHandler) checkEmail(c *fiber.Ctx) error {
	var payload dto.CheckEmailRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.auth.CheckEmail(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to check email")
	}

	return utils.SendSuccess(c, "email checked", response)
}

func (h *AuthHandler) emailLogin(c *fiber.Ctx) error {
	var payload dto.EmailLoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.auth.Login(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to sign in")
	}

	if result.Admin != nil {
		if err := h.startAdminSession(c, *result.Admin); err != nil {
			return h.sessionFailed(c, err)
		}
		admin := dto.NewAdminResponse(*result.Admin)
		return utils.SendSuccess(c, "signed in", dto.EmailLoginResponse{
			Role:             "admin",
			Admin:            &admin,
			ProfileCompleted: true,
			RedirectTo:       adminDashboardPath,
		})
	}

	student := *result.Student
	if err := h.startStudentSession(c, student); err != nil {
		return h.sessionFailed(c, err)
	}
	user := dto.NewStudentResponse(student)
	return utils.SendSuccess(c, "signed in", dto.EmailLoginResponse{
		Role:             "student",
		User:             &user,
		ProfileCompleted: student.ProfileCompleted,
		RedirectTo:       studentLanding(student),
	})
}

func (h *AuthHandler) emailRegister(c *fiber.Ctx) error {
	var payload dto.EmailRegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.auth.Register(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to register")
	}

	if err := h.startStudentSession(c, student); err != nil {
		return h.sessionFailed(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "registered", dto.StudentAuthResponse{
		User:             dto.NewStudentResponse(student),
		ProfileCompleted: student.ProfileCompleted,
	})
}

func (h *AuthHandler) adminLogin(c *fiber.Ctx) error {
	var payload dto.AdminLoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	admin, err := h.auth.AdminLogin(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to sign in")
	}

	if err := h.startAdminSession(c, admin); err != nil {
		return h.sessionFailed(c, err)
	}

	return utils.SendSuccess(c, "signed in", dto.NewAdminResponse(admin))
}

// logout succeeds whether or not a session exists.
func (h *AuthHandler) logout(c *fiber.Ctx) error {
	if err := h.sessions.Destroy(c); err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Msg("failed to delete session row")
	}
	return utils.SendSuccess(c, "signed out", nil)
}

// Me returns the admin principal of the current session.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	admin, ok := session.Admin(c)
	if !ok {
		return utils.Unauthorized(c, middleware.AdminLoginPath)
	}
	return utils.SendSuccess(c, "admin profile", admin)
}

func (h *AuthHandler) startStudentSession(c *fiber.Ctx, student models.Student) error {
	principal := student.Principal()
	return h.sessions.Start(c, models.SessionData{Student: &principal})
}

func (h *AuthHandler) startAdminSession(c *fiber.Ctx, admin models.Admin) error {
	principal := admin.Principal()
	return h.sessions.Start(c, models.SessionData{Admin: &principal})
}

func (h *AuthHandler) sessionFailed(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("failed to start session")
	return utils.SendError(c, fiber.StatusInternalServerError, "failed to start session")
}

func studentLanding(student models.Student) string {
	if student.ProfileCompleted {
		return studentDashboardPath
	}
	return completeProfilePath
}
