package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/utils"
)

const defaultLeaderboardLimit = 10

// ProgressHandler exposes XP, achievements and the leaderboard.
type ProgressHandler struct {
	service service.ProgressService
	logger  zerolog.Logger
}

// NewProgressHandler constructs the progress handler.
func NewProgressHandler(service service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		logger:  logger.With().Str("component", "progress_handler").Logger(),
	}
}

// RegisterPublic binds the catalogue and the leaderboard.
func (h *ProgressHandler) RegisterPublic(router fiber.Router) {
	router.Get("/achievements", h.catalogue)
	router.Get("/leaderboard", h.leaderboard)
}

// RegisterStudent binds the student's own progress.
func (h *ProgressHandler) RegisterStudent(router fiber.Router) {
	router.Get("/progress", h.progress)
	router.Get("/achievements", h.earned)
}

// RegisterAdmin binds achievement management on an AdminGate group.
func (h *ProgressHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/achievements", h.createAchievement)
	router.Post("/students/:id/achievements/:achievementId", h.award)
}

func (h *ProgressHandler) progress(c *fiber.Ctx) error {
	progress, err := h.service.GetProgress(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load progress")
	}
	return utils.SendSuccess(c, "progress retrieved", progress)
}

func (h *ProgressHandler) earned(c *fiber.Ctx) error {
	earned, err := h.service.ListEarned(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list achievements")
	}
	return utils.SendSuccess(c, "achievements retrieved", earned)
}

func (h *ProgressHandler) catalogue(c *fiber.Ctx) error {
	achievements, err := h.service.ListAchievements(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list achievements")
	}
	return utils.SendSuccess(c, "achievements retrieved", achievements)
}

func (h *ProgressHandler) leaderboard(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	entries, err := h.service.Leaderboard(c.UserContext(), limit)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load leaderboard")
	}
	return utils.SendSuccess(c, "leaderboard retrieved", entries)
}

func (h *ProgressHandler) createAchievement(c *fiber.Ctx) error {
	var payload dto.AchievementCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	achievement, err := h.service.CreateAchievement(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create achievement")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "achievement created", achievement)
}

func (h *ProgressHandler) award(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}
	achievementID, err := parseUintParam(c, "achievementId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid achievement id")
	}

	earned, err := h.service.AwardAchievement(c.UserContext(), studentID, achievementID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to award achievement")
	}

	response := dto.AwardAchievementResponse{Awarded: earned != nil, Earned: earned}
	if earned == nil {
		return utils.SendSuccess(c, "achievement already earned", response)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "achievement awarded", response)
}
