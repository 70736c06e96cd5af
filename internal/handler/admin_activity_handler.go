package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/utils"
)

var errInvalidSince = errors.New("since must be an RFC3339 timestamp")

// AdminActivityHandler serves the audit trail.
type AdminActivityHandler struct {
	activity service.ActivityService
	logger   zerolog.Logger
}

// NewAdminActivityHandler builds the audit trail handler.
func NewAdminActivityHandler(activity service.ActivityService, logger zerolog.Logger) *AdminActivityHandler {
	return &AdminActivityHandler{
		activity: activity,
		logger:   logger.With().Str("component", "admin_activity_handler").Logger(),
	}
}

// Register mounts GET / on the admin activity group.
func (h *AdminActivityHandler) Register(router fiber.Router) {
	router.Get("", h.trail)
}

func (h *AdminActivityHandler) trail(c *fiber.Ctx) error {
	query, err := activityQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entries, err := h.activity.List(c.UserContext(), query)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list activity logs")
	}
	return utils.SendSuccess(c, "activity logs", entries)
}

func activityQuery(c *fiber.Ctx) (dto.AdminActivityListRequest, error) {
	window, err := parsePageWindow(c, 25, 200)
	if err != nil {
		return dto.AdminActivityListRequest{}, err
	}
	query := dto.AdminActivityListRequest{
		Page:       window.Page,
		PageSize:   window.PageSize,
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}
	if query.ActorID, err = parseQueryID(c, "actor_id"); err != nil {
		return dto.AdminActivityListRequest{}, err
	}
	if query.EntityID, err = parseQueryID(c, "entity_id"); err != nil {
		return dto.AdminActivityListRequest{}, err
	}

	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return dto.AdminActivityListRequest{}, errInvalidSince
		}
		query.Since = &since
	}
	return query, nil
}
