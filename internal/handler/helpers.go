package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coaching-api/internal/middleware"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// pageWindow is the page selection read from page and page_size.
type pageWindow struct {
	Page     int
	PageSize int
}

// parsePageWindow defaults page to 1 and page_size to def, capping the size at max when max > 0.
func parsePageWindow(c *fiber.Ctx, def, max int) (pageWindow, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return pageWindow{}, errors.New("invalid page")
	}
	size, err := parseQueryInt(c, "page_size")
	if err != nil {
		return pageWindow{}, errors.New("invalid page size")
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = def
	}
	if max > 0 && size > max {
		size = max
	}
	return pageWindow{Page: page, PageSize: size}, nil
}

// parseQueryID reads an optional numeric id filter; absent yields zero.
func parseQueryID(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func activityActorFromContext(c *fiber.Ctx) service.ActivityActor {
	return service.ActivityActor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// validationDetails maps each failing field to the tag it failed.
func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[lowerFirst(fieldErr.Field())] = fieldErr.Tag()
	}
	return details
}

func lowerFirst(value string) string {
	if value == "" {
		return value
	}
	return strings.ToLower(value[:1]) + value[1:]
}

type errorMapping struct {
	target  error
	status  int
	message string
}

var serviceErrors = []errorMapping{
	{service.ErrInvalidIdentifier, fiber.StatusBadRequest, "invalid email address or phone number"},
	{service.ErrInvalidDate, fiber.StatusBadRequest, "date must use the YYYY-MM-DD format"},
	{service.ErrInvalidDateRange, fiber.StatusBadRequest, "from date must not be after to date"},
	{service.ErrInvalidAudience, fiber.StatusBadRequest, "invalid notification audience"},
	{service.ErrMarksOutOfRange, fiber.StatusBadRequest, "marks must be between 0 and total marks"},
	{service.ErrDuplicateResultStudent, fiber.StatusBadRequest, "student listed more than once"},
	{service.ErrStudentNotInClass, fiber.StatusBadRequest, "student does not belong to class"},
	{service.ErrUnknownActivity, fiber.StatusBadRequest, "unknown activity"},
	{service.ErrUnsupportedFileType, fiber.StatusUnsupportedMediaType, "unsupported file type"},
	{service.ErrFileTooLarge, fiber.StatusRequestEntityTooLarge, "file too large"},
	{service.ErrInvalidOTP, fiber.StatusUnauthorized, "invalid or expired code"},
	{service.ErrInvalidCredentials, fiber.StatusUnauthorized, "invalid credentials"},
	{service.ErrStudentNotFound, fiber.StatusNotFound, "student not found"},
	{service.ErrClassNotFound, fiber.StatusNotFound, "class not found"},
	{service.ErrChapterNotFound, fiber.StatusNotFound, "chapter not found"},
	{service.ErrContentNotFound, fiber.StatusNotFound, "content not found"},
	{service.ErrResultNotFound, fiber.StatusNotFound, "result not found"},
	{service.ErrAchievementNotFound, fiber.StatusNotFound, "achievement not found"},
	{service.ErrNotificationNotFound, fiber.StatusNotFound, "notification not found"},
	{service.ErrEmailTaken, fiber.StatusConflict, "email already registered"},
	{service.ErrPhoneTaken, fiber.StatusConflict, "phone number already registered"},
	{service.ErrClassExists, fiber.StatusConflict, "class already exists"},
	{service.ErrAchievementExists, fiber.StatusConflict, "achievement code already exists"},
	{service.ErrOTPRateLimited, fiber.StatusTooManyRequests, "too many code requests, try again later"},
	{service.ErrOTPDeliveryFailed, fiber.StatusBadGateway, "failed to deliver verification code"},
	{service.ErrStorageUnavailable, fiber.StatusServiceUnavailable, "file storage unavailable"},
}

// sendServiceError translates service errors into the response envelope. Unknown errors are logged as 500s.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	if isValidationError(err) {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	}
	for _, mapping := range serviceErrors {
		if errors.Is(err, mapping.target) {
			return utils.SendError(c, mapping.status, mapping.message)
		}
	}

	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg(fallback)
	return utils.SendError(c, fiber.StatusInternalServerError, fallback)
}
