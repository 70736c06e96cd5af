package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/middleware"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/repository"
)

const (
	defaultActivityPageSize = 25
	maxActivityPageSize     = 200
	redactedValue           = "***"
)

// ErrInvalidActivityEntry rejects audit entries without an action or entity type.
var ErrInvalidActivityEntry = errors.New("activity entry requires an action and an entity type")

// Metadata keys containing any of these fragments never reach the audit table.
var redactedMetadataKeys = []string{"email", "phone", "password", "token", "otp", "secret"}

// ActivityActor is the authenticated admin performing an action.
type ActivityActor struct {
	ID   uint
	Role string
}

// ActivityEntry is one audit event before it is persisted.
type ActivityEntry struct {
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder appends audit entries.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.AdminActivityResponse, error)
}

// ActivityService records and queries the admin audit log.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, req dto.AdminActivityListRequest) (dto.AdminActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/coaching-api/internal/service/activity"),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.AdminActivityResponse, error) {
	action := strings.ToLower(strings.TrimSpace(entry.Action))
	entityType := strings.ToLower(strings.TrimSpace(entry.EntityType))
	if action == "" || entityType == "" {
		return dto.AdminActivityResponse{}, ErrInvalidActivityEntry
	}

	ctx, span := s.tracer.Start(ctx, "activity.record", trace.WithAttributes(
		attribute.String("activity.action", action),
		attribute.String("activity.entity_type", entityType),
	))
	defer span.End()

	metadata := redactMetadata(entry.Metadata)
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		metadata["correlation_id"] = correlation
	}

	log := models.ActivityLog{
		ActorID:    entry.ActorID,
		ActorRole:  actorRole(entry.ActorRole),
		Action:     action,
		EntityType: entityType,
		EntityID:   entry.EntityID,
		Metadata:   metadata,
	}
	if err := s.repo.Create(ctx, &log); err != nil {
		span.RecordError(err)
		return dto.AdminActivityResponse{}, err
	}

	return dto.NewAdminActivityResponse(log), nil
}

func (s *activityService) List(ctx context.Context, req dto.AdminActivityListRequest) (dto.AdminActivityListResponse, error) {
	switch {
	case req.PageSize <= 0:
		req.PageSize = defaultActivityPageSize
	case req.PageSize > maxActivityPageSize:
		req.PageSize = maxActivityPageSize
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	filter := repository.ActivityLogFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(req.EntityType)),
		Since:      req.Since,
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}
	if req.EntityID > 0 {
		filter.EntityID = &req.EntityID
	}

	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AdminActivityListResponse{}, err
	}

	items := make([]dto.AdminActivityResponse, len(logs))
	for i, log := range logs {
		items[i] = dto.NewAdminActivityResponse(log)
	}

	return dto.AdminActivityListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

// recordActivity writes an audit entry without failing the calling operation.
func recordActivity(ctx context.Context, recorder ActivityRecorder, logger zerolog.Logger, entry ActivityEntry) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record admin activity")
	}
}

func redactMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	redacted := make(datatypes.JSONMap, len(metadata)+1)
	for key, value := range metadata {
		if isSensitiveKey(key) {
			redacted[key] = redactedValue
			continue
		}
		redacted[key] = value
	}
	return redacted
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range redactedMetadataKeys {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

func actorRole(role string) string {
	if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
		return role
	}
	return models.ActorRoleSystem
}

func uintPtr(v uint) *uint {
	return &v
}
