package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

// ActivityLogFilter narrows audit log queries. Nil and empty fields match everything.
type ActivityLogFilter struct {
	Page       int
	PageSize   int
	ActorID    *uint
	Action     string
	EntityType string
	EntityID   *uint
	Since      *time.Time
}

func (f ActivityLogFilter) scope(db *gorm.DB) *gorm.DB {
	if f.ActorID != nil {
		db = db.Where("actor_id = ?", *f.ActorID)
	}
	if f.Action != "" {
		db = db.Where("action = ?", f.Action)
	}
	if f.EntityType != "" {
		db = db.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != nil {
		db = db.Where("entity_id = ?", *f.EntityID)
	}
	if f.Since != nil {
		db = db.Where("created_at >= ?", *f.Since)
	}
	return db
}

// ActivityLogRepository persists the admin audit trail. Entries are append-only.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns the newest entries first.
func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ActivityLog{}).Scopes(filter.scope)

	var entries []models.ActivityLog
	total, err := countAndFind(query, filter.Page, filter.PageSize, &entries, "created_at DESC", "id DESC")
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
