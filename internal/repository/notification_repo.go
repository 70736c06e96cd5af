package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/coaching-api/internal/models"
)

// NotificationView is a notification joined with the reading student's receipt.
type NotificationView struct {
	models.Notification
	ReadAt *time.Time
}

// NotificationRepository handles persistence for notification entities.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListForAudiences(ctx context.Context, audiences []string, studentID uint, limit, offset int) ([]NotificationView, error)
	MarkRead(ctx context.Context, id, studentID uint, at time.Time) error
	FindByID(ctx context.Context, id uint) (models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) ListForAudiences(ctx context.Context, audiences []string, studentID uint, limit, offset int) ([]NotificationView, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if len(audiences) == 0 {
		return nil, nil
	}

	var notifications []NotificationView
	if err := r.db.WithContext(ctx).
		Table("notifications").
		Select("notifications.*, notification_receipts.read_at").
		Joins("LEFT JOIN notification_receipts ON notification_receipts.notification_id = notifications.id AND notification_receipts.student_id = ?", studentID).
		Where("notifications.audience IN ?", audiences).
		Order("notifications.created_at DESC").
		Order("notifications.id DESC").
		Offset(offset).
		Limit(limit).
		Scan(&notifications).Error; err != nil {
		return nil, err
	}

	return notifications, nil
}

// MarkRead records a receipt once; repeated calls keep the first read time.
func (r *notificationRepository) MarkRead(ctx context.Context, id, studentID uint, at time.Time) error {
	receipt := models.NotificationReceipt{NotificationID: id, StudentID: studentID, ReadAt: at}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&receipt).Error
}

func (r *notificationRepository) FindByID(ctx context.Context, id uint) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).First(&notification, id).Error; err != nil {
		return models.Notification{}, err
	}
	return notification, nil
}
