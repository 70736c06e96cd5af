package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

// SessionRepository persists server-side sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Find(ctx context.Context, id string) (models.Session, error)
	Touch(ctx context.Context, id string, expiresAt time.Time) error
	UpdateData(ctx context.Context, id string, data models.SessionData, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) Find(ctx context.Context, id string) (models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return models.Session{}, err
	}
	return session, nil
}

func (r *sessionRepository) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).Update("expires_at", expiresAt).Error
}

func (r *sessionRepository) UpdateData(ctx context.Context, id string, data models.SessionData, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).Updates(map[string]interface{}{
		"data":       datatypes.NewJSONType(data),
		"expires_at": expiresAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Session{}).Error
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}
