package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

// AdminRepository provides access to admin accounts.
type AdminRepository interface {
	GetByID(ctx context.Context, id uint) (models.Admin, error)
	FindByEmail(ctx context.Context, email string) (models.Admin, error)
	FindByLogin(ctx context.Context, login string) (models.Admin, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, admin *models.Admin) error
	TouchLogin(ctx context.Context, id uint, at time.Time) error
}

type adminRepository struct {
	db *gorm.DB
}

// NewAdminRepository constructs an admin repository.
func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepository{db: db}
}

func (r *adminRepository) GetByID(ctx context.Context, id uint) (models.Admin, error) {
	var admin models.Admin
	if err := r.db.WithContext(ctx).First(&admin, id).Error; err != nil {
		return models.Admin{}, err
	}
	return admin, nil
}

func (r *adminRepository) FindByEmail(ctx context.Context, email string) (models.Admin, error) {
	var admin models.Admin
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&admin).Error; err != nil {
		return models.Admin{}, err
	}
	return admin, nil
}

// FindByLogin matches either the username or the email address.
func (r *adminRepository) FindByLogin(ctx context.Context, login string) (models.Admin, error) {
	var admin models.Admin
	if err := r.db.WithContext(ctx).
		Where("username = ? OR LOWER(email) = LOWER(?)", login, login).
		First(&admin).Error; err != nil {
		return models.Admin{}, err
	}
	return admin, nil
}

func (r *adminRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Admin{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *adminRepository) Create(ctx context.Context, admin *models.Admin) error {
	return r.db.WithContext(ctx).Create(admin).Error
}

func (r *adminRepository) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Admin{}).Where("id = ?", id).Update("last_login_at", at).Error
}
