package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

// ClassRepository provides access to classes.
type ClassRepository interface {
	List(ctx context.Context) ([]models.Class, error)
	GetByID(ctx context.Context, id uint) (models.Class, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository constructs a class repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) List(ctx context.Context) ([]models.Class, error) {
	var classes []models.Class
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *classRepository) GetByID(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}
	return class, nil
}

func (r *classRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Class{}).Where("LOWER(name) = LOWER(?)", name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *classRepository) Create(ctx context.Context, class *models.Class) error {
	return r.db.WithContext(ctx).Create(class).Error
}
