package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

// StudentRepository provides access to student records.
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Student, error)
	FindByEmail(ctx context.Context, email string) (models.Student, error)
	FindByPhone(ctx context.Context, phone string) (models.Student, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Student, error)
	TouchLogin(ctx context.Context, id uint, at time.Time) error
	ListByClass(ctx context.Context, classID uint) ([]models.Student, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Preload("Class").First(&student, id).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) FindByEmail(ctx context.Context, email string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) FindByPhone(ctx context.Context, phone string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Student{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Student, error) {
	result := r.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.Student{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Student{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *studentRepository) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", id).Update("last_login_at", at).Error
}

func (r *studentRepository) ListByClass(ctx context.Context, classID uint) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("name ASC").
		Order("id ASC").
		Find(&students).Error; err != nil {
		return nil, err
	}

	return students, nil
}
