package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/coaching-api/internal/models"
)

// AchievementRepository manages the achievement catalog and earned records.
type AchievementRepository interface {
	List(ctx context.Context) ([]models.Achievement, error)
	ListAutoAwarded(ctx context.Context) ([]models.Achievement, error)
	GetByID(ctx context.Context, id uint) (models.Achievement, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, achievement *models.Achievement) error
	Award(ctx context.Context, studentID uint, achievement models.Achievement, at time.Time) (models.EarnedAchievement, bool, error)
	ListEarned(ctx context.Context, studentID uint) ([]models.EarnedAchievement, error)
}

type achievementRepository struct {
	db *gorm.DB
}

// NewAchievementRepository constructs an achievement repository.
func NewAchievementRepository(db *gorm.DB) AchievementRepository {
	return &achievementRepository{db: db}
}

func (r *achievementRepository) List(ctx context.Context) ([]models.Achievement, error) {
	var achievements []models.Achievement
	if err := r.db.WithContext(ctx).Order("category ASC").Order("points ASC").Order("id ASC").Find(&achievements).Error; err != nil {
		return nil, err
	}
	return achievements, nil
}

func (r *achievementRepository) ListAutoAwarded(ctx context.Context) ([]models.Achievement, error) {
	var achievements []models.Achievement
	if err := r.db.WithContext(ctx).
		Where("metric <> '' AND threshold > 0").
		Order("id ASC").
		Find(&achievements).Error; err != nil {
		return nil, err
	}
	return achievements, nil
}

func (r *achievementRepository) GetByID(ctx context.Context, id uint) (models.Achievement, error) {
	var achievement models.Achievement
	if err := r.db.WithContext(ctx).First(&achievement, id).Error; err != nil {
		return models.Achievement{}, err
	}
	return achievement, nil
}

func (r *achievementRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Achievement{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *achievementRepository) Create(ctx context.Context, achievement *models.Achievement) error {
	return r.db.WithContext(ctx).Create(achievement).Error
}

// Award inserts the earned record against the unique (student, achievement) index.
// The boolean is false when the student already held the achievement.
func (r *achievementRepository) Award(ctx context.Context, studentID uint, achievement models.Achievement, at time.Time) (models.EarnedAchievement, bool, error) {
	earned := models.EarnedAchievement{
		StudentID:     studentID,
		AchievementID: achievement.ID,
		EarnedAt:      at,
	}
	inserted := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Omit("Achievement", "Student").
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&earned)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		inserted = true

		if achievement.Points == 0 {
			return nil
		}
		if _, err := getOrCreateProgress(tx, studentID); err != nil {
			return err
		}
		return tx.Model(&models.StudentProgress{}).
			Where("student_id = ?", studentID).
			Update("total_points", gorm.Expr("total_points + ?", achievement.Points)).Error
	})
	if err != nil {
		return models.EarnedAchievement{}, false, err
	}
	if !inserted {
		return models.EarnedAchievement{}, false, nil
	}

	earned.Achievement = achievement
	return earned, true, nil
}

func (r *achievementRepository) ListEarned(ctx context.Context, studentID uint) ([]models.EarnedAchievement, error) {
	var earned []models.EarnedAchievement
	if err := r.db.WithContext(ctx).
		Preload("Achievement").
		Where("student_id = ?", studentID).
		Order("earned_at DESC").
		Order("id DESC").
		Find(&earned).Error; err != nil {
		return nil, err
	}
	return earned, nil
}
