package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

// ContentRepository manages chapters and the content items attached to them.
type ContentRepository interface {
	ListChaptersByClass(ctx context.Context, classID uint) ([]models.Chapter, error)
	GetChapter(ctx context.Context, id uint) (models.Chapter, error)
	CreateChapter(ctx context.Context, chapter *models.Chapter) error
	UpdateChapter(ctx context.Context, id uint, updates map[string]interface{}) (models.Chapter, error)
	DeleteChapter(ctx context.Context, id uint) ([]models.ContentItem, error)
	CreateContent(ctx context.Context, item *models.ContentItem) error
	GetContent(ctx context.Context, id uint) (models.ContentItem, models.Chapter, error)
	DeleteContent(ctx context.Context, id uint) (models.ContentItem, error)
}

type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository constructs the chapter and content repository.
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) ListChaptersByClass(ctx context.Context, classID uint) ([]models.Chapter, error) {
	var chapters []models.Chapter
	if err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Preload("Contents", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Order("subject ASC").
		Order("position ASC").
		Order("id ASC").
		Find(&chapters).Error; err != nil {
		return nil, err
	}
	return chapters, nil
}

func (r *contentRepository) GetChapter(ctx context.Context, id uint) (models.Chapter, error) {
	var chapter models.Chapter
	if err := r.db.WithContext(ctx).Preload("Contents").First(&chapter, id).Error; err != nil {
		return models.Chapter{}, err
	}
	return chapter, nil
}

func (r *contentRepository) CreateChapter(ctx context.Context, chapter *models.Chapter) error {
	return r.db.WithContext(ctx).Create(chapter).Error
}

func (r *contentRepository) UpdateChapter(ctx context.Context, id uint, updates map[string]interface{}) (models.Chapter, error) {
	result := r.db.WithContext(ctx).Model(&models.Chapter{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.Chapter{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Chapter{}, gorm.ErrRecordNotFound
	}
	return r.GetChapter(ctx, id)
}

// DeleteChapter removes the chapter and its items, returning the removed items so their objects can be cleaned up.
func (r *contentRepository) DeleteChapter(ctx context.Context, id uint) ([]models.ContentItem, error) {
	var removed []models.ContentItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chapter models.Chapter
		if err := tx.First(&chapter, id).Error; err != nil {
			return err
		}
		if err := tx.Where("chapter_id = ?", id).Find(&removed).Error; err != nil {
			return err
		}
		if err := tx.Where("chapter_id = ?", id).Delete(&models.ContentItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&chapter).Error
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *contentRepository) CreateContent(ctx context.Context, item *models.ContentItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *contentRepository) GetContent(ctx context.Context, id uint) (models.ContentItem, models.Chapter, error) {
	var item models.ContentItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return models.ContentItem{}, models.Chapter{}, err
	}

	var chapter models.Chapter
	if err := r.db.WithContext(ctx).First(&chapter, item.ChapterID).Error; err != nil {
		return models.ContentItem{}, models.Chapter{}, err
	}

	return item, chapter, nil
}

func (r *contentRepository) DeleteContent(ctx context.Context, id uint) (models.ContentItem, error) {
	var item models.ContentItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
	if err != nil {
		return models.ContentItem{}, err
	}
	return item, nil
}
