package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

// ResultFilter narrows publication listings.
type ResultFilter struct {
	ClassID  *uint
	Page     int
	PageSize int
}

// StudentResultRow is one publication as seen by a single student.
type StudentResultRow struct {
	PublicationID uint
	ClassID       uint
	ExamName      string
	Subject       string
	ExamDate      *time.Time
	TotalMarks    float64
	PublishedAt   time.Time
	Marks         float64
	Rank          int
	Grade         string
	Percentage    float64
}

// ResultRepository persists published exam results.
type ResultRepository interface {
	CreatePublication(ctx context.Context, publication *models.ResultPublication) error
	List(ctx context.Context, filter ResultFilter) ([]models.ResultPublication, int64, error)
	GetPublication(ctx context.Context, id uint) (models.ResultPublication, error)
	ListForStudent(ctx context.Context, studentID uint) ([]StudentResultRow, error)
}

type resultRepository struct {
	db *gorm.DB
}

// NewResultRepository constructs a result repository.
func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

// CreatePublication stores the publication and every entry atomically.
func (r *resultRepository) CreatePublication(ctx context.Context, publication *models.ResultPublication) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries := publication.Entries
		publication.Entries = nil

		if err := tx.Create(publication).Error; err != nil {
			return err
		}

		for i := range entries {
			entries[i].PublicationID = publication.ID
		}
		if len(entries) > 0 {
			if err := tx.Omit("Student").Create(&entries).Error; err != nil {
				return err
			}
		}

		publication.Entries = entries
		return nil
	})
}

func (r *resultRepository) List(ctx context.Context, filter ResultFilter) ([]models.ResultPublication, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ResultPublication{})
	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}

	var publications []models.ResultPublication
	total, err := countAndFind(query, filter.Page, filter.PageSize, &publications, "published_at DESC", "id DESC")
	if err != nil {
		return nil, 0, err
	}
	return publications, total, nil
}

func (r *resultRepository) GetPublication(ctx context.Context, id uint) (models.ResultPublication, error) {
	var publication models.ResultPublication
	if err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("rank ASC")
		}).
		Preload("Entries.Student").
		First(&publication, id).Error; err != nil {
		return models.ResultPublication{}, err
	}
	return publication, nil
}

func (r *resultRepository) ListForStudent(ctx context.Context, studentID uint) ([]StudentResultRow, error) {
	var rows []StudentResultRow
	if err := r.db.WithContext(ctx).
		Table("result_entries AS e").
		Select(`p.id AS publication_id, p.class_id, p.exam_name, p.subject, p.exam_date, p.total_marks,
			p.published_at, e.marks, e.rank, e.grade, e.percentage`).
		Joins("JOIN result_publications AS p ON p.id = e.publication_id").
		Where("e.student_id = ?", studentID).
		Order("p.published_at DESC").
		Order("p.id DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
