package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/coaching-api/internal/models"
)

// AttendanceRepository persists daily attendance.
type AttendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) (models.AttendanceStatus, error)
	ListByStudentsAndDate(ctx context.Context, studentIDs []uint, date time.Time) ([]models.AttendanceRecord, error)
	ListByStudent(ctx context.Context, studentID uint, from, to *time.Time) ([]models.AttendanceRecord, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository constructs an attendance repository.
func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

// Upsert writes the record keyed by (student, date) and returns the previous status, empty when none existed.
func (r *attendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (models.AttendanceStatus, error) {
	var previous models.AttendanceStatus
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.AttendanceRecord
		err := tx.Where("student_id = ? AND date = ?", record.StudentID, record.Date).First(&existing).Error
		switch {
		case err == nil:
			previous = existing.Status
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "remarks", "marked_by", "updated_at"}),
		}).Create(record).Error; err != nil {
			return err
		}

		return tx.Where("student_id = ? AND date = ?", record.StudentID, record.Date).First(record).Error
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

func (r *attendanceRepository) ListByStudentsAndDate(ctx context.Context, studentIDs []uint, date time.Time) ([]models.AttendanceRecord, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}

	var records []models.AttendanceRecord
	if err := r.db.WithContext(ctx).
		Where("student_id IN ? AND date = ?", studentIDs, datatypes.Date(date)).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *attendanceRepository) ListByStudent(ctx context.Context, studentID uint, from, to *time.Time) ([]models.AttendanceRecord, error) {
	query := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	if from != nil {
		query = query.Where("date >= ?", datatypes.Date(*from))
	}
	if to != nil {
		query = query.Where("date <= ?", datatypes.Date(*to))
	}

	var records []models.AttendanceRecord
	if err := query.Order("date DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
