package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

// ProgressDelta describes counter increments applied by a single activity.
type ProgressDelta struct {
	ExperiencePoints     int
	TotalPoints          int
	TestsPassed          int
	NotesDownloaded      int
	PerfectAttendance    int
	CompletedAssignments int
	LoginStreak          *int
	LastActiveOn         *time.Time
}

// LeaderboardRow is a ranked leaderboard line.
type LeaderboardRow struct {
	StudentID        uint
	Name             string
	AvatarURL        string
	TotalPoints      int
	Level            int
	ExperiencePoints int
}

// ProgressRepository persists gamification counters.
type ProgressRepository interface {
	GetOrCreate(ctx context.Context, studentID uint) (models.StudentProgress, error)
	Apply(ctx context.Context, studentID uint, delta ProgressDelta) (models.StudentProgress, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository constructs a progress repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) GetOrCreate(ctx context.Context, studentID uint) (models.StudentProgress, error) {
	return getOrCreateProgress(r.db.WithContext(ctx), studentID)
}

// Apply increments counters in one statement and recomputes the level from the new experience points.
func (r *progressRepository) Apply(ctx context.Context, studentID uint, delta ProgressDelta) (models.StudentProgress, error) {
	var progress models.StudentProgress
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getOrCreateProgress(tx, studentID); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"experience_points":     gorm.Expr("experience_points + ?", delta.ExperiencePoints),
			"level":                 gorm.Expr("((experience_points + ?) / 1000) + 1", delta.ExperiencePoints),
			"total_points":          gorm.Expr("total_points + ?", delta.TotalPoints),
			"tests_passed":          gorm.Expr("tests_passed + ?", delta.TestsPassed),
			"notes_downloaded":      gorm.Expr("notes_downloaded + ?", delta.NotesDownloaded),
			"perfect_attendance":    gorm.Expr("perfect_attendance + ?", delta.PerfectAttendance),
			"completed_assignments": gorm.Expr("completed_assignments + ?", delta.CompletedAssignments),
		}
		if delta.LoginStreak != nil {
			updates["login_streak"] = *delta.LoginStreak
		}
		if delta.LastActiveOn != nil {
			updates["last_active_on"] = *delta.LastActiveOn
		}

		if err := tx.Model(&models.StudentProgress{}).Where("student_id = ?", studentID).Updates(updates).Error; err != nil {
			return err
		}

		return tx.Where("student_id = ?", studentID).First(&progress).Error
	})
	if err != nil {
		return models.StudentProgress{}, err
	}
	return progress, nil
}

// Leaderboard orders by total points descending, then by student id.
func (r *progressRepository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	if err := r.db.WithContext(ctx).
		Table("student_progresses AS p").
		Select("p.student_id, s.name, s.avatar_url, p.total_points, p.level, p.experience_points").
		Joins("JOIN students AS s ON s.id = p.student_id").
		Order("p.total_points DESC").
		Order("p.student_id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func getOrCreateProgress(db *gorm.DB, studentID uint) (models.StudentProgress, error) {
	progress := models.StudentProgress{StudentID: studentID, Level: 1}
	if err := db.Where(models.StudentProgress{StudentID: studentID}).
		Omit("Student").
		FirstOrCreate(&progress).Error; err != nil {
		return models.StudentProgress{}, err
	}
	return progress, nil
}
