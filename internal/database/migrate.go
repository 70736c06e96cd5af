package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Class{},
		&models.Student{},
		&models.Admin{},
		&models.OneTimePasscode{},
		&models.Session{},
		&models.Chapter{},
		&models.ContentItem{},
		&models.AttendanceRecord{},
		&models.ResultPublication{},
		&models.ResultEntry{},
		&models.StudentProgress{},
		&models.Achievement{},
		&models.EarnedAchievement{},
		&models.Notification{},
		&models.NotificationReceipt{},
		&models.ActivityLog{},
	}
}

// Migrate creates or updates the schema for every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
