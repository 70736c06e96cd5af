package models

import "time"

// StudentProgress holds the gamification counters of a student.
type StudentProgress struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	StudentID            uint       `gorm:"not null;uniqueIndex" json:"student_id"`
	ExperiencePoints     int        `gorm:"not null;default:0" json:"experience_points"`
	Level                int        `gorm:"not null;default:1" json:"level"`
	LoginStreak          int        `gorm:"not null;default:0" json:"login_streak"`
	LastActiveOn         *time.Time `json:"last_active_on"`
	TestsPassed          int        `gorm:"not null;default:0" json:"tests_passed"`
	NotesDownloaded      int        `gorm:"not null;default:0" json:"notes_downloaded"`
	PerfectAttendance    int        `gorm:"not null;default:0" json:"perfect_attendance_days"`
	CompletedAssignments int        `gorm:"not null;default:0" json:"completed_assignments"`
	TotalPoints          int        `gorm:"not null;default:0;index" json:"total_points"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	Student              Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// AchievementTier ranks achievements by difficulty.
type AchievementTier string

const (
	AchievementTierBronze   AchievementTier = "bronze"
	AchievementTierSilver   AchievementTier = "silver"
	AchievementTierGold     AchievementTier = "gold"
	AchievementTierPlatinum AchievementTier = "platinum"
)

// Achievement is a catalog entry students can earn.
type Achievement struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Code        string          `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Category    string          `gorm:"size:64;not null" json:"category"`
	Tier        AchievementTier `gorm:"size:16;not null" json:"tier"`
	Points      int             `gorm:"not null;default:0" json:"points"`
	Icon        string          `gorm:"size:64" json:"icon"`
	Metric      string          `gorm:"size:64" json:"metric"`
	Threshold   int             `gorm:"not null;default:0" json:"threshold"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AutoAwarded reports whether the achievement carries an automatic award rule.
func (a Achievement) AutoAwarded() bool {
	return a.Metric != "" && a.Threshold > 0
}

// EarnedAchievement records that a student earned an achievement.
type EarnedAchievement struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	StudentID     uint        `gorm:"not null;uniqueIndex:idx_earned_student_achievement,priority:1" json:"student_id"`
	AchievementID uint        `gorm:"not null;uniqueIndex:idx_earned_student_achievement,priority:2" json:"achievement_id"`
	EarnedAt      time.Time   `gorm:"not null" json:"earned_at"`
	Achievement   Achievement `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"achievement"`
	Student       Student     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
