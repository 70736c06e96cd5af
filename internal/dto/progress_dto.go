package dto

import (
	"time"

	"github.com/noah-isme/coaching-api/internal/models"
)

// ProgressResponse exposes counters and the derived level.
type ProgressResponse struct {
	StudentID             uint       `json:"studentId"`
	ExperiencePoints      int        `json:"experiencePoints"`
	Level                 int        `json:"level"`
	ProgressToNextLevel   float64    `json:"progressToNextLevel"`
	XPToNextLevel         int        `json:"xpToNextLevel"`
	LoginStreak           int        `json:"loginStreak"`
	LastActiveOn          *time.Time `json:"lastActiveOn,omitempty"`
	TestsPassed           int        `json:"testsPassed"`
	NotesDownloaded       int        `json:"notesDownloaded"`
	PerfectAttendanceDays int        `json:"perfectAttendanceDays"`
	CompletedAssignments  int        `json:"completedAssignments"`
	TotalPoints           int        `json:"totalPoints"`
}

// AchievementCreateRequest adds an achievement to the catalog.
type AchievementCreateRequest struct {
	Code        string `json:"code" validate:"required,min=2,max=64"`
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Category    string `json:"category" validate:"required,min=2,max=64"`
	Tier        string `json:"tier" validate:"required,oneof=bronze silver gold platinum"`
	Points      int    `json:"points" validate:"gte=0"`
	Icon        string `json:"icon" validate:"omitempty,max=64"`
	Metric      string `json:"metric" validate:"omitempty,oneof=experience_points level login_streak tests_passed notes_downloaded perfect_attendance_days completed_assignments total_points"`
	Threshold   int    `json:"threshold" validate:"gte=0"`
}

// AchievementResponse describes a catalog entry.
type AchievementResponse struct {
	ID          uint   `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Tier        string `json:"tier"`
	Points      int    `json:"points"`
	Icon        string `json:"icon,omitempty"`
	Metric      string `json:"metric,omitempty"`
	Threshold   int    `json:"threshold,omitempty"`
}

// NewAchievementResponse converts an achievement.
func NewAchievementResponse(achievement models.Achievement) AchievementResponse {
	return AchievementResponse{
		ID:          achievement.ID,
		Code:        achievement.Code,
		Name:        achievement.Name,
		Description: achievement.Description,
		Category:    achievement.Category,
		Tier:        string(achievement.Tier),
		Points:      achievement.Points,
		Icon:        achievement.Icon,
		Metric:      achievement.Metric,
		Threshold:   achievement.Threshold,
	}
}

// EarnedAchievementResponse describes an achievement held by a student.
type EarnedAchievementResponse struct {
	StudentID   uint                `json:"studentId"`
	Achievement AchievementResponse `json:"achievement"`
	EarnedAt    time.Time           `json:"earnedAt"`
}

// NewEarnedAchievementResponse converts an earned record with its achievement.
func NewEarnedAchievementResponse(earned models.EarnedAchievement) EarnedAchievementResponse {
	return EarnedAchievementResponse{
		StudentID:   earned.StudentID,
		Achievement: NewAchievementResponse(earned.Achievement),
		EarnedAt:    earned.EarnedAt,
	}
}

// AwardAchievementResponse reports whether a manual award created a record.
type AwardAchievementResponse struct {
	Awarded bool                       `json:"awarded"`
	Earned  *EarnedAchievementResponse `json:"earned,omitempty"`
}

// LeaderboardEntryResponse is one ranked leaderboard line.
type LeaderboardEntryResponse struct {
	Rank        int    `json:"rank"`
	StudentID   uint   `json:"studentId"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	TotalPoints int    `json:"totalPoints"`
	Level       int    `json:"level"`
}
