package service

import (
	"github.com/noah-isme/coaching-api/internal/models"
)

const xpPerLevel = 1000

// ActivityKind names an event that accrues experience or points.
type ActivityKind string

const (
	ActivityLogin               ActivityKind = "login"
	ActivityTestPassed          ActivityKind = "test_passed"
	ActivityNoteDownloaded      ActivityKind = "note_downloaded"
	ActivityPerfectAttendance   ActivityKind = "perfect_attendance"
	ActivityAssignmentCompleted ActivityKind = "assignment_completed"
)

type activityReward struct {
	xp     int
	points int
}

var activityRewards = map[ActivityKind]activityReward{
	ActivityLogin:               {xp: 10},
	ActivityTestPassed:          {xp: 100, points: 50},
	ActivityNoteDownloaded:      {xp: 5, points: 2},
	ActivityPerfectAttendance:   {xp: 20, points: 10},
	ActivityAssignmentCompleted: {xp: 50, points: 25},
}

// DeriveLevel maps experience points to a level; every 1000 XP is one level.
func DeriveLevel(experiencePoints int) int {
	if experiencePoints < 0 {
		experiencePoints = 0
	}
	return experiencePoints/xpPerLevel + 1
}

// ProgressToNextLevel is the percentage of the current level already earned.
func ProgressToNextLevel(experiencePoints int) float64 {
	if experiencePoints < 0 {
		experiencePoints = 0
	}
	level := DeriveLevel(experiencePoints)
	return float64(experiencePoints-(level-1)*xpPerLevel) / xpPerLevel * 100
}

// XPToNextLevel is the experience still needed to reach the next level.
func XPToNextLevel(experiencePoints int) int {
	if experiencePoints < 0 {
		experiencePoints = 0
	}
	return DeriveLevel(experiencePoints)*xpPerLevel - experiencePoints
}

// progressMetric reads the counter an auto-award rule refers to.
func progressMetric(progress models.StudentProgress, metric string) (int, bool) {
	switch metric {
	case "experience_points":
		return progress.ExperiencePoints, true
	case "level":
		return DeriveLevel(progress.ExperiencePoints), true
	case "login_streak":
		return progress.LoginStreak, true
	case "tests_passed":
		return progress.TestsPassed, true
	case "notes_downloaded":
		return progress.NotesDownloaded, true
	case "perfect_attendance_days":
		return progress.PerfectAttendance, true
	case "completed_assignments":
		return progress.CompletedAssignments, true
	case "total_points":
		return progress.TotalPoints, true
	default:
		return 0, false
	}
}
