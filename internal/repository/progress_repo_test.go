package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-api/internal/models"
)

func TestProgressRepositoryApplyRecomputesLevel(t *testing.T) {
	db := setupTestDB(t, &models.StudentProgress{})
	repo := NewProgressRepository(db)
	ctx := context.Background()
	student := seedStudent(t, db, "Asha Rao", nil)

	progress, err := repo.Apply(ctx, student.ID, ProgressDelta{ExperiencePoints: 2400, TotalPoints: 50, TestsPassed: 1})
	require.NoError(t, err)
	require.Equal(t, 3, progress.Level)

	streak := 2
	today := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	progress, err = repo.Apply(ctx, student.ID, ProgressDelta{ExperiencePoints: 100, LoginStreak: &streak, LastActiveOn: &today})
	require.NoError(t, err)
	require.Equal(t, 2500, progress.ExperiencePoints)
	require.Equal(t, 3, progress.Level)
	require.Equal(t, 50, progress.TotalPoints)
	require.Equal(t, 1, progress.TestsPassed)
	require.Equal(t, 2, progress.LoginStreak)
}

func TestProgressRepositoryLeaderboardOrdersByPoints(t *testing.T) {
	db := setupTestDB(t, &models.StudentProgress{})
	repo := NewProgressRepository(db)
	ctx := context.Background()

	for i, points := range []int{50, 80, 65} {
		student := seedStudent(t, db, []string{"Ana", "Ben", "Cara"}[i], nil)
		_, err := repo.Apply(ctx, student.ID, ProgressDelta{TotalPoints: points})
		require.NoError(t, err)
	}

	rows, err := repo.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 80, rows[0].TotalPoints)
	require.Equal(t, "Ben", rows[0].Name)
	require.Equal(t, 65, rows[1].TotalPoints)
}

func TestProgressRepositoryLeaderboardBreaksTiesByStudentID(t *testing.T) {
	db := setupTestDB(t, &models.StudentProgress{})
	repo := NewProgressRepository(db)
	ctx := context.Background()

	first := seedStudent(t, db, "Asha", nil)
	second := seedStudent(t, db, "Bala", nil)

	// The later student earns points first, so its progress row has the lower id.
	_, err := repo.Apply(ctx, second.ID, ProgressDelta{TotalPoints: 40})
	require.NoError(t, err)
	_, err = repo.Apply(ctx, first.ID, ProgressDelta{TotalPoints: 40})
	require.NoError(t, err)

	rows, err := repo.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, first.ID, rows[0].StudentID)
	require.Equal(t, second.ID, rows[1].StudentID)
}

func TestAchievementRepositoryAwardIsIdempotent(t *testing.T) {
	db := setupTestDB(t, &models.StudentProgress{}, &models.Achievement{}, &models.EarnedAchievement{})
	repo := NewAchievementRepository(db)
	ctx := context.Background()
	student := seedStudent(t, db, "Dev Patel", nil)

	achievement := models.Achievement{Code: "first-test", Name: "First Test", Category: "tests", Tier: models.AchievementTierBronze, Points: 25}
	require.NoError(t, repo.Create(ctx, &achievement))

	earned, inserted, err := repo.Award(ctx, student.ID, achievement, time.Now())
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, achievement.ID, earned.AchievementID)

	_, inserted, err = repo.Award(ctx, student.ID, achievement, time.Now())
	require.NoError(t, err)
	require.False(t, inserted)

	list, err := repo.ListEarned(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "First Test", list[0].Achievement.Name)

	progress, err := NewProgressRepository(db).GetOrCreate(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, 25, progress.TotalPoints)
}
