package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/coaching-api/internal/models"
)

func TestAttendanceRepositoryUpsertKeepsOneRecordPerDay(t *testing.T) {
	db := setupTestDB(t, &models.AttendanceRecord{})
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	student := seedStudent(t, db, "Esha Nair", nil)
	day := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	first := models.AttendanceRecord{StudentID: student.ID, Date: datatypes.Date(day), Status: models.AttendanceStatusAbsent, MarkedBy: 1}
	previous, err := repo.Upsert(ctx, &first)
	require.NoError(t, err)
	require.Empty(t, previous)

	second := models.AttendanceRecord{StudentID: student.ID, Date: datatypes.Date(day), Status: models.AttendanceStatusPresent, Remarks: "late", MarkedBy: 2}
	previous, err = repo.Upsert(ctx, &second)
	require.NoError(t, err)
	require.Equal(t, models.AttendanceStatusAbsent, previous)
	require.Equal(t, first.ID, second.ID)

	records, err := repo.ListByStudentsAndDate(ctx, []uint{student.ID}, day)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, models.AttendanceStatusPresent, records[0].Status)
	require.Equal(t, "late", records[0].Remarks)

	from := day.AddDate(0, 0, -1)
	history, err := repo.ListByStudent(ctx, student.ID, &from, nil)
	require.NoError(t, err)
	require.Len(t, history, 1)
}
