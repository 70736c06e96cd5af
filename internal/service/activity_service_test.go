package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/middleware"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/repository"
)

type memoryActivityRepo struct {
	entries []models.ActivityLog
	filter  repository.ActivityLogFilter
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	m.filter = filter
	return append([]models.ActivityLog(nil), m.entries...), int64(len(m.entries)), nil
}

func TestActivityServiceRecordMasksContactDetails(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	entry, err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    1,
		ActorRole:  "Admin",
		Action:     "Student.Updated",
		EntityType: "student",
		EntityID:   uintPtr(5),
		Metadata: map[string]interface{}{
			"email": "student@example.com",
			"phone": "+919876543210",
			"field": "class",
			"otp_code": "123456",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["email"])
	require.Equal(t, "***", entry.Metadata["phone"])
	require.Equal(t, "***", entry.Metadata["otp_code"])
	require.Equal(t, "class", entry.Metadata["field"])
	require.Equal(t, "student.updated", entry.Action)
	require.Equal(t, "admin", entry.ActorRole)
}

func TestActivityServiceRecordRequiresAction(t *testing.T) {
	svc := NewActivityService(&memoryActivityRepo{}, testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: "student"})
	require.ErrorIs(t, err, ErrInvalidActivityEntry)

	_, err = svc.Record(context.Background(), ActivityEntry{Action: "class.created", EntityType: "  "})
	require.ErrorIs(t, err, ErrInvalidActivityEntry)
}

func TestActivityServiceListClampsPageSize(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{ActorID: 1, ActorRole: "admin", Action: "result.published", EntityType: "result"})
	require.NoError(t, err)

	response, err := svc.List(context.Background(), dto.AdminActivityListRequest{PageSize: 500, EntityID: 9})
	require.NoError(t, err)
	require.Len(t, response.Items, 1)
	require.Equal(t, 200, repo.filter.PageSize)
	require.Equal(t, 1, repo.filter.Page)
	require.NotNil(t, repo.filter.EntityID)
	require.Equal(t, uint(9), *repo.filter.EntityID)
	require.Equal(t, int64(1), response.Pagination.TotalItems)
}

func TestActivityServiceRecordKeepsCorrelationID(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	ctx := middleware.ContextWithCorrelation(context.Background(), "req-42")
	entry, err := svc.Record(ctx, ActivityEntry{Action: "chapter.deleted", EntityType: "chapter"})
	require.NoError(t, err)
	require.Equal(t, "req-42", entry.Metadata["correlation_id"])
	require.Equal(t, "system", entry.ActorRole)
}
