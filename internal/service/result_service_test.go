package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/repository"
)

type fakeNotificationPublisher struct {
	published []dto.NotificationCreateRequest
	err       error
}

func (f *fakeNotificationPublisher) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	f.published = append(f.published, payload)
	return dto.NotificationResponse{}, f.err
}

type fakeLeaderboardInvalidator struct {
	calls int
}

func (f *fakeLeaderboardInvalidator) InvalidateLeaderboard(ctx context.Context) {
	f.calls++
}

type resultFixture struct {
	db            *gorm.DB
	svc           ResultService
	notifications *fakeNotificationPublisher
	activity      *fakeActivityTracker
	leaderboard   *fakeLeaderboardInvalidator
	audit         *fakeAuditRecorder
	class         models.Class
	students      []models.Student
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()
	db := setupServiceDB(t)
	class := seedClass(t, db, "Class 10")
	students := []models.Student{
		seedClassStudent(t, db, "Student One", class.ID),
		seedClassStudent(t, db, "Student Two", class.ID),
		seedClassStudent(t, db, "Student Three", class.ID),
		seedClassStudent(t, db, "Student Four", class.ID),
	}

	f := &resultFixture{
		db:            db,
		notifications: &fakeNotificationPublisher{},
		activity:      &fakeActivityTracker{},
		leaderboard:   &fakeLeaderboardInvalidator{},
		audit:         &fakeAuditRecorder{},
		class:         class,
		students:      students,
	}
	f.svc = NewResultService(
		repository.NewResultRepository(db),
		repository.NewClassRepository(db),
		repository.NewStudentRepository(db),
		f.notifications,
		f.activity,
		f.leaderboard,
		f.audit,
		testValidator(),
		testLogger(),
	)
	return f
}

func (f *resultFixture) publishRequest(marks ...float64) dto.ResultPublishRequest {
	req := dto.ResultPublishRequest{
		ClassID:    f.class.ID,
		ExamName:   "Unit Test 1",
		Subject:    "Physics",
		ExamDate:   "2025-03-14",
		TotalMarks: 100,
	}
	for i, mark := range marks {
		req.Results = append(req.Results, dto.ResultMarkInput{StudentID: f.students[i].ID, Marks: mark})
	}
	return req
}

func TestPublishRanksAndPersistsEntries(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	actor := ActivityActor{ID: 7, Role: models.AdminRoleSuper}

	publication, err := f.svc.Publish(ctx, actor, f.publishRequest(72, 91, 35, 91))
	require.NoError(t, err)
	require.NotZero(t, publication.ID)
	require.Len(t, publication.Entries, 4)

	require.Equal(t, f.students[1].ID, publication.Entries[0].StudentID)
	require.Equal(t, 1, publication.Entries[0].Rank)
	require.Equal(t, "A+", publication.Entries[0].Grade)
	require.Equal(t, f.students[3].ID, publication.Entries[1].StudentID)
	require.Equal(t, 2, publication.Entries[1].Rank)
	require.Equal(t, 3, publication.Entries[2].Rank)
	require.Equal(t, "B+", publication.Entries[2].Grade)
	require.Equal(t, "F", publication.Entries[3].Grade)

	var stored int64
	require.NoError(t, f.db.Model(&models.ResultEntry{}).Where("publication_id = ?", publication.ID).Count(&stored).Error)
	require.EqualValues(t, 4, stored)

	require.Len(t, f.notifications.published, 1)
	require.Equal(t, models.ClassAudience(f.class.ID), f.notifications.published[0].Audience)
	require.Equal(t, "result_published", f.notifications.published[0].Type)
	require.Equal(t, 3, f.activity.count(ActivityTestPassed))
	require.Equal(t, 1, f.leaderboard.calls)
	require.Len(t, f.audit.entries, 1)
	require.Equal(t, "result.published", f.audit.entries[0].Action)
	require.Equal(t, actor.ID, f.audit.entries[0].ActorID)
}

func TestPublishSurvivesFollowUpFailures(t *testing.T) {
	f := newResultFixture(t)
	f.notifications.err = errors.New("broker down")
	f.activity.err = errors.New("progress down")

	publication, err := f.svc.Publish(context.Background(), ActivityActor{ID: 1}, f.publishRequest(80, 60))
	require.NoError(t, err)
	require.NotZero(t, publication.ID)
	require.Equal(t, 1, f.leaderboard.calls)
}

func TestPublishValidation(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	actor := ActivityActor{ID: 1}

	_, err := f.svc.Publish(ctx, actor, f.publishRequest(101))
	require.ErrorIs(t, err, ErrMarksOutOfRange)

	duplicate := f.publishRequest(50, 60)
	duplicate.Results[1].StudentID = duplicate.Results[0].StudentID
	_, err = f.svc.Publish(ctx, actor, duplicate)
	require.ErrorIs(t, err, ErrDuplicateResultStudent)

	other := seedClass(t, f.db, "Class 11")
	outsider := seedClassStudent(t, f.db, "Outsider", other.ID)
	foreign := f.publishRequest(50)
	foreign.Results = append(foreign.Results, dto.ResultMarkInput{StudentID: outsider.ID, Marks: 40})
	_, err = f.svc.Publish(ctx, actor, foreign)
	require.ErrorIs(t, err, ErrStudentNotInClass)

	missingClass := f.publishRequest(50)
	missingClass.ClassID = 999
	_, err = f.svc.Publish(ctx, actor, missingClass)
	require.ErrorIs(t, err, ErrClassNotFound)

	empty := f.publishRequest()
	_, err = f.svc.Publish(ctx, actor, empty)
	require.True(t, isValidationErr(err))

	var count int64
	require.NoError(t, f.db.Model(&models.ResultPublication{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, f.notifications.published)
}

func TestStudentResultDetailSplitsPodium(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()

	publication, err := f.svc.Publish(ctx, ActivityActor{ID: 1}, f.publishRequest(40, 90, 70, 55))
	require.NoError(t, err)

	detail, err := f.svc.DetailForStudent(ctx, f.students[0].ID, publication.ID)
	require.NoError(t, err)
	require.Len(t, detail.Podium, 3)
	require.Len(t, detail.Leaderboard, 1)
	require.Equal(t, "Student Two", detail.Podium[0].StudentName)
	require.NotNil(t, detail.Mine)
	require.Equal(t, 4, detail.Mine.Rank)
	require.Empty(t, detail.Publication.Entries)

	summaries, err := f.svc.ListForStudent(ctx, f.students[2].ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, 2, summaries[0].Rank)
	require.Equal(t, "B+", summaries[0].Grade)
	require.Equal(t, "Physics", summaries[0].Subject)
}

func TestStudentResultDetailHiddenFromOtherClasses(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()

	publication, err := f.svc.Publish(ctx, ActivityActor{ID: 1}, f.publishRequest(40, 90))
	require.NoError(t, err)

	other := seedClass(t, f.db, "Class 12")
	outsider := seedClassStudent(t, f.db, "Outsider", other.ID)
	_, err = f.svc.DetailForStudent(ctx, outsider.ID, publication.ID)
	require.ErrorIs(t, err, ErrResultNotFound)

	// Enrolled but absent from the exam still sees the class result.
	detail, err := f.svc.DetailForStudent(ctx, f.students[3].ID, publication.ID)
	require.NoError(t, err)
	require.Nil(t, detail.Mine)
	require.Len(t, detail.Podium, 2)
	require.Empty(t, detail.Leaderboard)

	_, err = f.svc.DetailForStudent(ctx, f.students[0].ID, 999)
	require.ErrorIs(t, err, ErrResultNotFound)
}

func TestListPublicationsFiltersByClass(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()

	_, err := f.svc.Publish(ctx, ActivityActor{ID: 1}, f.publishRequest(40))
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, ActivityActor{ID: 1}, f.publishRequest(60, 70))
	require.NoError(t, err)

	list, err := f.svc.List(ctx, dto.ResultListRequest{ClassID: f.class.ID, Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.EqualValues(t, 2, list.Pagination.TotalItems)

	list, err = f.svc.List(ctx, dto.ResultListRequest{ClassID: 999})
	require.NoError(t, err)
	require.Empty(t, list.Items)
}
