package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/observability"
	"github.com/noah-isme/coaching-api/internal/repository"
)

const podiumSize = 3

var (
	// ErrResultNotFound indicates the publication does not exist or is not visible to the student.
	ErrResultNotFound = errors.New("result not found")
	// ErrMarksOutOfRange indicates marks above the exam total.
	ErrMarksOutOfRange = errors.New("marks must be between 0 and total marks")
	// ErrDuplicateResultStudent indicates a student listed twice in one publication.
	ErrDuplicateResultStudent = errors.New("student listed more than once")
	// ErrStudentNotInClass indicates a result for a student outside the publication's class.
	ErrStudentNotInClass = errors.New("student does not belong to class")
)

// ResultService publishes ranked exam results and serves them to admins and students.
type ResultService interface {
	Publish(ctx context.Context, actor ActivityActor, req dto.ResultPublishRequest) (dto.ResultPublicationResponse, error)
	List(ctx context.Context, req dto.ResultListRequest) (dto.ResultListResponse, error)
	ListForStudent(ctx context.Context, studentID uint) ([]dto.StudentResultSummary, error)
	DetailForStudent(ctx context.Context, studentID, publicationID uint) (dto.StudentResultDetail, error)
}

type resultService struct {
	results       repository.ResultRepository
	classes       repository.ClassRepository
	students      repository.StudentRepository
	notifications NotificationPublisher
	activity      ActivityTracker
	leaderboard   LeaderboardInvalidator
	audit         ActivityRecorder
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewResultService constructs the result service. Follow-up collaborators may be nil.
func NewResultService(
	results repository.ResultRepository,
	classes repository.ClassRepository,
	students repository.StudentRepository,
	notifications NotificationPublisher,
	activity ActivityTracker,
	leaderboard LeaderboardInvalidator,
	audit ActivityRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) ResultService {
	return &resultService{
		results:       results,
		classes:       classes,
		students:      students,
		notifications: notifications,
		activity:      activity,
		leaderboard:   leaderboard,
		audit:         audit,
		validator:     validate,
		logger:        logger.With().Str("component", "result_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/coaching-api/internal/service/result"),
		now:           time.Now,
	}
}

func (s *resultService) Publish(ctx context.Context, actor ActivityActor, req dto.ResultPublishRequest) (dto.ResultPublicationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ResultPublicationResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "results.publish", trace.WithAttributes(
		attribute.Int("class.id", int(req.ClassID)),
		attribute.Int("results.count", len(req.Results)),
	))
	defer span.End()

	class, err := s.classes.GetByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResultPublicationResponse{}, ErrClassNotFound
		}
		span.RecordError(err)
		return dto.ResultPublicationResponse{}, err
	}

	members, err := s.students.ListByClass(ctx, class.ID)
	if err != nil {
		span.RecordError(err)
		return dto.ResultPublicationResponse{}, err
	}
	enrolled := make(map[uint]models.Student, len(members))
	for _, member := range members {
		enrolled[member.ID] = member
	}

	seen := make(map[uint]struct{}, len(req.Results))
	marks := make([]MarkEntry, 0, len(req.Results))
	for _, input := range req.Results {
		if input.Marks < 0 || input.Marks > req.TotalMarks {
			return dto.ResultPublicationResponse{}, fmt.Errorf("%w: student %d", ErrMarksOutOfRange, input.StudentID)
		}
		if _, dup := seen[input.StudentID]; dup {
			return dto.ResultPublicationResponse{}, fmt.Errorf("%w: student %d", ErrDuplicateResultStudent, input.StudentID)
		}
		if _, ok := enrolled[input.StudentID]; !ok {
			return dto.ResultPublicationResponse{}, fmt.Errorf("%w: student %d", ErrStudentNotInClass, input.StudentID)
		}
		seen[input.StudentID] = struct{}{}
		marks = append(marks, MarkEntry{StudentID: input.StudentID, Marks: input.Marks})
	}

	var examDate *time.Time
	if strings.TrimSpace(req.ExamDate) != "" {
		parsed, err := time.Parse(dto.DateLayout, req.ExamDate)
		if err != nil {
			return dto.ResultPublicationResponse{}, fmt.Errorf("exam date: %w: %v", ErrInvalidDate, err)
		}
		examDate = &parsed
	}

	publishedAt := s.now().UTC()
	if req.PublishedAt != nil && !req.PublishedAt.IsZero() {
		publishedAt = req.PublishedAt.UTC()
	}

	ranked := RankResults(marks, req.TotalMarks)
	publication := models.ResultPublication{
		ClassID:     class.ID,
		ExamName:    strings.TrimSpace(req.ExamName),
		Subject:     strings.TrimSpace(req.Subject),
		ExamDate:    examDate,
		TotalMarks:  req.TotalMarks,
		PublishedAt: publishedAt,
		PublishedBy: actor.ID,
		Entries:     make([]models.ResultEntry, 0, len(ranked)),
	}
	for _, entry := range ranked {
		publication.Entries = append(publication.Entries, models.ResultEntry{
			StudentID:  entry.StudentID,
			Marks:      entry.Marks,
			Rank:       entry.Rank,
			Grade:      entry.Grade,
			Percentage: entry.Percentage,
			Student:    enrolled[entry.StudentID],
		})
	}

	if err := s.results.CreatePublication(ctx, &publication); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.ResultPublicationResponse{}, err
	}

	observability.ResultsPublished().Inc()
	s.logger.Info().Uint("publication_id", publication.ID).Uint("class_id", class.ID).Int("entries", len(ranked)).Msg("results published")

	s.afterPublish(ctx, actor, class, publication, ranked)

	return dto.NewResultPublicationResponse(publication), nil
}

// afterPublish runs the follow-ups of a publish. Their failures are logged and never undo it.
func (s *resultService) afterPublish(ctx context.Context, actor ActivityActor, class models.Class, publication models.ResultPublication, ranked []RankedEntry) {
	if s.notifications != nil {
		_, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
			Audience: models.ClassAudience(class.ID),
			Type:     "result_published",
			Title:    "Results published",
			Message:  fmt.Sprintf("Results for %s (%s) are now available.", publication.ExamName, publication.Subject),
		})
		if err != nil {
			s.logger.Warn().Err(err).Uint("publication_id", publication.ID).Msg("failed to broadcast result notification")
		}
	}

	if s.activity != nil {
		for _, entry := range ranked {
			if entry.Grade == "F" {
				continue
			}
			if _, err := s.activity.RecordActivity(ctx, entry.StudentID, ActivityTestPassed); err != nil {
				s.logger.Warn().Err(err).Uint("student_id", entry.StudentID).Msg("failed to record test passed activity")
			}
		}
	}

	if s.leaderboard != nil {
		s.leaderboard.InvalidateLeaderboard(ctx)
	}

	recordActivity(ctx, s.audit, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "result.published",
		EntityType: "result_publication",
		EntityID:   uintPtr(publication.ID),
		Metadata: map[string]interface{}{
			"class_id":  class.ID,
			"exam_name": publication.ExamName,
			"subject":   publication.Subject,
			"entries":   len(ranked),
		},
	})
}

func (s *resultService) List(ctx context.Context, req dto.ResultListRequest) (dto.ResultListResponse, error) {
	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	filter := repository.ResultFilter{Page: req.Page, PageSize: req.PageSize}
	if req.ClassID > 0 {
		filter.ClassID = &req.ClassID
	}

	publications, total, err := s.results.List(ctx, filter)
	if err != nil {
		return dto.ResultListResponse{}, err
	}

	items := make([]dto.ResultPublicationResponse, 0, len(publications))
	for _, publication := range publications {
		items = append(items, dto.NewResultPublicationResponse(publication))
	}

	return dto.ResultListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *resultService) ListForStudent(ctx context.Context, studentID uint) ([]dto.StudentResultSummary, error) {
	rows, err := s.results.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.StudentResultSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, dto.StudentResultSummary{
			PublicationID: row.PublicationID,
			ExamName:      row.ExamName,
			Subject:       row.Subject,
			ExamDate:      row.ExamDate,
			TotalMarks:    row.TotalMarks,
			PublishedAt:   row.PublishedAt,
			Marks:         row.Marks,
			Rank:          row.Rank,
			Grade:         row.Grade,
			Percentage:    row.Percentage,
		})
	}
	return summaries, nil
}

func (s *resultService) DetailForStudent(ctx context.Context, studentID, publicationID uint) (dto.StudentResultDetail, error) {
	publication, err := s.results.GetPublication(ctx, publicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResultDetail{}, ErrResultNotFound
		}
		return dto.StudentResultDetail{}, err
	}

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResultDetail{}, ErrStudentNotFound
		}
		return dto.StudentResultDetail{}, err
	}

	var mine *dto.ResultEntryResponse
	entries := make([]dto.ResultEntryResponse, 0, len(publication.Entries))
	for _, entry := range publication.Entries {
		response := dto.NewResultEntryResponse(entry)
		entries = append(entries, response)
		if entry.StudentID == studentID {
			own := response
			mine = &own
		}
	}

	inClass := student.ClassID != nil && *student.ClassID == publication.ClassID
	if mine == nil && !inClass {
		return dto.StudentResultDetail{}, ErrResultNotFound
	}

	split := podiumSize
	if len(entries) < split {
		split = len(entries)
	}

	summary := dto.NewResultPublicationResponse(publication)
	summary.Entries = nil

	return dto.StudentResultDetail{
		Publication: summary,
		Podium:      entries[:split],
		Leaderboard: entries[split:],
		Mine:        mine,
	}, nil
}
