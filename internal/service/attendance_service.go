package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/repository"
)

var (
	// ErrInvalidDate indicates a calendar date not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("date must use the YYYY-MM-DD format")
	// ErrInvalidDateRange indicates a from date after the to date.
	ErrInvalidDateRange = errors.New("from date must not be after to date")
)

// AttendanceService records and reports attendance.
type AttendanceService interface {
	Mark(ctx context.Context, actor ActivityActor, req dto.AttendanceMarkRequest) (dto.AttendanceResponse, error)
	ListByClassAndDate(ctx context.Context, classID uint, date string) (dto.ClassAttendanceResponse, error)
	ListForStudent(ctx context.Context, studentID uint, from, to string) (dto.StudentAttendanceResponse, error)
}

type attendanceService struct {
	attendance repository.AttendanceRepository
	students   repository.StudentRepository
	classes    repository.ClassRepository
	activity   ActivityTracker
	audit      ActivityRecorder
	validator  *validator.Validate
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(attendance repository.AttendanceRepository, students repository.StudentRepository, classes repository.ClassRepository, activity ActivityTracker, audit ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) AttendanceService {
	return &attendanceService{
		attendance: attendance,
		students:   students,
		classes:    classes,
		activity:   activity,
		audit:      audit,
		validator:  validate,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "attendance_service").Logger(),
	}
}

func (s *attendanceService) Mark(ctx context.Context, actor ActivityActor, req dto.AttendanceMarkRequest) (dto.AttendanceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AttendanceResponse{}, err
	}

	date, err := time.Parse(dto.DateLayout, req.Date)
	if err != nil {
		return dto.AttendanceResponse{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	if _, err := s.students.GetByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttendanceResponse{}, ErrStudentNotFound
		}
		return dto.AttendanceResponse{}, err
	}

	record := models.AttendanceRecord{
		StudentID: req.StudentID,
		Date:      datatypes.Date(date),
		Status:    models.AttendanceStatus(req.Status),
		Remarks:   strings.TrimSpace(s.sanitizer.Sanitize(req.Remarks)),
		MarkedBy:  actor.ID,
	}

	previous, err := s.attendance.Upsert(ctx, &record)
	if err != nil {
		return dto.AttendanceResponse{}, err
	}

	if record.Status == models.AttendanceStatusPresent && previous != models.AttendanceStatusPresent && s.activity != nil {
		if _, err := s.activity.RecordActivity(ctx, record.StudentID, ActivityPerfectAttendance); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", record.StudentID).Msg("failed to record attendance activity")
		}
	}

	recordActivity(ctx, s.audit, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "attendance.marked",
		EntityType: "attendance",
		EntityID:   uintPtr(record.ID),
		Metadata: map[string]interface{}{
			"student_id": record.StudentID,
			"date":       req.Date,
			"status":     req.Status,
			"previous":   string(previous),
		},
	})

	return dto.NewAttendanceResponse(record), nil
}

func (s *attendanceService) ListByClassAndDate(ctx context.Context, classID uint, date string) (dto.ClassAttendanceResponse, error) {
	day, err := time.Parse(dto.DateLayout, strings.TrimSpace(date))
	if err != nil {
		return dto.ClassAttendanceResponse{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	if _, err := s.classes.GetByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ClassAttendanceResponse{}, ErrClassNotFound
		}
		return dto.ClassAttendanceResponse{}, err
	}

	students, err := s.students.ListByClass(ctx, classID)
	if err != nil {
		return dto.ClassAttendanceResponse{}, err
	}

	ids := make([]uint, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}

	records, err := s.attendance.ListByStudentsAndDate(ctx, ids, day)
	if err != nil {
		return dto.ClassAttendanceResponse{}, err
	}
	byStudent := make(map[uint]models.AttendanceRecord, len(records))
	for _, record := range records {
		byStudent[record.StudentID] = record
	}

	response := dto.ClassAttendanceResponse{
		ClassID: classID,
		Date:    day.Format(dto.DateLayout),
		Entries: make([]dto.ClassAttendanceEntry, 0, len(students)),
	}
	for _, student := range students {
		entry := dto.ClassAttendanceEntry{StudentID: student.ID, StudentName: student.Name, Status: dto.AttendanceStatusUnmarked}
		if record, ok := byStudent[student.ID]; ok {
			entry.Status = string(record.Status)
			entry.Remarks = record.Remarks
		}

		switch entry.Status {
		case string(models.AttendanceStatusPresent):
			response.Summary.Present++
		case string(models.AttendanceStatusAbsent):
			response.Summary.Absent++
		default:
			response.Summary.Unmarked++
		}
		response.Entries = append(response.Entries, entry)
	}

	return response, nil
}

func (s *attendanceService) ListForStudent(ctx context.Context, studentID uint, from, to string) (dto.StudentAttendanceResponse, error) {
	fromDate, err := parseOptionalDate(from)
	if err != nil {
		return dto.StudentAttendanceResponse{}, err
	}
	toDate, err := parseOptionalDate(to)
	if err != nil {
		return dto.StudentAttendanceResponse{}, err
	}
	if fromDate != nil && toDate != nil && fromDate.After(*toDate) {
		return dto.StudentAttendanceResponse{}, ErrInvalidDateRange
	}

	records, err := s.attendance.ListByStudent(ctx, studentID, fromDate, toDate)
	if err != nil {
		return dto.StudentAttendanceResponse{}, err
	}

	response := dto.StudentAttendanceResponse{Records: make([]dto.AttendanceResponse, 0, len(records))}
	for _, record := range records {
		response.Records = append(response.Records, dto.NewAttendanceResponse(record))
		if record.Status == models.AttendanceStatusPresent {
			response.Summary.Present++
		} else {
			response.Summary.Absent++
		}
	}
	response.Summary.Total = len(records)
	if response.Summary.Total > 0 {
		response.Summary.Percentage = math.Round(float64(response.Summary.Present)/float64(response.Summary.Total)*10000) / 100
	}

	return response, nil
}

func parseOptionalDate(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dto.DateLayout, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, trimmed)
	}
	return &parsed, nil
}
