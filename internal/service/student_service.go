package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/repository"
)

const maxAvatarBytes = 5 * 1024 * 1024

var (
	// ErrStudentNotFound indicates the student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrPhoneTaken indicates the phone number belongs to another student.
	ErrPhoneTaken = errors.New("phone number already registered")
	// ErrStorageUnavailable indicates the required file storage is not configured.
	ErrStorageUnavailable = errors.New("file storage unavailable")
	// ErrUnsupportedFileType indicates an upload whose detected type is not allowed.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileTooLarge indicates an upload above the size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// AvatarUploader stores a student's profile picture and returns its public URL.
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, studentID uint, reader io.Reader) (string, error)
}

// StudentService manages student profiles.
type StudentService interface {
	GetProfile(ctx context.Context, studentID uint) (models.Student, error)
	UpdateProfile(ctx context.Context, studentID uint, req dto.ProfileUpdateRequest) (models.Student, error)
	CompleteProfile(ctx context.Context, studentID uint, req dto.CompleteProfileRequest) (models.Student, error)
	UploadAvatar(ctx context.Context, studentID uint, reader io.Reader) (models.Student, error)
	AdminList(ctx context.Context, req dto.AdminStudentListRequest) (dto.AdminStudentListResponse, error)
}

type studentService struct {
	students           repository.StudentRepository
	listing            repository.AdminStudentRepository
	classes            repository.ClassRepository
	avatars            AvatarUploader
	defaultCountryCode string
	validator          *validator.Validate
	logger             zerolog.Logger
}

// NewStudentService constructs the student service. A nil uploader disables avatar uploads.
func NewStudentService(students repository.StudentRepository, listing repository.AdminStudentRepository, classes repository.ClassRepository, avatars AvatarUploader, defaultCountryCode string, validate *validator.Validate, logger zerolog.Logger) StudentService {
	return &studentService{
		students:           students,
		listing:            listing,
		classes:            classes,
		avatars:            avatars,
		defaultCountryCode: defaultCountryCode,
		validator:          validate,
		logger:             logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) GetProfile(ctx context.Context, studentID uint) (models.Student, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, ErrStudentNotFound
		}
		return models.Student{}, err
	}
	return student, nil
}

func (s *studentService) UpdateProfile(ctx context.Context, studentID uint, req dto.ProfileUpdateRequest) (models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Student{}, err
	}

	current, err := s.GetProfile(ctx, studentID)
	if err != nil {
		return models.Student{}, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.ParentName != nil {
		updates["parent_name"] = strings.TrimSpace(*req.ParentName)
	}
	if req.School != nil {
		updates["school"] = strings.TrimSpace(*req.School)
	}
	if req.ClassID != nil {
		if err := s.ensureClass(ctx, *req.ClassID); err != nil {
			return models.Student{}, err
		}
		updates["class_id"] = *req.ClassID
	}
	if req.Email != nil {
		email, err := s.claimEmail(ctx, current, *req.Email)
		if err != nil {
			return models.Student{}, err
		}
		updates["email"] = email
	}
	if req.Phone != nil {
		phone, err := s.claimPhone(ctx, current, *req.Phone)
		if err != nil {
			return models.Student{}, err
		}
		updates["phone"] = phone
	}

	if len(updates) == 0 {
		return current, nil
	}
	return s.apply(ctx, studentID, updates)
}

func (s *studentService) CompleteProfile(ctx context.Context, studentID uint, req dto.CompleteProfileRequest) (models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Student{}, err
	}

	current, err := s.GetProfile(ctx, studentID)
	if err != nil {
		return models.Student{}, err
	}
	if err := s.ensureClass(ctx, req.ClassID); err != nil {
		return models.Student{}, err
	}

	updates := map[string]interface{}{
		"class_id":          req.ClassID,
		"parent_name":       strings.TrimSpace(req.ParentName),
		"school":            strings.TrimSpace(req.School),
		"profile_completed": true,
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if strings.TrimSpace(req.Email) != "" {
		email, err := s.claimEmail(ctx, current, req.Email)
		if err != nil {
			return models.Student{}, err
		}
		updates["email"] = email
	}
	if strings.TrimSpace(req.Phone) != "" {
		phone, err := s.claimPhone(ctx, current, req.Phone)
		if err != nil {
			return models.Student{}, err
		}
		updates["phone"] = phone
	}

	student, err := s.apply(ctx, studentID, updates)
	if err != nil {
		return models.Student{}, err
	}

	s.logger.Info().Uint("student_id", studentID).Msg("student profile completed")
	return student, nil
}

func (s *studentService) UploadAvatar(ctx context.Context, studentID uint, reader io.Reader) (models.Student, error) {
	if s.avatars == nil {
		return models.Student{}, ErrStorageUnavailable
	}

	if _, err := s.GetProfile(ctx, studentID); err != nil {
		return models.Student{}, err
	}

	payload, err := io.ReadAll(io.LimitReader(reader, maxAvatarBytes+1))
	if err != nil {
		return models.Student{}, fmt.Errorf("read avatar: %w", err)
	}
	if len(payload) > maxAvatarBytes {
		return models.Student{}, ErrFileTooLarge
	}

	detected := mimetype.Detect(payload)
	if !strings.HasPrefix(detected.String(), "image/") {
		return models.Student{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, detected.String())
	}

	url, err := s.avatars.UploadAvatar(ctx, studentID, bytes.NewReader(payload))
	if err != nil {
		s.logger.Error().Err(err).Uint("student_id", studentID).Msg("avatar upload failed")
		return models.Student{}, err
	}

	return s.apply(ctx, studentID, map[string]interface{}{"avatar_url": url})
}

func (s *studentService) AdminList(ctx context.Context, req dto.AdminStudentListRequest) (dto.AdminStudentListResponse, error) {
	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	filter := repository.AdminStudentFilter{
		Search:   strings.TrimSpace(req.Search),
		Sort:     strings.TrimSpace(req.Sort),
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.ClassID > 0 {
		filter.ClassID = &req.ClassID
	}

	students, total, err := s.listing.List(ctx, filter)
	if err != nil {
		return dto.AdminStudentListResponse{}, err
	}

	items := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		items = append(items, dto.NewStudentResponse(student))
	}

	return dto.AdminStudentListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *studentService) apply(ctx context.Context, studentID uint, updates map[string]interface{}) (models.Student, error) {
	student, err := s.students.Update(ctx, studentID, updates)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return models.Student{}, ErrStudentNotFound
		case errors.Is(err, gorm.ErrDuplicatedKey):
			if _, ok := updates["phone"]; ok {
				return models.Student{}, ErrPhoneTaken
			}
			return models.Student{}, ErrEmailTaken
		}
		return models.Student{}, err
	}
	return student, nil
}

func (s *studentService) ensureClass(ctx context.Context, classID uint) error {
	if _, err := s.classes.GetByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		return err
	}
	return nil
}

func (s *studentService) claimEmail(ctx context.Context, current models.Student, raw string) (string, error) {
	email, err := normalizeEmail(raw)
	if err != nil {
		return "", err
	}
	if email == current.EmailValue() {
		return email, nil
	}

	existing, err := s.students.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != current.ID:
		return "", ErrEmailTaken
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return "", err
	}
	return email, nil
}

func (s *studentService) claimPhone(ctx context.Context, current models.Student, raw string) (string, error) {
	phone, err := normalizePhone(raw, s.defaultCountryCode)
	if err != nil {
		return "", err
	}
	if phone == current.PhoneValue() {
		return phone, nil
	}

	existing, err := s.students.FindByPhone(ctx, phone)
	switch {
	case err == nil && existing.ID != current.ID:
		return "", ErrPhoneTaken
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return "", err
	}
	return phone, nil
}
