package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/repository"
)

var (
	// ErrClassNotFound indicates the class does not exist.
	ErrClassNotFound = errors.New("class not found")
	// ErrClassExists indicates the class name is taken.
	ErrClassExists = errors.New("class already exists")
)

// ClassService manages classes.
type ClassService interface {
	List(ctx context.Context) ([]dto.ClassResponse, error)
	Create(ctx context.Context, actor ActivityActor, req dto.ClassCreateRequest) (dto.ClassResponse, error)
}

type classService struct {
	repo      repository.ClassRepository
	audit     ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewClassService constructs the class service.
func NewClassService(repo repository.ClassRepository, audit ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) ClassService {
	return &classService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger.With().Str("component", "class_service").Logger(),
	}
}

func (s *classService) List(ctx context.Context) ([]dto.ClassResponse, error) {
	classes, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ClassResponse, 0, len(classes))
	for _, class := range classes {
		responses = append(responses, dto.NewClassResponse(class))
	}
	return responses, nil
}

func (s *classService) Create(ctx context.Context, actor ActivityActor, req dto.ClassCreateRequest) (dto.ClassResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ClassResponse{}, err
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return dto.ClassResponse{}, err
	}
	if exists {
		return dto.ClassResponse{}, ErrClassExists
	}

	class := models.Class{Name: name}
	if err := s.repo.Create(ctx, &class); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.ClassResponse{}, ErrClassExists
		}
		return dto.ClassResponse{}, err
	}

	recordActivity(ctx, s.audit, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "class.created",
		EntityType: "class",
		EntityID:   uintPtr(class.ID),
		Metadata:   map[string]interface{}{"name": class.Name},
	})

	return dto.NewClassResponse(class), nil
}
