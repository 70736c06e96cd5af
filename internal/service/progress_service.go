package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
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

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	leaderboardCacheKey     = "leaderboard:top"
)

var (
	// ErrAchievementNotFound indicates the achievement does not exist.
	ErrAchievementNotFound = errors.New("achievement not found")
	// ErrAchievementExists indicates the achievement code is taken.
	ErrAchievementExists = errors.New("achievement code already exists")
	// ErrUnknownActivity indicates an activity kind without an accrual rule.
	ErrUnknownActivity = errors.New("unknown activity")
)

// ActivityTracker accrues progress for student activities.
type ActivityTracker interface {
	RecordActivity(ctx context.Context, studentID uint, kind ActivityKind) (dto.ProgressResponse, error)
}

// LeaderboardInvalidator drops cached leaderboard data.
type LeaderboardInvalidator interface {
	InvalidateLeaderboard(ctx context.Context)
}

// ProgressService manages experience, achievements and the leaderboard.
type ProgressService interface {
	ActivityTracker
	LeaderboardInvalidator
	GetProgress(ctx context.Context, studentID uint) (dto.ProgressResponse, error)
	ListAchievements(ctx context.Context) ([]dto.AchievementResponse, error)
	ListEarned(ctx context.Context, studentID uint) ([]dto.EarnedAchievementResponse, error)
	CreateAchievement(ctx context.Context, req dto.AchievementCreateRequest) (dto.AchievementResponse, error)
	AwardAchievement(ctx context.Context, studentID, achievementID uint) (*dto.EarnedAchievementResponse, error)
	Leaderboard(ctx context.Context, limit int) ([]dto.LeaderboardEntryResponse, error)
}

type progressService struct {
	progress     repository.ProgressRepository
	achievements repository.AchievementRepository
	students     repository.StudentRepository
	cache        *redis.Client
	cacheTTL     time.Duration
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewProgressService constructs the progress service. A nil cache disables leaderboard caching.
func NewProgressService(progress repository.ProgressRepository, achievements repository.AchievementRepository, students repository.StudentRepository, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) ProgressService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &progressService{
		progress:     progress,
		achievements: achievements,
		students:     students,
		cache:        cache,
		cacheTTL:     cacheTTL,
		validator:    validate,
		logger:       logger.With().Str("component", "progress_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/coaching-api/internal/service/progress"),
		now:          time.Now,
	}
}

func (s *progressService) RecordActivity(ctx context.Context, studentID uint, kind ActivityKind) (dto.ProgressResponse, error) {
	reward, ok := activityRewards[kind]
	if !ok {
		return dto.ProgressResponse{}, ErrUnknownActivity
	}

	ctx, span := s.tracer.Start(ctx, "progress.record_activity", trace.WithAttributes(
		attribute.Int("student.id", int(studentID)),
		attribute.String("activity.kind", string(kind)),
	))
	defer span.End()

	delta := repository.ProgressDelta{ExperiencePoints: reward.xp, TotalPoints: reward.points}
	switch kind {
	case ActivityTestPassed:
		delta.TestsPassed = 1
	case ActivityNoteDownloaded:
		delta.NotesDownloaded = 1
	case ActivityPerfectAttendance:
		delta.PerfectAttendance = 1
	case ActivityAssignmentCompleted:
		delta.CompletedAssignments = 1
	case ActivityLogin:
		current, err := s.progress.GetOrCreate(ctx, studentID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load failed")
			return dto.ProgressResponse{}, err
		}
		today := truncateToDate(s.now())
		if current.LastActiveOn != nil && truncateToDate(*current.LastActiveOn).Equal(today) {
			return newProgressResponse(current), nil
		}
		streak := 1
		if current.LastActiveOn != nil && truncateToDate(*current.LastActiveOn).Equal(today.AddDate(0, 0, -1)) {
			streak = current.LoginStreak + 1
		}
		delta.LoginStreak = &streak
		delta.LastActiveOn = &today
	}

	progress, err := s.progress.Apply(ctx, studentID, delta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		return dto.ProgressResponse{}, err
	}

	awarded := s.autoAward(ctx, progress)
	if awarded > 0 {
		refreshed, err := s.progress.GetOrCreate(ctx, studentID)
		if err == nil {
			progress = refreshed
		}
	}
	if reward.points > 0 || awarded > 0 {
		s.InvalidateLeaderboard(ctx)
	}

	return newProgressResponse(progress), nil
}

func (s *progressService) autoAward(ctx context.Context, progress models.StudentProgress) int {
	rules, err := s.achievements.ListAutoAwarded(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load achievement rules")
		return 0
	}

	awarded := 0
	for _, achievement := range rules {
		value, ok := progressMetric(progress, achievement.Metric)
		if !ok || value < achievement.Threshold {
			continue
		}
		_, inserted, err := s.achievements.Award(ctx, progress.StudentID, achievement, s.now().UTC())
		if err != nil {
			s.logger.Warn().Err(err).Str("achievement", achievement.Code).Uint("student_id", progress.StudentID).Msg("failed to auto-award achievement")
			continue
		}
		if inserted {
			awarded++
			observability.AchievementsAwarded().WithLabelValues("auto").Inc()
			s.logger.Info().Str("achievement", achievement.Code).Uint("student_id", progress.StudentID).Msg("achievement awarded")
		}
	}
	return awarded
}

func (s *progressService) GetProgress(ctx context.Context, studentID uint) (dto.ProgressResponse, error) {
	progress, err := s.progress.GetOrCreate(ctx, studentID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}
	return newProgressResponse(progress), nil
}

func (s *progressService) ListAchievements(ctx context.Context) ([]dto.AchievementResponse, error) {
	achievements, err := s.achievements.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AchievementResponse, 0, len(achievements))
	for _, achievement := range achievements {
		responses = append(responses, dto.NewAchievementResponse(achievement))
	}
	return responses, nil
}

func (s *progressService) ListEarned(ctx context.Context, studentID uint) ([]dto.EarnedAchievementResponse, error) {
	earned, err := s.achievements.ListEarned(ctx, studentID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.EarnedAchievementResponse, 0, len(earned))
	for _, item := range earned {
		responses = append(responses, dto.NewEarnedAchievementResponse(item))
	}
	return responses, nil
}

func (s *progressService) CreateAchievement(ctx context.Context, req dto.AchievementCreateRequest) (dto.AchievementResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AchievementResponse{}, err
	}

	code := strings.ToLower(strings.TrimSpace(req.Code))
	exists, err := s.achievements.ExistsByCode(ctx, code)
	if err != nil {
		return dto.AchievementResponse{}, err
	}
	if exists {
		return dto.AchievementResponse{}, ErrAchievementExists
	}

	achievement := models.Achievement{
		Code:        code,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.ToLower(strings.TrimSpace(req.Category)),
		Tier:        models.AchievementTier(req.Tier),
		Points:      req.Points,
		Icon:        strings.TrimSpace(req.Icon),
		Metric:      req.Metric,
		Threshold:   req.Threshold,
	}
	if err := s.achievements.Create(ctx, &achievement); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.AchievementResponse{}, ErrAchievementExists
		}
		return dto.AchievementResponse{}, err
	}

	return dto.NewAchievementResponse(achievement), nil
}

// AwardAchievement returns nil without error when the student already holds the achievement.
func (s *progressService) AwardAchievement(ctx context.Context, studentID, achievementID uint) (*dto.EarnedAchievementResponse, error) {
	ctx, span := s.tracer.Start(ctx, "progress.award_achievement", trace.WithAttributes(
		attribute.Int("student.id", int(studentID)),
		attribute.Int("achievement.id", int(achievementID)),
	))
	defer span.End()

	achievement, err := s.achievements.GetByID(ctx, achievementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAchievementNotFound
		}
		span.RecordError(err)
		return nil, err
	}

	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		span.RecordError(err)
		return nil, err
	}

	earned, inserted, err := s.achievements.Award(ctx, studentID, achievement, s.now().UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "award failed")
		return nil, err
	}
	if !inserted {
		return nil, nil
	}

	observability.AchievementsAwarded().WithLabelValues("manual").Inc()
	s.InvalidateLeaderboard(ctx)

	response := dto.NewEarnedAchievementResponse(earned)
	return &response, nil
}

func (s *progressService) Leaderboard(ctx context.Context, limit int) ([]dto.LeaderboardEntryResponse, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	if entries, ok := s.cachedLeaderboard(ctx); ok {
		return truncateLeaderboard(entries, limit), nil
	}

	rows, err := s.progress.Leaderboard(ctx, maxLeaderboardLimit)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.LeaderboardEntryResponse, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, dto.LeaderboardEntryResponse{
			Rank:        i + 1,
			StudentID:   row.StudentID,
			Name:        row.Name,
			AvatarURL:   row.AvatarURL,
			TotalPoints: row.TotalPoints,
			Level:       row.Level,
		})
	}

	s.storeLeaderboard(ctx, entries)
	return truncateLeaderboard(entries, limit), nil
}

func (s *progressService) InvalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, leaderboardCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}
}

func (s *progressService) cachedLeaderboard(ctx context.Context) ([]dto.LeaderboardEntryResponse, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, leaderboardCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
		return nil, false
	}

	var entries []dto.LeaderboardEntryResponse
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn().Err(err).Msg("invalid leaderboard cache payload")
		return nil, false
	}
	return entries, true
}

func (s *progressService) storeLeaderboard(ctx context.Context, entries []dto.LeaderboardEntryResponse) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, leaderboardCacheKey, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache leaderboard")
	}
}

func truncateLeaderboard(entries []dto.LeaderboardEntryResponse, limit int) []dto.LeaderboardEntryResponse {
	if len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

func newProgressResponse(progress models.StudentProgress) dto.ProgressResponse {
	return dto.ProgressResponse{
		StudentID:             progress.StudentID,
		ExperiencePoints:      progress.ExperiencePoints,
		Level:                 DeriveLevel(progress.ExperiencePoints),
		ProgressToNextLevel:   ProgressToNextLevel(progress.ExperiencePoints),
		XPToNextLevel:         XPToNextLevel(progress.ExperiencePoints),
		LoginStreak:           progress.LoginStreak,
		LastActiveOn:          progress.LastActiveOn,
		TestsPassed:           progress.TestsPassed,
		NotesDownloaded:       progress.NotesDownloaded,
		PerfectAttendanceDays: progress.PerfectAttendance,
		CompletedAssignments:  progress.CompletedAssignments,
		TotalPoints:           progress.TotalPoints,
	}
}

func truncateToDate(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
