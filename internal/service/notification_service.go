package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/observability"
	"github.com/noah-isme/coaching-api/internal/repository"
)

const notificationBufferSize = 16

var (
	// ErrNotificationNotFound indicates the notification does not exist for the student.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrInvalidAudience indicates an audience key that is not all, class:<id> or student:<id>.
	ErrInvalidAudience = errors.New("invalid notification audience")
)

// NotificationPublisher publishes a notification to an audience.
type NotificationPublisher interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// NotificationService publishes and streams notifications to students via SSE.
type NotificationService interface {
	NotificationPublisher
	List(ctx context.Context, studentID uint, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id, studentID uint) (dto.NotificationResponse, error)
	Subscribe(ctx context.Context, studentID uint) (<-chan dto.NotificationResponse, func(), error)
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	students    repository.StudentRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *notificationBroker
	nodeID      string
	now         func() time.Time
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. Redis and NATS are optional fan-out transports.
func NewNotificationService(repo repository.NotificationRepository, students repository.StudentRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		students:    students,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/coaching-api/internal/service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[string]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
		now:    time.Now,
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	audience := strings.ToLower(strings.TrimSpace(payload.Audience))
	if !validAudience(audience) {
		return dto.NotificationResponse{}, ErrInvalidAudience
	}

	cleanMessage := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if cleanMessage == "" {
		return dto.NotificationResponse{}, errors.New("notification message empty after sanitization")
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(
		attribute.String("notification.audience", audience),
		attribute.String("notification.type", payload.Type),
	))
	defer span.End()

	model := models.Notification{
		Audience: audience,
		Type:     strings.TrimSpace(payload.Type),
		Title:    strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Message:  cleanMessage,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model, nil)
	s.broker.broadcast(response.Audience, response)
	if err := s.publish(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification to broker")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()

	return response, nil
}

func (s *notificationService) List(ctx context.Context, studentID uint, limit, offset int) ([]dto.NotificationResponse, error) {
	audiences, err := s.audiencesFor(ctx, studentID)
	if err != nil {
		return nil, err
	}

	views, err := s.repo.ListForAudiences(ctx, audiences, studentID, limit, offset)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.NotificationResponse, 0, len(views))
	for _, view := range views {
		responses = append(responses, dto.NewNotificationResponse(view.Notification, view.ReadAt))
	}
	return responses, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, studentID uint) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int("notification.id", int(id)),
		attribute.Int("student.id", int(studentID)),
	))
	defer span.End()

	notification, err := s.repo.FindByID(spanCtx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	audiences, err := s.audiencesFor(spanCtx, studentID)
	if err != nil {
		return dto.NotificationResponse{}, err
	}
	if !containsAudience(audiences, notification.Audience) {
		return dto.NotificationResponse{}, ErrNotificationNotFound
	}

	readAt := s.now().UTC()
	if err := s.repo.MarkRead(spanCtx, id, studentID, readAt); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification, &readAt), nil
}

func (s *notificationService) Subscribe(ctx context.Context, studentID uint) (<-chan dto.NotificationResponse, func(), error) {
	audiences, err := s.audiencesFor(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}

	channel := make(chan dto.NotificationResponse, notificationBufferSize)
	s.broker.subscribe(audiences, channel)
	observability.SSEClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(audiences, channel)
			observability.SSEClientsActive().Dec()
		})
	}

	return channel, cleanup, nil
}

func (s *notificationService) audiencesFor(ctx context.Context, studentID uint) ([]string, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	audiences := []string{models.AudienceAll, models.StudentAudience(student.ID)}
	if student.ClassID != nil {
		audiences = append(audiences, models.ClassAudience(*student.ClassID))
	}
	return audiences, nil
}

func (s *notificationService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	event := notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       s.now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	// every node needs every event, so this is a plain subscription rather than a queue group
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

// handleEvent rebroadcasts events from other nodes. An event may arrive over both Redis and NATS;
// SSE clients deduplicate by id.
func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	notification := event.Notification
	if notification.Type == "" {
		notification.Type = "generic"
	}

	s.broker.broadcast(notification.Audience, notification)
}

func (b *notificationBroker) subscribe(audiences []string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, audience := range audiences {
		if _, exists := b.subscribers[audience]; !exists {
			b.subscribers[audience] = make(map[chan dto.NotificationResponse]struct{})
		}
		b.subscribers[audience][ch] = struct{}{}
	}
}

func (b *notificationBroker) unsubscribe(audiences []string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, audience := range audiences {
		if subscribers, ok := b.subscribers[audience]; ok {
			delete(subscribers, ch)
			if len(subscribers) == 0 {
				delete(b.subscribers, audience)
			}
		}
	}
	close(ch)
}

func (b *notificationBroker) broadcast(audience string, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[audience] {
		select {
		case ch <- notification:
		default:
		}
	}
}

func validAudience(audience string) bool {
	if audience == models.AudienceAll {
		return true
	}
	for _, prefix := range []string{"student:", "class:"} {
		if rest, ok := strings.CutPrefix(audience, prefix); ok {
			if rest == "" {
				return false
			}
			for _, r := range rest {
				if r < '0' || r > '9' {
					return false
				}
			}
			return true
		}
	}
	return false
}

func containsAudience(audiences []string, audience string) bool {
	for _, candidate := range audiences {
		if candidate == audience {
			return true
		}
	}
	return false
}
