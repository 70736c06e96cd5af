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
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/observability"
	"github.com/noah-isme/coaching-api/internal/repository"
)

const defaultStudentName = "Student"

var (
	// ErrInvalidOTP covers wrong, expired, superseded and already used codes alike.
	ErrInvalidOTP = errors.New("invalid or expired OTP")
	// ErrOTPRateLimited indicates the identifier exhausted its issuance budget.
	ErrOTPRateLimited = errors.New("too many OTP requests, try again later")
	// ErrOTPDeliveryFailed indicates the delivery channel rejected or could not be reached.
	ErrOTPDeliveryFailed = errors.New("failed to deliver OTP")
	// ErrInvalidCredentials indicates a failed password login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// AuthConfig tunes OTP issuance.
type AuthConfig struct {
	OTPTTL             time.Duration
	DefaultCountryCode string
	DebugCodes         bool
}

// BootstrapAdmin describes the admin account seeded at boot.
type BootstrapAdmin struct {
	Username string
	Email    string
	FullName string
	Password string
}

// LoginResult carries whichever principal a password login resolved to.
type LoginResult struct {
	Student *models.Student
	Admin   *models.Admin
}

// AuthService implements passcode, password and admin sign-in.
type AuthService interface {
	RequestOTP(ctx context.Context, req dto.RequestOTPRequest) (dto.RequestOTPResponse, error)
	VerifyOTP(ctx context.Context, req dto.VerifyOTPRequest) (models.Student, error)
	CheckEmail(ctx context.Context, req dto.CheckEmailRequest) (dto.CheckEmailResponse, error)
	Login(ctx context.Context, req dto.EmailLoginRequest) (LoginResult, error)
	Register(ctx context.Context, req dto.EmailRegisterRequest) (models.Student, error)
	AdminLogin(ctx context.Context, req dto.AdminLoginRequest) (models.Admin, error)
	EnsureBootstrapAdmin(ctx context.Context, seed BootstrapAdmin) error
	PurgeExpiredCodes(ctx context.Context) (int64, error)
	StartCodeSweeper(ctx context.Context, every time.Duration)
}

type authService struct {
	students  repository.StudentRepository
	admins    repository.AdminRepository
	otps      repository.OTPRepository
	pending   PendingVerificationStore
	limiter   IssuanceLimiter
	senders   map[models.OTPType]OTPSender
	activity  ActivityTracker
	cfg       AuthConfig
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAuthService wires the authentication flows. Missing senders fall back to logging.
func NewAuthService(
	students repository.StudentRepository,
	admins repository.AdminRepository,
	otps repository.OTPRepository,
	pending PendingVerificationStore,
	limiter IssuanceLimiter,
	senders map[models.OTPType]OTPSender,
	activity ActivityTracker,
	cfg AuthConfig,
	validate *validator.Validate,
	logger zerolog.Logger,
) AuthService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}

	svcLogger := logger.With().Str("component", "auth_service").Logger()
	resolved := make(map[models.OTPType]OTPSender, 2)
	for _, otpType := range []models.OTPType{models.OTPTypeEmail, models.OTPTypePhone} {
		if sender, ok := senders[otpType]; ok && sender != nil {
			resolved[otpType] = sender
			continue
		}
		resolved[otpType] = NewLogOTPSender(string(otpType), logger)
	}

	return &authService{
		students:  students,
		admins:    admins,
		otps:      otps,
		pending:   pending,
		limiter:   limiter,
		senders:   resolved,
		activity:  activity,
		cfg:       cfg,
		validator: validate,
		logger:    svcLogger,
		tracer:    otel.Tracer("github.com/noah-isme/coaching-api/internal/service/auth"),
		now:       time.Now,
	}
}

func (s *authService) RequestOTP(ctx context.Context, req dto.RequestOTPRequest) (dto.RequestOTPResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RequestOTPResponse{}, err
	}

	otpType := models.OTPType(req.Type)
	identifier, err := normalizeIdentifier(req.Identifier, otpType, s.cfg.DefaultCountryCode)
	if err != nil {
		return dto.RequestOTPResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "auth.request_otp", trace.WithAttributes(
		attribute.String("otp.type", req.Type),
	))
	defer span.End()

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("%s:%s", otpType, identifier))
		if err != nil {
			span.RecordError(err)
			return dto.RequestOTPResponse{}, fmt.Errorf("check otp rate limit: %w", err)
		}
		if !allowed {
			observability.OTPRequests().WithLabelValues(req.Type, "rate_limited").Inc()
			return dto.RequestOTPResponse{}, ErrOTPRateLimited
		}
	}

	code, err := generateOTPCode()
	if err != nil {
		span.RecordError(err)
		return dto.RequestOTPResponse{}, err
	}

	now := s.now().UTC()
	record := models.OneTimePasscode{
		Identifier: identifier,
		Type:       otpType,
		CodeHash:   hashOTP(identifier, otpType, code),
		Status:     models.OTPStatusIssued,
		ExpiresAt:  now.Add(s.cfg.OTPTTL),
	}
	if err := s.otps.Issue(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.RequestOTPResponse{}, err
	}

	sender := s.senders[otpType]
	if err := sender.Send(ctx, identifier, code); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		s.revoke(ctx, record.ID)
		observability.OTPRequests().WithLabelValues(req.Type, "delivery_failed").Inc()
		s.logger.Warn().Err(err).Str("identifier", maskIdentifier(identifier)).Str("channel", sender.Name()).Msg("otp dispatch failed")
		return dto.RequestOTPResponse{}, fmt.Errorf("%w: %v", ErrOTPDeliveryFailed, err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultStudentName
	}
	pending := PendingVerification{Identifier: identifier, Type: otpType, Name: name, CreatedAt: now}
	if err := s.pending.Put(ctx, pending, s.cfg.OTPTTL); err != nil {
		span.RecordError(err)
		s.revoke(ctx, record.ID)
		return dto.RequestOTPResponse{}, fmt.Errorf("store pending verification: %w", err)
	}

	observability.OTPRequests().WithLabelValues(req.Type, "sent").Inc()
	s.logger.Info().Str("identifier", maskIdentifier(identifier)).Str("channel", sender.Name()).Msg("otp issued")

	response := dto.RequestOTPResponse{Message: fmt.Sprintf("OTP sent to your %s", otpType)}
	if s.cfg.DebugCodes && sender.Name() == "log" {
		response.Debug = code
	}
	return response, nil
}

// revoke supersedes a code the request could not complete; the client asks for a new one.
func (s *authService) revoke(ctx context.Context, id uint) {
	if err := s.otps.Revoke(ctx, id); err != nil {
		s.logger.Error().Err(err).Uint("otp_id", id).Msg("failed to revoke otp")
	}
}

// PurgeExpiredCodes deletes passcodes past their expiry, whatever their status.
func (s *authService) PurgeExpiredCodes(ctx context.Context) (int64, error) {
	return s.otps.DeleteExpired(ctx, s.now().UTC())
}

// StartCodeSweeper purges expired passcodes every interval until ctx is cancelled.
func (s *authService) StartCodeSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 15 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.PurgeExpiredCodes(ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						s.logger.Error().Err(err).Msg("otp sweep failed")
					}
					continue
				}
				if removed > 0 {
					s.logger.Info().Int64("removed", removed).Msg("expired passcodes purged")
				}
			}
		}
	}()
}

func (s *authService) VerifyOTP(ctx context.Context, req dto.VerifyOTPRequest) (models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Student{}, err
	}

	otpType := models.OTPType(req.Type)
	identifier, err := normalizeIdentifier(req.Identifier, otpType, s.cfg.DefaultCountryCode)
	if err != nil {
		return models.Student{}, ErrInvalidOTP
	}

	ctx, span := s.tracer.Start(ctx, "auth.verify_otp", trace.WithAttributes(
		attribute.String("otp.type", req.Type),
	))
	defer span.End()

	now := s.now().UTC()
	consumed, err := s.otps.Consume(ctx, identifier, otpType, hashOTP(identifier, otpType, req.OTP), now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "consume failed")
		return models.Student{}, err
	}
	if !consumed {
		observability.Logins().WithLabelValues("otp", "rejected").Inc()
		return models.Student{}, ErrInvalidOTP
	}

	student, err := s.resolveStudent(ctx, identifier, otpType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve student failed")
		return models.Student{}, err
	}

	if err := s.pending.Delete(ctx, otpType, identifier); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear pending verification")
	}

	s.afterStudentLogin(ctx, &student, now)
	observability.Logins().WithLabelValues("otp", "success").Inc()
	return student, nil
}

func (s *authService) resolveStudent(ctx context.Context, identifier string, otpType models.OTPType) (models.Student, error) {
	var (
		student models.Student
		err     error
	)
	if otpType == models.OTPTypeEmail {
		student, err = s.students.FindByEmail(ctx, identifier)
	} else {
		student, err = s.students.FindByPhone(ctx, identifier)
	}
	if err == nil {
		return student, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Student{}, err
	}

	name := defaultStudentName
	pending, ok, err := s.pending.Get(ctx, otpType, identifier)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read pending verification")
	} else if ok && strings.TrimSpace(pending.Name) != "" {
		name = pending.Name
	}

	student = models.Student{Name: name}
	value := identifier
	if otpType == models.OTPTypeEmail {
		student.Email = &value
	} else {
		student.Phone = &value
	}

	if err := s.students.Create(ctx, &student); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// a concurrent verification created the row first
			if otpType == models.OTPTypeEmail {
				return s.students.FindByEmail(ctx, identifier)
			}
			return s.students.FindByPhone(ctx, identifier)
		}
		return models.Student{}, err
	}

	s.logger.Info().Uint("student_id", student.ID).Str("identifier", maskIdentifier(identifier)).Msg("student created from otp verification")
	return student, nil
}

func (s *authService) afterStudentLogin(ctx context.Context, student *models.Student, at time.Time) {
	if err := s.students.TouchLogin(ctx, student.ID, at); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", student.ID).Msg("failed to update last login")
	} else {
		student.LastLoginAt = &at
	}

	if s.activity != nil {
		if _, err := s.activity.RecordActivity(ctx, student.ID, ActivityLogin); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", student.ID).Msg("failed to record login activity")
		}
	}
}

func (s *authService) CheckEmail(ctx context.Context, req dto.CheckEmailRequest) (dto.CheckEmailResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CheckEmailResponse{}, err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return dto.CheckEmailResponse{}, err
	}

	if _, err := s.admins.FindByEmail(ctx, email); err == nil {
		return dto.CheckEmailResponse{Exists: true, IsAdmin: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CheckEmailResponse{}, err
	}

	exists, err := s.students.ExistsByEmail(ctx, email)
	if err != nil {
		return dto.CheckEmailResponse{}, err
	}
	return dto.CheckEmailResponse{Exists: exists}, nil
}

func (s *authService) Login(ctx context.Context, req dto.EmailLoginRequest) (LoginResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return LoginResult{}, err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	ctx, span := s.tracer.Start(ctx, "auth.email_login")
	defer span.End()

	now := s.now().UTC()
	admin, err := s.admins.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !passwordMatches(admin.PasswordHash, req.Password) {
			observability.Logins().WithLabelValues("password", "rejected").Inc()
			return LoginResult{}, ErrInvalidCredentials
		}
		s.touchAdmin(ctx, &admin, now)
		observability.Logins().WithLabelValues("password", "success").Inc()
		return LoginResult{Admin: &admin}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		span.RecordError(err)
		return LoginResult{}, err
	}

	student, err := s.students.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.Logins().WithLabelValues("password", "rejected").Inc()
			return LoginResult{}, ErrInvalidCredentials
		}
		span.RecordError(err)
		return LoginResult{}, err
	}
	if !student.HasPassword() || !passwordMatches(student.PasswordHash, req.Password) {
		observability.Logins().WithLabelValues("password", "rejected").Inc()
		return LoginResult{}, ErrInvalidCredentials
	}

	s.afterStudentLogin(ctx, &student, now)
	observability.Logins().WithLabelValues("password", "success").Inc()
	return LoginResult{Student: &student}, nil
}

func (s *authService) Register(ctx context.Context, req dto.EmailRegisterRequest) (models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Student{}, err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return models.Student{}, err
	}

	ctx, span := s.tracer.Start(ctx, "auth.register")
	defer span.End()

	exists, err := s.students.ExistsByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		return models.Student{}, err
	}
	if exists {
		return models.Student{}, ErrEmailTaken
	}
	if _, err := s.admins.FindByEmail(ctx, email); err == nil {
		return models.Student{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Student{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.Student{}, fmt.Errorf("hash password: %w", err)
	}

	student := models.Student{
		Name:         strings.TrimSpace(req.Name),
		Email:        &email,
		PasswordHash: string(hash),
	}
	if err := s.students.Create(ctx, &student); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Student{}, ErrEmailTaken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return models.Student{}, err
	}

	s.afterStudentLogin(ctx, &student, s.now().UTC())
	observability.Logins().WithLabelValues("register", "success").Inc()
	s.logger.Info().Uint("student_id", student.ID).Msg("student registered")
	return student, nil
}

func (s *authService) AdminLogin(ctx context.Context, req dto.AdminLoginRequest) (models.Admin, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Admin{}, err
	}

	admin, err := s.admins.FindByLogin(ctx, strings.ToLower(strings.TrimSpace(req.Username)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.Logins().WithLabelValues("admin", "rejected").Inc()
			return models.Admin{}, ErrInvalidCredentials
		}
		return models.Admin{}, err
	}
	if !passwordMatches(admin.PasswordHash, req.Password) {
		observability.Logins().WithLabelValues("admin", "rejected").Inc()
		return models.Admin{}, ErrInvalidCredentials
	}

	s.touchAdmin(ctx, &admin, s.now().UTC())
	observability.Logins().WithLabelValues("admin", "success").Inc()
	return admin, nil
}

func (s *authService) EnsureBootstrapAdmin(ctx context.Context, seed BootstrapAdmin) error {
	username := strings.ToLower(strings.TrimSpace(seed.Username))
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if username == "" || email == "" || seed.Password == "" {
		s.logger.Warn().Msg("bootstrap admin not configured; skipping seed")
		return nil
	}

	exists, err := s.admins.ExistsByUsername(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap admin password: %w", err)
	}

	fullName := strings.TrimSpace(seed.FullName)
	if fullName == "" {
		fullName = "Administrator"
	}

	admin := models.Admin{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		Role:         models.AdminRoleSuper,
		PasswordHash: string(hash),
	}
	if err := s.admins.Create(ctx, &admin); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}

	s.logger.Info().Str("username", username).Msg("bootstrap admin created")
	return nil
}

func (s *authService) touchAdmin(ctx context.Context, admin *models.Admin, at time.Time) {
	if err := s.admins.TouchLogin(ctx, admin.ID, at); err != nil {
		s.logger.Warn().Err(err).Uint("admin_id", admin.ID).Msg("failed to update admin last login")
		return
	}
	admin.LastLoginAt = &at
}

func passwordMatches(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
