package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coaching-api/internal/config"
	"github.com/noah-isme/coaching-api/internal/database"
	"github.com/noah-isme/coaching-api/internal/handler"
	"github.com/noah-isme/coaching-api/internal/middleware"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/repository"
	"github.com/noah-isme/coaching-api/internal/router"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/session"
	cloud "github.com/noah-isme/coaching-api/pkg/cloudinary"
	"github.com/noah-isme/coaching-api/pkg/storage"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if !cfg.IsProduction() {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.AppName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable; notifications fan out over redis only")
		natsConn = nil
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	var objectStore service.ObjectStorage
	if cfg.MinioEnabled() {
		store, err := storage.NewMinIOStore(storage.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create minio client")
		}
		objectStore = store
	} else {
		logger.Warn().Msg("minio not configured; content uploads and streaming are disabled")
	}

	var avatars service.AvatarUploader
	if cfg.CloudinaryEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		avatars = uploader
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	adminStudentRepo := repository.NewAdminStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	otpRepo := repository.NewOTPRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	contentRepo := repository.NewContentRepository(db)
	resultRepo := repository.NewResultRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	sessions, err := session.NewManager(sessionRepo, session.Config{
		Secret:     cfg.SessionSecret,
		CookieName: cfg.SessionCookieName,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.IsProduction(),
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create session manager")
	}

	activityService := service.NewActivityService(activityRepo, logger)
	progressService := service.NewProgressService(progressRepo, achievementRepo, studentRepo, redisClient, cfg.LeaderboardCacheTTL, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, studentRepo, redisClient, "coaching", natsConn, validate, logger)

	authService := service.NewAuthService(
		studentRepo,
		adminRepo,
		otpRepo,
		service.NewRedisPendingStore(redisClient),
		service.NewRedisTokenBucket(redisClient, cfg.OTPBucketCapacity, cfg.OTPBucketRefill),
		otpSenders(cfg, logger),
		progressService,
		service.AuthConfig{
			OTPTTL:             cfg.OTPTTL,
			DefaultCountryCode: cfg.DefaultCountryCode,
			DebugCodes:         cfg.OTPDebugCodes,
		},
		validate,
		logger,
	)
	studentService := service.NewStudentService(studentRepo, adminStudentRepo, classRepo, avatars, cfg.DefaultCountryCode, validate, logger)
	classService := service.NewClassService(classRepo, activityService, validate, logger)
	attendanceService := service.NewAttendanceService(attendanceRepo, studentRepo, classRepo, progressService, activityService, validate, logger)
	contentService := service.NewContentService(contentRepo, classRepo, studentRepo, objectStore, progressService, activityService, int64(cfg.UploadMaxMB)*1024*1024, validate, logger)
	resultService := service.NewResultService(resultRepo, classRepo, studentRepo, notificationService, progressService, progressService, activityService, validate, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := authService.EnsureBootstrapAdmin(ctx, service.BootstrapAdmin{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		FullName: cfg.AdminFullName,
		Password: cfg.AdminPassword,
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed bootstrap admin")
	}

	sessions.StartSweeper(ctx, cfg.SessionSweepEvery)
	authService.StartCodeSweeper(ctx, cfg.SessionSweepEvery)
	notificationService.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:         &logger,
		AllowedOrigins: cfg.ClientURL,
		AccessLog:      !cfg.IsProduction(),
	})
	router.Register(app, cfg, router.Dependencies{
		Sessions:             sessions,
		AuthHandler:          handler.NewAuthHandler(authService, sessions, logger),
		StudentHandler:       handler.NewStudentHandler(studentService, sessions, logger),
		ClassHandler:         handler.NewClassHandler(classService, logger),
		ContentHandler:       handler.NewContentHandler(contentService, logger),
		AttendanceHandler:    handler.NewAttendanceHandler(attendanceService, logger),
		ResultHandler:        handler.NewResultHandler(resultService, logger),
		ProgressHandler:      handler.NewProgressHandler(progressService, logger),
		NotificationHandler:  handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		AdminStudentHandler:  handler.NewAdminStudentHandler(studentService, logger),
		AdminActivityHandler: handler.NewAdminActivityHandler(activityService, logger),
		HealthProbes: map[string]handler.HealthProbe{
			"database": func(ctx context.Context) error { return database.PingDB(ctx, db) },
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		VerifyLimit: router.VerifyOTPLimit(cfg),
		PortalLimit: router.PortalRateLimit(cfg),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, cancel, logger)
}

// otpSenders picks a real delivery channel per passcode type when one is configured.
func otpSenders(cfg config.Config, logger zerolog.Logger) map[models.OTPType]service.OTPSender {
	senders := make(map[models.OTPType]service.OTPSender, 2)
	if cfg.SendGridAPIKey != "" && cfg.MailFromAddress != "" {
		senders[models.OTPTypeEmail] = service.NewSendGridOTPSender(cfg.SendGridAPIKey, cfg.MailFromName, cfg.MailFromAddress, cfg.AppName)
	} else {
		logger.Warn().Msg("sendgrid not configured; email passcodes are logged")
	}
	if cfg.SMSGatewayURL != "" {
		senders[models.OTPTypePhone] = service.NewSMSGatewaySender(cfg.SMSGatewayURL, cfg.SMSGatewayAPIKey, cfg.SMSSenderID, cfg.AppName)
	} else {
		logger.Warn().Msg("sms gateway not configured; phone passcodes are logged")
	}
	return senders
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
