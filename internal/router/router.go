package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/coaching-api/internal/config"
	"github.com/noah-isme/coaching-api/internal/handler"
	"github.com/noah-isme/coaching-api/internal/middleware"
	"github.com/noah-isme/coaching-api/internal/observability"
	"github.com/noah-isme/coaching-api/internal/session"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Sessions             *session.Manager
	AuthHandler          *handler.AuthHandler
	StudentHandler       *handler.StudentHandler
	ClassHandler         *handler.ClassHandler
	ContentHandler       *handler.ContentHandler
	AttendanceHandler    *handler.AttendanceHandler
	ResultHandler        *handler.ResultHandler
	ProgressHandler      *handler.ProgressHandler
	NotificationHandler  *handler.NotificationHandler
	AdminStudentHandler  *handler.AdminStudentHandler
	AdminActivityHandler *handler.AdminActivityHandler
	HealthProbes         map[string]handler.HealthProbe
	VerifyLimit          fiber.Handler
	PortalLimit          fiber.Handler
	DisableMetrics       bool
}

// VerifyOTPLimit bounds passcode attempts per client and identifier.
func VerifyOTPLimit(cfg config.Config) fiber.Handler {
	window := cfg.OTPVerifyWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	return middleware.IdentifierRateLimit("verify-otp", cfg.OTPVerifyMaxAttempts, window)
}

// PortalRateLimit bounds signed-in traffic per principal.
func PortalRateLimit(cfg config.Config) fiber.Handler {
	return middleware.RateLimit("portal", cfg.PortalRequestsPerMin, time.Minute)
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	if !deps.DisableMetrics {
		api.Get("/metrics", observability.MetricsHandler())
	}

	if deps.Sessions != nil {
		api.Use(deps.Sessions.Load())
	}

	// Public
	if deps.ClassHandler != nil {
		deps.ClassHandler.RegisterPublic(api)
	}
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.RegisterPublic(api)
	}

	// Student: sign-in routes are open, everything registered after the gate is not.
	student := api.Group("/student")
	if deps.AuthHandler != nil {
		deps.AuthHandler.RegisterStudent(student, deps.VerifyLimit)
	}

	studentOnly := student.Group("", guarded(middleware.StudentGate(), deps.PortalLimit)...)
	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(studentOnly)
	}
	if deps.ContentHandler != nil {
		deps.ContentHandler.RegisterStudent(studentOnly)
	}
	if deps.AttendanceHandler != nil {
		deps.AttendanceHandler.RegisterStudent(studentOnly)
	}
	if deps.ResultHandler != nil {
		deps.ResultHandler.RegisterStudent(studentOnly)
	}
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.RegisterStudent(studentOnly)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(studentOnly.Group("/notifications"))
	}

	// Admin
	admin := api.Group("/admin")
	if deps.AuthHandler != nil {
		deps.AuthHandler.RegisterAdmin(admin)
	}

	adminOnly := admin.Group("", guarded(middleware.AdminGate(), deps.PortalLimit)...)
	if deps.AuthHandler != nil {
		adminOnly.Get("/me", deps.AuthHandler.Me)
	}
	if deps.AdminStudentHandler != nil {
		deps.AdminStudentHandler.Register(adminOnly.Group("/students"))
	}
	if deps.ClassHandler != nil {
		deps.ClassHandler.RegisterAdmin(adminOnly)
	}
	if deps.AttendanceHandler != nil {
		deps.AttendanceHandler.RegisterAdmin(adminOnly)
	}
	if deps.ResultHandler != nil {
		deps.ResultHandler.RegisterAdmin(adminOnly)
	}
	if deps.ContentHandler != nil {
		deps.ContentHandler.RegisterAdmin(adminOnly)
	}
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.RegisterAdmin(adminOnly)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.RegisterAdmin(adminOnly.Group("/notifications"))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(adminOnly.Group("/activity"))
	}
}

// guarded runs the gate first so the limiter can key on the signed-in principal.
func guarded(gate, limit fiber.Handler) []fiber.Handler {
	if limit == nil {
		return []fiber.Handler{gate}
	}
	return []fiber.Handler{gate, limit}
}
