package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/middleware"
	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/repository"
	"github.com/noah-isme/coaching-api/internal/session"
)

func newGateApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Session{}))

	manager, err := session.NewManager(repository.NewSessionRepository(db), session.Config{Secret: "gate-secret", TTL: time.Hour}, zerolog.Nop())
	require.NoError(t, err)

	app := fiber.New()
	app.Use(manager.Load())
	app.Post("/as-student", func(c *fiber.Ctx) error {
		return manager.Start(c, models.SessionData{Student: &models.StudentPrincipal{ID: 3, Name: "Ravi"}})
	})
	app.Post("/as-admin", func(c *fiber.Ctx) error {
		return manager.Start(c, models.SessionData{Admin: &models.AdminPrincipal{ID: 1, Username: "admin", Role: models.AdminRoleSuper}})
	})
	app.Get("/admin/area", middleware.AdminGate(), func(c *fiber.Ctx) error {
		return c.SendString("admin")
	})
	app.Get("/student/area", middleware.StudentGate(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userId": c.Locals("user_id")})
	})
	return app
}

func perform(t *testing.T, app *fiber.App, method, path string, cookies []*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestAdminGateRejectsAnonymous(t *testing.T) {
	app := newGateApp(t)

	resp := perform(t, app, http.MethodGet, "/admin/area", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	payload := decodeBody(t, resp)
	require.Equal(t, false, payload["success"])
	require.Equal(t, "unauthorized", payload["message"])
	require.Equal(t, "/admin/login", payload["redirectTo"])
}

func TestAdminGateRejectsStudentSession(t *testing.T) {
	app := newGateApp(t)
	login := perform(t, app, http.MethodPost, "/as-student", nil)

	resp := perform(t, app, http.MethodGet, "/admin/area", login.Cookies())
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "/admin/login", decodeBody(t, resp)["redirectTo"])

	resp = perform(t, app, http.MethodGet, "/student/area", login.Cookies())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, float64(3), decodeBody(t, resp)["userId"])
}

func TestStudentGateRejectsAdminSession(t *testing.T) {
	app := newGateApp(t)
	login := perform(t, app, http.MethodPost, "/as-admin", nil)

	resp := perform(t, app, http.MethodGet, "/student/area", login.Cookies())
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "/login", decodeBody(t, resp)["redirectTo"])

	resp = perform(t, app, http.MethodGet, "/admin/area", login.Cookies())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
