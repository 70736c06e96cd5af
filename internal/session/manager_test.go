package session

import (
	"context"
	"encoding/json"
	"fmt"
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

	"github.com/noah-isme/coaching-api/internal/models"
	"github.com/noah-isme/coaching-api/internal/repository"
)

func newTestManager(t *testing.T) (*Manager, *gorm.DB) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Session{}))

	manager, err := NewManager(repository.NewSessionRepository(db), Config{Secret: "test-secret", TTL: 24 * time.Hour}, zerolog.Nop())
	require.NoError(t, err)
	return manager, db
}

func newTestApp(manager *Manager) *fiber.App {
	app := fiber.New()
	app.Use(manager.Load())
	app.Post("/login", func(c *fiber.Ctx) error {
		return manager.Start(c, models.SessionData{Student: &models.StudentPrincipal{ID: 7, Name: "Asha"}})
	})
	app.Put("/rename", func(c *fiber.Ctx) error {
		student, ok := Student(c)
		if !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		renamed := *student
		renamed.Name = "Asha Rao"
		return manager.Update(c, models.SessionData{Student: &renamed})
	})
	app.Get("/me", func(c *fiber.Ctx) error {
		data, ok := Data(c)
		if !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.JSON(data)
	})
	app.Post("/logout", func(c *fiber.Ctx) error {
		if err := manager.Destroy(c); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func sessionCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func do(t *testing.T, app *fiber.App, method, path string, cookie *http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestManagerStartLoadUpdateDestroy(t *testing.T) {
	manager, db := newTestManager(t)
	app := newTestApp(manager)

	resp := do(t, app, http.MethodPost, "/login", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	cookie := sessionCookie(t, resp, "coaching_session")
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	var stored models.Session
	require.NoError(t, db.First(&stored).Error)
	require.NotContains(t, cookie.Value, stored.ID, "cookie must not carry the stored key")

	resp = do(t, app, http.MethodPut, "/rename", cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/me", cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var data models.SessionData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	require.NotNil(t, data.Student)
	require.Equal(t, "Asha Rao", data.Student.Name)
	require.Nil(t, data.Admin)

	resp = do(t, app, http.MethodPost, "/logout", cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	cleared := sessionCookie(t, resp, "coaching_session")
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)

	resp = do(t, app, http.MethodGet, "/me", cookie)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestManagerDestroyWithoutSessionSucceeds(t *testing.T) {
	manager, _ := newTestManager(t)
	app := newTestApp(manager)

	resp := do(t, app, http.MethodPost, "/logout", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, sessionCookie(t, resp, "coaching_session"))

	stale := &http.Cookie{Name: "coaching_session", Value: "not-a-token"}
	resp = do(t, app, http.MethodPost, "/logout", stale)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestManagerStartReplacesExistingSession(t *testing.T) {
	manager, db := newTestManager(t)
	app := newTestApp(manager)

	first := sessionCookie(t, do(t, app, http.MethodPost, "/login", nil), "coaching_session")
	second := sessionCookie(t, do(t, app, http.MethodPost, "/login", first), "coaching_session")
	require.NotEqual(t, first.Value, second.Value)

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	resp := do(t, app, http.MethodGet, "/me", first)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestManagerRejectsExpiredAndForgedSessions(t *testing.T) {
	manager, db := newTestManager(t)
	app := newTestApp(manager)

	cookie := sessionCookie(t, do(t, app, http.MethodPost, "/login", nil), "coaching_session")

	forged := &http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"}
	require.Equal(t, fiber.StatusUnauthorized, do(t, app, http.MethodGet, "/me", forged).StatusCode)

	require.NoError(t, db.Model(&models.Session{}).Where("1 = 1").Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)
	require.Equal(t, fiber.StatusUnauthorized, do(t, app, http.MethodGet, "/me", cookie).StatusCode)
}

func TestManagerSweepRemovesExpiredRows(t *testing.T) {
	manager, db := newTestManager(t)
	app := newTestApp(manager)

	do(t, app, http.MethodPost, "/login", nil)
	do(t, app, http.MethodPost, "/login", nil)
	require.NoError(t, db.Model(&models.Session{}).Where("1 = 1").Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)

	removed, err := manager.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)
}

func TestNewManagerGeneratesSecretWhenMissing(t *testing.T) {
	_, db := newTestManager(t)
	manager, err := NewManager(repository.NewSessionRepository(db), Config{}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, manager.secret, 32)
	require.Equal(t, "coaching_session", manager.CookieName())
}
