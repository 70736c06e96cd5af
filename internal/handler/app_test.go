package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/config"
	"github.com/noah-isme/coaching-api/internal/database"
	"github.com/noah-isme/coaching-api/internal/handler"
	"github.com/noah-isme/coaching-api/internal/repository"
	"github.com/noah-isme/coaching-api/internal/router"
	"github.com/noah-isme/coaching-api/internal/service"
	"github.com/noah-isme/coaching-api/internal/session"
	"github.com/noah-isme/coaching-api/pkg/storage"
)

const (
	testAdminUsername = "director"
	testAdminPassword = "director-secret"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type envelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Details    map[string]string `json:"details"`
	RedirectTo string            `json:"redirectTo"`
}

type testApp struct {
	app   *fiber.App
	db    *gorm.DB
	store *memoryStore
}

// client replays the session cookie the way a browser would.
type client struct {
	t       *testing.T
	app     *fiber.App
	cookies map[string]*http.Cookie
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	server := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	store := newMemoryStore()

	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)

	sessions, err := session.NewManager(repository.NewSessionRepository(db), session.Config{Secret: "test-secret"}, logger)
	require.NoError(t, err)

	activitySvc := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	progressSvc := service.NewProgressService(repository.NewProgressRepository(db), repository.NewAchievementRepository(db), studentRepo, redisClient, 0, validate, logger)
	notificationSvc := service.NewNotificationService(repository.NewNotificationRepository(db), studentRepo, redisClient, "test", nil, validate, logger)
	authSvc := service.NewAuthService(
		studentRepo,
		repository.NewAdminRepository(db),
		repository.NewOTPRepository(db),
		service.NewRedisPendingStore(redisClient),
		service.NewRedisTokenBucket(redisClient, 3, 0),
		nil,
		progressSvc,
		service.AuthConfig{DefaultCountryCode: "+91", DebugCodes: true},
		validate,
		logger,
	)
	require.NoError(t, authSvc.EnsureBootstrapAdmin(context.Background(), service.BootstrapAdmin{
		Username: testAdminUsername,
		Email:    "director@example.com",
		FullName: "Institute Director",
		Password: testAdminPassword,
	}))

	studentSvc := service.NewStudentService(studentRepo, repository.NewAdminStudentRepository(db), classRepo, nil, "+91", validate, logger)
	classSvc := service.NewClassService(classRepo, activitySvc, validate, logger)
	attendanceSvc := service.NewAttendanceService(repository.NewAttendanceRepository(db), studentRepo, classRepo, progressSvc, activitySvc, validate, logger)
	contentSvc := service.NewContentService(repository.NewContentRepository(db), classRepo, studentRepo, store, progressSvc, activitySvc, 0, validate, logger)
	resultSvc := service.NewResultService(repository.NewResultRepository(db), classRepo, studentRepo, notificationSvc, progressSvc, progressSvc, activitySvc, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", OTPVerifyMaxAttempts: 5}, router.Dependencies{
		Sessions:             sessions,
		AuthHandler:          handler.NewAuthHandler(authSvc, sessions, logger),
		StudentHandler:       handler.NewStudentHandler(studentSvc, sessions, logger),
		ClassHandler:         handler.NewClassHandler(classSvc, logger),
		ContentHandler:       handler.NewContentHandler(contentSvc, logger),
		AttendanceHandler:    handler.NewAttendanceHandler(attendanceSvc, logger),
		ResultHandler:        handler.NewResultHandler(resultSvc, logger),
		ProgressHandler:      handler.NewProgressHandler(progressSvc, logger),
		NotificationHandler:  handler.NewNotificationHandler(notificationSvc, logger, 0),
		AdminStudentHandler:  handler.NewAdminStudentHandler(studentSvc, logger),
		AdminActivityHandler: handler.NewAdminActivityHandler(activitySvc, logger),
		DisableMetrics:       true,
	})

	return &testApp{app: app, db: db, store: store}
}

func (a *testApp) client(t *testing.T) *client {
	return &client{t: t, app: a.app, cookies: map[string]*http.Cookie{}}
}

func (c *client) send(req *http.Request) *http.Response {
	c.t.Helper()
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	for _, cookie := range resp.Cookies() {
		if cookie.Value == "" || cookie.MaxAge < 0 {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie
	}
	return resp
}

func (c *client) json(method, path string, body interface{}) *http.Response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return c.send(req)
}

func (c *client) get(path string, headers map[string]string) *http.Response {
	c.t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return c.send(req)
}

func (c *client) multipart(path string, fields map[string]string, fileField, fileName string, data []byte) *http.Response {
	c.t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(c.t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile(fileField, fileName)
	require.NoError(c.t, err)
	_, err = part.Write(data)
	require.NoError(c.t, err)
	require.NoError(c.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return c.send(req)
}

func (c *client) loginAdmin() {
	c.t.Helper()
	resp := c.json(http.MethodPost, "/api/admin/login", map[string]string{
		"username": testAdminUsername,
		"password": testAdminPassword,
	})
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func (c *client) registerStudent(email, name string) uint {
	c.t.Helper()
	resp := c.json(http.MethodPost, "/api/student/email-register", map[string]string{
		"email":    email,
		"name":     name,
		"password": "correct-horse",
	})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)

	var body envelope
	decodeResponse(c.t, resp, &body)
	var auth struct {
		User struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	require.NoError(c.t, json.Unmarshal(body.Data, &auth))
	require.NotZero(c.t, auth.User.ID)
	return auth.User.ID
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func decodeData(t *testing.T, resp *http.Response, target interface{}) envelope {
	t.Helper()
	var body envelope
	decodeResponse(t, resp, &body)
	if target != nil {
		require.NoError(t, json.Unmarshal(body.Data, target))
	}
	return body
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: m.types[key]}, nil
}

func (m *memoryStore) GetRange(_ context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	end := int64(len(data))
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	return io.NopCloser(bytes.NewReader(data[offset:end])), nil
}

func (m *memoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
