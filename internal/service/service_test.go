package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/database"
	"github.com/noah-isme/coaching-api/internal/dto"
	"github.com/noah-isme/coaching-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func seedClass(t *testing.T, db *gorm.DB, name string) models.Class {
	t.Helper()
	class := models.Class{Name: name}
	require.NoError(t, db.Create(&class).Error)
	return class
}

func seedClassStudent(t *testing.T, db *gorm.DB, name string, classID uint) models.Student {
	t.Helper()
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"
	student := models.Student{Name: name, Email: &email, ClassID: &classID}
	require.NoError(t, db.Create(&student).Error)
	return student
}

type recordedActivity struct {
	studentID uint
	kind      ActivityKind
}

type fakeActivityTracker struct {
	mu      sync.Mutex
	records []recordedActivity
	err     error
}

func (f *fakeActivityTracker) RecordActivity(ctx context.Context, studentID uint, kind ActivityKind) (dto.ProgressResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recordedActivity{studentID: studentID, kind: kind})
	return dto.ProgressResponse{StudentID: studentID}, f.err
}

func (f *fakeActivityTracker) count(kind ActivityKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, record := range f.records {
		if record.kind == kind {
			total++
		}
	}
	return total
}

type fakeAuditRecorder struct {
	entries []ActivityEntry
}

func (f *fakeAuditRecorder) Record(ctx context.Context, entry ActivityEntry) (dto.AdminActivityResponse, error) {
	f.entries = append(f.entries, entry)
	return dto.AdminActivityResponse{Action: entry.Action}, nil
}

func isValidationErr(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
