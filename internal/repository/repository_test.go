package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

func setupTestDB(t *testing.T, extra ...interface{}) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	tables := append([]interface{}{&models.Class{}, &models.Student{}}, extra...)
	require.NoError(t, db.AutoMigrate(tables...))
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, name string, classID *uint) models.Student {
	t.Helper()
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"
	student := models.Student{Name: name, Email: &email, ClassID: classID}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func uintPtr(v uint) *uint {
	return &v
}
