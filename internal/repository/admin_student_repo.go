package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/coaching-api/internal/models"
)

// AdminStudentFilter narrows the roster shown in the admin panel.
type AdminStudentFilter struct {
	Search   string
	ClassID  *uint
	Sort     string
	Page     int
	PageSize int
}

const defaultStudentSort = "created_at DESC"

// studentSorts maps the sort keys accepted from clients to ORDER BY clauses.
var studentSorts = map[string]string{
	"name":     "name ASC",
	"-name":    "name DESC",
	"created":  "created_at ASC",
	"-created": "created_at DESC",
	"login":    "last_login_at ASC",
	"-login":   "last_login_at DESC",
}

func (f AdminStudentFilter) scope(db *gorm.DB) *gorm.DB {
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ? OR LOWER(school) LIKE ?", like, like, like, like)
	}
	if f.ClassID != nil {
		db = db.Where("class_id = ?", *f.ClassID)
	}
	return db
}

func (f AdminStudentFilter) order() string {
	if clause, ok := studentSorts[f.Sort]; ok {
		return clause
	}
	return defaultStudentSort
}

// AdminStudentRepository lists students for administrators.
type AdminStudentRepository interface {
	List(ctx context.Context, filter AdminStudentFilter) ([]models.Student, int64, error)
}

type adminStudentRepository struct {
	db *gorm.DB
}

// NewAdminStudentRepository constructs the admin student repository.
func NewAdminStudentRepository(db *gorm.DB) AdminStudentRepository {
	return &adminStudentRepository{db: db}
}

func (r *adminStudentRepository) List(ctx context.Context, filter AdminStudentFilter) ([]models.Student, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{}).Scopes(filter.scope).Preload("Class")

	var students []models.Student
	total, err := countAndFind(query, filter.Page, filter.PageSize, &students, filter.order(), "id ASC")
	if err != nil {
		return nil, 0, err
	}
	return students, total, nil
}
