package dto

import (
	"time"

	"github.com/noah-isme/coaching-api/internal/models"
)

// StudentResponse is the public shape of a student profile.
type StudentResponse struct {
	ID               uint       `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	ClassID          *uint      `json:"classId,omitempty"`
	ClassName        string     `json:"className,omitempty"`
	ParentName       string     `json:"parentName,omitempty"`
	School           string     `json:"school,omitempty"`
	AvatarURL        string     `json:"avatarUrl,omitempty"`
	ProfileCompleted bool       `json:"profileCompleted"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// NewStudentResponse converts a student model.
func NewStudentResponse(student models.Student) StudentResponse {
	response := StudentResponse{
		ID:               student.ID,
		Name:             student.Name,
		Email:            student.EmailValue(),
		Phone:            student.PhoneValue(),
		ClassID:          student.ClassID,
		ParentName:       student.ParentName,
		School:           student.School,
		AvatarURL:        student.AvatarURL,
		ProfileCompleted: student.ProfileCompleted,
		LastLoginAt:      student.LastLoginAt,
		CreatedAt:        student.CreatedAt,
	}
	if student.Class != nil {
		response.ClassName = student.Class.Name
	}
	return response
}

// ProfileUpdateRequest carries partial profile edits.
type ProfileUpdateRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=2,max=255"`
	Email      *string `json:"email" validate:"omitempty,email,max=255"`
	Phone      *string `json:"phone" validate:"omitempty,min=10,max=20"`
	ClassID    *uint   `json:"classId" validate:"omitempty,gt=0"`
	ParentName *string `json:"parentName" validate:"omitempty,max=255"`
	School     *string `json:"school" validate:"omitempty,max=255"`
}

// CompleteProfileRequest fills in the fields required after the first sign-in.
type CompleteProfileRequest struct {
	Name       string `json:"name" validate:"omitempty,min=2,max=255"`
	Email      string `json:"email" validate:"omitempty,email,max=255"`
	Phone      string `json:"phone" validate:"omitempty,min=10,max=20"`
	ClassID    uint   `json:"classId" validate:"required,gt=0"`
	ParentName string `json:"parentName" validate:"required,min=2,max=255"`
	School     string `json:"school" validate:"required,min=2,max=255"`
}

// AdminStudentListRequest defines filters for listing students.
type AdminStudentListRequest struct {
	Search   string
	ClassID  uint
	Sort     string
	Page     int
	PageSize int
}

// AdminStudentListResponse wraps a page of students.
type AdminStudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// AdminResponse is the public shape of an admin account.
type AdminResponse struct {
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// NewAdminResponse converts an admin model.
func NewAdminResponse(admin models.Admin) AdminResponse {
	return AdminResponse{
		ID:          admin.ID,
		Username:    admin.Username,
		Email:       admin.Email,
		FullName:    admin.FullName,
		Role:        admin.Role,
		LastLoginAt: admin.LastLoginAt,
	}
}

// ClassCreateRequest creates a class.
type ClassCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

// ClassResponse is the public shape of a class.
type ClassResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// NewClassResponse converts a class model.
func NewClassResponse(class models.Class) ClassResponse {
	return ClassResponse{ID: class.ID, Name: class.Name}
}
