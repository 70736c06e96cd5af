package models

import "time"

// Student represents a learner enrolled at the institute.
type Student struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Name             string     `gorm:"size:255;not null" json:"name"`
	Email            *string    `gorm:"size:255;uniqueIndex" json:"email"`
	Phone            *string    `gorm:"size:32;uniqueIndex" json:"phone"`
	PasswordHash     string     `gorm:"size:255" json:"-"`
	ClassID          *uint      `gorm:"index" json:"class_id"`
	ParentName       string     `gorm:"size:255" json:"parent_name"`
	School           string     `gorm:"size:255" json:"school"`
	AvatarURL        string     `gorm:"size:512" json:"avatar_url"`
	ProfileCompleted bool       `gorm:"not null;default:false" json:"profile_completed"`
	LastLoginAt      *time.Time `json:"last_login_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Class            *Class     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"class,omitempty"`
}

// EmailValue returns the email address or an empty string.
func (s Student) EmailValue() string {
	if s.Email == nil {
		return ""
	}
	return *s.Email
}

// PhoneValue returns the phone number or an empty string.
func (s Student) PhoneValue() string {
	if s.Phone == nil {
		return ""
	}
	return *s.Phone
}

// HasPassword reports whether the student can sign in with email and password.
func (s Student) HasPassword() bool {
	return s.PasswordHash != ""
}
