package models

import "time"

const (
	// AdminRoleSuper can manage other administrators.
	AdminRoleSuper = "super_admin"
	// AdminRoleStaff manages day-to-day academic data.
	AdminRoleStaff = "admin"
)

// Admin represents a staff account with access to the admin dashboard.
type Admin struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FullName     string     `gorm:"size:255;not null" json:"full_name"`
	Role         string     `gorm:"size:32;not null;default:admin" json:"role"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
