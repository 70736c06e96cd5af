package models

import (
	"time"

	"gorm.io/datatypes"
)

// StudentPrincipal is the student identity carried by a session.
type StudentPrincipal struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// AdminPrincipal is the admin identity carried by a session.
type AdminPrincipal struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// SessionData is the payload persisted for a session. At most one principal is set.
type SessionData struct {
	Student *StudentPrincipal `json:"student,omitempty"`
	Admin   *AdminPrincipal   `json:"admin,omitempty"`
}

// Session is a server-side session row. ID is the SHA-256 of the cookie token.
type Session struct {
	ID        string                          `gorm:"primaryKey;size:64" json:"id"`
	Data      datatypes.JSONType[SessionData] `json:"data"`
	ExpiresAt time.Time                       `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time                       `json:"created_at"`
	UpdatedAt time.Time                       `json:"updated_at"`
}

// Principal returns the session identity for the student.
func (s Student) Principal() StudentPrincipal {
	return StudentPrincipal{ID: s.ID, Name: s.Name, Email: s.EmailValue(), Phone: s.PhoneValue()}
}

// Principal returns the session identity for the admin.
func (a Admin) Principal() AdminPrincipal {
	return AdminPrincipal{ID: a.ID, Username: a.Username, FullName: a.FullName, Role: a.Role}
}
