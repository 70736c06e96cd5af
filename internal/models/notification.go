package models

import (
	"fmt"
	"time"
)

// AudienceAll addresses every student.
const AudienceAll = "all"

// StudentAudience returns the audience key for a single student.
func StudentAudience(studentID uint) string {
	return fmt.Sprintf("student:%d", studentID)
}

// ClassAudience returns the audience key for every student of a class.
func ClassAudience(classID uint) string {
	return fmt.Sprintf("class:%d", classID)
}

// Notification is a message addressed to an audience of students.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Audience  string    `gorm:"size:64;index;not null" json:"audience"`
	Type      string    `gorm:"size:64" json:"type"`
	Title     string    `gorm:"size:255" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationReceipt marks a notification as read by one student.
type NotificationReceipt struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	NotificationID uint      `gorm:"not null;uniqueIndex:idx_receipt_notification_student,priority:1" json:"notification_id"`
	StudentID      uint      `gorm:"not null;uniqueIndex:idx_receipt_notification_student,priority:2" json:"student_id"`
	ReadAt         time.Time `gorm:"not null" json:"read_at"`
}
