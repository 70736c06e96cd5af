package models

import (
	"time"

	"gorm.io/datatypes"
)

// AttendanceStatus is the recorded presence of a student on a day.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusAbsent
}

// AttendanceRecord is the attendance of one student on one calendar date.
type AttendanceRecord struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	StudentID uint             `gorm:"not null;uniqueIndex:idx_attendance_student_date,priority:1" json:"student_id"`
	Date      datatypes.Date   `gorm:"not null;uniqueIndex:idx_attendance_student_date,priority:2" json:"date"`
	Status    AttendanceStatus `gorm:"size:16;not null" json:"status"`
	Remarks   string           `gorm:"type:text" json:"remarks"`
	MarkedBy  uint             `gorm:"not null" json:"marked_by"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Student   Student          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
