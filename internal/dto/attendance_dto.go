package dto

import (
	"time"

	"github.com/noah-isme/coaching-api/internal/models"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// AttendanceStatusUnmarked is reported for students with no record on a date.
const AttendanceStatusUnmarked = "unmarked"

// AttendanceMarkRequest records a student's attendance for a date.
type AttendanceMarkRequest struct {
	StudentID uint   `json:"studentId" validate:"required,gt=0"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required,oneof=present absent"`
	Remarks   string `json:"remarks" validate:"omitempty,max=500"`
}

// AttendanceResponse describes a stored attendance record.
type AttendanceResponse struct {
	ID        uint   `json:"id"`
	StudentID uint   `json:"studentId"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Remarks   string `json:"remarks,omitempty"`
	MarkedBy  uint   `json:"markedBy"`
}

// NewAttendanceResponse converts an attendance record.
func NewAttendanceResponse(record models.AttendanceRecord) AttendanceResponse {
	return AttendanceResponse{
		ID:        record.ID,
		StudentID: record.StudentID,
		Date:      time.Time(record.Date).UTC().Format(DateLayout),
		Status:    string(record.Status),
		Remarks:   record.Remarks,
		MarkedBy:  record.MarkedBy,
	}
}

// ClassAttendanceEntry is one student's status on the requested date.
type ClassAttendanceEntry struct {
	StudentID   uint   `json:"studentId"`
	StudentName string `json:"studentName"`
	Status      string `json:"status"`
	Remarks     string `json:"remarks,omitempty"`
}

// ClassAttendanceSummary counts statuses across a class.
type ClassAttendanceSummary struct {
	Present  int `json:"present"`
	Absent   int `json:"absent"`
	Unmarked int `json:"unmarked"`
}

// ClassAttendanceResponse lists every student of a class for a date.
type ClassAttendanceResponse struct {
	ClassID uint                   `json:"classId"`
	Date    string                 `json:"date"`
	Entries []ClassAttendanceEntry `json:"entries"`
	Summary ClassAttendanceSummary `json:"summary"`
}

// AttendanceSummary aggregates a student's attendance history.
type AttendanceSummary struct {
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// StudentAttendanceResponse is the student's own attendance view.
type StudentAttendanceResponse struct {
	Records []AttendanceResponse `json:"records"`
	Summary AttendanceSummary    `json:"summary"`
}
