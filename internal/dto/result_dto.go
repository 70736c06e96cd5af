package dto

import (
	"time"

	"github.com/noah-isme/coaching-api/internal/models"
)

// ResultMarkInput is a student's raw marks in a publish request.
type ResultMarkInput struct {
	StudentID uint    `json:"studentId" validate:"required,gt=0"`
	Marks     float64 `json:"marks" validate:"gte=0"`
}

// ResultPublishRequest publishes a ranked exam result for a class.
type ResultPublishRequest struct {
	ClassID     uint              `json:"classId" validate:"required,gt=0"`
	ExamName    string            `json:"examName" validate:"required,min=1,max=255"`
	Subject     string            `json:"subject" validate:"required,min=1,max=128"`
	ExamDate    string            `json:"examDate" validate:"omitempty,datetime=2006-01-02"`
	TotalMarks  float64           `json:"totalMarks" validate:"required,gt=0"`
	Results     []ResultMarkInput `json:"results" validate:"required,min=1,dive"`
	PublishedAt *time.Time        `json:"publishedAt"`
}

// ResultEntryResponse is a ranked line of a publication.
type ResultEntryResponse struct {
	StudentID   uint    `json:"studentId"`
	StudentName string  `json:"studentName,omitempty"`
	Marks       float64 `json:"marks"`
	Rank        int     `json:"rank"`
	Grade       string  `json:"grade"`
	Percentage  float64 `json:"percentage"`
}

// NewResultEntryResponse converts a stored entry.
func NewResultEntryResponse(entry models.ResultEntry) ResultEntryResponse {
	return ResultEntryResponse{
		StudentID:   entry.StudentID,
		StudentName: entry.Student.Name,
		Marks:       entry.Marks,
		Rank:        entry.Rank,
		Grade:       entry.Grade,
		Percentage:  entry.Percentage,
	}
}

// ResultPublicationResponse describes a publication.
type ResultPublicationResponse struct {
	ID          uint                  `json:"id"`
	ClassID     uint                  `json:"classId"`
	ExamName    string                `json:"examName"`
	Subject     string                `json:"subject"`
	ExamDate    *time.Time            `json:"examDate,omitempty"`
	TotalMarks  float64               `json:"totalMarks"`
	PublishedAt time.Time             `json:"publishedAt"`
	Entries     []ResultEntryResponse `json:"entries,omitempty"`
}

// NewResultPublicationResponse converts a publication and any loaded entries.
func NewResultPublicationResponse(publication models.ResultPublication) ResultPublicationResponse {
	response := ResultPublicationResponse{
		ID:          publication.ID,
		ClassID:     publication.ClassID,
		ExamName:    publication.ExamName,
		Subject:     publication.Subject,
		ExamDate:    publication.ExamDate,
		TotalMarks:  publication.TotalMarks,
		PublishedAt: publication.PublishedAt,
	}
	for _, entry := range publication.Entries {
		response.Entries = append(response.Entries, NewResultEntryResponse(entry))
	}
	return response
}

// ResultListRequest filters the admin publication listing.
type ResultListRequest struct {
	ClassID  uint
	Page     int
	PageSize int
}

// ResultListResponse wraps a page of publications.
type ResultListResponse struct {
	Items      []ResultPublicationResponse `json:"items"`
	Pagination PaginationMeta              `json:"pagination"`
}

// StudentResultSummary is one exam as seen by the student who sat it.
type StudentResultSummary struct {
	PublicationID uint       `json:"publicationId"`
	ExamName      string     `json:"examName"`
	Subject       string     `json:"subject"`
	ExamDate      *time.Time `json:"examDate,omitempty"`
	TotalMarks    float64    `json:"totalMarks"`
	PublishedAt   time.Time  `json:"publishedAt"`
	Marks         float64    `json:"marks"`
	Rank          int        `json:"rank"`
	Grade         string     `json:"grade"`
	Percentage    float64    `json:"percentage"`
}

// StudentResultDetail splits a publication into the podium and the rest.
type StudentResultDetail struct {
	Publication ResultPublicationResponse `json:"publication"`
	Podium      []ResultEntryResponse     `json:"podium"`
	Leaderboard []ResultEntryResponse     `json:"leaderboard"`
	Mine        *ResultEntryResponse      `json:"mine,omitempty"`
}
