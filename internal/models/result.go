package models

import "time"

// ResultPublication is a published exam with its ranked entries.
type ResultPublication struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	ClassID     uint          `gorm:"not null;index" json:"class_id"`
	ExamName    string        `gorm:"size:255;not null" json:"exam_name"`
	Subject     string        `gorm:"size:128;not null" json:"subject"`
	ExamDate    *time.Time    `json:"exam_date"`
	TotalMarks  float64       `gorm:"not null" json:"total_marks"`
	PublishedAt time.Time     `gorm:"not null;index" json:"published_at"`
	PublishedBy uint          `gorm:"not null" json:"published_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Entries     []ResultEntry `gorm:"foreignKey:PublicationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"entries"`
}

// ResultEntry is a single student's computed result inside a publication.
type ResultEntry struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	PublicationID uint    `gorm:"not null;uniqueIndex:idx_result_entry_student,priority:1" json:"publication_id"`
	StudentID     uint    `gorm:"not null;uniqueIndex:idx_result_entry_student,priority:2;index" json:"student_id"`
	Marks         float64 `gorm:"not null" json:"marks"`
	Rank          int     `gorm:"not null" json:"rank"`
	Grade         string  `gorm:"size:4;not null" json:"grade"`
	Percentage    float64 `gorm:"not null" json:"percentage"`
	Student       Student `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
