package models

import "time"

// ContentKind distinguishes downloadable notes from streamed lectures.
type ContentKind string

const (
	ContentKindNote  ContentKind = "note"
	ContentKindVideo ContentKind = "video"
)

// Chapter is a unit of the syllabus for a class and subject.
type Chapter struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	ClassID   uint          `gorm:"not null;index" json:"class_id"`
	Subject   string        `gorm:"size:128;not null" json:"subject"`
	Title     string        `gorm:"size:255;not null" json:"title"`
	Position  int           `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Contents  []ContentItem `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"contents"`
}

// ContentItem is a file stored in the object store and attached to a chapter.
type ContentItem struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ChapterID   uint        `gorm:"not null;index" json:"chapter_id"`
	Kind        ContentKind `gorm:"size:16;not null" json:"kind"`
	Title       string      `gorm:"size:255;not null" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	ObjectKey   string      `gorm:"size:512;not null" json:"object_key"`
	FileName    string      `gorm:"size:255" json:"file_name"`
	MimeType    string      `gorm:"size:128" json:"mime_type"`
	SizeBytes   int64       `json:"size_bytes"`
	UploadedBy  uint        `json:"uploaded_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
