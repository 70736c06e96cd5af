package dto

import (
	"fmt"
	"time"

	"github.com/noah-isme/coaching-api/internal/models"
)

// ChapterCreateRequest creates a chapter for a class.
type ChapterCreateRequest struct {
	ClassID  uint   `json:"classId" validate:"required,gt=0"`
	Subject  string `json:"subject" validate:"required,min=1,max=128"`
	Title    string `json:"title" validate:"required,min=1,max=255"`
	Position int    `json:"position" validate:"gte=0"`
}

// ChapterUpdateRequest edits chapter fields.
type ChapterUpdateRequest struct {
	Subject  *string `json:"subject" validate:"omitempty,min=1,max=128"`
	Title    *string `json:"title" validate:"omitempty,min=1,max=255"`
	Position *int    `json:"position" validate:"omitempty,gte=0"`
}

// ContentUploadRequest holds the form fields sent alongside an uploaded file.
type ContentUploadRequest struct {
	Kind        string `form:"kind" validate:"required,oneof=note video"`
	Title       string `form:"title" validate:"required,min=1,max=255"`
	Description string `form:"description" validate:"omitempty,max=5000"`
}

// ContentResponse describes a stored note or video.
type ContentResponse struct {
	ID          uint      `json:"id"`
	ChapterID   uint      `json:"chapterId"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	FileName    string    `json:"fileName"`
	MimeType    string    `json:"mimeType"`
	SizeBytes   int64     `json:"sizeBytes"`
	StreamURL   string    `json:"streamUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewContentResponse converts a content item.
func NewContentResponse(item models.ContentItem) ContentResponse {
	return ContentResponse{
		ID:          item.ID,
		ChapterID:   item.ChapterID,
		Kind:        string(item.Kind),
		Title:       item.Title,
		Description: item.Description,
		FileName:    item.FileName,
		MimeType:    item.MimeType,
		SizeBytes:   item.SizeBytes,
		StreamURL:   fmt.Sprintf("/api/student/contents/%d/stream", item.ID),
		CreatedAt:   item.CreatedAt,
	}
}

// ChapterResponse describes a chapter and its content.
type ChapterResponse struct {
	ID       uint              `json:"id"`
	ClassID  uint              `json:"classId"`
	Subject  string            `json:"subject"`
	Title    string            `json:"title"`
	Position int               `json:"position"`
	Contents []ContentResponse `json:"contents"`
}

// NewChapterResponse converts a chapter with preloaded contents.
func NewChapterResponse(chapter models.Chapter) ChapterResponse {
	contents := make([]ContentResponse, 0, len(chapter.Contents))
	for _, item := range chapter.Contents {
		contents = append(contents, NewContentResponse(item))
	}

	return ChapterResponse{
		ID:       chapter.ID,
		ClassID:  chapter.ClassID,
		Subject:  chapter.Subject,
		Title:    chapter.Title,
		Position: chapter.Position,
		Contents: contents,
	}
}
