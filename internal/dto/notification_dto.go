package dto

import (
	"time"

	"github.com/noah-isme/coaching-api/internal/models"
)

// NotificationCreateRequest describes a notification addressed to an audience.
type NotificationCreateRequest struct {
	Audience string `json:"audience" validate:"required,max=64"`
	Type     string `json:"type" validate:"required,max=64"`
	Title    string `json:"title" validate:"omitempty,max=255"`
	Message  string `json:"message" validate:"required,min=1,max=2000"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint       `json:"id"`
	Audience  string     `json:"audience"`
	Type      string     `json:"type"`
	Title     string     `json:"title,omitempty"`
	Message   string     `json:"message"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NewNotificationResponse converts a notification model.
func NewNotificationResponse(model models.Notification, readAt *time.Time) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		Audience:  model.Audience,
		Type:      model.Type,
		Title:     model.Title,
		Message:   model.Message,
		Read:      readAt != nil,
		ReadAt:    readAt,
		CreatedAt: model.CreatedAt,
	}
}
