package models

import (
	"time"

	"gorm.io/datatypes"
)

// Actor roles recorded on audit entries.
const (
	ActorRoleAdmin   = "admin"
	ActorRoleStudent = "student"
	ActorRoleSystem  = "system"
)

// ActivityLog is one append-only audit entry. ActorID is zero for system events.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"index:idx_activity_actor_created,priority:1" json:"actor_id"`
	ActorRole  string            `gorm:"size:16;not null;default:system" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null;index:idx_activity_entity,priority:1" json:"entity_type"`
	EntityID   *uint             `gorm:"index:idx_activity_entity,priority:2" json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `gorm:"index:idx_activity_actor_created,priority:2" json:"created_at"`
}
