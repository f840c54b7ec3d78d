package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/pkg/enums"
)

// AuditLog records admin-visible state changes, one row per action. Dispute
// status changes and resolutions always write here.
type AuditLog struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ActorID     uuid.UUID       `gorm:"column:actor_id;type:uuid;not null;index"`
	ActorRole   enums.ActorRole `gorm:"column:actor_role;type:text;not null"`
	Action      string          `gorm:"column:action;type:text;not null"`
	TargetType  string          `gorm:"column:target_type;type:text;not null"`
	TargetID    uuid.UUID       `gorm:"column:target_id;type:uuid;not null;index"`
	BeforeValue json.RawMessage `gorm:"column:before_value;type:jsonb"`
	AfterValue  json.RawMessage `gorm:"column:after_value;type:jsonb"`
	Description *string         `gorm:"column:description;type:text"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
