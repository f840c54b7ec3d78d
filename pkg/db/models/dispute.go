package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/pkg/enums"
)

// Dispute freezes an order's settlement until an admin resolves it. One row
// per order; IsDisputed stays true from report until resolution so in-flight
// confirmations and sweeps can re-check it transactionally.
type Dispute struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:disputes_order_id_key"`

	IsDisputed     bool              `gorm:"column:is_disputed;not null;default:true"`
	Type           enums.DisputeType `gorm:"column:type;type:text;not null"`
	Reason         string            `gorm:"column:reason;type:text;not null"`
	Details        *string           `gorm:"column:details;type:text"`
	Evidence       []string          `gorm:"column:evidence;type:jsonb;serializer:json"`
	ReportedBy     uuid.UUID         `gorm:"column:reported_by;type:uuid;not null"`
	ReportedByRole enums.ActorRole   `gorm:"column:reported_by_role;type:text;not null"`
	ReportedAt     time.Time         `gorm:"column:reported_at;not null"`

	Status          enums.DisputeStatus      `gorm:"column:status;type:text;not null;default:'open';index"`
	Resolution      *enums.DisputeResolution `gorm:"column:resolution;type:text"`
	ResolutionNotes *string                  `gorm:"column:resolution_notes;type:text"`
	ResolvedAt      *time.Time               `gorm:"column:resolved_at"`
	ResolvedBy      *uuid.UUID               `gorm:"column:resolved_by;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
