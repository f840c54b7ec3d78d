package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
)

// Entry captures one admin-visible state change.
type Entry struct {
	ActorID     uuid.UUID
	ActorRole   enums.ActorRole
	Action      string
	TargetType  string
	TargetID    uuid.UUID
	Before      any
	After       any
	Description *string
}

// Recorder appends audit rows inside the caller's transaction so the audit
// trail commits together with the change it describes.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]models.AuditLog, error)
}

type recorder struct {
	db *gorm.DB
}

// NewRecorder returns an audit recorder bound to the provided database.
func NewRecorder(db *gorm.DB) Recorder {
	return &recorder{db: db}
}

func (r *recorder) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if entry.ActorID == uuid.Nil {
		return fmt.Errorf("audit actor id required")
	}
	if entry.Action == "" {
		return fmt.Errorf("audit action required")
	}
	if entry.TargetID == uuid.Nil {
		return fmt.Errorf("audit target id required")
	}

	before, err := marshalValue(entry.Before)
	if err != nil {
		return fmt.Errorf("marshal audit before value: %w", err)
	}
	after, err := marshalValue(entry.After)
	if err != nil {
		return fmt.Errorf("marshal audit after value: %w", err)
	}

	db := r.db
	if tx != nil {
		db = tx
	}
	row := models.AuditLog{
		ID:          uuid.New(),
		ActorID:     entry.ActorID,
		ActorRole:   entry.ActorRole,
		Action:      entry.Action,
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
		BeforeValue: before,
		AfterValue:  after,
		Description: entry.Description,
	}
	return db.WithContext(ctx).Create(&row).Error
}

func (r *recorder) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	q := r.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func marshalValue(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return data, nil
}
