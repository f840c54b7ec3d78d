package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/avelardi/atelia-backend/pkg/db"
	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
	"github.com/avelardi/atelia-backend/pkg/logger"
)

type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          interface{}
	Version       int
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit appends the event to the outbox inside the caller's transaction, so
// the event commits or rolls back together with the domain write.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	return s.emit(ctx, tx, event, nil)
}

// EmitOnce is Emit with a deduplication key. A duplicate key is swallowed as
// a no-op, which makes one-shot events (order completed, payout processed)
// safe under finalize/sweep races. The insert runs under a savepoint: a
// Postgres transaction is aborted by the unique violation, and without the
// rollback-to the caller's later writes and commit would fail.
func (s *Service) EmitOnce(ctx context.Context, tx *gorm.DB, dedupeKey string, event DomainEvent) error {
	if dedupeKey == "" {
		return errors.New("dedupe key required")
	}
	if tx == nil {
		return errors.New("transaction required")
	}
	const sp = "outbox_emit_once"
	if err := tx.SavePoint(sp).Error; err != nil {
		return err
	}
	err := s.emit(ctx, tx, event, &dedupeKey)
	if err != nil && dbpkg.IsUniqueViolation(err, "outbox_events_dedupe_key_key") {
		if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
			return rbErr
		}
		return nil
	}
	return err
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, event DomainEvent, dedupeKey *string) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       payload,
	}
	payloadJSON, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		DedupeKey:     dedupeKey,
		Payload:       json.RawMessage(payloadJSON),
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	if s.logg != nil {
		fields := map[string]any{
			"event_id":       envelope.EventID,
			"event_type":     event.EventType,
			"aggregate_id":   event.AggregateID.String(),
			"aggregate_type": event.AggregateType,
		}
		logCtx := s.logg.WithFields(ctx, fields)
		s.logg.Info(logCtx, "outbox event queued")
	}
	return nil
}
