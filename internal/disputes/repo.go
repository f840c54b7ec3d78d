package disputes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
	"github.com/avelardi/atelia-backend/pkg/pagination"
)

// ListFilter narrows dispute listings.
type ListFilter struct {
	Status     *enums.DisputeStatus
	Type       *enums.DisputeType
	ReportedBy *uuid.UUID
	From       *time.Time
	To         *time.Time
}

// StatusCount is one bucket of the statistics aggregation.
type StatusCount struct {
	Status string
	Count  int64
}

// TypeCount is one bucket of the statistics aggregation.
type TypeCount struct {
	Type  string
	Count int64
}

// Repository manages persistence for disputes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	Create(ctx context.Context, dispute *models.Dispute) error
	Update(ctx context.Context, disputeID uuid.UUID, updates map[string]any) error
	UpdateOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, from, to enums.PaymentStatus) (bool, error)
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Dispute, error)
	CountByStatus(ctx context.Context, filter ListFilter) ([]StatusCount, error)
	CountByType(ctx context.Context, filter ListFilter) ([]TypeCount, error)
	ResolutionDurations(ctx context.Context, filter ListFilter) ([]time.Duration, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a dispute repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Dispute").
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	if dispute.ID == uuid.Nil {
		dispute.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) Update(ctx context.Context, disputeID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", disputeID).
		Updates(updates).Error
}

func (r *repository) UpdateOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, from, to enums.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, from).
		Update("payment_status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Dispute, error) {
	q := r.applyFilter(r.db.WithContext(ctx).Model(&models.Dispute{}), filter)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Dispute
	if err := q.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountByStatus(ctx context.Context, filter ListFilter) ([]StatusCount, error) {
	var buckets []StatusCount
	q := r.applyFilter(r.db.WithContext(ctx).Model(&models.Dispute{}), filter)
	if err := q.Select("status AS status, COUNT(*) AS count").
		Group("status").
		Scan(&buckets).Error; err != nil {
		return nil, err
	}
	return buckets, nil
}

func (r *repository) CountByType(ctx context.Context, filter ListFilter) ([]TypeCount, error) {
	var buckets []TypeCount
	q := r.applyFilter(r.db.WithContext(ctx).Model(&models.Dispute{}), filter)
	if err := q.Select("type AS type, COUNT(*) AS count").
		Group("type").
		Scan(&buckets).Error; err != nil {
		return nil, err
	}
	return buckets, nil
}

// ResolutionDurations returns reported-to-resolved durations for resolved
// disputes. Averaging happens in the service; timestamp arithmetic in SQL is
// not portable across postgres and the sqlite test driver.
func (r *repository) ResolutionDurations(ctx context.Context, filter ListFilter) ([]time.Duration, error) {
	type pair struct {
		ReportedAt time.Time
		ResolvedAt time.Time
	}
	var pairs []pair
	q := r.applyFilter(r.db.WithContext(ctx).Model(&models.Dispute{}), filter)
	if err := q.Where("resolved_at IS NOT NULL").
		Select("reported_at, resolved_at").
		Scan(&pairs).Error; err != nil {
		return nil, err
	}
	durations := make([]time.Duration, 0, len(pairs))
	for _, p := range pairs {
		durations = append(durations, p.ResolvedAt.Sub(p.ReportedAt))
	}
	return durations, nil
}

func (r *repository) applyFilter(q *gorm.DB, filter ListFilter) *gorm.DB {
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	if filter.ReportedBy != nil {
		q = q.Where("reported_by = ?", *filter.ReportedBy)
	}
	if filter.From != nil {
		q = q.Where("reported_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("reported_at < ?", *filter.To)
	}
	return q
}
