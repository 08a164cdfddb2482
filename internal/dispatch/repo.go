package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freshpress-app/freshpress-backend/pkg/db/models"
	"github.com/freshpress-app/freshpress-backend/pkg/enums"
)

// ActiveDispatch is the flattened recovery row: a non-terminal dispatch joined
// with the owning order's creation time. OrderCreatedAt is nil when the order
// row has been deleted underneath the dispatch.
type ActiveDispatch struct {
	OrderID           uuid.UUID
	Status            enums.DispatchStatus
	CourierTelegramID *int64
	OrderCreatedAt    *time.Time
}

// Repository persists dispatch rows.
type Repository interface {
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderDispatch, error)
	UpsertPending(ctx context.Context, orderID uuid.UUID, notifiedAt time.Time) error
	Claim(ctx context.Context, orderID uuid.UUID, courierID int64, at time.Time) (bool, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID, courierID int64, at time.Time) (bool, error)
	TouchReminder(ctx context.Context, orderID uuid.UUID, at time.Time) error
	ListActive(ctx context.Context) ([]ActiveDispatch, error)
	Expire(ctx context.Context, orderID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed dispatch repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderDispatch, error) {
	var row models.OrderDispatch
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertPending creates the pending dispatch row for an order, or refreshes
// last_notification_sent_at on an existing pending row. Rows that already left
// pending are never touched.
func (r *repository) UpsertPending(ctx context.Context, orderID uuid.UUID, notifiedAt time.Time) error {
	row := models.OrderDispatch{
		ID:                 uuid.New(),
		OrderID:            orderID,
		Status:             enums.DispatchStatusPending,
		LastNotificationAt: &notifiedAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_notification_sent_at": notifiedAt,
				"updated_at":                notifiedAt,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: "order_dispatches", Name: "status"}, Value: enums.DispatchStatusPending.String()},
			}},
		}).
		Create(&row).Error
}

// Claim atomically moves a pending dispatch to in_progress on behalf of one
// courier. Concurrent claims race on the conditional update; exactly one sees
// a row affected. A missing row is claimed via insert so a courier pressing a
// stale button after manual cleanup still wins deterministically.
func (r *repository) Claim(ctx context.Context, orderID uuid.UUID, courierID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderDispatch{}).
		Where("order_id = ? AND status = ?", orderID, enums.DispatchStatusPending).
		Updates(map[string]interface{}{
			"status":              enums.DispatchStatusInProgress,
			"courier_telegram_id": courierID,
			"assigned_at":         at,
			"updated_at":          at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// No pending row. Either another courier already claimed it, or the row
	// never existed; only the latter may insert.
	row := models.OrderDispatch{
		ID:                uuid.New(),
		OrderID:           orderID,
		Status:            enums.DispatchStatusInProgress,
		CourierTelegramID: &courierID,
		AssignedAt:        &at,
	}
	ins := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if ins.Error != nil {
		return false, ins.Error
	}
	return ins.RowsAffected > 0, nil
}

// MarkDelivered completes a dispatch. Only the courier that claimed the order
// may complete it, and only from in_progress.
func (r *repository) MarkDelivered(ctx context.Context, orderID uuid.UUID, courierID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderDispatch{}).
		Where("order_id = ? AND courier_telegram_id = ? AND status = ?",
			orderID, courierID, enums.DispatchStatusInProgress).
		Updates(map[string]interface{}{
			"status":       enums.DispatchStatusDelivered,
			"delivered_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) TouchReminder(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderDispatch{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"last_reminder_at": at,
			"updated_at":       at,
		}).Error
}

// ListActive returns every non-terminal dispatch with its order's creation
// time, for startup recovery. A left join keeps dispatches whose order was
// deleted so recovery can expire them.
func (r *repository) ListActive(ctx context.Context) ([]ActiveDispatch, error) {
	var rows []ActiveDispatch
	err := r.db.WithContext(ctx).
		Model(&models.OrderDispatch{}).
		Select("order_dispatches.order_id, order_dispatches.status, order_dispatches.courier_telegram_id, orders.created_at AS order_created_at").
		Joins("LEFT JOIN orders ON orders.id = order_dispatches.order_id").
		Where("order_dispatches.status IN ?", []enums.DispatchStatus{
			enums.DispatchStatusPending,
			enums.DispatchStatusInProgress,
		}).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Expire(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderDispatch{}).
		Where("order_id = ? AND status IN ?", orderID, []enums.DispatchStatus{
			enums.DispatchStatusPending,
			enums.DispatchStatusInProgress,
		}).
		Updates(map[string]interface{}{
			"status":     enums.DispatchStatusExpired,
			"updated_at": time.Now().UTC(),
		}).Error
}
