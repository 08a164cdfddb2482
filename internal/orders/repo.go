package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshpress-app/freshpress-backend/pkg/db/models"
	"github.com/freshpress-app/freshpress-backend/pkg/enums"
	pkgerrors "github.com/freshpress-app/freshpress-backend/pkg/errors"
)

// Repository persists storefront orders.
type Repository interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Find(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// orderNumberAttempts caps the retries when concurrent checkouts race for the
// same order number.
const orderNumberAttempts = 3

// Create inserts the order with the next sequential order number. Concurrent
// checkouts can read the same maximum; the unique index on order_number
// rejects the loser and the insert retries with a fresh read.
func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
	}

	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var maxNumber int64
			if err := tx.Model(&models.Order{}).
				Select("COALESCE(MAX(order_number), 0)").
				Scan(&maxNumber).Error; err != nil {
				return err
			}
			order.OrderNumber = maxNumber + 1
			return tx.Create(order).Error
		})
		if err == nil {
			return order, nil
		}
		if !pkgerrors.IsUniqueViolation(err) {
			return nil, err
		}
	}
	return nil, err
}

// Find loads an order with its items. A missing row yields (nil, nil).
func (r *repository) Find(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}
