package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshpress-app/freshpress-backend/pkg/db/models"
	"github.com/freshpress-app/freshpress-backend/pkg/enums"
)

// CreateOrderItem is one line of an inbound storefront order.
type CreateOrderItem struct {
	Name      string          `json:"name" validate:"required"`
	Qty       int             `json:"qty" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
}

// CreateOrderInput is the storefront checkout payload.
type CreateOrderInput struct {
	CustomerName    string            `json:"customer_name" validate:"required"`
	CustomerPhone   string            `json:"customer_phone" validate:"required"`
	CustomerEmail   *string           `json:"customer_email" validate:"omitempty,email"`
	DeliveryAddress string            `json:"delivery_address" validate:"required"`
	Notes           *string           `json:"notes"`
	Items           []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
}

// OrderItemView is one line of an order as returned to clients.
type OrderItemView struct {
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// OrderView is the client-facing order representation.
type OrderView struct {
	ID              uuid.UUID         `json:"id"`
	OrderNumber     int64             `json:"order_number"`
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	CustomerEmail   *string           `json:"customer_email,omitempty"`
	DeliveryAddress string            `json:"delivery_address"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	Notes           *string           `json:"notes,omitempty"`
	Status          enums.OrderStatus `json:"status"`
	Items           []OrderItemView   `json:"items"`
	Notified        bool              `json:"notified"`
	CreatedAt       time.Time         `json:"created_at"`
}

// NewOrderView maps a stored order to its client representation.
func NewOrderView(order *models.Order, notified bool) OrderView {
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemView{
			Name:      item.Name,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
		})
	}
	return OrderView{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		CustomerEmail:   order.CustomerEmail,
		DeliveryAddress: order.DeliveryAddress,
		TotalAmount:     order.TotalAmount,
		Notes:           order.Notes,
		Status:          order.Status,
		Items:           items,
		Notified:        notified,
		CreatedAt:       order.CreatedAt,
	}
}
