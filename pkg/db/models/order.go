package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshpress-app/freshpress-backend/pkg/enums"
)

// Order is the committed checkout record the dispatch engine notifies about.
// The engine treats it as immutable except for Status, which mirrors dispatch
// progress back to the storefront.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     int64             `gorm:"column:order_number;not null"`
	CustomerName    string            `gorm:"column:customer_name;not null"`
	CustomerPhone   string            `gorm:"column:customer_phone;not null"`
	CustomerEmail   *string           `gorm:"column:customer_email"`
	DeliveryAddress string            `gorm:"column:delivery_address;not null"`
	TotalAmount     decimal.Decimal   `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Notes           *string           `gorm:"column:notes"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
