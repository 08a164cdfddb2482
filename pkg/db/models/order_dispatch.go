package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshpress-app/freshpress-backend/pkg/enums"
)

// OrderDispatch is the per-order notification state row. One row per order;
// the status column drives which reminder loop (if any) is active.
type OrderDispatch struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status             enums.DispatchStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CourierTelegramID  *int64               `gorm:"column:courier_telegram_id"`
	LastNotificationAt *time.Time           `gorm:"column:last_notification_sent_at"`
	AssignedAt         *time.Time           `gorm:"column:assigned_at"`
	DeliveredAt        *time.Time           `gorm:"column:delivered_at"`
	LastReminderAt     *time.Time           `gorm:"column:last_reminder_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
