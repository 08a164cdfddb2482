package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshpress-app/freshpress-backend/pkg/enums"
)

// Recipient is a staff member who receives order dispatch messages.
// Rows are managed by the admin back office; the dispatch engine only reads them.
type Recipient struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TelegramID int64               `gorm:"column:telegram_id;not null;uniqueIndex"`
	Name       string              `gorm:"column:name;not null"`
	Role       enums.RecipientRole `gorm:"column:role;type:text;not null"`
	Active     bool                `gorm:"column:active;not null;default:true;index"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
