package models

import (
	"time"

	"github.com/google/uuid"
)

// BotSettings holds the Telegram bot configuration managed by the admin UI.
// The dispatch engine reads the newest enabled row.
type BotSettings struct {
	ID                      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	APIToken                string    `gorm:"column:api_token;not null"`
	Enabled                 bool      `gorm:"column:enabled;not null;default:false"`
	ReminderIntervalMinutes int       `gorm:"column:reminder_interval_minutes;not null;default:5"`
	CreatedAt               time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ReminderInterval converts the configured minutes to a duration, falling back
// to fallback when unset or non-positive.
func (b BotSettings) ReminderInterval(fallback time.Duration) time.Duration {
	if b.ReminderIntervalMinutes <= 0 {
		return fallback
	}
	return time.Duration(b.ReminderIntervalMinutes) * time.Minute
}
