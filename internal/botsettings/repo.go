package botsettings

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/freshpress-app/freshpress-backend/pkg/db/models"
)

// Repository reads the bot configuration.
type Repository interface {
	Current(ctx context.Context) (*models.BotSettings, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bot settings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Current returns the newest settings row, or (nil, nil) when none exists.
// Callers treat nil settings the same as a disabled bot.
func (r *repository) Current(ctx context.Context) (*models.BotSettings, error) {
	var row models.BotSettings
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
