package recipients

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freshpress-app/freshpress-backend/pkg/db/models"
)

// Repository persists notification recipients.
type Repository interface {
	ListActive(ctx context.Context) ([]models.Recipient, error)
	Upsert(ctx context.Context, recipient *models.Recipient) (*models.Recipient, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a recipients repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListActive(ctx context.Context) ([]models.Recipient, error) {
	var rows []models.Recipient
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert creates or refreshes a recipient keyed by telegram chat id, so
// re-registering a chat updates its name, role and active flag in place.
func (r *repository) Upsert(ctx context.Context, recipient *models.Recipient) (*models.Recipient, error) {
	if recipient.ID == uuid.Nil {
		recipient.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "role", "active", "updated_at"}),
		}).
		Create(recipient).Error
	if err != nil {
		return nil, err
	}
	return recipient, nil
}
