package leveling

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
)

// Repository reads the role ladders.
type Repository interface {
	ListByRole(ctx context.Context, role enums.Role) ([]models.Level, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the ladder repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListByRole(ctx context.Context, role enums.Role) ([]models.Level, error) {
	var rows []models.Level
	err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("required_trips ASC").
		Find(&rows).Error
	return rows, err
}

