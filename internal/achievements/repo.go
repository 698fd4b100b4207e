package achievements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/porter-backend/pkg/db/models"
)

// Repository persists the catalog and the owned sets.
type Repository interface {
	// LockStats reads the user's counters holding the row lock until tx ends.
	LockStats(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (Stats, error)
	OwnedIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (map[uuid.UUID]struct{}, error)
	ListCatalog(ctx context.Context, tx *gorm.DB) ([]models.Achievement, error)
	InsertOwned(ctx context.Context, tx *gorm.DB, rows []models.UserAchievement) error
	ListOwned(ctx context.Context, userID uuid.UUID) ([]ownedRow, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Achievement, error)
	Create(ctx context.Context, row *models.Achievement) error
	Update(ctx context.Context, row *models.Achievement) error
	// UsersActiveSince lists owners and drivers of orders delivered at or
	// after since.
	UsersActiveSince(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

type ownedRow struct {
	models.Achievement
	UnlockedAt time.Time `gorm:"column:unlocked_at"`
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *repository) LockStats(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (Stats, error) {
	var user models.User
	err := r.conn(ctx, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "xp", "level", "completed_orders").
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return Stats{}, err
	}
	return Stats{Level: user.Level, XP: user.XP, CompletedOrders: user.CompletedOrders}, nil
}

func (r *repository) OwnedIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	var ids []uuid.UUID
	if err := r.conn(ctx, tx).
		Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &ids).Error; err != nil {
		return nil, err
	}
	owned := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		owned[id] = struct{}{}
	}
	return owned, nil
}

func (r *repository) ListCatalog(ctx context.Context, tx *gorm.DB) ([]models.Achievement, error) {
	var rows []models.Achievement
	err := r.conn(ctx, tx).Order("created_at ASC").Order("title ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) InsertOwned(ctx context.Context, tx *gorm.DB, rows []models.UserAchievement) error {
	if len(rows) == 0 {
		return nil
	}
	return r.conn(ctx, tx).Create(&rows).Error
}

func (r *repository) ListOwned(ctx context.Context, userID uuid.UUID) ([]ownedRow, error) {
	var rows []ownedRow
	err := r.db.WithContext(ctx).
		Table("user_achievements ua").
		Select("a.*, ua.unlocked_at").
		Joins("JOIN achievements a ON a.id = ua.achievement_id").
		Where("ua.user_id = ?", userID).
		Order("ua.unlocked_at DESC").
		Order("a.title ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Achievement, error) {
	var row models.Achievement
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Create(ctx context.Context, row *models.Achievement) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) Update(ctx context.Context, row *models.Achievement) error {
	return r.db.WithContext(ctx).
		Model(&models.Achievement{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"title":       row.Title,
			"description": row.Description,
			"xp_reward":   row.XPReward,
			"icon":        row.Icon,
			"criteria":    row.Criteria,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *repository) UsersActiveSince(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	var owners, drivers []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Distinct("user_id").
		Where("delivered_at >= ?", since).
		Pluck("user_id", &owners).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Distinct("driver_id").
		Where("delivered_at >= ? AND driver_id IS NOT NULL", since).
		Pluck("driver_id", &drivers).Error; err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(owners)+len(drivers))
	ids := make([]uuid.UUID, 0, len(owners)+len(drivers))
	for _, id := range append(owners, drivers...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, nil
}
