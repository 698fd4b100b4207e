package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Achievement is a catalog entry. Criteria holds the tagged JSON document
// decoded by the achievements package.
type Achievement struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Title       string          `gorm:"column:title;not null;uniqueIndex"`
	Description string          `gorm:"column:description;not null"`
	XPReward    int64           `gorm:"column:xp_reward;not null"`
	Icon        *string         `gorm:"column:icon"`
	Criteria    json.RawMessage `gorm:"column:criteria;type:jsonb;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Achievement) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// UserAchievement records a permanent unlock.
type UserAchievement struct {
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	AchievementID uuid.UUID `gorm:"column:achievement_id;type:uuid;primaryKey"`
	UnlockedAt    time.Time `gorm:"column:unlocked_at;not null"`
}
