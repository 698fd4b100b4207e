package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/porter-backend/pkg/enums"
)

// User represents the canonical identity entity together with its
// gamification counters.
type User struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Email           string     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash    string     `gorm:"column:password_hash;not null"`
	FirstName       string     `gorm:"column:first_name;not null"`
	LastName        string     `gorm:"column:last_name;not null"`
	Phone           *string    `gorm:"column:phone"`
	Role            enums.Role `gorm:"column:role;type:user_role;not null"`
	XP              int64      `gorm:"column:xp;not null;default:0"`
	Level           int        `gorm:"column:level;not null;default:1"`
	CompletedOrders int        `gorm:"column:completed_orders;not null;default:0"`
	IsActive        bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt     *time.Time `gorm:"column:last_login_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	if u.Level < 1 {
		u.Level = 1
	}
	return nil
}
