package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/porter-backend/pkg/enums"
)

// Level is one rung of a role's trip-count ladder.
type Level struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name          string     `gorm:"column:name;not null"`
	Role          enums.Role `gorm:"column:role;type:user_role;not null"`
	RequiredTrips int        `gorm:"column:required_trips;not null"`
	Rewards       string     `gorm:"column:rewards;not null"`
	Description   string     `gorm:"column:description;not null"`
}

func (l *Level) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
