package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/porter-backend/internal/leveling"
	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Phone           *string    `json:"phone,omitempty"`
	Role            enums.Role `json:"role"`
	XP              int64      `json:"xp"`
	Level           int        `json:"level"`
	CompletedOrders int        `json:"completedOrders"`
	IsActive        bool       `json:"isActive"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// ProfileDTO is the caller's own view: the account plus both progression
// tracks. Ladder is nil for roles without a ladder.
type ProfileDTO struct {
	User     *UserDTO               `json:"user"`
	XP       leveling.XPProgress    `json:"xp"`
	Ladder   *leveling.LadderStatus `json:"ladder,omitempty"`
	Unlocked int64                  `json:"achievementsUnlocked"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
	Role         enums.Role
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Phone:           u.Phone,
		Role:            u.Role,
		XP:              u.XP,
		Level:           u.Level,
		CompletedOrders: u.CompletedOrders,
		IsActive:        u.IsActive,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// ToModel builds a fresh account: no XP, level one, active.
func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Phone:        c.Phone,
		Role:         c.Role,
		XP:           0,
		Level:        1,
		IsActive:     true,
	}
}
