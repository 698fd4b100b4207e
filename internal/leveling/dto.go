package leveling

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
)

// LadderLevel is the public view of a ladder rung.
type LadderLevel struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Role          enums.Role `json:"role"`
	RequiredTrips int        `json:"requiredTrips"`
	Rewards       string     `json:"rewards"`
	Description   string     `json:"description"`
}

// LadderStatus pairs the current and next rung for a trip count.
type LadderStatus struct {
	Trips   int         `json:"trips"`
	Current LadderLevel `json:"current"`
	Next    LadderLevel `json:"next"`
	// TripsToNext is zero once the top rung is reached.
	TripsToNext int `json:"tripsToNext"`
}

func fromModel(m models.Level) LadderLevel {
	return LadderLevel{
		ID:            m.ID,
		Name:          m.Name,
		Role:          m.Role,
		RequiredTrips: m.RequiredTrips,
		Rewards:       m.Rewards,
		Description:   m.Description,
	}
}
