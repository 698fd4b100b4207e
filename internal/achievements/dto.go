package achievements

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/porter-backend/pkg/db/models"
)

// Definition is a catalog entry with its criteria decoded.
type Definition struct {
	ID          uuid.UUID
	Title       string
	Description string
	XPReward    int64
	Icon        *string
	Criteria    Criteria
}

type definitionJSON struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	XPReward    int64           `json:"xpReward"`
	Icon        *string         `json:"icon,omitempty"`
	Criteria    json.RawMessage `json:"criteria"`
}

func (d Definition) MarshalJSON() ([]byte, error) {
	criteria, err := EncodeCriteria(d.Criteria)
	if err != nil {
		return nil, err
	}
	return json.Marshal(definitionJSON{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		XPReward:    d.XPReward,
		Icon:        d.Icon,
		Criteria:    criteria,
	})
}

func (d *Definition) UnmarshalJSON(data []byte) error {
	var raw definitionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	criteria, err := DecodeCriteria(raw.Criteria)
	if err != nil {
		return err
	}
	*d = Definition{
		ID:          raw.ID,
		Title:       raw.Title,
		Description: raw.Description,
		XPReward:    raw.XPReward,
		Icon:        raw.Icon,
		Criteria:    criteria,
	}
	return nil
}

// OwnedAchievement is an unlocked achievement with its unlock time.
type OwnedAchievement struct {
	Definition
	UnlockedAt time.Time
}

func (o OwnedAchievement) MarshalJSON() ([]byte, error) {
	def, err := o.Definition.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Achievement json.RawMessage `json:"achievement"`
		UnlockedAt  time.Time       `json:"unlockedAt"`
	}{def, o.UnlockedAt})
}

// DefinitionInput is the admin payload for creating or replacing an entry.
type DefinitionInput struct {
	Title       string
	Description string
	XPReward    int64
	Icon        *string
	Criteria    Criteria
}

// definitionFromModel decodes the stored criteria. A malformed document is
// kept as UnknownCriteria so one bad row cannot block the whole catalog.
func definitionFromModel(row models.Achievement) Definition {
	criteria, err := DecodeCriteria(row.Criteria)
	if err != nil {
		criteria = UnknownCriteria{Raw: append(json.RawMessage(nil), row.Criteria...)}
	}
	return Definition{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		XPReward:    row.XPReward,
		Icon:        row.Icon,
		Criteria:    criteria,
	}
}
