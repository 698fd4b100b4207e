package achievements

import (
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/porter-backend/pkg/enums"
)

// Stats is the snapshot of a user that criteria are evaluated against.
type Stats struct {
	Level           int   `json:"level"`
	XP              int64 `json:"xp"`
	CompletedOrders int   `json:"completedOrders"`
}

// Criteria is the unlock condition of an achievement. The set of variants
// is closed; UnknownCriteria stands in for kinds this build does not know.
type Criteria interface {
	Kind() enums.CriteriaKind
	satisfiedBy(stats Stats) bool
}

// LevelReached is met once the user is at Level or above.
type LevelReached struct {
	Level int `json:"level"`
}

func (LevelReached) Kind() enums.CriteriaKind { return enums.CriteriaLevelReached }

func (c LevelReached) satisfiedBy(stats Stats) bool { return stats.Level >= c.Level }

// OrdersCompleted is met after Count delivered orders.
type OrdersCompleted struct {
	Count int `json:"count"`
}

func (OrdersCompleted) Kind() enums.CriteriaKind { return enums.CriteriaOrdersCompleted }

func (c OrdersCompleted) satisfiedBy(stats Stats) bool { return stats.CompletedOrders >= c.Count }

// XPEarned is met once lifetime XP reaches XP.
type XPEarned struct {
	XP int64 `json:"xp"`
}

func (XPEarned) Kind() enums.CriteriaKind { return enums.CriteriaXPEarned }

func (c XPEarned) satisfiedBy(stats Stats) bool { return stats.XP >= c.XP }

// UnknownCriteria keeps the raw document of an unrecognised kind. It is
// never satisfied.
type UnknownCriteria struct {
	RawKind string
	Raw     json.RawMessage
}

func (c UnknownCriteria) Kind() enums.CriteriaKind { return enums.CriteriaKind(c.RawKind) }

func (UnknownCriteria) satisfiedBy(Stats) bool { return false }

// Eligible reports whether stats meet the achievement's criteria.
func Eligible(stats Stats, def Definition) bool {
	if def.Criteria == nil {
		return false
	}
	return def.Criteria.satisfiedBy(stats)
}

type criteriaHeader struct {
	Kind string `json:"kind"`
}

// DecodeCriteria reads a tagged criteria document. Unknown kinds decode to
// UnknownCriteria; only malformed JSON is an error.
func DecodeCriteria(raw json.RawMessage) (Criteria, error) {
	var header criteriaHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("decode criteria: %w", err)
	}
	switch enums.CriteriaKind(header.Kind) {
	case enums.CriteriaLevelReached:
		var c LevelReached
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", header.Kind, err)
		}
		return c, nil
	case enums.CriteriaOrdersCompleted:
		var c OrdersCompleted
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", header.Kind, err)
		}
		return c, nil
	case enums.CriteriaXPEarned:
		var c XPEarned
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", header.Kind, err)
		}
		return c, nil
	default:
		return UnknownCriteria{RawKind: header.Kind, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

// EncodeCriteria writes the tagged document stored in achievements.criteria.
func EncodeCriteria(c Criteria) (json.RawMessage, error) {
	switch v := c.(type) {
	case LevelReached:
		return json.Marshal(struct {
			Kind  enums.CriteriaKind `json:"kind"`
			Level int                `json:"level"`
		}{v.Kind(), v.Level})
	case OrdersCompleted:
		return json.Marshal(struct {
			Kind  enums.CriteriaKind `json:"kind"`
			Count int                `json:"count"`
		}{v.Kind(), v.Count})
	case XPEarned:
		return json.Marshal(struct {
			Kind enums.CriteriaKind `json:"kind"`
			XP   int64              `json:"xp"`
		}{v.Kind(), v.XP})
	case UnknownCriteria:
		if len(v.Raw) > 0 {
			return v.Raw, nil
		}
		return json.Marshal(criteriaHeader{Kind: v.RawKind})
	case nil:
		return nil, fmt.Errorf("criteria required")
	default:
		return nil, fmt.Errorf("unsupported criteria %T", c)
	}
}

// validateCriteria rejects unknown kinds and non-positive thresholds on
// catalog writes.
func validateCriteria(c Criteria) map[string]string {
	switch v := c.(type) {
	case LevelReached:
		if v.Level < 1 {
			return map[string]string{"criteria.level": "must be at least 1"}
		}
	case OrdersCompleted:
		if v.Count < 1 {
			return map[string]string{"criteria.count": "must be at least 1"}
		}
	case XPEarned:
		if v.XP < 1 {
			return map[string]string{"criteria.xp": "must be at least 1"}
		}
	case nil:
		return map[string]string{"criteria": "required"}
	default:
		return map[string]string{"criteria.kind": fmt.Sprintf("unsupported kind %q", c.Kind())}
	}
	return nil
}
