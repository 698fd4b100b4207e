package enums

import (
	"fmt"
	"strings"
)

// Role maps to the user_role enum in Postgres.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleDriver Role = "driver"
)

var validRoles = []Role{
	RoleAdmin,
	RoleUser,
	RoleDriver,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// HasLadder reports whether the role has a trip-count level ladder.
func (r Role) HasLadder() bool {
	return r == RoleUser || r == RoleDriver
}

// ParseRole converts raw input into a Role. Matching is case-insensitive so
// legacy upper-case values ("DRIVER") are accepted.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
