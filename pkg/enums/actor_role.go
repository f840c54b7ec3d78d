package enums

import "fmt"

// ActorRole identifies who is acting on a settlement resource.
type ActorRole string

const (
	ActorRoleBuyer   ActorRole = "buyer"
	ActorRoleArtisan ActorRole = "artisan"
	ActorRoleAdmin   ActorRole = "admin"
)

var validActorRoles = []ActorRole{ActorRoleBuyer, ActorRoleArtisan, ActorRoleAdmin}

// IsValid reports whether the value matches the canonical role enum.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
