package enums

import "fmt"

// ActorRole is the role claim supplied by the identity service.
type ActorRole string

const (
	ActorRoleConsultant ActorRole = "consultant"
	ActorRoleAdmin      ActorRole = "admin"
	ActorRoleSystem     ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleConsultant,
	ActorRoleAdmin,
	ActorRoleSystem,
}

// IsValid checks whether the given role matches the canonical enum.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw strings into ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
