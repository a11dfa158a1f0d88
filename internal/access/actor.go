package access

import "strings"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
	RoleSystem Role = "system"
)

// Actor is the caller as identified by the upstream gateway.
type Actor struct {
	ID   string
	Role Role
}

func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Privileged actors may read every document.
func (a Actor) Privileged() bool {
	switch a.Role {
	case RoleAdmin, RoleStaff, RoleSystem:
		return true
	}

	return false
}

// CanAccess reports whether actor may read a document linked to entityID.
// Unprivileged actors only see documents whose entity is themselves.
func CanAccess(entityID string, actor Actor) bool {
	if actor.Privileged() {
		return true
	}

	return actor.ID != "" && entityID != "" && entityID == actor.ID
}
