package entity

import "time"

// Roles de la organización.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// IsElevatedRole indica si el rol puede ejecutar operaciones administrativas (cancelaciones).
func IsElevatedRole(role string) bool {
	return role == RoleOwner || role == RoleAdmin
}

// IsMemberRole indica si el rol corresponde a un miembro válido de la organización.
func IsMemberRole(role string) bool {
	return role == RoleOwner || role == RoleAdmin || role == RoleMember
}

// UserSnapshot identidad del actor tal como era al momento de la acción.
// Se guarda junto al ID del usuario; no se resuelve por join.
type UserSnapshot struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// Actor quien ejecuta una operación: identidad más organización activa.
type Actor struct {
	UserID         string
	OrganizationID string
	Name           string
	Role           string
}

// Snapshot captura la identidad del actor para historial y auditoría.
func (a Actor) Snapshot() UserSnapshot {
	return UserSnapshot{UserID: a.UserID, Name: a.Name, Role: a.Role}
}

// Member representa la membresía de un usuario en una organización.
type Member struct {
	UserID         string
	OrganizationID string
	Role           string
	CreatedAt      time.Time
}
