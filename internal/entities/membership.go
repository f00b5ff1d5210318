package entities

import "time"

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Allows reports whether the role may perform action inside its client.
func (r Role) Allows(action Action) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor:
		return action == ActionSync || action == ActionView || action == ActionConfigure
	case RoleViewer:
		return action == ActionView
	}
	return false
}

type Action string

const (
	ActionSync      Action = "sync"
	ActionView      Action = "view"
	ActionConfigure Action = "configure"
)

// ClientMembership grants an actor a role inside a client tenant.
type ClientMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ActorID   string    `gorm:"size:255;not null;uniqueIndex:idx_membership_actor_client" json:"actor_id"`
	ClientID  string    `gorm:"size:255;not null;uniqueIndex:idx_membership_actor_client;index" json:"client_id"`
	Role      Role      `gorm:"size:20;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (ClientMembership) TableName() string {
	return "client_memberships"
}
