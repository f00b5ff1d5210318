package entities

import "strings"

// SyncScope identifies who a sync, status record or cache entry belongs to.
// A nil ClientID is the actor's personal scope.
type SyncScope struct {
	ActorID  string  `json:"actor_id"`
	ClientID *string `json:"client_id,omitempty"`
}

// PersonalScope returns the personal scope of an actor.
func PersonalScope(actorID string) SyncScope {
	return SyncScope{ActorID: actorID}
}

// ClientScope returns the scope of an actor working inside a client tenant.
func ClientScope(actorID, clientID string) SyncScope {
	return SyncScope{ActorID: actorID, ClientID: &clientID}
}

// NewSyncScope builds a scope from raw request values; an empty clientID
// yields the personal scope.
func NewSyncScope(actorID, clientID string) SyncScope {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return PersonalScope(actorID)
	}
	return ClientScope(actorID, clientID)
}

// IsPersonal reports whether the scope has no client tenant.
func (s SyncScope) IsPersonal() bool {
	return s.ClientID == nil || *s.ClientID == ""
}

// Client returns the client id or an empty string for personal scopes.
func (s SyncScope) Client() string {
	if s.IsPersonal() {
		return ""
	}
	return *s.ClientID
}

// Key is the persisted, non-null form of the scope.
// Client tenants are shared between their members, so the key of a client
// scope does not include the actor.
func (s SyncScope) Key() string {
	if s.IsPersonal() {
		return "actor:" + s.ActorID
	}
	return "client:" + *s.ClientID
}

func (s SyncScope) String() string {
	if s.IsPersonal() {
		return s.ActorID
	}
	return s.ActorID + "@" + *s.ClientID
}
