// Package authz answers whether an actor may perform an action in a scope.
package authz

import (
	"context"
	"log"

	"github.com/mrlokans/sheetsync/internal/entities"
)

// Authorizer is the permission check consulted before any sync mutation.
type Authorizer interface {
	CanPerform(ctx context.Context, actorID string, scope entities.SyncScope, action entities.Action) (bool, error)
}

// RoleLookup resolves an actor's role inside a client tenant.
type RoleLookup interface {
	Role(ctx context.Context, actorID, clientID string) (entities.Role, error)
}

// MembershipAuthorizer grants access from client memberships. A personal scope
// is only accessible to its own actor.
type MembershipAuthorizer struct {
	roles RoleLookup
}

func NewMembershipAuthorizer(roles RoleLookup) *MembershipAuthorizer {
	return &MembershipAuthorizer{roles: roles}
}

func (a *MembershipAuthorizer) CanPerform(ctx context.Context, actorID string, scope entities.SyncScope, action entities.Action) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	if scope.IsPersonal() {
		return scope.ActorID == actorID, nil
	}

	role, err := a.roles.Role(ctx, actorID, scope.Client())
	if err != nil {
		return false, err
	}
	allowed := role.Allows(action)
	if !allowed {
		log.Printf("Authz: %s (role %q) denied %s on client %s", actorID, role, action, scope.Client())
	}
	return allowed, nil
}

// AllowAll permits every non-anonymous actor. Used for single-user deployments.
type AllowAll struct{}

func (AllowAll) CanPerform(_ context.Context, actorID string, _ entities.SyncScope, _ entities.Action) (bool, error) {
	return actorID != "", nil
}
