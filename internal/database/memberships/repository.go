package memberships

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/sheetsync/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Role returns the actor's role in a client, or "" when the actor is not a member.
func (r *Repository) Role(ctx context.Context, actorID, clientID string) (entities.Role, error) {
	var m entities.ClientMembership
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND client_id = ?", actorID, clientID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// Grant creates or replaces the actor's role in a client.
func (r *Repository) Grant(ctx context.Context, actorID, clientID string, role entities.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	m := entities.ClientMembership{ActorID: actorID, ClientID: clientID, Role: role}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}, {Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(&m).Error
}

// Revoke removes the actor from a client.
func (r *Repository) Revoke(ctx context.Context, actorID, clientID string) error {
	return r.db.WithContext(ctx).
		Where("actor_id = ? AND client_id = ?", actorID, clientID).
		Delete(&entities.ClientMembership{}).Error
}

// Members lists the memberships of a client.
func (r *Repository) Members(ctx context.Context, clientID string) ([]entities.ClientMembership, error) {
	var members []entities.ClientMembership
	err := r.db.WithContext(ctx).Where("client_id = ?", clientID).Order("actor_id ASC").Find(&members).Error
	return members, err
}
