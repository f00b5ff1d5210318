package sources

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/sheetsync/internal/entities"
)

var ErrNotFound = errors.New("sync source not found")

// Repository stores spreadsheets registered for scheduled syncing.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Add(ctx context.Context, src *entities.SyncSource) error {
	src.SourceRef = strings.TrimSpace(src.SourceRef)
	if src.ActorID == "" {
		return errors.New("sync source needs an actor")
	}
	if src.SourceRef == "" {
		return errors.New("sync source needs a source reference")
	}
	if src.ClientID != nil && *src.ClientID == "" {
		src.ClientID = nil
	}
	return r.db.WithContext(ctx).Create(src).Error
}

// List returns the sources registered by an actor.
func (r *Repository) List(ctx context.Context, actorID string) ([]entities.SyncSource, error) {
	var out []entities.SyncSource
	err := r.db.WithContext(ctx).Where("actor_id = ?", actorID).Order("id ASC").Find(&out).Error
	return out, err
}

// ListEnabled returns every enabled source, in registration order.
func (r *Repository) ListEnabled(ctx context.Context) ([]entities.SyncSource, error) {
	var out []entities.SyncSource
	err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *Repository) SetEnabled(ctx context.Context, id uint, enabled bool) error {
	res := r.db.WithContext(ctx).Model(&entities.SyncSource{}).Where("id = ?", id).Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Remove(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&entities.SyncSource{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uint) (*entities.SyncSource, error) {
	var src entities.SyncSource
	err := r.db.WithContext(ctx).First(&src, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}
