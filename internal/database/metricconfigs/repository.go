package metricconfigs

import (
	"context"

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

// List returns the column mappings of a scope ordered by column name.
func (r *Repository) List(ctx context.Context, scopeKey string) ([]entities.MetricConfig, error) {
	var configs []entities.MetricConfig
	err := r.db.WithContext(ctx).
		Where("scope_key = ?", scopeKey).
		Order("column_name ASC").
		Find(&configs).Error
	return configs, err
}

// Upsert creates or replaces the mapping of one column.
func (r *Repository) Upsert(ctx context.Context, cfg *entities.MetricConfig) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_key"}, {Name: "column_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"metric_name", "metric_type", "category", "target_value", "updated_at"}),
	}).Create(cfg).Error
}

// Delete removes the mapping of one column. It reports whether a row existed.
func (r *Repository) Delete(ctx context.Context, scopeKey, columnName string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("scope_key = ? AND column_name = ?", scopeKey, columnName).
		Delete(&entities.MetricConfig{})
	return result.RowsAffected > 0, result.Error
}
