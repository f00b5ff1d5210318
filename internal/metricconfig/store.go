// Package metricconfig resolves which source columns become metrics.
//
// Lookups are read through a reqcache.Cache keyed by scope, so concurrent
// syncs of the same scope share one database read. Writes invalidate the
// scope's entry.
package metricconfig

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/reqcache"
)

// Repository is the persisted side of the store.
type Repository interface {
	List(ctx context.Context, scopeKey string) ([]entities.MetricConfig, error)
	Upsert(ctx context.Context, cfg *entities.MetricConfig) error
	Delete(ctx context.Context, scopeKey, columnName string) (bool, error)
}

type Store struct {
	repo  Repository
	cache *reqcache.Cache[entities.MetricConfiguration]
	ttl   time.Duration
}

func NewStore(repo Repository, cache *reqcache.Cache[entities.MetricConfiguration], ttl time.Duration) *Store {
	return &Store{repo: repo, cache: cache, ttl: ttl}
}

func cacheKey(scope entities.SyncScope) string {
	return "metric-config:" + scope.Key()
}

// GetConfiguredMetrics returns the column mapping of a scope. An empty map
// means no metrics are selected.
func (s *Store) GetConfiguredMetrics(ctx context.Context, scope entities.SyncScope) (entities.MetricConfiguration, error) {
	return s.cache.GetOrCompute(ctx, cacheKey(scope), s.ttl, func(ctx context.Context) (entities.MetricConfiguration, error) {
		rows, err := s.repo.List(ctx, scope.Key())
		if err != nil {
			return nil, fmt.Errorf("load metric configuration for %s: %w", scope.Key(), err)
		}
		cfg := make(entities.MetricConfiguration, len(rows))
		for _, row := range rows {
			cfg[row.ColumnName] = entities.MetricSpec{
				MetricName:  row.MetricName,
				MetricType:  row.MetricType,
				Category:    row.Category,
				TargetValue: row.TargetValue,
			}
		}
		return cfg, nil
	})
}

// List returns the stored rows of a scope without going through the cache.
func (s *Store) List(ctx context.Context, scope entities.SyncScope) ([]entities.MetricConfig, error) {
	return s.repo.List(ctx, scope.Key())
}

// SetMetric maps column to spec within scope.
func (s *Store) SetMetric(ctx context.Context, scope entities.SyncScope, column string, spec entities.MetricSpec) error {
	column = strings.TrimSpace(column)
	if column == "" {
		return fmt.Errorf("column name is required")
	}
	if strings.TrimSpace(spec.MetricName) == "" {
		return fmt.Errorf("metric name is required for column %q", column)
	}
	if !spec.MetricType.Valid() {
		return fmt.Errorf("invalid metric type %q for column %q", spec.MetricType, column)
	}

	err := s.repo.Upsert(ctx, &entities.MetricConfig{
		ScopeKey:    scope.Key(),
		ColumnName:  column,
		MetricName:  strings.TrimSpace(spec.MetricName),
		MetricType:  spec.MetricType,
		Category:    spec.Category,
		TargetValue: spec.TargetValue,
	})
	if err != nil {
		return fmt.Errorf("save metric configuration: %w", err)
	}
	s.cache.Invalidate(cacheKey(scope))
	return nil
}

// RemoveMetric unmaps a column. It reports whether the column was mapped.
func (s *Store) RemoveMetric(ctx context.Context, scope entities.SyncScope, column string) (bool, error) {
	removed, err := s.repo.Delete(ctx, scope.Key(), column)
	if err != nil {
		return false, fmt.Errorf("remove metric configuration: %w", err)
	}
	s.cache.Invalidate(cacheKey(scope))
	return removed, nil
}

// ForgetScope drops cached configuration of a scope, e.g. on tenant switch.
func (s *Store) ForgetScope(scope entities.SyncScope) {
	s.cache.Invalidate(cacheKey(scope))
}
