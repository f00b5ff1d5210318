package metricconfig

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/sheetsync/internal/database"
	"github.com/mrlokans/sheetsync/internal/database/metricconfigs"
	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/reqcache"
)

type countingRepo struct {
	Repository
	lists atomic.Int32
}

func (r *countingRepo) List(ctx context.Context, scopeKey string) ([]entities.MetricConfig, error) {
	r.lists.Add(1)
	return r.Repository.List(ctx, scopeKey)
}

func setupTestStore(t *testing.T) (*Store, *countingRepo) {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "config.db"), database.WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := &countingRepo{Repository: metricconfigs.NewRepository(db.DB)}
	return NewStore(repo, reqcache.New[entities.MetricConfiguration](), time.Minute), repo
}

func TestStore_EmptyConfigurationIsValid(t *testing.T) {
	store, _ := setupTestStore(t)

	cfg, err := store.GetConfiguredMetrics(context.Background(), entities.PersonalScope("u1"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Empty(t, cfg)
}

func TestStore_SetAndGet(t *testing.T) {
	store, repo := setupTestStore(t)
	ctx := context.Background()
	scope := entities.ClientScope("u1", "acme")

	require.NoError(t, store.SetMetric(ctx, scope, "Reply Rate", entities.MetricSpec{
		MetricName: "reply_rate",
		MetricType: entities.MetricTypePercentage,
	}))

	cfg, err := store.GetConfiguredMetrics(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, entities.MetricSpec{MetricName: "reply_rate", MetricType: entities.MetricTypePercentage}, cfg["Reply Rate"])

	// Second read is served from cache
	_, err = store.GetConfiguredMetrics(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int32(1), repo.lists.Load())

	// Another member of the client sees the same configuration
	cfg, err = store.GetConfiguredMetrics(ctx, entities.ClientScope("u2", "acme"))
	require.NoError(t, err)
	assert.Contains(t, cfg, "Reply Rate")
}

func TestStore_WritesInvalidate(t *testing.T) {
	store, repo := setupTestStore(t)
	ctx := context.Background()
	scope := entities.PersonalScope("u1")

	_, err := store.GetConfiguredMetrics(ctx, scope)
	require.NoError(t, err)

	require.NoError(t, store.SetMetric(ctx, scope, "Revenue", entities.MetricSpec{
		MetricName: "revenue",
		MetricType: entities.MetricTypeCurrency,
	}))
	cfg, err := store.GetConfiguredMetrics(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, cfg, 1)
	assert.Equal(t, int32(2), repo.lists.Load())

	removed, err := store.RemoveMetric(ctx, scope, "Revenue")
	require.NoError(t, err)
	assert.True(t, removed)

	cfg, err = store.GetConfiguredMetrics(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, cfg)

	removed, err = store.RemoveMetric(ctx, scope, "Revenue")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStore_ConcurrentReadsShareOneQuery(t *testing.T) {
	store, repo := setupTestStore(t)
	scope := entities.PersonalScope("u1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.GetConfiguredMetrics(context.Background(), scope)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, repo.lists.Load(), int32(10))
	_, err := store.GetConfiguredMetrics(context.Background(), scope)
	require.NoError(t, err)
	cached := repo.lists.Load()
	_, _ = store.GetConfiguredMetrics(context.Background(), scope)
	assert.Equal(t, cached, repo.lists.Load())
}

func TestStore_SetMetricValidation(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	scope := entities.PersonalScope("u1")

	assert.Error(t, store.SetMetric(ctx, scope, " ", entities.MetricSpec{MetricName: "x", MetricType: entities.MetricTypeNumber}))
	assert.Error(t, store.SetMetric(ctx, scope, "Col", entities.MetricSpec{MetricType: entities.MetricTypeNumber}))
	assert.Error(t, store.SetMetric(ctx, scope, "Col", entities.MetricSpec{MetricName: "x", MetricType: "ratio"}))
}
