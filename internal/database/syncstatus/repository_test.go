package syncstatus

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/sheetsync/internal/entities"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setupTestDB(t *testing.T) (*Repository, *testClock) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "status.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.SyncStatusRecord{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	clock := &testClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	repo := NewRepository(db)
	repo.now = clock.Now
	return repo, clock
}

func TestRepository_GetNeverSynced(t *testing.T) {
	repo, _ := setupTestDB(t)
	ctx := context.Background()
	scope := entities.PersonalScope("u1")

	record, err := repo.Get(ctx, scope, "Budget")
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusNeverSynced, record.Status)
	assert.Zero(t, record.ID)

	// Reads never create records
	records, err := repo.List(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRepository_Transitions(t *testing.T) {
	repo, clock := setupTestDB(t)
	ctx := context.Background()
	scope := entities.ClientScope("u1", "acme")

	require.NoError(t, repo.StartSync(ctx, scope, "Budget"))
	record, err := repo.Get(ctx, scope, "Budget")
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusSyncing, record.Status)
	assert.Equal(t, 1, record.TotalAttempts)
	require.NotNil(t, record.LastSyncAt)
	assert.Nil(t, record.LastSuccessAt)

	require.NoError(t, repo.CompleteSuccess(ctx, scope, "Budget"))
	record, err = repo.Get(ctx, scope, "Budget")
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusSuccess, record.Status)
	assert.Equal(t, 1, record.SuccessCount)
	require.NotNil(t, record.LastSuccessAt)
	firstSuccess := *record.LastSuccessAt

	clock.Advance(time.Hour)
	require.NoError(t, repo.StartSync(ctx, scope, "Budget"))
	require.NoError(t, repo.CompleteError(ctx, scope, "Budget", "upstream timed out"))

	record, err = repo.Get(ctx, scope, "Budget")
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusError, record.Status)
	assert.Equal(t, "upstream timed out", record.ErrorMessage)
	assert.Equal(t, 2, record.TotalAttempts)
	assert.Equal(t, 1, record.SuccessCount)
	require.NotNil(t, record.LastSuccessAt)
	assert.True(t, firstSuccess.Equal(*record.LastSuccessAt), "lastSuccessAt must not regress")
	assert.True(t, record.LastSyncAt.After(firstSuccess))

	// A later success clears the error
	require.NoError(t, repo.StartSync(ctx, scope, "Budget"))
	require.NoError(t, repo.CompleteSuccess(ctx, scope, "Budget"))
	record, err = repo.Get(ctx, scope, "Budget")
	require.NoError(t, err)
	assert.Empty(t, record.ErrorMessage)
	assert.Equal(t, 2, record.SuccessCount)
	assert.Equal(t, 3, record.TotalAttempts)
}

func TestRepository_CompleteWithoutStart(t *testing.T) {
	repo, _ := setupTestDB(t)
	err := repo.CompleteSuccess(context.Background(), entities.PersonalScope("u1"), "Budget")
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestRepository_ScopesAreIsolated(t *testing.T) {
	repo, _ := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.StartSync(ctx, entities.PersonalScope("u1"), "Budget"))
	require.NoError(t, repo.StartSync(ctx, entities.ClientScope("u1", "acme"), "Budget"))
	// Members of the same client share records
	require.NoError(t, repo.StartSync(ctx, entities.ClientScope("u2", "acme"), "Budget"))

	personal, err := repo.List(ctx, entities.PersonalScope("u1"))
	require.NoError(t, err)
	assert.Len(t, personal, 1)

	client, err := repo.List(ctx, entities.ClientScope("u3", "acme"))
	require.NoError(t, err)
	require.Len(t, client, 1)
	assert.Equal(t, 2, client[0].TotalAttempts)
	assert.Equal(t, "u2", client[0].ActorID)
}

func TestRepository_ReapStale(t *testing.T) {
	repo, clock := setupTestDB(t)
	ctx := context.Background()
	scope := entities.PersonalScope("u1")

	require.NoError(t, repo.StartSync(ctx, scope, "Old"))
	clock.Advance(30 * time.Minute)
	require.NoError(t, repo.StartSync(ctx, scope, "Fresh"))

	record, err := repo.Get(ctx, scope, "Old")
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusStale, record.EffectiveStatus(clock.Now(), 10*time.Minute))

	reaped, err := repo.ReapStale(ctx, clock.Now().Add(-10*time.Minute), "sync was interrupted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), reaped)

	record, err = repo.Get(ctx, scope, "Old")
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusError, record.Status)
	assert.Equal(t, "sync was interrupted", record.ErrorMessage)

	record, err = repo.Get(ctx, scope, "Fresh")
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusSyncing, record.Status)
}
