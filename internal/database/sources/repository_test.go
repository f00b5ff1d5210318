package sources

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/sheetsync/internal/entities"
)

func setupTestRepo(t *testing.T) *Repository {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "sources.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.SyncSource{}))
	return NewRepository(db)
}

func TestRepository_AddAndList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	empty := ""
	personal := &entities.SyncSource{ActorID: "u1", SourceRef: " sheet-a ", Enabled: true, ClientID: &empty}
	require.NoError(t, repo.Add(ctx, personal))
	assert.Equal(t, "sheet-a", personal.SourceRef)
	assert.Nil(t, personal.ClientID)

	acme := "acme"
	require.NoError(t, repo.Add(ctx, &entities.SyncSource{ActorID: "u1", ClientID: &acme, SourceRef: "sheet-b"}))
	require.NoError(t, repo.Add(ctx, &entities.SyncSource{ActorID: "u2", SourceRef: "sheet-c", Enabled: true}))

	mine, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.True(t, mine[0].Scope().IsPersonal())
	assert.Equal(t, entities.ClientScope("u1", "acme"), mine[1].Scope())

	enabled, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, "sheet-a", enabled[0].SourceRef)
	assert.Equal(t, "sheet-c", enabled[1].SourceRef)
}

func TestRepository_AddValidates(t *testing.T) {
	repo := setupTestRepo(t)
	assert.Error(t, repo.Add(context.Background(), &entities.SyncSource{SourceRef: "sheet"}))
	assert.Error(t, repo.Add(context.Background(), &entities.SyncSource{ActorID: "u1", SourceRef: "  "}))
}

func TestRepository_SetEnabledAndRemove(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	src := &entities.SyncSource{ActorID: "u1", SourceRef: "sheet-a", Enabled: true}
	require.NoError(t, repo.Add(ctx, src))

	got, err := repo.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ActorID)
	_, err = repo.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetEnabled(ctx, src.ID, false))
	enabled, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	assert.ErrorIs(t, repo.SetEnabled(ctx, 999, true), ErrNotFound)

	require.NoError(t, repo.Remove(ctx, src.ID))
	assert.ErrorIs(t, repo.Remove(ctx, src.ID), ErrNotFound)
}
