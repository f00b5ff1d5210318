package tokenstore

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
	"github.com/mrlokans/sheetsync/internal/sheets"
)

func setupTestStore(t *testing.T) *TokenStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tokens.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.OAuthToken{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	store, err := New(db, Config{EncryptionKey: "test passphrase"})
	require.NoError(t, err)
	return store
}

func TestTokenStore_SaveAndGet(t *testing.T) {
	store := setupTestStore(t)

	err := store.SaveToken(&entities.DecryptedToken{
		Provider:     entities.OAuthProviderGoogle,
		ActorID:      "actor-1",
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		TokenType:    "Bearer",
	})
	require.NoError(t, err)

	token, err := store.GetToken(entities.OAuthProviderGoogle, "actor-1")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "ya29.access", token.AccessToken)
	assert.Equal(t, "1//refresh", token.RefreshToken)

	// Stored ciphertext must not contain the plaintext
	var raw entities.OAuthToken
	require.NoError(t, store.db.First(&raw).Error)
	assert.NotContains(t, raw.AccessToken, "ya29.access")
}

func TestTokenStore_SaveUpserts(t *testing.T) {
	store := setupTestStore(t)

	for _, access := range []string{"first", "second"} {
		require.NoError(t, store.SaveToken(&entities.DecryptedToken{
			Provider:    entities.OAuthProviderGoogle,
			ActorID:     "actor-1",
			AccessToken: access,
		}))
	}

	var count int64
	store.db.Model(&entities.OAuthToken{}).Count(&count)
	assert.Equal(t, int64(1), count)

	token, err := store.GetToken(entities.OAuthProviderGoogle, "actor-1")
	require.NoError(t, err)
	assert.Equal(t, "second", token.AccessToken)
}

func TestTokenStore_Credentials(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	t.Run("missing token", func(t *testing.T) {
		_, err := store.Credentials(context.Background(), "nobody")
		assert.ErrorIs(t, err, ErrNoCredentials)
		assert.ErrorIs(t, err, sheets.ErrAuthExpired)
	})

	t.Run("expired token", func(t *testing.T) {
		past := now.Add(-time.Minute)
		require.NoError(t, store.SaveToken(&entities.DecryptedToken{
			Provider:    entities.OAuthProviderGoogle,
			ActorID:     "expired",
			AccessToken: "old",
			ExpiresAt:   &past,
		}))
		_, err := store.Credentials(context.Background(), "expired")
		assert.ErrorIs(t, err, sheets.ErrAuthExpired)
	})

	t.Run("valid token", func(t *testing.T) {
		future := now.Add(time.Hour)
		require.NoError(t, store.SaveToken(&entities.DecryptedToken{
			Provider:    entities.OAuthProviderGoogle,
			ActorID:     "valid",
			AccessToken: "fresh",
			TokenType:   "Bearer",
			ExpiresAt:   &future,
		}))
		creds, err := store.Credentials(context.Background(), "valid")
		require.NoError(t, err)
		assert.Equal(t, "fresh", creds.AccessToken)

		var raw entities.OAuthToken
		require.NoError(t, store.db.Where("actor_id = ?", "valid").First(&raw).Error)
		require.NotNil(t, raw.LastUsedAt)
	})
}

func TestTokenStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.SaveToken(&entities.DecryptedToken{
		Provider: entities.OAuthProviderGoogle, ActorID: "a", AccessToken: "x",
	}))
	require.NoError(t, store.DeleteToken(entities.OAuthProviderGoogle, "a"))

	token, err := store.GetToken(entities.OAuthProviderGoogle, "a")
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestResolveEncryptionKey_GeneratesKeyFile(t *testing.T) {
	t.Setenv(EnvEncryptionKey, "")
	keyFile := filepath.Join(t.TempDir(), "key")

	key1, err := resolveEncryptionKey(Config{KeyFilePath: keyFile})
	require.NoError(t, err)
	key2, err := resolveEncryptionKey(Config{KeyFilePath: keyFile})
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}
