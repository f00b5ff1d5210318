// Package tokenstore keeps actors' upstream credentials encrypted at rest.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/sheetsync/internal/crypto"
	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/sheets"
)

const (
	// EnvEncryptionKey is the environment variable for the encryption key
	EnvEncryptionKey = "TOKEN_ENCRYPTION_KEY"

	// DefaultKeyFileName is the default name for the key file
	DefaultKeyFileName = ".sheetsync-token-key"
)

// ErrNoCredentials means the actor never connected a Google account.
var ErrNoCredentials = errors.New("no stored google credentials")

// TokenStore provides encrypted storage for OAuth tokens
type TokenStore struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
	now       func() time.Time
}

// Config holds configuration for the token store
type Config struct {
	// EncryptionKey is a base64 32-byte key or a passphrase.
	// If empty, it is loaded from the environment or the key file.
	EncryptionKey string

	// KeyFilePath defaults to ~/.sheetsync-token-key
	KeyFilePath string
}

// New creates a TokenStore on an already migrated database.
func New(db *gorm.DB, cfg Config) (*TokenStore, error) {
	secret, err := resolveEncryptionKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve encryption key: %w", err)
	}

	encryptor, err := crypto.NewEncryptorFromSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	return &TokenStore{db: db, encryptor: encryptor, now: time.Now}, nil
}

// resolveEncryptionKey determines the encryption key from various sources
func resolveEncryptionKey(cfg Config) (string, error) {
	if cfg.EncryptionKey != "" {
		return cfg.EncryptionKey, nil
	}

	if envKey := os.Getenv(EnvEncryptionKey); envKey != "" {
		return envKey, nil
	}

	keyFilePath := cfg.KeyFilePath
	if keyFilePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		keyFilePath = filepath.Join(homeDir, DefaultKeyFileName)
	}

	if data, err := os.ReadFile(keyFilePath); err == nil {
		return string(data), nil
	}

	newKey, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}
	if err := os.WriteFile(keyFilePath, []byte(newKey), 0600); err != nil {
		return "", fmt.Errorf("failed to save encryption key to %s: %w", keyFilePath, err)
	}

	log.Printf("Token store: generated new encryption key at %s", keyFilePath)
	return newKey, nil
}

// SaveToken encrypts and upserts a token for (provider, actor).
func (s *TokenStore) SaveToken(token *entities.DecryptedToken) error {
	encAccessToken, err := s.encryptor.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefreshToken, err := s.encryptor.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	dbToken := &entities.OAuthToken{
		Provider:     token.Provider,
		ActorID:      token.ActorID,
		AccessToken:  encAccessToken,
		RefreshToken: encRefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.ExpiresAt,
		Scope:        token.Scope,
	}

	result := s.db.Where("provider = ? AND actor_id = ?", token.Provider, token.ActorID).
		Assign(map[string]any{
			"access_token":  encAccessToken,
			"refresh_token": encRefreshToken,
			"token_type":    token.TokenType,
			"expires_at":    token.ExpiresAt,
			"scope":         token.Scope,
			"updated_at":    s.now(),
		}).
		FirstOrCreate(dbToken)
	if result.Error != nil {
		return fmt.Errorf("failed to save token: %w", result.Error)
	}
	return nil
}

// GetToken returns the decrypted token, or nil when none is stored.
func (s *TokenStore) GetToken(provider entities.OAuthProvider, actorID string) (*entities.DecryptedToken, error) {
	var dbToken entities.OAuthToken
	err := s.db.Where("provider = ? AND actor_id = ?", provider, actorID).First(&dbToken).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	accessToken, err := s.encryptor.Decrypt(dbToken.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refreshToken, err := s.encryptor.Decrypt(dbToken.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	return &entities.DecryptedToken{
		Provider:     dbToken.Provider,
		ActorID:      dbToken.ActorID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    dbToken.TokenType,
		ExpiresAt:    dbToken.ExpiresAt,
		Scope:        dbToken.Scope,
	}, nil
}

// DeleteToken removes a token from storage
func (s *TokenStore) DeleteToken(provider entities.OAuthProvider, actorID string) error {
	err := s.db.Where("provider = ? AND actor_id = ?", provider, actorID).
		Delete(&entities.OAuthToken{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Credentials returns the actor's Google credentials for a Sheets call.
// An expired token yields sheets.ErrAuthExpired; refreshing it belongs to the
// sign-in flow, not to syncing.
func (s *TokenStore) Credentials(ctx context.Context, actorID string) (sheets.Credentials, error) {
	token, err := s.GetToken(entities.OAuthProviderGoogle, actorID)
	if err != nil {
		return sheets.Credentials{}, err
	}
	if token == nil || token.AccessToken == "" {
		return sheets.Credentials{}, fmt.Errorf("%w for actor %s: %w", ErrNoCredentials, actorID, sheets.ErrAuthExpired)
	}
	if token.IsExpired(s.now()) {
		return sheets.Credentials{}, fmt.Errorf("token for actor %s expired at %s: %w",
			actorID, token.ExpiresAt.Format(time.RFC3339), sheets.ErrAuthExpired)
	}

	if err := s.db.WithContext(ctx).Model(&entities.OAuthToken{}).
		Where("provider = ? AND actor_id = ?", entities.OAuthProviderGoogle, actorID).
		Update("last_used_at", s.now()).Error; err != nil {
		log.Printf("Token store: failed to update last_used_at for %s: %v", actorID, err)
	}

	return sheets.Credentials{AccessToken: token.AccessToken, TokenType: token.TokenType}, nil
}
