package entities

import (
	"time"
)

// OAuthProvider identifies the service a stored credential belongs to.
type OAuthProvider string

const (
	OAuthProviderGoogle OAuthProvider = "google"
)

// OAuthToken stores an actor's encrypted credentials for an upstream
// data source. AccessToken and RefreshToken hold base64 AES-256-GCM ciphertext.
type OAuthToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Provider OAuthProvider `gorm:"type:varchar(50);not null;uniqueIndex:idx_token_provider_actor" json:"provider"`
	ActorID  string        `gorm:"type:varchar(255);not null;uniqueIndex:idx_token_provider_actor" json:"actor_id"`

	AccessToken  string     `gorm:"type:text;not null" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	TokenType    string     `gorm:"type:varchar(50);default:Bearer" json:"token_type"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scope        string     `gorm:"type:text" json:"scope,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

func (OAuthToken) TableName() string {
	return "oauth_tokens"
}

// DecryptedToken holds plaintext credentials in memory only.
type DecryptedToken struct {
	Provider     OAuthProvider
	ActorID      string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
	Scope        string
}

// IsExpired reports whether the access token expired at now.
// Tokens without an expiry never expire.
func (t *DecryptedToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
