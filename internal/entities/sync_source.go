package entities

import "time"

// SyncSource is a spreadsheet registered for scheduled syncing.
type SyncSource struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ActorID   string    `gorm:"size:255;not null" json:"actor_id"`
	ClientID  *string   `gorm:"size:255" json:"client_id,omitempty"`
	SourceRef string    `gorm:"type:text;not null" json:"source_ref"`
	SheetName string    `gorm:"size:255" json:"sheet_name,omitempty"`
	Enabled   bool      `gorm:"not null;index" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SyncSource) TableName() string {
	return "sync_sources"
}

func (s SyncSource) Scope() SyncScope {
	if s.ClientID == nil || *s.ClientID == "" {
		return PersonalScope(s.ActorID)
	}
	return ClientScope(s.ActorID, *s.ClientID)
}
