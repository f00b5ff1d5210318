package entities

import (
	"time"
)

type SyncStatus string

const (
	SyncStatusNeverSynced SyncStatus = "never_synced"
	SyncStatusSyncing     SyncStatus = "syncing"
	SyncStatusSuccess     SyncStatus = "success"
	SyncStatusError       SyncStatus = "error"

	// SyncStatusStale is never persisted; it is reported for a syncing
	// record that has not finished within the expected duration.
	SyncStatusStale SyncStatus = "stale"
)

// SyncStatusRecord tracks the sync lifecycle of one (scope, sheet) pair.
type SyncStatusRecord struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ScopeKey      string     `gorm:"size:255;not null;uniqueIndex:idx_sync_status_scope_sheet" json:"scope_key"`
	SheetName     string     `gorm:"size:255;not null;uniqueIndex:idx_sync_status_scope_sheet" json:"sheet_name"`
	ActorID       string     `gorm:"size:255;index" json:"actor_id"`
	Status        SyncStatus `gorm:"size:20;not null" json:"status"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message,omitempty"`
	TotalAttempts int        `gorm:"not null;default:0" json:"total_attempts"`
	SuccessCount  int        `gorm:"not null;default:0" json:"success_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (SyncStatusRecord) TableName() string {
	return "sync_status"
}

// EffectiveStatus reports SyncStatusStale for a syncing record whose last
// attempt started more than staleAfter ago. It never mutates the record.
func (r *SyncStatusRecord) EffectiveStatus(now time.Time, staleAfter time.Duration) SyncStatus {
	if r.Status == SyncStatusSyncing && staleAfter > 0 && r.LastSyncAt != nil &&
		now.Sub(*r.LastSyncAt) > staleAfter {
		return SyncStatusStale
	}
	return r.Status
}
