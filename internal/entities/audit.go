package entities

import "time"

type AuditEventType string

const (
	AuditEventSync   AuditEventType = "sync"
	AuditEventImport AuditEventType = "import"
	AuditEventConfig AuditEventType = "config"
	AuditEventDenied AuditEventType = "denied"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusPartial AuditStatus = "partial"
	AuditStatusFailed  AuditStatus = "failed"
)

// AuditEvent is an append-only record of a state-changing operation.
type AuditEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ActorID     string         `gorm:"size:255;index" json:"actor_id"`
	ScopeKey    string         `gorm:"size:255;index" json:"scope_key"`
	RunID       string         `gorm:"size:36;index" json:"run_id,omitempty"`
	EventType   AuditEventType `gorm:"index;size:50" json:"event_type"`
	Action      string         `gorm:"size:100" json:"action"`      // e.g. "sheet_sync", "metric_config_set"
	Description string         `gorm:"size:500" json:"description"` // Human-readable summary
	SourceID    string         `gorm:"size:255" json:"source_id,omitempty"`
	Metadata    string         `gorm:"type:text" json:"metadata,omitempty"` // JSON for extra data
	Status      AuditStatus    `gorm:"size:20" json:"status"`
	ErrorKind   string         `gorm:"size:50" json:"error_kind,omitempty"`
	ErrorMsg    string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
