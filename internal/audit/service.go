package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/sheetsync/internal/database/audit"
	"github.com/mrlokans/sheetsync/internal/entities"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
	wg   sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// SyncEvent summarizes one finished sync or import run.
type SyncEvent struct {
	Scope     entities.SyncScope
	RunID     string
	Kind      entities.SourceKind
	SourceID  string
	SheetName string
	TabName   string
	Inserted  int
	Updated   int
	Failed    int
	Status    entities.AuditStatus
	ErrorKind string
	Err       error
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Wait blocks until every pending LogAsync write has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogSync records the outcome of a sync or file import run.
func (s *Service) LogSync(ev SyncEvent) {
	eventType, action := entities.AuditEventSync, "sheet_sync"
	if ev.Kind == entities.SourceKindFileImport {
		eventType, action = entities.AuditEventImport, "file_import"
	}

	event := &entities.AuditEvent{
		ActorID:   ev.Scope.ActorID,
		ScopeKey:  ev.Scope.Key(),
		RunID:     ev.RunID,
		EventType: eventType,
		Action:    action,
		Description: fmt.Sprintf("%s/%s: %d inserted, %d updated, %d failed",
			ev.SheetName, ev.TabName, ev.Inserted, ev.Updated, ev.Failed),
		SourceID:  ev.SourceID,
		Status:    ev.Status,
		ErrorKind: ev.ErrorKind,
	}

	metadata := map[string]any{
		"inserted": ev.Inserted,
		"updated":  ev.Updated,
		"failed":   ev.Failed,
	}
	if mdBytes, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(mdBytes)
	}

	if ev.Err != nil {
		event.ErrorMsg = truncate(ev.Err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogDenied records a rejected permission check.
func (s *Service) LogDenied(scope entities.SyncScope, action entities.Action, sourceID string) {
	s.LogAsync(&entities.AuditEvent{
		ActorID:     scope.ActorID,
		ScopeKey:    scope.Key(),
		EventType:   entities.AuditEventDenied,
		Action:      string(action),
		Description: "Permission denied for " + scope.String(),
		SourceID:    sourceID,
		Status:      entities.AuditStatusFailed,
		ErrorKind:   "permission_denied",
	})
}

// LogConfig records a metric configuration change.
func (s *Service) LogConfig(scope entities.SyncScope, action, description string) {
	s.LogAsync(&entities.AuditEvent{
		ActorID:     scope.ActorID,
		ScopeKey:    scope.Key(),
		EventType:   entities.AuditEventConfig,
		Action:      action,
		Description: truncate(description, 500),
		Status:      entities.AuditStatusSuccess,
	})
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(filter audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(filter, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
