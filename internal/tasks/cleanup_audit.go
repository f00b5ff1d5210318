package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

const defaultAuditRetentionDays = 90

// AuditEventCleaner deletes audit events older than a retention window.
type AuditEventCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// PayloadPruner deletes archived upstream payloads.
type PayloadPruner interface {
	Prune(olderThan time.Duration) (int, error)
}

// CleanupAuditTask applies the audit retention window to the event log and
// to the payload archive.
type CleanupAuditTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t CleanupAuditTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Retention returns the task's window, falling back to the default.
func (t CleanupAuditTask) Retention() time.Duration {
	days := t.RetentionDays
	if days <= 0 {
		days = defaultAuditRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// CleanupAuditProcessor prunes events and, when payloads is non-nil, archived payloads.
func CleanupAuditProcessor(events AuditEventCleaner, payloads PayloadPruner) backlite.QueueProcessor[CleanupAuditTask] {
	return func(ctx context.Context, task CleanupAuditTask) error {
		if events == nil {
			return errors.New("audit event cleaner not configured")
		}
		retention := task.Retention()

		deleted, err := events.DeleteOldEvents(retention)
		if err != nil {
			return fmt.Errorf("cleanup audit events: %w", err)
		}

		pruned := 0
		if payloads != nil {
			if pruned, err = payloads.Prune(retention); err != nil {
				return fmt.Errorf("prune payload archive: %w", err)
			}
		}

		log.Printf("[TASK] Audit cleanup removed %d events and %d payloads older than %s", deleted, pruned, retention)
		return nil
	}
}

func NewCleanupAuditQueue(events AuditEventCleaner, payloads PayloadPruner) backlite.Queue {
	return backlite.NewQueue(CleanupAuditProcessor(events, payloads))
}
