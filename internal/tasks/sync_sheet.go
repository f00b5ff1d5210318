package tasks

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/syncer"
)

// SheetSyncer runs one sheet sync.
type SheetSyncer interface {
	Sync(ctx context.Context, actorID string, req syncer.SyncRequest) syncer.SyncResult
}

// SyncSheetTask syncs one spreadsheet tab in the background. It carries the
// same fields as a foreground sync request.
type SyncSheetTask struct {
	ActorID   string `json:"actor_id"`
	ClientID  string `json:"client_id,omitempty"`
	SourceRef string `json:"source_ref"`
	SheetName string `json:"sheet_name,omitempty"`
	Tab       string `json:"tab,omitempty"`
	Range     string `json:"range,omitempty"`
}

func (t SyncSheetTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "sync_sheet",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Request converts the task into a sync request.
func (t SyncSheetTask) Request() syncer.SyncRequest {
	return syncer.SyncRequest{
		Scope:     entities.NewSyncScope(t.ActorID, t.ClientID),
		SourceRef: t.SourceRef,
		SheetName: t.SheetName,
		Tab:       t.Tab,
		Range:     t.Range,
	}
}

// SyncSheetProcessor runs the sync. Only retryable failures are returned to
// the queue; the rest are final and only logged.
func SyncSheetProcessor(s SheetSyncer) backlite.QueueProcessor[SyncSheetTask] {
	return func(ctx context.Context, task SyncSheetTask) error {
		if s == nil {
			return errors.New("syncer not configured")
		}

		res := s.Sync(ctx, task.ActorID, task.Request())
		if res.Error == nil {
			log.Printf("[TASK] Synced %s (%s): %d inserted, %d updated, %d failed rows",
				res.SheetName, res.Outcome, res.Inserted, res.Updated, len(res.Failed))
			return nil
		}

		if res.Error.Retryable() {
			return res.Error
		}
		log.Printf("[TASK] Sync of %q for %s failed permanently: %v", task.SourceRef, task.ActorID, res.Error)
		return nil
	}
}

func NewSyncSheetQueue(s SheetSyncer) backlite.Queue {
	return backlite.NewQueue(SyncSheetProcessor(s))
}
