// Package syncstatus stores the sync lifecycle of each (scope, sheet) pair.
//
// Every transition is a single SQL statement, so concurrent invocations for
// the same pair interleave without corrupting counters:
//
//	repo := syncstatus.NewRepository(db)
//	_ = repo.StartSync(ctx, scope, "Budget")
//	_ = repo.CompleteSuccess(ctx, scope, "Budget")
package syncstatus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/sheetsync/internal/entities"
)

// ErrNotStarted is returned when completing a pair that was never started.
var ErrNotStarted = errors.New("sync was never started for this sheet")

// Repository handles all sync status database operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new sync status repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Get returns the record for (scope, sheet). A pair with no stored record is
// reported as never synced; nothing is written.
func (r *Repository) Get(ctx context.Context, scope entities.SyncScope, sheetName string) (*entities.SyncStatusRecord, error) {
	var record entities.SyncStatusRecord
	err := r.db.WithContext(ctx).
		Where("scope_key = ? AND sheet_name = ?", scope.Key(), sheetName).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &entities.SyncStatusRecord{
			ScopeKey:  scope.Key(),
			SheetName: sheetName,
			ActorID:   scope.ActorID,
			Status:    entities.SyncStatusNeverSynced,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns every stored record of a scope ordered by sheet name.
func (r *Repository) List(ctx context.Context, scope entities.SyncScope) ([]entities.SyncStatusRecord, error) {
	var records []entities.SyncStatusRecord
	err := r.db.WithContext(ctx).
		Where("scope_key = ?", scope.Key()).
		Order("sheet_name ASC").
		Find(&records).Error
	return records, err
}

// StartSync moves the pair to syncing from any state, creating the record on
// the first attempt.
func (r *Repository) StartSync(ctx context.Context, scope entities.SyncScope, sheetName string) error {
	now := r.now()
	record := entities.SyncStatusRecord{
		ScopeKey:      scope.Key(),
		SheetName:     sheetName,
		ActorID:       scope.ActorID,
		Status:        entities.SyncStatusSyncing,
		LastSyncAt:    &now,
		TotalAttempts: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope_key"}, {Name: "sheet_name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":         entities.SyncStatusSyncing,
			"actor_id":       scope.ActorID,
			"last_sync_at":   now,
			"total_attempts": gorm.Expr("total_attempts + 1"),
			"updated_at":     now,
		}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("start sync for %s/%s: %w", scope.Key(), sheetName, err)
	}
	return nil
}

// CompleteSuccess moves the pair to success, stamps lastSuccessAt and clears
// the previous error.
func (r *Repository) CompleteSuccess(ctx context.Context, scope entities.SyncScope, sheetName string) error {
	now := r.now()
	return r.complete(ctx, scope, sheetName, map[string]any{
		"status":          entities.SyncStatusSuccess,
		"last_success_at": now,
		"success_count":   gorm.Expr("success_count + 1"),
		"error_message":   "",
		"updated_at":      now,
	})
}

// CompleteError moves the pair to error. lastSuccessAt is left untouched.
func (r *Repository) CompleteError(ctx context.Context, scope entities.SyncScope, sheetName, message string) error {
	return r.complete(ctx, scope, sheetName, map[string]any{
		"status":        entities.SyncStatusError,
		"error_message": message,
		"updated_at":    r.now(),
	})
}

func (r *Repository) complete(ctx context.Context, scope entities.SyncScope, sheetName string, updates map[string]any) error {
	result := r.db.WithContext(ctx).Model(&entities.SyncStatusRecord{}).
		Where("scope_key = ? AND sheet_name = ?", scope.Key(), sheetName).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("complete sync for %s/%s: %w", scope.Key(), sheetName, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("complete sync for %s/%s: %w", scope.Key(), sheetName, ErrNotStarted)
	}
	return nil
}

// ReapStale moves syncing records whose last attempt started before cutoff to
// error. It returns the number of records reaped.
func (r *Repository) ReapStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entities.SyncStatusRecord{}).
		Where("status = ? AND last_sync_at < ?", entities.SyncStatusSyncing, cutoff).
		Updates(map[string]any{
			"status":        entities.SyncStatusError,
			"error_message": message,
			"updated_at":    r.now(),
		})
	return result.RowsAffected, result.Error
}
