// Package metrics persists ingested metric rows with idempotent upserts.
//
// The uniqueness key of a row depends on its source kind (see
// entities.SourceKind.UniqueKeyColumns). Each row is written in its own
// transaction, so one bad row never aborts the rest of the batch.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/sheetsync/internal/entities"
)

// updatableColumns are overwritten when a row with the same key already exists.
var updatableColumns = []string{
	"value", "actor_id", "client_id", "tab_gid", "is_calculated", "target_value", "updated_at",
}

// FailedRow is a row that could not be written and the reason why.
type FailedRow struct {
	Row    entities.Metric `json:"row"`
	Reason string          `json:"reason"`
	// Storage is true when the database rejected a valid row.
	Storage bool `json:"-"`
}

// UpsertResult summarizes one UpsertBatch call.
type UpsertResult struct {
	Inserted int         `json:"inserted"`
	Updated  int         `json:"updated"`
	Failed   []FailedRow `json:"failed,omitempty"`
}

// Written is the number of rows that reached the database.
func (r UpsertResult) Written() int {
	return r.Inserted + r.Updated
}

// Repository handles all metric database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new metrics repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertBatch inserts or updates every row against its source-kind key.
// Re-submitting the same batch creates no duplicates and leaves values equal
// to the latest submission. An error is returned only when ctx is done; row
// problems are reported in UpsertResult.Failed.
func (r *Repository) UpsertBatch(ctx context.Context, rows []entities.Metric) (UpsertResult, error) {
	var result UpsertResult

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		row.ID = 0
		if err := row.Validate(); err != nil {
			result.Failed = append(result.Failed, FailedRow{Row: row, Reason: err.Error()})
			continue
		}

		existed, err := r.upsertOne(ctx, &row)
		if err != nil {
			log.Printf("Metrics: failed to upsert %s/%s on %s: %v", row.ScopeKey, row.MetricName, row.Date, err)
			result.Failed = append(result.Failed, FailedRow{Row: row, Reason: err.Error(), Storage: true})
			continue
		}
		if existed {
			result.Updated++
		} else {
			result.Inserted++
		}
	}

	return result, nil
}

func (r *Repository) upsertOne(ctx context.Context, row *entities.Metric) (existed bool, err error) {
	kind := row.SourceKind
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := keyScope(tx.Model(&entities.Metric{}), row).Count(&count).Error; err != nil {
			return err
		}
		existed = count > 0

		return tx.Clauses(clause.OnConflict{
			Columns: kind.UniqueKeyColumns(),
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: kind.IndexPredicate()},
			}},
			DoUpdates: clause.AssignmentColumns(updatableColumns),
		}).Create(row).Error
	})
	return existed, err
}

// keyScope restricts q to the row sharing m's uniqueness key.
func keyScope(q *gorm.DB, m *entities.Metric) *gorm.DB {
	return q.Where("source_kind = ?", m.SourceKind).
		Where("scope_key = ?", m.ScopeKey).
		Where(m.SourceKind.SourceColumn()+" = ?", m.SourceID()).
		Where("sheet_name = ? AND tab_name = ? AND date = ?", m.SheetName, m.TabName, m.Date).
		Where("category = ? AND metric_name = ? AND metric_type = ?", m.Category, m.MetricName, m.MetricType)
}

// Find returns the stored row sharing m's uniqueness key.
func (r *Repository) Find(ctx context.Context, m entities.Metric) (*entities.Metric, error) {
	if !m.SourceKind.Valid() {
		return nil, fmt.Errorf("unknown source kind %q", m.SourceKind)
	}
	var stored entities.Metric
	err := keyScope(r.db.WithContext(ctx), &m).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// Filter narrows Query. Empty fields match everything except Scope, which
// is required.
type Filter struct {
	Scope      entities.SyncScope
	SourceKind entities.SourceKind
	SourceID   string
	SheetName  string
	TabName    string
	MetricName string
	From       string // YYYY-MM-DD, inclusive
	To         string // YYYY-MM-DD, inclusive
	Limit      int
}

// Query returns the metrics of a scope ordered by date, then metric name.
func (r *Repository) Query(ctx context.Context, f Filter) ([]entities.Metric, error) {
	q := r.db.WithContext(ctx).Where("scope_key = ?", f.Scope.Key())
	if f.SourceKind != "" {
		q = q.Where("source_kind = ?", f.SourceKind)
		if f.SourceID != "" {
			q = q.Where(f.SourceKind.SourceColumn()+" = ?", f.SourceID)
		}
	}
	if f.SheetName != "" {
		q = q.Where("sheet_name = ?", f.SheetName)
	}
	if f.TabName != "" {
		q = q.Where("tab_name = ?", f.TabName)
	}
	if f.MetricName != "" {
		q = q.Where("metric_name = ?", f.MetricName)
	}
	if f.From != "" {
		q = q.Where("date >= ?", f.From)
	}
	if f.To != "" {
		q = q.Where("date <= ?", f.To)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []entities.Metric
	err := q.Order("date ASC, metric_name ASC, id ASC").Find(&rows).Error
	return rows, err
}

// Count returns the number of stored metrics in a scope.
func (r *Repository) Count(ctx context.Context, scope entities.SyncScope) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Metric{}).Where("scope_key = ?", scope.Key()).Count(&n).Error
	return n, err
}
