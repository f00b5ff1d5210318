package syncer

import (
	"time"

	"github.com/mrlokans/sheetsync/internal/entities"
)

// Outcome is the user-visible verdict of a run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	// OutcomePartial means the run succeeded but some rows were skipped.
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// SyncRequest selects what to sync.
type SyncRequest struct {
	Scope     entities.SyncScope
	SourceRef string
	// SheetName labels the spreadsheet; it keys the status record and the
	// stored metrics. Defaults to the spreadsheet id.
	SheetName string
	// Tab selects the worksheet. Empty means the tab hinted by the URL gid,
	// or the first tab.
	Tab string
	// Range is an A1 range inside the tab. Defaults to the configured range.
	Range string
}

// ImportRequest ingests rows uploaded as a file.
type ImportRequest struct {
	Scope     entities.SyncScope
	BatchID   string
	SheetName string
	TabName   string
	Rows      []entities.RawRow
}

// FailedRow is a row-level problem reported without failing the run.
type FailedRow struct {
	Row        int       `json:"row,omitempty"`
	Column     string    `json:"column,omitempty"`
	Value      string    `json:"value,omitempty"`
	Date       string    `json:"date,omitempty"`
	MetricName string    `json:"metric_name,omitempty"`
	Kind       ErrorKind `json:"kind"`
	Reason     string    `json:"reason"`
}

// SyncResult is returned for every run, successful or not.
type SyncResult struct {
	RunID      string              `json:"run_id"`
	Success    bool                `json:"success"`
	Outcome    Outcome             `json:"outcome"`
	SourceKind entities.SourceKind `json:"source_kind,omitempty"`
	SourceID   string              `json:"source_id,omitempty"`
	SheetName  string              `json:"sheet_name,omitempty"`
	TabName    string              `json:"tab_name,omitempty"`
	TabGID     string              `json:"tab_gid,omitempty"`
	Inserted   int                 `json:"inserted"`
	Updated    int                 `json:"updated"`
	Failed     []FailedRow         `json:"failed_rows,omitempty"`
	Dropped    []string            `json:"dropped_columns,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
	Error      *Error              `json:"error,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

func (r *SyncResult) fail(err *Error) {
	r.Success = false
	r.Outcome = OutcomeFailed
	r.Error = err
}

func (r *SyncResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// StatusReport is a stored status record with its effective status.
type StatusReport struct {
	entities.SyncStatusRecord
	EffectiveStatus entities.SyncStatus `json:"effective_status"`
}
