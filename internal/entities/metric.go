package entities

import (
	"fmt"
	"math"
	"time"
)

type MetricType string

const (
	MetricTypeNumber     MetricType = "number"
	MetricTypeCurrency   MetricType = "currency"
	MetricTypePercentage MetricType = "percentage"
)

func (t MetricType) Valid() bool {
	switch t {
	case MetricTypeNumber, MetricTypeCurrency, MetricTypePercentage:
		return true
	}
	return false
}

// Metric is one ingested value. Percentages hold the percentage number
// itself (12.5 means 12.5%).
//
// Exactly one of GoogleSheetID and DataSourceID is set, matching SourceKind.
// Uniqueness is enforced by two partial unique indexes created in the
// database package (see SourceKind.UniqueKeyColumns).
type Metric struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ScopeKey      string     `gorm:"size:255;not null;index" json:"scope_key"`
	ActorID       string     `gorm:"size:255" json:"actor_id"`
	ClientID      *string    `gorm:"size:255;index" json:"client_id,omitempty"`
	Date          string     `gorm:"size:10;not null" json:"date"` // YYYY-MM-DD
	Category      string     `gorm:"size:255;not null;default:''" json:"category"`
	MetricName    string     `gorm:"size:255;not null" json:"metric_name"`
	Value         float64    `json:"value"`
	MetricType    MetricType `gorm:"size:20;not null" json:"metric_type"`
	SourceKind    SourceKind `gorm:"size:20;not null" json:"source_kind"`
	GoogleSheetID *string    `gorm:"size:255" json:"google_sheet_id,omitempty"`
	DataSourceID  *string    `gorm:"size:255" json:"data_source_id,omitempty"`
	SheetName     string     `gorm:"size:255;not null;default:''" json:"sheet_name"`
	TabName       string     `gorm:"size:255;not null;default:''" json:"tab_name"`
	TabGID        string     `gorm:"column:tab_gid;size:64" json:"tab_gid,omitempty"`
	IsCalculated  bool       `json:"is_calculated"`
	TargetValue   *float64   `json:"target_value,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Metric) TableName() string {
	return "metrics"
}

// SourceID returns the identifier stored in the kind-specific source column.
func (m *Metric) SourceID() string {
	switch m.SourceKind {
	case SourceKindGoogleSheets:
		if m.GoogleSheetID != nil {
			return *m.GoogleSheetID
		}
	case SourceKindFileImport:
		if m.DataSourceID != nil {
			return *m.DataSourceID
		}
	}
	return ""
}

// SetSource assigns the source identifier to the column matching kind and
// clears the other one.
func (m *Metric) SetSource(kind SourceKind, id string) {
	m.SourceKind = kind
	m.GoogleSheetID, m.DataSourceID = nil, nil
	switch kind {
	case SourceKindGoogleSheets:
		m.GoogleSheetID = &id
	case SourceKindFileImport:
		m.DataSourceID = &id
	}
}

// Validate checks the dimensions required by the uniqueness key.
func (m *Metric) Validate() error {
	switch {
	case m.ScopeKey == "":
		return fmt.Errorf("missing scope")
	case !m.SourceKind.Valid():
		return fmt.Errorf("unknown source kind %q", m.SourceKind)
	case m.SourceID() == "":
		return fmt.Errorf("missing %s", m.SourceKind.SourceColumn())
	case m.Date == "":
		return fmt.Errorf("missing date")
	case m.MetricName == "":
		return fmt.Errorf("missing metric name")
	case !m.MetricType.Valid():
		return fmt.Errorf("invalid metric type %q", m.MetricType)
	case math.IsNaN(m.Value) || math.IsInf(m.Value, 0):
		return fmt.Errorf("invalid numeric value")
	}
	if _, err := time.Parse(time.DateOnly, m.Date); err != nil {
		return fmt.Errorf("invalid date %q", m.Date)
	}
	return nil
}
