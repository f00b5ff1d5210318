package entities

import "time"

// MetricConfig maps one source column to the metric it materializes into.
type MetricConfig struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ScopeKey    string     `gorm:"size:255;not null;uniqueIndex:idx_metric_config_scope_column" json:"scope_key"`
	ColumnName  string     `gorm:"size:255;not null;uniqueIndex:idx_metric_config_scope_column" json:"column_name"`
	MetricName  string     `gorm:"size:255;not null" json:"metric_name"`
	MetricType  MetricType `gorm:"size:20;not null" json:"metric_type"`
	Category    string     `gorm:"size:255;not null;default:''" json:"category"`
	TargetValue *float64   `json:"target_value,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (MetricConfig) TableName() string {
	return "metric_configs"
}

// MetricSpec is the configured target of a column.
type MetricSpec struct {
	MetricName  string     `json:"metric_name"`
	MetricType  MetricType `json:"metric_type"`
	Category    string     `json:"category,omitempty"`
	TargetValue *float64   `json:"target_value,omitempty"`
}

// MetricConfiguration maps column names to metric specs. An empty
// configuration means no metrics are selected.
type MetricConfiguration map[string]MetricSpec
