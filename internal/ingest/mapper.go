// Package ingest maps raw spreadsheet rows to metric records.
package ingest

import (
	"errors"
	"sort"
	"strings"

	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/logging"
)

// dateHeaders are the accepted names of the date column, in priority order.
var dateHeaders = []string{"date", "day", "week"}

// Source describes where the rows came from. It becomes part of every
// metric's uniqueness key.
type Source struct {
	Scope     entities.SyncScope
	Kind      entities.SourceKind
	ID        string
	SheetName string
	TabName   string
	TabGID    string
}

// RowFailure is one row, or one cell of a row, that could not be mapped.
// Row is the 1-based spreadsheet row number (the header is row 1).
type RowFailure struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// Result is the output of Map.
type Result struct {
	Metrics []entities.Metric
	Failed  []RowFailure
	// Dropped lists source columns that are not configured.
	Dropped []string
}

// Map materializes configured columns of rows into metrics. Columns missing
// from cfg are dropped; an empty cfg yields no metrics and no failures.
func Map(rows []entities.RawRow, cfg entities.MetricConfiguration, src Source) Result {
	var result Result
	if len(rows) == 0 {
		return result
	}

	headers := collectHeaders(rows)
	dateCol := findDateColumn(headers)
	columns := matchColumns(headers, cfg)

	for _, h := range headers {
		if h == dateCol {
			continue
		}
		if _, ok := columns[h]; !ok {
			result.Dropped = append(result.Dropped, h)
		}
	}
	if len(result.Dropped) > 0 {
		logging.Debugf("Ingest: %s/%s dropping unconfigured columns %v", src.SheetName, src.TabName, result.Dropped)
	}
	if len(columns) == 0 {
		return result
	}

	configured := make([]string, 0, len(columns))
	for h := range columns {
		configured = append(configured, h)
	}
	sort.Strings(configured)

	for i, row := range rows {
		rowNum := i + 2

		if !hasAnyValue(row, configured) {
			continue
		}
		if dateCol == "" {
			result.Failed = append(result.Failed, RowFailure{Row: rowNum, Reason: "no date column"})
			continue
		}
		date, err := ParseDate(row[dateCol])
		if err != nil {
			reason := err.Error()
			if errors.Is(err, ErrEmptyCell) {
				reason = "missing date"
			}
			result.Failed = append(result.Failed, RowFailure{Row: rowNum, Column: dateCol, Value: row[dateCol], Reason: reason})
			continue
		}

		for _, h := range configured {
			spec := columns[h]
			value, err := ParseValue(row[h], spec.MetricType)
			if errors.Is(err, ErrEmptyCell) {
				continue
			}
			if err != nil {
				result.Failed = append(result.Failed, RowFailure{Row: rowNum, Column: h, Value: row[h], Reason: err.Error()})
				continue
			}

			m := entities.Metric{
				ScopeKey:    src.Scope.Key(),
				ActorID:     src.Scope.ActorID,
				ClientID:    src.Scope.ClientID,
				Date:        date,
				Category:    spec.Category,
				MetricName:  spec.MetricName,
				Value:       value,
				MetricType:  spec.MetricType,
				SheetName:   src.SheetName,
				TabName:     src.TabName,
				TabGID:      src.TabGID,
				TargetValue: spec.TargetValue,
			}
			m.SetSource(src.Kind, src.ID)
			result.Metrics = append(result.Metrics, m)
		}
	}

	return result
}

func collectHeaders(rows []entities.RawRow) []string {
	seen := make(map[string]struct{})
	var headers []string
	for _, row := range rows {
		for h := range row {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				headers = append(headers, h)
			}
		}
	}
	sort.Strings(headers)
	return headers
}

func findDateColumn(headers []string) string {
	for _, want := range dateHeaders {
		for _, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return h
			}
		}
	}
	return ""
}

// matchColumns pairs headers with their spec. An exact match wins over a
// case- and space-insensitive one.
func matchColumns(headers []string, cfg entities.MetricConfiguration) map[string]entities.MetricSpec {
	out := make(map[string]entities.MetricSpec)
	if len(cfg) == 0 {
		return out
	}
	loose := make(map[string]entities.MetricSpec, len(cfg))
	for name, spec := range cfg {
		loose[normalize(name)] = spec
	}
	for _, h := range headers {
		if spec, ok := cfg[h]; ok {
			out[h] = spec
		} else if spec, ok := loose[normalize(h)]; ok {
			out[h] = spec
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func hasAnyValue(row entities.RawRow, columns []string) bool {
	for _, c := range columns {
		if strings.TrimSpace(row[c]) != "" {
			return true
		}
	}
	return false
}
