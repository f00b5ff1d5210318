package entities

import "gorm.io/gorm/clause"

// SourceKind is the variant tag of a SourceReference.
type SourceKind string

const (
	SourceKindGoogleSheets SourceKind = "google_sheets"
	SourceKindFileImport   SourceKind = "file_import"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceKindGoogleSheets, SourceKindFileImport:
		return true
	}
	return false
}

// SourceColumn is the metrics column that carries the source identifier for this kind.
func (k SourceKind) SourceColumn() string {
	switch k {
	case SourceKindGoogleSheets:
		return "google_sheet_id"
	case SourceKindFileImport:
		return "data_source_id"
	}
	return ""
}

// UniqueKeyColumns returns the uniqueness tuple of a metric of this kind.
// The two kinds index different source columns under different partial
// indexes, so their key spaces never overlap.
func (k SourceKind) UniqueKeyColumns() []clause.Column {
	src := k.SourceColumn()
	if src == "" {
		return nil
	}
	names := []string{"scope_key", src, "sheet_name", "tab_name", "date", "category", "metric_name", "metric_type"}
	cols := make([]clause.Column, len(names))
	for i, n := range names {
		cols[i] = clause.Column{Name: n}
	}
	return cols
}

// IndexPredicate is the WHERE clause of the partial unique index for this kind.
func (k SourceKind) IndexPredicate() string {
	return "source_kind = '" + string(k) + "'"
}

// SourceReference is the canonical identifier of an external data source.
// For GoogleSheets ID is the spreadsheet id; for FileImport it is the import batch id.
type SourceReference struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id"`
	// GID is the tab id hinted by the raw URL (#gid=...), if any.
	GID string `json:"gid,omitempty"`
	// Raw is the untouched input.
	Raw string `json:"raw"`
	// Confident is false when no known pattern matched and ID is the raw input.
	Confident bool `json:"confident"`
}

// SheetTab is one discovered worksheet.
type SheetTab struct {
	Name  string `json:"name"`
	GID   string `json:"gid"`
	URL   string `json:"url"`
	Index int    `json:"index"`
}

// RawRow is one data row keyed by header name.
type RawRow map[string]string
