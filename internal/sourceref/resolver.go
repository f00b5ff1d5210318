// Package sourceref turns raw spreadsheet URLs and identifiers into canonical
// source references. It is pure and performs no I/O.
package sourceref

import (
	"regexp"
	"strings"

	"github.com/mrlokans/sheetsync/internal/entities"
)

// ImportPrefix marks a file-import batch reference ("import:<batch-id>").
const ImportPrefix = "import:"

type pattern struct {
	name string
	re   *regexp.Regexp
}

// Tried in order; the first match wins.
var patterns = []pattern{
	{"spreadsheets-path", regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)},
	{"d-path", regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)},
	{"id-param", regexp.MustCompile(`[?&#]id=([a-zA-Z0-9_-]+)`)},
	{"key-param", regexp.MustCompile(`[?&#]key=([a-zA-Z0-9_-]+)`)},
	{"bare-id", regexp.MustCompile(`^([a-zA-Z0-9_-]{25,})$`)},
}

var gidPattern = regexp.MustCompile(`[?&#]gid=([0-9]+)`)

// ExtractID resolves raw into a SourceReference. When no pattern matches the
// trimmed raw string is returned as the ID with Confident=false; the caller is
// expected to log a warning and proceed.
func ExtractID(raw string) entities.SourceReference {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, ImportPrefix) {
		batch := strings.TrimSpace(strings.TrimPrefix(trimmed, ImportPrefix))
		return entities.SourceReference{
			Kind:      entities.SourceKindFileImport,
			ID:        batch,
			Raw:       raw,
			Confident: batch != "",
		}
	}

	ref := entities.SourceReference{
		Kind: entities.SourceKindGoogleSheets,
		ID:   trimmed,
		Raw:  raw,
	}
	if m := gidPattern.FindStringSubmatch(trimmed); m != nil {
		ref.GID = m[1]
	}

	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(trimmed); m != nil {
			ref.ID = m[1]
			ref.Confident = true
			return ref
		}
	}
	return ref
}

// IsEmpty reports whether raw carries no usable reference at all.
func IsEmpty(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return strings.TrimSpace(strings.TrimPrefix(trimmed, ImportPrefix)) == ""
}
