package audit

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// PayloadArchive keeps upstream payloads that could not be parsed so they
// can be inspected after the run.
type PayloadArchive struct {
	Dir string
}

func NewPayloadArchive(dir string) *PayloadArchive {
	return &PayloadArchive{Dir: dir}
}

// Save writes payload to <dir>/<runID>.json and returns the file name.
// A random name is used when runID is empty.
func (a *PayloadArchive) Save(runID string, payload []byte) (string, error) {
	if err := os.MkdirAll(a.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create payload directory: %w", err)
	}

	name := unsafeName.ReplaceAllString(runID, "_")
	if name == "" {
		name = uuid.NewString()
	}
	filename := name + ".json"
	path := filepath.Join(a.Dir, filename)

	if err := os.WriteFile(path, payload, 0644); err != nil {
		return "", fmt.Errorf("failed to write payload file: %w", err)
	}

	log.Printf("Audit: saved upstream payload to %s", path)
	return filename, nil
}

// Prune removes archived payloads last modified more than olderThan ago.
// A missing directory is not an error.
func (a *PayloadArchive) Prune(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read payload directory: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(a.Dir, e.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}
