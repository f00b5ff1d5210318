package cli

import (
	"fmt"
	"path/filepath"

	"github.com/mrlokans/sheetsync/internal/config"
	"github.com/mrlokans/sheetsync/internal/entrypoint"
)

// openApp builds the application against the given database file, with the
// rest of the configuration read from the environment.
func openApp(dbPath string) (*entrypoint.App, error) {
	absDBPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for database: %w", err)
	}

	cfg := config.NewConfig()
	cfg.Database.Path = absDBPath

	return entrypoint.Build(cfg)
}
