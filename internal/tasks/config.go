package tasks

import (
	"time"

	"github.com/mrlokans/sheetsync/internal/config"
)

// Config holds the queue settings. Per-queue retries and timeouts live on
// each task's QueueConfig.
type Config struct {
	// Workers is the number of concurrent task workers.
	Workers int

	// ReleaseAfter returns a claimed task to the queue if its worker vanished.
	ReleaseAfter time.Duration

	// CleanupInterval is how often finished tasks past retention are removed.
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    5 * time.Minute,
		CleanupInterval: time.Hour,
	}
}

// FromConfig fills unset values with defaults.
func FromConfig(cfg config.Tasks) Config {
	out := DefaultConfig()
	if cfg.Workers > 0 {
		out.Workers = cfg.Workers
	}
	if cfg.ReleaseAfter > 0 {
		out.ReleaseAfter = cfg.ReleaseAfter
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = cfg.CleanupInterval
	}
	return out
}
