package config

import (
	"time"

	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone       AuthMode = "none"       // Every actor may act on every scope (single-user)
	AuthModeMembership AuthMode = "membership" // Client access checked against client_memberships
)

type (
	Config struct {
		HTTP
		Global
		Database
		Sync
		Sheets
		Cache
		Tasks
		Scheduler
		Tokens
		Auth
		Logging
		Audit
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Sync struct {
		// Sub-timeouts are kept below OverallTimeout so a slow upstream still
		// leaves time to record an Error status.
		DiscoveryTimeout time.Duration
		FetchTimeout     time.Duration
		OverallTimeout   time.Duration
		StaleAfter       time.Duration
		DefaultRange     string
	}
	Sheets struct {
		BaseURL string
	}
	Cache struct {
		ConfigTTL time.Duration
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Scheduler struct {
		Enabled      bool
		SyncSchedule string // Cron format: "0 * * * *" = hourly
		ReapSchedule string
	}
	Tokens struct {
		EncryptionKey string
		KeyFilePath   string
	}
	Auth struct {
		Mode AuthMode
		// DefaultActor is used for API requests without an X-Actor-ID header.
		DefaultActor string
	}
	Audit struct {
		// PayloadDir keeps unparseable upstream payloads; empty disables it.
		PayloadDir      string
		RetentionDays   int
		CleanupSchedule string
	}
	Logging struct {
		File       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Verbose    bool
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Sync timeouts
	v.SetDefault("sync_discovery_timeout", "5s")
	v.SetDefault("sync_fetch_timeout", "8s")
	v.SetDefault("sync_overall_timeout", "25s")
	v.SetDefault("sync_stale_after", "10m")
	v.SetDefault("sync_default_range", "A1:ZZ")

	v.SetDefault("sheets_base_url", DefaultSheetsBaseURL)
	v.SetDefault("cache_config_ttl", "5m")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "5m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Scheduler defaults
	v.SetDefault("scheduler_enabled", false)
	v.SetDefault("sync_schedule", "0 * * * *")         // Hourly at :00
	v.SetDefault("sync_reap_schedule", "*/10 * * * *") // Every 10 minutes

	v.SetDefault("token_encryption_key", "")
	v.SetDefault("token_key_file", "")

	v.SetDefault("auth_mode", "none")
	v.SetDefault("auth_default_actor", "")

	v.SetDefault("audit_payload_dir", "")
	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("audit_cleanup_schedule", "30 3 * * *") // Daily at 03:30

	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 50)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("log_max_age_days", 28)
	v.SetDefault("log_verbose", false)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Sync: Sync{
			DiscoveryTimeout: v.GetDuration("SYNC_DISCOVERY_TIMEOUT"),
			FetchTimeout:     v.GetDuration("SYNC_FETCH_TIMEOUT"),
			OverallTimeout:   v.GetDuration("SYNC_OVERALL_TIMEOUT"),
			StaleAfter:       v.GetDuration("SYNC_STALE_AFTER"),
			DefaultRange:     v.GetString("SYNC_DEFAULT_RANGE"),
		},
		Sheets: Sheets{
			BaseURL: v.GetString("SHEETS_BASE_URL"),
		},
		Cache: Cache{
			ConfigTTL: v.GetDuration("CACHE_CONFIG_TTL"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Scheduler: Scheduler{
			Enabled:      v.GetBool("SCHEDULER_ENABLED"),
			SyncSchedule: v.GetString("SYNC_SCHEDULE"),
			ReapSchedule: v.GetString("SYNC_REAP_SCHEDULE"),
		},
		Tokens: Tokens{
			EncryptionKey: v.GetString("TOKEN_ENCRYPTION_KEY"),
			KeyFilePath:   v.GetString("TOKEN_KEY_FILE"),
		},
		Auth: Auth{
			Mode:         AuthMode(v.GetString("AUTH_MODE")),
			DefaultActor: v.GetString("AUTH_DEFAULT_ACTOR"),
		},
		Audit: Audit{
			PayloadDir:      v.GetString("AUDIT_PAYLOAD_DIR"),
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Logging: Logging{
			File:       v.GetString("LOG_FILE"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
			Verbose:    v.GetBool("LOG_VERBOSE"),
		},
	}
}
