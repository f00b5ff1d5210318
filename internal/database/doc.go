// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, partial indexes
//	├── syncstatus/      # Per (scope, sheet) sync lifecycle records
//	├── metrics/         # Idempotent metric upserts and queries
//	├── metricconfigs/   # Column to metric mappings
//	├── memberships/     # Client tenant roles
//	├── sources/         # Spreadsheets registered for scheduled syncs
//	└── audit/           # Audit event log
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./sheetsync.db")
//	statusRepo := syncstatus.NewRepository(db.DB)
//	metricsRepo := metrics.NewRepository(db.DB)
//
// # Metric uniqueness
//
// Metrics carry either a google_sheet_id or a data_source_id depending on
// their source kind. Each kind has its own partial unique index created in
// Migrate, so the two key spaces never collide and upserts target exactly
// one of them.
package database
