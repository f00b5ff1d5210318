// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation to help code agents understand
// extension points and how to implement new functionality.
//
// # Interface Categories
//
// ## Sync Pipeline Interfaces
//
//   - TabSource: Tab discovery and range fetch (internal/syncer/orchestrator.go)
//   - CredentialProvider: Per-actor upstream credentials (internal/syncer/orchestrator.go)
//   - StatusStore: Per (scope, sheet) sync state machine (internal/syncer/orchestrator.go)
//   - MetricStore: Idempotent metric upsert (internal/syncer/orchestrator.go)
//   - ConfigSource: Cached metric configuration (internal/syncer/orchestrator.go)
//   - AuditLogger, PayloadArchiver: Run history (internal/syncer/orchestrator.go)
//
// ## Authorization Interfaces
//
//   - Authorizer: Permission gate in front of every operation (internal/authz/authz.go)
//   - RoleLookup: Client membership roles (internal/authz/authz.go)
//
// ## HTTP Interfaces
//
//   - SyncService, TaskQueue: Sync endpoints (internal/http/sync.go)
//   - MetricConfigService, MetricReader, ConfigAuditor: Configuration and queries (internal/http/metric_configs.go)
//   - SourceStore: Registered sources (internal/http/sources.go)
//   - AuditReader: Audit log (internal/http/audit.go)
//   - Pinger: Health checks (internal/http/health.go)
//
// ## Background Work Interfaces
//
//   - SheetSyncer, AuditEventCleaner, PayloadPruner: Task processors (internal/tasks/)
//   - SourceLister, Enqueuer, StaleReaper: Cron jobs (internal/scheduler/sync.go)
//
// # Adding a New Upstream
//
// To sync from another tabular provider:
//
//  1. Implement TabSource in its own package:
//
//     type AirtableClient struct {
//     httpClient *http.Client
//     }
//
//     func (c *AirtableClient) DiscoverTabs(ctx context.Context, ref entities.SourceReference, creds sheets.Credentials) ([]entities.SheetTab, error)
//     func (c *AirtableClient) FetchRange(ctx context.Context, ref entities.SourceReference, tab, rng string, creds sheets.Credentials) ([]entities.RawRow, error)
//
//     var _ syncer.TabSource = (*AirtableClient)(nil)
//
//  2. Return *sheets.APIError for HTTP failures so the orchestrator can classify them.
//
//  3. Pass it as Deps.Tabs in entrypoint/app.go.
//
// # Adding a New Database Domain
//
// To add a new data domain:
//
//  1. Create sub-package: internal/database/<domain>/
//
//  2. Define repository:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Register the model in database.Migrate.
//
//  4. Add compile-time check in checks.go.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// This pattern is used throughout the codebase. See checks.go for examples.
package interfaces
