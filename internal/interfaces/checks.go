package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/sheetsync/internal/audit"
	"github.com/mrlokans/sheetsync/internal/authz"
	"github.com/mrlokans/sheetsync/internal/database"
	"github.com/mrlokans/sheetsync/internal/database/memberships"
	"github.com/mrlokans/sheetsync/internal/database/metricconfigs"
	"github.com/mrlokans/sheetsync/internal/database/metrics"
	"github.com/mrlokans/sheetsync/internal/database/sources"
	"github.com/mrlokans/sheetsync/internal/database/syncstatus"
	"github.com/mrlokans/sheetsync/internal/http"
	"github.com/mrlokans/sheetsync/internal/metricconfig"
	"github.com/mrlokans/sheetsync/internal/scheduler"
	"github.com/mrlokans/sheetsync/internal/sheets"
	"github.com/mrlokans/sheetsync/internal/syncer"
	"github.com/mrlokans/sheetsync/internal/tasks"
	"github.com/mrlokans/sheetsync/internal/tokenstore"
)

// =============================================================================
// Data Access Layer
// =============================================================================

var _ syncer.StatusStore = (*syncstatus.Repository)(nil)
var _ scheduler.StaleReaper = (*syncstatus.Repository)(nil)

var _ syncer.MetricStore = (*metrics.Repository)(nil)
var _ http.MetricReader = (*metrics.Repository)(nil)

var _ metricconfig.Repository = (*metricconfigs.Repository)(nil)

var _ http.SourceStore = (*sources.Repository)(nil)
var _ scheduler.SourceLister = (*sources.Repository)(nil)

var _ authz.RoleLookup = (*memberships.Repository)(nil)

var _ http.Pinger = (*database.Database)(nil)

// =============================================================================
// Sync Pipeline
// =============================================================================

var _ syncer.TabSource = (*sheets.Client)(nil)
var _ syncer.CredentialProvider = (*tokenstore.TokenStore)(nil)
var _ syncer.ConfigSource = (*metricconfig.Store)(nil)
var _ http.MetricConfigService = (*metricconfig.Store)(nil)

var _ http.SyncService = (*syncer.Orchestrator)(nil)
var _ tasks.SheetSyncer = (*syncer.Orchestrator)(nil)

// =============================================================================
// Authorization
// =============================================================================

var _ authz.Authorizer = (*authz.MembershipAuthorizer)(nil)
var _ authz.Authorizer = authz.AllowAll{}

// =============================================================================
// Audit
// =============================================================================

var _ syncer.AuditLogger = (*audit.Service)(nil)
var _ http.AuditReader = (*audit.Service)(nil)
var _ http.ConfigAuditor = (*audit.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)

var _ syncer.PayloadArchiver = (*audit.PayloadArchive)(nil)
var _ tasks.PayloadPruner = (*audit.PayloadArchive)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ http.TaskQueue = (*tasks.Client)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
var _ http.Pinger = (*tasks.Client)(nil)
