package entrypoint

import (
	"fmt"
	"log"

	"github.com/mrlokans/sheetsync/internal/audit"
	"github.com/mrlokans/sheetsync/internal/authz"
	"github.com/mrlokans/sheetsync/internal/config"
	"github.com/mrlokans/sheetsync/internal/database"
	dbaudit "github.com/mrlokans/sheetsync/internal/database/audit"
	"github.com/mrlokans/sheetsync/internal/database/memberships"
	"github.com/mrlokans/sheetsync/internal/database/metricconfigs"
	"github.com/mrlokans/sheetsync/internal/database/metrics"
	"github.com/mrlokans/sheetsync/internal/database/sources"
	"github.com/mrlokans/sheetsync/internal/database/syncstatus"
	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/metricconfig"
	"github.com/mrlokans/sheetsync/internal/reqcache"
	"github.com/mrlokans/sheetsync/internal/sheets"
	"github.com/mrlokans/sheetsync/internal/syncer"
	"github.com/mrlokans/sheetsync/internal/tokenstore"
)

// App holds the stores and services shared by the server and the CLI.
type App struct {
	DB           *database.Database
	Orchestrator *syncer.Orchestrator
	Authorizer   authz.Authorizer
	Memberships  *memberships.Repository
	Sources      *sources.Repository
	Status       *syncstatus.Repository
	Metrics      *metrics.Repository
	Configs      *metricconfig.Store
	Tokens       *tokenstore.TokenStore
	Audit        *audit.Service
	// Payloads is nil when no payload directory is configured.
	Payloads *audit.PayloadArchive
}

// Build opens the database and wires every collaborator from cfg.
func Build(cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &App{
		DB:          db,
		Memberships: memberships.NewRepository(db.DB),
		Sources:     sources.NewRepository(db.DB),
		Status:      syncstatus.NewRepository(db.DB),
		Metrics:     metrics.NewRepository(db.DB),
		Configs: metricconfig.NewStore(
			metricconfigs.NewRepository(db.DB),
			reqcache.New[entities.MetricConfiguration](),
			cfg.Cache.ConfigTTL,
		),
		Audit: audit.NewService(dbaudit.NewRepository(db.DB)),
	}

	app.Authorizer, err = newAuthorizer(cfg.Auth.Mode, app.Memberships)
	if err != nil {
		db.Close()
		return nil, err
	}

	app.Tokens, err = tokenstore.New(db.DB, tokenstore.Config{
		EncryptionKey: cfg.Tokens.EncryptionKey,
		KeyFilePath:   cfg.Tokens.KeyFilePath,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token store: %w", err)
	}

	deps := syncer.Deps{
		Authorizer:  app.Authorizer,
		Tabs:        newSheetsClient(cfg),
		Credentials: app.Tokens,
		Status:      app.Status,
		Metrics:     app.Metrics,
		Configs:     app.Configs,
		Audit:       app.Audit,
	}
	if cfg.Audit.PayloadDir != "" {
		app.Payloads = audit.NewPayloadArchive(cfg.Audit.PayloadDir)
		deps.Payloads = app.Payloads
		log.Printf("Unparseable upstream payloads will be kept in %s", cfg.Audit.PayloadDir)
	}

	app.Orchestrator = syncer.New(deps, syncer.Options{
		DiscoveryTimeout: cfg.Sync.DiscoveryTimeout,
		FetchTimeout:     cfg.Sync.FetchTimeout,
		OverallTimeout:   cfg.Sync.OverallTimeout,
		StaleAfter:       cfg.Sync.StaleAfter,
		DefaultRange:     cfg.Sync.DefaultRange,
	})
	return app, nil
}

// newSheetsClient leaves call limits to the orchestrator's discovery and
// fetch timeouts.
func newSheetsClient(cfg *config.Config) *sheets.Client {
	return sheets.NewClient(sheets.WithBaseURL(cfg.Sheets.BaseURL), sheets.WithTimeout(0))
}

func newAuthorizer(mode config.AuthMode, roles authz.RoleLookup) (authz.Authorizer, error) {
	switch mode {
	case config.AuthModeNone, "":
		log.Printf("Authorization mode: none (every actor may act on every scope)")
		return authz.AllowAll{}, nil
	case config.AuthModeMembership:
		log.Printf("Authorization mode: membership")
		return authz.NewMembershipAuthorizer(roles), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

// Close flushes pending audit writes and closes the database.
func (a *App) Close() error {
	a.Audit.Wait()
	return a.DB.Close()
}
