package entrypoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/sheetsync/internal/authz"
	"github.com/mrlokans/sheetsync/internal/config"
	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/syncer"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Database.Path = filepath.Join(dir, "sheetsync.db")
	cfg.Tokens.EncryptionKey = "test passphrase"
	cfg.Cache.ConfigTTL = time.Minute
	cfg.Sync.DiscoveryTimeout = time.Second
	cfg.Sync.FetchTimeout = time.Second
	cfg.Sync.OverallTimeout = 2 * time.Second
	cfg.Sync.StaleAfter = time.Minute
	cfg.Sheets.BaseURL = "http://127.0.0.1:1"
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)

	app, err := Build(cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Orchestrator)
	assert.IsType(t, authz.AllowAll{}, app.Authorizer)
	assert.Nil(t, app.Payloads)
	require.NoError(t, app.DB.Ping(context.Background()))

	// Without stored credentials the run fails before any upstream call
	res := app.Orchestrator.Sync(context.Background(), "alice", syncer.SyncRequest{
		Scope:     entities.PersonalScope("alice"),
		SourceRef: "https://docs.google.com/spreadsheets/d/abc123/edit",
	})
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, syncer.KindAuthExpired, res.Error.Kind)

	rec, err := app.Status.Get(context.Background(), entities.PersonalScope("alice"), "abc123")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, entities.SyncStatusError, rec.Status)
}

func TestBuild_PayloadArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.PayloadDir = t.TempDir()

	app, err := Build(cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Payloads)
}

func TestBuild_UnknownAuthMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Mode = "ldap"

	_, err := Build(cfg)
	assert.Error(t, err)
}

func TestNewAuthorizer(t *testing.T) {
	a, err := newAuthorizer(config.AuthModeNone, nil)
	require.NoError(t, err)
	assert.IsType(t, authz.AllowAll{}, a)

	a, err = newAuthorizer(config.AuthModeMembership, nil)
	require.NoError(t, err)
	assert.IsType(t, &authz.MembershipAuthorizer{}, a)
}

func TestNewSheetsClient_LeavesLimitsToOrchestrator(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.FetchTimeout = 8 * time.Second

	client := newSheetsClient(cfg)
	assert.Zero(t, client.Timeout())
}
