// Package syncer coordinates a spreadsheet sync: permission gate, reference
// resolution, status bookkeeping, upstream fetch, row mapping and idempotent
// upserts.
//
// Runs are independent. Same-scope runs may interleave; they converge because
// every write is an upsert on the metric's uniqueness key. Status bookkeeping
// is best effort and never changes the result returned to the caller.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/sheetsync/internal/audit"
	"github.com/mrlokans/sheetsync/internal/authz"
	"github.com/mrlokans/sheetsync/internal/database/metrics"
	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/ingest"
	"github.com/mrlokans/sheetsync/internal/sheets"
	"github.com/mrlokans/sheetsync/internal/sourceref"
)

// statusWriteTimeout bounds status writes made after the run's own deadline.
const statusWriteTimeout = 5 * time.Second

// TabSource is the data-fetch collaborator.
type TabSource interface {
	DiscoverTabs(ctx context.Context, ref entities.SourceReference, creds sheets.Credentials) ([]entities.SheetTab, error)
	FetchRange(ctx context.Context, ref entities.SourceReference, tab, rng string, creds sheets.Credentials) ([]entities.RawRow, error)
}

// CredentialProvider returns an actor's upstream credentials.
type CredentialProvider interface {
	Credentials(ctx context.Context, actorID string) (sheets.Credentials, error)
}

// StatusStore is the per (scope, sheet) state machine.
type StatusStore interface {
	Get(ctx context.Context, scope entities.SyncScope, sheetName string) (*entities.SyncStatusRecord, error)
	List(ctx context.Context, scope entities.SyncScope) ([]entities.SyncStatusRecord, error)
	StartSync(ctx context.Context, scope entities.SyncScope, sheetName string) error
	CompleteSuccess(ctx context.Context, scope entities.SyncScope, sheetName string) error
	CompleteError(ctx context.Context, scope entities.SyncScope, sheetName, message string) error
}

// MetricStore persists mapped rows.
type MetricStore interface {
	UpsertBatch(ctx context.Context, rows []entities.Metric) (metrics.UpsertResult, error)
}

// ConfigSource is the metric-configuration collaborator.
type ConfigSource interface {
	GetConfiguredMetrics(ctx context.Context, scope entities.SyncScope) (entities.MetricConfiguration, error)
}

// AuditLogger records finished runs and denied attempts.
type AuditLogger interface {
	LogSync(ev audit.SyncEvent)
	LogDenied(scope entities.SyncScope, action entities.Action, sourceID string)
}

// PayloadArchiver keeps unreadable upstream payloads.
type PayloadArchiver interface {
	Save(runID string, payload []byte) (string, error)
}

// Deps are the collaborators of an Orchestrator. Audit and Payloads are optional.
type Deps struct {
	Authorizer  authz.Authorizer
	Tabs        TabSource
	Credentials CredentialProvider
	Status      StatusStore
	Metrics     MetricStore
	Configs     ConfigSource
	Audit       AuditLogger
	Payloads    PayloadArchiver
}

// Options bound the run. Sub-timeouts should be well below OverallTimeout so
// a slow upstream still leaves time to record an Error status.
type Options struct {
	DiscoveryTimeout time.Duration
	FetchTimeout     time.Duration
	OverallTimeout   time.Duration
	StaleAfter       time.Duration
	DefaultRange     string
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		DiscoveryTimeout: 5 * time.Second,
		FetchTimeout:     8 * time.Second,
		OverallTimeout:   25 * time.Second,
		StaleAfter:       10 * time.Minute,
		DefaultRange:     "A1:ZZ",
	}
}

type Orchestrator struct {
	deps Deps
	opts Options

	now      func() time.Time
	newRunID func() string
}

func New(deps Deps, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = def.DiscoveryTimeout
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = def.FetchTimeout
	}
	if opts.OverallTimeout <= 0 {
		opts.OverallTimeout = def.OverallTimeout
	}
	if opts.DefaultRange == "" {
		opts.DefaultRange = def.DefaultRange
	}
	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// Sync pulls one tab of a Google spreadsheet into the metrics store.
//
// The caller's cancellation does not stop the run; only the orchestrator's
// own timeouts do. Every outcome, including failures, is reported in the
// returned SyncResult.
func (o *Orchestrator) Sync(ctx context.Context, actorID string, req SyncRequest) SyncResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.OverallTimeout)
	defer cancel()

	res := o.begin()
	scope := req.Scope

	if err := o.authorize(ctx, actorID, scope, entities.ActionSync, req.SourceRef); err != nil {
		return o.finish(&res, scope, err)
	}

	if sourceref.IsEmpty(req.SourceRef) {
		err := newError(KindMalformedReference, "source reference is empty")
		err.Raw = req.SourceRef
		return o.finish(&res, scope, err)
	}
	ref := sourceref.ExtractID(req.SourceRef)
	if ref.Kind != entities.SourceKindGoogleSheets {
		err := newError(KindMalformedReference, "%q is a file import reference; upload its rows instead", req.SourceRef)
		err.Raw = req.SourceRef
		return o.finish(&res, scope, err)
	}
	if !ref.Confident {
		log.Printf("Sync: %s: no known pattern matched %q, using it as a spreadsheet id", res.RunID, req.SourceRef)
	}

	res.SourceKind = ref.Kind
	res.SourceID = ref.ID
	res.SheetName = strings.TrimSpace(req.SheetName)
	if res.SheetName == "" {
		res.SheetName = ref.ID
	}

	log.Printf("Sync: %s: starting %s sheet %q for %s", res.RunID, ref.ID, res.SheetName, scope)
	o.startStatus(ctx, &res, scope)

	if err := o.fetchAndStore(ctx, &res, actorID, scope, ref, req); err != nil {
		o.errorStatus(ctx, &res, scope, err)
		return o.finish(&res, scope, err)
	}

	o.successStatus(ctx, &res, scope)
	return o.finish(&res, scope, nil)
}

func (o *Orchestrator) fetchAndStore(ctx context.Context, res *SyncResult, actorID string, scope entities.SyncScope, ref entities.SourceReference, req SyncRequest) *Error {
	creds, err := o.deps.Credentials.Credentials(ctx, actorID)
	if err != nil {
		return classify(err)
	}

	tab, err := o.selectTab(ctx, ref, req.Tab, creds)
	if err != nil {
		return o.upstreamError(res, err)
	}
	res.TabName, res.TabGID = tab.Name, tab.GID

	rng := strings.TrimSpace(req.Range)
	if rng == "" {
		rng = o.opts.DefaultRange
	}
	fetchCtx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
	rows, err := o.deps.Tabs.FetchRange(fetchCtx, ref, tab.Name, rng, creds)
	cancel()
	if err != nil {
		return o.upstreamError(res, err)
	}

	return o.ingest(ctx, res, scope, rows, ingest.Source{
		Scope:     scope,
		Kind:      ref.Kind,
		ID:        ref.ID,
		SheetName: res.SheetName,
		TabName:   tab.Name,
		TabGID:    tab.GID,
	})
}

// selectTab discovers the tabs and picks the requested one.
func (o *Orchestrator) selectTab(ctx context.Context, ref entities.SourceReference, want string, creds sheets.Credentials) (entities.SheetTab, error) {
	discoverCtx, cancel := context.WithTimeout(ctx, o.opts.DiscoveryTimeout)
	defer cancel()

	tabs, err := o.deps.Tabs.DiscoverTabs(discoverCtx, ref, creds)
	if err != nil {
		return entities.SheetTab{}, err
	}
	if len(tabs) == 0 {
		return entities.SheetTab{}, newError(KindUpstreamMalformed, "spreadsheet has no tabs")
	}

	want = strings.TrimSpace(want)
	if want != "" {
		for _, t := range tabs {
			if t.Name == want {
				return t, nil
			}
		}
		for _, t := range tabs {
			if strings.EqualFold(t.Name, want) {
				return t, nil
			}
		}
		return entities.SheetTab{}, newError(KindUpstreamRejected, "tab %q not found in spreadsheet", want)
	}
	if ref.GID != "" {
		for _, t := range tabs {
			if t.GID == ref.GID {
				return t, nil
			}
		}
	}
	return tabs[0], nil
}

// ImportFile ingests uploaded rows as a file-import source. It goes through
// the same permission gate, status bookkeeping and upsert path as Sync.
func (o *Orchestrator) ImportFile(ctx context.Context, actorID string, req ImportRequest) SyncResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.OverallTimeout)
	defer cancel()

	res := o.begin()
	scope := req.Scope
	batch := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(req.BatchID), sourceref.ImportPrefix))

	if err := o.authorize(ctx, actorID, scope, entities.ActionSync, req.BatchID); err != nil {
		return o.finish(&res, scope, err)
	}
	if batch == "" {
		err := newError(KindMalformedReference, "import batch id is empty")
		err.Raw = req.BatchID
		return o.finish(&res, scope, err)
	}

	res.SourceKind = entities.SourceKindFileImport
	res.SourceID = batch
	res.SheetName = strings.TrimSpace(req.SheetName)
	if res.SheetName == "" {
		res.SheetName = sourceref.ImportPrefix + batch
	}
	res.TabName = strings.TrimSpace(req.TabName)

	log.Printf("Sync: %s: importing %d rows of batch %s for %s", res.RunID, len(req.Rows), batch, scope)
	o.startStatus(ctx, &res, scope)

	err := o.ingest(ctx, &res, scope, req.Rows, ingest.Source{
		Scope:     scope,
		Kind:      entities.SourceKindFileImport,
		ID:        batch,
		SheetName: res.SheetName,
		TabName:   res.TabName,
	})
	if err != nil {
		o.errorStatus(ctx, &res, scope, err)
		return o.finish(&res, scope, err)
	}

	o.successStatus(ctx, &res, scope)
	return o.finish(&res, scope, nil)
}

// ingest maps rows with the scope's configuration and upserts the result.
func (o *Orchestrator) ingest(ctx context.Context, res *SyncResult, scope entities.SyncScope, rows []entities.RawRow, src ingest.Source) *Error {
	cfg, err := o.deps.Configs.GetConfiguredMetrics(ctx, scope)
	if err != nil {
		return &Error{Kind: KindPersistence, Message: "could not load metric configuration", Err: err}
	}

	mapped := ingest.Map(rows, cfg, src)
	res.Dropped = mapped.Dropped
	for _, f := range mapped.Failed {
		res.Failed = append(res.Failed, FailedRow{
			Row:    f.Row,
			Column: f.Column,
			Value:  f.Value,
			Kind:   KindRowMapping,
			Reason: f.Reason,
		})
	}
	if len(mapped.Metrics) == 0 {
		return nil
	}

	upserted, err := o.deps.Metrics.UpsertBatch(ctx, mapped.Metrics)
	res.Inserted, res.Updated = upserted.Inserted, upserted.Updated

	storageFailures := 0
	for _, f := range upserted.Failed {
		kind := KindRowMapping
		if f.Storage {
			kind = KindPersistence
			storageFailures++
		}
		res.Failed = append(res.Failed, FailedRow{
			Date:       f.Row.Date,
			MetricName: f.Row.MetricName,
			Kind:       kind,
			Reason:     f.Reason,
		})
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindPersistence, Message: fmt.Sprintf("timed out after writing %d of %d metrics", upserted.Written(), len(mapped.Metrics)), Err: err}
		}
		return &Error{Kind: KindPersistence, Message: "could not store metrics", Err: err}
	}
	if upserted.Written() == 0 && storageFailures > 0 && storageFailures == len(upserted.Failed) {
		return &Error{Kind: KindPersistence, Message: fmt.Sprintf("could not store any of %d metrics", len(mapped.Metrics))}
	}
	return nil
}

// Status reports the stored sync state of a scope, or of one sheet in it.
func (o *Orchestrator) Status(ctx context.Context, actorID string, scope entities.SyncScope, sheetName string) ([]StatusReport, error) {
	if err := o.authorize(ctx, actorID, scope, entities.ActionView, sheetName); err != nil {
		return nil, err
	}

	var records []entities.SyncStatusRecord
	if sheetName != "" {
		record, err := o.deps.Status.Get(ctx, scope, sheetName)
		if err != nil {
			return nil, &Error{Kind: KindPersistence, Message: "could not read sync status", Err: err}
		}
		records = []entities.SyncStatusRecord{*record}
	} else {
		var err error
		records, err = o.deps.Status.List(ctx, scope)
		if err != nil {
			return nil, &Error{Kind: KindPersistence, Message: "could not read sync status", Err: err}
		}
	}

	now := o.now()
	reports := make([]StatusReport, len(records))
	for i, r := range records {
		reports[i] = StatusReport{SyncStatusRecord: r, EffectiveStatus: r.EffectiveStatus(now, o.opts.StaleAfter)}
	}
	return reports, nil
}

// DiscoverTabs lists the tabs of a spreadsheet on behalf of an actor.
func (o *Orchestrator) DiscoverTabs(ctx context.Context, actorID string, scope entities.SyncScope, sourceRef string) ([]entities.SheetTab, error) {
	if err := o.authorize(ctx, actorID, scope, entities.ActionView, sourceRef); err != nil {
		return nil, err
	}
	if sourceref.IsEmpty(sourceRef) {
		return nil, &Error{Kind: KindMalformedReference, Message: "source reference is empty", Raw: sourceRef}
	}
	ref := sourceref.ExtractID(sourceRef)

	creds, err := o.deps.Credentials.Credentials(ctx, actorID)
	if err != nil {
		return nil, classify(err)
	}

	discoverCtx, cancel := context.WithTimeout(ctx, o.opts.DiscoveryTimeout)
	defer cancel()
	tabs, err := o.deps.Tabs.DiscoverTabs(discoverCtx, ref, creds)
	if err != nil {
		return nil, classify(err)
	}
	return tabs, nil
}

// authorize returns nil when actorID may perform action in scope.
func (o *Orchestrator) authorize(ctx context.Context, actorID string, scope entities.SyncScope, action entities.Action, sourceID string) *Error {
	ok, err := o.deps.Authorizer.CanPerform(ctx, actorID, scope, action)
	if err != nil {
		return &Error{Kind: KindInternal, Message: "permission check failed", Err: err}
	}
	if !ok {
		if o.deps.Audit != nil {
			o.deps.Audit.LogDenied(scope, action, sourceID)
		}
		return newError(KindPermissionDenied, "%s may not %s in %s", actorID, action, scope.Key())
	}
	return nil
}

func (o *Orchestrator) upstreamError(res *SyncResult, err error) *Error {
	se := classify(err)
	if se.Kind == KindUpstreamMalformed && o.deps.Payloads != nil && se.Raw != "" {
		if name, perr := o.deps.Payloads.Save(res.RunID, []byte(se.Raw)); perr != nil {
			res.warn("could not archive upstream payload: " + perr.Error())
		} else {
			res.warn("upstream payload archived as " + name)
		}
	}
	return se
}

func (o *Orchestrator) begin() SyncResult {
	return SyncResult{RunID: o.newRunID(), StartedAt: o.now()}
}

func (o *Orchestrator) finish(res *SyncResult, scope entities.SyncScope, err *Error) SyncResult {
	res.FinishedAt = o.now()
	switch {
	case err != nil:
		res.fail(err)
		log.Printf("Sync: %s: failed: %v", res.RunID, err)
	case len(res.Failed) > 0:
		res.Success = true
		res.Outcome = OutcomePartial
		log.Printf("Sync: %s: done with %d skipped rows (%d inserted, %d updated)",
			res.RunID, len(res.Failed), res.Inserted, res.Updated)
	default:
		res.Success = true
		res.Outcome = OutcomeSuccess
		log.Printf("Sync: %s: done (%d inserted, %d updated)", res.RunID, res.Inserted, res.Updated)
	}

	// Denied runs are audited by authorize; nothing else was touched.
	if o.deps.Audit != nil && res.SourceKind != "" {
		o.deps.Audit.LogSync(auditEvent(scope, res))
	}
	return *res
}

func auditEvent(scope entities.SyncScope, res *SyncResult) audit.SyncEvent {
	ev := audit.SyncEvent{
		Scope:     scope,
		RunID:     res.RunID,
		Kind:      res.SourceKind,
		SourceID:  res.SourceID,
		SheetName: res.SheetName,
		TabName:   res.TabName,
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Failed:    len(res.Failed),
		Status:    entities.AuditStatusSuccess,
	}
	switch res.Outcome {
	case OutcomePartial:
		ev.Status = entities.AuditStatusPartial
	case OutcomeFailed:
		ev.Status = entities.AuditStatusFailed
	}
	if res.Error != nil {
		ev.ErrorKind = string(res.Error.Kind)
		ev.Err = res.Error
	}
	return ev
}

// Status bookkeeping. Failures become warnings; they never change the outcome.

func (o *Orchestrator) startStatus(ctx context.Context, res *SyncResult, scope entities.SyncScope) {
	if err := o.deps.Status.StartSync(ctx, scope, res.SheetName); err != nil {
		o.statusWarning(res, "start", err)
	}
}

func (o *Orchestrator) successStatus(ctx context.Context, res *SyncResult, scope entities.SyncScope) {
	ctx, cancel := statusContext(ctx)
	defer cancel()
	if err := o.deps.Status.CompleteSuccess(ctx, scope, res.SheetName); err != nil {
		o.statusWarning(res, "complete", err)
	}
}

func (o *Orchestrator) errorStatus(ctx context.Context, res *SyncResult, scope entities.SyncScope, cause *Error) {
	ctx, cancel := statusContext(ctx)
	defer cancel()
	if err := o.deps.Status.CompleteError(ctx, scope, res.SheetName, cause.Message); err != nil {
		o.statusWarning(res, "record error for", err)
	}
}

// statusContext detaches from a run deadline that may already have passed.
func statusContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
}

func (o *Orchestrator) statusWarning(res *SyncResult, op string, err error) {
	msg := fmt.Sprintf("could not %s sync status: %v", op, err)
	log.Printf("Sync: %s: %s: %s", res.RunID, KindPersistence, msg)
	res.warn(msg)
}
