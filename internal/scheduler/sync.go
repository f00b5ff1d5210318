// Package scheduler runs the periodic jobs: enqueueing syncs of registered
// sources, reaping stuck status records and pruning the audit log.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/tasks"
)

// SourceLister returns the sources to sync on every tick.
type SourceLister interface {
	ListEnabled(ctx context.Context) ([]entities.SyncSource, error)
}

// Enqueuer hands tasks to the background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, tasks ...backlite.Task) ([]string, error)
}

// StaleReaper moves long-running syncing records to Error.
type StaleReaper interface {
	ReapStale(ctx context.Context, cutoff time.Time, message string) (int64, error)
}

// Config selects the schedules. An empty schedule disables its job.
type Config struct {
	SyncSchedule    string
	ReapSchedule    string
	CleanupSchedule string
	StaleAfter      time.Duration
	RetentionDays   int
}

// SyncScheduler enqueues a sync for every enabled source on a cron schedule.
type SyncScheduler struct {
	sources SourceLister
	queue   Enqueuer
	reaper  StaleReaper
	cfg     Config
	now     func() time.Time

	cron      *cron.Cron
	entries   map[string]cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	enqueuing bool
}

func NewSyncScheduler(sources SourceLister, queue Enqueuer, reaper StaleReaper, cfg Config) *SyncScheduler {
	return &SyncScheduler{
		sources: sources,
		queue:   queue,
		reaper:  reaper,
		cfg:     cfg,
		now:     time.Now,
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

// Start registers the jobs and starts the cron loop. It stops when ctx is done.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"sync", s.cfg.SyncSchedule, func() { s.EnqueueSyncs(context.Background()) }},
		{"reap", s.cfg.ReapSchedule, func() { s.ReapStale(context.Background()) }},
		{"audit_cleanup", s.cfg.CleanupSchedule, func() { s.EnqueueCleanup(context.Background()) }},
	}
	for _, j := range jobs {
		if j.schedule == "" {
			continue
		}
		if err := ValidateCronSchedule(j.schedule); err != nil {
			return fmt.Errorf("invalid %s schedule '%s': %w", j.name, j.schedule, err)
		}
	}
	for _, j := range jobs {
		if j.schedule == "" {
			continue
		}
		id, err := s.cron.AddFunc(j.schedule, j.run)
		if err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", j.name, err)
		}
		s.entries[j.name] = id
		log.Printf("Sync scheduler: %s job '%s' (%s)", j.name, j.schedule, CronDescription(j.schedule))
	}

	s.cron.Start()
	s.isRunning = true

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for running jobs and stops the cron loop.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	s.mu.Unlock()

	// Running jobs take mu themselves, so wait outside it.
	<-s.cron.Stop().Done()
	log.Printf("Sync scheduler: stopped")
}

func (s *SyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the named job fires next, or nil if it is not scheduled.
func (s *SyncScheduler) NextRun(job string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.entries[job]
	if !ok || !s.isRunning {
		return nil
	}
	t := s.cron.Entry(id).Next
	return &t
}

// EnqueueSyncs queues one sync task per enabled source and returns how many
// were queued. Overlapping calls are skipped.
func (s *SyncScheduler) EnqueueSyncs(ctx context.Context) int {
	s.mu.Lock()
	if s.enqueuing {
		s.mu.Unlock()
		log.Printf("Sync scheduler: skipped (previous tick still enqueuing)")
		return 0
	}
	s.enqueuing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.enqueuing = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	srcs, err := s.sources.ListEnabled(ctx)
	if err != nil {
		log.Printf("Sync scheduler: failed to list sources: %v", err)
		return 0
	}
	if len(srcs) == 0 {
		log.Printf("Sync scheduler: no enabled sources")
		return 0
	}

	batch := make([]backlite.Task, 0, len(srcs))
	for _, src := range srcs {
		task := tasks.SyncSheetTask{
			ActorID:   src.ActorID,
			SourceRef: src.SourceRef,
			SheetName: src.SheetName,
		}
		if src.ClientID != nil {
			task.ClientID = *src.ClientID
		}
		batch = append(batch, task)
	}

	ids, err := s.queue.Enqueue(ctx, batch...)
	if err != nil {
		log.Printf("Sync scheduler: %v", err)
		return 0
	}
	log.Printf("Sync scheduler: queued %d syncs", len(ids))
	return len(ids)
}

// ReapStale moves syncing records older than StaleAfter to Error.
func (s *SyncScheduler) ReapStale(ctx context.Context) int64 {
	if s.reaper == nil || s.cfg.StaleAfter <= 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := s.now().Add(-s.cfg.StaleAfter)
	n, err := s.reaper.ReapStale(ctx, cutoff, fmt.Sprintf("sync did not finish within %s", s.cfg.StaleAfter))
	if err != nil {
		log.Printf("Sync scheduler: failed to reap stale syncs: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("Sync scheduler: marked %d stale syncs as failed", n)
	}
	return n
}

// EnqueueCleanup queues the audit retention task.
func (s *SyncScheduler) EnqueueCleanup(ctx context.Context) error {
	_, err := s.queue.Enqueue(ctx, tasks.CleanupAuditTask{RetentionDays: s.cfg.RetentionDays})
	if err != nil {
		log.Printf("Sync scheduler: failed to queue audit cleanup: %v", err)
	}
	return err
}
