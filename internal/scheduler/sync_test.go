package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/sheetsync/internal/entities"
	"github.com/mrlokans/sheetsync/internal/tasks"
)

type stubSources struct {
	sources []entities.SyncSource
	err     error
}

func (s stubSources) ListEnabled(context.Context) ([]entities.SyncSource, error) {
	return s.sources, s.err
}

type recordingQueue struct {
	tasks []backlite.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, ts ...backlite.Task) ([]string, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, ts...)
	ids := make([]string, len(ts))
	for i := range ts {
		ids[i] = "task"
	}
	return ids, nil
}

type stubReaper struct {
	cutoff  time.Time
	message string
}

func (r *stubReaper) ReapStale(_ context.Context, cutoff time.Time, message string) (int64, error) {
	r.cutoff = cutoff
	r.message = message
	return 2, nil
}

func TestValidateCronSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		valid    bool
	}{
		{"0 * * * *", true},
		{"*/10 * * * *", true},
		{"30 3 * * *", true},
		{"invalid", false},
		{"* * * *", false},
		{"60 * * * *", false},
	}
	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			err := ValidateCronSchedule(tt.schedule)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCronDescriptionAndNextRun(t *testing.T) {
	assert.Equal(t, "Every 10 minutes", CronDescription("*/10 * * * *"))
	assert.Equal(t, "Custom schedule: 5 4 * * *", CronDescription("5 4 * * *"))

	from := time.Date(2025, 1, 10, 12, 30, 0, 0, time.UTC)
	next, err := NextRunTime("0 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 13, 0, 0, 0, time.UTC), next)

	_, err = NextRunTime("invalid", from)
	assert.Error(t, err)
}

func TestEnqueueSyncs(t *testing.T) {
	acme := "acme"
	sources := stubSources{sources: []entities.SyncSource{
		{ActorID: "u1", SourceRef: "sheet-a", SheetName: "Outreach", Enabled: true},
		{ActorID: "u2", ClientID: &acme, SourceRef: "sheet-b", Enabled: true},
	}}
	queue := &recordingQueue{}
	s := NewSyncScheduler(sources, queue, nil, Config{})

	assert.Equal(t, 2, s.EnqueueSyncs(context.Background()))
	require.Len(t, queue.tasks, 2)
	assert.Equal(t, tasks.SyncSheetTask{ActorID: "u1", SourceRef: "sheet-a", SheetName: "Outreach"}, queue.tasks[0])
	assert.Equal(t, tasks.SyncSheetTask{ActorID: "u2", ClientID: "acme", SourceRef: "sheet-b"}, queue.tasks[1])
}

func TestEnqueueSyncs_Failures(t *testing.T) {
	s := NewSyncScheduler(stubSources{err: errors.New("locked")}, &recordingQueue{}, nil, Config{})
	assert.Zero(t, s.EnqueueSyncs(context.Background()))

	s = NewSyncScheduler(stubSources{}, &recordingQueue{}, nil, Config{})
	assert.Zero(t, s.EnqueueSyncs(context.Background()))

	srcs := stubSources{sources: []entities.SyncSource{{ActorID: "u1", SourceRef: "sheet-a"}}}
	s = NewSyncScheduler(srcs, &recordingQueue{err: errors.New("queue down")}, nil, Config{})
	assert.Zero(t, s.EnqueueSyncs(context.Background()))
}

func TestReapStale(t *testing.T) {
	reaper := &stubReaper{}
	s := NewSyncScheduler(stubSources{}, &recordingQueue{}, reaper, Config{StaleAfter: 10 * time.Minute})
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	assert.Equal(t, int64(2), s.ReapStale(context.Background()))
	assert.Equal(t, now.Add(-10*time.Minute), reaper.cutoff)
	assert.Contains(t, reaper.message, "10m0s")

	disabled := NewSyncScheduler(stubSources{}, &recordingQueue{}, reaper, Config{})
	assert.Zero(t, disabled.ReapStale(context.Background()))
}

func TestEnqueueCleanup(t *testing.T) {
	queue := &recordingQueue{}
	s := NewSyncScheduler(stubSources{}, queue, nil, Config{RetentionDays: 30})

	require.NoError(t, s.EnqueueCleanup(context.Background()))
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, tasks.CleanupAuditTask{RetentionDays: 30}, queue.tasks[0])
}

func TestStartStop(t *testing.T) {
	s := NewSyncScheduler(stubSources{}, &recordingQueue{}, &stubReaper{}, Config{
		SyncSchedule: "0 * * * *",
		ReapSchedule: "*/10 * * * *",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	assert.NotNil(t, s.NextRun("sync"))
	assert.NotNil(t, s.NextRun("reap"))
	assert.Nil(t, s.NextRun("audit_cleanup"))

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRun("sync"))
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := NewSyncScheduler(stubSources{}, &recordingQueue{}, nil, Config{SyncSchedule: "every hour"})
	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}
