package reqcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	cache := New[string]()

	var calls atomic.Int32
	release := make(chan struct{})
	producer := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "config-v1", nil
	}

	const callers = 10
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetOrCompute(context.Background(), "tenant:1", time.Minute, producer)
		}(i)
	}

	// Give every caller time to join the in-flight computation
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "config-v1", results[i])
	}
}

func TestGetOrCompute_ReturnsCachedValueWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
	cache := New[int](WithClock[int](clock.Now))

	var calls int
	producer := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, err := cache.GetOrCompute(context.Background(), "k", time.Minute, producer)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(30 * time.Second)
	v, err = cache.GetOrCompute(context.Background(), "k", time.Minute, producer)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, calls)
}

func TestGetOrCompute_ExpiredEntryRecomputes(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
	cache := New[int](WithClock[int](clock.Now))

	var calls int
	producer := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	_, err := cache.GetOrCompute(context.Background(), "k", time.Minute, producer)
	require.NoError(t, err)

	clock.Advance(time.Minute + time.Millisecond)

	v, err := cache.GetOrCompute(context.Background(), "k", time.Minute, producer)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "stale value must not be returned")
	assert.Equal(t, 2, calls)
}

func TestGetOrCompute_FailuresAreSharedAndNotCached(t *testing.T) {
	cache := New[string]()
	boom := errors.New("upstream unavailable")

	var calls atomic.Int32
	release := make(chan struct{})
	failing := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "", boom
	}

	const callers = 5
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.GetOrCompute(context.Background(), "k", time.Minute, failing)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 0, cache.Len())

	// Next call retries from scratch
	v, err := cache.GetOrCompute(context.Background(), "k", time.Minute, func(ctx context.Context) (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
}

func TestInvalidate_DuringFlightDoesNotStoreResult(t *testing.T) {
	cache := New[string]()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan string)
	go func() {
		v, _ := cache.GetOrCompute(context.Background(), "tenant:a", time.Minute, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "tenant-a-data", nil
		})
		done <- v
	}()

	<-started
	cache.Invalidate("tenant:a")

	// A new caller must not join the detached computation
	v, err := cache.GetOrCompute(context.Background(), "tenant:a", time.Minute, func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	close(release)
	assert.Equal(t, "tenant-a-data", <-done)

	cached, ok := cache.Get("tenant:a", time.Minute)
	require.True(t, ok)
	assert.Equal(t, "fresh", cached)
}

func TestInvalidate_OtherKeyKeepsInFlightResult(t *testing.T) {
	cache := New[string]()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error)
	go func() {
		_, err := cache.GetOrCompute(context.Background(), "client:b:config", time.Minute, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "tenant-b-data", nil
		})
		done <- err
	}()

	<-started
	cache.Invalidate("client:a:config")
	close(release)
	require.NoError(t, <-done)

	cached, ok := cache.Get("client:b:config", time.Minute)
	require.True(t, ok)
	assert.Equal(t, "tenant-b-data", cached)
}

func TestClear_DuringFlightDoesNotStoreResult(t *testing.T) {
	cache := New[string]()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error)
	go func() {
		_, err := cache.GetOrCompute(context.Background(), "client:a:config", time.Minute, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "before-logout", nil
		})
		done <- err
	}()

	<-started
	cache.Clear()
	close(release)
	require.NoError(t, <-done)

	_, ok := cache.Get("client:a:config", time.Minute)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestGetOrCompute_MissRacingCompletedFlightReusesResult(t *testing.T) {
	cache := New[string]()

	var calls atomic.Int32
	producer := func(ctx context.Context) (string, error) {
		return fmt.Sprintf("v%d", calls.Add(1)), nil
	}

	// Another caller runs and stores a full computation after our miss
	var raced atomic.Bool
	cache.afterMiss = func(key string) {
		if raced.CompareAndSwap(false, true) {
			v, err := cache.GetOrCompute(context.Background(), key, time.Minute, producer)
			require.NoError(t, err)
			assert.Equal(t, "v1", v)
		}
	}

	v, err := cache.GetOrCompute(context.Background(), "client:1:config", time.Minute, producer)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClear_RemovesAllEntries(t *testing.T) {
	cache := New[string]()
	for _, k := range []string{"client:1:config", "client:2:config"} {
		_, err := cache.GetOrCompute(context.Background(), k, time.Minute, func(ctx context.Context) (string, error) {
			return "v", nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestInvalidatePrefix(t *testing.T) {
	cache := New[string]()
	for _, k := range []string{"client:1:config", "client:1:tabs", "client:2:config"} {
		_, err := cache.GetOrCompute(context.Background(), k, time.Minute, func(ctx context.Context) (string, error) {
			return k, nil
		})
		require.NoError(t, err)
	}

	cache.InvalidatePrefix("client:1:")

	_, ok := cache.Get("client:1:config", time.Minute)
	assert.False(t, ok)
	_, ok = cache.Get("client:1:tabs", time.Minute)
	assert.False(t, ok)
	v, ok := cache.Get("client:2:config", time.Minute)
	assert.True(t, ok)
	assert.Equal(t, "client:2:config", v)
}

func TestGetOrCompute_CallerCancellationDoesNotFailOthers(t *testing.T) {
	cache := New[string]()
	release := make(chan struct{})
	producer := func(ctx context.Context) (string, error) {
		<-release
		return "ok", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error)
	go func() {
		_, err := cache.GetOrCompute(ctx, "k", time.Minute, producer)
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	secondVal := make(chan string)
	go func() {
		v, _ := cache.GetOrCompute(context.Background(), "k", time.Minute, producer)
		secondVal <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, "ok", <-secondVal)
}
