package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func fastOpts[T any]() Options[T] {
	return Options[T]{
		Throttle:   5 * time.Millisecond,
		Supervisor: 5 * time.Millisecond,
		JobTimeout: time.Second,
	}
}

func start[T any](t *testing.T, q *Queue[T]) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestSingleFlightFIFO(t *testing.T) {
	var (
		mu      sync.Mutex
		order   []int
		running atomic.Int32
		maxSeen atomic.Int32
	)
	q := New(func(ctx context.Context, n int) error {
		cur := running.Add(1)
		defer running.Add(-1)
		for {
			m := maxSeen.Load()
			if cur <= m || maxSeen.CompareAndSwap(m, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
		return nil
	}, fastOpts[int]())
	start(t, q)

	for i := 0; i < 8; i++ {
		require.NoError(t, q.Push(i))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 8
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), maxSeen.Load(), "more than one job ran at once")
	mu.Lock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
	mu.Unlock()
}

func TestThrottleBetweenJobs(t *testing.T) {
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	opts := fastOpts[int]()
	opts.Throttle = 30 * time.Millisecond
	q := New(func(ctx context.Context, n int) error {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return nil
	}, opts)
	start(t, q)

	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(starts) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	gap := starts[1].Sub(starts[0])
	mu.Unlock()
	assert.GreaterOrEqual(t, gap, 30*time.Millisecond)
}

func TestLimiterSpacesJobStarts(t *testing.T) {
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	opts := fastOpts[int]()
	opts.Throttle = time.Millisecond
	opts.Limiter = rate.NewLimiter(rate.Every(40*time.Millisecond), 1)
	q := New(func(ctx context.Context, n int) error {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return nil
	}, opts)
	start(t, q)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(i))
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(starts) == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, starts[2].Sub(starts[0]), 70*time.Millisecond)
}

func TestPanicDoesNotLeakBusy(t *testing.T) {
	var failed atomic.Int32
	var ran atomic.Int32
	opts := fastOpts[string]()
	opts.OnFailure = func(job string, err error) {
		if job == "boom" && err != nil {
			failed.Add(1)
		}
	}
	q := New(func(ctx context.Context, s string) error {
		ran.Add(1)
		if s == "boom" {
			panic("kaput")
		}
		return nil
	}, opts)
	start(t, q)

	require.NoError(t, q.Push("boom"))
	require.NoError(t, q.Push("ok"))

	require.Eventually(t, func() bool {
		return ran.Load() == 2 && !q.Busy()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), failed.Load())
}

func TestErrorReportsFailure(t *testing.T) {
	boom := errors.New("boom")
	got := make(chan error, 1)
	opts := fastOpts[int]()
	opts.OnFailure = func(_ int, err error) { got <- err }
	q := New(func(context.Context, int) error { return boom }, opts)
	start(t, q)

	require.NoError(t, q.Push(1))
	select {
	case err := <-got:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("OnFailure not called")
	}
}

func TestGateHoldsJobs(t *testing.T) {
	var open atomic.Bool
	var ran atomic.Int32
	opts := fastOpts[int]()
	opts.Gate = func(context.Context) bool { return open.Load() }
	q := New(func(context.Context, int) error {
		ran.Add(1)
		return nil
	}, opts)
	start(t, q)

	require.NoError(t, q.Push(1))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load(), "job ran while gate closed")

	open.Store(true)
	require.Eventually(t, func() bool { return ran.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestJobsWaitForRun(t *testing.T) {
	var ran atomic.Int32
	q := New(func(context.Context, int) error {
		ran.Add(1)
		return nil
	}, fastOpts[int]())

	require.NoError(t, q.Push(1))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load())

	start(t, q)
	require.Eventually(t, func() bool { return ran.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestOnIdleAfterLastJob(t *testing.T) {
	var idle atomic.Int32
	opts := fastOpts[int]()
	opts.OnIdle = func(context.Context) { idle.Add(1) }
	q := New(func(context.Context, int) error { return nil }, opts)
	start(t, q)

	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	require.Eventually(t, func() bool { return idle.Load() >= 1 && q.Len() == 0 && !q.Busy() }, time.Second, 5*time.Millisecond)
}

func TestOnIdleHoldsNextJob(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var ran []int
	var mu sync.Mutex

	opts := fastOpts[int]()
	opts.OnIdle = func(context.Context) {
		select {
		case entered <- struct{}{}:
			<-release
		default:
		}
	}
	q := New(func(_ context.Context, n int) error {
		mu.Lock()
		ran = append(ran, n)
		mu.Unlock()
		return nil
	}, opts)
	start(t, q)

	require.NoError(t, q.Push(1))
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("idle hook never ran")
	}

	require.NoError(t, q.Push(2))
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []int{1}, ran, "job started while the idle hook was running")
	mu.Unlock()
	assert.True(t, q.Busy())

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPushAfterStop(t *testing.T) {
	q := New(func(context.Context, int) error { return nil }, fastOpts[int]())
	cancel := start(t, q)
	cancel()

	require.Eventually(t, func() bool {
		return errors.Is(q.Push(1), ErrClosed)
	}, time.Second, 5*time.Millisecond)
}
