// CLAUDE:SUMMARY Single-flight FIFO menu job queue: busy flag, post-job throttle, supervisor ticker, gate check, rate limit, panic recovery.
// Package queue serializes jobs that open popup menus. The page can show a
// single menu at a time, so at most one job runs; the next one starts only
// after a throttle delay has passed since the previous one ended.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrClosed is returned by Push after Run has returned.
var ErrClosed = errors.New("queue: closed")

// Handler processes one job.
type Handler[T any] func(ctx context.Context, job T) error

// Options tunes the queue.
type Options[T any] struct {
	// Throttle is the pause after each job before the next may start.
	// Default: 200ms.
	Throttle time.Duration
	// Supervisor is the period of the restart ticker. Default: 200ms.
	Supervisor time.Duration
	// JobTimeout bounds a single job. Default: 10s.
	JobTimeout time.Duration
	// Gate is consulted before each job starts; while it reports false,
	// jobs stay queued.
	Gate func(ctx context.Context) bool
	// Limiter caps job starts. Nil means unlimited.
	Limiter *rate.Limiter
	// OnFailure sees jobs whose handler returned an error or panicked.
	OnFailure func(job T, err error)
	// OnIdle runs after a job when nothing else is queued. No job starts
	// until it returns.
	OnIdle func(ctx context.Context)
	Logger *slog.Logger
}

func (o *Options[T]) defaults() {
	if o.Throttle <= 0 {
		o.Throttle = 200 * time.Millisecond
	}
	if o.Supervisor <= 0 {
		o.Supervisor = 200 * time.Millisecond
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Queue is a FIFO of jobs drained one at a time.
type Queue[T any] struct {
	handler Handler[T]
	opts    Options[T]

	mu     sync.Mutex
	jobs   []T
	busy   bool
	ctx    context.Context // set while Run is active
	closed bool
	wg     sync.WaitGroup
}

// New creates a queue. Jobs pushed before Run wait until Run starts.
func New[T any](handler Handler[T], opts Options[T]) *Queue[T] {
	opts.defaults()
	return &Queue[T]{handler: handler, opts: opts}
}

// Push appends a job and starts draining if the queue is idle.
func (q *Queue[T]) Push(job T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	q.Drain()
	return nil
}

// Len returns the number of waiting jobs, the running one excluded.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Busy reports whether a job is running or in its throttle window.
func (q *Queue[T]) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// Drain starts the next job when the queue is idle and non-empty. It never
// blocks.
func (q *Queue[T]) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.busy || len(q.jobs) == 0 || q.ctx == nil || q.closed {
		return
	}
	job := q.jobs[0]
	var zero T
	q.jobs[0] = zero
	q.jobs = q.jobs[1:]
	q.busy = true

	q.wg.Add(1)
	go q.run(q.ctx, job)
}

// Clear drops every waiting job and returns them.
func (q *Queue[T]) Clear() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.jobs
	q.jobs = nil
	return out
}

func (q *Queue[T]) run(ctx context.Context, job T) {
	defer q.wg.Done()
	log := q.opts.Logger

	if q.opts.Gate != nil && !q.opts.Gate(ctx) {
		q.mu.Lock()
		q.jobs = append([]T{job}, q.jobs...)
		q.busy = false
		q.mu.Unlock()
		log.Debug("queue: gate closed, job deferred")
		return
	}

	if q.opts.Limiter != nil {
		if err := q.opts.Limiter.Wait(ctx); err != nil {
			q.mu.Lock()
			q.jobs = append([]T{job}, q.jobs...)
			q.busy = false
			q.mu.Unlock()
			return
		}
	}

	q.execute(ctx, job)

	timer := time.NewTimer(q.opts.Throttle)
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	timer.Stop()

	q.mu.Lock()
	idle := len(q.jobs) == 0
	q.mu.Unlock()

	// OnIdle runs while busy is still held.
	if idle && q.opts.OnIdle != nil && ctx.Err() == nil {
		q.idle(ctx)
	}

	q.mu.Lock()
	q.busy = false
	q.mu.Unlock()
	q.Drain()
}

func (q *Queue[T]) idle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			q.opts.Logger.Warn("queue: idle hook panicked", "panic", r)
		}
	}()
	q.opts.OnIdle(ctx)
}

func (q *Queue[T]) execute(ctx context.Context, job T) {
	jctx, cancel := context.WithTimeout(ctx, q.opts.JobTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("queue: job panicked: %v", r)
			}
		}()
		return q.handler(jctx, job)
	}()
	if err == nil {
		return
	}
	q.opts.Logger.Warn("queue: job failed", "error", err)
	if q.opts.OnFailure != nil {
		q.opts.OnFailure(job, err)
	}
}

// Run supervises the queue until ctx is cancelled: every Supervisor tick
// it restarts draining if jobs wait while nothing runs. Run waits for the
// running job before returning; Push fails afterwards.
func (q *Queue[T]) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.ctx != nil || q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue: already running")
	}
	q.ctx = ctx
	q.mu.Unlock()

	log := q.opts.Logger
	log.Info("queue: started", "throttle", q.opts.Throttle, "supervisor", q.opts.Supervisor)
	q.Drain()

	ticker := time.NewTicker(q.opts.Supervisor)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.closed = true
			q.mu.Unlock()
			q.wg.Wait()
			log.Info("queue: stopped", "pending", q.Len())
			return nil
		case <-ticker.C:
			q.Drain()
		}
	}
}
