package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/feedsweep/feedsweep/decision"
)

// Router delivers every event to each of its sinks in order. A failing sink
// is logged and counted; delivery to the rest continues.
type Router struct {
	mu       sync.RWMutex
	sinks    []Sink
	failures atomic.Int64
	logger   *slog.Logger
}

// NewRouter creates a Router over sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add registers another sink. Safe while events are flowing.
func (r *Router) Add(s Sink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

// Len returns the number of sinks.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

// Failures counts failed deliveries since creation.
func (r *Router) Failures() int64 { return r.failures.Load() }

// Send delivers d. The returned error joins every sink failure.
func (r *Router) Send(ctx context.Context, d decision.Decision) error {
	return r.each("decision", func(s Sink) error { return s.Send(ctx, d) })
}

// SendStats delivers a stats report.
func (r *Router) SendStats(ctx context.Context, st decision.Stats) error {
	return r.each("stats", func(s Sink) error { return s.SendStats(ctx, st) })
}

// Close closes every sink.
func (r *Router) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

func (r *Router) each(what string, fn func(Sink) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for i, s := range r.sinks {
		if err := fn(s); err != nil {
			r.failures.Add(1)
			r.logger.Warn("sink: delivery failed", "event", what, "sink", i, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
