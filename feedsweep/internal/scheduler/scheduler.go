// CLAUDE:SUMMARY Discovery scheduler: one select loop turning load/mutation/scroll/navigation signals and a watchdog into gated item scans.
// Package scheduler decides when feed items are looked at. It owns every
// discovery timer in a single goroutine; page events arrive as Signals from
// the observer and scans hand items to the engine, whose ledger claim keeps
// overlapping triggers harmless.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/gate"
)

// Kind identifies a page event.
type Kind int

const (
	Loaded    Kind = iota // document finished loading
	Inserted              // feed items were added
	Scrolled              // the user or autoscroll moved the viewport
	Navigated             // in-page navigation changed the URL
	Reset                 // the document was replaced
)

func (k Kind) String() string {
	switch k {
	case Loaded:
		return "loaded"
	case Inserted:
		return "inserted"
	case Scrolled:
		return "scrolled"
	case Navigated:
		return "navigated"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Signal is one page event.
type Signal struct {
	Kind  Kind
	Items []dom.Element // Inserted only
	URL   string        // Navigated only
}

// Engine is what the scheduler drives.
type Engine interface {
	Active(ctx context.Context) bool
	Process(ctx context.Context, items []dom.Element) int
	IsProcessed(id dom.NodeID) bool
	LastActivity() time.Time
	CountScan()
	CountRescue()
	Reset()
}

// Config configures a Scheduler.
type Config struct {
	Doc          dom.Document
	Engine       Engine
	ItemSelector string

	InitialDelay    time.Duration
	Watchdog        time.Duration
	ScrollTick      time.Duration
	ScrollQuiet     time.Duration
	DeferDelay      time.Duration // out-of-viewport inserted items
	BackgroundDelay time.Duration // out-of-viewport items of a full scan
	RetryDelay      time.Duration
	StallAfter      time.Duration

	ViewportBatch   int
	BackgroundBatch int
	Retries         int // per failing trigger

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.ItemSelector == "" {
		c.ItemSelector = "article"
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.Watchdog <= 0 {
		c.Watchdog = 200 * time.Millisecond
	}
	if c.ScrollTick <= 0 {
		c.ScrollTick = 100 * time.Millisecond
	}
	if c.ScrollQuiet <= 0 {
		c.ScrollQuiet = 200 * time.Millisecond
	}
	if c.DeferDelay <= 0 {
		c.DeferDelay = 100 * time.Millisecond
	}
	if c.BackgroundDelay <= 0 {
		c.BackgroundDelay = 200 * time.Millisecond
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 100 * time.Millisecond
	}
	if c.StallAfter <= 0 {
		c.StallAfter = 10 * time.Second
	}
	if c.ViewportBatch <= 0 {
		c.ViewportBatch = 20
	}
	if c.BackgroundBatch <= 0 {
		c.BackgroundBatch = 10
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Scheduler runs the discovery loop.
type Scheduler struct {
	cfg     Config
	logger  *slog.Logger
	signals chan Signal
	due     chan task

	stallWarned time.Time // LastActivity value already warned about
}

type task struct {
	name string
	fn   func(ctx context.Context) error
	try  int
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	cfg.defaults()
	return &Scheduler{
		cfg:     cfg,
		logger:  cfg.Logger,
		signals: make(chan Signal, 256),
		due:     make(chan task, 64),
	}
}

// Notify delivers a page event. It never blocks; when the loop is behind,
// the event is dropped and the watchdog picks up whatever it would have
// found.
func (s *Scheduler) Notify(sig Signal) {
	select {
	case s.signals <- sig:
	default:
		s.logger.Debug("scheduler: signal dropped", "kind", sig.Kind)
	}
}

// Run executes the loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	initial := time.NewTimer(s.cfg.InitialDelay)
	defer initial.Stop()
	watchdog := time.NewTicker(s.cfg.Watchdog)
	defer watchdog.Stop()

	// Scroll session: a ticker while scrolling, ended by a quiet timer.
	var (
		scrollTicker *time.Ticker
		scrollC      <-chan time.Time
		quiet        *time.Timer
		quietC       <-chan time.Time
	)
	endScroll := func() {
		if scrollTicker != nil {
			scrollTicker.Stop()
			scrollTicker, scrollC = nil, nil
		}
		if quiet != nil {
			quiet.Stop()
			quiet, quietC = nil, nil
		}
	}
	defer endScroll()

	s.logger.Info("scheduler: started", "items", s.cfg.ItemSelector, "watchdog", s.cfg.Watchdog)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return nil

		case <-initial.C:
			s.run(ctx, task{name: "initial scan", fn: s.fullScan})

		case sig := <-s.signals:
			switch sig.Kind {
			case Loaded:
				s.after(ctx, s.cfg.InitialDelay, task{name: "load scan", fn: s.fullScan})
			case Inserted:
				items := sig.Items
				s.run(ctx, task{name: "mutation", fn: func(ctx context.Context) error {
					return s.handleInserted(ctx, items)
				}})
			case Scrolled:
				if scrollTicker == nil {
					s.run(ctx, task{name: "scroll scan", fn: s.viewportScan})
					scrollTicker = time.NewTicker(s.cfg.ScrollTick)
					scrollC = scrollTicker.C
				}
				if quiet == nil {
					quiet = time.NewTimer(s.cfg.ScrollQuiet)
					quietC = quiet.C
				} else {
					quiet.Reset(s.cfg.ScrollQuiet)
				}
			case Navigated:
				s.logger.Info("scheduler: navigation", "url", sig.URL)
				endScroll()
				s.after(ctx, s.cfg.InitialDelay, task{name: "navigation scan", fn: s.fullScan})
			case Reset:
				s.logger.Info("scheduler: document replaced")
				endScroll()
				s.cfg.Engine.Reset()
				s.after(ctx, s.cfg.InitialDelay, task{name: "reset scan", fn: s.fullScan})
			}

		case <-scrollC:
			s.run(ctx, task{name: "scroll scan", fn: s.viewportScan})

		case <-quietC:
			endScroll()

		case <-watchdog.C:
			s.run(ctx, task{name: "watchdog", fn: s.watchdog})

		case t := <-s.due:
			s.run(ctx, t)
		}
	}
}

// run executes t on the loop goroutine and schedules a retry when it fails.
func (s *Scheduler) run(ctx context.Context, t task) {
	err := t.fn(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}
	if t.try >= s.cfg.Retries {
		s.logger.Warn("scheduler: trigger failed, giving up", "trigger", t.name, "error", err)
		return
	}
	s.logger.Warn("scheduler: trigger failed, retrying", "trigger", t.name, "error", err, "delay", s.cfg.RetryDelay)
	t.try++
	s.after(ctx, s.cfg.RetryDelay, t)
}

// after hands t back to the loop once d has passed.
func (s *Scheduler) after(ctx context.Context, d time.Duration, t task) {
	time.AfterFunc(d, func() {
		select {
		case s.due <- t:
		case <-ctx.Done():
		}
	})
}

// split returns the unprocessed items of els, divided by viewport
// intersection.
func (s *Scheduler) split(ctx context.Context, els []dom.Element) (in, out []dom.Element, err error) {
	vp, err := s.cfg.Doc.Viewport(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("scheduler: viewport: %w", err)
	}
	for _, el := range els {
		if s.cfg.Engine.IsProcessed(el.ID()) {
			continue
		}
		r, err := el.Rect(ctx)
		if err != nil {
			continue
		}
		if gate.IsInViewport(r, vp) {
			in = append(in, el)
		} else {
			out = append(out, el)
		}
	}
	return in, out, nil
}

func (s *Scheduler) items(ctx context.Context) ([]dom.Element, error) {
	els, err := s.cfg.Doc.QueryAll(ctx, s.cfg.ItemSelector)
	if err != nil {
		return nil, fmt.Errorf("scheduler: items: %w", err)
	}
	return els, nil
}

// fullScan processes a batch of unprocessed on-screen items now and a
// smaller batch of off-screen ones after BackgroundDelay.
func (s *Scheduler) fullScan(ctx context.Context) error {
	if !s.cfg.Engine.Active(ctx) {
		return nil
	}
	s.cfg.Engine.CountScan()
	els, err := s.items(ctx)
	if err != nil {
		return err
	}
	in, out, err := s.split(ctx, els)
	if err != nil {
		return err
	}
	n := s.cfg.Engine.Process(ctx, head(in, s.cfg.ViewportBatch))
	if len(out) > 0 {
		s.after(ctx, s.cfg.BackgroundDelay, task{name: "background scan", fn: s.backgroundScan})
	}
	if n > 0 {
		s.logger.Debug("scheduler: scan", "claimed", n, "visible", len(in), "offscreen", len(out))
	}
	return nil
}

func (s *Scheduler) backgroundScan(ctx context.Context) error {
	if !s.cfg.Engine.Active(ctx) {
		return nil
	}
	els, err := s.items(ctx)
	if err != nil {
		return err
	}
	_, out, err := s.split(ctx, els)
	if err != nil {
		return err
	}
	s.cfg.Engine.Process(ctx, head(out, s.cfg.BackgroundBatch))
	return nil
}

func (s *Scheduler) viewportScan(ctx context.Context) error {
	if !s.cfg.Engine.Active(ctx) {
		return nil
	}
	els, err := s.items(ctx)
	if err != nil {
		return err
	}
	in, _, err := s.split(ctx, els)
	if err != nil {
		return err
	}
	s.cfg.Engine.Process(ctx, head(in, s.cfg.ViewportBatch))
	return nil
}

// handleInserted processes inserted items on screen at once, the rest after
// DeferDelay, and follows up with a full scan.
func (s *Scheduler) handleInserted(ctx context.Context, items []dom.Element) error {
	if !s.cfg.Engine.Active(ctx) {
		return nil
	}
	in, out, err := s.split(ctx, items)
	if err != nil {
		return err
	}
	s.cfg.Engine.Process(ctx, in)
	if len(out) > 0 {
		s.after(ctx, s.cfg.DeferDelay, task{name: "deferred items", fn: func(ctx context.Context) error {
			if !s.cfg.Engine.Active(ctx) {
				return nil
			}
			s.cfg.Engine.Process(ctx, out)
			return nil
		}})
	}
	s.after(ctx, s.cfg.DeferDelay, task{name: "mutation scan", fn: s.fullScan})
	return nil
}

// watchdog rescans when any item anywhere is still unprocessed and warns
// when the ledger has not moved for StallAfter.
func (s *Scheduler) watchdog(ctx context.Context) error {
	if !s.cfg.Engine.Active(ctx) {
		return nil
	}
	els, err := s.items(ctx)
	if err != nil {
		return err
	}
	pending := 0
	for _, el := range els {
		if !s.cfg.Engine.IsProcessed(el.ID()) {
			pending++
		}
	}
	if pending == 0 {
		return nil
	}

	last := s.cfg.Engine.LastActivity()
	if !last.IsZero() && time.Since(last) > s.cfg.StallAfter && !last.Equal(s.stallWarned) {
		s.stallWarned = last
		s.logger.Warn("scheduler: no progress", "unprocessed", pending, "idle", time.Since(last).Round(time.Second))
	}

	s.cfg.Engine.CountRescue()
	return s.fullScan(ctx)
}

func head(els []dom.Element, n int) []dom.Element {
	if len(els) > n {
		return els[:n]
	}
	return els
}
