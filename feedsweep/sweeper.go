// CLAUDE:SUMMARY Top-level orchestrator: browser, feed tab, observer, scheduler, engine and sinks tied together in an errgroup, with recycling.
// Package feedsweep keeps a social feed's recommendation tab free of
// content from accounts the signed-in user does not follow. It drives a
// Chrome tab, watches the feed, asks each item's own overflow menu whether
// the author is followed and dismisses the rest through the site's
// not-interested and mute controls.
//
// Every handled item produces one decision event, emitted to sinks (stdout
// JSON lines, a file, or an in-process callback).
package feedsweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/feedsweep/feedsweep/decision"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/browser"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/config"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom/roddom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/engine"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/locale"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/observer"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/sink"
)

var errRecycle = errors.New("feedsweep: browser recycle")

// Sweeper is the top-level orchestrator. Create one per feed.
type Sweeper struct {
	cfg     *config.Config
	table   *locale.Table
	mgr     *browser.Manager
	sinkR   *sink.Router
	current atomic.Pointer[engine.Engine]
	logger  *slog.Logger
}

// New creates a Sweeper from configuration. Decisions go to sinks.
func New(cfg *Config, logger *slog.Logger, sinks ...Sink) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	table, err := loadTable(cfg.Locales)
	if err != nil {
		return nil, err
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		UserDataDir:      cfg.Browser.UserDataDir,
		Headful:          cfg.Browser.Stealth == "headful",
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})

	return &Sweeper{
		cfg:    cfg,
		table:  table,
		mgr:    mgr,
		sinkR:  sink.NewRouter(logger, sinks...),
		logger: logger,
	}, nil
}

// Run launches the browser and sweeps the feed until ctx is cancelled.
// When the browser is recycled the feed tab is reopened with a fresh
// engine.
func (s *Sweeper) Run(ctx context.Context) error {
	if _, err := s.mgr.Start(ctx); err != nil {
		return fmt.Errorf("feedsweep: start browser: %w", err)
	}
	defer func() {
		if err := s.mgr.Close(); err != nil {
			s.logger.Warn("feedsweep: close browser", "error", err)
		}
		if err := s.sinkR.Close(); err != nil {
			s.logger.Warn("feedsweep: close sinks", "error", err)
		}
	}()

	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !errors.Is(err, errRecycle) {
			return err
		}
		if err := s.mgr.Recycle(ctx); err != nil {
			return err
		}
	}
}

// session runs one feed tab until ctx ends, a component fails or the
// browser asks to be recycled.
func (s *Sweeper) session(ctx context.Context) error {
	tab, err := browser.OpenTab(ctx, s.mgr, browser.TabConfig{
		URL:            s.cfg.Feed.URL,
		ViewportWidth:  s.cfg.Browser.ViewportWidth,
		ViewportHeight: s.cfg.Browser.ViewportHeight,
	})
	if err != nil {
		return fmt.Errorf("feedsweep: open feed: %w", err)
	}
	defer func() {
		if err := tab.Close(); err != nil {
			s.logger.Debug("feedsweep: close tab", "error", err)
		}
	}()

	doc := roddom.New(tab.Page)
	p := newPipeline(doc, s.cfg, s.table, s.sinkR, s.logger)
	s.current.Store(p.engine)

	obs := observer.New(observer.Config{
		Page:         tab.Page,
		Collector:    doc,
		ItemSelector: s.cfg.Selectors.Item,
		Roots:        s.cfg.Selectors.FeedContainer,
		Notify:       p.scheduler.Notify,
		Logger:       s.logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.engine.Run(gctx) })
	g.Go(func() error { return p.scheduler.Run(gctx) })
	g.Go(func() error { return obs.Run(gctx) })
	if every := s.cfg.Feed.AutoScroll; every > 0 {
		g.Go(func() error { return tab.AutoScroll(gctx, every) })
	}
	g.Go(func() error { return s.statsLoop(gctx, p.engine) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case reason := <-s.mgr.RecycleDue():
			return fmt.Errorf("%w: %s", errRecycle, reason)
		}
	})

	s.logger.Info("feedsweep: sweeping", "url", s.cfg.Feed.URL, "policy", s.cfg.Policy.Undetermined)
	err = g.Wait()

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.emitStats(fctx, p.engine)
	return err
}

func (s *Sweeper) statsLoop(ctx context.Context, e *engine.Engine) error {
	ticker := time.NewTicker(s.cfg.Timing.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.emitStats(ctx, e)
		}
	}
}

func (s *Sweeper) emitStats(ctx context.Context, e *engine.Engine) {
	st := e.Stats()
	if err := s.sinkR.SendStats(ctx, st); err != nil {
		s.logger.Warn("feedsweep: send stats failed", "error", err)
	}
	s.logger.Info("feedsweep: stats",
		"seen", st.ItemsSeen, "dismissed", st.Dismissed, "muted", st.Muted,
		"following", st.Following, "errors", st.Errors)
}

// Stats returns the counters of the current feed tab.
func (s *Sweeper) Stats() decision.Stats {
	if e := s.current.Load(); e != nil {
		return e.Stats()
	}
	return decision.Stats{Timestamp: time.Now().UnixMilli()}
}
