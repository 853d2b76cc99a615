// CLAUDE:SUMMARY Page observer: injects a MutationObserver/scroll/history hook over a CDP binding and turns its events into scheduler signals.
// Package observer watches a live feed page and reports what happens on it
// to the scheduler: inserted feed items, scrolling, in-page navigation and
// document replacement.
package observer

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom/roddom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/scheduler"
)

//go:embed observer.js
var observerJS string

const bindingName = "__feedsweep_binding"

// collectJS returns the items marked by the hook and clears their mark.
const collectJS = `() => {
	const els = Array.from(document.querySelectorAll('[data-feedsweep-new]'));
	for (const el of els) el.removeAttribute('data-feedsweep-new');
	return els;
}`

// Collector fetches the elements the page hook marked as inserted.
type Collector interface {
	ElementsByJS(ctx context.Context, js string) ([]dom.Element, error)
}

// Config for creating an Observer.
type Config struct {
	Page         *rod.Page
	Collector    Collector // defaults to a roddom document over Page
	ItemSelector string
	Roots        []string // feed containers to observe, first match wins
	Notify       func(scheduler.Signal)
	// Coalesce groups insert events arriving within this window into one
	// collection round trip. Default: 50ms.
	Coalesce time.Duration
	// MaxPending collects immediately once this many items are waiting.
	// Default: 50.
	MaxPending int
	Logger     *slog.Logger
}

// Observer manages the page hook of one tab.
type Observer struct {
	cfg    Config
	logger *slog.Logger
	batch  *coalescer
}

// New creates an Observer.
func New(cfg Config) *Observer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ItemSelector == "" {
		cfg.ItemSelector = "article"
	}
	if cfg.Collector == nil && cfg.Page != nil {
		cfg.Collector = roddom.New(cfg.Page)
	}
	return &Observer{
		cfg:    cfg,
		logger: cfg.Logger,
		batch:  newCoalescer(cfg.Coalesce, cfg.MaxPending),
	}
}

// Run installs the hook and forwards page events until ctx is cancelled.
// The hook is registered for every new document, so reloads keep being
// observed.
func (o *Observer) Run(ctx context.Context) error {
	events := make(chan []event, 256)
	resets := make(chan string, 1)

	wait := o.listen(ctx, events, resets)
	if err := o.install(ctx); err != nil {
		return fmt.Errorf("observer: install: %w", err)
	}
	go wait()

	return o.loop(ctx, events, resets)
}

func (o *Observer) install(ctx context.Context) error {
	page := o.cfg.Page.Context(ctx)

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		o.logger.Warn("observer: addBinding failed (may already exist)", "error", err)
	}

	items, _ := json.Marshal(o.cfg.ItemSelector)
	roots, _ := json.Marshal(o.cfg.Roots)
	if roots == nil || string(roots) == "null" {
		roots = []byte("[]")
	}
	script := fmt.Sprintf("window.__feedsweep_items = %s;\nwindow.__feedsweep_roots = %s;\n%s", items, roots, observerJS)

	if _, err := page.EvalOnNewDocument(script); err != nil {
		return fmt.Errorf("register hook: %w", err)
	}
	// The current document predates the registration.
	if _, err := page.Eval(`() => {` + script + `}`); err != nil {
		return fmt.Errorf("inject hook: %w", err)
	}
	o.logger.Debug("observer: hook installed", "items", o.cfg.ItemSelector)
	return nil
}

// listen subscribes to binding calls and main-frame document loads. The
// returned function delivers events until ctx is cancelled.
func (o *Observer) listen(ctx context.Context, events chan<- []event, resets chan<- string) func() {
	page := o.cfg.Page.Context(ctx)
	if err := (proto.PageEnable{}).Call(page); err != nil {
		o.logger.Warn("observer: enable page events", "error", err)
	}
	return page.EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != bindingName {
				return
			}
			evs, err := parseEvents(e.Payload)
			if err != nil {
				o.logger.Warn("observer: parse binding payload", "error", err)
				return
			}
			select {
			case events <- evs:
			default:
				o.logger.Debug("observer: events dropped", "n", len(evs))
			}
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			select {
			case resets <- e.Frame.URL:
			default:
			}
		},
	)
}

// loop turns hook events into scheduler signals.
func (o *Observer) loop(ctx context.Context, events <-chan []event, resets <-chan string) error {
	defer o.batch.stop()
	for {
		select {
		case <-ctx.Done():
			return nil

		case evs := <-events:
			for _, ev := range evs {
				o.handle(ctx, ev)
			}

		case <-o.batch.timerC():
			o.collect(ctx)

		case u := <-resets:
			o.batch.take()
			o.logger.Info("observer: document replaced", "url", u)
			o.cfg.Notify(scheduler.Signal{Kind: scheduler.Reset, URL: u})
		}
	}
}

func (o *Observer) handle(ctx context.Context, ev event) {
	switch ev.Op {
	case opLoaded:
		o.cfg.Notify(scheduler.Signal{Kind: scheduler.Loaded, URL: ev.URL})
	case opScroll:
		o.cfg.Notify(scheduler.Signal{Kind: scheduler.Scrolled})
	case opNavigate:
		o.logger.Info("observer: in-page navigation", "url", ev.URL)
		o.cfg.Notify(scheduler.Signal{Kind: scheduler.Navigated, URL: ev.URL})
	case opInserted:
		if o.batch.add(ev.N) {
			o.collect(ctx)
		}
	default:
		o.logger.Debug("observer: unknown event", "op", ev.Op)
	}
}

// collect fetches the marked items and hands them to the scheduler.
func (o *Observer) collect(ctx context.Context) {
	if o.batch.take() == 0 {
		return
	}
	items, err := o.cfg.Collector.ElementsByJS(ctx, collectJS)
	if err != nil {
		// The watchdog will find them.
		o.logger.Debug("observer: collect inserted items", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}
	o.cfg.Notify(scheduler.Signal{Kind: scheduler.Inserted, Items: items})
}
