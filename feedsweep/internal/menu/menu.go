// CLAUDE:SUMMARY Overflow-menu discovery and open/poll/close session over the page's own "More" control.
// Package menu opens a feed item's overflow menu, waits for its entries to
// render and closes it again. Only one menu can be open on the page at a
// time; callers serialize sessions.
package menu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/locale"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/poll"
)

// ErrNoTrigger is returned when an item has no overflow control.
var ErrNoTrigger = errors.New("menu: overflow control not found")

// closeTimeout bounds Close, which runs detached from the caller's deadline.
const closeTimeout = 2 * time.Second

// Config locates menus on the page.
type Config struct {
	TriggerPrimary  []string // accessible-name matches, tried in order
	TriggerGeneric  string   // buttons whose aria-label carries more_label
	TriggerFallback string   // structural marker
	MenuItem        string
	Menu            string
	PollInterval    time.Duration
	PollAttempts    int
	Table           *locale.Table
	Logger          *slog.Logger
}

// Opener opens menus on one document.
type Opener struct {
	doc    dom.Document
	cfg    Config
	logger *slog.Logger
}

// New creates an Opener.
func New(doc dom.Document, cfg Config) *Opener {
	if len(cfg.TriggerPrimary) == 0 {
		cfg.TriggerPrimary = []string{`[aria-label="More"]`, `[aria-label="その他"]`}
	}
	if cfg.TriggerGeneric == "" {
		cfg.TriggerGeneric = `button, div[role="button"]`
	}
	if cfg.TriggerFallback == "" {
		cfg.TriggerFallback = `[data-testid="caret"]`
	}
	if cfg.MenuItem == "" {
		cfg.MenuItem = `[role="menuitem"]`
	}
	if cfg.Menu == "" {
		cfg.Menu = `[role="menu"]`
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 20
	}
	if cfg.Table == nil {
		cfg.Table = locale.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{doc: doc, cfg: cfg, logger: logger}
}

// Document returns the document the opener works on.
func (o *Opener) Document() dom.Document { return o.doc }

// FindTrigger returns the overflow control inside scope.
func (o *Opener) FindTrigger(ctx context.Context, scope dom.Element) (dom.Element, error) {
	for _, sel := range o.cfg.TriggerPrimary {
		el, err := scope.Query(ctx, sel)
		if err != nil {
			return nil, fmt.Errorf("menu: find trigger: %w", err)
		}
		if el != nil {
			return el, nil
		}
	}

	buttons, err := scope.QueryAll(ctx, o.cfg.TriggerGeneric)
	if err != nil {
		return nil, fmt.Errorf("menu: find trigger: %w", err)
	}
	for _, b := range buttons {
		label, ok, err := b.Attr(ctx, "aria-label")
		if err == nil && ok && o.cfg.Table.Match(locale.MoreLabel, label) {
			return b, nil
		}
	}

	el, err := scope.Query(ctx, o.cfg.TriggerFallback)
	if err != nil {
		return nil, fmt.Errorf("menu: find trigger: %w", err)
	}
	if el == nil {
		return nil, ErrNoTrigger
	}
	return el, nil
}

// Item is one rendered menu entry.
type Item struct {
	El   dom.Element
	Text string
}

// Session is one open menu.
type Session struct {
	o       *Opener
	trigger dom.Element
	items   []Item
	done    bool
}

// Open activates the overflow control of scope and waits for menu entries.
// It returns ErrNoTrigger without clicking anything when scope has no
// control. When no entries render within the poll budget the menu is closed
// and the error wraps poll.ErrExhausted.
func (o *Opener) Open(ctx context.Context, scope dom.Element) (*Session, error) {
	trigger, err := o.FindTrigger(ctx, scope)
	if err != nil {
		return nil, err
	}
	return o.OpenTrigger(ctx, trigger)
}

// OpenTrigger is Open with an already located control.
func (o *Opener) OpenTrigger(ctx context.Context, trigger dom.Element) (*Session, error) {
	if err := trigger.Click(ctx); err != nil {
		return nil, fmt.Errorf("menu: open: %w", err)
	}

	s := &Session{o: o, trigger: trigger}
	var found []dom.Element
	_, err := poll.Until(ctx, o.cfg.PollInterval, o.cfg.PollAttempts, func(ctx context.Context) (bool, error) {
		els, err := o.doc.QueryAll(ctx, o.cfg.MenuItem)
		if err != nil {
			return false, err
		}
		found = els
		return len(els) > 0, nil
	})
	if err != nil {
		if cerr := s.Close(ctx); cerr != nil {
			o.logger.Warn("menu: close after failed open", "error", cerr)
		}
		return nil, fmt.Errorf("menu: open: %w", err)
	}

	for _, el := range found {
		text, err := el.Text(ctx)
		if err != nil {
			continue
		}
		s.items = append(s.items, Item{El: el, Text: text})
	}
	return s, nil
}

// Trigger returns the control that opened the menu.
func (s *Session) Trigger() dom.Element { return s.trigger }

// Items returns the entries read when the menu opened.
func (s *Session) Items() []Item { return s.items }

// Texts returns the entry labels.
func (s *Session) Texts() []string {
	out := make([]string, len(s.items))
	for i, it := range s.items {
		out[i] = it.Text
	}
	return out
}

// Find returns the first entry whose label carries m.
func (s *Session) Find(m locale.Marker) (Item, bool) {
	return s.FindFunc(func(text string) bool { return s.o.cfg.Table.Match(m, text) })
}

// FindFunc returns the first entry whose label satisfies fn.
func (s *Session) FindFunc(fn func(text string) bool) (Item, bool) {
	for _, it := range s.items {
		if fn(it.Text) {
			return it, true
		}
	}
	return Item{}, false
}

// Activate clicks an entry. The page closes the menu itself, so the session
// is over afterwards.
func (s *Session) Activate(ctx context.Context, it Item) error {
	if err := it.El.Click(ctx); err != nil {
		return fmt.Errorf("menu: activate: %w", err)
	}
	s.done = true
	return nil
}

// Close dismisses the menu. It re-activates the trigger, falls back to a
// click just outside the menu box, and finally clicks near the top-left
// page corner. Closing a finished session is a no-op. A menu left open
// blocks every later session, so Close still runs when ctx has already
// expired.
func (s *Session) Close(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	if s.trigger != nil {
		err := s.trigger.Click(ctx)
		if err == nil {
			return nil
		}
		s.o.logger.Debug("menu: trigger re-click failed", "error", err)
	}

	ok, err := s.o.clickOutsideMenu(ctx)
	if err != nil {
		s.o.logger.Debug("menu: outside click failed", "error", err)
	}
	if ok {
		return nil
	}

	el, err := s.o.doc.ElementFromPoint(ctx, 10, 10)
	if err != nil {
		return fmt.Errorf("menu: close: %w", err)
	}
	if el == nil {
		return fmt.Errorf("menu: close: nothing to click")
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("menu: close: %w", err)
	}
	return nil
}

func (o *Opener) clickOutsideMenu(ctx context.Context) (bool, error) {
	m, err := o.doc.Query(ctx, o.cfg.Menu)
	if err != nil || m == nil {
		return false, err
	}
	r, err := m.Rect(ctx)
	if err != nil {
		return false, err
	}

	points := [][2]float64{
		{math.Max(0, r.Left-10), math.Max(0, r.Top-10)},
		{r.Right + 10, r.Bottom + 10},
	}
	for _, p := range points {
		el, err := o.doc.ElementFromPoint(ctx, p[0], p[1])
		if err != nil || el == nil {
			continue
		}
		inside, err := m.Contains(ctx, el)
		if err != nil || inside {
			continue
		}
		if err := el.Click(ctx); err == nil {
			return true, nil
		}
	}
	return false, nil
}
