// CLAUDE:SUMMARY Dismissal actuator: mute + toast cleanup, not-interested + not-relevant confirmation, upsell modal closing, hide/show registry.
// Package actuate carries out dismissals by clicking the page's own
// controls, and cleans up the transient UI those clicks leave behind.
package actuate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/ledger"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/locale"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/menu"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/poll"
)

// Config configures an Actuator.
type Config struct {
	Doc          dom.Document
	Opener       *menu.Opener
	Table        *locale.Table
	Hidden       *ledger.Hidden
	Button       string
	Toast        string
	Overlay      string
	Dialog       string
	DialogClose  string
	PollInterval time.Duration
	PollAttempts int
	ToastDelays  []time.Duration // measured from the mute click
	// Schedule runs fn after d. Defaults to time.AfterFunc.
	Schedule func(d time.Duration, fn func())
	Logger   *slog.Logger
}

// Actuator performs dismissals on one document.
type Actuator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Actuator.
func New(cfg Config) *Actuator {
	if cfg.Table == nil {
		cfg.Table = locale.Default()
	}
	if cfg.Hidden == nil {
		cfg.Hidden = ledger.NewHidden()
	}
	if cfg.Button == "" {
		cfg.Button = `button, div[role="button"], span[role="button"]`
	}
	if cfg.Toast == "" {
		cfg.Toast = `[role="alert"], [data-testid="toast"], [data-testid="toastContainer"] div`
	}
	if cfg.Overlay == "" {
		cfg.Overlay = `[role="presentation"]`
	}
	if cfg.Dialog == "" {
		cfg.Dialog = `[role="dialog"], [data-testid="sheetDialog"]`
	}
	if cfg.DialogClose == "" {
		cfg.DialogClose = `div[aria-label="閉じる"], div[aria-label="Close"], button[aria-label="Close"]`
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 20
	}
	if cfg.ToastDelays == nil {
		cfg.ToastDelays = []time.Duration{500 * time.Millisecond, time.Second, 1500 * time.Millisecond}
	}
	if cfg.Schedule == nil {
		cfg.Schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Actuator{cfg: cfg, logger: logger}
}

// Mute opens the item's overflow menu and activates its mute entry. It
// reports false, without error, when the menu or the entry is missing.
// After a successful mute the confirmation toast is dismissed in the
// background at each configured delay.
func (a *Actuator) Mute(ctx context.Context, item dom.Element, handle string) (bool, error) {
	s, err := a.cfg.Opener.Open(ctx, item)
	switch {
	case errors.Is(err, menu.ErrNoTrigger), errors.Is(err, poll.ErrExhausted):
		a.logger.Warn("actuate: mute menu unavailable", "handle", handle, "error", err)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("actuate: mute: %w", err)
	}

	it, ok := s.Find(locale.Mute)
	if !ok {
		a.logger.Warn("actuate: mute entry not found", "handle", handle, "entries", s.Texts())
		if err := s.Close(ctx); err != nil {
			a.logger.Warn("actuate: menu close failed", "error", err)
		}
		return false, nil
	}
	if err := s.Activate(ctx, it); err != nil {
		return false, fmt.Errorf("actuate: mute: %w", err)
	}

	bg := context.WithoutCancel(ctx)
	for _, d := range a.cfg.ToastDelays {
		a.cfg.Schedule(d, func() {
			tctx, cancel := context.WithTimeout(bg, 5*time.Second)
			defer cancel()
			if _, err := a.DismissToast(tctx); err != nil {
				a.logger.Debug("actuate: toast dismissal failed", "error", err)
			}
		})
	}
	return true, nil
}

// DismissToast clicks the mute confirmation toast, if one is showing, and
// hides the overlays it brings along.
func (a *Actuator) DismissToast(ctx context.Context) (bool, error) {
	toasts, err := a.cfg.Doc.QueryAll(ctx, a.cfg.Toast)
	if err != nil {
		return false, fmt.Errorf("actuate: toast: %w", err)
	}
	var toast dom.Element
	for _, t := range toasts {
		text, err := t.Text(ctx)
		if err == nil && a.cfg.Table.Match(locale.Toast, text) {
			toast = t
			break
		}
	}
	if toast == nil {
		return false, nil
	}
	if err := toast.Click(ctx); err != nil && !errors.Is(err, dom.ErrDetached) {
		return false, fmt.Errorf("actuate: toast: %w", err)
	}

	overlays, err := a.cfg.Doc.QueryAll(ctx, a.cfg.Overlay)
	if err != nil {
		return true, fmt.Errorf("actuate: overlays: %w", err)
	}
	for _, o := range overlays {
		if _, err := o.Hide(ctx); err != nil {
			a.logger.Debug("actuate: hide overlay failed", "error", err)
		}
	}
	return true, nil
}

// NotInterested activates the not-interested entry of an open menu and
// then confirms the "not relevant" follow-up. It reports whether the menu
// was consumed; a missing entry leaves the menu open for the caller to
// close.
func (a *Actuator) NotInterested(ctx context.Context, s *menu.Session, handle string) (bool, error) {
	it, ok := s.Find(locale.NotInterested)
	if !ok {
		a.logger.Warn("actuate: not-interested entry not found", "handle", handle, "entries", s.Texts())
		return false, nil
	}
	if err := s.Activate(ctx, it); err != nil {
		return false, fmt.Errorf("actuate: not interested: %w", err)
	}
	if _, err := a.ConfirmNotRelevant(ctx, handle); err != nil {
		return true, err
	}
	return true, nil
}

// ConfirmNotRelevant waits for the "not relevant" control shown after a
// not-interested click and activates it. Its absence is tolerated.
func (a *Actuator) ConfirmNotRelevant(ctx context.Context, handle string) (bool, error) {
	var target dom.Element
	_, err := poll.Until(ctx, a.cfg.PollInterval, a.cfg.PollAttempts, func(ctx context.Context) (bool, error) {
		buttons, err := a.cfg.Doc.QueryAll(ctx, a.cfg.Button)
		if err != nil {
			return false, err
		}
		for _, b := range buttons {
			if a.carries(ctx, b, locale.NotRelevant) {
				target = b
				return true, nil
			}
		}
		return false, nil
	})
	if errors.Is(err, poll.ErrExhausted) {
		a.logger.Debug("actuate: not-relevant control never appeared", "handle", handle)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("actuate: confirm not relevant: %w", err)
	}
	if err := target.Click(ctx); err != nil {
		return false, fmt.Errorf("actuate: confirm not relevant: %w", err)
	}
	return true, nil
}

// CloseInterstitialModal closes an upsell dialog if one is showing, by its
// close control or, failing that, by hiding it.
func (a *Actuator) CloseInterstitialModal(ctx context.Context) (bool, error) {
	dialogs, err := a.cfg.Doc.QueryAll(ctx, a.cfg.Dialog)
	if err != nil {
		return false, fmt.Errorf("actuate: dialogs: %w", err)
	}
	for _, d := range dialogs {
		text, err := d.Text(ctx)
		if err != nil || !a.cfg.Table.Match(locale.Upsell, text) {
			continue
		}
		closer, err := d.Query(ctx, a.cfg.DialogClose)
		if err == nil && closer == nil {
			closer = a.labelledClose(ctx, d)
		}
		if closer != nil {
			if err := closer.Click(ctx); err == nil {
				return true, nil
			}
		}
		if _, err := d.Hide(ctx); err != nil {
			return false, fmt.Errorf("actuate: hide dialog: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func (a *Actuator) labelledClose(ctx context.Context, dialog dom.Element) dom.Element {
	buttons, err := dialog.QueryAll(ctx, a.cfg.Button)
	if err != nil {
		return nil
	}
	for _, b := range buttons {
		label, ok, err := b.Attr(ctx, "aria-label")
		if err == nil && ok && a.cfg.Table.Match(locale.CloseLabel, label) {
			return b
		}
	}
	return nil
}

// carries reports whether el's text or aria-label carries m.
func (a *Actuator) carries(ctx context.Context, el dom.Element, m locale.Marker) bool {
	if text, err := el.Text(ctx); err == nil && a.cfg.Table.Match(m, text) {
		return true
	}
	label, ok, err := el.Attr(ctx, "aria-label")
	return err == nil && ok && a.cfg.Table.Match(m, label)
}

// Hide hides an item while it waits for a verdict and records its prior
// style.
func (a *Actuator) Hide(ctx context.Context, item dom.Element) error {
	prior, err := item.Hide(ctx)
	if err != nil {
		return fmt.Errorf("actuate: hide: %w", err)
	}
	a.cfg.Hidden.Acquire(item.ID(), prior)
	return nil
}

// Show restores an item hidden by Hide. Items that were not hidden are
// left alone.
func (a *Actuator) Show(ctx context.Context, item dom.Element) error {
	prior, ok := a.cfg.Hidden.Release(item.ID())
	if !ok {
		return nil
	}
	if err := item.Restore(ctx, prior); err != nil {
		return fmt.Errorf("actuate: show: %w", err)
	}
	return nil
}

// Release forgets a hidden item without restoring it. Used once the item
// has been dismissed.
func (a *Actuator) Release(item dom.Element) {
	a.cfg.Hidden.Release(item.ID())
}
