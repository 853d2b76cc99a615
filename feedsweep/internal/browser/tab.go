package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab is the feed page: a stealth page sized like a desktop window.
type Tab struct {
	Page *rod.Page
	URL  string
	mgr  *Manager
}

// TabConfig describes the feed tab.
type TabConfig struct {
	URL            string
	ViewportWidth  int
	ViewportHeight int
	NavTimeout     time.Duration // default 30s
}

// OpenTab creates a stealth page, applies resource blocking and the
// viewport size, and navigates to the feed.
func OpenTab(ctx context.Context, mgr *Manager, cfg TabConfig) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	log := mgr.cfg.Logger

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, mgr.cfg.ResourceBlocking); err != nil {
			log.Warn("browser: resource blocking failed", "error", err)
		}
	}

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.ViewportWidth,
			Height:            cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			log.Warn("browser: set viewport failed", "error", err)
		}
	}

	timeout := cfg.NavTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(cfg.URL); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", cfg.URL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browser: wait load timeout", "url", cfg.URL, "error", err)
	}
	log.Info("browser: feed tab open", "url", cfg.URL)

	return &Tab{Page: page, URL: cfg.URL, mgr: mgr}, nil
}

// ScrollBy scrolls the feed by dy pixels.
func (t *Tab) ScrollBy(ctx context.Context, dy float64) error {
	if _, err := t.Page.Context(ctx).Eval(`(dy) => window.scrollBy(0, dy)`, dy); err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// AutoScroll scrolls one viewport height every interval until ctx is
// cancelled, so a headless feed keeps loading new items.
func (t *Tab) AutoScroll(ctx context.Context, every time.Duration) error {
	log := t.mgr.cfg.Logger
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			res, err := t.Page.Context(ctx).Eval(`() => window.innerHeight`)
			if err != nil {
				log.Debug("browser: autoscroll", "error", err)
				continue
			}
			if err := t.ScrollBy(ctx, res.Value.Num()*0.8); err != nil {
				log.Debug("browser: autoscroll", "error", err)
			}
		}
	}
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
