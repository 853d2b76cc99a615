// Package gate decides whether the engine may act at all (the page shows the
// recommended feed) and whether an element is on screen.
package gate

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/locale"
)

// Config describes the feed location.
type Config struct {
	Hosts       []string // e.g. x.com, twitter.com
	HomePaths   []string // e.g. /home, /
	TabSelector string
	Table       *locale.Table
}

// Gate is the master enable switch of the engine.
type Gate struct {
	hosts map[string]bool
	paths map[string]bool
	tab   string
	table *locale.Table
}

// New creates a Gate.
func New(cfg Config) *Gate {
	g := &Gate{
		hosts: make(map[string]bool, len(cfg.Hosts)),
		paths: make(map[string]bool, len(cfg.HomePaths)),
		tab:   cfg.TabSelector,
		table: cfg.Table,
	}
	for _, h := range cfg.Hosts {
		g.hosts[strings.ToLower(h)] = true
	}
	for _, p := range cfg.HomePaths {
		g.paths[cleanPath(p)] = true
	}
	if g.tab == "" {
		g.tab = `[role="tab"]`
	}
	if g.table == nil {
		g.table = locale.Default()
	}
	return g
}

// IsFeedURL reports whether raw points at the home feed.
func (g *Gate) IsFeedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "mobile.")
	if !g.hosts[host] {
		return false
	}
	return g.paths[cleanPath(u.Path)]
}

// IsActiveFeedView reports whether the page is the home feed with the
// recommended tab selected. Without any tab elements the home feed is
// assumed to be a single-tab layout.
func (g *Gate) IsActiveFeedView(ctx context.Context, doc dom.Document) (bool, error) {
	raw, err := doc.URL(ctx)
	if err != nil {
		return false, fmt.Errorf("gate: url: %w", err)
	}
	if !g.IsFeedURL(raw) {
		return false, nil
	}

	tabs, err := doc.QueryAll(ctx, g.tab)
	if err != nil {
		return false, fmt.Errorf("gate: tabs: %w", err)
	}

	followingSelected := false
	for _, tab := range tabs {
		selected, _, err := tab.Attr(ctx, "aria-selected")
		if err != nil {
			return false, fmt.Errorf("gate: tab state: %w", err)
		}
		if selected != "true" {
			continue
		}
		// An unreadable selected tab may be Following.
		text, err := tab.Text(ctx)
		if err != nil {
			return false, fmt.Errorf("gate: tab text: %w", err)
		}
		label, _, err := tab.Attr(ctx, "aria-label")
		if err != nil {
			return false, fmt.Errorf("gate: tab label: %w", err)
		}

		if g.table.Match(locale.ForYouTab, text) || g.table.Match(locale.ForYouTab, label) {
			return true, nil
		}
		if g.table.Match(locale.FollowingTab, text) || g.table.Match(locale.FollowingTab, label) {
			followingSelected = true
		}
	}
	return !followingSelected, nil
}

// IsInViewport reports whether any part of r intersects the viewport.
// Partially visible elements count.
func IsInViewport(r dom.Rect, vp dom.Viewport) bool {
	return r.Bottom > 0 && r.Right > 0 && r.Top < vp.Height && r.Left < vp.Width
}

// ElementInViewport is IsInViewport for a live element.
func ElementInViewport(ctx context.Context, el dom.Element, vp dom.Viewport) (bool, error) {
	r, err := el.Rect(ctx)
	if err != nil {
		return false, err
	}
	return IsInViewport(r, vp), nil
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
