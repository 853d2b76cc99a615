// CLAUDE:SUMMARY Read-only feed item predicates: promoted, reshare, author/original-author handles, text heuristics.
// Package classify derives the cheap facts about a feed item: everything
// that can be read from its subtree without opening a menu.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/locale"
)

// Config holds the selectors the classifier reads.
type Config struct {
	ProfileLink   string
	SocialContext string
	ReshareAction string
	Table         *locale.Table
}

// Classifier reads feed items.
type Classifier struct {
	cfg Config
}

// New creates a Classifier.
func New(cfg Config) *Classifier {
	if cfg.ProfileLink == "" {
		cfg.ProfileLink = `a[role="link"][href^="/"]`
	}
	if cfg.SocialContext == "" {
		cfg.SocialContext = `[data-testid="socialContext"]`
	}
	if cfg.ReshareAction == "" {
		cfg.ReshareAction = `[data-testid="retweet"]`
	}
	if cfg.Table == nil {
		cfg.Table = locale.Default()
	}
	return &Classifier{cfg: cfg}
}

// Facts is everything known about an item before any menu is opened.
type Facts struct {
	Text           string
	Author         string // empty when extraction failed
	Promoted       bool
	Reshare        bool
	OriginalAuthor string // reshares only; may be empty
	Signals        []string
}

// Classify reads all facts of item in one pass.
func (c *Classifier) Classify(ctx context.Context, item dom.Element) (Facts, error) {
	text, err := item.Text(ctx)
	if err != nil {
		return Facts{}, fmt.Errorf("classify: text: %w", err)
	}
	f := Facts{Text: text, Signals: Signals(text)}

	if author, ok, err := c.AuthorHandle(ctx, item); err != nil {
		return f, err
	} else if ok {
		f.Author = author
	}

	f.Promoted = c.IsPromoted(text)

	f.Reshare, err = c.IsReshare(ctx, item, text)
	if err != nil {
		return f, err
	}
	if f.Reshare {
		if orig, ok, err := c.OriginalAuthorHandle(ctx, item, text, f.Author); err != nil {
			return f, err
		} else if ok {
			f.OriginalAuthor = orig
		}
	}
	return f, nil
}

// IsPromoted reports whether the item text carries the promoted marker.
func (c *Classifier) IsPromoted(text string) bool {
	return c.cfg.Table.Match(locale.Promoted, text)
}

// IsReshare checks the social-context marker, the reshare action marker and
// the reshare keyword, in that order.
func (c *Classifier) IsReshare(ctx context.Context, item dom.Element, text string) (bool, error) {
	for _, sel := range []string{c.cfg.SocialContext, c.cfg.ReshareAction} {
		el, err := item.Query(ctx, sel)
		if err != nil {
			return false, fmt.Errorf("classify: reshare marker: %w", err)
		}
		if el != nil {
			return true, nil
		}
	}
	return c.cfg.Table.Match(locale.Reshare, text), nil
}

// AuthorHandle returns the first profile link target that is a bare
// profile path (not a post permalink) without whitespace.
func (c *Classifier) AuthorHandle(ctx context.Context, item dom.Element) (string, bool, error) {
	hrefs, err := c.linkTargets(ctx, item)
	if err != nil {
		return "", false, err
	}
	for _, href := range hrefs {
		if strings.Contains(href, "/status/") {
			continue
		}
		if h := handleOf(href); h != "" && !strings.ContainsAny(h, " \t\n") {
			return h, true, nil
		}
	}
	return "", false, nil
}

// OriginalAuthorHandle returns the first linked handle different from
// author. Failing that it falls back to @mentions in text, skipping the
// first one (the resharer).
func (c *Classifier) OriginalAuthorHandle(ctx context.Context, item dom.Element, text, author string) (string, bool, error) {
	hrefs, err := c.linkTargets(ctx, item)
	if err != nil {
		return "", false, err
	}
	for _, href := range hrefs {
		if h := handleOf(href); h != "" && h != author {
			return h, true, nil
		}
	}

	matches := mentionRe.FindAllStringSubmatch(text, -1)
	for i := 1; i < len(matches); i++ {
		if h := matches[i][1]; h != author {
			return h, true, nil
		}
	}
	return "", false, nil
}

// OriginalAuthorSection returns the part of a reshare that belongs to the
// original author: the closest ancestor, at most five levels above the
// author's link, that holds a link to exactly /handle. It returns nil when
// no such section exists.
func (c *Classifier) OriginalAuthorSection(ctx context.Context, item dom.Element, handle string) (dom.Element, error) {
	if handle == "" {
		return nil, nil
	}
	links, err := item.QueryAll(ctx, c.cfg.ProfileLink)
	if err != nil {
		return nil, fmt.Errorf("classify: links: %w", err)
	}
	var link dom.Element
	for _, l := range links {
		href, _, err := l.Attr(ctx, "href")
		if err == nil && strings.Contains(href, handle) {
			link = l
			break
		}
	}
	if link == nil {
		return nil, nil
	}

	exact := fmt.Sprintf(`a[href="/%s"]`, handle)
	parent, err := link.Parent(ctx)
	for depth := 0; parent != nil && err == nil && depth < 5; depth++ {
		found, qerr := parent.Query(ctx, exact)
		if qerr == nil && found != nil {
			return parent, nil
		}
		parent, err = parent.Parent(ctx)
	}
	return nil, nil
}

func (c *Classifier) linkTargets(ctx context.Context, item dom.Element) ([]string, error) {
	links, err := item.QueryAll(ctx, c.cfg.ProfileLink)
	if err != nil {
		return nil, fmt.Errorf("classify: links: %w", err)
	}
	hrefs := make([]string, 0, len(links))
	for _, l := range links {
		href, ok, err := l.Attr(ctx, "href")
		if err != nil || !ok || !strings.HasPrefix(href, "/") {
			continue
		}
		hrefs = append(hrefs, href)
	}
	return hrefs, nil
}

// handleOf returns the first path segment of a site-relative href.
func handleOf(href string) string {
	p := strings.TrimPrefix(href, "/")
	if i := strings.IndexAny(p, "/?#"); i >= 0 {
		p = p[:i]
	}
	return p
}
