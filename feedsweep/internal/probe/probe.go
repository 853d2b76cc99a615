// CLAUDE:SUMMARY Relationship prober: opens an item's overflow menu and reads follow/unfollow entries into a Verdict.
// Package probe determines whether the signed-in user follows an item's
// author. The page offers no direct query for that: the only evidence is
// whether the item's overflow menu offers "Follow" or "Unfollow".
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/locale"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/menu"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/poll"
)

// Verdict is the outcome of a relationship probe.
type Verdict int

const (
	Undetermined Verdict = iota
	Following
	NotFollowing
)

func (v Verdict) String() string {
	switch v {
	case Following:
		return "following"
	case NotFollowing:
		return "not_following"
	default:
		return "undetermined"
	}
}

// State is a step of one probe.
type State int

const (
	Idle State = iota
	MenuOpening
	MenuPolling
	Resolved
	Closed
)

func (s State) String() string {
	switch s {
	case MenuOpening:
		return "menu_opening"
	case MenuPolling:
		return "menu_polling"
	case Resolved:
		return "resolved"
	case Closed:
		return "closed"
	default:
		return "idle"
	}
}

// FollowUp runs on the still-open menu once the verdict is known. It
// reports whether it consumed the menu; when it did not, the prober closes
// the menu itself.
type FollowUp func(ctx context.Context, v Verdict, s *menu.Session) (consumed bool, err error)

// Config configures a Prober.
type Config struct {
	Opener *menu.Opener
	Table  *locale.Table
	Settle time.Duration // pause after the menu is gone
	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)
	Logger       *slog.Logger
}

// Prober runs probes. It holds no per-probe state and may be shared, but
// the page only tolerates one open menu at a time.
type Prober struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Prober.
func New(cfg Config) *Prober {
	if cfg.Table == nil {
		cfg.Table = locale.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{cfg: cfg, logger: logger}
}

// Result is what a probe learned.
type Result struct {
	Verdict  Verdict
	Entries  []string // menu labels, when the menu opened
	FollowUp bool     // the follow-up consumed the menu
}

type run struct {
	p     *Prober
	state State
}

func (r *run) to(s State) {
	if r.p.cfg.OnTransition != nil {
		r.p.cfg.OnTransition(r.state, s)
	}
	r.state = s
}

// Probe opens the overflow menu found in scope and resolves a verdict from
// its entries. A missing control or a menu that never renders resolves as
// Undetermined without error, and follow is not called. The menu is always
// closed or consumed before Probe returns.
func (p *Prober) Probe(ctx context.Context, scope dom.Element, follow FollowUp) (Result, error) {
	r := &run{p: p, state: Idle}
	defer func() {
		if r.state != Closed {
			r.to(Closed)
		}
	}()

	r.to(MenuOpening)
	trigger, err := p.cfg.Opener.FindTrigger(ctx, scope)
	if errors.Is(err, menu.ErrNoTrigger) {
		p.logger.Debug("probe: no overflow control")
		r.to(Resolved)
		return Result{Verdict: Undetermined}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("probe: %w", err)
	}

	r.to(MenuPolling)
	s, err := p.cfg.Opener.OpenTrigger(ctx, trigger)
	if errors.Is(err, poll.ErrExhausted) {
		p.logger.Debug("probe: menu never rendered")
		r.to(Resolved)
		p.settle(ctx)
		return Result{Verdict: Undetermined}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("probe: %w", err)
	}

	res := Result{Verdict: p.Resolve(s.Texts()), Entries: s.Texts()}
	r.to(Resolved)

	var followErr error
	if follow != nil {
		res.FollowUp, followErr = follow(ctx, res.Verdict, s)
	}
	if !res.FollowUp {
		if err := s.Close(ctx); err != nil {
			p.logger.Warn("probe: menu close failed", "error", err)
		}
	}
	r.to(Closed)
	p.settle(ctx)

	if followErr != nil {
		return res, fmt.Errorf("probe: follow-up: %w", followErr)
	}
	return res, nil
}

// Resolve maps menu labels to a verdict: an unfollow entry means Following,
// a follow entry without unfollow means NotFollowing.
func (p *Prober) Resolve(labels []string) Verdict {
	for _, l := range labels {
		if p.cfg.Table.Match(locale.Unfollow, l) {
			return Following
		}
	}
	for _, l := range labels {
		if p.cfg.Table.Match(locale.Follow, l) {
			return NotFollowing
		}
	}
	return Undetermined
}

func (p *Prober) settle(ctx context.Context) {
	_ = poll.Sleep(ctx, p.cfg.Settle)
}
