package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom/domtest"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/locale"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/menu"
)

const page = `
<article id="a">
  <a role="link" href="/alice">Alice</a>
  <div role="button" id="more" aria-label="More"></div>
</article>
<article id="bare"><p>no controls</p></article>`

func setup(t *testing.T, entries string) (*domtest.Document, *Prober, *[]State) {
	t.Helper()
	doc := domtest.MustParse("https://x.com/home", page)
	if entries != "" {
		doc.OnClick("#more", func() {
			if doc.Count(`[role="menu"]`) > 0 {
				doc.Remove(`[role="menu"]`)
				return
			}
			doc.Append("body", `<div role="menu">`+entries+`</div>`)
		})
	}
	var states []State
	p := New(Config{
		Opener: menu.New(doc, menu.Config{PollInterval: time.Millisecond, PollAttempts: 3}),
		OnTransition: func(_, to State) {
			states = append(states, to)
		},
	})
	return doc, p, &states
}

func TestResolve(t *testing.T) {
	p := New(Config{Opener: nil})
	cases := []struct {
		labels []string
		want   Verdict
	}{
		{[]string{"Unfollow @alice", "Mute @alice"}, Following},
		{[]string{"@aliceさんのフォローを解除"}, Following},
		{[]string{"Follow @alice", "Not interested in this post"}, NotFollowing},
		{[]string{"@aliceさんをフォロー"}, NotFollowing},
		{[]string{"Embed post", "Report post"}, Undetermined},
		{nil, Undetermined},
	}
	for _, tc := range cases {
		if got := p.Resolve(tc.labels); got != tc.want {
			t.Errorf("Resolve(%q): got %s, want %s", tc.labels, got, tc.want)
		}
	}
}

func TestProbeFollowingClosesMenu(t *testing.T) {
	doc, p, states := setup(t, `<div role="menuitem">Unfollow @alice</div>`)
	var seen Verdict = -1

	res, err := p.Probe(context.Background(), doc.Element("#a"), func(_ context.Context, v Verdict, _ *menu.Session) (bool, error) {
		seen = v
		return false, nil
	})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.Verdict != Following {
		t.Errorf("verdict: got %s, want following", res.Verdict)
	}
	if seen != Following {
		t.Errorf("follow-up saw %s, want following", seen)
	}
	if doc.Count(`[role="menu"]`) != 0 {
		t.Error("menu left open")
	}
	want := []State{MenuOpening, MenuPolling, Resolved, Closed}
	if len(*states) != len(want) {
		t.Fatalf("states: got %v, want %v", *states, want)
	}
	for i := range want {
		if (*states)[i] != want[i] {
			t.Errorf("state %d: got %s, want %s", i, (*states)[i], want[i])
		}
	}
}

func TestProbeNotFollowingRunsFollowUp(t *testing.T) {
	doc, p, _ := setup(t, `<div role="menuitem">Follow @alice</div><div role="menuitem" id="ni">Not interested in this post</div>`)

	res, err := p.Probe(context.Background(), doc.Element("#a"), func(ctx context.Context, v Verdict, s *menu.Session) (bool, error) {
		if v != NotFollowing {
			return false, nil
		}
		it, ok := s.Find(locale.NotInterested)
		if !ok {
			return false, nil
		}
		err := s.Activate(ctx, it)
		doc.Remove(`[role="menu"]`)
		return true, err
	})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.Verdict != NotFollowing || !res.FollowUp {
		t.Errorf("got %+v, want not_following with follow-up", res)
	}
	if got := doc.ClickCount("#more"); got != 1 {
		t.Errorf("trigger clicks: got %d, want 1 (menu consumed)", got)
	}
}

func TestProbeFollowUpDeclinedClosesMenu(t *testing.T) {
	doc, p, _ := setup(t, `<div role="menuitem">Follow @alice</div>`)

	res, err := p.Probe(context.Background(), doc.Element("#a"), func(context.Context, Verdict, *menu.Session) (bool, error) {
		return false, errors.New("no not-interested entry")
	})
	if err == nil {
		t.Fatal("expected follow-up error")
	}
	if res.Verdict != NotFollowing {
		t.Errorf("verdict: got %s, want not_following", res.Verdict)
	}
	if doc.Count(`[role="menu"]`) != 0 {
		t.Error("menu left open")
	}
}

func TestProbeNoTrigger(t *testing.T) {
	doc, p, states := setup(t, "")

	res, err := p.Probe(context.Background(), doc.Element("#bare"), func(context.Context, Verdict, *menu.Session) (bool, error) {
		t.Error("follow-up must not run without a menu")
		return false, nil
	})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.Verdict != Undetermined {
		t.Errorf("verdict: got %s, want undetermined", res.Verdict)
	}
	if doc.Clicks() != 0 {
		t.Errorf("clicks: got %d, want 0", doc.Clicks())
	}
	if last := (*states)[len(*states)-1]; last != Closed {
		t.Errorf("final state: got %s, want closed", last)
	}
}

func TestProbeMenuNeverRenders(t *testing.T) {
	doc, p, _ := setup(t, "")

	res, err := p.Probe(context.Background(), doc.Element("#a"), nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.Verdict != Undetermined {
		t.Errorf("verdict: got %s, want undetermined", res.Verdict)
	}
}
