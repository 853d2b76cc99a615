package menu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom/domtest"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/locale"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/poll"
)

const page = `
<div id="backdrop" data-rect="0,0,800,1280"></div>
<main>
  <article id="a">
    <a role="link" href="/alice">Alice</a>
    <div role="button" id="more" aria-label="More"></div>
  </article>
  <article id="b"><div role="button" id="caret" data-testid="caret"></div></article>
  <article id="c"><button id="gen" aria-label="その他の操作"></button></article>
  <article id="d"><p>nothing to click</p></article>
</main>`

func newOpener(doc *domtest.Document) *Opener {
	return New(doc, Config{PollInterval: time.Millisecond, PollAttempts: 5})
}

// toggleMenu makes selector open a menu with the given entries and close it
// on the next click.
func toggleMenu(doc *domtest.Document, selector, entries string) {
	doc.OnClick(selector, func() {
		if doc.Count(`[role="menu"]`) > 0 {
			doc.Remove(`[role="menu"]`)
			return
		}
		doc.Append("body", `<div role="menu" data-rect="100,100,300,400">`+entries+`</div>`)
	})
}

func TestFindTriggerOrder(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home", page)
	o := newOpener(doc)
	ctx := context.Background()

	cases := []struct {
		item string
		want string
	}{
		{"#a", "more"},
		{"#b", "caret"},
		{"#c", "gen"},
	}
	for _, tc := range cases {
		el, err := o.FindTrigger(ctx, doc.Element(tc.item))
		if err != nil {
			t.Fatalf("%s: FindTrigger: %v", tc.item, err)
		}
		id, _, _ := el.Attr(ctx, "id")
		if id != tc.want {
			t.Errorf("%s: got #%s, want #%s", tc.item, id, tc.want)
		}
	}

	if _, err := o.FindTrigger(ctx, doc.Element("#d")); !errors.Is(err, ErrNoTrigger) {
		t.Errorf("#d: got %v, want ErrNoTrigger", err)
	}
}

func TestOpenReadsEntriesAndCloses(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home", page)
	toggleMenu(doc, "#more", `<div role="menuitem">Unfollow @alice</div><div role="menuitem">Mute @alice</div>`)
	o := newOpener(doc)
	ctx := context.Background()

	s, err := o.Open(ctx, doc.Element("#a"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := len(s.Items()); got != 2 {
		t.Fatalf("items: got %d, want 2", got)
	}
	if _, ok := s.Find(locale.Mute); !ok {
		t.Error("mute entry not found")
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if doc.Count(`[role="menu"]`) != 0 {
		t.Error("menu still open")
	}
	if got := doc.ClickCount("#more"); got != 2 {
		t.Errorf("trigger clicks: got %d, want 2", got)
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := doc.Clicks(); got != 2 {
		t.Errorf("second Close clicked something: %d clicks", got)
	}
}

func TestOpenNoTriggerClicksNothing(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home", page)
	o := newOpener(doc)

	_, err := o.Open(context.Background(), doc.Element("#d"))
	if !errors.Is(err, ErrNoTrigger) {
		t.Fatalf("got %v, want ErrNoTrigger", err)
	}
	if doc.Clicks() != 0 {
		t.Errorf("clicks: got %d, want 0", doc.Clicks())
	}
}

// liveTrigger refuses clicks under a finished context, as a CDP call would.
type liveTrigger struct{ dom.Element }

func (l liveTrigger) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Element.Click(ctx)
}

func TestCloseAfterJobDeadline(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home", page)
	toggleMenu(doc, "#more", `<div role="menuitem">Unfollow @alice</div>`)
	o := newOpener(doc)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := o.OpenTrigger(ctx, liveTrigger{doc.Element("#more")})
	if err != nil {
		t.Fatalf("OpenTrigger: %v", err)
	}
	cancel()

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if doc.Count(`[role="menu"]`) != 0 {
		t.Error("menu left open after the deadline")
	}
	if got := doc.ClickCount("#more"); got != 2 {
		t.Errorf("trigger clicks: got %d, want open + close", got)
	}
}

func TestOpenExhaustedClosesMenu(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home", page)
	o := newOpener(doc)

	_, err := o.Open(context.Background(), doc.Element("#a"))
	if !errors.Is(err, poll.ErrExhausted) {
		t.Fatalf("got %v, want ErrExhausted", err)
	}
	if got := doc.ClickCount("#more"); got != 2 {
		t.Errorf("trigger clicks: got %d, want open + close", got)
	}
}

func TestCloseFallsBackToOutsideClick(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home", page)
	toggleMenu(doc, "#more", `<div role="menuitem">Follow @alice</div>`)
	o := newOpener(doc)
	ctx := context.Background()

	s, err := o.Open(ctx, doc.Element("#a"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	doc.Remove("#a")

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := doc.ClickCount("#backdrop"); got != 1 {
		t.Errorf("backdrop clicks: got %d, want 1", got)
	}
}

func TestActivateEndsSession(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home", page)
	toggleMenu(doc, "#more", `<div role="menuitem" id="ni">Not interested in this post</div>`)
	o := newOpener(doc)
	ctx := context.Background()

	s, err := o.Open(ctx, doc.Element("#a"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	it, ok := s.Find(locale.NotInterested)
	if !ok {
		t.Fatal("not interested entry not found")
	}
	if err := s.Activate(ctx, it); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := doc.ClickCount("#more"); got != 1 {
		t.Errorf("trigger clicks: got %d, want 1", got)
	}
	if got := doc.ClickCount("#ni"); got != 1 {
		t.Errorf("entry clicks: got %d, want 1", got)
	}
}
