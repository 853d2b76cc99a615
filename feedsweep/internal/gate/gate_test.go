package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom/domtest"
)

func newGate() *Gate {
	return New(Config{
		Hosts:     []string{"x.com", "twitter.com"},
		HomePaths: []string{"/home", "/"},
	})
}

func TestIsFeedURL(t *testing.T) {
	g := newGate()
	cases := []struct {
		url  string
		want bool
	}{
		{"https://x.com/home", true},
		{"https://x.com/home/", true},
		{"https://x.com/", true},
		{"https://x.com", true},
		{"https://twitter.com/home?foo=1", true},
		{"https://mobile.twitter.com/home", true},
		{"https://x.com/foo", false},
		{"https://x.com/foo/status/1", false},
		{"https://example.com/home", false},
		{"::bad", false},
	}
	for _, tc := range cases {
		if got := g.IsFeedURL(tc.url); got != tc.want {
			t.Errorf("IsFeedURL(%q): got %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestIsActiveFeedView(t *testing.T) {
	cases := []struct {
		name string
		url  string
		html string
		want bool
	}{
		{
			name: "for you selected",
			url:  "https://x.com/home",
			html: `<div role="tab" aria-selected="true">For you</div><div role="tab" aria-selected="false">Following</div>`,
			want: true,
		},
		{
			name: "following selected",
			url:  "https://x.com/home",
			html: `<div role="tab" aria-selected="false">おすすめ</div><div role="tab" aria-selected="true">フォロー中</div>`,
			want: false,
		},
		{
			name: "aria label match",
			url:  "https://x.com/home",
			html: `<div role="tab" aria-selected="true" aria-label="おすすめ"><span></span></div>`,
			want: true,
		},
		{
			name: "no tabs on home",
			url:  "https://x.com/home",
			html: `<main></main>`,
			want: true,
		},
		{
			name: "not the feed",
			url:  "https://x.com/someone",
			html: `<div role="tab" aria-selected="true">For you</div>`,
			want: false,
		},
	}

	g := newGate()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := domtest.MustParse(tc.url, tc.html)
			got, err := g.IsActiveFeedView(context.Background(), doc)
			if err != nil {
				t.Fatalf("IsActiveFeedView: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

// staleTabs hands out tabs the page has already replaced.
type staleTabs struct{ *domtest.Document }

type staleTab struct{ dom.Element }

func (staleTab) Text(context.Context) (string, error) { return "", dom.ErrDetached }

func (d staleTabs) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	els, err := d.Document.QueryAll(ctx, selector)
	for i := range els {
		els[i] = staleTab{els[i]}
	}
	return els, err
}

func TestDetachedSelectedTabClosesGate(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home",
		`<div role="tab" aria-selected="false">For you</div><div role="tab" aria-selected="true">Following</div>`)

	got, err := newGate().IsActiveFeedView(context.Background(), staleTabs{doc})
	if !errors.Is(err, dom.ErrDetached) {
		t.Errorf("err: got %v, want ErrDetached", err)
	}
	if got {
		t.Error("gate open while the selected tab could not be read")
	}
}

func TestIsInViewportPartial(t *testing.T) {
	vp := dom.Viewport{Width: 1000, Height: 800}
	cases := []struct {
		name string
		r    dom.Rect
		want bool
	}{
		{"fully inside", dom.Rect{Top: 10, Left: 10, Bottom: 200, Right: 600}, true},
		{"scrolled past top", dom.Rect{Top: -300, Left: 0, Bottom: 5, Right: 600}, true},
		{"hanging below", dom.Rect{Top: 790, Left: 0, Bottom: 1200, Right: 600}, true},
		{"above", dom.Rect{Top: -300, Left: 0, Bottom: 0, Right: 600}, false},
		{"below", dom.Rect{Top: 800, Left: 0, Bottom: 1000, Right: 600}, false},
		{"left of", dom.Rect{Top: 10, Left: -500, Bottom: 200, Right: 0}, false},
		{"right of", dom.Rect{Top: 10, Left: 1000, Bottom: 200, Right: 1400}, false},
	}
	for _, tc := range cases {
		if got := IsInViewport(tc.r, vp); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestElementInViewport(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home",
		`<article id="a" data-rect="-50,0,20,600"></article><article id="b" data-rect="900,0,1200,600"></article>`)
	vp, _ := doc.Viewport(context.Background())

	in, err := ElementInViewport(context.Background(), doc.Element("#a"), vp)
	if err != nil || !in {
		t.Errorf("#a: got %v (err %v), want in viewport", in, err)
	}
	in, err = ElementInViewport(context.Background(), doc.Element("#b"), vp)
	if err != nil || in {
		t.Errorf("#b: got %v (err %v), want out of viewport", in, err)
	}
}
