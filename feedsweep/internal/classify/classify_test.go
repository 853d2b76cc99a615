package classify

import (
	"context"
	"testing"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom/domtest"
)

func TestShouldMutePromoted(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"🎉 #sale", true},
		{"#sale", false},
		{"Big news\n\nread more", false},
		{"Big news ✨\n \nread more", true},
		{"#a #b\n\nbuy", true},
		{"order 1234 now", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ShouldMutePromoted(tc.text); got != tc.want {
			t.Errorf("ShouldMutePromoted(%q): got %v, want %v (signals %v)", tc.text, got, tc.want, Signals(tc.text))
		}
	}
}

func TestContainsHashtag(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"#go", true},
		{"x #タグ y", true},
		{"# not", false},
		{"##", false},
		{"no tag", false},
	}
	for _, tc := range cases {
		if got := ContainsHashtag(tc.text); got != tc.want {
			t.Errorf("ContainsHashtag(%q): got %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestContainsEmojiIgnoresASCII(t *testing.T) {
	if ContainsEmoji("#1 * 2") {
		t.Error("ASCII digits and symbols must not count as emoji")
	}
	if !ContainsEmoji("nice 👍") {
		t.Error("thumbs up must count as emoji")
	}
	if !ContainsEmoji("sunny ☀") {
		t.Error("misc symbols must count as emoji")
	}
}

func TestIsPromoted(t *testing.T) {
	c := New(Config{})
	if !c.IsPromoted("Brand\nPromoted\nBuy now") {
		t.Error("en marker not detected")
	}
	if !c.IsPromoted("ブランド プロモーション") {
		t.Error("ja marker not detected")
	}
	if c.IsPromoted("just a post") {
		t.Error("false positive")
	}
}

const reshareFixture = `
<article id="rt">
  <span data-testid="socialContext">alice reposted</span>
  <a role="link" href="/alice">Alice</a>
  <div id="orig">
    <div><a role="link" href="/bob">Bob</a></div>
    <a role="link" href="/bob/status/42">3h</a>
    <p>hello world</p>
  </div>
</article>`

func TestClassifyReshare(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home", reshareFixture)
	c := New(Config{})

	f, err := c.Classify(context.Background(), doc.Element("#rt"))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !f.Reshare {
		t.Error("expected reshare")
	}
	if f.Author != "alice" {
		t.Errorf("author: got %q, want alice", f.Author)
	}
	if f.OriginalAuthor != "bob" {
		t.Errorf("original author: got %q, want bob", f.OriginalAuthor)
	}
	if f.Promoted {
		t.Error("unexpected promoted")
	}
}

func TestIsReshareByKeyword(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home", `<article id="a"><p>carol がリポストしました</p></article>`)
	c := New(Config{})
	item := doc.Element("#a")
	text, _ := item.Text(context.Background())

	ok, err := c.IsReshare(context.Background(), item, text)
	if err != nil || !ok {
		t.Fatalf("IsReshare: got %v (err %v), want true", ok, err)
	}
}

func TestAuthorHandle(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
		ok   bool
	}{
		{"first profile link", `<article id="a"><a role="link" href="/dave">D</a><a role="link" href="/erin">E</a></article>`, "dave", true},
		{"skips permalink", `<article id="a"><a role="link" href="/dave/status/1">1h</a><a role="link" href="/erin">E</a></article>`, "erin", true},
		{"no links", `<article id="a"><p>text</p></article>`, "", false},
		{"external only", `<article id="a"><a role="link" href="https://example.com/x">x</a></article>`, "", false},
	}
	c := New(Config{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := domtest.MustParse("https://x.com/home", tc.html)
			got, ok, err := c.AuthorHandle(context.Background(), doc.Element("#a"))
			if err != nil {
				t.Fatalf("AuthorHandle: %v", err)
			}
			if got != tc.want || ok != tc.ok {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestOriginalAuthorMentionFallback(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home",
		`<article id="a"><a role="link" href="/frank">F</a><p>@frank reposted @grace: hi</p></article>`)
	c := New(Config{})
	item := doc.Element("#a")
	text, _ := item.Text(context.Background())

	got, ok, err := c.OriginalAuthorHandle(context.Background(), item, text, "frank")
	if err != nil {
		t.Fatalf("OriginalAuthorHandle: %v", err)
	}
	if !ok || got != "grace" {
		t.Errorf("got (%q, %v), want (grace, true)", got, ok)
	}
}

func TestOriginalAuthorSection(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home", reshareFixture)
	c := New(Config{})

	sec, err := c.OriginalAuthorSection(context.Background(), doc.Element("#rt"), "bob")
	if err != nil {
		t.Fatalf("OriginalAuthorSection: %v", err)
	}
	if sec == nil {
		t.Fatal("expected a section")
	}
	if id, _, _ := sec.Attr(context.Background(), "id"); id != "" {
		t.Errorf("section: got #%s, want the link's wrapper div", id)
	}

	sec, err = c.OriginalAuthorSection(context.Background(), doc.Element("#rt"), "nobody")
	if err != nil || sec != nil {
		t.Errorf("unknown handle: got %v (err %v), want nil", sec, err)
	}
}
