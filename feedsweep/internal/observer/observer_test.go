package observer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom/domtest"
	"github.com/hazyhaar/feedsweep/feedsweep/internal/scheduler"
)

func TestParseEvents(t *testing.T) {
	evs, err := parseEvents(`[{"op":"inserted","n":3},{"op":"navigate","url":"https://x.com/home"},{"op":"scroll"}]`)
	if err != nil {
		t.Fatalf("parseEvents: %v", err)
	}
	want := []event{{Op: opInserted, N: 3}, {Op: opNavigate, URL: "https://x.com/home"}, {Op: opScroll}}
	if len(evs) != len(want) {
		t.Fatalf("got %d events, want %d", len(evs), len(want))
	}
	for i := range want {
		if evs[i] != want[i] {
			t.Errorf("event %d: got %+v, want %+v", i, evs[i], want[i])
		}
	}

	if _, err := parseEvents(`{"op":"scroll"}`); err == nil {
		t.Error("expected error for non-array payload")
	}
}

func TestCoalescerWindow(t *testing.T) {
	c := newCoalescer(10*time.Millisecond, 100)
	if c.timerC() != nil {
		t.Fatal("timer armed while idle")
	}
	if c.add(2) || c.add(3) {
		t.Fatal("flush requested below max")
	}
	select {
	case <-c.timerC():
	case <-time.After(time.Second):
		t.Fatal("window never expired")
	}
	if got := c.take(); got != 5 {
		t.Errorf("take: got %d, want 5", got)
	}
	if c.timerC() != nil {
		t.Error("timer still armed after take")
	}
}

func TestCoalescerMax(t *testing.T) {
	c := newCoalescer(time.Hour, 4)
	c.add(3)
	if !c.add(1) {
		t.Error("expected immediate flush at max")
	}
	if got := c.take(); got != 4 {
		t.Errorf("take: got %d, want 4", got)
	}
}

type fakeCollector struct {
	mu    sync.Mutex
	items []dom.Element
	err   error
	calls int
}

func (f *fakeCollector) ElementsByJS(context.Context, string) ([]dom.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := f.items
	f.items = nil
	return out, f.err
}

type signals struct {
	mu  sync.Mutex
	got []scheduler.Signal
}

func (s *signals) notify(sig scheduler.Signal) {
	s.mu.Lock()
	s.got = append(s.got, sig)
	s.mu.Unlock()
}

func (s *signals) all() []scheduler.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scheduler.Signal(nil), s.got...)
}

func runLoop(t *testing.T, o *Observer) (chan<- []event, chan<- string) {
	t.Helper()
	events := make(chan []event, 8)
	resets := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.loop(ctx, events, resets)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return events, resets
}

func TestLoopForwardsSignals(t *testing.T) {
	doc := domtest.MustParse("https://x.com/home", `<article id="a"></article><article id="b"></article>`)
	col := &fakeCollector{}
	all, err := doc.QueryAll(context.Background(), "article")
	require.NoError(t, err)
	col.items = all

	rec := &signals{}
	o := New(Config{Collector: col, Notify: rec.notify, Coalesce: 5 * time.Millisecond})
	events, resets := runLoop(t, o)

	events <- []event{{Op: opLoaded, URL: "https://x.com/home"}, {Op: opInserted, N: 1}, {Op: opInserted, N: 1}, {Op: opScroll}}
	require.Eventually(t, func() bool { return len(rec.all()) == 3 }, time.Second, 2*time.Millisecond)

	got := rec.all()
	assert.Equal(t, scheduler.Loaded, got[0].Kind)
	assert.Equal(t, scheduler.Scrolled, got[1].Kind)
	assert.Equal(t, scheduler.Inserted, got[2].Kind)
	assert.Len(t, got[2].Items, 2)
	col.mu.Lock()
	assert.Equal(t, 1, col.calls, "inserts within the window share one collection")
	col.mu.Unlock()

	events <- []event{{Op: opNavigate, URL: "https://x.com/explore"}}
	resets <- "https://x.com/home"
	require.Eventually(t, func() bool { return len(rec.all()) == 5 }, time.Second, 2*time.Millisecond)
	got = rec.all()
	kinds := []scheduler.Kind{got[3].Kind, got[4].Kind}
	assert.ElementsMatch(t, []scheduler.Kind{scheduler.Navigated, scheduler.Reset}, kinds)
}

func TestCollectFailureIsQuiet(t *testing.T) {
	col := &fakeCollector{err: errors.New("target closed")}
	rec := &signals{}
	o := New(Config{Collector: col, Notify: rec.notify, MaxPending: 1})
	events, _ := runLoop(t, o)

	events <- []event{{Op: opInserted, N: 1}}
	require.Eventually(t, func() bool {
		col.mu.Lock()
		defer col.mu.Unlock()
		return col.calls == 1
	}, time.Second, 2*time.Millisecond)
	assert.Empty(t, rec.all())
}
