package ledger

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
)

func TestTryClaimOnce(t *testing.T) {
	l := New()
	if !l.TryClaim(1) {
		t.Fatal("first claim must succeed")
	}
	if l.TryClaim(1) {
		t.Fatal("second claim must fail")
	}
	if got := l.State(1); got != Pending {
		t.Errorf("state: got %s, want pending", got)
	}
	l.MarkProcessed(1)
	if l.TryClaim(1) {
		t.Fatal("claim after completion must fail")
	}
	if got := l.State(1); got != Done {
		t.Errorf("state: got %s, want done", got)
	}
}

func TestTryClaimConcurrent(t *testing.T) {
	l := New()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryClaim(7) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("winners: got %d, want 1", wins.Load())
	}
}

func TestMarkProcessedWithoutClaim(t *testing.T) {
	l := New()
	l.MarkProcessed(3)
	if !l.Has(3) {
		t.Fatal("item must be in the ledger")
	}
	if l.TryClaim(3) {
		t.Fatal("claim must fail")
	}
}

func TestLastActivityAndReset(t *testing.T) {
	l := New()
	if !l.LastActivity().IsZero() {
		t.Fatal("fresh ledger must have no activity")
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return at }

	l.TryClaim(1)
	l.TryClaim(2)
	l.MarkProcessed(2)
	if got := l.LastActivity(); !got.Equal(at) {
		t.Errorf("last activity: got %v, want %v", got, at)
	}
	pending, done := l.Counts()
	if pending != 1 || done != 1 {
		t.Errorf("counts: got %d/%d, want 1/1", pending, done)
	}

	l.Reset()
	if l.Len() != 0 || l.Has(1) {
		t.Error("reset must clear entries")
	}
	if !l.TryClaim(1) {
		t.Error("claim after reset must succeed")
	}
}

func TestHiddenNeverLeaks(t *testing.T) {
	h := NewHidden()
	prior := dom.Style{Display: "flex", Visibility: "visible"}

	if !h.Acquire(5, prior) {
		t.Fatal("first acquire must succeed")
	}
	if h.Acquire(5, dom.Style{Display: "none"}) {
		t.Fatal("second acquire must fail")
	}
	got, ok := h.Release(5)
	if !ok || got != prior {
		t.Errorf("release: got %+v %v, want %+v true", got, ok, prior)
	}
	if _, ok := h.Release(5); ok {
		t.Error("double release must report false")
	}
	if h.Len() != 0 {
		t.Errorf("len: got %d, want 0", h.Len())
	}
}
