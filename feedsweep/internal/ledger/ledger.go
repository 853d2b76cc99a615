// CLAUDE:SUMMARY Processed-item ledger: claim-before-work dedup set keyed by node id, with last-activity liveness.
// Package ledger remembers which feed items were already taken up by the
// engine. An item is claimed before any asynchronous work starts on it and
// stays in the ledger for the lifetime of the document.
package ledger

import (
	"sync"
	"time"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
)

// State is the progress of a claimed item.
type State uint8

const (
	// Unknown means the item was never claimed.
	Unknown State = iota
	// Pending items are claimed and waiting in the queue or being worked on.
	Pending
	// Done items are finished, whatever the outcome.
	Done
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Ledger is a set of claimed node ids. It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	entries map[dom.NodeID]State
	last    time.Time
	now     func() time.Time
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{
		entries: make(map[dom.NodeID]State),
		now:     time.Now,
	}
}

// TryClaim marks id pending and reports true when it was not in the ledger
// yet. A false return means another trigger already owns the item.
func (l *Ledger) TryClaim(id dom.NodeID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[id]; ok {
		return false
	}
	l.entries[id] = Pending
	l.last = l.now()
	return true
}

// MarkProcessed records id as done, claiming it first when needed.
func (l *Ledger) MarkProcessed(id dom.NodeID) {
	l.mu.Lock()
	l.entries[id] = Done
	l.last = l.now()
	l.mu.Unlock()
}

// Has reports whether id was claimed.
func (l *Ledger) Has(id dom.NodeID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[id]
	return ok
}

// State returns the state of id.
func (l *Ledger) State(id dom.NodeID) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[id]
}

// LastActivity returns the time of the latest claim or completion. It is
// the zero time for a fresh ledger.
func (l *Ledger) LastActivity() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Len returns the number of claimed items.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Counts returns how many items are pending and done.
func (l *Ledger) Counts() (pending, done int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.entries {
		if s == Pending {
			pending++
		} else {
			done++
		}
	}
	return pending, done
}

// Reset forgets every entry. Called when the document is replaced.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.entries = make(map[dom.NodeID]State)
	l.last = time.Time{}
	l.mu.Unlock()
}
