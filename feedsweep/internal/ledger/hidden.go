package ledger

import (
	"sync"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
)

// Hidden maps the node id of a hidden item to the style it had before it
// was hidden. Entries are added on hide and removed on show or dismissal.
type Hidden struct {
	mu      sync.Mutex
	entries map[dom.NodeID]dom.Style
}

// NewHidden creates an empty registry.
func NewHidden() *Hidden {
	return &Hidden{entries: make(map[dom.NodeID]dom.Style)}
}

// Acquire records the prior style of id. It reports false, and keeps the
// first style, when id is already hidden.
func (h *Hidden) Acquire(id dom.NodeID, prior dom.Style) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.entries[id]; ok {
		return false
	}
	h.entries[id] = prior
	return true
}

// Release removes id and returns the style it had before hiding.
func (h *Hidden) Release(id dom.NodeID) (dom.Style, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.entries[id]
	if ok {
		delete(h.entries, id)
	}
	return s, ok
}

// Len returns the number of hidden items.
func (h *Hidden) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Reset drops every entry without restoring anything.
func (h *Hidden) Reset() {
	h.mu.Lock()
	h.entries = make(map[dom.NodeID]dom.Style)
	h.mu.Unlock()
}
