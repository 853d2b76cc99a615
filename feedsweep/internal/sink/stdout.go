// CLAUDE:SUMMARY Writes decision and stats events as JSON lines to an io.Writer (defaults to stdout) or an append-only file.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/feedsweep/feedsweep/decision"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w, enc: json.NewEncoder(w)}
}

// NewFile creates a JSON-lines sink appending to path.
func NewFile(path string) (*Stdout, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	return NewStdout(f), nil
}

func (s *Stdout) Send(_ context.Context, d decision.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "decision", Data: d})
}

func (s *Stdout) SendStats(_ context.Context, st decision.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "stats", Data: st})
}

// Close closes the underlying writer when it is a file.
func (s *Stdout) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
