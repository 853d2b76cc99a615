// CLAUDE:SUMMARY In-process callback sink delivering decisions via Go function calls with zero serialization.
package sink

import (
	"context"

	"github.com/hazyhaar/feedsweep/feedsweep/decision"
)

// DecisionFunc is called for each decision.
type DecisionFunc func(ctx context.Context, d decision.Decision) error

// StatsFunc is called for each stats report.
type StatsFunc func(ctx context.Context, s decision.Stats) error

// Callback delivers decisions via Go function calls, for programs that
// embed the sweeper.
type Callback struct {
	onDecision DecisionFunc
	onStats    StatsFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onDecision DecisionFunc, onStats StatsFunc) *Callback {
	return &Callback{onDecision: onDecision, onStats: onStats}
}

func (c *Callback) Send(ctx context.Context, d decision.Decision) error {
	if c.onDecision != nil {
		return c.onDecision(ctx, d)
	}
	return nil
}

func (c *Callback) SendStats(ctx context.Context, s decision.Stats) error {
	if c.onStats != nil {
		return c.onStats(ctx, s)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
