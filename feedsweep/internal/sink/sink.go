// Package sink defines output backends for feedsweep decisions.
package sink

import (
	"context"

	"github.com/hazyhaar/feedsweep/feedsweep/decision"
)

// Sink is the output interface. Implementations deliver decisions to
// different backends (stdout, file, in-process callback).
type Sink interface {
	Send(ctx context.Context, d decision.Decision) error
	SendStats(ctx context.Context, s decision.Stats) error
	Close() error
}
