// Package poll waits for a DOM condition the only way the page allows: by
// checking it again on a fixed interval until it holds or the attempt budget
// runs out.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when the condition never held within the
// attempt budget.
var ErrExhausted = errors.New("poll: attempts exhausted")

// Cond reports whether the awaited state has been reached. A non-nil error
// aborts the poll.
type Cond func(ctx context.Context) (bool, error)

// Until waits one interval, then checks cond up to attempts+1 times, one
// interval apart. It returns the number of failed checks before success, or
// ErrExhausted, or the context error.
func Until(ctx context.Context, interval time.Duration, attempts int, cond Cond) (int, error) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case <-timer.C:
		}

		ok, err := cond(ctx)
		if err != nil {
			return n, err
		}
		if ok {
			return n, nil
		}
		if n >= attempts {
			return n, ErrExhausted
		}
		timer.Reset(interval)
	}
}

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
