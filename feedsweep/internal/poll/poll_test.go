package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUntilSucceeds(t *testing.T) {
	calls := 0
	n, err := Until(context.Background(), time.Millisecond, 20, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatalf("Until: %v", err)
	}
	if n != 2 {
		t.Errorf("failed checks: got %d, want 2", n)
	}
}

func TestUntilExhausted(t *testing.T) {
	calls := 0
	_, err := Until(context.Background(), time.Millisecond, 5, func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err: got %v, want ErrExhausted", err)
	}
	if calls != 6 {
		t.Errorf("calls: got %d, want 6", calls)
	}
}

func TestUntilConditionError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Until(context.Background(), time.Millisecond, 5, func(context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err: got %v, want boom", err)
	}
}

func TestUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Until(ctx, time.Hour, 5, func(context.Context) (bool, error) {
		t.Fatal("condition must not run after cancel")
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err: got %v, want context.Canceled", err)
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep cancelled: got %v", err)
	}
}
