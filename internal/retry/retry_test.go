package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/retry"
)

func TestPolicy_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	retried := 0
	p := retry.NewPolicy(3, time.Millisecond)

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, func(attempt int, err error) { retried++ })

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || retried != 2 {
		t.Errorf("calls = %d, retries = %d; want 3, 2", calls, retried)
	}
}

func TestPolicy_WrapsLastError(t *testing.T) {
	sentinel := errors.New("down")
	p := retry.NewPolicy(2, time.Millisecond)

	err := p.Do(context.Background(), func(ctx context.Context) error { return sentinel }, nil)
	if !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want wrapped sentinel", err)
	}
}

func TestPolicy_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retry.NewPolicy(10, time.Hour)

	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
