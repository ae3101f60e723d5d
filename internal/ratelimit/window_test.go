package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/ratelimit"
)

func TestWindowLimiter_Disabled(t *testing.T) {
	limiter := ratelimit.NewWindowLimiter(nil, 0, time.Minute)
	for i := 0; i < 5; i++ {
		if ok, err := limiter.Allow(context.Background(), "k"); !ok || err != nil {
			t.Fatalf("disabled limiter refused call: ok %v err %v", ok, err)
		}
	}
}
