// +build integration

package publisher_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/publisher"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

func TestStreamPublisher_PublishTrainingEvent(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_URL")
	if addr == "" {
		addr = "localhost:6380"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to connect to Redis: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	pub := publisher.NewStreamPublisher(client, "test.models.training", 100)
	event := models.TrainingEvent{
		Type:      models.EventTrainingStarted,
		RunID:     "run-1",
		Message:   "started",
		Timestamp: time.Now().UTC(),
	}
	if err := pub.PublishTrainingEvent(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs, err := client.XRange(ctx, pub.Stream(), "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}

	var got models.TrainingEvent
	if err := json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != models.EventTrainingStarted || got.RunID != "run-1" {
		t.Errorf("event = %+v", got)
	}
	if msgs[0].Values["type"] != models.EventTrainingStarted {
		t.Errorf("type field = %v", msgs[0].Values["type"])
	}
}
