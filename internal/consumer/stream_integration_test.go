// +build integration

package consumer_test

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/consumer"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/publisher"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

type recorder struct {
	mu     sync.Mutex
	events []models.TrainingEvent
}

func (r *recorder) Broadcast(event models.TrainingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestStreamConsumer_RelaysPublishedEvents(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_URL")
	if addr == "" {
		addr = "localhost:6380"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 1})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("failed to connect to Redis: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	const stream = "test.consumer.training"
	rec := &recorder{}
	sc := consumer.NewStreamConsumer(client, stream, rec, logrus.NewEntry(logger))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sc.Start(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Let the first XRead register "$" before publishing.
	time.Sleep(200 * time.Millisecond)

	pub := publisher.NewStreamPublisher(client, stream, 0)
	for _, typ := range []string{models.EventTrainingStarted, models.EventTrainingCompleted} {
		if err := pub.PublishTrainingEvent(context.Background(), models.TrainingEvent{Type: typ, RunID: "r1"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for rec.len() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	if rec.len() != 2 {
		t.Fatalf("relayed %d events, want 2", rec.len())
	}
	if rec.events[1].Type != models.EventTrainingCompleted {
		t.Errorf("second event = %+v", rec.events[1])
	}
}
