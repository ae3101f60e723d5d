package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// DefaultStream receives training lifecycle events.
const DefaultStream = "models.training"

// StreamPublisher publishes training events to a Redis stream
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamPublisher creates a new stream publisher. maxLen caps the stream
// approximately; zero leaves it unbounded.
func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// PublishTrainingEvent appends a training event to the stream
func (p *StreamPublisher) PublishTrainingEvent(ctx context.Context, event models.TrainingEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling training event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":   string(data),
			"type":   event.Type,
			"run_id": event.RunID,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	return p.client.XAdd(ctx, args).Err()
}

// Stream returns the stream key events are written to.
func (p *StreamPublisher) Stream() string {
	return p.stream
}
