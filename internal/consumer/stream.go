// Package consumer relays training events from the Redis stream to local
// WebSocket clients, so every replica sees runs started on any other.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

const (
	// Batch size for reading messages
	batchSize = 100

	// Block duration when waiting for new messages
	blockDuration = 1 * time.Second

	// Pause after a failed read
	errorBackoff = 1 * time.Second
)

// Broadcaster receives decoded events
type Broadcaster interface {
	Broadcast(event models.TrainingEvent)
}

// StreamConsumer tails a training event stream
type StreamConsumer struct {
	redis  *redis.Client
	stream string
	target Broadcaster
	logger *logrus.Entry
}

// NewStreamConsumer creates a new stream consumer
func NewStreamConsumer(client *redis.Client, stream string, target Broadcaster, logger *logrus.Entry) *StreamConsumer {
	return &StreamConsumer{
		redis:  client,
		stream: stream,
		target: target,
		logger: logger.WithField("stream", stream),
	}
}

// Start reads new entries until ctx is done. Entries written before Start are
// skipped. Every replica reads the whole stream, so there is no consumer
// group.
func (sc *StreamConsumer) Start(ctx context.Context) error {
	sc.logger.Info("stream consumer started")

	lastID := "$"
	for {
		streams, err := sc.redis.XRead(ctx, &redis.XReadArgs{
			Streams: []string{sc.stream, lastID},
			Count:   batchSize,
			Block:   blockDuration,
		}).Result()

		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			sc.logger.WithError(err).Warn("stream read error")

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errorBackoff):
			}
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				lastID = msg.ID
				sc.process(msg)
			}
		}
	}
}

func (sc *StreamConsumer) process(msg redis.XMessage) {
	event, err := Decode(msg)
	if err != nil {
		sc.logger.WithError(err).WithField("id", msg.ID).Warn("skipping malformed training event")
		return
	}
	sc.target.Broadcast(event)
}

// Decode parses the JSON payload of a stream entry
func Decode(msg redis.XMessage) (models.TrainingEvent, error) {
	var event models.TrainingEvent

	data, ok := msg.Values["data"].(string)
	if !ok {
		return event, fmt.Errorf("entry %s has no data field", msg.ID)
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return event, fmt.Errorf("failed to parse entry %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		return event, fmt.Errorf("entry %s has no event type", msg.ID)
	}
	return event, nil
}
