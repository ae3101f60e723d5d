package client_test

import (
	"testing"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/client"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

type mockHub struct {
	unregistered []*client.Client
}

func (m *mockHub) Unregister(c *client.Client) {
	m.unregistered = append(m.unregistered, c)
}

func TestClient_Wants(t *testing.T) {
	tests := []struct {
		name     string
		filter   models.SubscriptionFilter
		event    models.TrainingEvent
		expected bool
	}{
		{
			name:     "empty filter matches everything",
			event:    models.TrainingEvent{Type: models.EventModelTrained, Model: "xgb"},
			expected: true,
		},
		{
			name:     "type filter matches",
			filter:   models.SubscriptionFilter{EventTypes: []string{models.EventTrainingCompleted}},
			event:    models.TrainingEvent{Type: models.EventTrainingCompleted},
			expected: true,
		},
		{
			name:     "type filter doesn't match",
			filter:   models.SubscriptionFilter{EventTypes: []string{models.EventTrainingCompleted}},
			event:    models.TrainingEvent{Type: models.EventDatasetLoaded},
			expected: false,
		},
		{
			name:     "model filter doesn't match",
			filter:   models.SubscriptionFilter{Models: []string{"stacking"}},
			event:    models.TrainingEvent{Type: models.EventModelTrained, Model: "xgb"},
			expected: false,
		},
		{
			name:     "model filter passes run-level events",
			filter:   models.SubscriptionFilter{Models: []string{"stacking"}},
			event:    models.TrainingEvent{Type: models.EventTrainingStarted},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := client.NewClient("c1", nil, &mockHub{}, nil)
			c.SetFilter(tt.filter)
			if got := c.Wants(tt.event); got != tt.expected {
				t.Errorf("Wants() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	c := client.NewClient("c1", nil, &mockHub{}, nil)

	sent := 0
	for i := 0; i < 1000; i++ {
		if c.TrySend(models.ServerMessage{Type: models.MessageTypeTrainingEvent}) {
			sent++
		}
	}
	if sent == 0 || sent == 1000 {
		t.Errorf("sent %d of 1000, want a bounded buffer", sent)
	}
	if stats := c.Stats(); stats.BufferUtilization != 100 {
		t.Errorf("buffer utilization = %v, want 100", stats.BufferUtilization)
	}
}

func TestClient_HandleMessage(t *testing.T) {
	c := client.NewClient("c1", nil, &mockHub{}, nil)

	c.HandleMessage(models.ClientMessage{
		Type:    models.MessageTypeSubscribe,
		Payload: map[string]interface{}{"event_types": []interface{}{models.EventTrainingFailed}},
	})
	if f := c.Filter(); len(f.EventTypes) != 1 || f.EventTypes[0] != models.EventTrainingFailed {
		t.Errorf("filter after subscribe = %+v", f)
	}

	c.HandleMessage(models.ClientMessage{Type: models.MessageTypeUnsubscribe})
	if f := c.Filter(); len(f.EventTypes) != 0 {
		t.Errorf("filter after unsubscribe = %+v", f)
	}

	c.HandleMessage(models.ClientMessage{Type: models.MessageTypeHeartbeat})
	msg := <-c.Send
	if msg.Type != models.MessageTypeHeartbeat {
		t.Errorf("reply type = %s, want heartbeat", msg.Type)
	}

	c.HandleMessage(models.ClientMessage{Type: "bogus"})
	msg = <-c.Send
	if msg.Type != models.MessageTypeError {
		t.Errorf("reply type = %s, want error", msg.Type)
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	c := client.NewClient("c1", nil, &mockHub{}, nil)
	c.Close()
	c.Close()

	if c.TrySend(models.ServerMessage{Type: models.MessageTypeTrainingEvent}) {
		t.Error("TrySend succeeded on a closed client")
	}

	// A heartbeat arriving after the hub dropped the client must not panic.
	c.HandleMessage(models.ClientMessage{Type: models.MessageTypeHeartbeat})

	if _, ok := <-c.Send; ok {
		t.Error("expected closed channel")
	}
}
