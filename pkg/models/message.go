package models

import "time"

// WebSocket message types
const (
	MessageTypeTrainingEvent = "training_event"
	MessageTypeHeartbeat     = "heartbeat"
	MessageTypeError         = "error"
	MessageTypeSubscribe     = "subscribe"
	MessageTypeUnsubscribe   = "unsubscribe"
)

// SubscriptionFilter narrows the training events a client receives.
// Empty lists match everything.
type SubscriptionFilter struct {
	EventTypes []string `json:"event_types,omitempty"`
	Models     []string `json:"models,omitempty"`
}

// Matches reports whether event passes the filter. Events without a model
// pass a model filter so that run-level progress is never hidden.
func (f SubscriptionFilter) Matches(event TrainingEvent) bool {
	if len(f.EventTypes) > 0 && !contains(f.EventTypes, event.Type) {
		return false
	}
	if len(f.Models) > 0 && event.Model != "" && !contains(f.Models, event.Model) {
		return false
	}
	return true
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// ServerMessage is sent from the server to WebSocket clients
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientMessage is sent from WebSocket clients to the server
type ClientMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ErrorMessage is the payload of an error ServerMessage
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectionStats describes one WebSocket connection
type ConnectionStats struct {
	ClientID          string    `json:"client_id"`
	ConnectedAt       time.Time `json:"connected_at"`
	MessagesSent      int64     `json:"messages_sent"`
	MessagesReceived  int64     `json:"messages_received"`
	LastMessageAt     time.Time `json:"last_message_at"`
	BufferSize        int       `json:"buffer_size"`
	BufferUtilization float64   `json:"buffer_utilization"`
}
