package hub

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/client"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

const eventBuffer = 256

// Hub fans training events out to the WebSocket subscribers whose filters
// match. Membership changes go through Run so a broadcast never races a
// disconnect.
type Hub struct {
	clients   map[*client.Client]bool
	clientsMu sync.RWMutex

	events     chan models.TrainingEvent
	register   chan *client.Client
	unregister chan *client.Client
	done       chan struct{} // closed when Run returns

	logger *logrus.Entry

	totalConnections int64
	totalMessages    int64
	droppedMessages  int64
	metricsMu        sync.Mutex
}

// NewHub creates a hub. Call Run before registering clients.
func NewHub(logger *logrus.Entry) *Hub {
	return &Hub{
		clients:    make(map[*client.Client]bool),
		events:     make(chan models.TrainingEvent, eventBuffer),
		register:   make(chan *client.Client),
		unregister: make(chan *client.Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serializes registration and delivery until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.logger.Info("hub started")

	go h.reportMetrics(ctx)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case event := <-h.events:
			h.deliver(event)
		}
	}
}

// Register hands c to Run. It returns immediately once Run has exited.
func (h *Hub) Register(c *client.Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister is safe to call after Run has exited.
func (h *Hub) Unregister(c *client.Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues event for delivery, dropping it when the queue is full
// rather than stalling the trainer.
func (h *Hub) Broadcast(event models.TrainingEvent) {
	select {
	case h.events <- event:
	default:
		h.logger.WithField("type", event.Type).Warn("event queue full, dropping training event")
		h.incrementDropped(1)
	}
}

// PublishTrainingEvent implements trainer.EventSink for single-replica
// deployments without Redis.
func (h *Hub) PublishTrainingEvent(ctx context.Context, event models.TrainingEvent) error {
	h.Broadcast(event)
	return nil
}

func (h *Hub) registerClient(c *client.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	h.incrementTotalConnections()

	h.logger.WithFields(logrus.Fields{"client_id": c.ID, "total": len(h.clients)}).Info("client connected")
}

func (h *Hub) unregisterClient(c *client.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.Close()
		h.logger.WithFields(logrus.Fields{"client_id": c.ID, "total": len(h.clients)}).Info("client disconnected")
	}
}

func (h *Hub) deliver(event models.TrainingEvent) {
	h.clientsMu.RLock()
	clients := make([]*client.Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	message := models.ServerMessage{
		Type:      models.MessageTypeTrainingEvent,
		Payload:   event,
		Timestamp: time.Now(),
	}

	var sent, dropped int
	for _, c := range clients {
		if !c.Wants(event) {
			continue
		}

		if c.TrySend(message) {
			sent++
			continue
		}

		// A subscriber that cannot keep up with training progress is dropped.
		dropped++
		h.logger.WithFields(logrus.Fields{"client_id": c.ID, "run_id": event.RunID}).Warn("subscriber lagging, disconnecting")
		go h.Unregister(c)
	}

	if sent > 0 {
		h.incrementTotalMessages()
	}
	if dropped > 0 {
		h.incrementDropped(int64(dropped))
	}
}

// GetMetrics reports subscriber and delivery counters for /metrics.
func (h *Hub) GetMetrics() map[string]interface{} {
	h.clientsMu.RLock()
	activeClients := len(h.clients)
	h.clientsMu.RUnlock()

	h.metricsMu.Lock()
	totalConnections := h.totalConnections
	totalMessages := h.totalMessages
	droppedMessages := h.droppedMessages
	h.metricsMu.Unlock()

	return map[string]interface{}{
		"active_clients":     activeClients,
		"total_connections":  totalConnections,
		"total_messages":     totalMessages,
		"dropped_messages":   droppedMessages,
		"broadcast_capacity": cap(h.events),
		"broadcast_usage":    len(h.events),
	}
}

func (h *Hub) GetClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.logger.WithField("active_clients", len(h.clients)).Info("shutting down hub")

	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.logger.WithFields(logrus.Fields(h.GetMetrics())).Debug("hub metrics")
		}
	}
}

func (h *Hub) incrementTotalConnections() {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.totalConnections++
}

func (h *Hub) incrementTotalMessages() {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.totalMessages++
}

func (h *Hub) incrementDropped(n int64) {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.droppedMessages += n
}
