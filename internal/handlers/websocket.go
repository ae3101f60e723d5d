package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/client"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket streams training events to the connecting client
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.respondError(w, http.StatusServiceUnavailable, "training event stream not configured", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := client.NewClient(uuid.NewString(), conn, h.hub, h.logger)
	h.hub.Register(c)

	// Pumps outlive the request, so they use the handler context.
	go c.WritePump(h.ctx)
	go c.ReadPump(h.ctx)
}

// HandleMetrics returns hub metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.respondError(w, http.StatusServiceUnavailable, "training event stream not configured", nil)
		return
	}
	h.respondJSON(w, http.StatusOK, h.hub.GetMetrics())
}
